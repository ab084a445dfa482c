// Package sh provides the interactive shell operating a data logger.
package sh

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"sync"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"

	"github.com/robotalks/datalogger/pkg/device"
	"github.com/robotalks/datalogger/pkg/dump"
	"github.com/robotalks/datalogger/pkg/env"
	fx "github.com/robotalks/datalogger/pkg/framework"
	"github.com/robotalks/datalogger/pkg/link"
	"github.com/robotalks/datalogger/pkg/protocol"
	"github.com/robotalks/datalogger/pkg/publish/mqtt"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	AutoConnect bool

	Shell     *ishell.Shell
	Config    *env.Config
	Publisher *mqtt.Publisher

	// ListPorts enumerates candidate endpoints for connect without
	// arguments.
	ListPorts func() ([]string, error)

	ctx     context.Context
	lock    sync.Mutex
	device  *device.Device
	reading *device.Future
}

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "
)

// ErrNotConnected is reported by commands requiring a device.
var ErrNotConnected = errors.New("not connected")

var (
	// flags

	evalOnly   bool
	outputJSON bool

	commands = []*ishell.Cmd{
		&ConnectCmd,
		&DisconnectCmd,
		&ReadCmd,
		&ToggleCmd,
		&StateCmd,
		&RefreshCmd,
		&ClearCmd,
		&PortsCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// New creates a new shell.
func New(conf *env.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:     ishell.New(),
		Config:    conf,
		ListPorts: link.SerialPorts,
		ctx:       context.Background(),
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeConnected wraps command func requires a connection.
func MustBeConnected(fn func(c *ishell.Context, dev *device.Device)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		dev := ShellFrom(c).Device()
		if dev == nil {
			c.Err(ErrNotConnected)
			return
		}
		fn(c, dev)
	}
}

// WithAutoConnect sets AutoConnect.
func (s *Shell) WithAutoConnect(en bool) *Shell {
	s.AutoConnect = en
	return s
}

// Device returns the connected device, nil if not connected.
func (s *Shell) Device() *device.Device {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.device
}

// Connect connects the endpoint, replacing the current connection.
func (s *Shell) Connect(endpoint string) (*device.Device, error) {
	s.Disconnect()
	opts := s.Config.DeviceOptions()
	if pub := s.Publisher; pub != nil {
		pub.SetEndpoint(endpoint)
		opts.ResultHandler = pub
		opts.StateNotifier = pub
	}
	dev, err := device.Connect(s.ctx, endpoint, opts)
	if err != nil {
		return nil, err
	}
	s.lock.Lock()
	s.device = dev
	s.lock.Unlock()
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", endpoint))
	return dev, nil
}

// Disconnect disconnects the current device.
func (s *Shell) Disconnect() {
	s.lock.Lock()
	dev := s.device
	s.device, s.reading = nil, nil
	s.lock.Unlock()
	if dev == nil {
		return
	}
	if err := dev.Disconnect(); err != nil {
		glog.Warningf("disconnect %s: %v", dev.Endpoint(), err)
	}
	s.Shell.SetPrompt(unconnectedPrompt)
}

// SelectPort picks the endpoint to connect when none is given.
func (s *Shell) SelectPort() (string, error) {
	if s.Config.Port != "" {
		return s.Config.Port, nil
	}
	ports, err := s.ListPorts()
	if err != nil {
		return "", err
	}
	switch len(ports) {
	case 0:
		return "", errors.New("no serial ports found")
	case 1:
		return ports[0], nil
	}
	if !s.Interactive {
		return "", errors.New("more than 1 port found in non-interactive mode")
	}
	index := s.Shell.MultiChoice(ports, "Which port to connect?")
	if index < 0 {
		return "", errors.New("no port selected")
	}
	return ports[index], nil
}

// StartRead starts a dump and prints the result when it finishes. In
// non-interactive mode it waits for the result.
func (s *Shell) StartRead(dev *device.Device) error {
	future, err := dev.StartDumpRead(s.ctx)
	if err != nil {
		return err
	}
	s.lock.Lock()
	s.reading = future
	s.lock.Unlock()
	if !s.Interactive {
		res, err := future.Wait(s.ctx)
		if err != nil {
			return err
		}
		s.printResult(dev.Endpoint(), res)
		return nil
	}
	s.Shell.Println(MsgLoading)
	go func() {
		res := <-future.ResultChan()
		s.lock.Lock()
		current := s.reading == future
		if current {
			s.reading = nil
		}
		s.lock.Unlock()
		if current {
			s.printResult(dev.Endpoint(), res)
		}
	}()
	return nil
}

func (s *Shell) printResult(endpoint string, res dump.Result) {
	if s.OutputJSON {
		out, err := FormatResultJSON(endpoint, res)
		if err != nil {
			s.Shell.Println(err)
			return
		}
		s.Shell.Println(out)
		return
	}
	for _, line := range FormatResult(res) {
		s.Shell.Println(line)
	}
}

func (s *Shell) printState(c *ishell.Context, endpoint string, states protocol.StateVector) {
	if s.OutputJSON {
		out, err := FormatStateJSON(endpoint, states)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(out)
		return
	}
	c.Println(FormatState(states))
}

// Run runs args as a single command, or the interactive shell until
// ctx is done.
func (s *Shell) Run(ctx context.Context, args ...string) error {
	s.ctx = ctx
	defer s.Disconnect()
	if s.AutoConnect && s.Config.Port != "" {
		if s.Interactive {
			s.Shell.Printf("Connecting %s ...\n", s.Config.Port)
		}
		if _, err := s.Connect(s.Config.Port); err != nil {
			return fmt.Errorf("connect %q failed: %w", s.Config.Port, err)
		}
	}

	if len(args) > 0 {
		return s.Shell.Process(args...)
	}
	if !s.Interactive {
		return errors.New("command expected")
	}
	return fx.RunWithCloser(ctx, shellCloser{s.Shell}, func() error {
		s.Shell.Run()
		return nil
	})
}

type shellCloser struct {
	shell *ishell.Shell
}

func (c shellCloser) Close() error {
	c.shell.Close()
	return nil
}

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	conf := env.Default()
	if err := conf.Validate(); err != nil {
		log.Fatalln(err)
	}
	s := New(conf).WithAutoConnect(true)
	runner := fx.NewRunner(context.Background()).HandleSignals()
	if conf.MQTTURL != "" {
		pub, err := mqtt.NewPublisher(conf.MQTTURL, conf.ResolveHostID())
		if err != nil {
			log.Fatalln(err)
		}
		if err := pub.Connect(); err != nil {
			log.Fatalf("connect %s failed: %v", conf.MQTTURL, err)
		}
		s.Publisher = pub
		runner.Go(fx.NamedRun("publisher", pub))
	}
	args := flag.Args()
	runner.Go(fx.NamedRun("shell", fx.RunFunc(func(ctx context.Context) error {
		return s.Run(ctx, args...)
	})))
	if err := runner.Wait(); err != nil {
		log.Fatalln(err)
	}
}
