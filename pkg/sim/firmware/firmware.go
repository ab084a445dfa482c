// Package firmware emulates the data logger firmware on an in-memory
// byte stream.
package firmware

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/datalogger/pkg/protocol"
)

// Firmware emulates the device side of the protocol.
type Firmware struct {
	// Records is the EEPROM content, dumped in order.
	Records []protocol.Record
	// Prefix is printed before the address of each record.
	Prefix string
	// States are the sensor flags.
	States protocol.StateVector
	// LineDelay is waited before each line is sent.
	LineDelay time.Duration
	// Silent makes the firmware ignore all commands.
	Silent bool
	// AckToggles makes the firmware reply a line to toggle commands.
	AckToggles bool
	// Garbage lines are sent in the middle of a dump.
	Garbage []string

	lock  sync.Mutex
	ports []*Port
}

// New creates a Firmware with n records.
func New(n int) *Firmware {
	f := &Firmware{Prefix: "Address"}
	for i := 0; i < n; i++ {
		f.Records = append(f.Records, protocol.Record{
			Address: fmt.Sprintf("%d", i),
			Value:   fmt.Sprintf("%d", (i*37+11)%256),
		})
	}
	return f
}

// SensorStates returns the current sensor flags.
func (f *Firmware) SensorStates() protocol.StateVector {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.States
}

// Open creates the host side of a new connection.
func (f *Firmware) Open() *Port {
	r, w := io.Pipe()
	p := &Port{
		firmware: f,
		r:        r,
		w:        w,
		out:      make(chan string, 1024),
		closed:   make(chan struct{}),
	}
	f.lock.Lock()
	f.ports = append(f.ports, p)
	f.lock.Unlock()
	go p.writeLoop()
	return p
}

func (f *Firmware) detach(p *Port) {
	f.lock.Lock()
	defer f.lock.Unlock()
	for i, port := range f.ports {
		if port == p {
			f.ports = append(f.ports[:i], f.ports[i+1:]...)
			return
		}
	}
}

// OpenPorts returns the number of connections not yet closed.
func (f *Firmware) OpenPorts() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return len(f.ports)
}

// Unplug breaks all open connections as if the cable was pulled.
func (f *Firmware) Unplug() {
	f.lock.Lock()
	ports := f.ports
	f.ports = nil
	f.lock.Unlock()
	for _, p := range ports {
		p.w.CloseWithError(io.ErrUnexpectedEOF)
	}
}

func (f *Firmware) handle(b byte, emit func(string)) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.Silent {
		return
	}
	cmd := protocol.Command(b)
	switch {
	case cmd == protocol.ReadDump:
		if len(f.Records) == 0 {
			emit(protocol.NoDataMarker)
			return
		}
		for n, rec := range f.Records {
			if n == len(f.Records)/2 {
				for _, line := range f.Garbage {
					emit(line)
				}
			}
			emit(fmt.Sprintf("%s %s: %s", f.Prefix, rec.Address, rec.Value))
		}
		emit(protocol.EndMarker)
	case cmd == protocol.QueryState:
		emit(f.States.String())
	case cmd.Sensor() != 0:
		f.States = f.States.Flip(cmd.Sensor())
		if f.AckToggles {
			emit(fmt.Sprintf("Sensor %d %v", cmd.Sensor(), f.States.Get(cmd.Sensor())))
		}
	default:
		glog.V(2).Infof("firmware: ignore byte %q", b)
	}
}

// Port is the host side of an emulated connection.
type Port struct {
	firmware  *Firmware
	r         *io.PipeReader
	w         *io.PipeWriter
	out       chan string
	closed    chan struct{}
	closeOnce sync.Once
}

// Read implements io.Reader.
func (p *Port) Read(b []byte) (int, error) {
	return p.r.Read(b)
}

// Write implements io.Writer, every byte is a command.
func (p *Port) Write(b []byte) (int, error) {
	select {
	case <-p.closed:
		return 0, io.ErrClosedPipe
	default:
	}
	for _, c := range b {
		p.firmware.handle(c, p.emit)
	}
	return len(b), nil
}

// Close implements io.Closer.
func (p *Port) Close() error {
	p.closeOnce.Do(func() {
		close(p.closed)
		p.r.Close()
		p.firmware.detach(p)
	})
	return nil
}

func (p *Port) emit(line string) {
	select {
	case p.out <- line:
	case <-p.closed:
	}
}

func (p *Port) writeLoop() {
	for {
		select {
		case <-p.closed:
			return
		case line := <-p.out:
			if d := p.firmware.LineDelay; d > 0 {
				select {
				case <-time.After(d):
				case <-p.closed:
					return
				}
			}
			if _, err := io.WriteString(p.w, line+"\r\n"); err != nil {
				return
			}
		}
	}
}
