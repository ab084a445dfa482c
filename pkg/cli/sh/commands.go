package sh

import (
	"strconv"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/datalogger/pkg/device"
)

func reportErr(c *ishell.Context, err error) {
	c.Err(&commandError{err: err})
}

type commandError struct {
	err error
}

func (e *commandError) Error() string {
	return device.Classify(e.err).String() + ": " + e.err.Error()
}

func (e *commandError) Unwrap() error {
	return e.err
}

var (
	// ConnectCmd connects an endpoint and queries the sensor flags.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "[ENDPOINT]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			var endpoint string
			if len(c.Args) > 0 {
				endpoint = c.Args[0]
			} else {
				port, err := s.SelectPort()
				if err != nil {
					reportErr(c, err)
					return
				}
				endpoint = port
			}
			dev, err := s.Connect(endpoint)
			if err != nil {
				reportErr(c, err)
				return
			}
			c.Printf("Connected to %s\n", endpoint)
			if err := dev.StateErr(); err != nil {
				c.Printf("Sensor state unknown: %v\n", err)
				return
			}
			s.printState(c, endpoint, dev.CurrentState())
		},
	}

	// DisconnectCmd disconnects current device.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}

	// ReadCmd reads the EEPROM dump.
	ReadCmd = ishell.Cmd{
		Name:    "read",
		Aliases: []string{"r"},
		Help:    "",
		Func: MustBeConnected(func(c *ishell.Context, dev *device.Device) {
			if err := ShellFrom(c).StartRead(dev); err != nil {
				reportErr(c, err)
			}
		}),
	}

	// ToggleCmd toggles a sensor.
	ToggleCmd = ishell.Cmd{
		Name:    "toggle",
		Aliases: []string{"t"},
		Help:    "SENSOR(1-4)",
		Func: MustBeConnected(func(c *ishell.Context, dev *device.Device) {
			if len(c.Args) != 1 {
				c.Println("usage: toggle SENSOR(1-4)")
				return
			}
			n, err := strconv.Atoi(c.Args[0])
			if err != nil {
				reportErr(c, err)
				return
			}
			s := ShellFrom(c)
			if err := dev.Toggle(s.ctx, n); err != nil {
				reportErr(c, err)
				return
			}
			s.printState(c, dev.Endpoint(), dev.CurrentState())
		}),
	}

	// StateCmd prints the cached sensor flags.
	StateCmd = ishell.Cmd{
		Name:    "state",
		Aliases: []string{"s"},
		Help:    "",
		Func: MustBeConnected(func(c *ishell.Context, dev *device.Device) {
			ShellFrom(c).printState(c, dev.Endpoint(), dev.CurrentState())
		}),
	}

	// RefreshCmd queries the sensor flags from the device.
	RefreshCmd = ishell.Cmd{
		Name:    "refresh",
		Aliases: []string{"f"},
		Help:    "",
		Func: MustBeConnected(func(c *ishell.Context, dev *device.Device) {
			s := ShellFrom(c)
			if err := dev.RefreshState(s.ctx); err != nil {
				reportErr(c, err)
				return
			}
			s.printState(c, dev.Endpoint(), dev.CurrentState())
		}),
	}

	// ClearCmd clears the screen.
	ClearCmd = ishell.Cmd{
		Name: "clear",
		Help: "",
		Func: func(c *ishell.Context) {
			if err := c.ClearScreen(); err != nil {
				c.Err(err)
			}
		},
	}

	// PortsCmd lists serial ports.
	PortsCmd = ishell.Cmd{
		Name:    "ports",
		Aliases: []string{"p"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ports, err := ShellFrom(c).ListPorts()
			if err != nil {
				reportErr(c, err)
				return
			}
			if len(ports) == 0 {
				c.Println("No serial ports found")
				return
			}
			for _, port := range ports {
				c.Println(port)
			}
		},
	}
)
