package link

import (
	"context"
	"errors"
	"io"
	"net/url"

	"go.bug.st/serial"
)

func dialSerial(ctx context.Context, u *url.URL, opts Options) (io.ReadWriteCloser, error) {
	port, err := serial.Open(u.Path, &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, &ConnectError{Reason: serialReason(err), Err: err}
	}
	return port, nil
}

func serialReason(err error) string {
	var portErr *serial.PortError
	if !errors.As(err, &portErr) {
		return ReasonUnavailable
	}
	switch portErr.Code() {
	case serial.PortNotFound:
		return ReasonNotFound
	case serial.PermissionDenied:
		return ReasonPermission
	case serial.PortBusy:
		return ReasonBusy
	case serial.InvalidSerialPort, serial.InvalidSpeed, serial.InvalidDataBits,
		serial.InvalidParity, serial.InvalidStopBits:
		return ReasonInvalid
	}
	return ReasonUnavailable
}

// SerialPorts lists the serial ports present on the host.
func SerialPorts() ([]string, error) {
	return serial.GetPortsList()
}
