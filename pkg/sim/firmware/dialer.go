package firmware

import (
	"context"
	"io"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/robotalks/datalogger/pkg/link"
)

// Scheme is the endpoint scheme of emulated devices, e.g.
// sim://bench?records=32&delay=5ms
const Scheme = "sim"

// DefaultRecords is the number of records of an emulated device.
const DefaultRecords = 16

var (
	devices     = make(map[string]*Firmware)
	devicesLock sync.Mutex
)

func init() {
	link.RegisterDialer(Scheme, dial)
}

// Lookup returns the emulated device with name, creating it if needed.
// Devices keep their state across connections.
func Lookup(name string, query url.Values) (*Firmware, error) {
	devicesLock.Lock()
	defer devicesLock.Unlock()
	if f := devices[name]; f != nil {
		return f, nil
	}
	n := DefaultRecords
	if val := query.Get("records"); val != "" {
		var err error
		if n, err = strconv.Atoi(val); err != nil {
			return nil, err
		}
	}
	f := New(n)
	if val := query.Get("delay"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return nil, err
		}
		f.LineDelay = d
	}
	f.Silent = query.Get("silent") != ""
	f.AckToggles = query.Get("ack") != ""
	if val := query.Get("garbage"); val != "" {
		f.Garbage = []string{val}
	}
	devices[name] = f
	return f, nil
}

func dial(ctx context.Context, u *url.URL, opts link.Options) (io.ReadWriteCloser, error) {
	f, err := Lookup(u.Host, u.Query())
	if err != nil {
		return nil, &link.ConnectError{Reason: link.ReasonInvalid, Err: err}
	}
	return f.Open(), nil
}
