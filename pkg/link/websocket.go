package link

import (
	"context"
	"io"
	"net/url"

	"golang.org/x/net/websocket"
)

// dialWebsocket connects a serial-to-websocket bridge. Frames are treated
// as a plain byte stream.
func dialWebsocket(ctx context.Context, u *url.URL, opts Options) (io.ReadWriteCloser, error) {
	origin := "http://localhost/"
	if u.Scheme == "wss" {
		origin = "https://localhost/"
	}
	config, err := websocket.NewConfig(u.String(), origin)
	if err != nil {
		return nil, &ConnectError{Reason: ReasonInvalid, Err: err}
	}
	conn, err := config.DialContext(ctx)
	if err != nil {
		return nil, &ConnectError{Reason: ReasonUnavailable, Err: err}
	}
	conn.PayloadType = websocket.BinaryFrame
	return conn, nil
}
