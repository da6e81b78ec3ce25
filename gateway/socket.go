package gateway

import (
	"context"
	"fmt"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/bsekhosana/sechat-app-sub011/contract"
	"github.com/bsekhosana/sechat-app-sub011/domain/event"
)

// readLimit caps a single inbound frame. Chat payloads are small; anything
// bigger is a misbehaving peer.
const readLimit = 1 << 20

// WebsocketDialer opens JSON-frame websocket connections to the realtime
// endpoint.
type WebsocketDialer struct{}

func NewWebsocketDialer() WebsocketDialer {
	return WebsocketDialer{}
}

func (WebsocketDialer) Dial(ctx context.Context, endpoint string) (contract.ISocket, error) {
	conn, _, err := websocket.Dial(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	conn.SetReadLimit(readLimit)
	return &websocketSocket{conn: conn}, nil
}

type websocketSocket struct {
	conn *websocket.Conn
}

func (s *websocketSocket) ReadFrame(ctx context.Context) (event.Frame, error) {
	var frame event.Frame
	if err := wsjson.Read(ctx, s.conn, &frame); err != nil {
		return event.Frame{}, fmt.Errorf("read frame: %w", err)
	}
	return frame, nil
}

func (s *websocketSocket) WriteFrame(ctx context.Context, f event.Frame) error {
	if err := wsjson.Write(ctx, s.conn, f); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

func (s *websocketSocket) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "")
}
