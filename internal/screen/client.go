package screen

import (
	"context"
	"encoding/json"
	log "log/slog"
	"time"

	ws "github.com/gorilla/websocket"
)

// Client follows a screen's event stream, redialling when the daemon goes
// away.
type Client struct {
	url    string
	reconn time.Duration
	dialer *ws.Dialer
}

func NewClient(url string, reconn time.Duration) *Client {
	if reconn <= 0 {
		reconn = time.Second
	}
	return &Client{url: url, reconn: reconn, dialer: ws.DefaultDialer}
}

// Watch delivers events until ctx is done. Commands in cmds are sent on the
// current connection.
func (c *Client) Watch(ctx context.Context, cmds <-chan Command, onEvent func(Event)) error {
	for {
		conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Debug("dial screen failed, retrying", "url", c.url, "err", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.reconn):
			}
			continue
		}

		log.Debug("connected to screen", "url", c.url)
		c.session(ctx, conn, cmds, onEvent)
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *Client) session(ctx context.Context, conn *ws.Conn, cmds <-chan Command, onEvent func(Event)) {
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if !isClosed(err) {
					log.Debug("screen read failed", "err", err)
				}
				return
			}
			var ev Event
			if err := json.Unmarshal(msg, &ev); err != nil {
				log.Debug("bad event", "err", err)
				continue
			}
			onEvent(ev)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteMessage(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseNormalClosure, ""))
			<-done
			return
		case <-done:
			return
		case cmd, ok := <-cmds:
			if !ok {
				cmds = nil
				continue
			}
			if err := conn.WriteJSON(cmd); err != nil {
				log.Debug("screen write failed", "err", err)
				return
			}
		}
	}
}
