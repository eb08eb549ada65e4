package proxy

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/turingarena/turingarena-sub002/pkg/errors"

	"github.com/gorilla/websocket"
)

const wsPath = "/proxy"

// wsStream carries the line protocol over text messages. Message
// boundaries carry no meaning: a read may span messages and a flushed
// request or response becomes one message.
type wsStream struct {
	conn   *websocket.Conn
	reader io.Reader
	wmu    sync.Mutex
}

func newWSStream(conn *websocket.Conn) *wsStream {
	return &wsStream{conn: conn}
}

func (s *wsStream) Read(p []byte) (int, error) {
	for {
		if s.reader == nil {
			kind, r, err := s.conn.NextReader()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return 0, io.EOF
				}
				return 0, err
			}
			if kind != websocket.TextMessage {
				continue
			}
			s.reader = r
		}
		n, err := s.reader.Read(p)
		if err == io.EOF {
			s.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (s *wsStream) Write(p []byte) (int, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if err := s.conn.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *wsStream) Close() error {
	s.wmu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	s.wmu.Unlock()
	return s.conn.Close()
}

// acceptWebSocket serves a single upgrade on ln and stops listening once
// an evaluator is connected.
func acceptWebSocket(ctx context.Context, ln net.Listener) (*Conn, error) {
	accepted := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     func(*http.Request) bool { return true },
	}
	var taken atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc(wsPath, func(w http.ResponseWriter, r *http.Request) {
		if !taken.CompareAndSwap(false, true) {
			http.Error(w, "session already taken", http.StatusConflict)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			taken.Store(false)
			return
		}
		accepted <- conn
	})

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ln) }()
	defer srv.Close()

	select {
	case conn := <-accepted:
		return NewConn(newWSStream(conn)), nil
	case err := <-serveErr:
		return nil, errors.Wrapf(err, errors.ProxyStreamClosed, "accept evaluator")
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), errors.Timeout)
	}
}

func dialWebSocket(ctx context.Context, address string) (*Client, error) {
	url := "ws://" + address + wsPath
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ServiceUnavailable, "dial %s", url)
	}
	return NewClient(newWSStream(conn)), nil
}
