package broadcast

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

const (
	writeDeadline     = 5 * time.Second
	pingInterval      = 30 * time.Second
	pongDeadline      = 60 * time.Second
	maxInboundMessage = 4096
	messageBufferSize = 16
)

// Channel is one live delivery path for a user, such as a browser tab.
type Channel interface {
	// IsOpen reports whether the channel can still accept messages.
	IsOpen() bool
	// Send queues data without blocking. It returns false when the channel
	// is closed or its buffer is full.
	Send(data []byte) bool
	// Close sends a close frame with the given code and releases the channel.
	Close(code int, reason string)
}

// WebSocketChannel delivers messages over a websocket connection. A writer
// goroutine drains the send buffer and pings the peer; ReadPump must run on
// the caller's goroutine to process pongs and notice disconnects.
type WebSocketChannel struct {
	connection  *websocket.Conn
	clock       clockwork.Clock
	sendChannel chan []byte
	doneChannel chan struct{}
	closed      atomic.Bool
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

var _ Channel = (*WebSocketChannel)(nil)

func NewWebSocketChannel(connection *websocket.Conn, clock clockwork.Clock) *WebSocketChannel {
	ch := &WebSocketChannel{
		connection:  connection,
		clock:       clock,
		sendChannel: make(chan []byte, messageBufferSize),
		doneChannel: make(chan struct{}),
	}
	ch.wg.Add(1)
	go ch.run()
	return ch
}

func (ch *WebSocketChannel) IsOpen() bool {
	return !ch.closed.Load()
}

func (ch *WebSocketChannel) Send(data []byte) bool {
	if ch.closed.Load() {
		return false
	}
	select {
	case ch.sendChannel <- data:
		return true
	default:
		return false
	}
}

func (ch *WebSocketChannel) run() {
	ticker := ch.clock.NewTicker(pingInterval)
	defer ticker.Stop()
	defer ch.wg.Done()

	for {
		select {
		case msg := <-ch.sendChannel:
			ch.updateWriteDeadline()
			if err := ch.connection.WriteMessage(websocket.TextMessage, msg); err != nil {
				ch.abort()
				return
			}
		case <-ticker.Chan():
			ch.updateWriteDeadline()
			if err := ch.connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				ch.abort()
				return
			}
		case <-ch.doneChannel:
			return
		}
	}
}

// ReadPump discards inbound messages, keeps the read deadline alive on pongs
// and returns when the peer goes away or the channel is closed.
func (ch *WebSocketChannel) ReadPump() error {
	ch.connection.SetReadLimit(maxInboundMessage)
	ch.updateReadDeadline()
	ch.connection.SetPongHandler(func(string) error {
		ch.updateReadDeadline()
		return nil
	})

	for {
		if _, _, err := ch.connection.ReadMessage(); err != nil {
			ch.closed.Store(true)
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			var netErr interface{ Timeout() bool }
			if errors.As(err, &netErr) && netErr.Timeout() {
				return errPongTimeout
			}
			return err
		}
	}
}

var errPongTimeout = errors.New("websocket peer missed pong deadline")

// Close waits for the writer goroutine to exit, then writes a close frame.
// Safe to call more than once and from any goroutine.
func (ch *WebSocketChannel) Close(code int, reason string) {
	ch.stopOnce.Do(func() {
		ch.closed.Store(true)
		close(ch.doneChannel)
		ch.wg.Wait()

		msg := websocket.FormatCloseMessage(code, reason)
		_ = ch.connection.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeDeadline))
		_ = ch.connection.Close()
	})
}

// abort tears the connection down after a failed write. Called only by run.
func (ch *WebSocketChannel) abort() {
	ch.closed.Store(true)
	_ = ch.connection.Close()
}

// Socket deadlines are wall-clock; the injected clock only drives pings.
func (ch *WebSocketChannel) updateWriteDeadline() {
	_ = ch.connection.SetWriteDeadline(time.Now().Add(writeDeadline))
}

func (ch *WebSocketChannel) updateReadDeadline() {
	_ = ch.connection.SetReadDeadline(time.Now().Add(pongDeadline))
}
