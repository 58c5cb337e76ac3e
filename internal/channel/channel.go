// Package channel manages the real-time connection bound to (room, token).
// At most one channel is live per controller; switching rooms or
// re-authenticating closes the old one before opening a new one.
package channel

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/KlementevYP/messager/internal/model"
)

// State of the channel lifecycle. There is no reconnect state: a closed
// channel stays closed until the user forces a new one via room switch or
// re-login.
type State int

const (
	StateClosed State = iota
	StateConnecting
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return "closed"
	}
}

const (
	dialTimeout  = 10 * time.Second
	writeTimeout = 10 * time.Second
)

// Channel is one live websocket connection to a room.
type Channel struct {
	url  string
	room string

	mu      sync.Mutex
	state   State
	closed  bool
	conn    *websocket.Conn
	limiter *rate.Limiter

	frames     chan model.Frame
	done       chan struct{}
	closeOnce  sync.Once
	framesOnce sync.Once
}

// New returns a channel in the Closed state. Connect moves it to Open.
func New(wsURL, room string) *Channel {
	return &Channel{
		url:    wsURL,
		room:   room,
		frames: make(chan model.Frame, 64),
		done:   make(chan struct{}),
	}
}

// SetSendLimiter caps outbound sends at requests per window. Sends beyond
// the cap are dropped, mirroring the server's own per-client limits.
func (c *Channel) SetSendLimiter(requests int, window time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.limiter = rate.NewLimiter(rate.Every(window/time.Duration(requests)), requests)
}

// Room reports the room this channel is bound to.
func (c *Channel) Room() string { return c.room }

// State reports the current lifecycle state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Frames is the stream of recognized inbound frames. It is closed when the
// read loop exits, which also moves the channel to Closed.
func (c *Channel) Frames() <-chan model.Frame { return c.frames }

// Done is closed once the channel reaches Closed for good.
func (c *Channel) Done() <-chan struct{} { return c.done }

// Connect dials the server and, on success, starts the read loop. Close is
// terminal: a channel closed before or during the dial never opens, the
// connection is torn down and no frames are delivered.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed || c.state != StateClosed {
		closed := c.closed
		c.mu.Unlock()
		if closed {
			c.closeFrames()
		}
		return nil
	}
	c.state = StateConnecting
	c.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, c.url, nil)
	if err != nil {
		c.Close()
		c.closeFrames()
		return err
	}

	c.mu.Lock()
	if c.state != StateConnecting {
		// Closed mid-connect; only the latest channel is acted upon.
		c.mu.Unlock()
		conn.Close(websocket.StatusGoingAway, "abandoned")
		c.closeFrames()
		return nil
	}
	c.conn = conn
	c.state = StateOpen
	c.mu.Unlock()

	go c.readLoop(ctx, conn)

	log.Debug().Str("room", c.room).Msg("channel open")
	return nil
}

// readLoop reads the incoming data from the websocket stream and dispatches
// on the frame's declared kind. Unrecognized kinds are dropped.
func (c *Channel) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer func() {
		c.Close()
		c.closeFrames()
		conn.CloseNow()
	}()

	for {
		msgType, p, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure &&
				status != websocket.StatusGoingAway &&
				status != -1 {
				log.Warn().Err(err).Str("room", c.room).Msg("channel read failed")
			}
			return
		}

		if msgType != websocket.MessageText {
			continue
		}

		var frame model.Frame
		if err := json.Unmarshal(p, &frame); err != nil {
			log.Warn().Err(err).Str("room", c.room).Msg("failed to decode frame")
			continue
		}

		switch frame.Type {
		case model.FrameMessage, model.FrameOnlineCount:
			select {
			case c.frames <- frame:
			case <-ctx.Done():
				return
			}
		default:
			log.Debug().Str("type", frame.Type).Msg("dropping unrecognized frame")
		}
	}
}

// Send transmits the user's text verbatim as the frame payload. Sends on a
// channel that is not Open, empty/whitespace-only input, and sends past the
// rate limit are silent no-ops.
func (c *Channel) Send(ctx context.Context, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}

	c.mu.Lock()
	conn, state, limiter := c.conn, c.state, c.limiter
	c.mu.Unlock()

	if state != StateOpen {
		log.Debug().Str("state", state.String()).Msg("dropping send on non-open channel")
		return
	}

	if limiter != nil && !limiter.Allow() {
		log.Warn().Str("room", c.room).Msg("send rate limit exceeded; message dropped")
		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if err := conn.Write(writeCtx, websocket.MessageText, []byte(text)); err != nil {
		log.Warn().Err(err).Str("room", c.room).Msg("channel write failed")
	}
}

// Close moves the channel to Closed for good: a closed channel never opens
// again, even if Connect runs afterwards. Closing an already-closed channel
// is a no-op.
func (c *Channel) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		conn := c.conn
		c.state = StateClosed
		c.closed = true
		c.mu.Unlock()

		if conn != nil {
			conn.Close(websocket.StatusNormalClosure, "channel closed")
		}
		close(c.done)

		log.Debug().Str("room", c.room).Msg("channel closed")
	})
}

// closeFrames ends the frame stream exactly once so consumers ranging over
// Frames never block on a channel that will produce nothing more.
func (c *Channel) closeFrames() {
	c.framesOnce.Do(func() { close(c.frames) })
}
