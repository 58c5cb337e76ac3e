// Package controller owns the client's mutable state: the session, the
// single live channel, the active room and the presence snapshot. Every
// operation leaves the client in a consistent, re-loginable state; auth and
// network failures surface as UI notices or logs, never as panics.
package controller

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/KlementevYP/messager/internal/api"
	"github.com/KlementevYP/messager/internal/auth"
	"github.com/KlementevYP/messager/internal/channel"
	"github.com/KlementevYP/messager/internal/model"
	"github.com/KlementevYP/messager/internal/store"
)

// DefaultRoom is the room selected before the user picks one.
const DefaultRoom = "General"

// Outbound sends are capped client-side so a misbehaving script can't spam
// the server into disconnecting us.
const (
	sendLimit  = 30
	sendWindow = time.Minute
)

// ErrValidation means login was refused locally before any network call.
var ErrValidation = errors.New("controller: username and password are required")

// UI is the rendering surface the controller drives. Implementations must
// tolerate calls from the channel-consuming goroutine.
type UI interface {
	SetUser(username string)
	SetRoom(room string)
	RenderMessage(msg model.Message)
	ResetTranscript()
	RenderPresence(p model.Presence)
	ShowError(msg string)
}

// Controller is the session & channel controller.
type Controller struct {
	api   *api.Client
	store *store.Store
	ui    UI

	mu       sync.Mutex
	sess     *model.Session
	room     string
	presence model.Presence
	ch       *channel.Channel
}

// New returns a logged-out controller on the default room.
func New(apiClient *api.Client, st *store.Store, ui UI) *Controller {
	return &Controller{
		api:   apiClient,
		store: st,
		ui:    ui,
		room:  DefaultRoom,
	}
}

// Login exchanges credentials for a token, persists the session and brings
// the room up (history load + channel open). Empty fields fail locally with
// a user-visible message and no network call. Failures never alter existing
// session state.
func (c *Controller) Login(ctx context.Context, username, password string) error {
	if strings.TrimSpace(username) == "" || password == "" {
		c.ui.ShowError("Please enter both username and password")
		return ErrValidation
	}

	token, err := c.api.Login(ctx, username, password)
	if err != nil {
		if errors.Is(err, api.ErrAuthRejected) {
			c.ui.ShowError(rejectionDetail(err))
		} else {
			c.ui.ShowError("Connection error")
		}
		return err
	}

	sess := model.Session{Username: username, Token: token}
	if err := c.store.SaveSession(sess); err != nil {
		log.Warn().Err(err).Msg("failed to persist session")
	}

	c.mu.Lock()
	c.sess = &sess
	c.mu.Unlock()

	c.ui.SetUser(username)
	c.ui.SetRoom(c.Room())

	c.loadHistory(ctx)
	c.openChannel(ctx)

	return nil
}

// Restore runs the startup auth check: a persisted session is revalidated
// against the server and, on acceptance, the client proceeds exactly as a
// fresh login would. Any failure degrades to the logged-out state; Restore
// never fails the startup path.
func (c *Controller) Restore(ctx context.Context) bool {
	sess, ok, err := c.store.LoadSession()
	if err != nil {
		log.Warn().Err(err).Msg("discarding unreadable session")
		c.clearStoredSession()
		return false
	}
	if !ok {
		return false
	}

	// A token that is well-formed and already expired can be discarded
	// without a round-trip. Opaque tokens stay the server's call.
	if auth.Expired(sess.Token) {
		log.Debug().Str("username", sess.Username).Msg("stored token expired")
		c.clearStoredSession()
		return false
	}

	if err := c.api.ValidateToken(ctx, sess.Token); err != nil {
		log.Debug().Err(err).Str("username", sess.Username).Msg("stored token rejected")
		c.clearStoredSession()
		return false
	}

	c.mu.Lock()
	c.sess = &sess
	c.mu.Unlock()

	c.ui.SetUser(sess.Username)
	c.ui.SetRoom(c.Room())

	c.loadHistory(ctx)
	c.openChannel(ctx)

	return true
}

// Logout clears in-memory and durable session state and closes any open
// channel, returning the controller to its initial logged-out state.
func (c *Controller) Logout() {
	c.mu.Lock()
	ch := c.ch
	c.ch = nil
	c.sess = nil
	c.presence = model.Presence{}
	c.room = DefaultRoom
	c.mu.Unlock()

	if ch != nil {
		ch.Close()
	}
	c.clearStoredSession()
}

// SwitchRoom makes room the active one: the presence display resets to a
// placeholder of one until the next server push, the old channel closes, and
// a new channel plus history load come up for the new room. Selecting the
// already-active room is a no-op.
func (c *Controller) SwitchRoom(ctx context.Context, room string) {
	c.mu.Lock()
	if room == c.room {
		c.mu.Unlock()
		return
	}
	c.room = room
	c.presence = model.Presence{Count: 1}
	placeholder := c.presence
	loggedIn := c.sess != nil
	c.mu.Unlock()

	c.ui.SetRoom(room)
	c.ui.RenderPresence(placeholder)

	if !loggedIn {
		return
	}

	c.openChannel(ctx)
	c.loadHistory(ctx)
}

// Send forwards user input to the live channel. Empty input, a missing
// channel and a channel that is not yet open all drop the send silently.
func (c *Controller) Send(ctx context.Context, text string) {
	c.mu.Lock()
	ch := c.ch
	c.mu.Unlock()

	if ch == nil {
		return
	}
	ch.Send(ctx, text)
}

// Session reports the current session, if any.
func (c *Controller) Session() (model.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return model.Session{}, false
	}
	return *c.sess, true
}

// Room reports the active room.
func (c *Controller) Room() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

// Presence reports the last-known presence snapshot.
func (c *Controller) Presence() model.Presence {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.presence
}

// ChannelState reports the lifecycle state of the current channel.
func (c *Controller) ChannelState() channel.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ch == nil {
		return channel.StateClosed
	}
	return c.ch.State()
}

// openChannel closes the previous channel, if any, and brings up a new one
// for the current (room, token). The dial happens off the caller's goroutine
// so user input is never blocked on the handshake; a send attempted before
// the channel is open is a no-op.
func (c *Controller) openChannel(ctx context.Context) {
	c.mu.Lock()
	if c.sess == nil {
		c.mu.Unlock()
		return
	}
	old := c.ch
	room := c.room
	ch := channel.New(c.api.ChannelURL(room, c.sess.Token), room)
	ch.SetSendLimiter(sendLimit, sendWindow)
	c.ch = ch
	c.mu.Unlock()

	if old != nil {
		old.Close()
	}

	go func() {
		if err := ch.Connect(ctx); err != nil {
			log.Warn().Err(err).Str("room", room).Msg("channel connect failed")
			return
		}
		c.consume(ch)
	}()
}

// consume applies frames from one channel until it closes. Frames from a
// channel that is no longer current are ignored; only the latest channel
// reference is acted upon.
func (c *Controller) consume(ch *channel.Channel) {
	for frame := range ch.Frames() {
		c.mu.Lock()
		current := c.ch == ch
		room := c.room
		c.mu.Unlock()

		if !current {
			return
		}

		switch frame.Type {
		case model.FrameMessage:
			msg := frame.Message()
			c.ui.RenderMessage(msg)
			if err := c.store.CacheMessage(room, msg); err != nil {
				log.Warn().Err(err).Msg("failed to cache message")
			}

		case model.FrameOnlineCount:
			c.mu.Lock()
			c.presence = frame.Presence()
			snapshot := c.presence
			c.mu.Unlock()
			c.ui.RenderPresence(snapshot)
		}
	}

	// Transport-level close with no reconnect: the channel stays closed
	// until the user forces one via room switch or re-login.
	c.mu.Lock()
	if c.ch == ch {
		log.Debug().Str("room", ch.Room()).Msg("channel closed by transport")
	}
	c.mu.Unlock()
}

// loadHistory fetches and renders the transcript for the active room. On
// failure the current transcript stays as-is unless a cached copy exists,
// and nothing is surfaced to the user beyond a log entry.
func (c *Controller) loadHistory(ctx context.Context) {
	c.mu.Lock()
	if c.sess == nil {
		c.mu.Unlock()
		return
	}
	token := c.sess.Token
	room := c.room
	c.mu.Unlock()

	messages, err := c.api.Messages(ctx, token, room)
	if err != nil {
		log.Warn().Err(err).Str("room", room).Msg("failed to load history")

		cached, cacheErr := c.store.CachedMessages(room)
		if cacheErr != nil || len(cached) == 0 {
			return
		}
		c.ui.ResetTranscript()
		for _, msg := range cached {
			c.ui.RenderMessage(msg)
		}
		return
	}

	c.ui.ResetTranscript()
	for _, msg := range messages {
		c.ui.RenderMessage(msg)
	}

	if err := c.store.ReplaceRoomCache(room, messages); err != nil {
		log.Warn().Err(err).Str("room", room).Msg("failed to refresh message cache")
	}
}

func (c *Controller) clearStoredSession() {
	if err := c.store.ClearSession(); err != nil {
		log.Warn().Err(err).Msg("failed to clear stored session")
	}
}

// rejectionDetail extracts the server's detail text from a refused login.
func rejectionDetail(err error) string {
	var rej *api.RejectionError
	if errors.As(err, &rej) && rej.Detail != "" {
		return rej.Detail
	}
	return "Login failed"
}
