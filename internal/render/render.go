// Package render draws the chat transcript. The transcript is append-only:
// history loads reset it, everything else only adds to the end.
package render

import (
	"fmt"
	"html"
	"io"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"

	"github.com/KlementevYP/messager/internal/model"
)

const (
	ansiReset = "\x1b[0m"
	ansiSelf  = "\x1b[36m" // own messages
	ansiOther = "\x1b[33m"
	ansiError = "\x1b[31m"
	ansiFaint = "\x1b[2m"
)

// Terminal renders the transcript, presence line and transient errors to a
// writer. It reads the current username for the self/other distinction but
// never mutates session, channel or presence state.
type Terminal struct {
	mu       sync.Mutex
	w        io.Writer
	policy   *bluemonday.Policy
	username string
	room     string
	color    bool
}

// NewTerminal returns a renderer writing to w with ANSI styling enabled.
func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{
		w:      w,
		policy: bluemonday.StrictPolicy(),
		color:  true,
	}
}

// SetColor toggles ANSI styling.
func (t *Terminal) SetColor(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.color = enabled
}

// SetUser records the session username used for the self/other distinction.
func (t *Terminal) SetUser(username string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.username = username
}

// SetRoom records the active room shown on the transcript header.
func (t *Terminal) SetRoom(room string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.room = room
}

// RenderMessage appends one message to the transcript. Own messages render
// as "You" and are styled distinctly from everyone else's.
func (t *Terminal) RenderMessage(msg model.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	// The browser client injected message content into the DOM; here the
	// same strict policy strips markup before it reaches the terminal.
	content := html.UnescapeString(t.policy.Sanitize(msg.Content))

	self := msg.Username == t.username
	name := msg.Username
	if self {
		name = "You"
	}

	stamp := msg.Timestamp.Local().Format("15:04")

	if t.color {
		tint := ansiOther
		if self {
			tint = ansiSelf
		}
		fmt.Fprintf(t.w, "%s%s%s %s[%s]%s %s\n",
			tint, name, ansiReset, ansiFaint, stamp, ansiReset, content)
		return
	}

	fmt.Fprintf(t.w, "%s [%s] %s\n", name, stamp, content)
}

// ResetTranscript marks the start of a fresh transcript, e.g. after a room
// switch reloads history.
func (t *Terminal) ResetTranscript() {
	t.mu.Lock()
	defer t.mu.Unlock()

	header := t.room
	if header == "" {
		header = "transcript"
	}
	fmt.Fprintf(t.w, "%s\n", strings.Repeat("-", 8)+" "+header+" "+strings.Repeat("-", 8))
}

// RenderPresence draws the current online snapshot.
func (t *Terminal) RenderPresence(p model.Presence) {
	t.mu.Lock()
	defer t.mu.Unlock()

	line := fmt.Sprintf("%d online", p.Count)
	if len(p.Users) > 0 {
		line += ": " + strings.Join(p.Users, ", ")
	}

	if t.color {
		fmt.Fprintf(t.w, "%s%s%s\n", ansiFaint, line, ansiReset)
		return
	}
	fmt.Fprintln(t.w, line)
}

// ShowError surfaces a transient, user-visible error. The terminal analog of
// the browser's auto-dismissing banner is a one-off styled line.
func (t *Terminal) ShowError(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.color {
		fmt.Fprintf(t.w, "%s%s%s\n", ansiError, msg, ansiReset)
		return
	}
	fmt.Fprintln(t.w, msg)
}
