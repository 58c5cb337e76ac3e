package model

// Frame kinds recognized on the channel. Anything else is dropped.
const (
	FrameMessage     = "message"
	FrameOnlineCount = "online_count"
)

// Frame is a tagged payload received on the real-time channel. The server
// sends message frames and online_count frames on the same stream; the Type
// field decides which half of the struct is populated.
type Frame struct {
	Type      string    `json:"type"`
	Username  string    `json:"username,omitempty"`
	Content   string    `json:"content,omitempty"`
	Timestamp Timestamp `json:"timestamp,omitzero"`
	Count     int       `json:"count,omitempty"`
	Users     []string  `json:"users,omitempty"`
}

// Message extracts the message half of a frame.
func (f Frame) Message() Message {
	return Message{
		Username:  f.Username,
		Content:   f.Content,
		Timestamp: f.Timestamp,
	}
}

// Presence extracts the online_count half of a frame.
func (f Frame) Presence() Presence {
	return Presence{
		Count: f.Count,
		Users: f.Users,
	}
}
