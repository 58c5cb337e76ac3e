package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTimestampUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    time.Time
		wantErr bool
	}{
		{
			// The backend serializes utcnow().isoformat() with no zone.
			"naive_ISO8601",
			`"2024-05-01T12:30:45.123456"`,
			time.Date(2024, 5, 1, 12, 30, 45, 123456000, time.UTC),
			false,
		},
		{
			"RFC3339",
			`"2024-05-01T12:30:45Z"`,
			time.Date(2024, 5, 1, 12, 30, 45, 0, time.UTC),
			false,
		},
		{
			"naive_without_fraction",
			`"2024-05-01T12:30:45"`,
			time.Date(2024, 5, 1, 12, 30, 45, 0, time.UTC),
			false,
		},
		{"garbage", `"yesterday"`, time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts Timestamp
			err := json.Unmarshal([]byte(tt.payload), &ts)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal() error = %+v", err)
			}
			if !tt.wantErr && !ts.Equal(tt.want) {
				t.Errorf("want %v, got %v", tt.want, ts.Time)
			}
		})
	}
}

func TestFrameDispatchFields(t *testing.T) {
	payload := []byte(`{"type":"message","username":"bob","content":"hi","timestamp":"2024-05-01T12:30:45"}`)

	var frame Frame
	if err := json.Unmarshal(payload, &frame); err != nil {
		t.Fatalf("Unmarshal() error = %+v", err)
	}

	if frame.Type != FrameMessage {
		t.Errorf("want type %q, got %q", FrameMessage, frame.Type)
	}

	msg := frame.Message()
	if msg.Username != "bob" || msg.Content != "hi" {
		t.Errorf("unexpected message fields: %+v", msg)
	}

	presence := []byte(`{"type":"online_count","count":2,"users":["alice","bob"]}`)
	if err := json.Unmarshal(presence, &frame); err != nil {
		t.Fatalf("Unmarshal() error = %+v", err)
	}

	p := frame.Presence()
	if p.Count != 2 || len(p.Users) != 2 {
		t.Errorf("unexpected presence fields: %+v", p)
	}
}
