// Package model defines data structure.
package model

// Session holds the authenticated identity for the lifetime of the client.
// A non-nil in-memory session always has a durable copy in the store, until
// explicit logout or a failed revalidation at startup.
type Session struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}

// Presence is the last-known online snapshot for the active room. It is
// replaced wholesale on every online_count frame, never merged.
type Presence struct {
	Count int      `json:"count"`
	Users []string `json:"users"`
}
