// Package testutil provides an in-process messenger server mirroring the
// real backend's surface (/token, /validate-token, /messages/{room},
// /ws/{room}) so client packages can test against live HTTP and websocket
// endpoints.
package testutil

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/KlementevYP/messager/internal/model"
)

const tokenSecret = "testutil-secret"

type roomConn struct {
	conn     *websocket.Conn
	username string
	mu       sync.Mutex
}

func (rc *roomConn) write(p []byte) error {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return rc.conn.Write(ctx, websocket.MessageText, p)
}

// Server is a fake messenger backend.
type Server struct {
	httpSrv *httptest.Server

	mu       sync.Mutex
	users    map[string]string // username -> password
	tokens   map[string]string // token -> username
	history  map[string][]model.Message
	rooms    map[string]map[*roomConn]struct{}
	requests atomic.Int64
}

// NewServer starts a fake backend. Callers must Close it.
func NewServer() *Server {
	s := &Server{
		users:   make(map[string]string),
		tokens:  make(map[string]string),
		history: make(map[string][]model.Message),
		rooms:   make(map[string]map[*roomConn]struct{}),
	}

	r := chi.NewRouter()
	r.Use(s.countRequests)
	r.Post("/token", s.handleToken)
	r.Get("/validate-token", s.handleValidate)
	r.Get("/messages/{room}", s.handleMessages)
	r.Get("/ws/{room}", s.handleWs)

	s.httpSrv = httptest.NewServer(r)
	return s
}

// Close shuts the backend down.
func (s *Server) Close() {
	s.httpSrv.Close()
}

// URL is the backend's base URL.
func (s *Server) URL() string {
	return s.httpSrv.URL
}

// Requests reports how many HTTP requests the backend has seen, websocket
// upgrades included.
func (s *Server) Requests() int64 {
	return s.requests.Load()
}

// AddUser registers a login.
func (s *Server) AddUser(username, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[username] = password
}

// AddHistory appends messages to a room's history.
func (s *Server) AddHistory(room string, msgs ...model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[room] = append(s.history[room], msgs...)
}

// History reports a room's stored messages.
func (s *Server) History(room string) []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Message, len(s.history[room]))
	copy(out, s.history[room])
	return out
}

// OpenConns reports the number of live websocket connections to a room.
func (s *Server) OpenConns(room string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms[room])
}

// Inject broadcasts a raw frame to everyone in a room, bypassing message
// handling. Useful for driving unrecognized frame kinds.
func (s *Server) Inject(room string, payload []byte) {
	s.mu.Lock()
	conns := make([]*roomConn, 0, len(s.rooms[room]))
	for rc := range s.rooms[room] {
		conns = append(conns, rc)
	}
	s.mu.Unlock()

	for _, rc := range conns {
		_ = rc.write(payload)
	}
}

func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	username := r.PostFormValue("username")
	password := r.PostFormValue("password")

	s.mu.Lock()
	stored, ok := s.users[username]
	s.mu.Unlock()

	if !ok || stored != password {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"detail": "Incorrect username or password"})
		return
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:  username,
		IssuedAt: jwt.NewNumericDate(time.Now().UTC()),
	}).SignedString([]byte(tokenSecret))
	if err != nil {
		http.Error(w, "token error", http.StatusInternalServerError)
		return
	}

	s.mu.Lock()
	s.tokens[token] = username
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"access_token": token, "token_type": "bearer"})
}

func (s *Server) username(token string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	username, ok := s.tokens[token]
	return username, ok
}

func bearer(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.username(bearer(r)); !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"detail": "Could not validate credentials"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "valid"})
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.username(bearer(r)); !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	room := chi.URLParam(r, "room")

	s.mu.Lock()
	msgs := s.history[room]
	if msgs == nil {
		msgs = []model.Message{}
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(msgs)
}

func (s *Server) handleWs(w http.ResponseWriter, r *http.Request) {
	username, ok := s.username(r.URL.Query().Get("token"))
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	room := chi.URLParam(r, "room")

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return
	}

	rc := &roomConn{conn: conn, username: username}

	s.mu.Lock()
	if s.rooms[room] == nil {
		s.rooms[room] = make(map[*roomConn]struct{})
	}
	s.rooms[room][rc] = struct{}{}
	s.mu.Unlock()

	s.broadcastPresence(room)

	defer func() {
		s.mu.Lock()
		delete(s.rooms[room], rc)
		s.mu.Unlock()
		conn.CloseNow()
		s.broadcastPresence(room)
	}()

	for {
		_, p, err := conn.Read(r.Context())
		if err != nil {
			return
		}

		msg := model.Message{
			Username:  username,
			Content:   string(p),
			Timestamp: model.Timestamp{Time: time.Now().UTC()},
		}

		s.mu.Lock()
		s.history[room] = append(s.history[room], msg)
		s.mu.Unlock()

		frame, _ := json.Marshal(model.Frame{
			Type:      model.FrameMessage,
			Username:  msg.Username,
			Content:   msg.Content,
			Timestamp: msg.Timestamp,
		})
		s.Inject(room, frame)
	}
}

func (s *Server) broadcastPresence(room string) {
	s.mu.Lock()
	users := make([]string, 0, len(s.rooms[room]))
	for rc := range s.rooms[room] {
		users = append(users, rc.username)
	}
	s.mu.Unlock()

	frame, _ := json.Marshal(model.Frame{
		Type:  model.FrameOnlineCount,
		Count: len(users),
		Users: users,
	})
	s.Inject(room, frame)
}
