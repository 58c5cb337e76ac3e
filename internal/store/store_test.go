package store

import (
	"testing"
	"time"

	"github.com/KlementevYP/messager/internal/model"
)

func openStore(t *testing.T, dir string) *Store {
	t.Helper()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %+v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSessionRoundtrip(t *testing.T) {
	s := openStore(t, t.TempDir())

	if _, ok, err := s.LoadSession(); err != nil || ok {
		t.Fatalf("fresh store should have no session: ok=%v err=%+v", ok, err)
	}

	want := model.Session{Username: "alice", Token: "T"}
	if err := s.SaveSession(want); err != nil {
		t.Fatalf("SaveSession() error = %+v", err)
	}

	got, ok, err := s.LoadSession()
	if err != nil || !ok {
		t.Fatalf("LoadSession() ok=%v err=%+v", ok, err)
	}
	if got != want {
		t.Errorf("want %+v, got %+v", want, got)
	}

	if err := s.ClearSession(); err != nil {
		t.Fatalf("ClearSession() error = %+v", err)
	}
	if _, ok, _ := s.LoadSession(); ok {
		t.Error("session should be gone after ClearSession()")
	}

	// Clearing again is a no-op.
	if err := s.ClearSession(); err != nil {
		t.Errorf("second ClearSession() error = %+v", err)
	}
}

func TestSessionSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %+v", err)
	}
	want := model.Session{Username: "alice", Token: "T"}
	if err := s.SaveSession(want); err != nil {
		t.Fatalf("SaveSession() error = %+v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %+v", err)
	}

	s2 := openStore(t, dir)
	got, ok, err := s2.LoadSession()
	if err != nil || !ok {
		t.Fatalf("LoadSession() after reopen: ok=%v err=%+v", ok, err)
	}
	if got != want {
		t.Errorf("want %+v, got %+v", want, got)
	}
}

func TestClientIDStable(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %+v", err)
	}

	first, err := s.ClientID()
	if err != nil {
		t.Fatalf("ClientID() error = %+v", err)
	}
	if first == "" {
		t.Fatal("ClientID() returned empty id")
	}

	again, err := s.ClientID()
	if err != nil {
		t.Fatalf("ClientID() error = %+v", err)
	}
	if again != first {
		t.Errorf("id changed within one open: %s vs %s", first, again)
	}
	s.Close()

	s2 := openStore(t, dir)
	reopened, err := s2.ClientID()
	if err != nil {
		t.Fatalf("ClientID() error = %+v", err)
	}
	if reopened != first {
		t.Errorf("id changed across reopen: %s vs %s", first, reopened)
	}
}

func msg(user, content string) model.Message {
	return model.Message{
		Username:  user,
		Content:   content,
		Timestamp: model.Timestamp{Time: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
	}
}

func TestMessageCacheOrder(t *testing.T) {
	s := openStore(t, t.TempDir())

	for _, m := range []model.Message{msg("a", "one"), msg("b", "two"), msg("a", "three")} {
		if err := s.CacheMessage("General", m); err != nil {
			t.Fatalf("CacheMessage() error = %+v", err)
		}
	}

	got, err := s.CachedMessages("General")
	if err != nil {
		t.Fatalf("CachedMessages() error = %+v", err)
	}
	if len(got) != 3 {
		t.Fatalf("want 3 cached messages, got %d", len(got))
	}
	for i, want := range []string{"one", "two", "three"} {
		if got[i].Content != want {
			t.Errorf("position %d: want %q, got %q", i, want, got[i].Content)
		}
	}

	// Other rooms are untouched.
	other, err := s.CachedMessages("Random")
	if err != nil {
		t.Fatalf("CachedMessages() error = %+v", err)
	}
	if len(other) != 0 {
		t.Errorf("want empty cache for other room, got %d entries", len(other))
	}
}

func TestSlashBearingRoomsStayIsolated(t *testing.T) {
	s := openStore(t, t.TempDir())

	// Room names come from raw user input; a slash-bearing name must not
	// fall inside another room's key range.
	if err := s.CacheMessage("General", msg("a", "public")); err != nil {
		t.Fatalf("CacheMessage() error = %+v", err)
	}
	if err := s.CacheMessage("General/private", msg("b", "secret")); err != nil {
		t.Fatalf("CacheMessage() error = %+v", err)
	}

	got, err := s.CachedMessages("General")
	if err != nil {
		t.Fatalf("CachedMessages() error = %+v", err)
	}
	if len(got) != 1 || got[0].Content != "public" {
		t.Fatalf("room cache leaked across rooms: %+v", got)
	}

	// Replacing one room's cache must not wipe the other's.
	if err := s.ReplaceRoomCache("General", []model.Message{msg("a", "refreshed")}); err != nil {
		t.Fatalf("ReplaceRoomCache() error = %+v", err)
	}
	nested, err := s.CachedMessages("General/private")
	if err != nil {
		t.Fatalf("CachedMessages() error = %+v", err)
	}
	if len(nested) != 1 || nested[0].Content != "secret" {
		t.Errorf("nested room cache clobbered by replace: %+v", nested)
	}
}

func TestReplaceRoomCache(t *testing.T) {
	s := openStore(t, t.TempDir())

	if err := s.CacheMessage("General", msg("a", "stale")); err != nil {
		t.Fatalf("CacheMessage() error = %+v", err)
	}

	fresh := []model.Message{msg("b", "new one"), msg("c", "new two")}
	if err := s.ReplaceRoomCache("General", fresh); err != nil {
		t.Fatalf("ReplaceRoomCache() error = %+v", err)
	}

	got, err := s.CachedMessages("General")
	if err != nil {
		t.Fatalf("CachedMessages() error = %+v", err)
	}
	if len(got) != 2 || got[0].Content != "new one" || got[1].Content != "new two" {
		t.Errorf("cache not replaced: %+v", got)
	}

	// Appending after a replace continues the sequence.
	if err := s.CacheMessage("General", msg("d", "appended")); err != nil {
		t.Fatalf("CacheMessage() error = %+v", err)
	}
	got, _ = s.CachedMessages("General")
	if len(got) != 3 || got[2].Content != "appended" {
		t.Errorf("append after replace broken: %+v", got)
	}
}

func TestCacheSequenceSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %+v", err)
	}
	if err := s.CacheMessage("General", msg("a", "before")); err != nil {
		t.Fatalf("CacheMessage() error = %+v", err)
	}
	s.Close()

	s2 := openStore(t, dir)
	if err := s2.CacheMessage("General", msg("a", "after")); err != nil {
		t.Fatalf("CacheMessage() error = %+v", err)
	}

	got, err := s2.CachedMessages("General")
	if err != nil {
		t.Fatalf("CachedMessages() error = %+v", err)
	}
	if len(got) != 2 || got[0].Content != "before" || got[1].Content != "after" {
		t.Errorf("sequence not continued across reopen: %+v", got)
	}
}
