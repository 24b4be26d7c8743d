package session

import (
	"context"
	"testing"
	"time"

	"browserctl/internal/config"
	"browserctl/pkg/apierrors"
	"browserctl/pkg/models"
)

func newTestStore(t *testing.T, cfg config.SessionConfig) *Store {
	t.Helper()
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Hour
	}
	s := NewStore(cfg, nil)
	t.Cleanup(s.Close)
	return s
}

func TestCreateAndGet(t *testing.T) {
	s := newTestStore(t, config.SessionConfig{TTLDefault: time.Minute})

	sess, err := s.Create(context.Background(), "user-1", "alice", nil, nil, nil, 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sess.State != models.SessionActive {
		t.Fatalf("State = %v, want active", sess.State)
	}

	got, err := s.Get(sess.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.UserID != "user-1" {
		t.Fatalf("UserID = %q, want user-1", got.UserID)
	}
}

func TestCreateHonorsExplicitTTL(t *testing.T) {
	s := newTestStore(t, config.SessionConfig{TTLDefault: time.Hour})

	before := time.Now()
	sess, err := s.Create(context.Background(), "user-1", "alice", nil, nil, nil, 5*time.Second)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sess.ExpiresAt.After(before.Add(10 * time.Second)) {
		t.Fatalf("ExpiresAt too far out: %v", sess.ExpiresAt)
	}
}

func TestGetUnknownReturnsNotFound(t *testing.T) {
	s := newTestStore(t, config.SessionConfig{TTLDefault: time.Minute})
	_, err := s.Get("missing")
	if apierrors.As(err).Kind != apierrors.KindNotFound {
		t.Fatalf("Get(missing) = %v, want NOT_FOUND", err)
	}
}

func TestCreateEnforcesMaxPerUser(t *testing.T) {
	s := newTestStore(t, config.SessionConfig{TTLDefault: time.Minute, MaxPerUser: 1})

	if _, err := s.Create(context.Background(), "user-1", "a", nil, nil, nil, 0); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	_, err := s.Create(context.Background(), "user-1", "a", nil, nil, nil, 0)
	if apierrors.As(err) == nil || apierrors.As(err).Kind != apierrors.KindConflict {
		t.Fatalf("second Create = %v, want CONFLICT", err)
	}

	// A different user is unaffected by user-1's limit.
	if _, err := s.Create(context.Background(), "user-2", "b", nil, nil, nil, 0); err != nil {
		t.Fatalf("other user's Create: %v", err)
	}
}

func TestDeleteRemovesSession(t *testing.T) {
	s := newTestStore(t, config.SessionConfig{TTLDefault: time.Minute})
	sess, _ := s.Create(context.Background(), "user-1", "a", nil, nil, nil, 0)

	if err := s.Delete(context.Background(), sess.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(sess.ID); apierrors.As(err).Kind != apierrors.KindNotFound {
		t.Fatalf("session still present after Delete")
	}
}

func TestListFiltersByUserAndStatus(t *testing.T) {
	s := newTestStore(t, config.SessionConfig{TTLDefault: time.Minute})
	a, _ := s.Create(context.Background(), "user-1", "a", nil, nil, nil, 0)
	_, _ = s.Create(context.Background(), "user-2", "b", nil, nil, nil, 0)

	got := s.List(models.SessionFilter{UserID: "user-1"})
	if len(got) != 1 || got[0].ID != a.ID {
		t.Fatalf("List(userID=user-1) = %v, want just %s", got, a.ID)
	}

	all := s.List(models.SessionFilter{})
	if len(all) != 2 {
		t.Fatalf("List({}) = %d sessions, want 2", len(all))
	}
}

func TestTouchRefreshesExpiryAndReactivates(t *testing.T) {
	s := newTestStore(t, config.SessionConfig{TTLDefault: time.Minute})
	sess, _ := s.Create(context.Background(), "user-1", "a", nil, nil, nil, 0)

	sh := s.shardFor(sess.ID)
	sh.mu.Lock()
	sh.sessions[sess.ID].State = models.SessionIdle
	sh.mu.Unlock()

	if err := s.Touch(context.Background(), sess.ID); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	got, _ := s.Get(sess.ID)
	if got.State != models.SessionActive {
		t.Fatalf("State after Touch = %v, want active", got.State)
	}
}

func TestAddAndRemoveConnection(t *testing.T) {
	s := newTestStore(t, config.SessionConfig{TTLDefault: time.Minute})
	sess, _ := s.Create(context.Background(), "user-1", "a", nil, nil, nil, 0)

	if err := s.AddConnection(sess.ID, "conn-1"); err != nil {
		t.Fatalf("AddConnection: %v", err)
	}
	got, _ := s.Get(sess.ID)
	if _, ok := got.ConnectionIDs["conn-1"]; !ok {
		t.Fatalf("conn-1 missing from ConnectionIDs")
	}

	s.RemoveConnection(sess.ID, "conn-1")
	got, _ = s.Get(sess.ID)
	if _, ok := got.ConnectionIDs["conn-1"]; ok {
		t.Fatalf("conn-1 still present after RemoveConnection")
	}
}

func TestSubscribeReceivesMatchingEventsOnly(t *testing.T) {
	s := newTestStore(t, config.SessionConfig{TTLDefault: time.Minute})
	ch, cancel := s.Subscribe(EventFilter{UserID: "user-1"})
	defer cancel()

	_, err := s.Create(context.Background(), "user-1", "a", nil, nil, nil, 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err = s.Create(context.Background(), "user-2", "b", nil, nil, nil, 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	select {
	case ev := <-ch:
		if ev.UserID != "user-1" {
			t.Fatalf("received event for %q, want user-1", ev.UserID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for subscribed event")
	}

	select {
	case ev := <-ch:
		t.Fatalf("unexpected second event for a non-matching user: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSweepExpiredRemovesPastDeadline(t *testing.T) {
	s := newTestStore(t, config.SessionConfig{TTLDefault: time.Minute})
	sess, _ := s.Create(context.Background(), "user-1", "a", nil, nil, nil, time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	s.sweepExpired()

	if _, err := s.Get(sess.ID); apierrors.As(err).Kind != apierrors.KindNotFound {
		t.Fatalf("expired session still present after sweepExpired")
	}
}
