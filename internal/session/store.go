// Package session owns the Session Store: the sharded in-memory table of
// Sessions, their lifecycle transitions, and the event stream consumed by
// the WebSocket fabric and gRPC's StreamSessionEvents.
package session

import (
	"context"
	"sync"
	"time"

	"browserctl/internal/config"
	"browserctl/internal/logging"
	"browserctl/internal/logging/types"
	"browserctl/pkg/apierrors"
	"browserctl/pkg/idgen"
	"browserctl/pkg/models"
)

const shardCount = 16

type shard struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
}

// Store is the sharded, in-memory home of every live Session. When
// cfg.Persist is set it also mirrors writes to a Persister (Redis-backed)
// so sessions survive a restart.
type Store struct {
	cfg       config.SessionConfig
	shards    [shardCount]*shard
	persister Persister
	logger    types.Logger

	subsMu sync.Mutex
	subs   map[string]chan models.SessionEvent

	cleanupTicker *time.Ticker
	ctx           context.Context
	cancel        context.CancelFunc
}

// Persister is the durable backing store for sessions, implemented by a
// Redis-backed adapter; a nil Persister means sessions are memory-only.
type Persister interface {
	Save(ctx context.Context, sess *models.Session) error
	Delete(ctx context.Context, id string) error
	LoadAll(ctx context.Context) ([]*models.Session, error)
}

// NewStore builds a Store and, if persister is non-nil and cfg.Persist is
// set, restores sessions from it before returning.
func NewStore(cfg config.SessionConfig, persister Persister) *Store {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Store{
		cfg:       cfg,
		persister: persister,
		logger:    logging.GetGlobalLogger(),
		subs:      make(map[string]chan models.SessionEvent),
		ctx:       ctx,
		cancel:    cancel,
	}
	for i := range s.shards {
		s.shards[i] = &shard{sessions: make(map[string]*models.Session)}
	}

	if cfg.Persist && persister != nil {
		if sessions, err := persister.LoadAll(ctx); err == nil {
			for _, sess := range sessions {
				s.shardFor(sess.ID).sessions[sess.ID] = sess
			}
			s.logger.Info("restored sessions from persister", map[string]interface{}{"count": len(sessions)})
		} else {
			s.logger.Warn("failed to restore sessions", map[string]interface{}{"error": err.Error()})
		}
	}

	s.cleanupTicker = time.NewTicker(cfg.CleanupInterval)
	go s.cleanupLoop()

	return s
}

func (s *Store) shardFor(id string) *shard {
	var h uint32
	for i := 0; i < len(id); i++ {
		h = h*31 + uint32(id[i])
	}
	return s.shards[h%shardCount]
}

// Create builds and stores a new Session directly in the "active" state.
func (s *Store) Create(ctx context.Context, userID, username string, roles, scopes []string, metadata map[string]interface{}, ttl time.Duration) (*models.Session, error) {
	if ttl <= 0 {
		ttl = s.cfg.TTLDefault
	}

	if s.cfg.MaxPerUser > 0 {
		if n := s.countByUser(userID); n >= s.cfg.MaxPerUser {
			return nil, apierrors.Conflict("session limit reached for user").WithCode("SESSION_LIMIT_REACHED")
		}
	}

	now := time.Now()
	sess := &models.Session{
		ID:             idgen.NewSessionID(),
		UserID:         userID,
		Username:       username,
		Roles:          roles,
		Scopes:         scopes,
		Metadata:       metadata,
		ConnectionIDs:  make(map[string]struct{}),
		State:          models.SessionActive,
		CreatedAt:      now,
		UpdatedAt:      now,
		LastAccessedAt: now,
		ExpiresAt:      now.Add(ttl),
	}

	sh := s.shardFor(sess.ID)
	sh.mu.Lock()
	sh.sessions[sess.ID] = sess
	sh.mu.Unlock()

	s.persist(ctx, sess)
	s.publish(models.SessionEvent{Type: "session_created", SessionID: sess.ID, UserID: sess.UserID, Timestamp: now, Session: sess})

	return sess, nil
}

// Get returns the session with id, or a NOT_FOUND error.
func (s *Store) Get(id string) (*models.Session, error) {
	sh := s.shardFor(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	sess, ok := sh.sessions[id]
	if !ok {
		return nil, apierrors.NotFound("session", id)
	}
	return sess, nil
}

// Touch refreshes a session's last-accessed time and extends its expiry,
// called on every authenticated request that references the session.
func (s *Store) Touch(ctx context.Context, id string) error {
	sh := s.shardFor(id)
	sh.mu.Lock()
	sess, ok := sh.sessions[id]
	if !ok {
		sh.mu.Unlock()
		return apierrors.NotFound("session", id)
	}
	sess.Refresh(time.Now(), s.cfg.TTLDefault)
	if sess.State == models.SessionIdle {
		sess.State = models.SessionActive
	}
	sh.mu.Unlock()

	s.persist(ctx, sess)
	return nil
}

// List returns sessions matching filter.
func (s *Store) List(filter models.SessionFilter) []*models.Session {
	var out []*models.Session
	if len(filter.IDs) > 0 {
		for _, id := range filter.IDs {
			if sess, err := s.Get(id); err == nil {
				out = append(out, sess)
			}
		}
		return out
	}

	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, sess := range sh.sessions {
			if filter.UserID != "" && sess.UserID != filter.UserID {
				continue
			}
			if filter.Status != "" && sess.State != filter.Status {
				continue
			}
			out = append(out, sess)
		}
		sh.mu.RUnlock()
	}
	return out
}

func (s *Store) countByUser(userID string) int {
	count := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, sess := range sh.sessions {
			if sess.UserID == userID {
				count++
			}
		}
		sh.mu.RUnlock()
	}
	return count
}

// Delete terminates and removes a session.
func (s *Store) Delete(ctx context.Context, id string) error {
	sh := s.shardFor(id)
	sh.mu.Lock()
	sess, ok := sh.sessions[id]
	if !ok {
		sh.mu.Unlock()
		return apierrors.NotFound("session", id)
	}
	sess.State = models.SessionTerminated
	delete(sh.sessions, id)
	sh.mu.Unlock()

	if s.persister != nil {
		_ = s.persister.Delete(ctx, id)
	}
	s.publish(models.SessionEvent{Type: "session_deleted", SessionID: id, UserID: sess.UserID, Timestamp: time.Now()})
	return nil
}

// AddConnection records that fabric connection connID belongs to session id.
func (s *Store) AddConnection(id, connID string) error {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sess, ok := sh.sessions[id]
	if !ok {
		return apierrors.NotFound("session", id)
	}
	sess.ConnectionIDs[connID] = struct{}{}
	return nil
}

// RemoveConnection drops a fabric connection from a session.
func (s *Store) RemoveConnection(id, connID string) {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if sess, ok := sh.sessions[id]; ok {
		delete(sess.ConnectionIDs, connID)
	}
}

func (s *Store) persist(ctx context.Context, sess *models.Session) {
	if !s.cfg.Persist || s.persister == nil {
		return
	}
	if err := s.persister.Save(ctx, sess); err != nil {
		s.logger.Warn("session persist failed", map[string]interface{}{"session_id": sess.ID, "error": err.Error()})
	}
}

// Subscribe registers a channel that receives every SessionEvent matching
// filter until the returned cancel func is called.
func (s *Store) Subscribe(filter EventFilter) (<-chan models.SessionEvent, func()) {
	ch := make(chan models.SessionEvent, 32)
	id := idgen.NewSubscriptionID()

	s.subsMu.Lock()
	s.subs[id] = ch
	s.subsMu.Unlock()

	filtered := make(chan models.SessionEvent, 32)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case ev, ok := <-ch:
				if !ok {
					close(filtered)
					return
				}
				if filter.matches(ev) {
					select {
					case filtered <- ev:
					default:
					}
				}
			case <-done:
				close(filtered)
				return
			}
		}
	}()

	cancel := func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
		close(done)
	}

	return filtered, cancel
}

// EventFilter narrows a Subscribe call to one session or one user.
type EventFilter struct {
	SessionID string
	UserID    string
}

func (f EventFilter) matches(ev models.SessionEvent) bool {
	if f.SessionID != "" && ev.SessionID != f.SessionID {
		return false
	}
	if f.UserID != "" && ev.UserID != f.UserID {
		return false
	}
	return true
}

func (s *Store) publish(ev models.SessionEvent) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (s *Store) cleanupLoop() {
	for {
		select {
		case <-s.cleanupTicker.C:
			s.sweepExpired()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Store) sweepExpired() {
	now := time.Now()
	for _, sh := range s.shards {
		sh.mu.Lock()
		for id, sess := range sh.sessions {
			if now.After(sess.ExpiresAt) {
				sess.State = models.SessionExpiring
				delete(sh.sessions, id)
				s.publish(models.SessionEvent{Type: "session_deleted", SessionID: id, UserID: sess.UserID, Timestamp: now})
			} else if sess.State == models.SessionActive && now.Sub(sess.LastAccessedAt) > s.cfg.TTLDefault/2 {
				sess.State = models.SessionIdle
			}
		}
		sh.mu.Unlock()
	}
}

// Close stops the store's background cleanup loop.
func (s *Store) Close() {
	s.cancel()
	s.cleanupTicker.Stop()
}
