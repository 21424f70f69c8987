package telegram

import (
	"errors"
	"sync"
	"time"
)

var (
	errNoSession     = errors.New("no active session")
	errTooManyImages = errors.New("too many images")
)

// PendingFile is a Telegram file queued for extraction.
type PendingFile struct {
	FileID   string
	MIMEType string
}

// Session is a coach's in-progress upload for one client in one chat.
type Session struct {
	ChatID    int64
	UserID    int64
	ClientID  string
	Files     []PendingFile
	ExpiresAt time.Time
	CreatedAt time.Time
}

// SessionStore keeps pending upload sessions per chat. Sessions expire
// after ttl without activity.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewSessionStore creates an empty SessionStore.
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[int64]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Start opens a session for chatID, replacing any previous one.
func (s *SessionStore) Start(chatID, userID int64, clientID string) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sess := &Session{
		ChatID:    chatID,
		UserID:    userID,
		ClientID:  clientID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	s.sessions[chatID] = sess
	return *sess
}

// GetActive returns a copy of the chat's session if it has not expired.
func (s *SessionStore) GetActive(chatID int64) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.active(chatID)
	if !ok {
		return Session{}, false
	}
	cp := *sess
	cp.Files = append([]PendingFile(nil), sess.Files...)
	return cp, true
}

// AddFile queues a file on the chat's session and returns the new count.
func (s *SessionStore) AddFile(chatID int64, f PendingFile, max int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.active(chatID)
	if !ok {
		return 0, errNoSession
	}
	if max > 0 && len(sess.Files) >= max {
		return len(sess.Files), errTooManyImages
	}
	sess.Files = append(sess.Files, f)
	sess.ExpiresAt = s.now().Add(s.ttl)
	return len(sess.Files), nil
}

// Take removes and returns the chat's active session.
func (s *SessionStore) Take(chatID int64) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.active(chatID)
	if !ok {
		return Session{}, false
	}
	delete(s.sessions, chatID)
	return *sess, true
}

// Delete drops the chat's session. It reports whether one was active.
func (s *SessionStore) Delete(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.active(chatID)
	delete(s.sessions, chatID)
	return ok
}

// CleanupExpired removes expired sessions and returns how many were dropped.
func (s *SessionStore) CleanupExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, sess := range s.sessions {
		if !now.Before(sess.ExpiresAt) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// active must be called with mu held.
func (s *SessionStore) active(chatID int64) (*Session, bool) {
	sess, ok := s.sessions[chatID]
	if !ok {
		return nil, false
	}
	if !s.now().Before(sess.ExpiresAt) {
		delete(s.sessions, chatID)
		return nil, false
	}
	return sess, true
}
