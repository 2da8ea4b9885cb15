package services

import (
	"log"
	"sync"
	"time"
)

const sessionVersion = 1

// VehicleInfo holds decoded vehicle details for a VIN.
type VehicleInfo struct {
	VIN   string `json:"vin"`
	Brand string `json:"brand"`
	Model string `json:"model"`
	Year  string `json:"year"`
}

// Session is the per-user conversational state. It is versioned so older
// persisted shapes can be defaulted on read instead of silently corrupting.
type Session struct {
	Version  int `json:"version"`
	Entities struct {
		VIN  string `json:"vin"`
		Part string `json:"part"` // reserved
	} `json:"entities"`
	Context struct {
		VINSetAt *time.Time `json:"vin_set_at"`
	} `json:"context"`
	// VINDetails caches the decoded vehicle for Entities.VIN. The cache key
	// is the VIN value itself: a mismatch means the cache is stale.
	VINDetails *VehicleInfo `json:"vin_details"`
	State      struct {
		Awaiting string `json:"awaiting"`
	} `json:"state"`
	Meta struct {
		CreatedAt time.Time `json:"created_at"`
		UpdatedAt time.Time `json:"updated_at"`
	} `json:"meta"`
}

// SetVIN stores a VIN and invalidates any cached vehicle details that no
// longer match it.
func (s *Session) SetVIN(vin string) {
	s.Entities.VIN = vin
	now := time.Now()
	s.Context.VINSetAt = &now
	if s.VINDetails != nil && s.VINDetails.VIN != vin {
		s.VINDetails = nil
	}
}

// ClearVIN removes the stored VIN and its cached details.
func (s *Session) ClearVIN() {
	s.Entities.VIN = ""
	s.Context.VINSetAt = nil
	s.VINDetails = nil
}

// CachedVehicle returns the cached details only if they belong to the
// currently stored VIN.
func (s *Session) CachedVehicle() *VehicleInfo {
	if s.VINDetails != nil && s.Entities.VIN != "" && s.VINDetails.VIN == s.Entities.VIN {
		return s.VINDetails
	}
	return nil
}

// SetAwaiting sets or clears the pending conversational state tag.
func (s *Session) SetAwaiting(state string) {
	s.State.Awaiting = state
}

// Awaiting returns the pending conversational state tag, if any.
func (s *Session) Awaiting() string {
	return s.State.Awaiting
}

type sessionEntry struct {
	session   *Session
	expiresAt time.Time
}

// SessionManager manages user sessions
type SessionManager struct {
	sessions   map[string]*sessionEntry
	mu         sync.RWMutex
	sessionTTL time.Duration
	stop       chan struct{}
	stopOnce   sync.Once
}

// NewSessionManager creates a new session manager
func NewSessionManager() *SessionManager {
	sm := &SessionManager{
		sessions:   make(map[string]*sessionEntry),
		sessionTTL: 15 * time.Minute,
		stop:       make(chan struct{}),
	}

	// Start cleanup routine
	go sm.cleanupExpiredSessions()

	return sm
}

// Get fetches the user's session, creating a fresh one when absent or
// expired. The returned value is a copy; call Save to persist mutations.
func (sm *SessionManager) Get(userID string) *Session {
	sm.mu.RLock()
	entry, exists := sm.sessions[userID]
	sm.mu.RUnlock()

	if exists && time.Now().Before(entry.expiresAt) {
		copied := *entry.session
		if copied.Version == 0 {
			// Pre-versioned shape: default missing fields on read.
			copied.Version = sessionVersion
		}
		return &copied
	}

	return newSession()
}

// Save persists the session and refreshes its TTL.
func (sm *SessionManager) Save(userID string, session *Session) {
	session.Meta.UpdatedAt = time.Now()

	copied := *session
	sm.mu.Lock()
	sm.sessions[userID] = &sessionEntry{
		session:   &copied,
		expiresAt: time.Now().Add(sm.sessionTTL),
	}
	sm.mu.Unlock()
}

// Clear explicitly removes a user's session.
func (sm *SessionManager) Clear(userID string) {
	sm.mu.Lock()
	delete(sm.sessions, userID)
	sm.mu.Unlock()
}

// ActiveCount returns the number of unexpired sessions (for monitoring).
func (sm *SessionManager) ActiveCount() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	count := 0
	now := time.Now()
	for _, entry := range sm.sessions {
		if now.Before(entry.expiresAt) {
			count++
		}
	}
	return count
}

// Stop halts the background cleanup routine.
func (sm *SessionManager) Stop() {
	sm.stopOnce.Do(func() { close(sm.stop) })
}

func newSession() *Session {
	s := &Session{Version: sessionVersion}
	now := time.Now()
	s.Meta.CreatedAt = now
	s.Meta.UpdatedAt = now
	return s
}

// cleanupExpiredSessions runs periodically to clean up expired sessions
func (sm *SessionManager) cleanupExpiredSessions() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-sm.stop:
			return
		case <-ticker.C:
		}

		sm.mu.Lock()
		removed := 0
		now := time.Now()
		for userID, entry := range sm.sessions {
			if now.After(entry.expiresAt) {
				delete(sm.sessions, userID)
				removed++
			}
		}
		sm.mu.Unlock()

		if removed > 0 {
			log.Printf("🧹 Cleaned up %d expired sessions", removed)
		}
	}
}
