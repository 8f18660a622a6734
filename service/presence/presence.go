// Package presence tracks per-user online/offline state in the shared
// cache. Presence is a soft signal: cache failures are logged and
// swallowed, never allowed to block a join or disconnect.
package presence

import (
	"context"
	"time"

	"github.com/DoraeChat/DoraeChat-BE-sub000/logger"
	"github.com/DoraeChat/DoraeChat-BE-sub000/service/storage"
)

const defaultTTL = 24 * time.Hour

// Record is the cached per-user presence value. LastLogin is nil while the
// user is online and stamped on the transition to offline.
type Record struct {
	IsOnline  bool       `json:"isOnline"`
	LastLogin *time.Time `json:"lastLogin"`
}

// Snapshot is what queries return. CacheDegraded marks a lookup failure,
// so callers can tell "really offline" from "could not look it up".
type Snapshot struct {
	IsOnline      bool       `json:"isOnline"`
	LastLogin     *time.Time `json:"lastLogin"`
	CacheDegraded bool       `json:"cacheDegraded,omitempty"`
}

type Service struct {
	cache storage.Cache
	ttl   time.Duration
	clock func() time.Time
}

func NewService(cache storage.Cache) *Service {
	return &Service{cache: cache, ttl: defaultTTL, clock: time.Now}
}

// NewServiceWithClock injects a clock for TTL tests.
func NewServiceWithClock(cache storage.Cache, clock func() time.Time) *Service {
	s := NewService(cache)
	s.clock = clock
	return s
}

// MarkOnline upserts {isOnline:true, lastLogin:null} with a fresh TTL.
// Concurrent transitions for the same user resolve last-completion-wins.
func (s *Service) MarkOnline(ctx context.Context, userID string) {
	if userID == "" {
		return
	}
	rec := Record{IsOnline: true, LastLogin: nil}
	if err := s.cache.SetJSON(ctx, storage.PresenceKey(userID), rec, s.ttl); err != nil {
		logger.Warnf("[presence] mark online user=%s: %v", userID, err)
	}
}

// MarkOffline stamps lastLogin=now and refreshes the TTL.
func (s *Service) MarkOffline(ctx context.Context, userID string) {
	if userID == "" {
		return
	}
	now := s.clock()
	rec := Record{IsOnline: false, LastLogin: &now}
	if err := s.cache.SetJSON(ctx, storage.PresenceKey(userID), rec, s.ttl); err != nil {
		logger.Warnf("[presence] mark offline user=%s: %v", userID, err)
	}
}

// QueryOnline never fails: absent records and cache errors both come back
// as the offline default, the latter flagged CacheDegraded.
func (s *Service) QueryOnline(ctx context.Context, userID string) Snapshot {
	var rec Record
	found, err := s.cache.GetJSON(ctx, storage.PresenceKey(userID), &rec)
	if err != nil {
		logger.Warnf("[presence] query user=%s: %v", userID, err)
		return Snapshot{CacheDegraded: true}
	}
	if !found {
		return Snapshot{}
	}
	return Snapshot{IsOnline: rec.IsOnline, LastLogin: rec.LastLogin}
}
