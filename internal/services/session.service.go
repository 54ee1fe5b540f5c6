package services

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/squareft/sms-gateway/internal/model"
	"github.com/squareft/sms-gateway/pkg/redis"
)

var ErrSessionNotFound = errors.New("session not found")

const (
	sessionKeyPrefix = "session:"
	sessionIndexKey  = "sessions:active"
)

// SessionService stores adopted token pairs in Redis, keyed by user, and
// keeps an index of active users for the badge sweep.
type SessionService struct {
	redis redis.RedisAdapter
	ttl   time.Duration
}

func NewSessionService(adapter redis.RedisAdapter, ttl time.Duration) *SessionService {
	return &SessionService{
		redis: adapter,
		ttl:   ttl,
	}
}

// Adopt stores a token pair handed over by the auth provider.
func (s *SessionService) Adopt(session model.Session) error {
	if session.UserID == "" {
		return errors.New("user id is required")
	}
	session.RefreshedAt = time.Now()

	if err := s.save(session); err != nil {
		return err
	}
	return s.redis.HSet(sessionIndexKey, session.UserID, "1")
}

func (s *SessionService) Get(userID string) (*model.Session, error) {
	data, err := s.redis.Get(sessionKeyPrefix + userID)
	if err != nil {
		if errors.Is(err, redis.NilError) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	var session model.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Refresh re-stamps the session and re-arms its TTL. The token pair itself
// is unchanged; rotation happens upstream at the auth provider.
func (s *SessionService) Refresh(userID string) (*model.Session, error) {
	session, err := s.Get(userID)
	if err != nil {
		return nil, err
	}
	session.RefreshedAt = time.Now()

	if err := s.save(*session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *SessionService) Clear(userID string) error {
	if err := s.redis.Del(sessionKeyPrefix + userID); err != nil {
		return err
	}
	return s.redis.HDel(sessionIndexKey, userID)
}

// ActiveUserIDs lists users with a tracked session. Entries whose session
// key expired are pruned from the index as they are discovered.
func (s *SessionService) ActiveUserIDs() ([]string, error) {
	index, err := s.redis.HGetAll(sessionIndexKey)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(index))
	for userID := range index {
		n, err := s.redis.Exist(sessionKeyPrefix + userID)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			_ = s.redis.HDel(sessionIndexKey, userID)
			continue
		}
		ids = append(ids, userID)
	}
	return ids, nil
}

func (s *SessionService) save(session model.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.redis.Set(sessionKeyPrefix+session.UserID, data, s.ttl)
}
