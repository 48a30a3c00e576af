package repository

import (
	"context"
	"errors"

	"realtime_chat_service/internal/member/domain"
	"realtime_chat_service/pkg/database"
)

// ErrSessionNotFound 沒有登入 session
var ErrSessionNotFound = errors.New("session not found")

// SessionRepository member login session, key is member id
type SessionRepository interface {
	FindSession(ctx context.Context, memberID string) (*domain.MemberSession, error)
}

type sessionRepository struct {
	redisRepo database.RedisRepository[domain.MemberSession]
}

// NewSessionRepository create a SessionRepository on top of redis
func NewSessionRepository(redisRepo database.RedisRepository[domain.MemberSession]) SessionRepository {
	return &sessionRepository{redisRepo: redisRepo}
}

func (r *sessionRepository) FindSession(ctx context.Context, memberID string) (*domain.MemberSession, error) {
	session, err := r.redisRepo.Get(ctx, memberID)
	if err != nil {
		if errors.Is(err, database.ErrRedisNil) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &session, nil
}
