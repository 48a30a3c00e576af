package app

import (
	"context"
	"errors"

	memberdomain "realtime_chat_service/internal/member/domain"
	memberrepo "realtime_chat_service/internal/member/repository"
	errprocess "realtime_chat_service/pkg/err"
	"realtime_chat_service/pkg/logger"
	"realtime_chat_service/pkg/token"

	"go.uber.org/zap"
)

// Authenticator resolve a signed token to its member
type Authenticator struct {
	parse    func(string) (*token.Claims, error)
	sessions memberrepo.SessionRepository
	members  memberrepo.MemberRepository
}

// NewAuthenticator sessions may be nil, then only the token signature is checked
func NewAuthenticator(members memberrepo.MemberRepository, sessions memberrepo.SessionRepository) *Authenticator {
	return &Authenticator{
		parse:    token.ParseJWT,
		sessions: sessions,
		members:  members,
	}
}

// Authenticate token -> member or an Authentication error
func (a *Authenticator) Authenticate(ctx context.Context, tokenStr string) (*memberdomain.Member, error) {
	if tokenStr == "" {
		return nil, errprocess.Set(errprocess.KindAuthentication, "Missing token")
	}

	claims, err := a.parse(tokenStr)
	if err != nil {
		logger.Log.Debug("token rejected", zap.Error(err))
		return nil, errprocess.Set(errprocess.KindAuthentication, "Authentication error")
	}

	if a.sessions != nil {
		session, err := a.sessions.FindSession(ctx, claims.MemberID)
		switch {
		case errors.Is(err, memberrepo.ErrSessionNotFound):
			return nil, errprocess.Set(errprocess.KindAuthentication, "Session expired")
		case err != nil:
			return nil, errprocess.Wrap(errprocess.KindStore, "find session", err)
		case session.Token != tokenStr || session.IsExpired():
			return nil, errprocess.Set(errprocess.KindAuthentication, "Session expired")
		}
	}

	member, err := a.members.FindByID(ctx, claims.MemberID)
	if err != nil {
		if errors.Is(err, memberrepo.ErrMemberNotFound) {
			return nil, errprocess.Set(errprocess.KindAuthentication, "Authentication error")
		}
		return nil, errprocess.Wrap(errprocess.KindStore, "find member", err)
	}
	if !member.CanConnect() {
		return nil, errprocess.Set(errprocess.KindAuthentication, "Member is not allowed to connect")
	}
	return member, nil
}
