package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"realtime_chat_service/internal/member/domain"
)

// ErrMemberNotFound no member with given id
var ErrMemberNotFound = errors.New("no member found with given criteria")

// MemberRepository definition get Member info
type MemberRepository interface {
	FindByID(ctx context.Context, memberID string) (*domain.Member, error)
	FindByIDs(ctx context.Context, memberIDs []string) ([]*domain.Member, error)
	SetOnlineStatus(ctx context.Context, memberID string, online bool, lastSeen *time.Time) error
}

type memberRepository struct {
	db *pgxpool.Pool
}

// NewMemberRepository create a MemberRepository
func NewMemberRepository(db *pgxpool.Pool) MemberRepository {
	return &memberRepository{db: db}
}

const memberColumns = "id, member_id, name, username, status, last_seen"

func scanMember(row pgx.Row) (*domain.Member, error) {
	var member domain.Member
	if err := row.Scan(&member.ID, &member.MemberID, &member.Name, &member.Username, &member.Status, &member.LastSeen); err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *memberRepository) FindByID(ctx context.Context, memberID string) (*domain.Member, error) {
	row := r.db.QueryRow(ctx, "SELECT "+memberColumns+" FROM member WHERE member_id = $1", memberID)
	member, err := scanMember(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return member, nil
}

func (r *memberRepository) FindByIDs(ctx context.Context, memberIDs []string) ([]*domain.Member, error) {
	members := []*domain.Member{}
	if len(memberIDs) == 0 {
		return members, nil
	}

	rows, err := r.db.Query(ctx, "SELECT "+memberColumns+" FROM member WHERE member_id = ANY($1)", memberIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, member)
	}
	return members, rows.Err()
}

// SetOnlineStatus online 時 last_seen 清空, offline 時寫入 lastSeen
func (r *memberRepository) SetOnlineStatus(ctx context.Context, memberID string, online bool, lastSeen *time.Time) error {
	status := domain.MemberStatusOffLine
	if online {
		status = domain.MemberStatusOnLine
	}
	tag, err := r.db.Exec(ctx, "UPDATE member SET status = $1, last_seen = $2 WHERE member_id = $3", status, lastSeen, memberID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMemberNotFound
	}
	return nil
}

// memoryMemberRepository in-process MemberRepository for store: memory
type memoryMemberRepository struct {
	mu      sync.RWMutex
	members map[string]*domain.Member
}

// NewMemoryMemberRepository create in-memory member store seeded with members
func NewMemoryMemberRepository(members ...*domain.Member) MemberRepository {
	r := &memoryMemberRepository{members: make(map[string]*domain.Member)}
	for _, m := range members {
		cp := *m
		r.members[m.MemberID] = &cp
	}
	return r
}

func (r *memoryMemberRepository) FindByID(ctx context.Context, memberID string) (*domain.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.members[memberID]
	if !ok {
		return nil, ErrMemberNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *memoryMemberRepository) FindByIDs(ctx context.Context, memberIDs []string) ([]*domain.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := []*domain.Member{}
	for _, id := range memberIDs {
		if m, ok := r.members[id]; ok {
			cp := *m
			members = append(members, &cp)
		}
	}
	return members, nil
}

func (r *memoryMemberRepository) SetOnlineStatus(ctx context.Context, memberID string, online bool, lastSeen *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[memberID]
	if !ok {
		return ErrMemberNotFound
	}
	m.Status = domain.MemberStatusOffLine
	if online {
		m.Status = domain.MemberStatusOnLine
	}
	m.LastSeen = lastSeen
	return nil
}
