package app

import (
	"context"
	"errors"
	"time"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/internal/chat/repository"
	memberdomain "realtime_chat_service/internal/member/domain"
	memberrepo "realtime_chat_service/internal/member/repository"
	errprocess "realtime_chat_service/pkg/err"
	"realtime_chat_service/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// mongo 時間精度為 ms
func defaultNow() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// lookupErr ErrNotFound -> NotFound(msg), others -> Store
func lookupErr(err error, msg string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return errprocess.Set(errprocess.KindNotFound, msg)
	}
	return errprocess.Wrap(errprocess.KindStore, msg, err)
}

func storeErr(op string, err error) error {
	return errprocess.Wrap(errprocess.KindStore, op, err)
}

func summaryOf(m *memberdomain.Member) domain.MemberSummary {
	return domain.MemberSummary{ID: m.MemberID, Name: m.Name, Username: m.Username}
}

// memberDirectory populate sender / participant summaries
type memberDirectory struct {
	members memberrepo.MemberRepository
}

// summaries id -> summary, missing members fall back to id only
func (d memberDirectory) summaries(ctx context.Context, ids []string) map[string]domain.MemberSummary {
	out := make(map[string]domain.MemberSummary, len(ids))
	for _, id := range ids {
		out[id] = domain.MemberSummary{ID: id}
	}
	if len(ids) == 0 {
		return out
	}

	members, err := d.members.FindByIDs(ctx, ids)
	if err != nil {
		logger.Log.Error("populate members failed", zap.Strings("ids", ids), zap.Error(err))
		return out
	}
	for _, m := range members {
		out[m.MemberID] = summaryOf(m)
	}
	return out
}

func (d memberDirectory) summary(ctx context.Context, id string) domain.MemberSummary {
	return d.summaries(ctx, []string{id})[id]
}

func (d memberDirectory) list(ctx context.Context, ids []string) []domain.MemberSummary {
	byID := d.summaries(ctx, ids)
	out := make([]domain.MemberSummary, 0, len(ids))
	for _, id := range ids {
		out = append(out, byID[id])
	}
	return out
}

// refreshLatest recompute chat.latest_message after removedID was hard deleted
func refreshLatest(ctx context.Context, rooms repository.RoomRepository, msgs repository.MessageRepository, chatID, removedID string) error {
	room, err := rooms.FindByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}
	if room.LatestMessage == nil || *room.LatestMessage != removedID {
		return nil
	}

	latest, err := msgs.FindLatestInChat(ctx, chatID)
	if errors.Is(err, repository.ErrNotFound) {
		return rooms.ReplaceLatestMessage(ctx, chatID, removedID, nil, nil)
	}
	if err != nil {
		return err
	}
	return rooms.ReplaceLatestMessage(ctx, chatID, removedID, &latest.ID, &latest.CreatedAt)
}

// publish chat event log, failure only logged
func publish(ctx context.Context, events repository.EventPublisher, name domain.Event, chatID, actorID string, at time.Time, payload interface{}) {
	if events == nil {
		return
	}
	err := events.PublishEvent(ctx, repository.EventEnvelope{
		EventName:  string(name),
		ChatID:     chatID,
		ActorID:    actorID,
		OccurredAt: at,
		Payload:    payload,
	})
	if err != nil {
		logger.Log.Warn("publish chat event failed", zap.String("event", string(name)), zap.String("chat_id", chatID), zap.Error(err))
	}
}
