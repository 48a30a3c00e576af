package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/internal/chat/repository"
	memberdomain "realtime_chat_service/internal/member/domain"
	memberrepo "realtime_chat_service/internal/member/repository"
	"realtime_chat_service/pkg/config"
	"realtime_chat_service/pkg/logger"

	"github.com/cucumber/godog"
	"github.com/google/uuid"
)

func TestChatFeatures(t *testing.T) {
	logger.SetNewNop()
	suite := godog.TestSuite{
		Name:                "chat_session",
		ScenarioInitializer: InitializeChatSessionScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
			Strict:   true,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}

// chatWorld 每個 scenario 一份
type chatWorld struct {
	ctx     context.Context
	clock   *fakeClock
	rooms   repository.RoomRepository
	msgs    repository.MessageRepository
	members memberrepo.MemberRepository
	manager *SessionManager

	userIDs  map[string]string
	chatIDs  map[string]string
	sessions map[string]*Session
	inbox    map[string][]received
	lastMsg  string
}

func InitializeChatSessionScenario(sc *godog.ScenarioContext) {
	w := &chatWorld{}
	sc.Before(func(ctx context.Context, s *godog.Scenario) (context.Context, error) {
		w.reset()
		return ctx, nil
	})

	sc.Step(`^members "([^"]*)", "([^"]*)" and "([^"]*)"$`, w.members3)
	sc.Step(`^a chat "([^"]*)" between "([^"]*)" and "([^"]*)"$`, w.chatBetween)
	sc.Step(`^"([^"]*)" is connected$`, w.connect)
	sc.Step(`^"([^"]*)" disconnects$`, w.disconnect)
	sc.Step(`^"([^"]*)" sends "([^"]*)" to "([^"]*)"$`, w.sendsOverSocket)
	sc.Step(`^"([^"]*)" sent "([^"]*)" to "([^"]*)"$`, w.sent)
	sc.Step(`^"([^"]*)" edits the last message to "([^"]*)"$`, w.edits)
	sc.Step(`^(\d+) minutes pass$`, w.minutesPass)
	sc.Step(`^"([^"]*)" receives an error "([^"]*)"$`, w.receivesError)
	sc.Step(`^"([^"]*)" receives "([^"]*)"$`, w.receivesEvent)
	sc.Step(`^the last message reads "([^"]*)" and is edited$`, w.lastMessageReads)
	sc.Step(`^"([^"]*)" and "([^"]*)" react with "([^"]*)" at the same time$`, w.reactTogether)
	sc.Step(`^the last message has (\d+) reactions with "([^"]*)"$`, w.lastMessageReactions)
	sc.Step(`^"([^"]*)" has (\d+) stored messages$`, w.storedMessages)
	sc.Step(`^"([^"]*)" receives exactly (\d+) "([^"]*)" event with online false$`, w.receivesOffline)
	sc.Step(`^"([^"]*)" is offline with a last seen time$`, w.isOffline)
	sc.Step(`^"([^"]*)" clears "([^"]*)"$`, w.clears)
	sc.Step(`^"([^"]*)" sees (\d+) messages in "([^"]*)"$`, w.sees)
	sc.Step(`^"([^"]*)" fetches "([^"]*)" and the last message is from self$`, w.fetchFromSelf(true))
	sc.Step(`^"([^"]*)" fetches "([^"]*)" and the last message is not from self$`, w.fetchFromSelf(false))
}

func (w *chatWorld) reset() {
	w.ctx = context.Background()
	w.clock = newFakeClock()
	w.rooms = repository.NewMemoryRoomRepository()
	w.msgs = repository.NewMemoryMessageRepository()
	w.userIDs = map[string]string{}
	w.chatIDs = map[string]string{}
	w.sessions = map[string]*Session{}
	w.inbox = map[string][]received{}
	w.lastMsg = ""
}

func (w *chatWorld) tick() {
	w.clock.Advance(time.Second)
}

func (w *chatWorld) members3(a, b, c string) error {
	seed := []*memberdomain.Member{}
	for i, name := range []string{a, b, c} {
		id := uuid.NewString()
		w.userIDs[name] = id
		seed = append(seed, &memberdomain.Member{ID: int64(i + 1), MemberID: id, Name: name, Username: name})
	}
	w.members = memberrepo.NewMemoryMemberRepository(seed...)

	messageUC := NewMessageUseCase(w.rooms, w.msgs, w.members, nil, 0)
	messageUC.now = w.clock.Now
	roomUC := NewRoomUseCase(w.rooms, w.msgs, w.members, nil)
	roomUC.now = w.clock.Now
	w.manager = NewSessionManager(NewAuthenticator(w.members, nil), messageUC, roomUC, w.members, nil,
		config.SessionConfig{SendBuffer: 64, EventsPerSecond: 1000, EventBurst: 1000})
	w.manager.now = w.clock.Now
	return nil
}

func (w *chatWorld) chatBetween(chat, a, b string) error {
	id := uuid.NewString()
	w.chatIDs[chat] = id
	return w.rooms.CreateRoom(w.ctx, &domain.ChatRoom{
		ID:           id,
		Participants: []string{w.userIDs[a], w.userIDs[b]},
		GroupAdmins:  []string{},
		CreatedAt:    w.clock.Now(),
		UpdatedAt:    w.clock.Now(),
	})
}

func (w *chatWorld) connect(name string) error {
	member, err := w.members.FindByID(w.ctx, w.userIDs[name])
	if err != nil {
		return err
	}
	w.sessions[name] = w.manager.Connect(w.ctx, member)
	w.collect()
	return nil
}

func (w *chatWorld) disconnect(name string) error {
	s, ok := w.sessions[name]
	if !ok {
		return fmt.Errorf("%s is not connected", name)
	}
	w.manager.Disconnect(s)
	delete(w.sessions, name)
	w.collect()
	return nil
}

// collect 把每條連線的 frame 收進 inbox
func (w *chatWorld) collect() {
	for name, s := range w.sessions {
		for {
			select {
			case b := <-s.Client.Send():
				var r received
				if err := json.Unmarshal(b, &r); err == nil {
					w.inbox[name] = append(w.inbox[name], r)
				}
				continue
			default:
			}
			break
		}
	}
}

func (w *chatWorld) handle(name string, event domain.Event, data interface{}) error {
	s, ok := w.sessions[name]
	if !ok {
		return fmt.Errorf("%s is not connected", name)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	b, err := json.Marshal(domain.WSRequest{Event: event, Data: raw})
	if err != nil {
		return err
	}
	w.manager.HandleFrame(s, b)
	w.collect()
	return nil
}

func (w *chatWorld) sendsOverSocket(name, content, chat string) error {
	w.tick()
	if err := w.handle(name, domain.SendMessage, domain.SendMessageRequest{ChatID: w.chatIDs[chat], Content: content}); err != nil {
		return err
	}
	for _, r := range w.inbox[name] {
		if r.Event == domain.MessageSent {
			var v domain.MessageView
			if err := json.Unmarshal(r.Data, &v); err != nil {
				return err
			}
			w.lastMsg = v.ID
		}
	}
	return nil
}

func (w *chatWorld) sent(name, content, chat string) error {
	w.tick()
	res, err := w.manager.messageUC.Send(w.ctx, w.userIDs[name], domain.SendMessageRequest{ChatID: w.chatIDs[chat], Content: content})
	if err != nil {
		return err
	}
	w.lastMsg = res.View.ID
	return nil
}

func (w *chatWorld) edits(name, content string) error {
	return w.handle(name, domain.EditMessage, domain.EditMessageRequest{MessageID: w.lastMsg, Content: content})
}

func (w *chatWorld) minutesPass(n int) error {
	w.clock.Advance(time.Duration(n) * time.Minute)
	return nil
}

func (w *chatWorld) receivesError(name, message string) error {
	for _, r := range w.inbox[name] {
		if r.Event != domain.ErrorMessage {
			continue
		}
		var e domain.ErrorEvent
		if err := json.Unmarshal(r.Data, &e); err != nil {
			return err
		}
		if e.Message == message {
			return nil
		}
	}
	return fmt.Errorf("%s did not receive error %q, inbox %v", name, message, eventsOf(w.inbox[name]))
}

func (w *chatWorld) receivesEvent(name, event string) error {
	if _, ok := findEvent(w.inbox[name], domain.Event(event)); ok {
		return nil
	}
	return fmt.Errorf("%s did not receive %s, inbox %v", name, event, eventsOf(w.inbox[name]))
}

func (w *chatWorld) lastMessageReads(content string) error {
	msg, err := w.msgs.FindByID(w.ctx, w.lastMsg)
	if err != nil {
		return err
	}
	if msg.Content != content || !msg.IsEdited {
		return fmt.Errorf("got content %q edited %v", msg.Content, msg.IsEdited)
	}
	return nil
}

func (w *chatWorld) reactTogether(a, b, emoji string) error {
	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, name := range []string{a, b} {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			_, err := w.manager.messageUC.React(w.ctx, userID, domain.ReactMessageRequest{MessageID: w.lastMsg, Emoji: emoji})
			errs <- err
		}(w.userIDs[name])
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (w *chatWorld) lastMessageReactions(n int, emoji string) error {
	msg, err := w.msgs.FindByID(w.ctx, w.lastMsg)
	if err != nil {
		return err
	}
	users := map[string]bool{}
	for _, r := range msg.Reactions {
		if r.Emoji != emoji || users[r.User] {
			return fmt.Errorf("unexpected reactions %v", msg.Reactions)
		}
		users[r.User] = true
	}
	if len(users) != n {
		return fmt.Errorf("expected %d reactions, got %v", n, msg.Reactions)
	}
	return nil
}

func (w *chatWorld) storedMessages(chat string, n int) error {
	msgs, err := w.msgs.FindByChat(w.ctx, w.chatIDs[chat])
	if err != nil {
		return err
	}
	if len(msgs) != n {
		return fmt.Errorf("expected %d stored messages, got %d", n, len(msgs))
	}
	return nil
}

func (w *chatWorld) receivesOffline(name string, n int, event string) error {
	count := 0
	for _, r := range w.inbox[name] {
		if r.Event != domain.Event(event) {
			continue
		}
		var status domain.OnlineStatusEvent
		if err := json.Unmarshal(r.Data, &status); err != nil {
			return err
		}
		if !status.IsOnline {
			count++
		}
	}
	if count != n {
		return fmt.Errorf("expected %d offline events, got %d", n, count)
	}
	return nil
}

func (w *chatWorld) isOffline(name string) error {
	member, err := w.members.FindByID(w.ctx, w.userIDs[name])
	if err != nil {
		return err
	}
	if member.IsOnline() || member.LastSeen == nil {
		return fmt.Errorf("%s status %v last seen %v", name, member.Status, member.LastSeen)
	}
	if w.manager.IsOnline(member.MemberID) {
		return fmt.Errorf("%s still has live connections", name)
	}
	return nil
}

func (w *chatWorld) clears(name, chat string) error {
	w.tick()
	_, err := w.manager.roomUC.ClearChat(w.ctx, w.userIDs[name], w.chatIDs[chat])
	return err
}

func (w *chatWorld) sees(name string, n int, chat string) error {
	views, err := w.manager.messageUC.FetchMessages(w.ctx, w.userIDs[name], w.chatIDs[chat])
	if err != nil {
		return err
	}
	if len(views) != n {
		return fmt.Errorf("%s sees %d messages, want %d", name, len(views), n)
	}
	return nil
}

func (w *chatWorld) fetchFromSelf(want bool) func(name, chat string) error {
	return func(name, chat string) error {
		views, err := w.manager.messageUC.FetchMessages(w.ctx, w.userIDs[name], w.chatIDs[chat])
		if err != nil {
			return err
		}
		if len(views) == 0 {
			return fmt.Errorf("%s sees no messages", name)
		}
		last := views[len(views)-1]
		if last.ID != w.lastMsg || last.FromSelf == nil || *last.FromSelf != want {
			return fmt.Errorf("last message %s fromSelf %v", last.ID, last.FromSelf)
		}
		return nil
	}
}
