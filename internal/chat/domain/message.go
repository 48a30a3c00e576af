package domain

import (
	"time"
)

// Message 表示一則聊天訊息
type Message struct {
	ID         string     `bson:"_id" json:"_id"`
	Sender     string     `bson:"sender" json:"sender"`
	Chat       string     `bson:"chat" json:"chat"`
	Content    string     `bson:"content" json:"content"`
	ReplyTo    *string    `bson:"reply_to" json:"replyTo"`
	IsEdited   bool       `bson:"is_edited" json:"isEdited"`
	CreatedAt  time.Time  `bson:"created_at" json:"createdAt"`
	UpdatedAt  time.Time  `bson:"updated_at" json:"updatedAt"`
	Reactions  []Reaction `bson:"reactions" json:"reactions"`
	ReadBy     []string   `bson:"read_by" json:"readBy"`
	DeletedFor []string   `bson:"deleted_for" json:"deletedFor"`
}

// Reaction one user one emoji
type Reaction struct {
	User  string `bson:"user" json:"user"`
	Emoji string `bson:"emoji" json:"emoji"`
}

// MemberSummary populated sender
type MemberSummary struct {
	ID       string `json:"_id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

// ReplySnapshot replied-to message, sender 不展開
type ReplySnapshot struct {
	ID        string    `json:"_id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// MessageView message as sent to clients
type MessageView struct {
	ID        string         `json:"_id"`
	Sender    MemberSummary  `json:"sender"`
	Chat      string         `json:"chat"`
	Content   string         `json:"content"`
	ReplyTo   *ReplySnapshot `json:"replyTo"`
	IsEdited  bool           `json:"isEdited"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	Reactions []Reaction     `json:"reactions"`
	ReadBy    []string       `json:"readBy"`
	FromSelf  *bool          `json:"fromSelf,omitempty"`
}

// NewMessageView build view, replyTo may be nil
func NewMessageView(m *Message, sender MemberSummary, replyTo *Message) *MessageView {
	v := &MessageView{
		ID:        m.ID,
		Sender:    sender,
		Chat:      m.Chat,
		Content:   m.Content,
		IsEdited:  m.IsEdited,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
		Reactions: m.Reactions,
		ReadBy:    m.ReadBy,
	}
	if v.Reactions == nil {
		v.Reactions = []Reaction{}
	}
	if replyTo != nil {
		v.ReplyTo = &ReplySnapshot{
			ID:        replyTo.ID,
			Sender:    replyTo.Sender,
			Content:   replyTo.Content,
			CreatedAt: replyTo.CreatedAt,
		}
	}
	return v
}

// For copy of view with fromSelf computed for viewer
func (v *MessageView) For(viewerID string) *MessageView {
	cp := *v
	self := v.Sender.ID == viewerID
	cp.FromSelf = &self
	return &cp
}

// ToggleReaction 同一 user 只留一個 reaction: 同 emoji 移除, 不同 emoji 取代
func ToggleReaction(reactions []Reaction, userID, emoji string) []Reaction {
	out := make([]Reaction, 0, len(reactions)+1)
	found := false
	for _, r := range reactions {
		if r.User != userID {
			out = append(out, r)
			continue
		}
		if found {
			continue
		}
		found = true
		if r.Emoji != emoji {
			out = append(out, Reaction{User: userID, Emoji: emoji})
		}
	}
	if !found {
		out = append(out, Reaction{User: userID, Emoji: emoji})
	}
	return out
}

// VisibleTo display filter: deletedFor 與 clearedAt 只影響顯示
func (m *Message) VisibleTo(userID string, clearedAt *time.Time) bool {
	for _, u := range m.DeletedFor {
		if u == userID {
			return false
		}
	}
	if clearedAt != nil && !m.CreatedAt.After(*clearedAt) {
		return false
	}
	return true
}
