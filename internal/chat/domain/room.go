package domain

import (
	"time"

	"realtime_chat_service/pkg"
)

// ChatRoom definition chat room (private 1對1 or group)
type ChatRoom struct {
	ID           string   `bson:"_id" json:"_id"`
	Name         string   `bson:"name,omitempty" json:"chatName,omitempty"`
	IsGroupChat  bool     `bson:"is_group_chat" json:"isGroupChat"`
	Participants []string `bson:"participants" json:"participants"`
	GroupAdmins  []string `bson:"group_admins" json:"groupAdmins"`
	// PairKey 只有 1對1 chat 有值, unique index 保證每對只有一個
	PairKey string `bson:"pair_key,omitempty" json:"-"`

	// LatestMessage cache, 以 latest_message_at 判斷先後, 不是資料來源
	LatestMessage   *string    `bson:"latest_message" json:"latestMessage"`
	LatestMessageAt *time.Time `bson:"latest_message_at,omitempty" json:"-"`

	ClearedAt map[string]time.Time `bson:"cleared_at,omitempty" json:"clearedAt,omitempty"`
	LastRead  map[string]time.Time `bson:"last_read,omitempty" json:"lastRead"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// PrivatePairKey order independent key of a private chat
func PrivatePairKey(userA, userB string) string {
	if userB < userA {
		userA, userB = userB, userA
	}
	return userA + "|" + userB
}

// IsParticipant check user in chat
func (c *ChatRoom) IsParticipant(userID string) bool {
	return pkg.Contains(c.Participants, userID)
}

// IsAdmin check user is group admin
func (c *ChatRoom) IsAdmin(userID string) bool {
	return c.IsGroupChat && pkg.Contains(c.GroupAdmins, userID)
}

// ClearSweepBefore 所有 participant 都 clear 過時回傳最早的 clearedAt
func (c *ChatRoom) ClearSweepBefore() (time.Time, bool) {
	if len(c.Participants) == 0 {
		return time.Time{}, false
	}
	var earliest time.Time
	for i, p := range c.Participants {
		t, ok := c.ClearedAt[p]
		if !ok {
			return time.Time{}, false
		}
		if i == 0 || t.Before(earliest) {
			earliest = t
		}
	}
	return earliest, true
}

// ChatView chat list entry with populated latest message
type ChatView struct {
	*ChatRoom
	Participants  []MemberSummary `json:"participants"`
	GroupAdmins   []MemberSummary `json:"groupAdmins"`
	LatestMessage *MessageView    `json:"latestMessage"`
}
