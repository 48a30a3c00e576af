package domain

import (
	"encoding/json"
	"time"
)

// Event websocket event name
type Event string

// client -> server
const (
	JoinChat      Event = "joinChat"
	LeaveChat     Event = "leaveChat"
	SendMessage   Event = "sendMessage"
	EditMessage   Event = "editMessage"
	UnsendMessage Event = "unsendMessage"
	DeleteForMe   Event = "deleteForMe"
	MessageSeen   Event = "messageSeen"
	MarkAsRead    Event = "markAsRead"
	Typing        Event = "typing"
	StopTyping    Event = "stopTyping"
	ClearChat     Event = "clearChat"
	ReactMessage  Event = "reactMessage"
)

// server -> client
const (
	MessageSent            Event = "messageSent"
	MessageReceived        Event = "messageReceived"
	MessageEdited          Event = "messageEdited"
	MessageUnsent          Event = "messageUnsent"
	MessageDeletedForMe    Event = "messageDeletedForMe"
	ChatRead               Event = "chatRead"
	ChatCleared            Event = "chatCleared"
	MessageReactionUpdated Event = "messageReactionUpdated"
	ChatUpdated            Event = "chatUpdated"
	UserOnlineStatus       Event = "userOnlineStatus"
	ErrorMessage           Event = "errorMessage"
	// MessageSeen typing stopTyping 雙向同名
)

// WSRequest websocket Request
type WSRequest struct {
	Event Event           `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// WSResponse websocket Response
type WSResponse struct {
	Event Event       `json:"event"`
	Data  interface{} `json:"data"`
}

// ChatRef joinChat leaveChat markAsRead typing stopTyping clearChat
type ChatRef struct {
	ChatID string `json:"chatId"`
}

// SendMessageRequest sendMessage payload
type SendMessageRequest struct {
	ChatID  string  `json:"chatId"`
	Content string  `json:"content"`
	ReplyTo *string `json:"replyTo,omitempty"`
}

// EditMessageRequest editMessage payload
type EditMessageRequest struct {
	MessageID string `json:"messageId"`
	Content   string `json:"content"`
}

// MessageRef unsendMessage deleteForMe payload
type MessageRef struct {
	MessageID string `json:"messageId"`
}

// MessageSeenRequest messageSeen payload
type MessageSeenRequest struct {
	ChatID    string `json:"chatId"`
	MessageID string `json:"messageId"`
}

// ReactMessageRequest reactMessage payload
type ReactMessageRequest struct {
	MessageID string `json:"messageId"`
	Emoji     string `json:"emoji"`
}

// MessageRemoved messageUnsent messageDeletedForMe
type MessageRemoved struct {
	MessageID string `json:"messageId"`
	Chat      string `json:"chat"`
}

// MessageSeenEvent messageSeen broadcast
type MessageSeenEvent struct {
	MessageID string `json:"messageId"`
	UserID    string `json:"userId"`
	ChatID    string `json:"chatId"`
}

// TypingEvent typing stopTyping broadcast
type TypingEvent struct {
	UserID string `json:"userId"`
	ChatID string `json:"chatId"`
}

// ChatClearedEvent chatCleared ack
type ChatClearedEvent struct {
	ChatID    string    `json:"chatId"`
	ClearedAt time.Time `json:"clearedAt"`
}

// ReactionUpdatedEvent messageReactionUpdated broadcast
type ReactionUpdatedEvent struct {
	MessageID string     `json:"messageId"`
	Reactions []Reaction `json:"reactions"`
	Chat      string     `json:"chat"`
}

// ChatUpdatedEvent chatUpdated broadcast
type ChatUpdatedEvent struct {
	ChatID        string               `json:"chatId"`
	LatestMessage *MessageView         `json:"latestMessage"`
	LastRead      map[string]time.Time `json:"lastRead"`
}

// OnlineStatusEvent userOnlineStatus broadcast
type OnlineStatusEvent struct {
	UserID   string     `json:"userId"`
	IsOnline bool       `json:"isOnline"`
	LastSeen *time.Time `json:"lastSeen"`
}

// ErrorEvent errorMessage unicast
type ErrorEvent struct {
	Message string `json:"message"`
}
