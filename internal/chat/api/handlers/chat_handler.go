package handlers

import (
	"realtime_chat_service/internal/chat/app"
	errprocess "realtime_chat_service/pkg/err"
	"realtime_chat_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
)

// ChatHandler 处理 chat 相关的 HTTP 请求
type ChatHandler struct {
	roomUC    *app.RoomUseCase
	messageUC *app.MessageUseCase
	sessions  *app.SessionManager
}

// NewChatHandler create ChatHandler
func NewChatHandler(roomUC *app.RoomUseCase, messageUC *app.MessageUseCase, sessions *app.SessionManager) *ChatHandler {
	return &ChatHandler{
		roomUC:    roomUC,
		messageUC: messageUC,
		sessions:  sessions,
	}
}

// GroupRequest create group body
type GroupRequest struct {
	Name    string   `json:"name"`
	UserIDs []string `json:"userIds"`
}

// RenameRequest rename group body
type RenameRequest struct {
	Name string `json:"name"`
}

// MemberRequest add / remove / admin body
type MemberRequest struct {
	UserID string `json:"userId"`
}

func memberID(c *fiber.Ctx) (string, bool) {
	id, ok := c.Locals(middlewares.TokenMemberID).(string)
	return id, ok && id != ""
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{Error: "Missing token"})
}

// RequireSession reject tokens whose login session is gone, run after JWTMiddleware
func (h *ChatHandler) RequireSession() fiber.Handler {
	return middlewares.SessionMiddleware(h.sessions)
}

// ListChats list caller's chats
// @Summary List chats
// @Description Chats of the caller, newest first, with populated participants and latest message
// @Tags Chats
// @Produce json
// @Param auth query string false "token"
// @Success 200 {array} domain.ChatView
// @Failure 401 {object} ErrorResponse
// @Router /api/chats [get]
func (h *ChatHandler) ListChats(c *fiber.Ctx) error {
	uid, ok := memberID(c)
	if !ok {
		return unauthorized(c)
	}
	chats, err := h.roomUC.ListChats(c.UserContext(), uid)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(chats)
}

// AccessPrivateChat get or create 1對1 chat
// @Summary Access private chat
// @Description Returns the private chat with userId, creating it when absent
// @Tags Chats
// @Produce json
// @Param userId path string true "other member id"
// @Success 200 {object} domain.ChatView "existing chat"
// @Success 201 {object} domain.ChatView "created chat"
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/chats/private/{userId} [post]
func (h *ChatHandler) AccessPrivateChat(c *fiber.Ctx) error {
	uid, ok := memberID(c)
	if !ok {
		return unauthorized(c)
	}
	view, created, err := h.roomUC.AccessPrivateChat(c.UserContext(), uid, utils.CopyString(c.Params("userId")))
	if err != nil {
		return writeError(c, err)
	}
	if !created {
		return c.JSON(view)
	}
	h.sessions.SubscribeUsers(view.ID, view.ChatRoom.Participants)
	return c.Status(fiber.StatusCreated).JSON(view)
}

// CreateGroupChat create group chat
// @Summary Create group chat
// @Description Caller becomes participant and admin
// @Tags Chats
// @Accept json
// @Produce json
// @Param request body GroupRequest true "group"
// @Success 201 {object} domain.ChatView
// @Failure 400 {object} ErrorResponse
// @Router /api/chats/group [post]
func (h *ChatHandler) CreateGroupChat(c *fiber.Ctx) error {
	uid, ok := memberID(c)
	if !ok {
		return unauthorized(c)
	}
	var req GroupRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, errprocess.Set(errprocess.KindValidation, "invalid request"))
	}
	view, err := h.roomUC.CreateGroupChat(c.UserContext(), uid, req.Name, req.UserIDs)
	if err != nil {
		return writeError(c, err)
	}
	h.sessions.SubscribeUsers(view.ID, view.ChatRoom.Participants)
	return c.Status(fiber.StatusCreated).JSON(view)
}

// RenameGroup rename group chat
// @Summary Rename group
// @Tags Chats
// @Accept json
// @Produce json
// @Param chatId path string true "chat id"
// @Param request body RenameRequest true "new name"
// @Success 200 {object} domain.ChatView
// @Failure 403 {object} ErrorResponse
// @Router /api/chats/group/{chatId}/rename [put]
func (h *ChatHandler) RenameGroup(c *fiber.Ctx) error {
	uid, ok := memberID(c)
	if !ok {
		return unauthorized(c)
	}
	var req RenameRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, errprocess.Set(errprocess.KindValidation, "invalid request"))
	}
	view, err := h.roomUC.RenameGroup(c.UserContext(), uid, utils.CopyString(c.Params("chatId")), req.Name)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(view)
}

func (h *ChatHandler) memberRequest(c *fiber.Ctx) (string, string, error) {
	uid, ok := memberID(c)
	if !ok {
		return "", "", errprocess.Set(errprocess.KindAuthentication, "Missing token")
	}
	var req MemberRequest
	if err := c.BodyParser(&req); err != nil || req.UserID == "" {
		return "", "", errprocess.Set(errprocess.KindValidation, "invalid request")
	}
	return uid, req.UserID, nil
}

// AddToGroup add member to group
// @Summary Add member
// @Tags Chats
// @Accept json
// @Produce json
// @Param chatId path string true "chat id"
// @Param request body MemberRequest true "member"
// @Success 200 {object} domain.ChatView
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /api/chats/group/{chatId}/add [put]
func (h *ChatHandler) AddToGroup(c *fiber.Ctx) error {
	uid, target, err := h.memberRequest(c)
	if err != nil {
		return writeError(c, err)
	}
	view, err := h.roomUC.AddToGroup(c.UserContext(), uid, utils.CopyString(c.Params("chatId")), target)
	if err != nil {
		return writeError(c, err)
	}
	h.sessions.SubscribeUsers(view.ID, []string{target})
	return c.JSON(view)
}

// RemoveFromGroup remove member or leave group
// @Summary Remove member
// @Description Admin removes a member, or a member leaves. The chat is deleted with its messages when nobody is left
// @Tags Chats
// @Accept json
// @Produce json
// @Param chatId path string true "chat id"
// @Param request body MemberRequest true "member"
// @Success 200 {object} domain.ChatView
// @Success 204 "chat deleted"
// @Failure 403 {object} ErrorResponse
// @Router /api/chats/group/{chatId}/remove [put]
func (h *ChatHandler) RemoveFromGroup(c *fiber.Ctx) error {
	uid, target, err := h.memberRequest(c)
	if err != nil {
		return writeError(c, err)
	}
	chatID := utils.CopyString(c.Params("chatId"))
	view, err := h.roomUC.RemoveFromGroup(c.UserContext(), uid, chatID, target)
	if err != nil {
		return writeError(c, err)
	}
	h.sessions.UnsubscribeUser(chatID, target)
	if view == nil {
		return c.SendStatus(fiber.StatusNoContent)
	}
	return c.JSON(view)
}

// MakeAdmin promote member to admin
// @Summary Make admin
// @Tags Chats
// @Accept json
// @Produce json
// @Param chatId path string true "chat id"
// @Param request body MemberRequest true "member"
// @Success 200 {object} domain.ChatView
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /api/chats/group/{chatId}/admin [put]
func (h *ChatHandler) MakeAdmin(c *fiber.Ctx) error {
	uid, target, err := h.memberRequest(c)
	if err != nil {
		return writeError(c, err)
	}
	view, err := h.roomUC.MakeAdmin(c.UserContext(), uid, utils.CopyString(c.Params("chatId")), target)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(view)
}

// FetchMessages chat history for caller
// @Summary Fetch messages
// @Description Messages ascending by createdAt, hiding deleted-for-me and cleared ones
// @Tags Messages
// @Produce json
// @Param chatId path string true "chat id"
// @Success 200 {array} domain.MessageView
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/messages/{chatId} [get]
func (h *ChatHandler) FetchMessages(c *fiber.Ctx) error {
	uid, ok := memberID(c)
	if !ok {
		return unauthorized(c)
	}
	views, err := h.messageUC.FetchMessages(c.UserContext(), uid, utils.CopyString(c.Params("chatId")))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(views)
}
