package handler

import (
	"net/http"

	"github.com/blues/campaignhub/internal/chat"
	"github.com/blues/campaignhub/internal/logger"
	"github.com/blues/campaignhub/internal/logic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type ChatHandler struct {
	chatLogic *logic.ChatLogic
	relay     *chat.Relay
	upgrader  *websocket.Upgrader
}

func NewChatHandler(chatLogic *logic.ChatLogic, relay *chat.Relay, upgrader *websocket.Upgrader) *ChatHandler {
	return &ChatHandler{chatLogic: chatLogic, relay: relay, upgrader: upgrader}
}

// MyRoom 获取或创建我的会话
func (h *ChatHandler) MyRoom(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	room, created, err := h.chatLogic.GetOrCreateRoom(actor)
	if err != nil {
		HandleError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	SuccessResponse(c, status, "", room)
}

// ListRooms 客服会话列表
func (h *ChatHandler) ListRooms(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	rooms, err := h.chatLogic.ListRooms(actor)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "", rooms)
}

// RoomMessages 会话消息
func (h *ChatHandler) RoomMessages(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := paramId(c, "id", "无效的会话ID")
	if !ok {
		return
	}
	messages, err := h.chatLogic.RoomMessages(actor, id)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "", messages)
}

// Connect 升级为 websocket 并交给中继处理
func (h *ChatHandler) Connect(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	roomId, ok := paramId(c, "room_id", "无效的会话ID")
	if !ok {
		return
	}
	if err := h.relay.Authorize(actor, roomId); err != nil {
		HandleError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("Websocket upgrade failed for room %d: %v", roomId, err)
		return
	}

	if err := h.relay.Serve(c.Request.Context(), actor, roomId, chat.NewWebsocketSession(conn)); err != nil {
		logger.Warn("Chat session for room %d ended with error: %v", roomId, err)
	}
}
