package handler

import (
	"net/http"

	"github.com/blues/campaignhub/internal/logic"
	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	notificationLogic *logic.NotificationLogic
}

func NewNotificationHandler(notificationLogic *logic.NotificationLogic) *NotificationHandler {
	return &NotificationHandler{notificationLogic: notificationLogic}
}

// ListNotifications 我的通知
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	page, pageSize := pageQuery(c)
	page, pageSize = logic.NormalizePage(page, pageSize, logic.PageSizeNotification)
	notes, total, err := h.notificationLogic.ListNotifications(actor.Id, page, pageSize)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "", newPageResult(notes, page, pageSize, total))
}

// DeleteAll 清空我的通知
func (h *NotificationHandler) DeleteAll(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	n, err := h.notificationLogic.DeleteAll(actor.Id)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "通知已清空", gin.H{"deleted": n})
}
