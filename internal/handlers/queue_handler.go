package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase/core"

	"expo-booking/internal/services/notify"
	"expo-booking/internal/status"
)

type QueueHandler struct {
	queue *notify.Queue
}

func NewQueueHandler(q *notify.Queue) *QueueHandler {
	return &QueueHandler{queue: q}
}

// GetNotificationStats - GET /admin/notifications
func (h *QueueHandler) GetNotificationStats(e *core.RequestEvent) error {
	pending, dead, err := h.queue.Stats(e.Request.Context())
	if err != nil {
		return respondError(e, "h.queue.Stats()", status.Wrap(status.ErrPersistence, "notification queue unavailable", err))
	}
	return e.JSON(http.StatusOK, map[string]any{
		"pending": pending,
		"dead":    dead,
	})
}
