package queue

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront-catalog/internal/common"
)

// RefreshEnqueuer queues catalog refreshes.
type RefreshEnqueuer interface {
	EnqueueCatalogRefresh(ctx context.Context, reason string) (string, error)
}

// AdminHandler exposes operator endpoints for background catalog work.
type AdminHandler struct {
	Queue  RefreshEnqueuer
	Logger zerolog.Logger
}

type refreshRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=64"`
}

// RefreshCatalog handles POST /api/v1/admin/catalog/refresh.
func (h *AdminHandler) RefreshCatalog(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Queue == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE", "task queue not configured", nil)
		return
	}
	var req refreshRequest
	if err := common.DecodeAndValidate(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if req.Reason == "" {
		req.Reason = "manual"
	}
	id, err := h.Queue.EnqueueCatalogRefresh(r.Context(), req.Reason)
	if errors.Is(err, ErrAlreadyQueued) {
		common.Data(w, http.StatusAccepted, map[string]any{"status": "already_queued"})
		return
	}
	if err != nil {
		h.Logger.Error().Err(err).Msg("enqueue catalog refresh")
		common.JSONError(w, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE", "could not enqueue refresh", nil)
		return
	}
	common.Data(w, http.StatusAccepted, map[string]any{"status": "queued", "taskId": id})
}
