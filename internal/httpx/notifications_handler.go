package httpx

import (
	"errors"
	"net/http"

	"github.com/ariefcatur/go-voucher-orders/internal/notify"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// NotificationsHandler serves the user's inbox. Every route is scoped to X-User-ID.
type NotificationsHandler struct {
	Store notify.Store
	Log   *zap.Logger
}

func (h *NotificationsHandler) Register(r chi.Router) {
	r.Route("/notifications", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/read-all", h.markAllRead)
		r.Post("/{id}/read", h.markRead)
		r.Delete("/{id}", h.delete)
	})
}

func (h *NotificationsHandler) list(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	list, err := h.Store.List(r.Context(), uid, r.URL.Query().Get("unread") == "true")
	if err != nil {
		h.fail(w, "list notifications", err)
		return
	}
	if list == nil {
		list = []notify.Notification{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *NotificationsHandler) markRead(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	err := h.Store.MarkRead(r.Context(), uid, chi.URLParam(r, "id"))
	if errors.Is(err, notify.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		h.fail(w, "mark notification read", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *NotificationsHandler) markAllRead(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	n, err := h.Store.MarkAllRead(r.Context(), uid)
	if err != nil {
		h.fail(w, "mark all notifications read", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": n})
}

func (h *NotificationsHandler) delete(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	err := h.Store.Delete(r.Context(), uid, chi.URLParam(r, "id"))
	if errors.Is(err, notify.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		h.fail(w, "delete notification", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *NotificationsHandler) fail(w http.ResponseWriter, msg string, err error) {
	h.Log.Error(msg, zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}
