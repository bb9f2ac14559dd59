package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/keepsake/internal/apperror"
	"github.com/sakif/keepsake/internal/auth"
	"github.com/sakif/keepsake/internal/service"
)

const (
	msgListed   = "Milestones fetched successfully"
	msgDueToday = "Today's reminders fetched successfully"
	msgCreated  = "Milestone created successfully"
	msgUpdated  = "Milestone updated successfully"
	msgDeleted  = "Milestone deleted successfully"
	msgNoCaller = "authenticated user missing from request"
)

type MilestoneHandler struct {
	milestones *service.MilestoneService
	errors     errorWriter
	logger     *slog.Logger
}

// NewMilestoneHandler returns the milestone endpoints. production hides
// data store messages from 5xx responses.
func NewMilestoneHandler(milestones *service.MilestoneService, production bool, logger *slog.Logger) *MilestoneHandler {
	return &MilestoneHandler{
		milestones: milestones,
		errors:     errorWriter{logger: logger, production: production},
		logger:     logger,
	}
}

// Register mounts the endpoints on r. r must already run auth.RequireAuth.
func (h *MilestoneHandler) Register(r chi.Router) {
	r.Get("/", h.HandleList)
	r.Get("/today", h.HandleDueToday)
	r.Post("/", h.HandleCreate)
	r.Put("/{id}", h.HandleUpdate)
	r.Delete("/{id}", h.HandleDelete)
}

func (h *MilestoneHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.caller(w, r)
	if !ok {
		return
	}

	views, err := h.milestones.List(r.Context(), ownerID)
	if err != nil {
		h.errors.write(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, msgListed, views)
}

// HandleDueToday accepts an optional ?date= to ask about another day.
func (h *MilestoneHandler) HandleDueToday(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.caller(w, r)
	if !ok {
		return
	}

	var ref time.Time
	if raw := r.URL.Query().Get("date"); raw != "" {
		var err error
		if ref, err = h.milestones.ParseReferenceDate(raw); err != nil {
			h.errors.write(w, r, err)
			return
		}
	}

	views, err := h.milestones.DueToday(r.Context(), ownerID, ref)
	if err != nil {
		h.errors.write(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, msgDueToday, views)
}

func (h *MilestoneHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req createMilestoneRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.logger.Warn("invalid milestone JSON", slog.String("error", err.Error()))
		h.errors.write(w, r, err)
		return
	}
	in, err := req.input()
	if err != nil {
		h.errors.write(w, r, err)
		return
	}

	view, err := h.milestones.Create(r.Context(), ownerID, in)
	if err != nil {
		h.errors.write(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, msgCreated, view)
}

func (h *MilestoneHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req updateMilestoneRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.errors.write(w, r, err)
		return
	}

	view, err := h.milestones.Update(r.Context(), ownerID, chi.URLParam(r, "id"), req.input())
	if err != nil {
		h.errors.write(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, msgUpdated, view)
}

func (h *MilestoneHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.caller(w, r)
	if !ok {
		return
	}

	id, err := h.milestones.Delete(r.Context(), ownerID, chi.URLParam(r, "id"))
	if err != nil {
		h.errors.write(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, msgDeleted, map[string]string{"id": id})
}

// caller returns the authenticated owner id. A missing id means the route
// was mounted without auth.RequireAuth, which is a wiring bug.
func (h *MilestoneHandler) caller(w http.ResponseWriter, r *http.Request) (string, bool) {
	ownerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		h.errors.write(w, r, apperror.Upstream(msgNoCaller, nil))
		return "", false
	}
	return ownerID, true
}
