package prompts

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/promptforge-ai/promptforge/internal/api"
	"github.com/promptforge-ai/promptforge/internal/auth"
	"github.com/promptforge-ai/promptforge/internal/quota"
)

type Handler struct {
	svc      *Service
	guard    *quota.Guard
	validate *validator.Validate
}

func NewHandler(svc *Service, guard *quota.Guard) *Handler {
	return &Handler{
		svc:      svc,
		guard:    guard,
		validate: validator.New(),
	}
}

// Generate serves POST /generate for both guests and account holders.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.ErrEmptyPrompt)
		return
	}

	userID := optionalUserID(r)

	resp, err := h.svc.Generate(r.Context(), userID, req)
	if err != nil {
		var quotaErr *QuotaExceededError
		switch {
		case errors.As(err, &quotaErr):
			api.JSONQuotaDenied(w, quotaErr.Limit, quotaErr.Used)
		case errors.Is(err, quota.ErrStorageUnavailable):
			api.HandleError(w, api.ErrTransientConflict)
		default:
			slog.Error("generating prompt", "error", err)
			api.HandleError(w, api.ErrInternalServer)
		}
		return
	}

	api.JSON(w, http.StatusOK, resp)
}

func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.ErrEmptyPrompt)
		return
	}

	resp, err := h.svc.Analyze(r.Context(), optionalUserID(r), req)
	if err != nil {
		slog.Error("analyzing prompt", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, resp)
}

func (h *Handler) Templates(w http.ResponseWriter, r *http.Request) {
	api.JSON(w, http.StatusOK, h.svc.Templates(optionalUserID(r) != nil))
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := requiredUserID(w, r)
	if !ok {
		return
	}

	limit := queryInt(r, "limit", 50)
	page := queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}

	list, total, err := h.svc.History(r.Context(), userID, limit, (page-1)*limit)
	if err != nil {
		slog.Error("listing prompt history", "error", err, "user_id", userID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	if list == nil {
		list = []Prompt{}
	}

	api.JSONPaginated(w, http.StatusOK, list, total, page, limit)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requiredUserID(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid prompt id"))
		return
	}

	p, err := h.svc.Get(r.Context(), userID, id)
	if err != nil {
		if errors.Is(err, ErrNotOwned) {
			api.HandleError(w, api.ErrForbidden)
			return
		}
		slog.Error("getting prompt", "error", err, "prompt_id", id)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	if p == nil {
		api.HandleError(w, api.ErrNotFound)
		return
	}

	api.JSON(w, http.StatusOK, p)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requiredUserID(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid prompt id"))
		return
	}

	if err := h.svc.Delete(r.Context(), userID, id); err != nil {
		switch {
		case errors.Is(err, ErrNotOwned):
			api.HandleError(w, api.ErrForbidden)
		case errors.Is(err, pgx.ErrNoRows):
			api.HandleError(w, api.ErrNotFound)
		default:
			slog.Error("deleting prompt", "error", err, "prompt_id", id)
			api.HandleError(w, api.ErrInternalServer)
		}
		return
	}

	api.JSONMessage(w, http.StatusOK, "prompt deleted")
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	userID, ok := requiredUserID(w, r)
	if !ok {
		return
	}

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	list, err := h.svc.Search(r.Context(), userID, req.Query, req.Limit)
	if err != nil {
		slog.Error("searching prompts", "error", err, "user_id", userID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	if list == nil {
		list = []Prompt{}
	}

	api.JSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"count":   len(list),
		"prompts": list,
	})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := requiredUserID(w, r)
	if !ok {
		return
	}

	stats, err := h.svc.Stats(r.Context(), userID)
	if err != nil {
		slog.Error("assembling user stats", "error", err, "user_id", userID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"stats":  stats,
	})
}

// Quota serves the authenticated user's live usage numbers.
func (h *Handler) Quota(w http.ResponseWriter, r *http.Request) {
	userID, ok := requiredUserID(w, r)
	if !ok {
		return
	}

	status, err := h.guard.Status(r.Context(), userID)
	if err != nil {
		slog.Error("reading quota status", "error", err, "user_id", userID)
		api.HandleError(w, api.ErrTransientConflict)
		return
	}

	api.JSON(w, http.StatusOK, status)
}

func optionalUserID(r *http.Request) *uuid.UUID {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		return nil
	}
	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil
	}
	return &id
}

func requiredUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	if id := optionalUserID(r); id != nil {
		return *id, true
	}
	api.HandleError(w, api.ErrUnauthorized)
	return uuid.Nil, false
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
