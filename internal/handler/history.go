// Package handler is the HTTP layer: it decodes requests, calls the services
// and writes the JSON envelope. Status codes are decided in one place,
// writeError.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/history-api/internal/apperror"
	"github.com/sakif/history-api/internal/auth"
	"github.com/sakif/history-api/internal/serializer"
	"github.com/sakif/history-api/internal/service"
)

// TotalResponse is the body of GET /histories/total.
type TotalResponse struct {
	Total float64 `json:"total"`
}

// HistoryHandler serves the per-user history routes and the public total.
type HistoryHandler struct {
	svc          *service.HistoryService
	logger       *slog.Logger
	maxBodyBytes int64
}

func NewHistoryHandler(svc *service.HistoryService, logger *slog.Logger, maxBodyBytes int64) *HistoryHandler {
	return &HistoryHandler{svc: svc, logger: logger, maxBodyBytes: maxBodyBytes}
}

// HandleList serves GET /users/{userId}/histories?limit&offset&orderBy.
func (h *HistoryHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r, h.logger)
	if !ok {
		return
	}

	q := r.URL.Query()
	opts := service.ParseListParams(q.Get("limit"), q.Get("offset"), q.Get("orderBy"))

	rows, err := h.svc.List(r.Context(), p, chi.URLParam(r, "userId"), opts)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, serializer.Histories(rows))
}

// HandleCreate serves POST /users/{userId}/histories with {datetime, value}.
func (h *HistoryHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r, h.logger)
	if !ok {
		return
	}
	fields, err := decodeFields(w, r, h.maxBodyBytes)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	created, err := h.svc.Create(r.Context(), p, chi.URLParam(r, "userId"), fields)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusCreated, serializer.History(*created))
}

// HandleUpdate serves PUT /users/{userId}/histories/{historyId}. Only the
// fields present in the body change.
func (h *HistoryHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r, h.logger)
	if !ok {
		return
	}
	fields, err := decodeFields(w, r, h.maxBodyBytes)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	updated, err := h.svc.Update(r.Context(), p, chi.URLParam(r, "userId"), chi.URLParam(r, "historyId"), fields)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, serializer.History(*updated))
}

// HandleDelete serves DELETE /users/{userId}/histories/{historyId}.
func (h *HistoryHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), p, chi.URLParam(r, "userId"), chi.URLParam(r, "historyId")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, nil)
}

// HandleTotal serves GET /histories/total. No authentication.
func (h *HistoryHandler) HandleTotal(w http.ResponseWriter, r *http.Request) {
	total, err := h.svc.Total(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, TotalResponse{Total: total.InexactFloat64()})
}

// principal reads the identity RequireAuth stored. Its absence means the
// route was mounted without the gate, which is a wiring bug, not a client error.
func principal(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*auth.Principal, bool) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, logger, errors.New("handler: no principal in context"))
		return nil, false
	}
	return p, true
}

// decodeFields reads a JSON object body, capped at maxBytes.
// A literal null decodes to an empty object.
func decodeFields(w http.ResponseWriter, r *http.Request, maxBytes int64) (service.Fields, error) {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}

	var fields service.Fields
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperror.ValidationFailed("", "request body too large")
		}
		return nil, apperror.ValidationFailed("", "invalid JSON body")
	}
	if fields == nil {
		fields = service.Fields{}
	}
	return fields, nil
}
