// Package api exposes the decision store over HTTP and MCP. All HTTP
// responses share one envelope: {status, data|message, count?}.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/minute/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Deps holds the handler dependencies.
type Deps struct {
	Store  *storage.Store
	Secret []byte
}

// NewHandler returns the HTTP API: owner-scoped decision CRUD under
// /decisions plus an unauthenticated /health probe.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Route("/decisions", func(r chi.Router) {
		r.Use(OwnerAuth(deps.Secret))
		r.Post("/", handleCreateDecision(deps))
		r.Get("/", handleListDecisions(deps))
		r.Get("/{id}", handleGetDecision(deps))
		r.Put("/{id}", handleUpdateDecision(deps))
		r.Delete("/{id}", handleDeleteDecision(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// decisionRequest is the wire shape for create and update. Pointer fields
// distinguish "absent" from "explicitly empty" so updates merge correctly.
type decisionRequest struct {
	Question      *string             `json:"question"`
	Pros          *[]storage.ListItem `json:"pros"`
	Cons          *[]storage.ListItem `json:"cons"`
	FinalDecision *string             `json:"finalDecision"`
	Notes         *string             `json:"notes"`
	TimeSpent     *int                `json:"timeSpent"`
	IsCompleted   *bool               `json:"isCompleted"`
}

func handleCreateDecision(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeDecisionRequest(w, r)
		if !ok {
			return
		}

		nd := storage.NewDecision{TimeSpent: storage.MaxTimeSpent}
		if req.Question != nil {
			nd.Question = *req.Question
		}
		if req.Pros != nil {
			nd.Pros = *req.Pros
		}
		if req.Cons != nil {
			nd.Cons = *req.Cons
		}
		if req.FinalDecision != nil {
			nd.FinalDecision = *req.FinalDecision
		}
		if req.Notes != nil {
			nd.Notes = *req.Notes
		}
		if req.TimeSpent != nil {
			nd.TimeSpent = *req.TimeSpent
		}
		if req.IsCompleted != nil {
			nd.IsCompleted = *req.IsCompleted
		}

		owner := ownerFrom(r.Context())
		d, err := deps.Store.CreateDecision(owner, nd)
		if err != nil {
			respondStoreError(w, err, "")
			return
		}

		slog.Debug("decision created", "id", d.ID, "owner", owner)
		respondData(w, http.StatusCreated, d)
	}
}

func handleListDecisions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		decisions, err := deps.Store.ListDecisions(ownerFrom(r.Context()))
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to list decisions: %v", err)
			return
		}
		if decisions == nil {
			decisions = []storage.Decision{}
		}

		count := len(decisions)
		writeEnvelope(w, http.StatusOK, envelope{
			Status: "success",
			Count:  &count,
			Data:   decisions,
		})
	}
}

func handleGetDecision(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := deps.Store.GetDecision(ownerFrom(r.Context()), chi.URLParam(r, "id"))
		if err != nil {
			respondStoreError(w, err, "Not authorized to access this decision")
			return
		}
		respondData(w, http.StatusOK, d)
	}
}

func handleUpdateDecision(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeDecisionRequest(w, r)
		if !ok {
			return
		}

		upd := storage.DecisionUpdate{
			Question:      req.Question,
			Pros:          req.Pros,
			Cons:          req.Cons,
			FinalDecision: req.FinalDecision,
			Notes:         req.Notes,
			TimeSpent:     req.TimeSpent,
			IsCompleted:   req.IsCompleted,
		}

		d, err := deps.Store.UpdateDecision(ownerFrom(r.Context()), chi.URLParam(r, "id"), upd)
		if err != nil {
			respondStoreError(w, err, "Not authorized to update this decision")
			return
		}
		respondData(w, http.StatusOK, d)
	}
}

func handleDeleteDecision(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := deps.Store.DeleteDecision(ownerFrom(r.Context()), chi.URLParam(r, "id"))
		if err != nil {
			respondStoreError(w, err, "Not authorized to delete this decision")
			return
		}
		respondMessage(w, http.StatusOK, "Decision removed")
	}
}

func decodeDecisionRequest(w http.ResponseWriter, r *http.Request) (decisionRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return decisionRequest{}, false
	}
	return req, true
}

// --- response envelope ---

type envelope struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Count   *int   `json:"count,omitempty"`
}

func writeEnvelope(w http.ResponseWriter, code int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(env)
}

func respondData(w http.ResponseWriter, code int, data any) {
	writeEnvelope(w, code, envelope{Status: "success", Data: data})
}

func respondMessage(w http.ResponseWriter, code int, msg string) {
	writeEnvelope(w, code, envelope{Status: "success", Message: msg})
}

func respondError(w http.ResponseWriter, code int, format string, args ...any) {
	writeEnvelope(w, code, envelope{Status: "error", Message: fmt.Sprintf(format, args...)})
}

// respondStoreError translates storage errors into envelope responses.
// notOwnedMsg carries the operation-specific authorization message; it is
// unused for create, which can only fail validation.
func respondStoreError(w http.ResponseWriter, err error, notOwnedMsg string) {
	var ve *storage.ValidationError
	switch {
	case errors.As(err, &ve):
		respondError(w, http.StatusBadRequest, "%s", ve.Message)
	case errors.Is(err, storage.ErrNotFound):
		respondError(w, http.StatusNotFound, "Decision not found")
	case errors.Is(err, storage.ErrNotOwned):
		respondError(w, http.StatusUnauthorized, "%s", notOwnedMsg)
	default:
		respondError(w, http.StatusInternalServerError, "internal error: %v", err)
	}
}
