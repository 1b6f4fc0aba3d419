package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"expenses/internal/analytics"
	"expenses/internal/core"
	applog "expenses/internal/log"
)

const maxBodyBytes = 1 << 20

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	items, err := s.expenses.ListExpenses(r.Context())
	if err != nil {
		s.internalError(w, r, "List expenses failed", err)
		return
	}
	if items == nil {
		items = []core.Expense{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	p, ok := decodePayload(w, r)
	if !ok {
		return
	}

	created, err := s.expenses.CreateExpense(r.Context(), p)
	if err != nil {
		s.mutationError(w, r, applog.OpCreate, "", err)
		return
	}
	s.invalidateDashboard()

	applog.FromContext(r.Context()).InfoContext(r.Context(), "Expense created",
		applog.NewFields().
			WithOperation(applog.OpCreate).
			WithExpense(created.ID, created.Amount.String(), created.Category, created.Date.String()).
			ToSlice()...)
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	p, ok := decodePayload(w, r)
	if !ok {
		return
	}

	updated, err := s.expenses.UpdateExpense(r.Context(), id, p)
	if err != nil {
		s.mutationError(w, r, applog.OpUpdate, id, err)
		return
	}
	s.invalidateDashboard()
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.expenses.DeleteExpense(r.Context(), id); err != nil {
		s.mutationError(w, r, applog.OpDelete, id, err)
		return
	}
	s.invalidateDashboard()
	w.WriteHeader(http.StatusNoContent)
}

// handleDashboard serves the aggregated summary, cached until the next
// mutation or the cache TTL.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if s.dashboardTTL > 0 {
		if summary, ok := s.dashboard.Get(dashboardKey); ok {
			w.Header().Set("X-Cache", "HIT")
			writeJSON(w, http.StatusOK, summary)
			return
		}
	}

	s.dashboardMu.Lock()
	gen := s.dashboardGen
	s.dashboardMu.Unlock()

	// Loads are keyed by generation so a request arriving after a mutation
	// never joins a load that started before it.
	key := dashboardKey + ":" + strconv.FormatUint(gen, 10)
	v, err, _ := s.dashboardLoads.Do(key, func() (any, error) {
		ctx := context.WithoutCancel(r.Context())
		items, err := s.expenses.ListExpenses(ctx)
		if err != nil {
			return nil, err
		}
		summary := analytics.Summarize(items)
		if s.dashboardTTL > 0 {
			s.dashboardMu.Lock()
			if gen == s.dashboardGen {
				s.dashboard.Set(dashboardKey, summary)
			}
			s.dashboardMu.Unlock()
		}
		return summary, nil
	})
	if err != nil {
		s.internalError(w, r, "Dashboard summary failed", err)
		return
	}
	w.Header().Set("X-Cache", "MISS")
	writeJSON(w, http.StatusOK, v.(analytics.Summary))
}

func (s *Server) invalidateDashboard() {
	s.dashboardMu.Lock()
	s.dashboardGen++
	s.dashboard.Purge()
	s.dashboardMu.Unlock()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady reports 503 while the store does not answer.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.expenses.Ping(ctx); err != nil {
		s.logger.WarnContext(ctx, "Readiness check failed", applog.FieldError, err.Error())
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"checks": map[string]string{"storage": "failed"},
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
		"checks": map[string]string{"storage": "ok"},
	})
}

// decodePayload reads an expense body. An empty body decodes to an empty
// payload so that it fails validation rather than parsing.
func decodePayload(w http.ResponseWriter, r *http.Request) (core.ExpensePayload, bool) {
	var p core.ExpensePayload
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&p)
	if err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return p, false
		}
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return p, false
	}
	return p, true
}

func (s *Server) mutationError(w http.ResponseWriter, r *http.Request, op, id string, err error) {
	switch {
	case core.IsValidation(err):
		applog.FromContext(r.Context()).InfoContext(r.Context(), "Rejected expense payload",
			applog.FieldOperation, op,
			applog.FieldExpenseID, id,
			applog.FieldError, err.Error())
		writeError(w, http.StatusBadRequest, "Missing required fields")
	case errors.Is(err, core.ErrNotFound):
		writeError(w, http.StatusNotFound, "Expense not found")
	default:
		s.internalError(w, r, "Expense "+op+" failed", err)
	}
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	applog.FromContext(r.Context()).ErrorContext(r.Context(), msg, applog.FieldError, err.Error())
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
