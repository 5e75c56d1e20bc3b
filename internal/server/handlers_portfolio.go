package server

import (
	"net/http"

	"github.com/dstanton/folio/internal/models"
)

// handlePortfolioSeries handles GET /api/users/{id}/portfolio/series.
// Query params: days (default 30), resolution (daily|weekly|monthly), base.
func (s *Server) handlePortfolioSeries(w http.ResponseWriter, r *http.Request, userID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	days := QueryInt(r, "days", 30, 1, 3650)
	resolution := models.ParseResolution(r.URL.Query().Get("resolution"))
	base := s.resolveBase(r, userID)

	points, err := s.app.PortfolioService.ValueSeries(r.Context(), userID, days, base, resolution)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":    userID,
		"base":       base,
		"days":       days,
		"resolution": resolution,
		"points":     points,
	})
}

// handlePortfolioSummary handles GET /api/users/{id}/portfolio/summary.
func (s *Server) handlePortfolioSummary(w http.ResponseWriter, r *http.Request, userID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	base := s.resolveBase(r, userID)

	summary, err := s.app.PortfolioService.Summary(r.Context(), userID, base)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, summary)
}

// handlePortfolioChart handles GET /api/users/{id}/portfolio/chart.
// Responds with a PNG rendering of the daily value series.
func (s *Server) handlePortfolioChart(w http.ResponseWriter, r *http.Request, userID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	days := QueryInt(r, "days", 90, 1, 3650)
	base := s.resolveBase(r, userID)

	png, err := s.app.PortfolioService.RenderChart(r.Context(), userID, days, base)
	if err != nil {
		WriteError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// handleSnapshots handles GET /api/users/{id}/snapshots (list) and
// DELETE /api/users/{id}/snapshots (purge history).
func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request, userID string) {
	store := s.app.Storage.SnapshotStore()

	switch r.Method {
	case http.MethodGet:
		snapshots, err := store.ListByUser(r.Context(), userID)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"user_id":   userID,
			"snapshots": snapshots,
		})

	case http.MethodDelete:
		deleted, err := store.DeleteByUser(r.Context(), userID)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"status":  "deleted",
			"user_id": userID,
			"count":   deleted,
		})

	default:
		RequireMethod(w, r, http.MethodGet, http.MethodDelete)
	}
}

// handleSnapshotRun handles POST /api/snapshots/run — fires the daily
// snapshot job immediately. Safe to call repeatedly: the job upserts on
// (user, date).
func (s *Server) handleSnapshotRun(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	written, err := s.app.SnapshotService.RunDailySnapshot(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "complete",
		"written": written,
	})
}
