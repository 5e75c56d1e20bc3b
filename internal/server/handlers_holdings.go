package server

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/dstanton/folio/internal/models"
)

// handleHoldings handles GET /api/users/{id}/holdings (list) and
// POST /api/users/{id}/holdings (create).
func (s *Server) handleHoldings(w http.ResponseWriter, r *http.Request, userID string) {
	store := s.app.Storage.HoldingStore()

	switch r.Method {
	case http.MethodGet:
		holdings, err := store.ListByUser(r.Context(), userID)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"user_id":  userID,
			"holdings": holdings,
		})

	case http.MethodPost:
		var holding models.Holding
		if !DecodeJSON(w, r, &holding) {
			return
		}
		holding.UserID = userID
		if holding.ID == "" {
			holding.ID = uuid.NewString()
		}
		holding.Normalize()
		if err := holding.Validate(); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := store.Save(r.Context(), &holding); err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		WriteJSON(w, http.StatusCreated, &holding)

	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleHolding handles GET/PUT/DELETE /api/users/{id}/holdings/{holdingID}.
func (s *Server) handleHolding(w http.ResponseWriter, r *http.Request, userID, holdingID string) {
	store := s.app.Storage.HoldingStore()

	switch r.Method {
	case http.MethodGet:
		holding, err := store.Get(r.Context(), userID, holdingID)
		if err != nil {
			WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, holding)

	case http.MethodPut:
		var holding models.Holding
		if !DecodeJSON(w, r, &holding) {
			return
		}
		holding.UserID = userID
		holding.ID = holdingID
		holding.Normalize()
		if err := holding.Validate(); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := store.Save(r.Context(), &holding); err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, &holding)

	case http.MethodDelete:
		if err := store.Delete(r.Context(), userID, holdingID); err != nil {
			WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": holdingID})

	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}
