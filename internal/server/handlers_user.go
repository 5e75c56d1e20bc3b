package server

import (
	"net/http"
	"strings"

	"github.com/dstanton/folio/internal/models"
)

// handleUserCreate handles POST /api/users (create or upsert a profile) and
// GET /api/users (list user IDs).
func (s *Server) handleUserCreate(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		ids, err := s.app.Storage.InternalStore().ListUsers(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{"users": ids})

	case http.MethodPost:
		var user models.User
		if !DecodeJSON(w, r, &user) {
			return
		}
		if strings.TrimSpace(user.UserID) == "" {
			WriteError(w, http.StatusBadRequest, "user_id is required")
			return
		}
		user.BaseCurrency = strings.ToUpper(strings.TrimSpace(user.BaseCurrency))

		if err := s.app.Storage.InternalStore().SaveUser(r.Context(), &user); err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, &user)

	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleUser handles GET/PUT/DELETE /api/users/{id}.
func (s *Server) handleUser(w http.ResponseWriter, r *http.Request, userID string) {
	store := s.app.Storage.InternalStore()

	switch r.Method {
	case http.MethodGet:
		user, err := store.GetUser(r.Context(), userID)
		if err != nil {
			WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, user)

	case http.MethodPut:
		var user models.User
		if !DecodeJSON(w, r, &user) {
			return
		}
		user.UserID = userID
		user.BaseCurrency = strings.ToUpper(strings.TrimSpace(user.BaseCurrency))
		if err := store.SaveUser(r.Context(), &user); err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, &user)

	case http.MethodDelete:
		if err := store.DeleteUser(r.Context(), userID); err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		// Drop the user's snapshot history along with the profile
		if _, err := s.app.Storage.SnapshotStore().DeleteByUser(r.Context(), userID); err != nil {
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("Failed to delete user snapshots")
		}
		WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted", "user_id": userID})

	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

// resolveBase picks the base currency for a request: explicit ?base= query,
// then the user's profile preference, then the system default.
func (s *Server) resolveBase(r *http.Request, userID string) string {
	if base := strings.TrimSpace(r.URL.Query().Get("base")); base != "" {
		return strings.ToUpper(base)
	}
	if user, err := s.app.Storage.InternalStore().GetUser(r.Context(), userID); err == nil && user.BaseCurrency != "" {
		return user.BaseCurrency
	}
	return s.app.Config.BaseCurrency
}
