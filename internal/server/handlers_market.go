package server

import (
	"net/http"
	"strings"
)

// handleMarketQuote handles GET /api/market/quote/{symbol}.
// The response always carries a Quote: failures come back with Source "mock"
// and a tagged Error rather than a non-200 status.
func (s *Server) handleMarketQuote(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	symbol := strings.TrimPrefix(r.URL.Path, "/api/market/quote/")
	if symbol == "" {
		WriteError(w, http.StatusBadRequest, "symbol is required in path")
		return
	}

	quote := s.app.PriceService.GetQuote(r.Context(), symbol)
	WriteJSON(w, http.StatusOK, quote)
}

// handleMarketSearch handles GET /api/market/search?q=keywords.
func (s *Server) handleMarketSearch(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		WriteError(w, http.StatusBadRequest, "q query parameter is required")
		return
	}

	result := s.app.PriceService.SearchSymbols(r.Context(), query)
	WriteJSON(w, http.StatusOK, result)
}
