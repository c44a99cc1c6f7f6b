package server

import (
	"net/http"
	"strings"
)

// SearchHandler fans ?q= out to the providers selected by ?source=.
func (s *Server) SearchHandler(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		s.writeError(w, r, badRequest("missing query"))
		return
	}
	tracks := s.agg.Search(r.Context(), q, r.URL.Query().Get("source"))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"query":  q,
		"tracks": tracks,
	})
}

func (s *Server) TrendingHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tracks": s.agg.Trending(r.Context()),
	})
}

// StreamURLHandler resolves a playable URL for /api/stream/{source}/{id}.
func (s *Server) StreamURLHandler(w http.ResponseWriter, r *http.Request) {
	track := pathTrack(r)
	url, err := s.agg.GetStreamURL(r.Context(), track)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}
