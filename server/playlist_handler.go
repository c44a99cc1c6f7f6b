package server

import (
	"net/http"
	"strings"

	"tunemux/model"
	"tunemux/repository"
)

func (s *Server) GetPlaylistsHandler(w http.ResponseWriter, r *http.Request) {
	playlists, err := s.store.GetPlaylists(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if playlists == nil {
		playlists = []model.Playlist{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"playlists": playlists})
}

func (s *Server) CreatePlaylistHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		s.writeError(w, r, badRequest("playlist name is required"))
		return
	}

	p, err := s.store.CreatePlaylist(r.Context(), req.Name, req.Description)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) GetPlaylistHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.store.GetPlaylist(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// UpdatePlaylistHandler applies the fields present in the body.
func (s *Server) UpdatePlaylistHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req repository.PlaylistUpdate
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.store.UpdatePlaylist(r.Context(), id, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) DeletePlaylistHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.store.DeletePlaylist(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddToPlaylistHandler appends the track in the body; "added" is false when
// the playlist already held it.
func (s *Server) AddToPlaylistHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	track, err := decodeTrack(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	added, err := s.store.AddToPlaylist(r.Context(), id, track)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"added": added})
}

func (s *Server) RemoveFromPlaylistHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	index, err := pathInt(r, "index")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	removed, err := s.store.RemoveFromPlaylist(r.Context(), id, index)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

func (s *Server) ReorderPlaylistHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req struct {
		From int `json:"from"`
		To   int `json:"to"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	moved, err := s.store.ReorderPlaylist(r.Context(), id, req.From, req.To)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"moved": moved})
}
