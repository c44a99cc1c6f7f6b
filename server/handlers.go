package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"tunemux/core/aggregator"
	"tunemux/core/library"
	"tunemux/core/player"
	"tunemux/core/provider"
	"tunemux/logger"
	"tunemux/model"
	"tunemux/repository"

	"github.com/gorilla/mux"
)

const maxBodySize = 1 << 20

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, aggregator.ErrUnknownSource):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrConsistency), errors.Is(err, player.ErrNothingToPlay):
		return http.StatusConflict
	case errors.Is(err, provider.ErrProvider), errors.Is(err, library.ErrNotAudio):
		return http.StatusBadGateway
	case errors.Is(err, library.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, repository.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("encode response failed", logger.ErrorField(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.ErrorField(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	if err := dec.Decode(dst); err != nil {
		return badRequest("invalid request body: %v", err)
	}
	return nil
}

func decodeTrack(r *http.Request) (model.Track, error) {
	var t model.Track
	if err := decodeJSON(r, &t); err != nil {
		return t, err
	}
	if t.ID == "" || t.Source == "" {
		return t, badRequest("track needs id and source")
	}
	return t, nil
}

func pathInt64(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil {
		return 0, badRequest("invalid %s", name)
	}
	return v, nil
}

func pathInt(r *http.Request, name string) (int, error) {
	v, err := strconv.Atoi(mux.Vars(r)[name])
	if err != nil {
		return 0, badRequest("invalid %s", name)
	}
	return v, nil
}

func queryLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, badRequest("invalid limit %q", raw)
	}
	return n, nil
}

// pathTrack builds a track reference from {source}/{id}.
func pathTrack(r *http.Request) model.Track {
	vars := mux.Vars(r)
	return model.Track{Source: model.Source(vars["source"]), ID: vars["id"]}
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	deviceID, err := s.store.DeviceID(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "deviceId": deviceID})
}
