package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"tunemux/core/aggregator"
	"tunemux/core/library"
	"tunemux/core/player"
	"tunemux/logger"
	"tunemux/repository"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Server exposes search, the library and the player over HTTP, and pushes
// queue and player changes to websocket clients.
type Server struct {
	agg     *aggregator.Aggregator
	store   *repository.Store
	library *library.Service
	player  *player.Player
	hub     *Hub
	log     *zap.Logger
	router  *mux.Router
}

func New(agg *aggregator.Aggregator, store *repository.Store, lib *library.Service, p *player.Player) *Server {
	s := &Server{
		agg:     agg,
		store:   store,
		library: lib,
		player:  p,
		hub:     NewHub(),
		log:     logger.Named("server"),
	}
	s.router = s.routes()
	return s
}

// Handler returns the configured router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the websocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) routes() *mux.Router {
	router := mux.NewRouter()
	router.Use(corsMiddleware)

	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.HealthHandler).Methods(http.MethodGet)

	api.HandleFunc("/search", s.SearchHandler).Methods(http.MethodGet)
	api.HandleFunc("/trending", s.TrendingHandler).Methods(http.MethodGet)
	api.HandleFunc("/stream/{source}/{id}", s.StreamURLHandler).Methods(http.MethodGet)

	api.HandleFunc("/playlists", s.GetPlaylistsHandler).Methods(http.MethodGet)
	api.HandleFunc("/playlists", s.CreatePlaylistHandler).Methods(http.MethodPost)
	api.HandleFunc("/playlists/{id:[0-9]+}", s.GetPlaylistHandler).Methods(http.MethodGet)
	api.HandleFunc("/playlists/{id:[0-9]+}", s.UpdatePlaylistHandler).Methods(http.MethodPut)
	api.HandleFunc("/playlists/{id:[0-9]+}", s.DeletePlaylistHandler).Methods(http.MethodDelete)
	api.HandleFunc("/playlists/{id:[0-9]+}/tracks", s.AddToPlaylistHandler).Methods(http.MethodPost)
	api.HandleFunc("/playlists/{id:[0-9]+}/tracks/{index:[0-9]+}", s.RemoveFromPlaylistHandler).Methods(http.MethodDelete)
	api.HandleFunc("/playlists/{id:[0-9]+}/order", s.ReorderPlaylistHandler).Methods(http.MethodPut)

	api.HandleFunc("/likes", s.GetLikesHandler).Methods(http.MethodGet)
	api.HandleFunc("/likes/toggle", s.ToggleLikeHandler).Methods(http.MethodPost)
	api.HandleFunc("/likes/{source}/{id}", s.IsLikedHandler).Methods(http.MethodGet)

	api.HandleFunc("/history", s.GetHistoryHandler).Methods(http.MethodGet)
	api.HandleFunc("/history", s.ClearHistoryHandler).Methods(http.MethodDelete)
	api.HandleFunc("/search-history", s.GetSearchHistoryHandler).Methods(http.MethodGet)
	api.HandleFunc("/search-history", s.ClearSearchHistoryHandler).Methods(http.MethodDelete)

	api.HandleFunc("/downloads", s.GetDownloadsHandler).Methods(http.MethodGet)
	api.HandleFunc("/downloads", s.DownloadHandler).Methods(http.MethodPost)
	api.HandleFunc("/downloads/{source}/{id}", s.DeleteDownloadHandler).Methods(http.MethodDelete)
	api.HandleFunc("/downloads/{source}/{id}/audio", s.OfflineAudioHandler).Methods(http.MethodGet)

	api.HandleFunc("/pending", s.GetPendingHandler).Methods(http.MethodGet)
	api.HandleFunc("/pending/replay", s.ReplayPendingHandler).Methods(http.MethodPost)

	api.HandleFunc("/settings/{key}", s.GetSettingHandler).Methods(http.MethodGet)
	api.HandleFunc("/settings/{key}", s.SetSettingHandler).Methods(http.MethodPut)

	api.HandleFunc("/queue", s.GetQueueHandler).Methods(http.MethodGet)
	api.HandleFunc("/queue", s.EnqueueHandler).Methods(http.MethodPost)
	api.HandleFunc("/queue", s.ClearQueueHandler).Methods(http.MethodDelete)
	api.HandleFunc("/queue/order", s.ReorderQueueHandler).Methods(http.MethodPut)
	api.HandleFunc("/queue/shuffle", s.ShuffleHandler).Methods(http.MethodPut)
	api.HandleFunc("/queue/repeat", s.RepeatHandler).Methods(http.MethodPut)
	api.HandleFunc("/queue/{index:[0-9]+}", s.RemoveFromQueueHandler).Methods(http.MethodDelete)
	api.HandleFunc("/queue/{index:[0-9]+}/play", s.PlayIndexHandler).Methods(http.MethodPost)

	api.HandleFunc("/player", s.StatusHandler).Methods(http.MethodGet)
	api.HandleFunc("/player/seek", s.SeekHandler).Methods(http.MethodPut)
	api.HandleFunc("/player/volume", s.VolumeHandler).Methods(http.MethodPut)
	api.HandleFunc("/player/{action}", s.PlayerActionHandler).Methods(http.MethodPost)

	router.HandleFunc("/ws/queue", s.QueueSocketHandler)

	return router
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully.
// The websocket hub runs for the lifetime of the server and is fed every
// queue change.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go s.hub.Run(hubCtx)
	unsubscribe := s.Watch()
	defer unsubscribe()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server starting", logger.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Info("server stopped")
	return nil
}
