package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"tunemux/core/queue"
	"tunemux/logger"
	"tunemux/model"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Watch pushes every queue change to websocket clients. The returned func
// stops it.
func (s *Server) Watch() func() {
	return s.player.Queue().Subscribe(func(snap queue.Snapshot) {
		s.hub.Broadcast(MsgTypeQueue, snap)
	})
}

func (s *Server) broadcastStatus() {
	s.hub.Broadcast(MsgTypeStatus, s.player.Status())
}

func (s *Server) GetQueueHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.player.Queue().Snapshot())
}

// EnqueueHandler adds the body's track. ?mode= picks where: "add" appends
// (default), "next" inserts after the current track and "now" plays it.
func (s *Server) EnqueueHandler(w http.ResponseWriter, r *http.Request) {
	track, err := decodeTrack(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	q := s.player.Queue()
	switch mode := r.URL.Query().Get("mode"); mode {
	case "", "add":
		q.Add(track)
	case "next":
		q.InsertNext(track)
	case "now":
		if err := s.player.PlayTrack(r.Context(), track); err != nil {
			s.writeError(w, r, err)
			return
		}
		s.broadcastStatus()
	default:
		s.writeError(w, r, badRequest("unknown mode %q", mode))
		return
	}
	writeJSON(w, http.StatusOK, q.Snapshot())
}

func (s *Server) ClearQueueHandler(w http.ResponseWriter, r *http.Request) {
	s.player.ClearQueue()
	s.broadcastStatus()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) RemoveFromQueueHandler(w http.ResponseWriter, r *http.Request) {
	index, err := pathInt(r, "index")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	removed, err := s.player.Remove(r.Context(), index)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

func (s *Server) ReorderQueueHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From int `json:"from"`
		To   int `json:"to"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	moved := s.player.Queue().Reorder(req.From, req.To)
	writeJSON(w, http.StatusOK, map[string]bool{"moved": moved})
}

func (s *Server) ShuffleHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		On bool `json:"on"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.player.Queue().SetShuffle(req.On)
	writeJSON(w, http.StatusOK, s.player.Queue().Snapshot())
}

func (s *Server) RepeatHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode queue.RepeatMode `json:"mode"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if !s.player.Queue().SetRepeat(req.Mode) {
		s.writeError(w, r, badRequest("unknown repeat mode %q", req.Mode))
		return
	}
	writeJSON(w, http.StatusOK, s.player.Queue().Snapshot())
}

func (s *Server) PlayIndexHandler(w http.ResponseWriter, r *http.Request) {
	index, err := pathInt(r, "index")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if index >= s.player.Queue().Len() {
		s.writeError(w, r, badRequest("index %d out of range", index))
		return
	}
	if err := s.player.PlayIndex(r.Context(), index); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.broadcastStatus()
	writeJSON(w, http.StatusOK, s.player.Status())
}

func (s *Server) StatusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.player.Status())
}

// PlayerActionHandler runs /api/player/{action}.
func (s *Server) PlayerActionHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.runAction(r.Context(), MessageType(mux.Vars(r)["action"])); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.broadcastStatus()
	writeJSON(w, http.StatusOK, s.player.Status())
}

func (s *Server) runAction(ctx context.Context, action MessageType) error {
	switch action {
	case MsgTypePlay:
		return s.player.PlayCurrent(ctx)
	case "resume":
		return s.player.Resume()
	case MsgTypePause:
		return s.player.Pause()
	case MsgTypeNext:
		return s.player.Next(ctx)
	case MsgTypePrev, "previous":
		return s.player.Previous(ctx)
	case "stop":
		s.player.Stop()
		return nil
	default:
		return badRequest("unknown action %q", action)
	}
}

func (s *Server) SeekHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Fraction float64 `json:"fraction"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Fraction < 0 || req.Fraction > 1 {
		s.writeError(w, r, badRequest("fraction must be within [0,1]"))
		return
	}
	if err := s.player.Seek(req.Fraction); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.player.Status())
}

func (s *Server) VolumeHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Volume float64 `json:"volume"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.player.SetVolume(req.Volume); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.player.Status())
}

// QueueSocketHandler upgrades to a websocket that receives the queue and
// player status and accepts player commands.
func (s *Server) QueueSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", logger.ErrorField(err))
		return
	}

	client := &Client{hub: s.hub, conn: conn, send: make(chan []byte, sendBuffer)}
	if snap, err := encodeMessage(MsgTypeQueue, s.player.Queue().Snapshot()); err == nil {
		client.send <- snap
	}
	if !s.hub.Register(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	client.ReadPump(context.Background(), s.handleSocketMessage)
}

func (s *Server) handleSocketMessage(ctx context.Context, c *Client, msg *WSMessage) {
	var err error
	switch msg.Type {
	case MsgTypeSeek:
		var fraction float64
		if err = json.Unmarshal(msg.Data, &fraction); err == nil {
			err = s.player.Seek(fraction)
		}
	case MsgTypeVolume:
		var v float64
		if err = json.Unmarshal(msg.Data, &v); err == nil {
			err = s.player.SetVolume(v)
		}
	case MsgTypeShuffle:
		var on bool
		if err = json.Unmarshal(msg.Data, &on); err == nil {
			s.player.Queue().SetShuffle(on)
		}
	case MsgTypeRepeat:
		var mode queue.RepeatMode
		if err = json.Unmarshal(msg.Data, &mode); err == nil && !s.player.Queue().SetRepeat(mode) {
			err = fmt.Errorf("unknown repeat mode %q", mode)
		}
	case MsgTypeSelect:
		var index int
		if err = json.Unmarshal(msg.Data, &index); err == nil {
			err = s.player.PlayIndex(ctx, index)
		}
	case MsgTypeQueue:
		var track model.Track
		if err = json.Unmarshal(msg.Data, &track); err == nil {
			s.player.Queue().Add(track)
		}
	default:
		err = s.runAction(ctx, msg.Type)
	}

	if err != nil {
		c.Send(MsgTypeError, map[string]string{"error": err.Error()})
		return
	}
	s.hub.Broadcast(MsgTypeStatus, s.player.Status())
}
