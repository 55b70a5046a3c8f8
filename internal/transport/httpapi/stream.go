package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"batchtrack/internal/bootstrap/logging"
	domainbatch "batchtrack/internal/domain/batch"
	"batchtrack/internal/errs"
	"batchtrack/internal/usecase/feed"
)

const (
	streamWriteTimeout = 10 * time.Second
	streamPingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// streamMessage is one websocket frame: a snapshot, or the error that ended
// the stream.
type streamMessage struct {
	Snapshot *feed.Snapshot `json:"snapshot,omitempty"`
	Error    *errorBody     `json:"error,omitempty"`
}

func (s *Server) streamView(w http.ResponseWriter, r *http.Request) {
	view, err := parseBatchView(chi.URLParam(r, "view"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.stream(w, r, view, "")
}

func (s *Server) streamSamples(w http.ResponseWriter, r *http.Request) {
	batchID, err := domainbatch.RequireID("batch_id", chi.URLParam(r, "batchID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.stream(w, r, domainbatch.ViewSamples, batchID)
}

// stream forwards snapshots until the client leaves or the subscription ends.
// Only the newest pending snapshot is kept for slow clients.
func (s *Server) stream(w http.ResponseWriter, r *http.Request, view domainbatch.View, batchID string) {
	ctx := logging.WithAttrs(r.Context(), slog.String("view", string(view)), slog.String("batch_id", batchID))

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn(ctx, "websocket upgrade failed", slog.String("reason", err.Error()))
		return
	}
	defer conn.Close()

	pending := make(chan feed.Snapshot, 1)
	sub, err := s.streams.Subscribe(view, batchID, func(snap feed.Snapshot) {
		for {
			select {
			case pending <- snap:
				return
			default:
			}
			select {
			case <-pending:
			default:
			}
		}
	})
	if err != nil {
		body := newErrorBody(err)
		_ = writeFrame(conn, streamMessage{Error: &body})
		return
	}
	defer sub.Cancel()

	logging.Info(ctx, "stream opened")
	defer logging.Info(ctx, "stream closed")

	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(streamPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-clientGone:
			return
		case <-sub.Done():
			// drain the final snapshot, usually the failure
			select {
			case snap := <-pending:
				_ = s.writeSnapshot(conn, snap)
			default:
			}
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(streamWriteTimeout))
			return
		case snap := <-pending:
			if err := s.writeSnapshot(conn, snap); err != nil {
				logging.Warn(ctx, "stream write failed", slog.String("reason", err.Error()))
				return
			}
			if snap.Err != nil {
				logging.Warn(ctx, "stream subscription failed", slog.Any("err", errs.Loggable(snap.Err)))
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteTimeout)); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeSnapshot(conn *websocket.Conn, snap feed.Snapshot) error {
	if snap.Err != nil {
		body := newErrorBody(snap.Err)
		return writeFrame(conn, streamMessage{Error: &body})
	}
	return writeFrame(conn, streamMessage{Snapshot: &snap})
}

func writeFrame(conn *websocket.Conn, msg streamMessage) error {
	if err := conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}
