package http

import (
	"context"
	"time"

	"transit-console/internal/backup/domain/model"
	"transit-console/internal/shared/errors"

	"github.com/gofiber/contrib/websocket"
)

const wsWriteTimeout = 10 * time.Second

// ProgressMessage is one frame of the restore progress stream.
type ProgressMessage struct {
	Type       string                 `json:"type"`
	Progress   *model.RestoreProgress `json:"progress,omitempty"`
	Percentage float64                `json:"percentage,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

// StreamRestore sends the latest progress of a run and then every update
// until the run ends or the client goes away. Unknown runs get an error frame.
func (h *BackupHandler) StreamRestore(conn *websocket.Conn) {
	restoreID := conn.Params("id")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := h.log.WithFields(map[string]interface{}{"restore_id": restoreID})

	// Reads only detect the client closing the connection.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(msg ProgressMessage) bool {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return conn.WriteJSON(msg) == nil
	}
	sendProgress := func(p model.RestoreProgress) bool {
		return send(ProgressMessage{Type: "progress", Progress: &p, Percentage: p.Percentage()})
	}
	defer conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))

	_, err := h.restores.Progress(ctx, restoreID)
	switch {
	case errors.IsNotFound(err):
		send(ProgressMessage{Type: "error", Error: "restore not found"})
		return
	case err != nil:
		log.WithError(err).Warn("Failed to read restore progress")
		send(ProgressMessage{Type: "error", Error: err.Error()})
		return
	}
	// Follow starts from the latest entry, so a run that ends between the
	// lookup above and the subscription still reports its terminal phase.
	if err := h.restores.Follow(ctx, restoreID, sendProgress); err != nil && ctx.Err() == nil {
		log.WithError(err).Warn("Restore progress stream ended")
		send(ProgressMessage{Type: "error", Error: err.Error()})
	}
}
