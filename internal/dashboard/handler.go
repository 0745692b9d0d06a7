package dashboard

import (
	"encoding/json"
	"log"
	"time"

	"github.com/inkwell-app/inkwell/internal/hydrate"
	"github.com/inkwell-app/inkwell/internal/orchestrator"
	"github.com/inkwell-app/inkwell/internal/syncer"
)

// Handler bridges sync engine events to dashboard broadcasts.
type Handler struct {
	server *Server
	logger *log.Logger
}

// NewHandler creates an event handler connected to a dashboard server.
func NewHandler(server *Server, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{server: server, logger: logger}
}

// OnStatusChange broadcasts an orchestrator status transition. It has
// the shape of an orchestrator listener, so it can be passed straight
// to Subscribe.
func (h *Handler) OnStatusChange(status orchestrator.Status) {
	h.send(MessageTypeStatus, StatusData{Status: string(status)})
}

// OnSyncPass broadcasts the outcome of a drain pass.
func (h *Handler) OnSyncPass(res syncer.Result, err error) {
	data := SyncPassData{Processed: res.Processed, Failed: res.Failed}
	if err != nil {
		data.Error = err.Error()
	}
	h.send(MessageTypeSyncPass, data)
}

// OnPendingCount broadcasts the queued-mutation count.
func (h *Handler) OnPendingCount(count int) {
	h.send(MessageTypePending, PendingData{Count: count})
}

// OnHydration broadcasts the first-run import outcome.
func (h *Handler) OnHydration(res hydrate.Result) {
	h.send(MessageTypeHydration, HydrationData{Hydrated: res.Hydrated, Skipped: res.Skipped})
}

func (h *Handler) send(t MessageType, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Printf("Failed to marshal %s data: %v", t, err)
		return
	}
	h.server.Broadcast(Message{Type: t, Timestamp: time.Now(), Data: data})
}
