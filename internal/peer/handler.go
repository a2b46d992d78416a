package peer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hyperware-ai/chat/internal/chat"
)

const maxRequestBytes = 16 << 20

// Service is the node-side sink for inbound peer operations.
type Service interface {
	HandleChatCreation(ctx context.Context, counterparty string) error
	HandleMessage(ctx context.Context, msg chat.Message) error
	HandleAck(ctx context.Context, messageID string) error
	HandleReaction(ctx context.Context, op ReactionOp) error
	HandleDeletion(ctx context.Context, op DeletionOp) error
}

// Handler decodes wire requests and delegates to the service.
type Handler struct {
	log     *zap.Logger
	svc     Service
	metrics *Metrics
}

// NewHandler builds the inbound wire handler.
func NewHandler(log *zap.Logger, svc Service, metrics *Metrics) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{log: log, svc: svc, metrics: metrics}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		h.reply(w, http.StatusBadRequest, ErrResponse("read request body"))
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		h.log.Warn("malformed peer request",
			zap.String("remote", r.RemoteAddr),
			zap.Error(err))
		h.reply(w, http.StatusBadRequest, ErrResponse(err.Error()))
		return
	}

	op := req.Op()
	start := time.Now()
	err = h.dispatch(r.Context(), req)
	h.metrics.observe(op, "inbound", start, err)

	if err != nil {
		h.log.Warn("peer operation rejected",
			zap.String("op", op),
			zap.String("remote", r.RemoteAddr),
			zap.Error(err))
		h.reply(w, http.StatusUnprocessableEntity, ErrResponse(err.Error()))
		return
	}
	h.reply(w, http.StatusOK, OkResponse())
}

func (h *Handler) dispatch(ctx context.Context, req Request) error {
	switch {
	case req.ChatCreation != nil:
		return h.svc.HandleChatCreation(ctx, *req.ChatCreation)
	case req.Message != nil:
		return h.svc.HandleMessage(ctx, *req.Message)
	case req.Ack != nil:
		return h.svc.HandleAck(ctx, *req.Ack)
	case req.Reaction != nil:
		return h.svc.HandleReaction(ctx, *req.Reaction)
	case req.Deletion != nil:
		return h.svc.HandleDeletion(ctx, *req.Deletion)
	}
	// Unreachable: UnmarshalJSON rejects empty and unknown envelopes.
	return nil
}

func (h *Handler) reply(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.log.Debug("write peer response", zap.Error(err))
	}
}
