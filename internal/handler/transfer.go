package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/beanjar/internal/ledger"
	"github.com/dukerupert/beanjar/internal/model"
	"github.com/dukerupert/beanjar/internal/push"
	"github.com/dukerupert/beanjar/internal/store"
	"github.com/dukerupert/beanjar/internal/websocket"
)

type TransferHandler struct {
	txns    *store.TransactionStore
	members *store.MemberStore
	ledger  *ledger.Service
	hub     *websocket.Hub
	notify  *push.Notifier
	logger  *slog.Logger
}

func NewTransferHandler(ts *store.TransactionStore, ms *store.MemberStore, svc *ledger.Service, hub *websocket.Hub, notify *push.Notifier, logger *slog.Logger) *TransferHandler {
	return &TransferHandler{txns: ts, members: ms, ledger: svc, hub: hub, notify: notify, logger: logger}
}

func (h *TransferHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SenderID   int64  `json:"sender_id"`
		ReceiverID int64  `json:"receiver_id"`
		Amount     int    `json:"amount"`
		Message    string `json:"message"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.SenderID == 0 || req.ReceiverID == 0 {
		writeMessage(w, http.StatusBadRequest, "sender_id and receiver_id are required")
		return
	}

	receipt, err := h.ledger.Transfer(r.Context(), ledger.TransferInput{
		SenderID:   req.SenderID,
		ReceiverID: req.ReceiverID,
		Amount:     req.Amount,
		Message:    req.Message,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	sender, err := h.members.GetByID(r.Context(), receipt.SenderID)
	if err == nil && sender != nil {
		h.hub.Broadcast(websocket.NewMessage("transfer", "created", sender.ID, sender.FamilyID, map[string]any{
			"receiver_id": receipt.ReceiverID,
			"amount":      receipt.Amount,
		}))
		h.notify.GiftReceived(receipt.ReceiverID, sender.Name, receipt.Amount)
	}
	writeJSON(w, http.StatusOK, receipt)
}

// Transactions lists a member's ledger history, newest first.
func (h *TransferHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	memberID, err := parseQueryID(r, "member_id")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid member_id")
		return
	}
	if memberID == nil {
		writeMessage(w, http.StatusBadRequest, "member_id is required")
		return
	}

	txns, err := h.txns.ListByMember(r.Context(), *memberID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if txns == nil {
		txns = []model.Transaction{}
	}
	writeJSON(w, http.StatusOK, txns)
}
