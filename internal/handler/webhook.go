package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	stripe "github.com/stripe/stripe-go/v82"

	"github.com/speechvault/speechvault/internal/store"
	"github.com/speechvault/speechvault/internal/stripeclient"
)

type WebhookHandler struct {
	stripe       *stripeclient.Client
	accountStore *store.AccountStore
	logger       *slog.Logger
}

func NewWebhookHandler(sc *stripeclient.Client, as *store.AccountStore, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{stripe: sc, accountStore: as, logger: logger}
}

// HandleStripeWebhook credits wallets when top-up checkouts complete.
// Unrecognized event types are acknowledged and ignored.
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 65536))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	event, err := h.stripe.ConstructWebhookEvent(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	if event.Type == "checkout.session.completed" {
		h.handleCheckoutCompleted(event)
	}

	w.WriteHeader(http.StatusOK)
}

func (h *WebhookHandler) handleCheckoutCompleted(event stripe.Event) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		h.logger.Error("webhook: unmarshal checkout session", "error", err)
		return
	}
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return
	}

	accountID, err := strconv.ParseInt(sess.Metadata["account_id"], 10, 64)
	if err != nil {
		h.logger.Error("webhook: missing account_id metadata", "session", sess.ID)
		return
	}
	amount, err := strconv.ParseInt(sess.Metadata["amount_minor"], 10, 64)
	if err != nil || amount <= 0 {
		h.logger.Error("webhook: bad amount_minor metadata", "session", sess.ID)
		return
	}

	if err := h.accountStore.Credit(accountID, amount); err != nil {
		h.logger.Error("webhook: credit wallet", "account_id", accountID, "error", err)
		return
	}
	h.logger.Info("wallet credited", "account_id", accountID, "amount_minor", amount)
}
