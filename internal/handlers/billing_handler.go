package handlers

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/clinic-booking-api/internal/models"
	"github.com/harentsoaR/clinic-booking-api/internal/store"
	"github.com/harentsoaR/clinic-booking-api/internal/utils"
)

// WebhookTokenHeader carries the shared secret the payment gateway sends.
const WebhookTokenHeader = "X-Webhook-Token"

type PaymentWebhookRequest struct {
	OrderCode int64  `json:"orderCode" binding:"required"`
	Status    string `json:"status" binding:"required,oneof=paid pending canceled"`
}

func (h *Handler) GetRefunds(c *gin.Context) {
	status := c.Query("status")
	switch status {
	case "", models.RefundPending, models.RefundProcessing, models.RefundRefunded, models.RefundFailed:
	default:
		utils.SendError(c, http.StatusBadRequest, utils.CodeValidation, "Unknown refund status "+status)
		return
	}
	refunds, err := h.Stores.Refunds.List(c.Request.Context(), status)
	if err != nil {
		h.storeError(c, err, "refunds")
		return
	}
	utils.SendSuccess(c, http.StatusOK, refunds, "")
}

// ConfirmRefund records that staff paid the refund out.
func (h *Handler) ConfirmRefund(c *gin.Context) {
	id, ok := objectID(c, c.Param("id"), "refund")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	refund, err := h.Stores.Refunds.Get(ctx, id)
	if err != nil {
		h.storeError(c, err, "refund")
		return
	}
	if !refund.Confirmable() {
		utils.SendError(c, http.StatusConflict, utils.CodeInvalidState, "Refund is already "+refund.Status)
		return
	}

	at := h.Now()
	if err := h.Stores.Refunds.MarkRefunded(ctx, id, at); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.SendError(c, http.StatusConflict, utils.CodeInvalidState, "Refund was already confirmed")
			return
		}
		h.storeError(c, err, "refund")
		return
	}
	refund.Status = models.RefundRefunded
	refund.ProcessedAt = &at
	h.Notifier.RefundConfirmed(refund)

	h.Logger.Info().Str("refundId", id.Hex()).Int64("amount", refund.Amount).Msg("refund confirmed")
	utils.SendSuccess(c, http.StatusOK, refund, "Refund confirmed")
}

// PaymentWebhook records the gateway's verdict on a payment. A paid
// booking moves its appointment to fully_paid.
func (h *Handler) PaymentWebhook(c *gin.Context) {
	if h.WebhookToken != "" &&
		subtle.ConstantTimeCompare([]byte(c.GetHeader(WebhookTokenHeader)), []byte(h.WebhookToken)) != 1 {
		utils.SendError(c, http.StatusUnauthorized, utils.CodeInvalidToken, "Invalid webhook token")
		return
	}
	var req PaymentWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, utils.CodeValidation, err.Error())
		return
	}

	ctx := c.Request.Context()
	payment, err := h.Stores.Payments.GetByOrderCode(ctx, req.OrderCode)
	if err != nil {
		h.storeError(c, err, "payment")
		return
	}
	if payment.Status == req.Status {
		utils.SendSuccess(c, http.StatusOK, payment, "Payment unchanged")
		return
	}
	if payment.Status != models.PaymentPending {
		utils.SendError(c, http.StatusConflict, utils.CodeInvalidState, "Payment is already "+payment.Status)
		return
	}

	now := h.Now()
	if err := h.Stores.Payments.UpdateStatus(ctx, req.OrderCode, req.Status, now); err != nil {
		h.storeError(c, err, "payment")
		return
	}
	payment.Status = req.Status
	payment.UpdatedAt = now

	if req.Status == models.PaymentPaid && !payment.MetaData.AppointmentID.IsZero() {
		h.markFullyPaid(c, payment)
	}
	utils.SendSuccess(c, http.StatusOK, payment, "Payment updated")
}

func (h *Handler) markFullyPaid(c *gin.Context, payment *models.Payment) {
	ctx := c.Request.Context()
	appt, err := h.Stores.Appointments.Get(ctx, payment.MetaData.AppointmentID)
	if err != nil {
		h.Logger.Error().Err(err).Int64("orderCode", payment.OrderCode).Msg("paid payment has no appointment")
		return
	}
	if !models.CanTransition(appt.Status, models.StatusFullyPaid) {
		h.Logger.Warn().
			Str("appointmentId", appt.ID.Hex()).
			Str("status", appt.Status).
			Msg("payment received for appointment that cannot be marked paid")
		return
	}
	if err := h.Stores.Appointments.UpdateStatus(ctx, appt.ID, appt.Status, models.StatusFullyPaid); err != nil {
		h.Logger.Error().Err(err).Str("appointmentId", appt.ID.Hex()).Msg("failed to mark appointment paid")
		return
	}
	appt.Status = models.StatusFullyPaid
	h.Notifier.AppointmentStatusChanged(appt)
}
