package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/vendor-marketplace/services/booking/internal/domain"
	"example.com/vendor-marketplace/services/booking/internal/service"
)

// AdminHandler - выплаты вендору и admin ledger.
type AdminHandler struct {
	payouts   service.PayoutService
	projector service.LedgerProjector
}

// NewAdminHandler создаёт обработчик admin API.
func NewAdminHandler(payouts service.PayoutService, projector service.LedgerProjector) *AdminHandler {
	return &AdminHandler{payouts: payouts, projector: projector}
}

// ProcessAdvance выплачивает аванс и создаёт бронирование.
// POST /api/v1/admin/payouts/advance
func (h *AdminHandler) ProcessAdvance(c *gin.Context) {
	h.payout(c, "ProcessAdvance", h.payouts.ProcessAdvance)
}

// ProcessFull выплачивает остаток.
// POST /api/v1/admin/payouts/full
func (h *AdminHandler) ProcessFull(c *gin.Context) {
	h.payout(c, "ProcessFull", h.payouts.ProcessFull)
}

func (h *AdminHandler) payout(c *gin.Context, op string,
	fn func(ctx context.Context, caller domain.Caller, paymentID string) (*service.PayoutResult, error)) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}

	var req PayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := fn(c.Request.Context(), caller, req.PaymentID)
	if err != nil {
		HandleError(c, err, op)
		return
	}

	c.JSON(http.StatusOK, PayoutResponse{
		Payment: toPaymentResponse(res.Payment),
		Booking: toBookingResponse(res.Booking),
	})
}

// Ledger возвращает страницу admin ledger.
// GET /api/v1/admin/ledger?limit=&offset=
func (h *AdminHandler) Ledger(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}

	limit, offset := pageParams(c)
	views, total, err := h.projector.List(c.Request.Context(), caller, limit, offset)
	if err != nil {
		HandleError(c, err, "ListLedger")
		return
	}
	if views == nil {
		views = []domain.LedgerView{}
	}

	c.JSON(http.StatusOK, LedgerResponse{Entries: views, Total: total, Limit: limit, Offset: offset})
}

// PaymentDetail возвращает платёж с заявкой и бронированием.
// GET /api/v1/admin/payments/:id
func (h *AdminHandler) PaymentDetail(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}

	d, err := h.projector.PaymentDetail(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		HandleError(c, err, "PaymentDetail")
		return
	}

	resp := PaymentDetailResponse{
		Payment: toPaymentResponse(d.Payment),
		Booking: toBookingResponse(d.Booking),
	}
	if d.Request != nil {
		r := toRequestResponse(d.Request)
		resp.Request = &r
	}
	c.JSON(http.StatusOK, resp)
}
