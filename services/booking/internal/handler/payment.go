package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/vendor-marketplace/services/booking/internal/service"
)

// PaymentHandler - создание заказа на оплату и синхронная проверка checkout.
type PaymentHandler struct {
	orders     service.OrderService
	reconciler service.Reconciler
}

// NewPaymentHandler создаёт обработчик платежей.
func NewPaymentHandler(orders service.OrderService, reconciler service.Reconciler) *PaymentHandler {
	return &PaymentHandler{orders: orders, reconciler: reconciler}
}

// CreateOrder открывает заказ в платежном шлюзе для принятой заявки.
// Повторный вызов возвращает тот же заказ.
// POST /api/v1/payments/orders
func (h *PaymentHandler) CreateOrder(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.orders.CreateOrder(c.Request.Context(), caller, req.RequestID)
	if err != nil {
		HandleError(c, err, "CreateOrder")
		return
	}

	a := res.Payment.Amounts
	c.JSON(http.StatusOK, CreateOrderResponse{
		PaymentID:       res.Payment.ID,
		OrderID:         res.OrderID,
		AmountMinor:     res.AmountMinor,
		Currency:        res.Currency,
		KeyID:           res.KeyID,
		Amount:          a.Total,
		PlatformFee:     a.PlatformFee,
		AdvanceAmount:   a.AdvanceAmount,
		RemainingAmount: a.RemainingAmount,
	})
}

// Verify сверяет данные checkout с платежом.
// POST /api/v1/payments/verify
func (h *PaymentHandler) Verify(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}

	var req VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	receipt, err := h.reconciler.VerifyPayment(c.Request.Context(), service.ClientEvidence{
		Caller:    caller,
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
	})
	if err != nil {
		HandleError(c, err, "VerifyPayment")
		return
	}

	c.JSON(http.StatusOK, VerifyPaymentResponse{Success: true, Payment: *receipt})
}
