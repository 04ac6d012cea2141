package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"example.com/vendor-marketplace/services/booking/internal/domain"
	"example.com/vendor-marketplace/services/booking/internal/middleware"
	"example.com/vendor-marketplace/services/booking/internal/service"
)

// MockRequestService - мок для service.RequestService.
type MockRequestService struct {
	CreateFunc   func(ctx context.Context, caller domain.Caller, in service.CreateRequestInput) (*domain.BookingRequest, error)
	GetFunc      func(ctx context.Context, caller domain.Caller, id string) (*domain.BookingRequest, error)
	ListMineFunc func(ctx context.Context, caller domain.Caller, st domain.RequestStatus, limit, offset int) ([]*domain.BookingRequest, error)
	AcceptFunc   func(ctx context.Context, caller domain.Caller, id string) (*domain.BookingRequest, error)
	DeclineFunc  func(ctx context.Context, caller domain.Caller, id string) (*domain.BookingRequest, error)
	CancelFunc   func(ctx context.Context, caller domain.Caller, id string) (*domain.BookingRequest, error)
}

func (m *MockRequestService) Create(ctx context.Context, caller domain.Caller, in service.CreateRequestInput) (*domain.BookingRequest, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, caller, in)
	}
	return nil, nil
}

func (m *MockRequestService) Get(ctx context.Context, caller domain.Caller, id string) (*domain.BookingRequest, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, caller, id)
	}
	return nil, nil
}

func (m *MockRequestService) ListMine(ctx context.Context, caller domain.Caller, st domain.RequestStatus, limit, offset int) ([]*domain.BookingRequest, error) {
	if m.ListMineFunc != nil {
		return m.ListMineFunc(ctx, caller, st, limit, offset)
	}
	return nil, nil
}

func (m *MockRequestService) Accept(ctx context.Context, caller domain.Caller, id string) (*domain.BookingRequest, error) {
	if m.AcceptFunc != nil {
		return m.AcceptFunc(ctx, caller, id)
	}
	return nil, nil
}

func (m *MockRequestService) Decline(ctx context.Context, caller domain.Caller, id string) (*domain.BookingRequest, error) {
	if m.DeclineFunc != nil {
		return m.DeclineFunc(ctx, caller, id)
	}
	return nil, nil
}

func (m *MockRequestService) Cancel(ctx context.Context, caller domain.Caller, id string) (*domain.BookingRequest, error) {
	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, caller, id)
	}
	return nil, nil
}

// MockOrderService - мок для service.OrderService.
type MockOrderService struct {
	CreateOrderFunc func(ctx context.Context, caller domain.Caller, requestID string) (*service.OrderResult, error)
}

func (m *MockOrderService) CreateOrder(ctx context.Context, caller domain.Caller, requestID string) (*service.OrderResult, error) {
	if m.CreateOrderFunc != nil {
		return m.CreateOrderFunc(ctx, caller, requestID)
	}
	return nil, nil
}

// MockReconciler - мок для service.Reconciler.
type MockReconciler struct {
	ReconcileFunc     func(ctx context.Context, ev service.Evidence) (*service.Outcome, error)
	VerifyPaymentFunc func(ctx context.Context, ev service.ClientEvidence) (*domain.CaptureReceipt, error)
	HandleWebhookFunc func(ctx context.Context, body []byte, signature, eventID string) error
}

func (m *MockReconciler) Reconcile(ctx context.Context, ev service.Evidence) (*service.Outcome, error) {
	if m.ReconcileFunc != nil {
		return m.ReconcileFunc(ctx, ev)
	}
	return nil, nil
}

func (m *MockReconciler) VerifyPayment(ctx context.Context, ev service.ClientEvidence) (*domain.CaptureReceipt, error) {
	if m.VerifyPaymentFunc != nil {
		return m.VerifyPaymentFunc(ctx, ev)
	}
	return nil, nil
}

func (m *MockReconciler) HandleWebhook(ctx context.Context, body []byte, signature, eventID string) error {
	if m.HandleWebhookFunc != nil {
		return m.HandleWebhookFunc(ctx, body, signature, eventID)
	}
	return nil
}

// MockPayoutService - мок для service.PayoutService.
type MockPayoutService struct {
	ProcessAdvanceFunc func(ctx context.Context, caller domain.Caller, paymentID string) (*service.PayoutResult, error)
	ProcessFullFunc    func(ctx context.Context, caller domain.Caller, paymentID string) (*service.PayoutResult, error)
}

func (m *MockPayoutService) ProcessAdvance(ctx context.Context, caller domain.Caller, paymentID string) (*service.PayoutResult, error) {
	if m.ProcessAdvanceFunc != nil {
		return m.ProcessAdvanceFunc(ctx, caller, paymentID)
	}
	return nil, nil
}

func (m *MockPayoutService) ProcessFull(ctx context.Context, caller domain.Caller, paymentID string) (*service.PayoutResult, error) {
	if m.ProcessFullFunc != nil {
		return m.ProcessFullFunc(ctx, caller, paymentID)
	}
	return nil, nil
}

// MockLedgerProjector - мок для service.LedgerProjector.
type MockLedgerProjector struct {
	ListFunc          func(ctx context.Context, caller domain.Caller, limit, offset int) ([]domain.LedgerView, int64, error)
	PaymentDetailFunc func(ctx context.Context, caller domain.Caller, paymentID string) (*service.PaymentDetail, error)
}

func (m *MockLedgerProjector) List(ctx context.Context, caller domain.Caller, limit, offset int) ([]domain.LedgerView, int64, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, caller, limit, offset)
	}
	return nil, 0, nil
}

func (m *MockLedgerProjector) PaymentDetail(ctx context.Context, caller domain.Caller, paymentID string) (*service.PaymentDetail, error) {
	if m.PaymentDetailFunc != nil {
		return m.PaymentDetailFunc(ctx, caller, paymentID)
	}
	return nil, nil
}

var (
	customer = domain.Caller{ID: "cust-1", Role: domain.RoleCustomer, Name: "Asha"}
	vendor   = domain.Caller{ID: "vend-1", Role: domain.RoleVendor, Name: "DJ Ravi"}
	admin    = domain.Caller{ID: "admin-1", Role: domain.RoleAdmin}
)

// withCaller имитирует AuthMiddleware.
func withCaller(caller *domain.Caller) gin.HandlerFunc {
	return func(c *gin.Context) {
		if caller != nil {
			middleware.SetCaller(c, *caller)
		}
		c.Next()
	}
}

func newTestEngine(caller *domain.Caller) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(withCaller(caller))
	return r
}

func validRequest() *domain.BookingRequest {
	now := time.Date(2026, 10, 1, 10, 0, 0, 0, time.UTC)
	return &domain.BookingRequest{
		ID:            "req-1",
		Requester:     domain.Party{ID: customer.ID, Name: customer.Name},
		Vendor:        domain.Party{ID: vendor.ID, Name: vendor.Name},
		Listing:       domain.Listing{ID: "lst-1", Title: "DJ на свадьбу"},
		Items:         []domain.LineItem{{Name: "DJ set", Price: decimal.NewFromInt(10000)}},
		TotalPrice:    decimal.NewFromInt(10000),
		EventDate:     time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC),
		EventTime:     "19:00",
		Address:       "Bandra West, Mumbai",
		Status:        domain.RequestStatusPending,
		PaymentStatus: domain.PaymentUnpaid,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func validPayment() *domain.Payment {
	policy := domain.FeePolicy{
		FeeRate:         decimal.RequireFromString("0.10"),
		AdvanceRate:     decimal.RequireFromString("0.30"),
		MinorUnitFactor: 100,
		Currency:        "INR",
	}
	amounts, err := policy.Calculate(decimal.NewFromInt(10000))
	if err != nil {
		panic(err)
	}
	return domain.NewPayment("pay-1", validRequest(), amounts, "order_1", time.Date(2026, 10, 2, 0, 0, 0, 0, time.UTC))
}
