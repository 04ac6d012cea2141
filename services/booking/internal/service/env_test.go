package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"example.com/vendor-marketplace/services/booking/internal/domain"
	"example.com/vendor-marketplace/services/booking/internal/gateway"
	"example.com/vendor-marketplace/services/booking/internal/repository"
)

var (
	customer = domain.Caller{ID: "cust-1", Role: domain.RoleCustomer, Name: "Asha", Phone: "+919800000001"}
	vendor   = domain.Caller{ID: "vend-1", Role: domain.RoleVendor, Name: "Sound & Lights", Phone: "+919800000002"}
	admin    = domain.Caller{ID: "admin-1", Role: domain.RoleAdmin, Name: "Ops"}
	stranger = domain.Caller{ID: "cust-2", Role: domain.RoleCustomer, Name: "Ravi"}
)

func testPolicy() domain.FeePolicy {
	return domain.FeePolicy{
		FeeRate:         decimal.RequireFromString("0.10"),
		AdvanceRate:     decimal.RequireFromString("0.30"),
		MinorUnitFactor: 100,
		Places:          0,
		Currency:        "INR",
	}
}

type testEnv struct {
	store    *memStore
	gw       *fakeGateway
	notifier *fakeNotifier

	requests   RequestService
	orders     OrderService
	reconciler Reconciler
	payouts    PayoutService
	ledger     LedgerProjector
}

func newTestEnv(t *testing.T, events repository.WebhookEventStore) *testEnv {
	t.Helper()
	store := newMemStore()
	gw := newFakeGateway()
	n := &fakeNotifier{}

	reqs, pays, books, ledger := memRequests{store}, memPayments{store}, memBookings{store}, memLedger{store}
	return &testEnv{
		store:      store,
		gw:         gw,
		notifier:   n,
		requests:   NewRequestService(reqs, n),
		orders:     NewOrderService(reqs, pays, gw, testPolicy()),
		reconciler: NewReconciler(pays, events, gw, n),
		payouts:    NewPayoutService(pays, reqs, books),
		ledger:     NewLedgerProjector(ledger, pays, reqs, books),
	}
}

func (e *testEnv) createRequest(t *testing.T, total string) *domain.BookingRequest {
	t.Helper()
	req, err := e.requests.Create(context.Background(), customer, CreateRequestInput{
		VendorID:     vendor.ID,
		VendorName:   vendor.Name,
		VendorPhone:  vendor.Phone,
		ListingID:    "lst-1",
		ListingTitle: "DJ night",
		Items:        []domain.LineItem{{Name: "DJ set", Price: decimal.RequireFromString(total)}},
		EventDate:    time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
		EventTime:    "20:00",
		Address:      "12 MG Road, Bengaluru",
	})
	require.NoError(t, err)
	return req
}

func (e *testEnv) acceptedRequest(t *testing.T, total string) *domain.BookingRequest {
	t.Helper()
	req := e.createRequest(t, total)
	accepted, err := e.requests.Accept(context.Background(), vendor, req.ID)
	require.NoError(t, err)
	return accepted
}

func (e *testEnv) openOrder(t *testing.T, total string) (*domain.BookingRequest, *OrderResult) {
	t.Helper()
	req := e.acceptedRequest(t, total)
	order, err := e.orders.CreateOrder(context.Background(), customer, req.ID)
	require.NoError(t, err)
	return req, order
}

// checkout имитирует оплату в шлюзе и возвращает то, что клиент пришлет в verify.
func (e *testEnv) checkout(order *OrderResult, gatewayPaymentID string) ClientEvidence {
	e.gw.settle(order.OrderID, gatewayPaymentID, gateway.PaymentStatusCaptured)
	return ClientEvidence{
		Caller:    customer,
		OrderID:   order.OrderID,
		PaymentID: gatewayPaymentID,
		Signature: gateway.Sign(testKeySecret, []byte(order.OrderID+"|"+gatewayPaymentID)),
	}
}

// capturedPayment проводит заявку до подтвержденного платежа.
func (e *testEnv) capturedPayment(t *testing.T, total string) *domain.Payment {
	t.Helper()
	_, order := e.openOrder(t, total)
	_, err := e.reconciler.VerifyPayment(context.Background(), e.checkout(order, "pay_"+order.OrderID))
	require.NoError(t, err)
	return e.store.payment(order.Payment.ID)
}

func webhookBody(event, orderID, paymentID string) []byte {
	return []byte(fmt.Sprintf(
		`{"entity":"event","event":%q,"payload":{"payment":{"entity":{"id":%q,"order_id":%q,"status":"captured"}}}}`,
		event, paymentID, orderID))
}

func signWebhook(body []byte) string {
	return gateway.Sign(testWebhookSecret, body)
}
