package service

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"example.com/vendor-marketplace/services/booking/internal/domain"
	"example.com/vendor-marketplace/services/booking/internal/gateway"
	"example.com/vendor-marketplace/services/booking/internal/repository"
)

// =============================================================================
// memStore - хранилище в памяти с теми же условными переходами, что и в MySQL
// =============================================================================

type memStore struct {
	mu       sync.Mutex
	requests map[string]*domain.BookingRequest
	payments map[string]*domain.Payment
	bookings map[string]*domain.Booking // по payment id
	ledger   []*domain.LedgerEntry

	failedTransitions atomic.Int32
	captureErr        error
}

func newMemStore() *memStore {
	return &memStore{
		requests: make(map[string]*domain.BookingRequest),
		payments: make(map[string]*domain.Payment),
		bookings: make(map[string]*domain.Booking),
	}
}

func (s *memStore) ledgerCount(paymentID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.ledger {
		if e.PaymentID == paymentID {
			n++
		}
	}
	return n
}

func (s *memStore) bookingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bookings)
}

func (s *memStore) payment(id string) *domain.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *s.payments[id]
	return &cp
}

func (s *memStore) request(id string) *domain.BookingRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *s.requests[id]
	return &cp
}

// --- BookingRequestRepository ---

type memRequests struct{ *memStore }

func (m memRequests) Create(_ context.Context, r *domain.BookingRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.requests[r.ID] = &cp
	return nil
}

func (m memRequests) GetByID(_ context.Context, id string) (*domain.BookingRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, domain.ErrRequestNotFound
	}
	cp := *r
	return &cp, nil
}

func (m memRequests) List(_ context.Context, f repository.ListFilter) ([]*domain.BookingRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.BookingRequest
	for _, r := range m.requests {
		if f.RequesterID != "" && r.Requester.ID != f.RequesterID {
			continue
		}
		if f.VendorID != "" && r.Vendor.ID != f.VendorID {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Offset >= len(out) {
		return nil, nil
	}
	out = out[f.Offset:]
	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m memRequests) ListByIDs(_ context.Context, ids []string) (map[string]*domain.BookingRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*domain.BookingRequest)
	for _, id := range ids {
		if r, ok := m.requests[id]; ok {
			cp := *r
			out[id] = &cp
		}
	}
	return out, nil
}

func (m memRequests) Transition(_ context.Context, t repository.RequestTransition) (*domain.BookingRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[t.RequestID]
	if !ok ||
		(t.VendorID != "" && r.Vendor.ID != t.VendorID) ||
		(t.RequesterID != "" && r.Requester.ID != t.RequesterID) ||
		(t.RequireUnpaid && r.PaymentStatus != domain.PaymentUnpaid) {
		return nil, domain.ErrRequestNotFound
	}
	matched := false
	for _, from := range t.From {
		if r.Status == from {
			matched = true
		}
	}
	if !matched {
		return nil, domain.ErrRequestNotFound
	}
	r.Status = t.To
	r.UpdatedAt = t.At
	cp := *r
	return &cp, nil
}

// --- PaymentRepository ---

type memPayments struct{ *memStore }

func (m memPayments) Create(_ context.Context, p *domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.payments {
		if existing.BookingRequestID == p.BookingRequestID {
			return domain.ErrDuplicatePayment
		}
	}
	cp := *p
	m.payments[p.ID] = &cp
	return nil
}

func (m memPayments) find(match func(*domain.Payment) bool) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if match(p) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrPaymentNotFound
}

func (m memPayments) GetByID(_ context.Context, id string) (*domain.Payment, error) {
	return m.find(func(p *domain.Payment) bool { return p.ID == id })
}

func (m memPayments) GetByGatewayOrderID(_ context.Context, orderID string) (*domain.Payment, error) {
	return m.find(func(p *domain.Payment) bool { return p.GatewayOrderID == orderID })
}

func (m memPayments) GetByGatewayPaymentID(_ context.Context, id string) (*domain.Payment, error) {
	return m.find(func(p *domain.Payment) bool { return p.GatewayPaymentID != nil && *p.GatewayPaymentID == id })
}

func (m memPayments) GetByBookingRequestID(_ context.Context, requestID string) (*domain.Payment, error) {
	return m.find(func(p *domain.Payment) bool { return p.BookingRequestID == requestID })
}

func (m memPayments) ListByIDs(_ context.Context, ids []string) (map[string]*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*domain.Payment)
	for _, id := range ids {
		if p, ok := m.payments[id]; ok {
			cp := *p
			out[id] = &cp
		}
	}
	return out, nil
}

func (m memPayments) Capture(_ context.Context, u repository.CaptureUpdate) (repository.CaptureResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.captureErr != nil {
		return repository.CaptureResult{}, m.captureErr
	}
	p, ok := m.payments[u.PaymentID]
	if !ok || p.CaptureStatus != domain.CaptureStatusPending {
		return repository.CaptureResult{}, nil
	}

	gwID, source, at := u.GatewayPaymentID, u.Source, u.At
	p.CaptureStatus = domain.CaptureStatusCaptured
	p.GatewayPaymentID = &gwID
	p.GatewaySignature = u.Signature
	p.CaptureSource = &source
	p.CapturedAt = &at
	p.UpdatedAt = at

	entry := &domain.LedgerEntry{
		ID:               uuid.NewString(),
		PaymentID:        u.PaymentID,
		BookingRequestID: u.BookingRequestID,
		Amount:           u.Amount,
		Currency:         u.Currency,
		GatewayPaymentID: u.GatewayPaymentID,
		Source:           u.Source,
		CreatedAt:        at,
	}
	m.ledger = append(m.ledger, entry)

	marked := false
	if r, ok := m.requests[u.BookingRequestID]; ok &&
		r.Status == domain.RequestStatusAccepted && r.PaymentStatus == domain.PaymentUnpaid {
		r.PaymentStatus = domain.PaymentPaid
		marked = true
	}
	return repository.CaptureResult{Captured: true, RequestMarkedPaid: marked, LedgerEntryID: entry.ID}, nil
}

func (m memPayments) MarkFailed(_ context.Context, id, reason string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok || p.CaptureStatus != domain.CaptureStatusPending {
		return false, nil
	}
	p.CaptureStatus = domain.CaptureStatusFailed
	p.FailureReason = &reason
	p.UpdatedAt = at
	m.failedTransitions.Add(1)
	return true, nil
}

func (m memPayments) MarkRefunded(_ context.Context, id, refundID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok || p.CaptureStatus != domain.CaptureStatusCaptured {
		return false, nil
	}
	p.CaptureStatus = domain.CaptureStatusRefunded
	p.RefundID = &refundID
	p.UpdatedAt = at
	return true, nil
}

func (m memPayments) AdvancePayout(_ context.Context, b *domain.Booking, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[b.PaymentID]
	if !ok || p.CaptureStatus != domain.CaptureStatusCaptured || p.PayoutStatus != domain.PayoutStatusNone {
		return false, nil
	}
	p.PayoutStatus = domain.PayoutStatusAdvancePaid
	p.AdvancePaidAt = &at
	cp := *b
	m.bookings[b.PaymentID] = &cp
	return true, nil
}

func (m memPayments) FullPayout(_ context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	b, hasBooking := m.bookings[id]
	if !ok || !hasBooking || p.CaptureStatus != domain.CaptureStatusCaptured || p.PayoutStatus != domain.PayoutStatusAdvancePaid {
		return false, nil
	}
	p.PayoutStatus = domain.PayoutStatusFullPaid
	p.FullPaidAt = &at
	b.PaymentStatus.FullPaid = true
	b.PaymentStatus.FullPaidAt = &at
	return true, nil
}

// --- BookingRepository ---

type memBookings struct{ *memStore }

func (m memBookings) GetByID(_ context.Context, id string) (*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bookings {
		if b.ID == id {
			cp := *b
			return &cp, nil
		}
	}
	return nil, domain.ErrBookingNotFound
}

func (m memBookings) GetByPaymentID(_ context.Context, paymentID string) (*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[paymentID]
	if !ok {
		return nil, domain.ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

// --- LedgerRepository ---

type memLedger struct{ *memStore }

func (m memLedger) List(_ context.Context, limit, offset int) ([]*domain.LedgerEntry, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := int64(len(m.ledger))
	if offset >= len(m.ledger) {
		return nil, total, nil
	}
	out := m.ledger[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return append([]*domain.LedgerEntry(nil), out...), total, nil
}

func (m memLedger) CountByPaymentID(_ context.Context, paymentID string) (int64, error) {
	return int64(m.ledgerCount(paymentID)), nil
}

// =============================================================================
// fakeGateway
// =============================================================================

const (
	testKeySecret     = "key_secret"
	testWebhookSecret = "webhook_secret"
)

type fakeGateway struct {
	mu        sync.Mutex
	orders    int
	details   map[string]*gateway.PaymentDetails
	orderErr  error
	detailErr error
	lookups   atomic.Int32
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{details: make(map[string]*gateway.PaymentDetails)}
}

func (g *fakeGateway) KeyID() string { return "rzp_test_key" }

func (g *fakeGateway) CreateOrder(_ context.Context, amountMinor int64, currency, receipt string, _ map[string]string) (*gateway.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.orderErr != nil {
		return nil, g.orderErr
	}
	g.orders++
	return &gateway.Order{ID: "order_" + uuid.NewString()[:8], Amount: amountMinor, Currency: currency, Receipt: receipt, Status: "created"}, nil
}

func (g *fakeGateway) GetPaymentDetails(_ context.Context, paymentID string) (*gateway.PaymentDetails, error) {
	g.lookups.Add(1)
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.detailErr != nil {
		return nil, g.detailErr
	}
	d, ok := g.details[paymentID]
	if !ok {
		return nil, domain.Gateway("payment not found", nil)
	}
	cp := *d
	return &cp, nil
}

func (g *fakeGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return signature == gateway.Sign(testKeySecret, []byte(orderID+"|"+paymentID))
}

func (g *fakeGateway) VerifyWebhookSignature(rawBody []byte, signature string) bool {
	return signature == gateway.Sign(testWebhookSecret, rawBody)
}

// settle имитирует успешную оплату в checkout.
func (g *fakeGateway) settle(orderID, paymentID, status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.details[paymentID] = &gateway.PaymentDetails{ID: paymentID, OrderID: orderID, Status: status}
}

func (g *fakeGateway) orderCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.orders
}

// =============================================================================
// fakeNotifier
// =============================================================================

type fakeNotifier struct {
	accepted atomic.Int32
	declined atomic.Int32
	captured atomic.Int32
	err      error
}

func (n *fakeNotifier) RequestAccepted(context.Context, *domain.BookingRequest) error {
	n.accepted.Add(1)
	return n.err
}

func (n *fakeNotifier) RequestDeclined(context.Context, *domain.BookingRequest) error {
	n.declined.Add(1)
	return n.err
}

func (n *fakeNotifier) PaymentCaptured(context.Context, *domain.Payment) error {
	n.captured.Add(1)
	return n.err
}
