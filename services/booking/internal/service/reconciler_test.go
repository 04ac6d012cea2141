package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/vendor-marketplace/services/booking/internal/domain"
	"example.com/vendor-marketplace/services/booking/internal/gateway"
	"example.com/vendor-marketplace/services/booking/internal/repository"
)

func TestVerifyPayment_Captures(t *testing.T) {
	env := newTestEnv(t, nil)
	req, order := env.openOrder(t, "10000")

	receipt, err := env.reconciler.VerifyPayment(context.Background(), env.checkout(order, "pay_1"))

	require.NoError(t, err)
	assert.Equal(t, order.Payment.ID, receipt.PaymentID)
	assert.True(t, receipt.Amount.Equal(decimal.NewFromInt(10000)))
	assert.True(t, receipt.PlatformFee.Equal(decimal.NewFromInt(1000)))
	assert.True(t, receipt.AdvancePaid.Equal(decimal.NewFromInt(2700)))
	assert.True(t, receipt.RemainingAmount.Equal(decimal.NewFromInt(6300)))

	p := env.store.payment(order.Payment.ID)
	assert.Equal(t, domain.CaptureStatusCaptured, p.CaptureStatus)
	require.NotNil(t, p.GatewayPaymentID)
	assert.Equal(t, "pay_1", *p.GatewayPaymentID)
	require.NotNil(t, p.CaptureSource)
	assert.Equal(t, domain.CaptureSourceClient, *p.CaptureSource)

	assert.Equal(t, domain.PaymentPaid, env.store.request(req.ID).PaymentStatus)
	assert.Equal(t, 1, env.store.ledgerCount(p.ID))
	assert.Equal(t, int32(1), env.notifier.captured.Load())
}

func TestVerifyPayment_ReplayReturnsSameReceipt(t *testing.T) {
	env := newTestEnv(t, nil)
	_, order := env.openOrder(t, "10000")
	ev := env.checkout(order, "pay_1")

	first, err := env.reconciler.VerifyPayment(context.Background(), ev)
	require.NoError(t, err)
	second, err := env.reconciler.VerifyPayment(context.Background(), ev)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, env.store.ledgerCount(order.Payment.ID))
	assert.Equal(t, int32(1), env.notifier.captured.Load())
	assert.Equal(t, int32(1), env.gw.lookups.Load(), "повтор не ходит в шлюз")
}

func TestVerifyPayment_TamperedSignature(t *testing.T) {
	env := newTestEnv(t, nil)
	_, order := env.openOrder(t, "10000")
	ev := env.checkout(order, "pay_1")
	valid := ev.Signature

	tampered := []byte(valid)
	if tampered[0] == 'a' {
		tampered[0] = 'b'
	} else {
		tampered[0] = 'a'
	}
	ev.Signature = string(tampered)

	_, err := env.reconciler.VerifyPayment(context.Background(), ev)
	require.ErrorIs(t, err, domain.ErrVerificationFailed)
	assert.Equal(t, "payment verification failed", err.Error())
	assert.Equal(t, domain.CaptureStatusFailed, env.store.payment(order.Payment.ID).CaptureStatus)

	_, err = env.reconciler.VerifyPayment(context.Background(), ev)
	require.ErrorIs(t, err, domain.ErrVerificationFailed)

	// Даже верная подпись после failed не подтверждает платёж.
	ev.Signature = valid
	_, err = env.reconciler.VerifyPayment(context.Background(), ev)
	require.ErrorIs(t, err, domain.ErrVerificationFailed)

	assert.Equal(t, int32(1), env.store.failedTransitions.Load())
	assert.Equal(t, domain.CaptureStatusFailed, env.store.payment(order.Payment.ID).CaptureStatus)
	assert.Equal(t, 0, env.store.ledgerCount(order.Payment.ID))
	assert.Equal(t, int32(0), env.gw.lookups.Load())
}

func TestVerifyPayment_NotCapturedYet(t *testing.T) {
	env := newTestEnv(t, nil)
	_, order := env.openOrder(t, "10000")
	ev := env.checkout(order, "pay_1")
	env.gw.settle(order.OrderID, "pay_1", "authorized")

	_, err := env.reconciler.VerifyPayment(context.Background(), ev)

	assert.ErrorIs(t, err, domain.ErrNotCapturedYet)
	assert.Equal(t, domain.CaptureStatusPending, env.store.payment(order.Payment.ID).CaptureStatus)
}

func TestVerifyPayment_GatewayOrderMismatch(t *testing.T) {
	env := newTestEnv(t, nil)
	_, order := env.openOrder(t, "10000")
	ev := env.checkout(order, "pay_1")
	env.gw.settle("order_other", "pay_1", gateway.PaymentStatusCaptured)

	_, err := env.reconciler.VerifyPayment(context.Background(), ev)

	assert.ErrorIs(t, err, domain.ErrVerificationFailed)
	assert.Equal(t, domain.CaptureStatusPending, env.store.payment(order.Payment.ID).CaptureStatus)
}

func TestVerifyPayment_GatewayUnavailable(t *testing.T) {
	env := newTestEnv(t, nil)
	_, order := env.openOrder(t, "10000")
	ev := env.checkout(order, "pay_1")
	env.gw.detailErr = domain.Gateway("timeout", context.DeadlineExceeded)

	_, err := env.reconciler.VerifyPayment(context.Background(), ev)

	assert.Equal(t, domain.KindGateway, domain.KindOf(err))
	assert.Equal(t, domain.CaptureStatusPending, env.store.payment(order.Payment.ID).CaptureStatus)
}

func TestVerifyPayment_Guards(t *testing.T) {
	env := newTestEnv(t, nil)
	_, order := env.openOrder(t, "10000")
	ev := env.checkout(order, "pay_1")

	other := ev
	other.Caller = stranger
	_, err := env.reconciler.VerifyPayment(context.Background(), other)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	unknown := ev
	unknown.OrderID = "order_missing"
	_, err = env.reconciler.VerifyPayment(context.Background(), unknown)
	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)

	empty := ev
	empty.Signature = ""
	_, err = env.reconciler.VerifyPayment(context.Background(), empty)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	assert.Equal(t, domain.CaptureStatusPending, env.store.payment(order.Payment.ID).CaptureStatus)
}

func TestVerifyPayment_StorageFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	_, order := env.openOrder(t, "10000")
	ev := env.checkout(order, "pay_1")
	env.store.captureErr = domain.Infrastructure("db down", errors.New("connection refused"))

	_, err := env.reconciler.VerifyPayment(context.Background(), ev)

	assert.Equal(t, domain.KindInfrastructure, domain.KindOf(err))
	assert.Equal(t, int32(0), env.notifier.captured.Load())
}

func TestHandleWebhook_CapturesOnce(t *testing.T) {
	env := newTestEnv(t, nil)
	req, order := env.openOrder(t, "10000")
	body := webhookBody(gateway.EventPaymentCaptured, order.OrderID, "pay_1")

	require.NoError(t, env.reconciler.HandleWebhook(context.Background(), body, signWebhook(body), "evt_1"))
	before := env.store.payment(order.Payment.ID)

	// Повторная доставка того же события провайдером.
	require.NoError(t, env.reconciler.HandleWebhook(context.Background(), body, signWebhook(body), "evt_1"))
	after := env.store.payment(order.Payment.ID)

	assert.Equal(t, domain.CaptureStatusCaptured, after.CaptureStatus)
	assert.Equal(t, before.CaptureStatus, after.CaptureStatus)
	assert.Equal(t, before.PayoutStatus, after.PayoutStatus)
	require.NotNil(t, after.CaptureSource)
	assert.Equal(t, domain.CaptureSourceWebhook, *after.CaptureSource)
	assert.Nil(t, after.GatewaySignature)

	assert.Equal(t, 1, env.store.ledgerCount(order.Payment.ID))
	assert.Equal(t, 0, env.store.bookingCount())
	assert.Equal(t, int32(1), env.notifier.captured.Load())
	assert.Equal(t, domain.PaymentPaid, env.store.request(req.ID).PaymentStatus)
}

func TestHandleWebhook_RedisDedupe(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	env := newTestEnv(t, repository.NewWebhookEventStore(client, 0))
	_, order := env.openOrder(t, "10000")
	body := webhookBody(gateway.EventPaymentCaptured, order.OrderID, "pay_1")

	require.NoError(t, env.reconciler.HandleWebhook(context.Background(), body, signWebhook(body), "evt_1"))
	assert.True(t, mr.Exists("webhook:razorpay:event:evt_1"))

	// Платёж откатываем вручную: второй вызов не должен дойти до хранилища.
	env.store.mu.Lock()
	env.store.payments[order.Payment.ID].CaptureStatus = domain.CaptureStatusPending
	env.store.mu.Unlock()

	require.NoError(t, env.reconciler.HandleWebhook(context.Background(), body, signWebhook(body), "evt_1"))
	assert.Equal(t, domain.CaptureStatusPending, env.store.payment(order.Payment.ID).CaptureStatus)
	assert.Equal(t, 1, env.store.ledgerCount(order.Payment.ID))
}

func TestHandleWebhook_RedisDownFallsBackToDatabase(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	env := newTestEnv(t, repository.NewWebhookEventStore(client, 0))
	_, order := env.openOrder(t, "10000")
	body := webhookBody(gateway.EventPaymentCaptured, order.OrderID, "pay_1")

	require.NoError(t, env.reconciler.HandleWebhook(context.Background(), body, signWebhook(body), "evt_1"))
	require.NoError(t, env.reconciler.HandleWebhook(context.Background(), body, signWebhook(body), "evt_1"))

	assert.Equal(t, domain.CaptureStatusCaptured, env.store.payment(order.Payment.ID).CaptureStatus)
	assert.Equal(t, 1, env.store.ledgerCount(order.Payment.ID))
}

func TestHandleWebhook_InvalidSignature(t *testing.T) {
	env := newTestEnv(t, nil)
	_, order := env.openOrder(t, "10000")
	body := webhookBody(gateway.EventPaymentCaptured, order.OrderID, "pay_1")

	err := env.reconciler.HandleWebhook(context.Background(), body, "deadbeef", "evt_1")

	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
	assert.Equal(t, domain.CaptureStatusPending, env.store.payment(order.Payment.ID).CaptureStatus)
}

func TestHandleWebhook_IgnoredEvents(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name string
		body []byte
	}{
		{"неизвестный заказ", webhookBody(gateway.EventPaymentCaptured, "order_unknown", "pay_unknown")},
		{"необрабатываемое событие", webhookBody("order.paid", "order_x", "pay_x")},
		{"битое тело с верной подписью", []byte(`{"event":`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, env.reconciler.HandleWebhook(context.Background(), tt.body, signWebhook(tt.body), ""))
		})
	}
}

func TestHandleWebhook_FallbackToGatewayPaymentID(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.capturedPayment(t, "10000")

	body := []byte(`{"event":"refund.created","payload":{"refund":{"entity":{"id":"rfnd_1","payment_id":"` + *p.GatewayPaymentID + `"}}}}`)
	require.NoError(t, env.reconciler.HandleWebhook(context.Background(), body, signWebhook(body), "evt_r"))

	refunded := env.store.payment(p.ID)
	assert.Equal(t, domain.CaptureStatusRefunded, refunded.CaptureStatus)
	require.NotNil(t, refunded.RefundID)
	assert.Equal(t, "rfnd_1", *refunded.RefundID)

	// Повтор refund.created ничего не меняет.
	require.NoError(t, env.reconciler.HandleWebhook(context.Background(), body, signWebhook(body), "evt_r"))
	assert.Equal(t, domain.CaptureStatusRefunded, env.store.payment(p.ID).CaptureStatus)
}

func TestHandleWebhook_PaymentFailed(t *testing.T) {
	env := newTestEnv(t, nil)
	_, order := env.openOrder(t, "10000")
	body := webhookBody(gateway.EventPaymentFailed, order.OrderID, "pay_1")

	require.NoError(t, env.reconciler.HandleWebhook(context.Background(), body, signWebhook(body), "evt_f"))
	assert.Equal(t, domain.CaptureStatusFailed, env.store.payment(order.Payment.ID).CaptureStatus)

	// Поздний payment.captured не возвращает платёж из failed.
	captured := webhookBody(gateway.EventPaymentCaptured, order.OrderID, "pay_1")
	require.NoError(t, env.reconciler.HandleWebhook(context.Background(), captured, signWebhook(captured), "evt_c"))
	assert.Equal(t, domain.CaptureStatusFailed, env.store.payment(order.Payment.ID).CaptureStatus)
	assert.Equal(t, 0, env.store.ledgerCount(order.Payment.ID))
}

func TestHandleWebhook_StorageFailureIsReturned(t *testing.T) {
	env := newTestEnv(t, nil)
	_, order := env.openOrder(t, "10000")
	env.store.captureErr = domain.Infrastructure("db down", nil)
	body := webhookBody(gateway.EventPaymentCaptured, order.OrderID, "pay_1")

	err := env.reconciler.HandleWebhook(context.Background(), body, signWebhook(body), "evt_1")

	assert.Equal(t, domain.KindInfrastructure, domain.KindOf(err))
}

func TestReconcile_VerifyAndWebhookRace(t *testing.T) {
	env := newTestEnv(t, nil)
	_, order := env.openOrder(t, "10000")
	ev := env.checkout(order, "pay_1")

	const n = 20
	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		transitioned int
		receipts     []domain.CaptureReceipt
	)
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			out, err := env.reconciler.Reconcile(context.Background(), ev)
			assert.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			if out.Transitioned {
				transitioned++
			}
			receipts = append(receipts, out.Payment.Receipt())
		}()
		go func() {
			defer wg.Done()
			out, err := env.reconciler.Reconcile(context.Background(), WebhookEvidence{
				EventID: "evt_1",
				Event:   gateway.WebhookEvent{Event: gateway.EventPaymentCaptured, OrderID: order.OrderID, PaymentID: "pay_1"},
			})
			assert.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			if out.Transitioned {
				transitioned++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, transitioned)
	assert.Equal(t, 1, env.store.ledgerCount(order.Payment.ID))
	assert.Equal(t, int32(1), env.notifier.captured.Load())
	for _, r := range receipts {
		assert.Equal(t, receipts[0], r)
	}
}
