package services

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IAmShivay/ANIME-sub001/internal/events"
	"github.com/IAmShivay/ANIME-sub001/internal/models"
	"github.com/IAmShivay/ANIME-sub001/internal/store/memstore"
)

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	events []events.OrderEvent
}

func (r *recordingPublisher) Publish(_ context.Context, topic string, event events.OrderEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics = append(r.topics, topic)
	r.events = append(r.events, event)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

type lifecycleFixture struct {
	store     *memstore.Store
	publisher *recordingPublisher
	notifier  *OrderNotifier
	checkout  *CheckoutService
	svc       *OrderService
}

func newLifecycleFixture(t *testing.T, verified bool) *lifecycleFixture {
	t.Helper()
	st := memstore.New()
	pub := &recordingPublisher{}
	notifier := NewOrderNotifier(nil, nil, pub, testLogger())
	return &lifecycleFixture{
		store:     st,
		publisher: pub,
		notifier:  notifier,
		checkout: NewCheckoutService(CheckoutDeps{
			Products:        st,
			Orders:          st,
			Settings:        NewSettingsService(st),
			Gateway:         &fakeGateway{},
			Logger:          testLogger(),
			Notifier:        notifier,
			StrictInventory: true,
		}),
		svc: NewOrderService(OrderServiceDeps{
			Orders:   st,
			Products: st,
			Verifier: fixedVerifier(verified),
			Notifier: notifier,
			Logger:   testLogger(),
		}),
	}
}

func (f *lifecycleFixture) place(t *testing.T, method string) (*models.Product, *PlaceOrderResult) {
	t.Helper()
	p := hoodie(5)
	require.NoError(t, f.store.CreateProduct(context.Background(), p))
	res, err := f.checkout.PlaceOrder(context.Background(), buyer, orderRequest(method, 1279, line(p, 1)))
	require.NoError(t, err)
	return p, res
}

func TestOrderPlacedPublishesEvent(t *testing.T) {
	f := newLifecycleFixture(t, true)
	_, res := f.place(t, models.PaymentMethodCOD)
	f.notifier.Wait()

	require.Len(t, f.publisher.topics, 1)
	assert.Equal(t, events.OrderCreatedTopic, f.publisher.topics[0])
	assert.Equal(t, res.OrderNumber, f.publisher.events[0].OrderNumber)
}

func TestUpdateStatusForwardOnly(t *testing.T) {
	f := newLifecycleFixture(t, true)
	_, res := f.place(t, models.PaymentMethodCOD)
	ctx := context.Background()

	order, err := f.svc.UpdateStatus(ctx, res.OrderID, StatusUpdate{Status: models.OrderStatusShipped, TrackingNumber: "TRK1", Carrier: "Delhivery"})
	require.NoError(t, err)
	assert.Equal(t, "TRK1", order.TrackingNumber)

	_, err = f.svc.UpdateStatus(ctx, res.OrderID, StatusUpdate{Status: models.OrderStatusConfirmed})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.svc.UpdateStatus(ctx, res.OrderID, StatusUpdate{Status: "lost"})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.svc.UpdateStatus(ctx, uuid.New(), StatusUpdate{Status: models.OrderStatusShipped})
	assert.ErrorIs(t, err, ErrOrderNotFound)

	f.notifier.Wait()
	assert.Contains(t, f.publisher.topics, events.OrderStatusChangedTopic)
}

func TestCancelRestoresStockOnce(t *testing.T) {
	f := newLifecycleFixture(t, true)
	p, res := f.place(t, models.PaymentMethodCOD)
	ctx := context.Background()

	_, err := f.svc.UpdateStatus(ctx, res.OrderID, StatusUpdate{Status: models.OrderStatusCancelled})
	require.NoError(t, err)

	got, err := f.store.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Stock)

	_, err = f.svc.UpdateStatus(ctx, res.OrderID, StatusUpdate{Status: models.OrderStatusCancelled})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestDeliveredOrderCannotBeCancelled(t *testing.T) {
	f := newLifecycleFixture(t, true)
	_, res := f.place(t, models.PaymentMethodCOD)
	ctx := context.Background()

	_, err := f.svc.UpdateStatus(ctx, res.OrderID, StatusUpdate{Status: models.OrderStatusDelivered})
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, res.OrderID, StatusUpdate{Status: models.OrderStatusCancelled})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestVerifyPaymentConfirmsOrder(t *testing.T) {
	f := newLifecycleFixture(t, true)
	_, res := f.place(t, models.PaymentMethodOnline)
	ctx := context.Background()

	req := PaymentVerification{GatewayOrderID: res.GatewayOrder.ID, PaymentID: "pay_1", Signature: "sig"}
	order, err := f.svc.VerifyPayment(ctx, buyer.UserID, req)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusConfirmed, order.Status)
	assert.Equal(t, models.PaymentStatusPaid, order.Payment.Status)
	assert.Equal(t, "pay_1", order.Payment.TransactionID)
	require.NotNil(t, order.Payment.PaidAt)

	again, err := f.svc.VerifyPayment(ctx, buyer.UserID, req)
	require.NoError(t, err)
	assert.Equal(t, order.Payment.PaidAt.Unix(), again.Payment.PaidAt.Unix())

	_, err = f.svc.VerifyPayment(ctx, uuid.New(), req)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestVerifyPaymentBadSignature(t *testing.T) {
	f := newLifecycleFixture(t, false)
	_, res := f.place(t, models.PaymentMethodOnline)
	ctx := context.Background()

	_, err := f.svc.VerifyPayment(ctx, buyer.UserID, PaymentVerification{GatewayOrderID: res.GatewayOrder.ID, PaymentID: "pay_1", Signature: "forged"})
	assert.ErrorIs(t, err, ErrPaymentVerificationFailed)

	order, err := f.store.GetOrder(ctx, res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, order.Payment.Status)
	assert.Equal(t, models.OrderStatusPending, order.Status)
}

func TestConfirmGatewayPayment(t *testing.T) {
	f := newLifecycleFixture(t, true)
	_, res := f.place(t, models.PaymentMethodOnline)
	ctx := context.Background()

	order, err := f.svc.ConfirmGatewayPayment(ctx, GatewayPaymentEvent{GatewayOrderID: res.GatewayOrder.ID, PaymentID: "ch_1", Succeeded: true})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusConfirmed, order.Status)

	_, err = f.svc.ConfirmGatewayPayment(ctx, GatewayPaymentEvent{GatewayOrderID: "pi_unknown", Succeeded: true})
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestGetForUserHidesOtherBuyersOrders(t *testing.T) {
	f := newLifecycleFixture(t, true)
	_, res := f.place(t, models.PaymentMethodCOD)

	_, err := f.svc.GetForUser(context.Background(), buyer.UserID, res.OrderID)
	require.NoError(t, err)
	_, err = f.svc.GetForUser(context.Background(), uuid.New(), res.OrderID)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}
