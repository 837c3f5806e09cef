package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/IAmShivay/ANIME-sub001/internal/events"
	"github.com/IAmShivay/ANIME-sub001/internal/models"
)

// AdminNotifier pushes order activity to the shop staff.
type AdminNotifier interface {
	NotifyNewOrder(ctx context.Context, order *models.Order) error
	NotifyPaymentSuccess(ctx context.Context, order *models.Order) error
}

// OrderNotifier fans order activity out to email, the admin chat and the
// event stream. Sends run in the background; failures are logged only.
type OrderNotifier struct {
	mailer    Mailer
	admin     AdminNotifier
	publisher events.Publisher
	logger    *logrus.Logger
	timeout   time.Duration
	wg        sync.WaitGroup
}

func NewOrderNotifier(mailer Mailer, admin AdminNotifier, publisher events.Publisher, logger *logrus.Logger) *OrderNotifier {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &OrderNotifier{
		mailer:    mailer,
		admin:     admin,
		publisher: publisher,
		logger:    logger,
		timeout:   30 * time.Second,
	}
}

func (n *OrderNotifier) goBackground(fn func(ctx context.Context)) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()
		fn(ctx)
	}()
}

// OrderPlaced sends the confirmation email, the admin alert and order.created.
func (n *OrderNotifier) OrderPlaced(order *models.Order) {
	snapshot := *order
	snapshot.Items = append([]models.OrderItem(nil), order.Items...)
	log := n.logger.WithField("order_number", snapshot.OrderNumber)

	n.goBackground(func(ctx context.Context) {
		if n.mailer != nil && snapshot.Email != "" {
			subject, body := OrderConfirmationEmail(&snapshot)
			if err := n.mailer.Send(ctx, snapshot.Email, subject, body); err != nil {
				log.WithError(err).Warn("order confirmation email failed")
			}
		}
		if n.admin != nil {
			if err := n.admin.NotifyNewOrder(ctx, &snapshot); err != nil {
				log.WithError(err).Warn("admin order notification failed")
			}
		}
		if err := n.publisher.Publish(ctx, events.OrderCreatedTopic, events.NewOrderEvent(&snapshot, "")); err != nil {
			log.WithError(err).Warn("order.created publish failed")
		}
	})
}

// StatusChanged emails the buyer and publishes order.status_changed.
func (n *OrderNotifier) StatusChanged(order *models.Order, previous string) {
	snapshot := *order
	log := n.logger.WithFields(logrus.Fields{"order_number": snapshot.OrderNumber, "status": snapshot.Status})

	n.goBackground(func(ctx context.Context) {
		if n.mailer != nil && snapshot.Email != "" {
			subject, body := StatusUpdateEmail(&snapshot)
			if err := n.mailer.Send(ctx, snapshot.Email, subject, body); err != nil {
				log.WithError(err).Warn("status update email failed")
			}
		}
		if n.admin != nil && snapshot.Payment.Status == models.PaymentStatusPaid && previous == models.OrderStatusPending {
			if err := n.admin.NotifyPaymentSuccess(ctx, &snapshot); err != nil {
				log.WithError(err).Warn("admin payment notification failed")
			}
		}
		if err := n.publisher.Publish(ctx, events.OrderStatusChangedTopic, events.NewOrderEvent(&snapshot, previous)); err != nil {
			log.WithError(err).Warn("order.status_changed publish failed")
		}
	})
}

// Wait blocks until background sends have finished.
func (n *OrderNotifier) Wait() {
	n.wg.Wait()
}
