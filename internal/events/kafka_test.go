package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKafkaPublisherSendsJSONKeyedByOrder(t *testing.T) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	producer := mocks.NewSyncProducer(t, config)

	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var event OrderEvent
		if err := json.Unmarshal(val, &event); err != nil {
			return err
		}
		if event.OrderNumber != "ORD-LZ1-ABCD" || event.EventTime.IsZero() {
			return errors.New("unexpected payload")
		}
		return nil
	})

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	pub := NewKafkaPublisherWithProducer(producer, "orders", logger)

	err := pub.Publish(context.Background(), OrderCreatedTopic, OrderEvent{
		OrderID:     "7d1d6c1e-8a55-4c64-8d55-8e4d0c1d2f10",
		OrderNumber: "ORD-LZ1-ABCD",
		Status:      "pending",
	})
	require.NoError(t, err)
	assert.Equal(t, "orders.order.created", pub.topic(OrderCreatedTopic))
	require.NoError(t, pub.Close())
}

func TestKafkaPublisherReturnsSendError(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	pub := NewKafkaPublisherWithProducer(producer, "", logger)

	err := pub.Publish(context.Background(), OrderStatusChangedTopic, OrderEvent{OrderID: "x"})
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, pub.Close())
}
