package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"
)

type KafkaPublisher struct {
	producer sarama.SyncProducer
	prefix   string
	logger   *logrus.Logger
}

// NewKafkaPublisher connects a synchronous producer. prefix is prepended to
// every topic name, e.g. "orders" yields "orders.order.created".
func NewKafkaPublisher(brokers []string, prefix string, logger *logrus.Logger) (*KafkaPublisher, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Version = sarama.V2_6_0_0

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}

	return NewKafkaPublisherWithProducer(producer, prefix, logger), nil
}

func NewKafkaPublisherWithProducer(producer sarama.SyncProducer, prefix string, logger *logrus.Logger) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, prefix: prefix, logger: logger}
}

func (p *KafkaPublisher) topic(name string) string {
	if p.prefix == "" {
		return name
	}
	return p.prefix + "." + name
}

// Publish sends the event keyed by order ID so events of one order stay on
// one partition.
func (p *KafkaPublisher) Publish(_ context.Context, topic string, event OrderEvent) error {
	event.EventTime = time.Now()

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic(topic),
		Key:   sarama.StringEncoder(event.OrderID),
		Value: sarama.ByteEncoder(data),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.logger.WithError(err).WithField("order_number", event.OrderNumber).Error("failed to publish order event")
		return err
	}

	p.logger.WithFields(logrus.Fields{
		"topic":        msg.Topic,
		"partition":    partition,
		"offset":       offset,
		"order_number": event.OrderNumber,
	}).Debug("order event published")

	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
