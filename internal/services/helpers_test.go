package services

import (
	"context"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type fakeGateway struct {
	mu    sync.Mutex
	err   error
	calls []GatewayOrderRequest
}

func (f *fakeGateway) Name() string { return "fake" }

func (f *fakeGateway) CreateOrder(_ context.Context, req GatewayOrderRequest) (*GatewayOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	return &GatewayOrder{
		ID:          "gw_" + req.Receipt,
		Provider:    "fake",
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
		Status:      "created",
	}, nil
}

type sentMail struct {
	to, subject, body string
}

type fakeMailer struct {
	mu   sync.Mutex
	err  error
	sent []sentMail
}

func (f *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func (f *fakeMailer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fixedVerifier bool

func (v fixedVerifier) VerifySignature(string, string, string) bool { return bool(v) }
