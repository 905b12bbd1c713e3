package amqp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	amqp091 "github.com/rabbitmq/amqp091-go"

	"contabilidad/internal/core"
)

var testEvent = core.DayChanged{UserID: 1, Date: core.NewDate(2024, 3, 1), Action: core.DayUpserted}

func TestClient_PublishDayChanged_FailsFast(t *testing.T) {
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name        string
		state       int32
		lastFailure time.Time
		ctx         context.Context
		want        error
	}{
		{"open circuit", StateOpen, time.Now(), context.Background(), ErrCircuitOpen},
		{"open circuit wins over cancelled context", StateOpen, time.Now(), cancelled, ErrCircuitOpen},
		{"closed circuit, cancelled context", StateClosed, time.Time{}, cancelled, context.Canceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Client{exchangeName: "days", queueName: "day_changes", state: tt.state, lastFailure: tt.lastFailure}
			if err := c.PublishDayChanged(tt.ctx, testEvent); !errors.Is(err, tt.want) {
				t.Errorf("PublishDayChanged err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestClient_CircuitOpensAfterRepeatedFailures(t *testing.T) {
	c := &Client{}
	for i := 0; i < maxFailures-1; i++ {
		c.recordFailure()
	}
	if c.isCircuitOpen() {
		t.Fatalf("circuit open after %d failures", maxFailures-1)
	}
	c.recordFailure()
	if err := c.PublishDayChanged(context.Background(), testEvent); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("PublishDayChanged err = %v, want ErrCircuitOpen", err)
	}

	// After openTimeout one attempt goes through; its failure reopens.
	c.lastFailure = time.Now().Add(-openTimeout - time.Second)
	if c.isCircuitOpen() || atomic.LoadInt32(&c.state) != StateHalfOpen {
		t.Fatalf("state = %d, want half-open", atomic.LoadInt32(&c.state))
	}
	c.recordFailure()
	if !c.isCircuitOpen() {
		t.Fatal("failure while half-open should reopen the circuit")
	}

	c.recordSuccess()
	if c.isCircuitOpen() || atomic.LoadInt64(&c.failureCount) != 0 {
		t.Errorf("success should close the circuit, state=%d failures=%d", c.state, c.failureCount)
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{amqp091.ErrClosed, true},
		{fmt.Errorf("publish: %w", amqp091.ErrClosed), true},
		{errors.New("dial tcp: connection refused"), true},
		{errors.New("unexpected EOF"), true},
		{errors.New("NOT_FOUND - no exchange 'days'"), false},
	}
	for _, tt := range tests {
		if got := isConnectionError(tt.err); got != tt.want {
			t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

// acks records what drain did with each delivery tag.
type acks struct {
	mu      sync.Mutex
	acked   []uint64
	requeue []uint64
	dropped []uint64
}

func (a *acks) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = append(a.acked, tag)
	return nil
}

func (a *acks) Nack(tag uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if requeue {
		a.requeue = append(a.requeue, tag)
	} else {
		a.dropped = append(a.dropped, tag)
	}
	return nil
}

func (a *acks) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func TestClient_DrainAcksByOutcome(t *testing.T) {
	a := &acks{}
	msgs := make(chan amqp091.Delivery, 3)
	msgs <- amqp091.Delivery{Acknowledger: a, DeliveryTag: 1, Body: []byte(`{"user_id":1,"date":"2024-03-01","action":"upserted"}`)}
	msgs <- amqp091.Delivery{Acknowledger: a, DeliveryTag: 2, Body: []byte(`{"date":"2024-03-01"}`)}
	msgs <- amqp091.Delivery{Acknowledger: a, DeliveryTag: 3, Body: []byte(`{"user_id":2,"date":"2024-03-02","action":"deleted"}`)}
	close(msgs)

	var seen []core.DayChanged
	handler := func(_ context.Context, m *DayChangedMessage) error {
		seen = append(seen, m.Event())
		if m.UserID == 2 {
			return errors.New("sheet unavailable")
		}
		return nil
	}

	c := &Client{}
	if err := c.drain(context.Background(), msgs, handler); err != nil {
		t.Fatalf("drain on closed channel = %v, want nil", err)
	}
	if len(seen) != 2 || seen[0].UserID != 1 || seen[0].Date.String() != "2024-03-01" || seen[0].Action != core.DayUpserted {
		t.Errorf("handled = %+v", seen)
	}
	if fmt.Sprint(a.acked, a.dropped, a.requeue) != "[1] [2] [3]" {
		t.Errorf("acked=%v dropped=%v requeued=%v", a.acked, a.dropped, a.requeue)
	}
}

func TestClient_DrainStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := &Client{}
	err := c.drain(ctx, make(chan amqp091.Delivery), func(context.Context, *DayChangedMessage) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("drain err = %v, want context.Canceled", err)
	}
}

func TestNewDayChangedMessage(t *testing.T) {
	msg := NewDayChangedMessage(core.DayChanged{UserID: 9, Date: core.NewDate(2024, 2, 29), Action: core.DayDeleted})

	if msg.UserID != 9 || msg.Date != "2024-02-29" || msg.Action != core.DayDeleted {
		t.Errorf("message = %+v", msg)
	}
	if time.Since(msg.Timestamp) > time.Second {
		t.Error("Timestamp should be recent")
	}
	ev := msg.Event()
	if ev.Date.String() != "2024-02-29" || ev.UserID != 9 {
		t.Errorf("Event() = %+v", ev)
	}
}

func TestDayChangedMessageFromJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"user_id":3,"date":"2024-01-05","action":"upserted","timestamp":"2024-01-05T10:00:00Z"}`, false},
		{"wrong type", `{"user_id":"three","date":"2024-01-05"}`, true},
		{"missing user", `{"date":"2024-01-05"}`, true},
		{"bad date", `{"user_id":3,"date":"05/01/2024"}`, true},
		{"not json", `nope`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DayChangedMessageFromJSON([]byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
