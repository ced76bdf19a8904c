package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type fakeConfirm struct{ result chan bool }

func (c *fakeConfirm) WaitContext(ctx context.Context) (bool, error) {
	select {
	case ack := <-c.result:
		return ack, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// fakeChannel hands out one confirmation per publish, in delivery-tag order.
type fakeChannel struct {
	confirms []*fakeConfirm
	keys     []string
	err      error
}

func (f *fakeChannel) publish(_ context.Context, _, key string, _ amqp.Publishing) (confirmation, error) {
	if f.err != nil {
		return nil, f.err
	}
	c := &fakeConfirm{result: make(chan bool, 1)}
	f.confirms = append(f.confirms, c)
	f.keys = append(f.keys, key)
	return c, nil
}

func TestAMQPPublishWaitsForItsOwnConfirm(t *testing.T) {
	ch := &fakeChannel{}
	p := &AMQPPublisher{pub: ch, exchange: "servex.events"}

	// First publish gives up before the broker answers.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := p.Publish(ctx, NewEvent(OrderCreated, "1", nil)); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}

	// The stale nack for the first message arrives while the second is in flight.
	ch.confirms[0].result <- false
	done := make(chan error, 1)
	go func() { done <- p.Publish(context.Background(), NewEvent(OrderUpdated, "1", nil)) }()

	deadline := time.After(time.Second)
	for {
		if len(publishedConfirms(p)) == 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("second publish never reached the channel")
		case <-time.After(time.Millisecond):
		}
	}
	select {
	case err := <-done:
		t.Fatalf("second publish returned before its own confirm: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	ch.confirms[1].result <- true
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("second publish should be acked, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("second publish did not return after ack")
	}
	if ch.keys[0] != OrderCreated || ch.keys[1] != OrderUpdated {
		t.Fatalf("unexpected routing keys %v", ch.keys)
	}
}

func TestAMQPPublishReportsNackAndChannelErrors(t *testing.T) {
	ch := &fakeChannel{}
	p := &AMQPPublisher{pub: ch, exchange: "servex.events"}

	done := make(chan error, 1)
	go func() { done <- p.Publish(context.Background(), NewEvent(StockChanged, "3", nil)) }()
	for len(publishedConfirms(p)) == 0 {
		time.Sleep(time.Millisecond)
	}
	ch.confirms[0].result <- false
	if err := <-done; err == nil {
		t.Fatal("expected nack error")
	}

	ch.err = amqp.ErrClosed
	if err := p.Publish(context.Background(), NewEvent(StockChanged, "3", nil)); !errors.Is(err, amqp.ErrClosed) {
		t.Fatalf("expected channel error, got %v", err)
	}
}

func publishedConfirms(p *AMQPPublisher) []*fakeConfirm {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pub.(*fakeChannel).confirms
}
