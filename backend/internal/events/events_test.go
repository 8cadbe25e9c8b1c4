package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	ctx := context.Background()

	assert.NoError(t, r.Publish(ctx, Event{Subject: "follow.created", ID: "f1"}))
	assert.NoError(t, r.Publish(ctx, Event{Subject: "channel.deleted", ID: "c1"}))

	assert.Equal(t, []string{"follow.created", "channel.deleted"}, r.Subjects())
	events := r.Events()
	events[0].ID = "mutated"
	assert.Equal(t, "f1", r.Events()[0].ID)
}

func TestRecorder_Err(t *testing.T) {
	boom := errors.New("unavailable")
	r := &Recorder{Err: boom}
	assert.ErrorIs(t, r.Publish(context.Background(), Event{Subject: "x"}), boom)
	assert.Len(t, r.Events(), 1)
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), Event{Subject: "x"}))
	assert.NoError(t, p.Close())
}

func TestNatsPublisher_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}
	p, err := Connect("nats://127.0.0.1:4222", nil)
	if err != nil {
		t.Skipf("NATS not reachable: %v", err)
	}
	defer p.Close()

	assert.NoError(t, p.Publish(context.Background(), Event{Subject: "channel.deleted", ID: "c1", ActorID: "alice"}))
}
