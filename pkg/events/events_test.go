package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub Subscriber) *Event {
	t.Helper()
	select {
	case ev := <-sub:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestPublishSubscribe(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	assert.Equal(t, 1, broker.SubscriberCount())

	broker.Publish(&Event{Type: EventDocumentAccepted, Message: "accepted"})

	ev := receive(t, sub)
	assert.Equal(t, EventDocumentAccepted, ev.Type)
	assert.NotEmpty(t, ev.ID)
	assert.False(t, ev.Timestamp.IsZero())
}

func TestSubscribeFiltersTypes(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	rejected := broker.Subscribe(EventDocumentRejected)
	all := broker.Subscribe()

	broker.Publish(NewEvent(EventDocumentAccepted, "ok", nil))
	broker.Publish(NewEvent(EventDocumentRejected, "bad", map[string]string{MetaDeclared: "pacemaker-0.5"}))

	assert.Equal(t, EventDocumentAccepted, receive(t, all).Type)
	assert.Equal(t, EventDocumentRejected, receive(t, all).Type)

	ev := receive(t, rejected)
	assert.Equal(t, EventDocumentRejected, ev.Type)
	assert.Equal(t, "pacemaker-0.5", ev.Metadata[MetaDeclared])

	select {
	case ev := <-rejected:
		t.Fatalf("unexpected event %s", ev.Type)
	default:
	}
}

func TestUnsubscribe(t *testing.T) {
	broker := NewBroker()
	sub := broker.Subscribe()

	broker.Unsubscribe(sub)
	assert.Equal(t, 0, broker.SubscriberCount())

	_, open := <-sub
	assert.False(t, open)

	// A second unsubscribe is a no-op
	broker.Unsubscribe(sub)
}

func TestSlowSubscriberDropsEvents(t *testing.T) {
	broker := NewBroker()
	sub := broker.Subscribe()

	for i := 0; i < subscriberBuffer+5; i++ {
		broker.broadcast(NewEvent(EventCatalogRebuilt, "rebuilt", nil))
	}
	assert.Len(t, sub, subscriberBuffer)
	assert.Equal(t, uint64(5), broker.Dropped())
}

func TestPublishAfterStop(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	broker.Stop()
	broker.Stop()

	done := make(chan struct{})
	go func() {
		for i := 0; i < brokerBuffer+10; i++ {
			broker.Publish(NewEvent(EventCatalogFailed, "failed", nil))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		require.FailNow(t, "publish blocked after stop")
	}
}

func TestNewEvent(t *testing.T) {
	a := NewEvent(EventDocumentUpgraded, "up", map[string]string{MetaSteps: "2"})
	b := NewEvent(EventDocumentUpgraded, "up", nil)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, "2", a.Metadata[MetaSteps])
}
