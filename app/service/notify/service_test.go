package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()

	select {
	case event := <-ch:
		return event
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return Event{}
	}
}

func TestPublishReachesSessionSubscribers(t *testing.T) {
	s := NewService()

	first, cancelFirst := s.Subscribe("s1")
	defer cancelFirst()
	second, cancelSecond := s.Subscribe("s1")
	defer cancelSecond()
	other, cancelOther := s.Subscribe("s2")
	defer cancelOther()

	s.Publish(Event{Kind: KindFinalized, SessionID: "s1", Text: "solution"})

	for _, ch := range []<-chan Event{first, second} {
		event := receive(t, ch)
		assert.Equal(t, KindFinalized, event.Kind)
		assert.Equal(t, "solution", event.Text)
		assert.False(t, event.At.IsZero())
	}

	select {
	case event := <-other:
		t.Fatalf("unexpected event for other session: %+v", event)
	default:
	}
}

func TestCancelClosesChannel(t *testing.T) {
	s := NewService()

	ch, cancel := s.Subscribe("s1")
	assert.Equal(t, 1, s.Subscribers("s1"))

	cancel()
	cancel()
	assert.Zero(t, s.Subscribers("s1"))

	_, ok := <-ch
	assert.False(t, ok)

	s.Publish(Event{Kind: KindSummaryStored, SessionID: "s1"})
}

func TestPublishDoesNotBlockOnFullSubscriber(t *testing.T) {
	s := NewService()

	_, cancel := s.Subscribe("s1")
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*3; i++ {
			s.Publish(Event{Kind: KindSummaryStored, SessionID: "s1"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked")
	}
}

func TestShutdownClosesSubscribers(t *testing.T) {
	s := NewService()

	ch, cancel := s.Subscribe("s1")
	require.NoError(t, s.Shutdown())
	cancel()

	_, ok := <-ch
	assert.False(t, ok)

	late, _ := s.Subscribe("s1")
	_, ok = <-late
	assert.False(t, ok)
}
