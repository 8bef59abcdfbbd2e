package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSubscribeReceivesPublishedEvent(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe()
	defer sub.Unsubscribe()

	bus.Publish(Event{Recording: &RecordingStatus{State: StateRecording}})

	select {
	case e := <-sub.Events():
		require.Equal(t, StateRecording, e.Recording.State)
	case <-time.After(time.Second):
		t.Fatal("expected event delivery")
	}
}

func TestPublishNeverBlocksOnFullSubscriberQueue(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe()
	defer sub.Unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberQueueCapacity*4; i++ {
			bus.Publish(Event{Transcription: &TranscriptionResult{Text: "x"}})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber queue")
	}

	require.LessOrEqual(t, len(sub.Events()), subscriberQueueCapacity)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe()
	sub.Unsubscribe()

	_, ok := <-sub.Events()
	require.False(t, ok)
}

func TestMultipleSubscribersEachReceiveEvents(t *testing.T) {
	bus := NewBus()
	a := bus.Subscribe()
	b := bus.Subscribe()
	defer a.Unsubscribe()
	defer b.Unsubscribe()

	bus.Publish(Event{Osd: &OsdPositionChanged{Position: OsdTop}})

	for _, sub := range []*Subscription{a, b} {
		select {
		case e := <-sub.Events():
			require.Equal(t, OsdTop, e.Osd.Position)
		case <-time.After(time.Second):
			t.Fatal("expected both subscribers to receive the event")
		}
	}
}

func TestAdmitSpectrumPassesLargeDeltaAndSuppressesTinyDelta(t *testing.T) {
	bus := NewBus()

	first := &[NBars]float32{0.1, 0, 0, 0, 0, 0, 0, 0}
	require.True(t, bus.admitSpectrum(first))

	tiny := &[NBars]float32{0.11, 0, 0, 0, 0, 0, 0, 0}
	require.False(t, bus.admitSpectrum(tiny))

	large := &[NBars]float32{0.9, 0, 0, 0, 0, 0, 0, 0}
	require.True(t, bus.admitSpectrum(large))
}

func TestAdmitSpectrumPassesAfterHeartbeatElapses(t *testing.T) {
	bus := NewBus()
	first := &[NBars]float32{0.1, 0, 0, 0, 0, 0, 0, 0}
	require.True(t, bus.admitSpectrum(first))

	bus.lastEmitAt = time.Now().Add(-spectrumHeartbeat - time.Millisecond)
	require.True(t, bus.admitSpectrum(first))
}

func TestMaxDelta(t *testing.T) {
	a := &[NBars]float32{0, 0.2, 0.5, 0, 0, 0, 0, 0}
	b := &[NBars]float32{0, 0.2, 0.1, 0, 0, 0, 0, 0}
	require.InDelta(t, 0.4, float64(maxDelta(a, b)), 1e-6)
}
