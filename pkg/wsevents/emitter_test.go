package wsevents

import "testing"

func TestChannelEmitter_DeliversToSubscriber(t *testing.T) {
	e := NewChannelEmitter(4, nil)
	ch := e.Subscribe()

	e.Emit(Event{EventType: EventRunStarted, RunID: "run-1"})

	select {
	case ev := <-ch:
		if ev.EventType != EventRunStarted {
			t.Errorf("unexpected event type: %s", ev.EventType)
		}
	default:
		t.Fatal("expected an event to be delivered")
	}
}

func TestChannelEmitter_DropsOldestWhenFull(t *testing.T) {
	e := NewChannelEmitter(2, nil)
	ch := e.Subscribe()

	e.Emit(Event{EventType: EventRunStarted, RunID: "1"})
	e.Emit(Event{EventType: EventStageStarted, RunID: "2"})
	e.Emit(Event{EventType: EventStageCompleted, RunID: "3"})

	first := <-ch
	second := <-ch
	if first.RunID != "2" || second.RunID != "3" {
		t.Errorf("expected oldest event dropped, got %s then %s", first.RunID, second.RunID)
	}
}

func TestNoopEmitter_DiscardsWithoutPanic(t *testing.T) {
	NoopEmitter{}.Emit(Event{EventType: EventRunCompleted})
}
