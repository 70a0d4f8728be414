package brain

import (
	"time"

	"github.com/wonny/aegis-risk/internal/contracts"
)

// EventType 실행 이벤트 종류
type EventType string

const (
	EventRunStarted    EventType = "run.started"
	EventSectionDone   EventType = "section.done"
	EventRunCompleted  EventType = "run.completed"
	EventRunFailed     EventType = "run.failed"
	EventRunSuperseded EventType = "run.superseded"
)

const subscriberBufferLen = 32

// Event is one state change published to subscribers (websocket stream)
type Event struct {
	Type    EventType          `json:"type"`
	RunID   string             `json:"runId"`
	State   contracts.RunState `json:"state"`
	Section contracts.Section  `json:"section,omitempty"`
	Status  *contracts.Status  `json:"status,omitempty"`
	Error   string             `json:"error,omitempty"`
	Time    time.Time          `json:"time"`
}

// Subscribe registers a listener; call the returned func to unsubscribe
// 느린 구독자는 이벤트를 놓칠 수 있음 (non-blocking publish)
func (o *Orchestrator) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBufferLen)

	o.subMu.Lock()
	id := o.nextSub
	o.nextSub++
	o.subscribers[id] = ch
	o.subMu.Unlock()

	unsubscribe := func() {
		o.subMu.Lock()
		defer o.subMu.Unlock()
		if _, ok := o.subscribers[id]; ok {
			delete(o.subscribers, id)
			close(ch)
		}
	}
	return ch, unsubscribe
}

func (o *Orchestrator) publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}

	o.subMu.Lock()
	defer o.subMu.Unlock()
	for _, ch := range o.subscribers {
		select {
		case ch <- ev:
		default:
			o.logger.WithField("event", ev.Type).Debug("Subscriber buffer full, event dropped")
		}
	}
}
