package notify

import "time"

// Batch accumulates the events of one debounce window, split by outcome.
// Folding is a pure function of (batch, event): duplicate deliveries of the
// same event fold like any other event.
type Batch struct {
	Successful []Event
	Failed     []Event
	Other      []Event
	StartedAt  time.Time
}

func NewBatch(at time.Time) *Batch {
	return &Batch{StartedAt: at}
}

func (b *Batch) Add(ev Event) {
	switch ev.Outcome {
	case OutcomeSuccess:
		b.Successful = append(b.Successful, ev)
	case OutcomeFailure:
		b.Failed = append(b.Failed, ev)
	default:
		b.Other = append(b.Other, ev)
	}
}

func (b *Batch) Size() int {
	return len(b.Successful) + len(b.Failed) + len(b.Other)
}
