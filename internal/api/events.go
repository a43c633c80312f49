package api

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/Annmariya27/ctg-pro/internal/form"
	"github.com/Annmariya27/ctg-pro/internal/worker"
)

// eventPublisher hands stored results to the history stream.
type eventPublisher struct {
	events  EventPublisher
	timeout time.Duration
	now     func() time.Time
	newID   func() uuid.UUID
}

func newEventPublisher(events EventPublisher) *eventPublisher {
	return &eventPublisher{
		events:  events,
		timeout: 2 * time.Second,
		now:     time.Now,
		newID:   uuid.New,
	}
}

// publish is the form's result hook. History is best effort: a failure is
// logged and never reaches the operator.
func (p *eventPublisher) publish(_ context.Context, s form.Submission) {
	if p.events == nil || s.Record == nil {
		return
	}

	event := worker.AnalysisEvent{
		AnalysisID:  p.newID().String(),
		SessionKey:  s.SessionKey,
		PatientID:   s.Record.PatientID,
		PatientName: s.Record.PatientName,
		ClassIndex:  int(s.Record.ClassIndex),
		Probability: s.Record.Probability,
		ShapValues:  s.Record.ShapValues,
		Features:    s.Vector.Payload(),
		Timestamp:   p.now().Unix(),
	}
	values, err := event.StreamValues()
	if err != nil {
		log.Printf("[api] form %s: %v", s.FormID, err)
		return
	}

	// Detached from the request so a slow client cannot drop the event.
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := p.events.RecordAnalysisEvent(ctx, values); err != nil {
		log.Printf("[api] form %s: failed to record analysis %s: %v", s.FormID, event.AnalysisID, err)
		return
	}
	log.Printf("[api] form %s: recorded analysis %s", s.FormID, event.AnalysisID)
}

// logNavigator stands in for client-side navigation: the HTTP response carries
// the target path and the server only logs the transition.
func logNavigator(formID string) form.Navigator {
	return form.NavigatorFunc(func(path string) {
		log.Printf("[api] form %s -> %s", formID, path)
	})
}
