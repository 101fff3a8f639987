package testutil

import (
	"context"
	"sync"

	"github.com/invopeak/fakturaserie/internal/api/dto"
	ierr "github.com/invopeak/fakturaserie/internal/errors"
	"github.com/invopeak/fakturaserie/internal/publisher"
)

// InMemoryOrderPublisher captures published order messages for assertions
type InMemoryOrderPublisher struct {
	mu       sync.RWMutex
	messages []*dto.OrderMessage
	failNext bool
}

var _ publisher.OrderPublisher = (*InMemoryOrderPublisher)(nil)

func NewInMemoryOrderPublisher() *InMemoryOrderPublisher {
	return &InMemoryOrderPublisher{
		messages: make([]*dto.OrderMessage, 0),
	}
}

func (p *InMemoryOrderPublisher) PublishOrder(ctx context.Context, msg *dto.OrderMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failNext {
		p.failNext = false
		return ierr.NewError("publish failed").
			WithHint("simulated broker failure").
			Mark(ierr.ErrPublishFailed)
	}

	p.messages = append(p.messages, msg)
	return nil
}

// FailNext makes the next publish attempt return an error
func (p *InMemoryOrderPublisher) FailNext() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failNext = true
}

// Messages returns all captured order messages
func (p *InMemoryOrderPublisher) Messages() []*dto.OrderMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*dto.OrderMessage, len(p.messages))
	copy(out, p.messages)
	return out
}

// MessageForInvoice returns the first captured message for an invoice
func (p *InMemoryOrderPublisher) MessageForInvoice(invoiceReference string) (*dto.OrderMessage, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, msg := range p.messages {
		if msg.InvoiceReference == invoiceReference {
			return msg, true
		}
	}
	return nil, false
}

func (p *InMemoryOrderPublisher) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = make([]*dto.OrderMessage, 0)
	p.failNext = false
}

// InMemoryEventPublisher captures emitted domain events
type InMemoryEventPublisher struct {
	mu     sync.RWMutex
	events []publisher.DomainEvent
}

var _ publisher.EventPublisher = (*InMemoryEventPublisher)(nil)

func NewInMemoryEventPublisher() *InMemoryEventPublisher {
	return &InMemoryEventPublisher{
		events: make([]publisher.DomainEvent, 0),
	}
}

func (p *InMemoryEventPublisher) PublishEvent(ctx context.Context, eventName, seriesReference, caseReference string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publisher.DomainEvent{
		EventName:       eventName,
		SeriesReference: seriesReference,
		CaseReference:   caseReference,
	})
}

// HasEvent reports whether an event with the given name was emitted for the series
func (p *InMemoryEventPublisher) HasEvent(eventName, seriesReference string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, e := range p.events {
		if e.EventName == eventName && e.SeriesReference == seriesReference {
			return true
		}
	}
	return false
}

func (p *InMemoryEventPublisher) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = make([]publisher.DomainEvent, 0)
}
