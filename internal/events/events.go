// Package events publishes domain events for sync collaborators once a
// mutation has committed.
package events

import (
	"context"
	"sync"
	"time"

	"pocketbook/internal/uuid"
)

// Type names an event. It doubles as the AMQP routing key.
type Type string

const (
	TransactionCreated   Type = "transaction.created"
	TransactionApplied   Type = "transaction.applied"
	TransactionReverted  Type = "transaction.reverted"
	TransactionRevised   Type = "transaction.revised"
	TransactionDeleted   Type = "transaction.deleted"
	AccountAdjusted      Type = "account.adjusted"
	BudgetRolledOver     Type = "budget.rolled_over"
	LedgerDefaultChanged Type = "ledger.default_changed"
	LedgerDeleted        Type = "ledger.deleted"
)

// Event is the message body published for every committed change.
type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	LedgerID   string    `json:"ledger_id"`
	EntityID   string    `json:"entity_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// New builds an event stamped with a fresh id and the current time.
func New(typ Type, ledgerID, entityID string) Event {
	return Event{
		ID:         uuid.New(),
		Type:       typ,
		LedgerID:   ledgerID,
		EntityID:   entityID,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the type of every published event, in order.
func (r *Recorder) Types() []Type {
	events := r.Events()
	types := make([]Type, len(events))
	for i, e := range events {
		types[i] = e.Type
	}
	return types
}
