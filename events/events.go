package events

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeActivityCreated     EventType = "activity_created"
	EventTypeActivityFunded      EventType = "activity_funded"
	EventTypeTicketMinted        EventType = "ticket_minted"
	EventTypeTicketTransferred   EventType = "ticket_transferred"
	EventTypeListingCreated      EventType = "listing_created"
	EventTypeListingCancelled    EventType = "listing_cancelled"
	EventTypeListingCompleted    EventType = "listing_completed"
	EventTypeActivitySettled     EventType = "activity_settled"
	EventTypeVaultCredited       EventType = "vault_credited"
	EventTypeWithdrawalCompleted EventType = "withdrawal_completed"
	EventTypeWithdrawalFailed    EventType = "withdrawal_failed"
)

// AllEventTypes lists every event type the engine emits
var AllEventTypes = []EventType{
	EventTypeActivityCreated,
	EventTypeActivityFunded,
	EventTypeTicketMinted,
	EventTypeTicketTransferred,
	EventTypeListingCreated,
	EventTypeListingCancelled,
	EventTypeListingCompleted,
	EventTypeActivitySettled,
	EventTypeVaultCredited,
	EventTypeWithdrawalCompleted,
	EventTypeWithdrawalFailed,
}

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// Amounts are carried as decimal wei strings so events serialize without precision loss.

// ActivityCreatedEvent is emitted when a new activity is registered
type ActivityCreatedEvent struct {
	ActivityID  int64    `json:"activity_id"`
	Creator     string   `json:"creator"`
	Content     string   `json:"content"`
	Choices     []string `json:"choices"`
	Deadline    int64    `json:"deadline"`
	InitialPool string   `json:"initial_pool"`
}

func (e ActivityCreatedEvent) Type() EventType {
	return EventTypeActivityCreated
}

// ActivityFundedEvent is emitted when the initial pool is topped up
type ActivityFundedEvent struct {
	ActivityID int64  `json:"activity_id"`
	Funder     string `json:"funder"`
	Amount     string `json:"amount"`
	TotalPool  string `json:"total_pool"`
}

func (e ActivityFundedEvent) Type() EventType {
	return EventTypeActivityFunded
}

// TicketMintedEvent is emitted when a bet creates a ticket
type TicketMintedEvent struct {
	TicketID    int64  `json:"ticket_id"`
	ActivityID  int64  `json:"activity_id"`
	ChoiceIndex int    `json:"choice_index"`
	Owner       string `json:"owner"`
	Amount      string `json:"amount"`
}

func (e TicketMintedEvent) Type() EventType {
	return EventTypeTicketMinted
}

// TicketTransferredEvent is emitted when ticket ownership changes
type TicketTransferredEvent struct {
	TicketID int64  `json:"ticket_id"`
	From     string `json:"from"`
	To       string `json:"to"`
}

func (e TicketTransferredEvent) Type() EventType {
	return EventTypeTicketTransferred
}

// ListingCreatedEvent is emitted when a ticket is put up for sale
type ListingCreatedEvent struct {
	ListingID int64  `json:"listing_id"`
	TicketID  int64  `json:"ticket_id"`
	Seller    string `json:"seller"`
	Price     string `json:"price"`
}

func (e ListingCreatedEvent) Type() EventType {
	return EventTypeListingCreated
}

// ListingCancelledEvent is emitted when a listing is withdrawn by its seller or by settlement
type ListingCancelledEvent struct {
	ListingID int64  `json:"listing_id"`
	TicketID  int64  `json:"ticket_id"`
	Seller    string `json:"seller"`
	Reason    string `json:"reason"`
}

func (e ListingCancelledEvent) Type() EventType {
	return EventTypeListingCancelled
}

// ListingCompletedEvent is emitted when a listed ticket is sold
type ListingCompletedEvent struct {
	ListingID int64  `json:"listing_id"`
	TicketID  int64  `json:"ticket_id"`
	Seller    string `json:"seller"`
	Buyer     string `json:"buyer"`
	Price     string `json:"price"`
}

func (e ListingCompletedEvent) Type() EventType {
	return EventTypeListingCompleted
}

// ActivitySettledEvent is emitted once an activity's pool has been distributed
type ActivitySettledEvent struct {
	ActivityID    int64  `json:"activity_id"`
	WinningChoice int    `json:"winning_choice"`
	TotalPool     string `json:"total_pool"`
	WinnerPool    string `json:"winner_pool"`
	CreatorCredit string `json:"creator_credit"`
	TicketCount   int    `json:"ticket_count"`
	Refunded      bool   `json:"refunded"`
}

func (e ActivitySettledEvent) Type() EventType {
	return EventTypeActivitySettled
}

// VaultCreditedEvent represents a vault balance increase
type VaultCreditedEvent struct {
	Address    string `json:"address"`
	Amount     string `json:"amount"`
	OldBalance string `json:"old_balance"`
	NewBalance string `json:"new_balance"`
	EntryType  string `json:"entry_type"`
}

func (e VaultCreditedEvent) Type() EventType {
	return EventTypeVaultCredited
}

// WithdrawalCompletedEvent is emitted after funds left the vault
type WithdrawalCompletedEvent struct {
	WithdrawalID int64  `json:"withdrawal_id"`
	Address      string `json:"address"`
	Amount       string `json:"amount"`
}

func (e WithdrawalCompletedEvent) Type() EventType {
	return EventTypeWithdrawalCompleted
}

// WithdrawalFailedEvent is emitted when a transfer failed and the amount was re-credited
type WithdrawalFailedEvent struct {
	WithdrawalID int64  `json:"withdrawal_id"`
	Address      string `json:"address"`
	Amount       string `json:"amount"`
	Reason       string `json:"reason"`
}

func (e WithdrawalFailedEvent) Type() EventType {
	return EventTypeWithdrawalFailed
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching. Each subscription receives its
// events in emit order on its own goroutine, so a slow subscriber never holds up an
// operation or another subscriber.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]*subscription
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]*subscription),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.subscribe([]EventType{eventType}, handler)
}

// SubscribeAll adds a handler for every event type. The handler sees events of
// different types in the order they were emitted.
func (b *Bus) SubscribeAll(handler Handler) {
	b.subscribe(AllEventTypes, handler)
}

func (b *Bus) subscribe(eventTypes []EventType, handler Handler) {
	sub := &subscription{handler: handler}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, eventType := range eventTypes {
		b.handlers[eventType] = append(b.handlers[eventType], sub)

		log.WithFields(log.Fields{
			"eventType":    eventType,
			"handlerCount": len(b.handlers[eventType]),
		}).Debug("Subscribed handler to event type")
	}
}

// Emit queues an event for every subscription registered for its type
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	subs := make([]*subscription, len(b.handlers[event.Type()]))
	copy(subs, b.handlers[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(subs),
	}).Debug("Emitting event to handlers")

	for _, sub := range subs {
		sub.enqueue(ctx, event)
	}
}

type delivery struct {
	ctx   context.Context
	event Event
}

// subscription delivers queued events to one handler, one at a time
type subscription struct {
	handler Handler

	mu       sync.Mutex
	queue    []delivery
	draining bool
}

func (s *subscription) enqueue(ctx context.Context, event Event) {
	s.mu.Lock()
	s.queue = append(s.queue, delivery{ctx: ctx, event: event})
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true
	s.mu.Unlock()

	go s.drain()
}

func (s *subscription) drain() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.draining = false
			s.mu.Unlock()
			return
		}
		next := s.queue[0]
		s.queue[0] = delivery{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.deliver(next)
	}
}

func (s *subscription) deliver(d delivery) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"eventType": d.event.Type(),
				"panic":     r,
			}).Error("Event handler panicked")
		}
	}()
	s.handler(d.ctx, d.event)
}

// TransactionalBus holds events produced inside a unit of work until the
// transaction commits. Flush forwards them to the underlying bus.
type TransactionalBus struct {
	real    *Bus
	pending []Event
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	log.WithFields(log.Fields{
		"eventType":    e.Type(),
		"pendingCount": len(b.pending),
	}).Debug("Queued event until commit")
	b.pending = append(b.pending, e)
}

// Pending returns the events queued so far
func (b *TransactionalBus) Pending() []Event {
	return b.pending
}

// Flush is called after a successful commit
func (b *TransactionalBus) Flush(ctx context.Context) error {
	// Handlers outlive the request that committed the transaction
	eventCtx := context.WithoutCancel(ctx)

	for _, ev := range b.pending {
		b.real.Emit(eventCtx, ev)
	}

	log.WithField("eventCount", len(b.pending)).Debug("Flushed pending events")
	b.pending = nil
	return nil
}

// Discard drops queued events after a rollback
func (b *TransactionalBus) Discard() {
	b.pending = nil
}
