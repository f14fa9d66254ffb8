package accounts

import (
	"context"

	"github.com/google/uuid"
)

// Event is a domain event emitted by a command handler after its
// transaction completes.
type Event interface {
	Type() string
}

// AccountRegisteredEvent fires after a successful self-registration.
type AccountRegisteredEvent struct {
	AccountID         uuid.UUID
	Email             string
	VerificationToken string
}

func (AccountRegisteredEvent) Type() string { return "account.registered" }

// AccountInvitedEvent fires after an elevated account provisions an invite.
type AccountInvitedEvent struct {
	AccountID            uuid.UUID
	Email                string
	Role                 Role
	ProfileCreationToken string
}

func (AccountInvitedEvent) Type() string { return "account.invited" }

// PasswordResetRequestedEvent fires after a reset token has been issued.
// It fires even if the notification later fails: the token is already
// persisted and stays usable.
type PasswordResetRequestedEvent struct {
	AccountID  uuid.UUID
	Email      string
	ResetToken string
}

func (PasswordResetRequestedEvent) Type() string { return "account.password_reset_requested" }

// SubscriberFunc reacts to a published event.
type SubscriberFunc func(ctx context.Context, event Event) error

// Dispatcher fans events out to subscribers synchronously, in registration
// order. Subscriber errors are logged and swallowed so a failing mail
// collaborator never rolls back the state change that produced the event.
type Dispatcher struct {
	subscribers map[string][]SubscriberFunc
	logger      Logger
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		subscribers: map[string][]SubscriberFunc{},
		logger:      defLogger{},
	}
}

func (d *Dispatcher) WithLogger(logger Logger) *Dispatcher {
	if logger != nil {
		d.logger = logger
	}
	return d
}

// Subscribe registers fn for every event whose Type matches eventType.
func (d *Dispatcher) Subscribe(eventType string, fn SubscriberFunc) *Dispatcher {
	if fn == nil {
		return d
	}
	d.subscribers[eventType] = append(d.subscribers[eventType], fn)
	return d
}

// Publish delivers the event to all subscribers for its type.
func (d *Dispatcher) Publish(ctx context.Context, event Event) {
	if event == nil {
		return
	}

	for _, fn := range d.subscribers[event.Type()] {
		if err := fn(ctx, event); err != nil {
			d.logger.Warn("event subscriber error event=%s: %v", event.Type(), err)
		}
	}
}

// EventPublisher is the surface command handlers depend on.
type EventPublisher interface {
	Publish(ctx context.Context, event Event)
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, Event) {}

func normalizePublisher(p EventPublisher) EventPublisher {
	if p == nil {
		return noopPublisher{}
	}
	return p
}
