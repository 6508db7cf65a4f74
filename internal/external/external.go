// Package external declares the typed boundaries the coordination fabric
// consumes from collaborators that live outside this repo: analytics event
// sinks, payment gateways, LLM streaming, and the subscription webhook
// plumbing. Nothing here has a production implementation; callers wire in
// their own (or a test double) at the edges (cmd/teamctl, internal/credit,
// internal/hooks).
package external

import "context"

// AnalyticsSink is the canonical shape of the analytics collaborator.
// internal/hooks and internal/credit each declare their own narrower view
// of this same contract at their call sites.
type AnalyticsSink interface {
	Capture(event string, distinctID string, properties map[string]interface{})
	Flush()
}

// EventName enumerates the fixed set of analytics events the core emits.
type EventName string

const (
	EventTeamCreated          EventName = "team.created"
	EventTeamDeleted          EventName = "team.deleted"
	EventTeammateIdle         EventName = "team.teammate_idle"
	EventTaskCompleted        EventName = "team.task_completed"
	EventPhaseTransition      EventName = "team.phase_transition"
	EventMessageSent          EventName = "team.message_sent"
	EventAgentSpawned         EventName = "team.agent_spawned"
	EventCreditGrant          EventName = "backend.credit_grant"
	EventCreditConsumed       EventName = "backend.credit_consumed"
	EventSubscriptionUpdated  EventName = "backend.subscription_updated"
	EventSubscriptionCanceled EventName = "backend.subscription_canceled"
)

// PaymentMethod is the minimal shape this repo needs from a payment
// gateway's payment-method listing.
type PaymentMethod struct {
	ID       string
	Brand    string
	Last4    string
	ExpMonth int
	ExpYear  int
}

// Subscription is the minimal shape needed from a retrieved Stripe-style
// subscription, enough to drive internal/credit's billing-period-aligned
// block grants and migration.
type Subscription struct {
	ID                 string
	CustomerID         string
	Status             string
	CurrentPeriodStart int64 // epoch ms
	CurrentPeriodEnd   int64 // epoch ms
	Tier               string
}

// PaymentGateway is the typed boundary for the payment collaborator: create
// a PaymentIntent with an idempotency key, list/retrieve payment methods,
// retrieve a subscription.
type PaymentGateway interface {
	CreatePaymentIntent(ctx context.Context, amount int64, currency, idempotencyKey string) (intentID string, err error)
	ListPaymentMethods(ctx context.Context, customerID string) ([]PaymentMethod, error)
	RetrievePaymentMethod(ctx context.Context, methodID string) (PaymentMethod, error)
	RetrieveSubscription(ctx context.Context, subscriptionID string) (Subscription, error)
}

// SyncFailureSink durably records operation ids whose DB-touching path
// failed terminally after retry.
type SyncFailureSink interface {
	RecordSyncFailure(operationID string, err error)
}

// LLMClient is a deliberately minimal boundary for an LLM streaming
// collaborator, named so a caller wiring an agent runtime on top of this
// coordination fabric has somewhere to hang it. Nothing in this repo calls
// it.
type LLMClient interface {
	Stream(ctx context.Context, prompt string, onToken func(token string)) error
}
