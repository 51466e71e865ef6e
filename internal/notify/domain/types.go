package domain

import (
	"fmt"
	"time"

	idomain "github.com/corvusHold/notify/internal/identity/domain"
)

// TenantContext is the client + condominium scope every record is written under.
type TenantContext = idomain.Tenant

// EventType identifies a domain condition, e.g. "inventory.low_stock".
// The set is closed: every value is declared in catalog.go.
type EventType string

// Module is the business area that owns an event type.
type Module string

const (
	ModuleInventory   Module = "inventory"
	ModuleMaintenance Module = "maintenance"
	ModuleStaff       Module = "staff"
	ModuleFinance     Module = "finance"
	ModuleProjects    Module = "projects"
)

// Priority is used for display grouping only, never for delivery order.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Rank orders priorities critical > high > medium > low. Unknown values rank 0.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

func (p Priority) Valid() bool { return p.Rank() > 0 }

// ComparePriority returns -1, 0 or 1 as a ranks below, equal to or above b.
func ComparePriority(a, b Priority) int {
	ra, rb := a.Rank(), b.Rank()
	switch {
	case ra < rb:
		return -1
	case ra > rb:
		return 1
	default:
		return 0
	}
}

// Channel is a delivery channel. Only ChannelInApp is delivered; the others
// are recorded on queue records for future sinks.
type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelPush  Channel = "push"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelInApp, ChannelEmail, ChannelSMS, ChannelPush:
		return true
	}
	return false
}

// DefaultChannels applies when an event does not name its channels.
func DefaultChannels() []Channel { return []Channel{ChannelInApp} }

// HasChannel reports whether ch is present in list.
func HasChannel(list []Channel, ch Channel) bool {
	for _, c := range list {
		if c == ch {
			return true
		}
	}
	return false
}

// EventStatus is the terminal state an EventRecord is written with.
type EventStatus string

const (
	// StatusPendingDispatch marks records left for a server-side consumer.
	StatusPendingDispatch EventStatus = "pending_dispatch"
	// StatusEmitted marks records this pipeline fanned out itself.
	StatusEmitted EventStatus = "emitted"
)

// QueueStatusDispatched is the only status a QueueRecord is created with.
const QueueStatusDispatched = "dispatched"

// DomainEvent is the producer input. Audience, Channels, Module and Priority
// are optional and default from the catalog.
type DomainEvent struct {
	EventType     EventType
	Module        Module
	Priority      Priority
	DedupeKey     string
	Audience      Audience
	Channels      []Channel
	EntityID      string
	EntityType    string
	Metadata      map[string]any
	Title         string
	Body          string
	TenantContext TenantContext
}

// EventRecord is persisted once per non-suppressed emission. Immutable.
type EventRecord struct {
	ID            string
	EventType     EventType
	Module        Module
	Priority      Priority
	DedupeKey     string
	Audience      AudienceSpec
	Channels      []Channel
	EntityID      string
	EntityType    string
	Metadata      map[string]any
	Title         string
	Body          string
	Status        EventStatus
	CreatedAt     time.Time
	CreatedBy     string
	CreatedByName string
	TenantContext TenantContext
}

// QueueRecord captures the resolved audience of one fanned-out event.
type QueueRecord struct {
	ID              string
	SourceEventID   string
	EventType       EventType
	Module          Module
	Priority        Priority
	Channels        []Channel
	Status          string
	DedupeKey       string
	Recipients      []string
	RecipientsCount int
	CreatedAt       time.Time
	DispatchedAt    time.Time
	DispatchedBy    string
	TenantContext   TenantContext
}

// RecipientNotification is one document in a recipient's personal feed.
type RecipientNotification struct {
	ID            string
	RecipientID   string
	Title         string
	Body          string
	Module        Module
	EventType     EventType
	Priority      Priority
	Read          bool
	ReadAt        *time.Time
	EntityID      string
	EntityType    string
	Metadata      map[string]any
	SourceEventID string
	SourceQueueID string
	CreatedAt     time.Time
	CreatedBy     string
	TenantContext TenantContext
}

// MarkRead flips the notification to read. It reports false and leaves ReadAt
// untouched when the notification was already read.
func (n *RecipientNotification) MarkRead(at time.Time) bool {
	if n.Read {
		return false
	}
	t := at
	n.Read = true
	n.ReadAt = &t
	return true
}

// FeedRef addresses one recipient's personal feed within a tenant.
type FeedRef struct {
	Tenant      TenantContext
	RecipientID string
}

func (f FeedRef) Path() string {
	return fmt.Sprintf("%s/users/%s/notifications", f.Tenant.Path(), f.RecipientID)
}

// Ref returns the feed the notification belongs to.
func (n RecipientNotification) Ref() FeedRef {
	return FeedRef{Tenant: n.TenantContext, RecipientID: n.RecipientID}
}
