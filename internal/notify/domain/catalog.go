package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Event types. Adding a constant without a catalog entry panics at startup.
const (
	EventInventoryLowStock     EventType = "inventory.low_stock"
	EventInventoryOutOfStock   EventType = "inventory.out_of_stock"
	EventInventoryItemExpiring EventType = "inventory.item_expiring"

	EventMaintenanceTicketCreated   EventType = "maintenance.ticket_created"
	EventMaintenanceTicketOverdue   EventType = "maintenance.ticket_overdue"
	EventMaintenancePreventiveDue   EventType = "maintenance.preventive_due"
	EventMaintenanceTicketCompleted EventType = "maintenance.ticket_completed"

	EventStaffShiftUnassigned  EventType = "staff.shift_unassigned"
	EventStaffDocumentExpiring EventType = "staff.document_expiring"
	EventStaffAbsenceReported  EventType = "staff.absence_reported"

	EventFinanceInvoicePendingPayment EventType = "finance.invoice_pending_payment"
	EventFinanceInvoiceOverdue        EventType = "finance.invoice_overdue"
	EventFinanceBudgetExceeded        EventType = "finance.budget_exceeded"
	EventFinancePaymentReceived       EventType = "finance.payment_received"

	EventProjectsMilestoneDue   EventType = "projects.milestone_due"
	EventProjectsProjectDelayed EventType = "projects.project_delayed"
	EventProjectsTaskAssigned   EventType = "projects.task_assigned"
)

// CatalogEntry holds the static defaults of one event type.
type CatalogEntry struct {
	EventType       EventType
	Module          Module
	Description     string
	DefaultPriority Priority
	DefaultAudience Audience
}

var declaredEventTypes = []EventType{
	EventInventoryLowStock,
	EventInventoryOutOfStock,
	EventInventoryItemExpiring,
	EventMaintenanceTicketCreated,
	EventMaintenanceTicketOverdue,
	EventMaintenancePreventiveDue,
	EventMaintenanceTicketCompleted,
	EventStaffShiftUnassigned,
	EventStaffDocumentExpiring,
	EventStaffAbsenceReported,
	EventFinanceInvoicePendingPayment,
	EventFinanceInvoiceOverdue,
	EventFinanceBudgetExceeded,
	EventFinancePaymentReceived,
	EventProjectsMilestoneDue,
	EventProjectsProjectDelayed,
	EventProjectsTaskAssigned,
}

var catalog = map[EventType]CatalogEntry{
	EventInventoryLowStock: {
		Module: ModuleInventory, Description: "Stock of an item fell below its minimum level",
		DefaultPriority: PriorityHigh, DefaultAudience: AdminsAndAssistants{},
	},
	EventInventoryOutOfStock: {
		Module: ModuleInventory, Description: "An item is out of stock",
		DefaultPriority: PriorityCritical, DefaultAudience: AdminsAndAssistants{},
	},
	EventInventoryItemExpiring: {
		Module: ModuleInventory, Description: "A stocked item is close to its expiry date",
		DefaultPriority: PriorityMedium, DefaultAudience: AdminsAndAssistants{},
	},
	EventMaintenanceTicketCreated: {
		Module: ModuleMaintenance, Description: "A maintenance ticket was opened",
		DefaultPriority: PriorityMedium, DefaultAudience: AdminsAndAssistants{},
	},
	EventMaintenanceTicketOverdue: {
		Module: ModuleMaintenance, Description: "A maintenance ticket passed its due date",
		DefaultPriority: PriorityHigh, DefaultAudience: Admins{},
	},
	EventMaintenancePreventiveDue: {
		Module: ModuleMaintenance, Description: "Preventive maintenance is due",
		DefaultPriority: PriorityMedium, DefaultAudience: AdminsAndAssistants{},
	},
	EventMaintenanceTicketCompleted: {
		Module: ModuleMaintenance, Description: "A maintenance ticket was completed",
		DefaultPriority: PriorityLow, DefaultAudience: SpecificUsers{},
	},
	EventStaffShiftUnassigned: {
		Module: ModuleStaff, Description: "A staff shift has nobody assigned",
		DefaultPriority: PriorityHigh, DefaultAudience: Admins{},
	},
	EventStaffDocumentExpiring: {
		Module: ModuleStaff, Description: "A staff member's document is about to expire",
		DefaultPriority: PriorityMedium, DefaultAudience: Admins{},
	},
	EventStaffAbsenceReported: {
		Module: ModuleStaff, Description: "A staff absence was reported",
		DefaultPriority: PriorityMedium, DefaultAudience: AdminsAndAssistants{},
	},
	EventFinanceInvoicePendingPayment: {
		Module: ModuleFinance, Description: "An invoice is awaiting payment",
		DefaultPriority: PriorityHigh, DefaultAudience: AdminsAndAssistants{},
	},
	EventFinanceInvoiceOverdue: {
		Module: ModuleFinance, Description: "An invoice is overdue",
		DefaultPriority: PriorityCritical, DefaultAudience: Admins{},
	},
	EventFinanceBudgetExceeded: {
		Module: ModuleFinance, Description: "Spending exceeded the approved budget",
		DefaultPriority: PriorityHigh, DefaultAudience: Admins{},
	},
	EventFinancePaymentReceived: {
		Module: ModuleFinance, Description: "A payment was received",
		DefaultPriority: PriorityLow, DefaultAudience: AdminsAndAssistants{},
	},
	EventProjectsMilestoneDue: {
		Module: ModuleProjects, Description: "A project milestone is due",
		DefaultPriority: PriorityMedium, DefaultAudience: AdminsAndAssistants{},
	},
	EventProjectsProjectDelayed: {
		Module: ModuleProjects, Description: "A project is behind schedule",
		DefaultPriority: PriorityHigh, DefaultAudience: Admins{},
	},
	EventProjectsTaskAssigned: {
		Module: ModuleProjects, Description: "A project task was assigned",
		DefaultPriority: PriorityMedium, DefaultAudience: SpecificUsers{},
	},
}

func init() {
	for et, e := range catalog {
		e.EventType = et
		catalog[et] = e
	}
	if err := ValidateCatalog(); err != nil {
		panic(err)
	}
}

// ValidateCatalog checks that every declared event type has exactly one
// well-formed entry whose module matches the type prefix.
func ValidateCatalog() error {
	if len(catalog) != len(declaredEventTypes) {
		return fmt.Errorf("catalog has %d entries for %d declared event types", len(catalog), len(declaredEventTypes))
	}
	for _, et := range declaredEventTypes {
		e, ok := catalog[et]
		if !ok {
			return fmt.Errorf("event type %q has no catalog entry", et)
		}
		if !strings.HasPrefix(string(et), string(e.Module)+".") {
			return fmt.Errorf("event type %q is filed under module %q", et, e.Module)
		}
		if !e.DefaultPriority.Valid() {
			return fmt.Errorf("event type %q has invalid priority %q", et, e.DefaultPriority)
		}
		if e.DefaultAudience == nil {
			return fmt.Errorf("event type %q has no default audience", et)
		}
	}
	return nil
}

// Lookup returns the catalog entry for et.
func Lookup(et EventType) (CatalogEntry, bool) {
	e, ok := catalog[et]
	return e, ok
}

// MustLookup is Lookup for event types known at compile time.
func MustLookup(et EventType) CatalogEntry {
	e, ok := catalog[et]
	if !ok {
		panic(fmt.Sprintf("%v: %s", ErrUnknownEventType, et))
	}
	return e
}

// IsKnownEventType reports whether et is in the catalog.
func IsKnownEventType(et EventType) bool {
	_, ok := catalog[et]
	return ok
}

// Catalog returns all entries ordered by event type.
func Catalog() []CatalogEntry {
	out := make([]CatalogEntry, 0, len(catalog))
	for _, e := range catalog {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventType < out[j].EventType })
	return out
}
