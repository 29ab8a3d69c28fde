package entitlements

import (
	"errors"
	"strings"
)

// Plan tiers. The entitlement row in the database is the authoritative
// source; these helpers only interpret it.
const (
	PlanFree = "free"
	PlanPaid = "paid"
)

// FreeInvoiceLimit caps how many invoices a free-tier account may hold.
const FreeInvoiceLimit = 5

// ErrNoEntitlement signals a feature-gated action attempted on a free-tier
// account.
var ErrNoEntitlement = errors.New("this feature requires an active subscription")

// NormalizePlan maps arbitrary input to a known tier, defaulting to free.
func NormalizePlan(plan string) string {
	switch strings.ToLower(strings.TrimSpace(plan)) {
	case PlanPaid:
		return PlanPaid
	default:
		return PlanFree
	}
}

// IsPaid reports whether the plan grants premium features.
func IsPaid(plan string) bool {
	return NormalizePlan(plan) == PlanPaid
}

// CanSyncAccounting reports whether the plan may export invoices to the
// accounting integration.
func CanSyncAccounting(plan string) bool {
	return IsPaid(plan)
}

// InvoiceLimit returns the invoice cap for the plan, or -1 for unlimited.
func InvoiceLimit(plan string) int {
	if IsPaid(plan) {
		return -1
	}
	return FreeInvoiceLimit
}
