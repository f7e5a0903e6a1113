// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"fmt"
	"regexp"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// UserID represents a unique user identifier (UUID format).
type UserID string

// UUID validation regex (simple version).
var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// IsValid checks if the user ID is a valid UUID.
func (u UserID) IsValid() bool {
	return uuidRegex.MatchString(string(u))
}

// String returns the string representation.
func (u UserID) String() string {
	return string(u)
}

// IsEmpty checks if the ID is empty.
func (u UserID) IsEmpty() bool {
	return u == ""
}

// NewUserID creates a new UserID with validation.
func NewUserID(id string) (UserID, error) {
	uid := UserID(strings.ToLower(strings.TrimSpace(id)))
	if !uid.IsValid() {
		return "", NewDomainError("shared", "NewUserID", ErrInvalidID, "invalid user ID format")
	}
	return uid, nil
}

// SessionID identifies a single browsing session. One trigger bus and one
// engagement engine exist per session.
type SessionID string

// IsValid checks that the session ID is not empty.
func (s SessionID) IsValid() bool {
	return len(s) > 0
}

// String returns the string representation.
func (s SessionID) String() string {
	return string(s)
}

// RuleID represents a unique engagement rule identifier.
type RuleID string

// IsValid checks that the rule ID is not empty.
func (id RuleID) IsValid() bool {
	return len(id) > 0
}

// String returns the string representation.
func (id RuleID) String() string {
	return string(id)
}

// ═══════════════════════════════════════════════════════════════════════════
// Role Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Role represents the role of the authenticated user in the fleet account.
type Role string

const (
	RoleOwner   Role = "owner"
	RoleManager Role = "manager"
	RoleDriver  Role = "driver"
)

// IsValid checks if the role is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleOwner, RoleManager, RoleDriver:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (r Role) String() string {
	return string(r)
}

// ═══════════════════════════════════════════════════════════════════════════
// Signal Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// SignalName names a measurable user-behavior signal. The set is open:
// catalog authors may reference any name the aggregator produces.
type SignalName string

// Well-known signals backed by the business-data aggregator.
const (
	SignalVisits            SignalName = "visits"
	SignalDataInputs        SignalName = "dataInputs"
	SignalVehicles          SignalName = "vehicles"
	SignalChecklists        SignalName = "checklists"
	SignalMaintenanceCount  SignalName = "maintenanceRecords"
	SignalFuelCount         SignalName = "fuelRecords"
	SignalMaintenanceAmount SignalName = "maintenanceAmountTotal"
	SignalFuelAmount        SignalName = "fuelAmountTotal"
)

// String returns the string representation.
func (s SignalName) String() string {
	return string(s)
}

// Money represents a monetary amount in the account currency's minor unit.
type Money int64

// IsValid checks that the amount is non-negative.
func (m Money) IsValid() bool {
	return m >= 0
}

// Float64 returns the amount as a float for signal comparison.
func (m Money) Float64() float64 {
	return float64(m)
}

// String returns a human-readable representation for logging.
func (m Money) String() string {
	return fmt.Sprintf("%d", int64(m))
}
