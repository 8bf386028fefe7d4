package domain

import (
	"math"
	"time"
)

// Insurance states reported in vehicle stats
const (
	InsuranceValid   = "valid"
	InsuranceExpired = "expired"
	InsuranceUnknown = "unknown"
)

const (
	// ServiceDueWithinDays flags a vehicle whose next service is this close
	ServiceDueWithinDays = 7
	// InsuranceExpiringWithinDays flags a policy expiring this soon
	InsuranceExpiringWithinDays = 30
)

// DaysUntil returns the whole days from now until t, rounded up
func DaysUntil(now, t time.Time) int {
	return int(math.Ceil(t.Sub(now).Hours() / 24))
}

// InsuranceStatus reports whether a policy expiring at expiry is still valid
func InsuranceStatus(now time.Time, expiry *time.Time) string {
	if expiry == nil {
		return InsuranceUnknown
	}
	if expiry.After(now) {
		return InsuranceValid
	}
	return InsuranceExpired
}

// CustomerArchivedStatus marks a customer kept for its history but no longer served
const CustomerArchivedStatus = "archived"

// InspectionType is when a vehicle inspection took place
type InspectionType string

const (
	InspectionPreTrip     InspectionType = "pre_trip"
	InspectionPostTrip    InspectionType = "post_trip"
	InspectionMaintenance InspectionType = "maintenance"
)

func (t InspectionType) IsValid() bool {
	switch t {
	case InspectionPreTrip, InspectionPostTrip, InspectionMaintenance:
		return true
	}
	return false
}

// InspectionResult is the outcome of a vehicle inspection
type InspectionResult string

const (
	InspectionPass           InspectionResult = "pass"
	InspectionFail           InspectionResult = "fail"
	InspectionNeedsAttention InspectionResult = "needs_attention"
)

func (r InspectionResult) IsValid() bool {
	switch r {
	case InspectionPass, InspectionFail, InspectionNeedsAttention:
		return true
	}
	return false
}
