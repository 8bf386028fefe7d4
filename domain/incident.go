package domain

import (
	"fmt"
	"math/rand"
	"time"
)

// IncidentStatus is intentionally unordered: any status may follow any other.
type IncidentStatus string

const (
	IncidentReported      IncidentStatus = "reported"
	IncidentInvestigating IncidentStatus = "investigating"
	IncidentResolved      IncidentStatus = "resolved"
	IncidentClosed        IncidentStatus = "closed"
)

func (s IncidentStatus) IsValid() bool {
	switch s {
	case IncidentReported, IncidentInvestigating, IncidentResolved, IncidentClosed:
		return true
	}
	return false
}

// IsOpen reports whether the incident still needs attention
func (s IncidentStatus) IsOpen() bool {
	return s == IncidentReported || s == IncidentInvestigating
}

// NewReportNumber builds an INC-YYMM-NNNN identifier for an incident created at t
func NewReportNumber(t time.Time, rnd *rand.Rand) string {
	var n int
	if rnd != nil {
		n = rnd.Intn(10000)
	} else {
		n = rand.Intn(10000)
	}
	return fmt.Sprintf("INC-%02d%02d-%04d", t.Year()%100, int(t.Month()), n)
}

// MaintenanceType categorises a maintenance record
type MaintenanceType string

const (
	MaintenanceRoutine    MaintenanceType = "routine"
	MaintenanceRepair     MaintenanceType = "repair"
	MaintenanceInspection MaintenanceType = "inspection"
	MaintenanceTire       MaintenanceType = "tire"
	MaintenanceOther      MaintenanceType = "other"
)

func (t MaintenanceType) IsValid() bool {
	switch t {
	case MaintenanceRoutine, MaintenanceRepair, MaintenanceInspection, MaintenanceTire, MaintenanceOther:
		return true
	}
	return false
}

// ServiceIntervalMonths is added to a routine service date to get the next due date
const ServiceIntervalMonths = 3

// NextServiceDue returns the due date following a routine service on date
func NextServiceDue(date time.Time) time.Time {
	return date.AddDate(0, ServiceIntervalMonths, 0)
}
