package handlers

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"example.com/backstage/services/fleet/domain"
	"example.com/backstage/services/fleet/models"
	"example.com/backstage/services/fleet/repository"
	"example.com/backstage/services/fleet/utils"

	"github.com/rs/zerolog/log"
)

const reportNumberAttempts = 5

// IncidentInput holds the writable attributes of an incident report
type IncidentInput struct {
	VehicleID       *string               `json:"vehicle_id" validate:"omitempty,uuid"`
	DriverID        *string               `json:"driver_id" validate:"omitempty,uuid"`
	Type            string                `json:"type" validate:"required,oneof=accident theft damage breakdown maintenance other"`
	Date            time.Time             `json:"date" validate:"required"`
	Location        string                `json:"location"`
	Description     string                `json:"description" validate:"required"`
	Severity        string                `json:"severity" validate:"required,oneof=minor moderate major critical"`
	Status          domain.IncidentStatus `json:"status" validate:"omitempty,incident_status"`
	PoliceReport    string                `json:"police_report"`
	InsuranceClaim  string                `json:"insurance_claim"`
	Costs           *float64              `json:"costs" validate:"omitempty,gte=0"`
	ResolutionNotes string                `json:"resolution_notes"`
}

func (in IncidentInput) status() domain.IncidentStatus {
	if in.Status == "" {
		return domain.IncidentReported
	}
	return in.Status
}

func (in IncidentInput) check(ctx context.Context, tx repository.Store) error {
	if emptyToNil(in.VehicleID) == nil && emptyToNil(in.DriverID) == nil {
		return domain.Validation("incident must reference a vehicle or a driver")
	}
	if err := requireReference(ctx, tx.Vehicles(), "vehicle", in.VehicleID); err != nil {
		return err
	}
	return requireReference(ctx, tx.Drivers(), "driver", in.DriverID)
}

// Command structs
type CreateIncidentCommand struct {
	ActorID string `json:"actor_id" validate:"required"`
	IncidentInput
}

// UpdateIncidentCommand replaces every writable attribute of an incident.
// Status may move between any two values.
type UpdateIncidentCommand struct {
	IncidentID string `json:"incident_id" validate:"required"`
	ActorID    string `json:"actor_id" validate:"required"`
	IncidentInput
}

type DeleteIncidentCommand struct {
	IncidentID string `json:"incident_id" validate:"required"`
	ActorID    string `json:"actor_id" validate:"required"`
}

// AddIncidentCommentCommand appends a note to an incident report
type AddIncidentCommentCommand struct {
	IncidentID string `json:"incident_id" validate:"required"`
	ActorID    string `json:"actor_id" validate:"required"`
	Comment    string `json:"comment" validate:"required"`
}

// VehicleIncidentCount is the number of incidents reported against a vehicle
type VehicleIncidentCount struct {
	VehicleID          string `json:"vehicle_id"`
	RegistrationNumber string `json:"registration_number"`
	Count              int    `json:"count"`
}

// IncidentSummary breaks the incidents of a period down by attribute
type IncidentSummary struct {
	Total      int                    `json:"total"`
	ByType     map[string]int         `json:"by_type"`
	BySeverity map[string]int         `json:"by_severity"`
	ByStatus   map[string]int         `json:"by_status"`
	ByVehicle  []VehicleIncidentCount `json:"by_vehicle"`
}

var incidentList = listSpec{
	filters:     []string{"status", "type", "severity", "vehicle_id", "driver_id", "report_number"},
	sorts:       []string{"date", "created_at", "updated_at", "severity", "report_number"},
	defaultSort: "date",
	defaultDesc: true,
}

// IncidentHandler handles all incident-related commands
type IncidentHandler struct {
	base
	reportNumber func(time.Time) string
}

// NewIncidentHandler creates a new incident handler
func NewIncidentHandler(store repository.Store, opts Options) *IncidentHandler {
	return &IncidentHandler{
		base: newBase(store, opts),
		reportNumber: func(t time.Time) string {
			return domain.NewReportNumber(t, nil)
		},
	}
}

// nextReportNumber draws report numbers until one is unused
func (h *IncidentHandler) nextReportNumber(ctx context.Context, tx repository.Store, at time.Time) (string, error) {
	for i := 0; i < reportNumberAttempts; i++ {
		number := h.reportNumber(at)
		taken, err := tx.Incidents().Exists(ctx, map[string]interface{}{"report_number": number}, "")
		if err != nil {
			return "", fmt.Errorf("failed to check report number: %w", err)
		}
		if !taken {
			return number, nil
		}
		log.Debug().Str("reportNumber", number).Msg("Report number taken, drawing another")
	}
	return "", domain.Conflict("no free report number after %d attempts", reportNumberAttempts)
}

// resolvedDate keeps an existing resolution date while the incident stays
// resolved or closed, and stamps now when it first becomes resolved
func resolvedDate(status domain.IncidentStatus, current *time.Time, now time.Time) *time.Time {
	switch {
	case status.IsOpen():
		return nil
	case current != nil:
		return current
	case status == domain.IncidentResolved:
		return &now
	default:
		return nil
	}
}

// HandleReportIncident creates an incident with a generated report number
func (h *IncidentHandler) HandleReportIncident(ctx context.Context, cmd CreateIncidentCommand) (*models.Incident, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	log.Info().
		Str("type", cmd.Type).
		Str("severity", cmd.Severity).
		Str("actorID", cmd.ActorID).
		Msg("Handling ReportIncident command")

	var incident *models.Incident
	err := h.mutate(ctx, "incident", "create", func(ctx context.Context, tx repository.Store) error {
		if err := utils.ValidateStruct(cmd); err != nil {
			return err
		}
		if err := cmd.check(ctx, tx); err != nil {
			return err
		}

		now := h.now()
		number, err := h.nextReportNumber(ctx, tx, now)
		if err != nil {
			return err
		}

		status := cmd.status()
		incident = &models.Incident{
			ID:              newID(),
			ReportNumber:    number,
			VehicleID:       emptyToNil(cmd.VehicleID),
			DriverID:        emptyToNil(cmd.DriverID),
			Type:            cmd.Type,
			Date:            cmd.Date,
			Location:        cmd.Location,
			Description:     strings.TrimSpace(cmd.Description),
			Severity:        cmd.Severity,
			Status:          string(status),
			PoliceReport:    cmd.PoliceReport,
			InsuranceClaim:  cmd.InsuranceClaim,
			Costs:           cmd.Costs,
			ResolutionNotes: cmd.ResolutionNotes,
			ResolvedDate:    resolvedDate(status, nil, now),
			ReportedBy:      cmd.ActorID,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := tx.Incidents().Create(ctx, incident); err != nil {
			return fmt.Errorf("failed to create incident: %w", err)
		}

		err = recordEvent(ctx, tx, domain.Event{
			AggregateID:   incident.ID,
			AggregateType: domain.AggregateIncident,
			Type:          domain.IncidentCreated,
			ActorID:       cmd.ActorID,
			Timestamp:     now,
			Data:          incident,
		})
		if err != nil {
			return err
		}

		incident, err = loadEntity(ctx, tx.Incidents(), "incident", incident.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return incident, nil
}

// HandleUpdateIncident replaces the attributes of an incident
func (h *IncidentHandler) HandleUpdateIncident(ctx context.Context, cmd UpdateIncidentCommand) (*models.Incident, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	log.Info().Str("incidentID", cmd.IncidentID).Str("actorID", cmd.ActorID).Msg("Handling UpdateIncident command")

	var incident *models.Incident
	err := h.mutate(ctx, "incident", "update", func(ctx context.Context, tx repository.Store) error {
		if err := utils.ValidateStruct(cmd); err != nil {
			return err
		}
		inc, err := loadEntity(ctx, tx.Incidents(), "incident", cmd.IncidentID)
		if err != nil {
			return err
		}
		if err := cmd.check(ctx, tx); err != nil {
			return err
		}

		now := h.now()
		status := cmd.status()
		fields := map[string]interface{}{
			"vehicle_id":       emptyToNil(cmd.VehicleID),
			"driver_id":        emptyToNil(cmd.DriverID),
			"type":             cmd.Type,
			"date":             cmd.Date,
			"location":         cmd.Location,
			"description":      strings.TrimSpace(cmd.Description),
			"severity":         cmd.Severity,
			"status":           string(status),
			"police_report":    cmd.PoliceReport,
			"insurance_claim":  cmd.InsuranceClaim,
			"costs":            cmd.Costs,
			"resolution_notes": cmd.ResolutionNotes,
			"resolved_date":    resolvedDate(status, inc.ResolvedDate, now),
			"updated_at":       now,
		}
		if err := tx.Incidents().UpdateFields(ctx, inc.ID, fields); err != nil {
			return fmt.Errorf("failed to update incident: %w", err)
		}

		err = recordEvent(ctx, tx, domain.Event{
			AggregateID:   inc.ID,
			AggregateType: domain.AggregateIncident,
			Type:          domain.IncidentUpdated,
			ActorID:       cmd.ActorID,
			Timestamp:     now,
			Data:          fields,
		})
		if err != nil {
			return err
		}

		incident, err = loadEntity(ctx, tx.Incidents(), "incident", inc.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return incident, nil
}

// HandleAddComment appends a comment to an incident report
func (h *IncidentHandler) HandleAddComment(ctx context.Context, cmd AddIncidentCommentCommand) (*models.IncidentComment, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	log.Info().Str("incidentID", cmd.IncidentID).Str("actorID", cmd.ActorID).Msg("Handling AddIncidentComment command")

	var comment *models.IncidentComment
	err := h.mutate(ctx, "incident", "comment", func(ctx context.Context, tx repository.Store) error {
		if err := utils.ValidateStruct(cmd); err != nil {
			return err
		}
		text := strings.TrimSpace(cmd.Comment)
		if text == "" {
			return domain.Validation("comment is required")
		}
		inc, err := loadEntity(ctx, tx.Incidents(), "incident", cmd.IncidentID)
		if err != nil {
			return err
		}

		now := h.now()
		comment = &models.IncidentComment{
			ID:         newID(),
			IncidentID: inc.ID,
			Author:     cmd.ActorID,
			Comment:    text,
			Timestamp:  now,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := tx.IncidentComments().Create(ctx, comment); err != nil {
			return fmt.Errorf("failed to add incident comment: %w", err)
		}

		return recordEvent(ctx, tx, domain.Event{
			AggregateID:   inc.ID,
			AggregateType: domain.AggregateIncident,
			Type:          domain.IncidentCommented,
			ActorID:       cmd.ActorID,
			Timestamp:     now,
			Data:          comment,
		})
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

// HandleDeleteIncident removes an incident report and its comments
func (h *IncidentHandler) HandleDeleteIncident(ctx context.Context, cmd DeleteIncidentCommand) error {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	log.Info().Str("incidentID", cmd.IncidentID).Str("actorID", cmd.ActorID).Msg("Handling DeleteIncident command")

	return h.mutate(ctx, "incident", "delete", func(ctx context.Context, tx repository.Store) error {
		if err := utils.ValidateStruct(cmd); err != nil {
			return err
		}
		inc, err := loadEntity(ctx, tx.Incidents(), "incident", cmd.IncidentID)
		if err != nil {
			return err
		}
		if _, err := tx.IncidentComments().DeleteWhere(ctx, map[string]interface{}{"incident_id": inc.ID}); err != nil {
			return fmt.Errorf("failed to delete incident comments: %w", err)
		}
		if err := tx.Incidents().Delete(ctx, inc.ID); err != nil {
			return fmt.Errorf("failed to delete incident: %w", err)
		}

		return recordEvent(ctx, tx, domain.Event{
			AggregateID:   inc.ID,
			AggregateType: domain.AggregateIncident,
			Type:          domain.IncidentDeleted,
			ActorID:       cmd.ActorID,
			Timestamp:     h.now(),
			Data:          inc,
		})
	})
}

// GetIncident returns one incident
func (h *IncidentHandler) GetIncident(ctx context.Context, id string) (*models.Incident, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	inc, err := loadEntity(ctx, h.store.Incidents(), "incident", id)
	if err != nil {
		return nil, classify(err)
	}
	return inc, nil
}

// ListIncidents returns incidents matching opts, most recent first by default
func (h *IncidentHandler) ListIncidents(ctx context.Context, opts ListOptions) ([]models.Incident, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	q, err := incidentList.query(opts)
	if err != nil {
		return nil, err
	}
	incidents, err := h.store.Incidents().FindMany(ctx, q)
	if err != nil {
		return nil, classify(err)
	}
	return incidents, nil
}

// ListComments returns the comments of an incident, oldest first
func (h *IncidentHandler) ListComments(ctx context.Context, incidentID string) ([]models.IncidentComment, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	if _, err := loadEntity(ctx, h.store.Incidents(), "incident", incidentID); err != nil {
		return nil, classify(err)
	}
	comments, err := h.store.IncidentComments().FindMany(ctx, repository.Query{
		Where:   map[string]interface{}{"incident_id": incidentID},
		OrderBy: "timestamp",
	})
	if err != nil {
		return nil, classify(err)
	}
	return comments, nil
}

// GetSummary counts the incidents dated within [from, to). Either bound may
// be nil.
func (h *IncidentHandler) GetSummary(ctx context.Context, from, to *time.Time) (*IncidentSummary, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	if from != nil && to != nil && !from.Before(*to) {
		return nil, domain.Validation("from must be before to")
	}
	incidents, err := h.store.Incidents().FindMany(ctx, repository.Query{OrderBy: "date"})
	if err != nil {
		return nil, classify(err)
	}

	summary := &IncidentSummary{
		ByType:     map[string]int{},
		BySeverity: map[string]int{},
		ByStatus:   map[string]int{},
		ByVehicle:  []VehicleIncidentCount{},
	}
	perVehicle := map[string]int{}
	for _, inc := range incidents {
		if from != nil && inc.Date.Before(*from) {
			continue
		}
		if to != nil && !inc.Date.Before(*to) {
			continue
		}
		summary.Total++
		summary.ByType[inc.Type]++
		summary.BySeverity[inc.Severity]++
		summary.ByStatus[inc.Status]++
		if inc.VehicleID != nil {
			perVehicle[*inc.VehicleID]++
		}
	}

	for id, n := range perVehicle {
		entry := VehicleIncidentCount{VehicleID: id, Count: n}
		v, err := optional(ctx, h.store.Vehicles(), &id)
		if err != nil {
			return nil, classify(err)
		}
		if v != nil {
			entry.RegistrationNumber = v.RegistrationNumber
		}
		summary.ByVehicle = append(summary.ByVehicle, entry)
	}
	sort.Slice(summary.ByVehicle, func(i, j int) bool {
		a, b := summary.ByVehicle[i], summary.ByVehicle[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.VehicleID < b.VehicleID
	})
	return summary, nil
}
