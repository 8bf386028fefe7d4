package models

import (
	"time"
)

// Customer is a facility that produces medical waste
type Customer struct {
	ID                  string    `gorm:"primaryKey;size:36" json:"id"`
	Name                string    `gorm:"not null" json:"name"`
	ContactPerson       string    `json:"contact_person"`
	Email               *string   `gorm:"uniqueIndex" json:"email"`
	Phone               string    `json:"phone"`
	Whatsapp            string    `json:"whatsapp"`
	Address             string    `json:"address"`
	Status              string    `gorm:"index;default:active" json:"status"`
	SpecialRequirements string    `json:"special_requirements"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Vehicle is a collection truck
type Vehicle struct {
	ID                 string     `gorm:"primaryKey;size:36" json:"id"`
	RegistrationNumber string     `gorm:"uniqueIndex;not null" json:"registration_number"`
	VIN                string     `gorm:"column:vin;uniqueIndex;not null" json:"vin"`
	Make               string     `json:"make"`
	Model              string     `json:"model"`
	Year               int        `json:"year"`
	Status             string     `gorm:"index;default:active" json:"status"`
	Mileage            int        `json:"mileage"`
	FuelType           string     `json:"fuel_type"`
	LastService        *time.Time `json:"last_service"`
	NextServiceDue     *time.Time `json:"next_service_due"`
	InsuranceNumber    string     `json:"insurance_number"`
	InsuranceExpiry    *time.Time `json:"insurance_expiry"`
	AssignedDriverID   *string    `gorm:"size:36;index" json:"assigned_driver_id"`
	Notes              string     `json:"notes"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Driver operates vehicles on delivery runs
type Driver struct {
	ID               string     `gorm:"primaryKey;size:36" json:"id"`
	Name             string     `gorm:"not null" json:"name"`
	Email            *string    `gorm:"uniqueIndex" json:"email"`
	Phone            string     `json:"phone"`
	LicenseNumber    string     `gorm:"uniqueIndex;not null" json:"license_number"`
	LicenseExpiry    *time.Time `json:"license_expiry"`
	LicenseType      string     `json:"license_type"`
	Status           string     `gorm:"index;default:active" json:"status"`
	EmergencyContact string     `json:"emergency_contact"`
	EmergencyPhone   string     `json:"emergency_phone"`
	Notes            string     `json:"notes"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Incident is a reported event involving a vehicle or driver
type Incident struct {
	ID              string     `gorm:"primaryKey;size:36" json:"id"`
	ReportNumber    string     `gorm:"uniqueIndex;not null" json:"report_number"`
	VehicleID       *string    `gorm:"size:36;index" json:"vehicle_id"`
	DriverID        *string    `gorm:"size:36;index" json:"driver_id"`
	Type            string     `json:"type"`
	Date            time.Time  `json:"date"`
	Location        string     `json:"location"`
	Description     string     `json:"description"`
	Severity        string     `json:"severity"`
	Status          string     `gorm:"index" json:"status"`
	PoliceReport    string     `json:"police_report"`
	InsuranceClaim  string     `json:"insurance_claim"`
	Costs           *float64   `json:"costs"`
	ResolutionNotes string     `json:"resolution_notes"`
	ResolvedDate    *time.Time `json:"resolved_date"`
	ReportedBy      string     `gorm:"size:64" json:"reported_by"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// MaintenanceRecord is one service performed on a vehicle
type MaintenanceRecord struct {
	ID              string    `gorm:"primaryKey;size:36" json:"id"`
	VehicleID       string    `gorm:"size:36;index;not null" json:"vehicle_id"`
	Type            string    `json:"type"`
	Date            time.Time `gorm:"index" json:"date"`
	Mileage         int       `json:"mileage"`
	Description     string    `json:"description"`
	Cost            float64   `json:"cost"`
	ProviderName    string    `json:"provider_name"`
	ProviderContact string    `json:"provider_contact"`
	Notes           string    `json:"notes"`
	PerformedBy     string    `gorm:"size:64" json:"performed_by"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (MaintenanceRecord) TableName() string {
	return "maintenance_records"
}

// Location is one site of a customer where deliveries take place
type Location struct {
	ID                 string    `gorm:"primaryKey;size:36" json:"id"`
	CustomerID         string    `gorm:"size:36;index;not null" json:"customer_id"`
	Name               string    `gorm:"not null" json:"name"`
	AddressLine1       string    `gorm:"not null" json:"address_line1"`
	AddressLine2       string    `json:"address_line2"`
	City               string    `gorm:"not null" json:"city"`
	State              string    `json:"state"`
	PostalCode         string    `gorm:"not null" json:"postal_code"`
	Country            string    `json:"country"`
	Latitude           *float64  `json:"latitude"`
	Longitude          *float64  `json:"longitude"`
	ContactPerson      string    `json:"contact_person"`
	ContactPhone       string    `json:"contact_phone"`
	AccessInstructions string    `json:"access_instructions"`
	IsActive           bool      `gorm:"index;not null;default:true" json:"is_active"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// IncidentComment is one note appended to an incident report
type IncidentComment struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	IncidentID string    `gorm:"size:36;index;not null" json:"incident_id"`
	Author     string    `gorm:"size:64" json:"author"`
	Comment    string    `gorm:"not null" json:"comment"`
	Timestamp  time.Time `json:"timestamp"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// VehicleInspection is a pre or post trip check of a vehicle by a driver
type VehicleInspection struct {
	ID              string          `gorm:"primaryKey;size:36" json:"id"`
	VehicleID       string          `gorm:"size:36;index;not null" json:"vehicle_id"`
	DriverID        string          `gorm:"size:36;index;not null" json:"driver_id"`
	InspectionDate  time.Time       `gorm:"index" json:"inspection_date"`
	Type            string          `gorm:"size:16" json:"type"`
	OdometerReading *int            `json:"odometer_reading"`
	FuelLevel       string          `json:"fuel_level"`
	CheckList       map[string]bool `gorm:"serializer:json" json:"check_list"`
	Issues          []string        `gorm:"serializer:json" json:"issues"`
	Notes           string          `json:"notes"`
	Images          []string        `gorm:"serializer:json" json:"images"`
	Status          string          `gorm:"size:16;index" json:"status"`
	Signature       string          `json:"signature"`
	RecordedBy      string          `gorm:"size:64" json:"recorded_by"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
