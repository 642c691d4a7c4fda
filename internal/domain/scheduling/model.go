package scheduling

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrAppointmentNotFound = errors.New("appointment not found")
	// ErrReportAlreadyLinked covers the unique report_id constraint: a report
	// documents at most one appointment.
	ErrReportAlreadyLinked = errors.New("report is already linked to an appointment")
)

// Appointment statuses.
const (
	StatusScheduled = "SCHEDULED"
	StatusCompleted = "COMPLETED"
	StatusCancelled = "CANCELLED"
	StatusNoShow    = "NO_SHOW"
)

// Appointment maps to the appointment table.
type Appointment struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	DoctorID  uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	PatientID uuid.UUID  `db:"patient_id" json:"patient_id"`
	StartTime time.Time  `db:"start_time" json:"start_time"`
	EndTime   time.Time  `db:"end_time" json:"end_time"`
	Reason    *string    `db:"reason" json:"reason,omitempty"`
	Status    string     `db:"status" json:"status"`
	ReportID  *uuid.UUID `db:"report_id" json:"report_id,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// AppointmentDetail is an appointment joined with doctor and patient names
// for listings.
type AppointmentDetail struct {
	Appointment
	DoctorName  string `json:"doctor_name"`
	PatientName string `json:"patient_name"`
}

// Filter narrows appointment listings.
type Filter struct {
	DoctorID  *uuid.UUID
	PatientID *uuid.UUID
	Status    *string
}
