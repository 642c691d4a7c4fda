package clinical

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrReportNotFound       = errors.New("report not found")
	ErrPrescriptionNotFound = errors.New("prescription not found")

	// ErrReportInUse is returned when deleting a report that prescriptions or
	// an appointment still reference.
	ErrReportInUse = errors.New("report is referenced by other records")
	// ErrPrescriptionInUse is returned when deleting a prescription that has
	// been dispensed against.
	ErrPrescriptionInUse = errors.New("prescription has dispensations")
)

// Report maps to the patient_report table.
type Report struct {
	ID             uuid.UUID `db:"id" json:"id"`
	DoctorID       uuid.UUID `db:"doctor_id" json:"doctor_id"`
	PatientID      uuid.UUID `db:"patient_id" json:"patient_id"`
	ChiefComplaint *string   `db:"chief_complaint" json:"chief_complaint,omitempty"`
	Diagnosis      string    `db:"diagnosis" json:"diagnosis"`
	TreatmentPlan  *string   `db:"treatment_plan" json:"treatment_plan,omitempty"`
	Notes          *string   `db:"notes" json:"notes,omitempty"`
	ReportDate     time.Time `db:"report_date" json:"report_date"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Prescription maps to the prescription table.
type Prescription struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	PatientID      uuid.UUID  `db:"patient_id" json:"patient_id"`
	ReportID       *uuid.UUID `db:"report_id" json:"report_id,omitempty"`
	MedicationName string     `db:"medication_name" json:"medication_name"`
	Dosage         string     `db:"dosage" json:"dosage"`
	Instructions   string     `db:"instructions" json:"instructions"`
	DatePrescribed time.Time  `db:"date_prescribed" json:"date_prescribed"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// PrescriptionDetail is a prescription joined with the patient it belongs to.
type PrescriptionDetail struct {
	Prescription
	PatientName string `json:"patient_name"`
}
