package identity

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrPatientNotFound = errors.New("patient not found")
	ErrDoctorNotFound  = errors.New("doctor not found")

	// ErrDuplicatePatient covers the unique medical_record_id constraint.
	ErrDuplicatePatient = errors.New("medical record id already in use")
	// ErrDuplicateDoctor covers the unique auth_provider_id and email constraints.
	ErrDuplicateDoctor = errors.New("doctor with this identity or email already exists")

	ErrPatientInUse = errors.New("patient is referenced by clinical records")
	ErrDoctorInUse  = errors.New("doctor is referenced by clinical records")
)

// Patient maps to the patient table.
type Patient struct {
	ID              uuid.UUID `db:"id" json:"id"`
	FirstName       string    `db:"first_name" json:"first_name"`
	LastName        string    `db:"last_name" json:"last_name"`
	DateOfBirth     time.Time `db:"date_of_birth" json:"date_of_birth"`
	Gender          string    `db:"gender" json:"gender"`
	Phone           *string   `db:"phone" json:"phone,omitempty"`
	Email           *string   `db:"email" json:"email,omitempty"`
	Address         *string   `db:"address" json:"address,omitempty"`
	MedicalRecordID *string   `db:"medical_record_id" json:"medical_record_id,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Doctor maps to the doctor table. AuthProviderID is the subject the external
// identity provider issues for the doctor's account.
type Doctor struct {
	ID             uuid.UUID `db:"id" json:"id"`
	AuthProviderID string    `db:"auth_provider_id" json:"auth_provider_id"`
	Email          string    `db:"email" json:"email"`
	FirstName      string    `db:"first_name" json:"first_name"`
	LastName       string    `db:"last_name" json:"last_name"`
	Specialty      *string   `db:"specialty" json:"specialty,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// ReportSummary is the slice of a patient's report history returned with the
// patient detail view.
type ReportSummary struct {
	ID         uuid.UUID `db:"id" json:"id"`
	Diagnosis  string    `db:"diagnosis" json:"diagnosis"`
	ReportDate time.Time `db:"report_date" json:"report_date"`
	DoctorName string    `db:"doctor_name" json:"doctor_name"`
}

// PatientDetail is a patient plus their report history.
type PatientDetail struct {
	Patient
	Reports []*ReportSummary `json:"reports"`
}
