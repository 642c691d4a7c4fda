package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type Service struct {
	patients PatientRepository
	doctors  DoctorRepository
}

func NewService(patients PatientRepository, doctors DoctorRepository) *Service {
	return &Service{patients: patients, doctors: doctors}
}

// -- Patients --

var validGenders = map[string]bool{
	"MALE": true, "FEMALE": true, "OTHER": true, "UNKNOWN": true,
}

func validatePatient(p *Patient) error {
	if p.FirstName == "" {
		return fmt.Errorf("%w: first_name is required", ErrInvalidInput)
	}
	if p.LastName == "" {
		return fmt.Errorf("%w: last_name is required", ErrInvalidInput)
	}
	if p.DateOfBirth.IsZero() {
		return fmt.Errorf("%w: date_of_birth is required", ErrInvalidInput)
	}
	if p.Gender == "" {
		p.Gender = "UNKNOWN"
	}
	p.Gender = strings.ToUpper(p.Gender)
	if !validGenders[p.Gender] {
		return fmt.Errorf("%w: invalid gender %q", ErrInvalidInput, p.Gender)
	}
	if p.MedicalRecordID != nil && len(*p.MedicalRecordID) > 20 {
		return fmt.Errorf("%w: medical_record_id exceeds 20 characters", ErrInvalidInput)
	}
	return nil
}

func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	if err := validatePatient(p); err != nil {
		return err
	}
	return s.patients.Create(ctx, p)
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

// GetPatientDetail returns the patient with their report history.
func (s *Service) GetPatientDetail(ctx context.Context, id uuid.UUID) (*PatientDetail, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	reports, err := s.patients.ListReportSummaries(ctx, id)
	if err != nil {
		return nil, err
	}
	if reports == nil {
		reports = []*ReportSummary{}
	}
	return &PatientDetail{Patient: *p, Reports: reports}, nil
}

func (s *Service) UpdatePatient(ctx context.Context, p *Patient) error {
	if err := validatePatient(p); err != nil {
		return err
	}
	return s.patients.Update(ctx, p)
}

func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) error {
	return s.patients.Delete(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, limit, offset)
}

// -- Doctors --

func validateDoctor(d *Doctor) error {
	if d.AuthProviderID == "" {
		return fmt.Errorf("%w: auth_provider_id is required", ErrInvalidInput)
	}
	if d.Email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if !strings.Contains(d.Email, "@") {
		return fmt.Errorf("%w: invalid email %q", ErrInvalidInput, d.Email)
	}
	if d.FirstName == "" {
		return fmt.Errorf("%w: first_name is required", ErrInvalidInput)
	}
	if d.LastName == "" {
		return fmt.Errorf("%w: last_name is required", ErrInvalidInput)
	}
	return nil
}

func (s *Service) CreateDoctor(ctx context.Context, d *Doctor) error {
	if err := validateDoctor(d); err != nil {
		return err
	}
	return s.doctors.Create(ctx, d)
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.doctors.GetByID(ctx, id)
}

// GetDoctorByAuthProviderID resolves the doctor record for a verified token
// subject.
func (s *Service) GetDoctorByAuthProviderID(ctx context.Context, authProviderID string) (*Doctor, error) {
	if authProviderID == "" {
		return nil, fmt.Errorf("%w: auth_provider_id is required", ErrInvalidInput)
	}
	return s.doctors.GetByAuthProviderID(ctx, authProviderID)
}

func (s *Service) UpdateDoctor(ctx context.Context, d *Doctor) error {
	if d.Email != "" && !strings.Contains(d.Email, "@") {
		return fmt.Errorf("%w: invalid email %q", ErrInvalidInput, d.Email)
	}
	return s.doctors.Update(ctx, d)
}

func (s *Service) DeleteDoctor(ctx context.Context, id uuid.UUID) error {
	return s.doctors.Delete(ctx, id)
}

func (s *Service) ListDoctors(ctx context.Context, limit, offset int) ([]*Doctor, int, error) {
	return s.doctors.List(ctx, limit, offset)
}
