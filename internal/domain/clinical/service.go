package clinical

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	reports       ReportRepository
	prescriptions PrescriptionRepository
}

func NewService(reports ReportRepository, prescriptions PrescriptionRepository) *Service {
	return &Service{reports: reports, prescriptions: prescriptions}
}

// -- Reports --

func validateReport(r *Report) error {
	if r.DoctorID == uuid.Nil {
		return fmt.Errorf("%w: doctor_id is required", ErrInvalidInput)
	}
	if r.PatientID == uuid.Nil {
		return fmt.Errorf("%w: patient_id is required", ErrInvalidInput)
	}
	if r.Diagnosis == "" {
		return fmt.Errorf("%w: diagnosis is required", ErrInvalidInput)
	}
	return nil
}

func (s *Service) CreateReport(ctx context.Context, r *Report) error {
	if err := validateReport(r); err != nil {
		return err
	}
	if r.ReportDate.IsZero() {
		r.ReportDate = time.Now()
	}
	return s.reports.Create(ctx, r)
}

func (s *Service) GetReport(ctx context.Context, id uuid.UUID) (*Report, error) {
	return s.reports.GetByID(ctx, id)
}

func (s *Service) UpdateReport(ctx context.Context, r *Report) error {
	if r.Diagnosis == "" {
		return fmt.Errorf("%w: diagnosis is required", ErrInvalidInput)
	}
	existing, err := s.reports.GetByID(ctx, r.ID)
	if err != nil {
		return err
	}
	// Authorship is fixed at creation.
	r.DoctorID = existing.DoctorID
	r.PatientID = existing.PatientID
	if r.ReportDate.IsZero() {
		r.ReportDate = existing.ReportDate
	}
	return s.reports.Update(ctx, r)
}

func (s *Service) DeleteReport(ctx context.Context, id uuid.UUID) error {
	return s.reports.Delete(ctx, id)
}

func (s *Service) ListReportsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Report, int, error) {
	return s.reports.ListByPatient(ctx, patientID, limit, offset)
}

// -- Prescriptions --

func validatePrescription(p *Prescription) error {
	if p.PatientID == uuid.Nil {
		return fmt.Errorf("%w: patient_id is required", ErrInvalidInput)
	}
	if p.MedicationName == "" {
		return fmt.Errorf("%w: medication_name is required", ErrInvalidInput)
	}
	if p.Dosage == "" {
		return fmt.Errorf("%w: dosage is required", ErrInvalidInput)
	}
	if p.Instructions == "" {
		return fmt.Errorf("%w: instructions is required", ErrInvalidInput)
	}
	return nil
}

func (s *Service) CreatePrescription(ctx context.Context, p *Prescription) error {
	if err := validatePrescription(p); err != nil {
		return err
	}
	if p.DatePrescribed.IsZero() {
		p.DatePrescribed = time.Now()
	}
	return s.prescriptions.Create(ctx, p)
}

func (s *Service) GetPrescription(ctx context.Context, id uuid.UUID) (*PrescriptionDetail, error) {
	return s.prescriptions.GetByID(ctx, id)
}

func (s *Service) UpdatePrescription(ctx context.Context, p *Prescription) error {
	if p.MedicationName == "" || p.Dosage == "" || p.Instructions == "" {
		return fmt.Errorf("%w: medication_name, dosage and instructions are required", ErrInvalidInput)
	}
	return s.prescriptions.Update(ctx, p)
}

func (s *Service) DeletePrescription(ctx context.Context, id uuid.UUID) error {
	return s.prescriptions.Delete(ctx, id)
}

func (s *Service) ListPrescriptions(ctx context.Context, patientID *uuid.UUID, limit, offset int) ([]*PrescriptionDetail, int, error) {
	return s.prescriptions.List(ctx, patientID, limit, offset)
}
