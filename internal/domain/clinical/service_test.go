package clinical

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

// -- Mock Repositories --

type mockReportRepo struct {
	reports map[uuid.UUID]*Report
}

func newMockReportRepo() *mockReportRepo {
	return &mockReportRepo{reports: make(map[uuid.UUID]*Report)}
}

func (m *mockReportRepo) Create(_ context.Context, r *Report) error {
	r.ID = uuid.New()
	r.CreatedAt = time.Now()
	r.UpdatedAt = r.CreatedAt
	m.reports[r.ID] = r
	return nil
}

func (m *mockReportRepo) GetByID(_ context.Context, id uuid.UUID) (*Report, error) {
	r, ok := m.reports[id]
	if !ok {
		return nil, ErrReportNotFound
	}
	return r, nil
}

func (m *mockReportRepo) Update(_ context.Context, r *Report) error {
	if _, ok := m.reports[r.ID]; !ok {
		return ErrReportNotFound
	}
	m.reports[r.ID] = r
	return nil
}

func (m *mockReportRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.reports[id]; !ok {
		return ErrReportNotFound
	}
	delete(m.reports, id)
	return nil
}

func (m *mockReportRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Report, int, error) {
	var result []*Report
	for _, r := range m.reports {
		if r.PatientID == patientID {
			result = append(result, r)
		}
	}
	total := len(result)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return result[offset:end], total, nil
}

type mockPrescriptionRepo struct {
	prescriptions map[uuid.UUID]*Prescription
	dispensed     map[uuid.UUID]bool
}

func newMockPrescriptionRepo() *mockPrescriptionRepo {
	return &mockPrescriptionRepo{
		prescriptions: make(map[uuid.UUID]*Prescription),
		dispensed:     make(map[uuid.UUID]bool),
	}
}

func (m *mockPrescriptionRepo) Create(_ context.Context, p *Prescription) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	m.prescriptions[p.ID] = p
	return nil
}

func (m *mockPrescriptionRepo) GetByID(_ context.Context, id uuid.UUID) (*PrescriptionDetail, error) {
	p, ok := m.prescriptions[id]
	if !ok {
		return nil, ErrPrescriptionNotFound
	}
	return &PrescriptionDetail{Prescription: *p, PatientName: "Ada Okafor"}, nil
}

func (m *mockPrescriptionRepo) Update(_ context.Context, p *Prescription) error {
	if _, ok := m.prescriptions[p.ID]; !ok {
		return ErrPrescriptionNotFound
	}
	m.prescriptions[p.ID] = p
	return nil
}

func (m *mockPrescriptionRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.prescriptions[id]; !ok {
		return ErrPrescriptionNotFound
	}
	if m.dispensed[id] {
		return ErrPrescriptionInUse
	}
	delete(m.prescriptions, id)
	return nil
}

func (m *mockPrescriptionRepo) List(_ context.Context, patientID *uuid.UUID, limit, offset int) ([]*PrescriptionDetail, int, error) {
	var result []*PrescriptionDetail
	for _, p := range m.prescriptions {
		if patientID != nil && p.PatientID != *patientID {
			continue
		}
		result = append(result, &PrescriptionDetail{Prescription: *p, PatientName: "Ada Okafor"})
	}
	total := len(result)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return result[offset:end], total, nil
}

func newTestService() (*Service, *mockReportRepo, *mockPrescriptionRepo) {
	reports := newMockReportRepo()
	prescriptions := newMockPrescriptionRepo()
	return NewService(reports, prescriptions), reports, prescriptions
}

// -- Report tests --

func validReport() *Report {
	return &Report{
		DoctorID:  uuid.New(),
		PatientID: uuid.New(),
		Diagnosis: "Acute bronchitis",
	}
}

func TestCreateReport_DefaultsReportDate(t *testing.T) {
	svc, _, _ := newTestService()
	r := validReport()
	if err := svc.CreateReport(context.Background(), r); err != nil {
		t.Fatalf("create: %v", err)
	}
	if r.ReportDate.IsZero() {
		t.Error("report_date should default to now")
	}
}

func TestCreateReport_Validation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*Report)
	}{
		{"missing doctor", func(r *Report) { r.DoctorID = uuid.Nil }},
		{"missing patient", func(r *Report) { r.PatientID = uuid.Nil }},
		{"missing diagnosis", func(r *Report) { r.Diagnosis = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := validReport()
			tc.mutate(r)
			if err := svc.CreateReport(ctx, r); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestUpdateReport_PreservesAuthorship(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	r := validReport()
	if err := svc.CreateReport(ctx, r); err != nil {
		t.Fatalf("create: %v", err)
	}
	originalDoctor := r.DoctorID
	originalPatient := r.PatientID

	update := &Report{ID: r.ID, DoctorID: uuid.New(), PatientID: uuid.New(), Diagnosis: "Revised"}
	if err := svc.UpdateReport(ctx, update); err != nil {
		t.Fatalf("update: %v", err)
	}
	if update.DoctorID != originalDoctor || update.PatientID != originalPatient {
		t.Error("update must not reassign doctor or patient")
	}
}

func TestListReportsByPatient(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	patientID := uuid.New()
	r1 := validReport()
	r1.PatientID = patientID
	if err := svc.CreateReport(ctx, r1); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.CreateReport(ctx, validReport()); err != nil {
		t.Fatalf("create other: %v", err)
	}

	reports, total, err := svc.ListReportsByPatient(ctx, patientID, 20, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || reports[0].ID != r1.ID {
		t.Errorf("list = %+v (total %d)", reports, total)
	}
}

// -- Prescription tests --

func validPrescription() *Prescription {
	return &Prescription{
		PatientID:      uuid.New(),
		MedicationName: "Amoxicillin",
		Dosage:         "500mg",
		Instructions:   "Twice daily after meals",
	}
}

func TestCreatePrescription_DefaultsDatePrescribed(t *testing.T) {
	svc, _, _ := newTestService()
	p := validPrescription()
	if err := svc.CreatePrescription(context.Background(), p); err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.DatePrescribed.IsZero() {
		t.Error("date_prescribed should default to now")
	}
}

func TestCreatePrescription_Validation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*Prescription)
	}{
		{"missing patient", func(p *Prescription) { p.PatientID = uuid.Nil }},
		{"missing medication", func(p *Prescription) { p.MedicationName = "" }},
		{"missing dosage", func(p *Prescription) { p.Dosage = "" }},
		{"missing instructions", func(p *Prescription) { p.Instructions = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := validPrescription()
			tc.mutate(p)
			if err := svc.CreatePrescription(ctx, p); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestDeletePrescription_WithDispensations(t *testing.T) {
	svc, _, prescriptions := newTestService()
	ctx := context.Background()

	p := validPrescription()
	if err := svc.CreatePrescription(ctx, p); err != nil {
		t.Fatalf("create: %v", err)
	}
	prescriptions.dispensed[p.ID] = true

	if err := svc.DeletePrescription(ctx, p.ID); !errors.Is(err, ErrPrescriptionInUse) {
		t.Fatalf("expected ErrPrescriptionInUse, got %v", err)
	}
}

func TestListPrescriptions_PatientFilter(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	patientID := uuid.New()
	p1 := validPrescription()
	p1.PatientID = patientID
	if err := svc.CreatePrescription(ctx, p1); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.CreatePrescription(ctx, validPrescription()); err != nil {
		t.Fatalf("create other: %v", err)
	}

	items, total, err := svc.ListPrescriptions(ctx, &patientID, 20, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || items[0].PatientID != patientID {
		t.Errorf("filtered list = %+v (total %d)", items, total)
	}
}
