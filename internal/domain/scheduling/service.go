package scheduling

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

var validStatuses = map[string]bool{
	StatusScheduled: true, StatusCompleted: true, StatusCancelled: true, StatusNoShow: true,
}

type Service struct {
	appointments AppointmentRepository
	doctors      DoctorResolver
}

func NewService(appointments AppointmentRepository, doctors DoctorResolver) *Service {
	return &Service{appointments: appointments, doctors: doctors}
}

func validateAppointment(a *Appointment) error {
	if a.DoctorID == uuid.Nil {
		return fmt.Errorf("%w: doctor_id is required", ErrInvalidInput)
	}
	if a.PatientID == uuid.Nil {
		return fmt.Errorf("%w: patient_id is required", ErrInvalidInput)
	}
	if a.StartTime.IsZero() || a.EndTime.IsZero() {
		return fmt.Errorf("%w: start_time and end_time are required", ErrInvalidInput)
	}
	if !a.StartTime.Before(a.EndTime) {
		return fmt.Errorf("%w: start_time must be before end_time", ErrInvalidInput)
	}
	if a.Status == "" {
		a.Status = StatusScheduled
	}
	if !validStatuses[a.Status] {
		return fmt.Errorf("%w: invalid status %q", ErrInvalidInput, a.Status)
	}
	return nil
}

func (s *Service) CreateAppointment(ctx context.Context, a *Appointment) error {
	if err := validateAppointment(a); err != nil {
		return err
	}
	return s.appointments.Create(ctx, a)
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	return s.appointments.GetByID(ctx, id)
}

func (s *Service) UpdateAppointment(ctx context.Context, a *Appointment) error {
	if err := validateAppointment(a); err != nil {
		return err
	}
	return s.appointments.Update(ctx, a)
}

func (s *Service) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	return s.appointments.Delete(ctx, id)
}

func (s *Service) ListAppointments(ctx context.Context, filter Filter, limit, offset int) ([]*AppointmentDetail, int, error) {
	if filter.Status != nil && !validStatuses[*filter.Status] {
		return nil, 0, fmt.Errorf("%w: invalid status %q", ErrInvalidInput, *filter.Status)
	}
	return s.appointments.List(ctx, filter, limit, offset)
}

// ListMyAppointments resolves the calling doctor from the verified token
// subject and lists their appointments.
func (s *Service) ListMyAppointments(ctx context.Context, authProviderID string, limit, offset int) ([]*AppointmentDetail, int, error) {
	if authProviderID == "" {
		return nil, 0, fmt.Errorf("%w: acting user is required", ErrInvalidInput)
	}
	doctorID, err := s.doctors.ResolveDoctorID(ctx, authProviderID)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: no doctor record for caller", ErrInvalidInput)
	}
	return s.appointments.List(ctx, Filter{DoctorID: &doctorID}, limit, offset)
}
