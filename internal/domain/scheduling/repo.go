package scheduling

import (
	"context"

	"github.com/google/uuid"
)

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error)
	Update(ctx context.Context, a *Appointment) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter Filter, limit, offset int) ([]*AppointmentDetail, int, error)
}

// DoctorResolver maps a verified token subject to the doctor record it
// belongs to, for the my-appointments view.
type DoctorResolver interface {
	ResolveDoctorID(ctx context.Context, authProviderID string) (uuid.UUID, error)
}
