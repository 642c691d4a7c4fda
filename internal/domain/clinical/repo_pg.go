package clinical

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinichq/clinic/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

const pgForeignKeyViolation = "23503"

func isPGError(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// =========== Report Repository ===========

type reportRepoPG struct{ pool *pgxpool.Pool }

func NewReportRepoPG(pool *pgxpool.Pool) ReportRepository {
	return &reportRepoPG{pool: pool}
}

func (r *reportRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const reportCols = `id, doctor_id, patient_id, chief_complaint, diagnosis, treatment_plan,
	notes, report_date, created_at, updated_at`

func scanReport(row pgx.Row) (*Report, error) {
	var rp Report
	err := row.Scan(&rp.ID, &rp.DoctorID, &rp.PatientID, &rp.ChiefComplaint, &rp.Diagnosis,
		&rp.TreatmentPlan, &rp.Notes, &rp.ReportDate, &rp.CreatedAt, &rp.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rp, nil
}

func (r *reportRepoPG) Create(ctx context.Context, rp *Report) error {
	rp.ID = uuid.New()
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient_report (id, doctor_id, patient_id, chief_complaint, diagnosis,
			treatment_plan, notes, report_date)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING report_date, created_at, updated_at`,
		rp.ID, rp.DoctorID, rp.PatientID, rp.ChiefComplaint, rp.Diagnosis,
		rp.TreatmentPlan, rp.Notes, rp.ReportDate)
	if err := row.Scan(&rp.ReportDate, &rp.CreatedAt, &rp.UpdatedAt); err != nil {
		if isPGError(err, pgForeignKeyViolation) {
			return fmt.Errorf("%w: referenced doctor or patient does not exist", ErrInvalidInput)
		}
		return err
	}
	return nil
}

func (r *reportRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Report, error) {
	return scanReport(r.conn(ctx).QueryRow(ctx,
		`SELECT `+reportCols+` FROM patient_report WHERE id = $1`, id))
}

func (r *reportRepoPG) Update(ctx context.Context, rp *Report) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient_report SET chief_complaint=$2, diagnosis=$3, treatment_plan=$4,
			notes=$5, report_date=$6, updated_at=NOW()
		WHERE id = $1`,
		rp.ID, rp.ChiefComplaint, rp.Diagnosis, rp.TreatmentPlan, rp.Notes, rp.ReportDate)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrReportNotFound
	}
	return nil
}

func (r *reportRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patient_report WHERE id = $1`, id)
	if err != nil {
		if isPGError(err, pgForeignKeyViolation) {
			return ErrReportInUse
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrReportNotFound
	}
	return nil
}

func (r *reportRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Report, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM patient_report WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+reportCols+` FROM patient_report WHERE patient_id = $1
		 ORDER BY report_date DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var reports []*Report
	for rows.Next() {
		rp, err := scanReport(rows)
		if err != nil {
			return nil, 0, err
		}
		reports = append(reports, rp)
	}
	return reports, total, rows.Err()
}

// =========== Prescription Repository ===========

type prescriptionRepoPG struct{ pool *pgxpool.Pool }

func NewPrescriptionRepoPG(pool *pgxpool.Pool) PrescriptionRepository {
	return &prescriptionRepoPG{pool: pool}
}

func (r *prescriptionRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const rxCols = `p.id, p.patient_id, p.report_id, p.medication_name, p.dosage, p.instructions,
	p.date_prescribed, p.created_at, p.updated_at, pt.first_name || ' ' || pt.last_name`

const rxJoins = `FROM prescription p JOIN patient pt ON pt.id = p.patient_id`

func scanPrescription(row pgx.Row) (*PrescriptionDetail, error) {
	var p PrescriptionDetail
	err := row.Scan(&p.ID, &p.PatientID, &p.ReportID, &p.MedicationName, &p.Dosage,
		&p.Instructions, &p.DatePrescribed, &p.CreatedAt, &p.UpdatedAt, &p.PatientName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPrescriptionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *prescriptionRepoPG) Create(ctx context.Context, p *Prescription) error {
	p.ID = uuid.New()
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO prescription (id, patient_id, report_id, medication_name, dosage,
			instructions, date_prescribed)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING date_prescribed, created_at, updated_at`,
		p.ID, p.PatientID, p.ReportID, p.MedicationName, p.Dosage,
		p.Instructions, p.DatePrescribed)
	if err := row.Scan(&p.DatePrescribed, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if isPGError(err, pgForeignKeyViolation) {
			return fmt.Errorf("%w: referenced patient or report does not exist", ErrInvalidInput)
		}
		return err
	}
	return nil
}

func (r *prescriptionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*PrescriptionDetail, error) {
	return scanPrescription(r.conn(ctx).QueryRow(ctx,
		`SELECT `+rxCols+` `+rxJoins+` WHERE p.id = $1`, id))
}

func (r *prescriptionRepoPG) Update(ctx context.Context, p *Prescription) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE prescription SET medication_name=$2, dosage=$3, instructions=$4,
			report_id=$5, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.MedicationName, p.Dosage, p.Instructions, p.ReportID)
	if err != nil {
		if isPGError(err, pgForeignKeyViolation) {
			return fmt.Errorf("%w: referenced report does not exist", ErrInvalidInput)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPrescriptionNotFound
	}
	return nil
}

func (r *prescriptionRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM prescription WHERE id = $1`, id)
	if err != nil {
		if isPGError(err, pgForeignKeyViolation) {
			return ErrPrescriptionInUse
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPrescriptionNotFound
	}
	return nil
}

func (r *prescriptionRepoPG) List(ctx context.Context, patientID *uuid.UUID, limit, offset int) ([]*PrescriptionDetail, int, error) {
	where := ``
	args := []interface{}{}
	if patientID != nil {
		args = append(args, *patientID)
		where = ` WHERE p.patient_id = $1`
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM prescription p`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		fmt.Sprintf(`SELECT %s %s%s ORDER BY p.date_prescribed DESC LIMIT $%d OFFSET $%d`,
			rxCols, rxJoins, where, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*PrescriptionDetail
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}
