package pathology

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pathlab/pathreview/internal/platform/db"
)

const patientPatientIDConstraint = "patient_patient_id_key"

// =========== Patient Repository ===========

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const patientCols = `id, patient_id, name, gender, date_of_birth, reports, created_at, updated_at`

func (r *patientRepoPG) scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.PatientID, &p.Name, &p.Gender, &p.DateOfBirth, &p.Reports, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	if p.Reports == nil {
		p.Reports = []uuid.UUID{}
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient (id, patient_id, name, gender, date_of_birth, reports)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		p.ID, p.PatientID, p.Name, p.Gender, p.DateOfBirth, p.Reports,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if db.IsUniqueViolation(err, patientPatientIDConstraint) {
		return fmt.Errorf("%w: %s", ErrDuplicatePatient, p.PatientID)
	}
	return err
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return r.scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
}

func (r *patientRepoPG) GetByPatientID(ctx context.Context, patientID string) (*Patient, error) {
	return r.scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE patient_id = $1`, patientID))
}

func (r *patientRepoPG) AppendReport(ctx context.Context, id uuid.UUID, reportID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient SET reports = array_append(reports, $2), updated_at = NOW()
		WHERE id = $1 AND NOT ($2 = ANY(reports))`,
		id, reportID)
	return err
}

// =========== Report Repository ===========

type reportRepoPG struct{ pool *pgxpool.Pool }

func NewReportRepoPG(pool *pgxpool.Pool) ReportRepository {
	return &reportRepoPG{pool: pool}
}

func (r *reportRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const reportCols = `r.id, r.patient_id, r.uploaded_by, r.uploaded_by_name, r.original_report_url,
	r.ocr_text, r.llm_generated_report, r.normalized_score, r.status,
	r.is_verified, r.verified_by, r.doctor_comments, r.doctor_score, r.verification_date,
	r.created_at, r.updated_at`

const detailCols = reportCols + `, p.id, p.patient_id, p.name, p.gender, p.date_of_birth`

func reportDest(rp *Report) []interface{} {
	return []interface{}{&rp.ID, &rp.PatientID, &rp.UploadedBy, &rp.UploadedByName, &rp.OriginalReportURL,
		&rp.OCRText, &rp.LLMGeneratedReport, &rp.NormalizedScore, &rp.Status,
		&rp.DoctorVerification.IsVerified, &rp.DoctorVerification.VerifiedBy,
		&rp.DoctorVerification.DoctorComments, &rp.DoctorVerification.DoctorScore,
		&rp.DoctorVerification.VerificationDate,
		&rp.CreatedAt, &rp.UpdatedAt}
}

func (r *reportRepoPG) scanReport(row pgx.Row) (*Report, error) {
	var rp Report
	err := row.Scan(reportDest(&rp)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rp, nil
}

func (r *reportRepoPG) scanDetail(row pgx.Row) (*ReportDetail, error) {
	var d ReportDetail
	var (
		pid       *uuid.UUID
		extID     *string
		name      *string
		gender    *string
		birthDate *time.Time
	)
	dest := append(reportDest(&d.Report), &pid, &extID, &name, &gender, &birthDate)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if pid != nil {
		d.Patient = &PatientInfo{ID: *pid, Gender: gender, DateOfBirth: birthDate}
		if extID != nil {
			d.Patient.PatientID = *extID
		}
		if name != nil {
			d.Patient.Name = *name
		}
	}

	d.Uploader = UploaderInfo{ID: d.UploadedBy, Username: d.UploadedBy}
	if d.UploadedByName != nil && *d.UploadedByName != "" {
		d.Uploader.Username = *d.UploadedByName
	}
	return &d, nil
}

func (r *reportRepoPG) Create(ctx context.Context, rp *Report) error {
	rp.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO report (id, patient_id, uploaded_by, uploaded_by_name, original_report_url,
			ocr_text, llm_generated_report, normalized_score, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`,
		rp.ID, rp.PatientID, rp.UploadedBy, rp.UploadedByName, rp.OriginalReportURL,
		rp.OCRText, rp.LLMGeneratedReport, rp.NormalizedScore, rp.Status,
	).Scan(&rp.CreatedAt, &rp.UpdatedAt)
}

func (r *reportRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Report, error) {
	return r.scanReport(r.conn(ctx).QueryRow(ctx, `SELECT `+reportCols+` FROM report r WHERE r.id = $1`, id))
}

func (r *reportRepoPG) GetDetail(ctx context.Context, id uuid.UUID) (*ReportDetail, error) {
	return r.scanDetail(r.conn(ctx).QueryRow(ctx, `
		SELECT `+detailCols+`
		FROM report r LEFT JOIN patient p ON p.id = r.patient_id
		WHERE r.id = $1`, id))
}

func (r *reportRepoPG) ListDetails(ctx context.Context) ([]*ReportDetail, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+detailCols+`
		FROM report r LEFT JOIN patient p ON p.id = r.patient_id
		ORDER BY COALESCE(r.normalized_score, 0) DESC, r.created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*ReportDetail
	for rows.Next() {
		d, err := r.scanDetail(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

func (r *reportRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Report, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+reportCols+` FROM report r WHERE r.patient_id = $1 ORDER BY r.created_at ASC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Report
	for rows.Next() {
		rp, err := r.scanReport(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rp)
	}
	return items, rows.Err()
}

func (r *reportRepoPG) UpdateVerification(ctx context.Context, id uuid.UUID, v DoctorVerification, status string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE report SET is_verified = $2, verified_by = $3, doctor_comments = $4,
			doctor_score = $5, verification_date = $6, status = $7, updated_at = NOW()
		WHERE id = $1`,
		id, v.IsVerified, v.VerifiedBy, v.DoctorComments, v.DoctorScore, v.VerificationDate, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
