package pathology

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	ErrDuplicatePatient = errors.New("patient id already exists")
)

// PatientRepository returns ErrNotFound for missing rows and
// ErrDuplicatePatient when Create collides on the external patient id.
type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByPatientID(ctx context.Context, patientID string) (*Patient, error)
	// AppendReport adds reportID to the patient's report list once.
	AppendReport(ctx context.Context, id uuid.UUID, reportID uuid.UUID) error
}

type ReportRepository interface {
	Create(ctx context.Context, r *Report) error
	GetByID(ctx context.Context, id uuid.UUID) (*Report, error)
	GetDetail(ctx context.Context, id uuid.UUID) (*ReportDetail, error)
	// ListDetails returns every report ordered by score, highest first,
	// with a missing score ranked as 0.
	ListDetails(ctx context.Context) ([]*ReportDetail, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Report, error)
	UpdateVerification(ctx context.Context, id uuid.UUID, v DoctorVerification, status string) error
}
