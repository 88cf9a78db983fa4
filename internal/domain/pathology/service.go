package pathology

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pathlab/pathreview/internal/platform/db"
	"github.com/pathlab/pathreview/internal/platform/lock"
)

// maxEnsureAttempts bounds the lookup/insert loop in EnsurePatient when a
// concurrent request creates the same patient first.
const maxEnsureAttempts = 3

type Service struct {
	patients PatientRepository
	reports  ReportRepository
	tx       db.Transactor
	locker   lock.Locker
	now      func() time.Time
}

func NewService(patients PatientRepository, reports ReportRepository, tx db.Transactor) *Service {
	return &Service{
		patients: patients,
		reports:  reports,
		tx:       tx,
		locker:   lock.NoopLocker{},
		now:      time.Now,
	}
}

// SetLocker serializes patient creation per external id across instances.
func (s *Service) SetLocker(l lock.Locker) {
	if l == nil {
		l = lock.NoopLocker{}
	}
	s.locker = l
}

// -- Patients --

// EnsurePatient returns the patient with d.PatientID, creating it when
// absent. existed is true when no row was written by this call.
func (s *Service) EnsurePatient(ctx context.Context, d PatientDetails) (*Patient, bool, error) {
	externalID := strings.TrimSpace(d.PatientID)
	if externalID == "" {
		return nil, false, fmt.Errorf("%w: patientId is required", ErrValidation)
	}

	release, err := s.locker.Lock(ctx, "patient:"+externalID)
	if err != nil {
		return nil, false, fmt.Errorf("locking patient %s: %w", externalID, err)
	}
	defer release()

	for attempt := 0; attempt < maxEnsureAttempts; attempt++ {
		existing, err := s.patients.GetByPatientID(ctx, externalID)
		if err == nil {
			return existing, true, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, false, fmt.Errorf("looking up patient %s: %w", externalID, err)
		}

		p := &Patient{
			PatientID:   externalID,
			Name:        strings.TrimSpace(d.Name),
			Gender:      d.Gender,
			DateOfBirth: d.DateOfBirth,
			Reports:     []uuid.UUID{},
		}
		if p.Name == "" {
			p.Name = UnknownValue
		}

		err = s.patients.Create(ctx, p)
		if err == nil {
			return p, false, nil
		}
		if !errors.Is(err, ErrDuplicatePatient) {
			return nil, false, fmt.Errorf("creating patient %s: %w", externalID, err)
		}
		// Another request inserted the same id first; read the winner.
	}
	return nil, false, fmt.Errorf("creating patient %s: %w", externalID, ErrDuplicatePatient)
}

func (s *Service) FindPatient(ctx context.Context, externalID string) (*Patient, error) {
	if strings.TrimSpace(externalID) == "" {
		return nil, fmt.Errorf("%w: patientId is required", ErrValidation)
	}
	p, err := s.patients.GetByPatientID(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("patient %s: %w", externalID, err)
	}
	return p, nil
}

// -- Reports --

// CreateReportForPatient stores a report and appends it to the patient's
// report list in one transaction.
func (s *Service) CreateReportForPatient(ctx context.Context, opts CreateReportOptions) (*Report, error) {
	patientID := opts.Patient.Resolve()
	if patientID == uuid.Nil {
		return nil, fmt.Errorf("%w: patient is required", ErrValidation)
	}
	uploadedBy := strings.TrimSpace(opts.UploadedBy.ID)
	if uploadedBy == "" {
		return nil, fmt.Errorf("%w: uploadedBy is required", ErrValidation)
	}
	if strings.TrimSpace(opts.OriginalReportURL) == "" {
		return nil, fmt.Errorf("%w: originalReportUrl is required", ErrValidation)
	}
	status := opts.Status
	if status == "" {
		status = StatusInProgress
	}
	if !validStatuses[status] {
		return nil, fmt.Errorf("%w: invalid status %q", ErrValidation, status)
	}

	r := &Report{
		PatientID:          patientID,
		UploadedBy:         uploadedBy,
		OriginalReportURL:  opts.OriginalReportURL,
		OCRText:            opts.OCRText,
		LLMGeneratedReport: opts.LLMGeneratedReport,
		NormalizedScore:    opts.NormalizedScore,
		Status:             status,
	}
	if opts.UploadedBy.Name != "" {
		name := opts.UploadedBy.Name
		r.UploadedByName = &name
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.patients.GetByID(ctx, patientID); err != nil {
			return fmt.Errorf("patient %s: %w", patientID, err)
		}
		if err := s.reports.Create(ctx, r); err != nil {
			return fmt.Errorf("creating report: %w", err)
		}
		if err := s.patients.AppendReport(ctx, patientID, r.ID); err != nil {
			return fmt.Errorf("linking report to patient: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ListReports returns the review list, highest score first. Reports without
// a score rank as 0; ties keep upload order.
func (s *Service) ListReports(ctx context.Context) ([]ReportSummary, error) {
	details, err := s.reports.ListDetails(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}

	out := make([]ReportSummary, 0, len(details))
	for _, d := range details {
		out = append(out, d.Summarize())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

func (s *Service) GetReport(ctx context.Context, id uuid.UUID) (*ReportDetail, error) {
	d, err := s.reports.GetDetail(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("report %s: %w", id, err)
	}
	return d, nil
}

// VerifyReport records a doctor's review, overwriting any previous one, and
// marks the report Completed.
func (s *Service) VerifyReport(ctx context.Context, id uuid.UUID, in VerifyInput, verifier string) (*Report, error) {
	r, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("report %s: %w", id, err)
	}

	now := s.now().UTC()
	v := DoctorVerification{
		IsVerified:       true,
		DoctorComments:   in.DoctorComments,
		DoctorScore:      in.DoctorScore,
		VerificationDate: &now,
	}
	if verifier != "" {
		v.VerifiedBy = &verifier
	}

	if err := s.reports.UpdateVerification(ctx, id, v, StatusCompleted); err != nil {
		return nil, fmt.Errorf("verifying report %s: %w", id, err)
	}
	r.DoctorVerification = v
	r.Status = StatusCompleted
	return r, nil
}

// ListPatientReports returns one patient's reports in upload order.
func (s *Service) ListPatientReports(ctx context.Context, externalID string) ([]*Report, error) {
	p, err := s.FindPatient(ctx, externalID)
	if err != nil {
		return nil, err
	}
	reports, err := s.reports.ListByPatient(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("listing reports for patient %s: %w", externalID, err)
	}
	if reports == nil {
		reports = []*Report{}
	}
	return reports, nil
}
