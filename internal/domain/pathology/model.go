package pathology

import (
	"time"

	"github.com/google/uuid"
)

// Report status values. A report only ever moves towards Completed.
const (
	StatusPending    = "Pending"
	StatusInProgress = "In Progress"
	StatusCompleted  = "Completed"
)

const (
	// SystemUploader is recorded as the uploader when no user is attached
	// to the request.
	SystemUploader = "system"
	UnknownValue   = "Unknown"
)

var validStatuses = map[string]bool{
	StatusPending:    true,
	StatusInProgress: true,
	StatusCompleted:  true,
}

// Patient maps to the patient table. PatientID is the external identifier
// printed on reports; ID is the system identity.
type Patient struct {
	ID          uuid.UUID   `db:"id" json:"id"`
	PatientID   string      `db:"patient_id" json:"patientId"`
	Name        string      `db:"name" json:"name"`
	Gender      *string     `db:"gender" json:"gender,omitempty"`
	DateOfBirth *time.Time  `db:"date_of_birth" json:"dateOfBirth,omitempty"`
	Reports     []uuid.UUID `db:"reports" json:"reports"`
	CreatedAt   time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updatedAt"`
}

// DoctorVerification is the review sub-record of a report. A later
// verification overwrites an earlier one.
type DoctorVerification struct {
	IsVerified       bool       `db:"is_verified" json:"isVerified"`
	VerifiedBy       *string    `db:"verified_by" json:"verifiedBy"`
	DoctorComments   *string    `db:"doctor_comments" json:"doctorComments"`
	DoctorScore      *float64   `db:"doctor_score" json:"doctorScore"`
	VerificationDate *time.Time `db:"verification_date" json:"verificationDate"`
}

// Report maps to the report table.
type Report struct {
	ID                 uuid.UUID          `db:"id" json:"id"`
	PatientID          uuid.UUID          `db:"patient_id" json:"patient"`
	UploadedBy         string             `db:"uploaded_by" json:"uploadedBy"`
	UploadedByName     *string            `db:"uploaded_by_name" json:"uploadedByName,omitempty"`
	OriginalReportURL  string             `db:"original_report_url" json:"originalReportUrl"`
	OCRText            *string            `db:"ocr_text" json:"ocrText,omitempty"`
	LLMGeneratedReport *string            `db:"llm_generated_report" json:"llmGeneratedReport,omitempty"`
	NormalizedScore    *float64           `db:"normalized_score" json:"normalizedScore"`
	Status             string             `db:"status" json:"status"`
	DoctorVerification DoctorVerification `json:"doctorVerification"`
	CreatedAt          time.Time          `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time          `db:"updated_at" json:"updatedAt"`
}

// PatientInfo is the patient part of a report read by a doctor.
type PatientInfo struct {
	ID          uuid.UUID  `json:"id"`
	PatientID   string     `json:"patientId"`
	Name        string     `json:"name"`
	Gender      *string    `json:"gender"`
	DateOfBirth *time.Time `json:"dateOfBirth"`
}

// UploaderInfo identifies who uploaded a report.
type UploaderInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// ReportDetail is a report with its patient and uploader resolved. The
// patient and uploadedBy keys replace the bare identifiers of Report.
type ReportDetail struct {
	Report
	Patient  *PatientInfo `json:"patient"`
	Uploader UploaderInfo `json:"uploadedBy"`
}

// ReportSummary is one row of the doctor's review list.
type ReportSummary struct {
	ReportID       uuid.UUID `json:"reportId"`
	PatientName    string    `json:"patientName"`
	Score          float64   `json:"score"`
	LLMReport      string    `json:"llmReport"`
	Status         string    `json:"status"`
	IsReviewed     bool      `json:"isReviewed"`
	DoctorScore    *float64  `json:"doctorScore"`
	DoctorComments string    `json:"doctorComments"`
}

// PatientDetails is the identity read off a report, used to find or create
// the patient.
type PatientDetails struct {
	PatientID   string
	Name        string
	Gender      *string
	DateOfBirth *time.Time
}

// PatientRef names a patient either by entity or by system identity.
type PatientRef struct {
	ID      uuid.UUID
	Patient *Patient
}

func PatientRefFromEntity(p *Patient) PatientRef { return PatientRef{Patient: p} }

func PatientRefFromID(id uuid.UUID) PatientRef { return PatientRef{ID: id} }

// Resolve returns the system identity, preferring the entity when set.
func (r PatientRef) Resolve() uuid.UUID {
	if r.Patient != nil {
		return r.Patient.ID
	}
	return r.ID
}

// UserRef identifies the uploader: a token subject plus an optional display
// name. Requests without an identity use SystemUploader.
type UserRef struct {
	ID   string
	Name string
}

// CreateReportOptions holds the inputs for CreateReportForPatient. Status
// defaults to In Progress.
type CreateReportOptions struct {
	Patient            PatientRef
	UploadedBy         UserRef
	OriginalReportURL  string
	OCRText            *string
	LLMGeneratedReport *string
	NormalizedScore    *float64
	Status             string
}

// VerifyInput is a doctor's review. Both fields are optional; the score is
// not range checked.
type VerifyInput struct {
	DoctorComments *string  `json:"doctorComments"`
	DoctorScore    *float64 `json:"doctorScore"`
}

// Summarize projects a report detail into the review list shape.
func (d *ReportDetail) Summarize() ReportSummary {
	s := ReportSummary{
		ReportID:    d.ID,
		PatientName: UnknownValue,
		Status:      d.Status,
		LLMReport:   "N/A",
		IsReviewed:  d.DoctorVerification.IsVerified,
		DoctorScore: d.DoctorVerification.DoctorScore,
	}
	if d.Patient != nil && d.Patient.Name != "" {
		s.PatientName = d.Patient.Name
	}
	if d.NormalizedScore != nil {
		s.Score = *d.NormalizedScore
	}
	if d.LLMGeneratedReport != nil && *d.LLMGeneratedReport != "" {
		s.LLMReport = *d.LLMGeneratedReport
	}
	if d.DoctorVerification.DoctorComments != nil {
		s.DoctorComments = *d.DoctorVerification.DoctorComments
	}
	return s
}
