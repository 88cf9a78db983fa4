package pathology

import (
	"testing"
	"time"
)

var extractNow = time.UnixMilli(1714564800123)

func TestExtractPatientDetails_JaneDoe(t *testing.T) {
	text := "CITY PATHOLOGY LAB\nName: Jane Doe\nGender: Female\nDOB: 12/31/1980\nSpecimen: skin"

	d := ExtractPatientDetails(text, extractNow)

	if d.Name != "Jane Doe" {
		t.Errorf("expected Jane Doe, got %q", d.Name)
	}
	if d.Gender == nil || *d.Gender != "Female" {
		t.Errorf("expected Female, got %v", d.Gender)
	}
	if d.DateOfBirth == nil || !d.DateOfBirth.Equal(time.Date(1980, 12, 31, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected date of birth %v", d.DateOfBirth)
	}
	if d.PatientID != "PAT_1714564800123" {
		t.Errorf("expected generated id, got %q", d.PatientID)
	}
}

func TestExtractPatientDetails_Defaults(t *testing.T) {
	d := ExtractPatientDetails("illegible scan", extractNow)

	if d.Name != UnknownValue {
		t.Errorf("expected Unknown name, got %q", d.Name)
	}
	if d.Gender == nil || *d.Gender != UnknownValue {
		t.Errorf("expected Unknown gender, got %v", d.Gender)
	}
	if d.DateOfBirth != nil {
		t.Errorf("expected no date of birth, got %v", d.DateOfBirth)
	}
	if d.PatientID != GeneratePatientID(extractNow) {
		t.Errorf("expected generated id, got %q", d.PatientID)
	}
}

func TestExtractPatientDetails_PrintedPatientID(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Patient ID: PX-2291\nName: A B", "PX-2291"},
		{"patientid: abc_9", "abc_9"},
		{"MRN: 00042", "00042"},
	}
	for _, tt := range tests {
		if got := ExtractPatientDetails(tt.text, extractNow).PatientID; got != tt.want {
			t.Errorf("%q: expected %q, got %q", tt.text, tt.want, got)
		}
	}
}

func TestExtractPatientDetails_Gender(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Gender: M", "Male"},
		{"gender: f", "Female"},
		{"GENDER: male", "Male"},
		{"Gender: Other", "Other"},
		{"Sex: F", "Female"},
		{"Gender: Mixed", UnknownValue},
	}
	for _, tt := range tests {
		d := ExtractPatientDetails(tt.text, extractNow)
		if d.Gender == nil || *d.Gender != tt.want {
			t.Errorf("%q: expected %q, got %v", tt.text, tt.want, d.Gender)
		}
	}
}

func TestExtractPatientDetails_NameStopsAtLineEnd(t *testing.T) {
	d := ExtractPatientDetails("Patient Name:   John   Smith \nAge: 40", extractNow)
	if d.Name != "John Smith" {
		t.Errorf("expected John Smith, got %q", d.Name)
	}
}

func TestExtractPatientDetails_NameStopsAtNextLabel(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Patient Name: John Smith Gender: M", "John Smith"},
		{"Name: Jane Doe   Date of Birth: 01/02/1990", "Jane Doe"},
		{"Name: Jane Doe Patient ID: PX-1", "Jane Doe"},
		{"Name: Mary Ann Lee Ward: 4", "Mary Ann Lee"},
		{"Name: Gender: F", UnknownValue},
	}

	for _, tt := range tests {
		if got := ExtractPatientDetails(tt.text, extractNow).Name; got != tt.want {
			t.Errorf("%q: got name %q, want %q", tt.text, got, tt.want)
		}
	}

	d := ExtractPatientDetails("Patient Name: John Smith Gender: M", extractNow)
	if d.Gender == nil || *d.Gender != "Male" {
		t.Errorf("expected gender Male from the same line, got %v", d.Gender)
	}
}

func TestParseDOB(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"31-12-1980", time.Date(1980, 12, 31, 0, 0, 0, 0, time.UTC), true},
		{"05-06-1990", time.Date(1990, 6, 5, 0, 0, 0, 0, time.UTC), true},
		{"12/31/1980", time.Date(1980, 12, 31, 0, 0, 0, 0, time.UTC), true},
		{"31/12/1980", time.Date(1980, 12, 31, 0, 0, 0, 0, time.UTC), true},
		{"12-31-1980", time.Date(1980, 12, 31, 0, 0, 0, 0, time.UTC), true},
		{"01/02/85", time.Date(1985, 1, 2, 0, 0, 0, 0, time.UTC), true},
		{"99/99/1980", time.Time{}, false},
	}
	for _, tt := range tests {
		got, ok := parseDOB(tt.in)
		if ok != tt.ok {
			t.Errorf("parseDOB(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			continue
		}
		if ok && !got.Equal(tt.want) {
			t.Errorf("parseDOB(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
