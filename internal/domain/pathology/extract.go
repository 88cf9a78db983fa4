package pathology

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Identity extraction from OCR text is heuristic. Labels are matched
// case-insensitively; anything not found falls back to Unknown or absent.
var (
	nameRe      = regexp.MustCompile(`(?i)\bName:[ \t]*([A-Za-z][A-Za-z \t]*)`)
	genderRe    = regexp.MustCompile(`(?i)\b(?:Gender|Sex):[ \t]*(Male|Female|Other|M|F)\b`)
	dobRe       = regexp.MustCompile(`(?i)\b(?:DOB|Date of Birth):[ \t]*([0-9]{2}[-/][0-9]{2}[-/][0-9]{2,4})`)
	patientIDRe = regexp.MustCompile(`(?i)\b(?:Patient[ \t]*ID|MRN):[ \t]*([A-Za-z0-9_-]+)`)

	// trailingLabelRe finds a multi-word label that the name capture ran into.
	trailingLabelRe = regexp.MustCompile(`(?i)[ \t]+(?:date[ \t]+of[ \t]+birth|patient[ \t]*id)[ \t]*$`)
)

// ExtractPatientDetails reads patient identity off report text. When no
// patient id is printed one is generated from now.
func ExtractPatientDetails(text string, now time.Time) PatientDetails {
	d := PatientDetails{Name: UnknownValue}

	if m := patientIDRe.FindStringSubmatch(text); m != nil {
		d.PatientID = m[1]
	} else {
		d.PatientID = GeneratePatientID(now)
	}

	// "Patient Name:" and "Name:" both match; the id label never does.
	if m := nameRe.FindStringSubmatchIndex(text); m != nil {
		raw := text[m[2]:m[3]]
		if m[3] < len(text) && text[m[3]] == ':' {
			raw = trimTrailingLabel(raw)
		}
		if name := strings.Join(strings.Fields(raw), " "); name != "" {
			d.Name = name
		}
	}

	gender := UnknownValue
	if m := genderRe.FindStringSubmatch(text); m != nil {
		gender = normalizeGender(m[1])
	}
	d.Gender = &gender

	if m := dobRe.FindStringSubmatch(text); m != nil {
		if dob, ok := parseDOB(m[1]); ok {
			d.DateOfBirth = &dob
		}
	}
	return d
}

// trimTrailingLabel drops the label of the next field when it shares a line
// with the name, as in "Name: John Smith Gender: M".
func trimTrailingLabel(raw string) string {
	if loc := trailingLabelRe.FindStringIndex(raw); loc != nil {
		return raw[:loc[0]]
	}
	raw = strings.TrimRight(raw, " \t")
	if i := strings.LastIndexAny(raw, " \t"); i >= 0 {
		return raw[:i]
	}
	return ""
}

// GeneratePatientID returns PAT_<unix millis>.
func GeneratePatientID(now time.Time) string {
	return "PAT_" + strconv.FormatInt(now.UnixMilli(), 10)
}

func normalizeGender(g string) string {
	switch strings.ToLower(g) {
	case "m", "male":
		return "Male"
	case "f", "female":
		return "Female"
	default:
		return "Other"
	}
}

// parseDOB reads slash dates month first and dash dates day first, falling
// back to the other order when the first does not form a valid date.
// Two-digit years follow time.Parse (69-99 → 1900s, 00-68 → 2000s).
func parseDOB(s string) (time.Time, bool) {
	var layouts []string
	if strings.Contains(s, "/") {
		layouts = []string{"01/02/2006", "02/01/2006", "01/02/06", "02/01/06"}
	} else {
		layouts = []string{"02-01-2006", "01-02-2006", "02-01-06", "01-02-06"}
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
