package service

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	MinScore = 1
	MaxScore = 6

	MinReviewers = 3
	MaxReviewers = 4
)

var (
	ErrNotANumber        = errors.New("score must be a number")
	ErrOutOfRange        = errors.New("score must be between 1 and 6")
	ErrNotInteger        = errors.New("score must be an integer")
	ErrFieldsRequired    = errors.New("all score fields are required")
	ErrInvalidReviewers  = errors.New("reviewer count must be 3 or 4")
	ErrFieldIndex        = errors.New("score field index out of range")
	ErrInvalidSubmission = errors.New("invalid submission")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ParseScore applies the numeric, range and integer rules to one raw field.
// Range is checked before integrality, so "6.5" is out of range and "2.5" is
// not an integer.
func ParseScore(raw string) (int, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) {
		return 0, ErrNotANumber
	}
	if v < MinScore || v > MaxScore {
		return 0, ErrOutOfRange
	}
	if v != math.Trunc(v) {
		return 0, ErrNotInteger
	}
	return int(v), nil
}

// ValidateScoreInput is the per-keystroke check. An empty field is still being
// edited and is never reported.
func ValidateScoreInput(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	_, err := ParseScore(raw)
	return err
}

// ValidateSubmission checks a submission that arrives already built, for
// example one decoded from a gateway.
func ValidateSubmission(sub Submission) error {
	if err := validate.Struct(sub); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSubmission, err)
	}
	if want := averageOf(sub.Scores); want != sub.Average {
		return fmt.Errorf("%w: average %.2f does not match scores (want %.2f)", ErrInvalidSubmission, sub.Average, want)
	}
	return nil
}

// Form is the score entry form: three or four raw text fields.
type Form struct {
	fields []string
}

// NewForm returns an empty three-reviewer form.
func NewForm() *Form {
	return &Form{fields: make([]string, MinReviewers)}
}

// ReviewerCount returns the number of visible score fields.
func (f *Form) ReviewerCount() int { return len(f.fields) }

// SetReviewerCount resizes the form. Shrinking to three drops the fourth value.
func (f *Form) SetReviewerCount(n int) error {
	switch n {
	case MinReviewers:
		f.fields = f.fields[:MinReviewers:MinReviewers]
	case MaxReviewers:
		if len(f.fields) == MinReviewers {
			f.fields = append(f.fields, "")
		}
	default:
		return ErrInvalidReviewers
	}
	return nil
}

// Toggle flips between three and four reviewers.
func (f *Form) Toggle() {
	if len(f.fields) == MinReviewers {
		_ = f.SetReviewerCount(MaxReviewers)
		return
	}
	_ = f.SetReviewerCount(MinReviewers)
}

// SetField stores raw text for field i and returns that field's live error.
func (f *Form) SetField(i int, raw string) error {
	if i < 0 || i >= len(f.fields) {
		return ErrFieldIndex
	}
	f.fields[i] = raw
	return ValidateScoreInput(raw)
}

// Fields returns a copy of the raw field values.
func (f *Form) Fields() []string {
	out := make([]string, len(f.fields))
	copy(out, f.fields)
	return out
}

// FieldErrors returns the live error text per field, empty where fine.
func (f *Form) FieldErrors() []string {
	out := make([]string, len(f.fields))
	for i, raw := range f.fields {
		if err := ValidateScoreInput(raw); err != nil {
			out[i] = err.Error()
		}
	}
	return out
}

// Validate is the submit-time check. Any empty field blocks submission.
func (f *Form) Validate() (Submission, error) {
	scores := make([]int, 0, len(f.fields))
	for _, raw := range f.fields {
		if strings.TrimSpace(raw) == "" {
			return Submission{}, ErrFieldsRequired
		}
	}
	for _, raw := range f.fields {
		s, err := ParseScore(raw)
		if err != nil {
			return Submission{}, err
		}
		scores = append(scores, s)
	}
	return NewSubmission(scores), nil
}

// Reset clears the form back to three empty fields.
func (f *Form) Reset() {
	f.fields = make([]string, MinReviewers)
}

// IsValidationError reports whether err is a user-correctable input error.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrNotANumber, ErrOutOfRange, ErrNotInteger, ErrFieldsRequired,
		ErrInvalidReviewers, ErrFieldIndex, ErrInvalidSubmission,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
