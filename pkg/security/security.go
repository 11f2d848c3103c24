package security

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/jdziat/service-jobs/pkg/core"
)

// Security limits and configuration
const (
	// MaxIDLength is the maximum length for job, technician and actor ids
	MaxIDLength = 128

	// MaxNoteLength is the maximum length in runes for event notes
	MaxNoteLength = 1024

	// MaxListLimit is the hard limit for listing jobs
	MaxListLimit = 1000
)

// validID matches alphanumeric ids that may contain _ - . @ and :
var validID = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_\-\.@:]*$`)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateID validates an identifier supplied by a caller. field names the
// input in the returned ValidationError.
func ValidateID(field, id string) error {
	if id == "" {
		return &core.ValidationError{Field: field, Reason: "is required"}
	}
	if len(id) > MaxIDLength {
		return &core.ValidationError{Field: field, Reason: fmt.Sprintf("exceeds %d characters", MaxIDLength)}
	}
	if !validID.MatchString(id) {
		return &core.ValidationError{Field: field, Reason: "contains invalid characters"}
	}
	return nil
}

// ValidateTechnicianID validates a technician id.
func ValidateTechnicianID(id string) error {
	return ValidateID("technician_id", id)
}

// ValidateActorID validates an actor id. An empty actor is allowed.
func ValidateActorID(id string) error {
	if id == "" {
		return nil
	}
	return ValidateID("actor_id", id)
}

// SanitizeNote strips control characters (except newlines and tabs) and
// truncates the note to MaxNoteLength runes.
func SanitizeNote(note string) string {
	if note == "" {
		return ""
	}

	var sanitized strings.Builder
	sanitized.Grow(len(note))

	for _, r := range note {
		if r == '\n' || r == '\t' || (r >= 32 && r != 127) {
			sanitized.WriteRune(r)
		}
	}

	result := strings.TrimSpace(sanitized.String())

	if utf8.RuneCountInString(result) > MaxNoteLength {
		runes := []rune(result)
		result = string(runes[:MaxNoteLength-3]) + "..."
	}

	return result
}

// ValidateStruct checks v against its `validate` struct tags and reports the
// first failure as a ValidationError naming the field.
func ValidateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &core.ValidationError{Field: fieldName(fe), Reason: describe(fe)}
	}
	return &core.ValidationError{Field: "request", Reason: err.Error()}
}

// ValidateMetadata validates vehicle metadata.
func ValidateMetadata(m core.Metadata) error {
	return ValidateStruct(m)
}

// ClampLimit bounds a list limit to [1, MaxListLimit]; non-positive means MaxListLimit.
func ClampLimit(n int) int {
	if n <= 0 || n > MaxListLimit {
		return MaxListLimit
	}
	return n
}

func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	return toSnake(ns)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "alphanum":
		return "must be alphanumeric"
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}

// toSnake converts StockNumber into stock_number and VIN into vin.
func toSnake(s string) string {
	var b strings.Builder
	var prevLower bool
	for _, r := range s {
		upper := r >= 'A' && r <= 'Z'
		if upper && prevLower {
			b.WriteByte('_')
		}
		if upper {
			r += 'a' - 'A'
		}
		b.WriteRune(r)
		prevLower = (r >= 'a' && r <= 'z') && !upper || (r >= '0' && r <= '9')
	}
	return b.String()
}
