package distill

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/scrypster/mneme/pkg/types"
)

// Rejection reasons.
const (
	ReasonMissingField = "missing_field"
	ReasonPII          = "pii"
	ReasonUnresolved   = "unresolved_referent"
)

// RejectionError explains why a candidate was dropped.
type RejectionError struct {
	Reason string
	Detail string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("candidate rejected (%s): %s", e.Reason, e.Detail)
}

// piiPatterns is the best-effort secrets scanner. It is a heuristic, not a
// security boundary.
var piiPatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{"credit card number", regexp.MustCompile(`\b(?:\d[ -]?){12,18}\d\b`)},
	{"email address", regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)},
	{"api key", regexp.MustCompile(`\b(?:sk|pk|rk)-[A-Za-z0-9_\-]{16,}`)},
	{"aws access key", regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`)},
	{"github token", regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{20,}\b`)},
	{"hex secret", regexp.MustCompile(`\b[a-fA-F0-9]{32,}\b`)},
	{"credential", regexp.MustCompile(`(?i)\b(?:password|passwd|secret|token|api[_\-]?key)\s*[:=]`)},
}

// bareReferents are pronouns that leave a fragment without a subject.
var bareReferents = []string{"it", "they", "he", "she", "his", "her", "its"}

// Validator screens candidate memories.
type Validator struct {
	// PIIFilterEnabled turns the secrets scanner on.
	PIIFilterEnabled bool
}

// NewValidator creates a validator.
func NewValidator(piiFilterEnabled bool) *Validator {
	return &Validator{PIIFilterEnabled: piiFilterEnabled}
}

// Validate returns a *RejectionError when m must be dropped, nil otherwise.
func (v *Validator) Validate(m *types.Memory) error {
	if m == nil {
		return &RejectionError{Reason: ReasonMissingField, Detail: "nil candidate"}
	}
	switch {
	case strings.TrimSpace(m.Content) == "":
		return &RejectionError{Reason: ReasonMissingField, Detail: "content is empty"}
	case m.Domain == "":
		return &RejectionError{Reason: ReasonMissingField, Detail: "domain is empty"}
	case strings.TrimSpace(m.Entity) == "":
		return &RejectionError{Reason: ReasonMissingField, Detail: "entity is empty"}
	}

	if v.PIIFilterEnabled {
		if kind := ScanPII(m.Content); kind != "" {
			return &RejectionError{Reason: ReasonPII, Detail: "content looks like a " + kind}
		}
	}

	if p := BareReferent(m.Content); p != "" {
		return &RejectionError{Reason: ReasonUnresolved, Detail: fmt.Sprintf("bare pronoun %q", p)}
	}
	return nil
}

// ScanPII returns the kind of sensitive content found in s, or "".
func ScanPII(s string) string {
	for _, p := range piiPatterns {
		if p.re.MatchString(s) {
			return p.name
		}
	}
	return ""
}

// BareReferent returns the first third-person pronoun in s that is
// surrounded by spaces, or "".
func BareReferent(s string) string {
	lower := strings.ToLower(s)
	for _, p := range bareReferents {
		if strings.Contains(lower, " "+p+" ") {
			return p
		}
	}
	return ""
}
