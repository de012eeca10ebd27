package claim

import (
	"errors"
	"fmt"
	"strings"
)

// Claim is a single structured statement extracted from agricultural text:
// "Lúa ST25 - Năng suất: 8.5 tấn/ha (Vụ Đông Xuân 2023)". Object and Context
// may be empty when the source carries no quantitative value or no scope.
type Claim struct {
	Subject    string  `json:"subject"`
	Predicate  string  `json:"predicate"`
	Object     string  `json:"object,omitempty"`
	Context    string  `json:"context,omitempty"`
	Confidence float64 `json:"confidence"`
	SourceURL  string  `json:"sourceUrl,omitempty"`
}

var (
	ErrEmptySubject   = errors.New("claim: empty subject")
	ErrEmptyPredicate = errors.New("claim: empty predicate")
	ErrBadConfidence  = errors.New("claim: confidence outside [0,1]")
)

// New validates and constructs a Claim. Subject and predicate must be
// non-empty after trimming; confidence must be within [0,1].
func New(subject, predicate, object, context string, confidence float64) (Claim, error) {
	c := Claim{
		Subject:    subject,
		Predicate:  predicate,
		Object:     object,
		Context:    context,
		Confidence: confidence,
	}
	if err := c.Validate(); err != nil {
		return Claim{}, err
	}
	return c, nil
}

// Validate checks the construction invariants without mutating the claim.
func (c Claim) Validate() error {
	if strings.TrimSpace(c.Subject) == "" {
		return ErrEmptySubject
	}
	if strings.TrimSpace(c.Predicate) == "" {
		return ErrEmptyPredicate
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return fmt.Errorf("%w: %v", ErrBadConfidence, c.Confidence)
	}
	return nil
}

// SubjectKey returns the canonical grouping form of the subject. Original
// casing is preserved on the struct for display.
func (c Claim) SubjectKey() string {
	return strings.ToLower(strings.TrimSpace(c.Subject))
}

// PredicateKey returns the canonical grouping form of the predicate.
func (c Claim) PredicateKey() string {
	return strings.ToLower(strings.TrimSpace(c.Predicate))
}

// GroupKey identifies the fact a claim is about: same key, same candidate
// fact, regardless of casing or surrounding whitespace.
type GroupKey struct {
	Subject   string
	Predicate string
}

func (c Claim) GroupKey() GroupKey {
	return GroupKey{Subject: c.SubjectKey(), Predicate: c.PredicateKey()}
}

// String renders the claim the way summaries and judge prompts show it.
func (c Claim) String() string {
	var sb strings.Builder
	sb.WriteString(c.Subject)
	if c.Predicate != "" {
		sb.WriteString(" - ")
		sb.WriteString(c.Predicate)
	}
	if c.Object != "" {
		sb.WriteString(": ")
		sb.WriteString(c.Object)
	}
	if c.Context != "" {
		sb.WriteString(" (Context: ")
		sb.WriteString(c.Context)
		sb.WriteString(")")
	}
	return sb.String()
}

// Dedupe drops claims repeating an earlier (subject, predicate, object)
// triple, preserving first occurrence. The triple is compared with its raw
// casing on purpose: near-duplicates that differ only in case survive and are
// merged later by the resolver's case-folded grouping.
func Dedupe(claims []Claim) []Claim {
	seen := make(map[[3]string]struct{}, len(claims))
	out := make([]Claim, 0, len(claims))
	for _, c := range claims {
		k := [3]string{c.Subject, c.Predicate, c.Object}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, c)
	}
	return out
}
