package safequery

import (
	"fmt"
	"strings"
)

// RejectionKind classifies why the policy refused a statement.
type RejectionKind string

const (
	RejectionNotSelect      RejectionKind = "not_select"
	RejectionBlockedKeyword RejectionKind = "blocked_keyword"
)

// Rejection is a soft refusal. It is a value, not an error: the caller is a
// model that needs a legible signal it can adapt to, not a fault to handle.
type Rejection struct {
	Kind    RejectionKind `json:"kind"`
	Message string        `json:"message"`
}

// StatementPolicy decides whether a free-form statement may execute. It is a
// narrow seam so the shipped keyword scan can be swapped for a tokenizer or
// AST-based validator without touching the executor or the normalizer.
type StatementPolicy interface {
	Check(stmt string) *Rejection
}

// DefaultDenyList is the set of mutating keywords refused anywhere in a
// statement.
var DefaultDenyList = []string{"insert", "update", "delete", "drop", "alter", "truncate"}

// KeywordPolicy is the shipped StatementPolicy: the statement must lead with
// SELECT, and no deny-listed keyword may appear anywhere in the case-folded
// text.
//
// The scan is a plain substring match, so it over-rejects: a column named
// updated_at or a string literal containing "delete" fails the check. That
// trade is intentional; any statement containing a mutating keyword as a
// token must be rejected, and false positives are acceptable.
type KeywordPolicy struct {
	Deny []string
}

// NewKeywordPolicy returns a KeywordPolicy with the default deny list.
func NewKeywordPolicy() *KeywordPolicy {
	return &KeywordPolicy{Deny: DefaultDenyList}
}

// Check inspects the case-folded statement. The original text is never
// modified; execution uses it verbatim.
func (p *KeywordPolicy) Check(stmt string) *Rejection {
	folded := strings.ToLower(strings.TrimSpace(stmt))

	if !strings.HasPrefix(folded, "select") {
		return &Rejection{
			Kind:    RejectionNotSelect,
			Message: "only SELECT statements are permitted",
		}
	}

	for _, word := range p.Deny {
		if strings.Contains(folded, word) {
			return &Rejection{
				Kind:    RejectionBlockedKeyword,
				Message: fmt.Sprintf("statement blocked for safety: contains %q", word),
			}
		}
	}

	return nil
}
