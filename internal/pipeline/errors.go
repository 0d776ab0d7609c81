package pipeline

import (
	"errors"

	"go.uber.org/zap"
)

// Kind classifies a stage failure.
type Kind string

const (
	KindSecretUnavailable Kind = "secret_unavailable"
	KindRewriteFailed     Kind = "rewrite_failed"
	KindSearchCallFailed  Kind = "search_call_failed"
	KindFilterCallFailed  Kind = "filter_call_failed"
	KindScrapeFailed      Kind = "scrape_failed"
	KindAnalysisFailed    Kind = "analysis_failed"
	KindPersistenceFailed Kind = "persistence_failed"
)

// Policy is what the run does after a stage failure of a given kind.
type Policy string

const (
	// PolicyAbort fails the run.
	PolicyAbort Policy = "abort"
	// PolicyFallback continues with the stage's degraded output.
	PolicyFallback Policy = "fallback"
	// PolicySkip drops the failing item and continues with the rest.
	PolicySkip Policy = "skip"
	// PolicyLog records the failure and carries on unchanged.
	PolicyLog Policy = "log"
)

var fallbackPolicy = map[Kind]Policy{
	KindSecretUnavailable: PolicyAbort,
	KindRewriteFailed:     PolicyFallback, // search the original query on google
	KindSearchCallFailed:  PolicySkip,     // drop that query
	KindFilterCallFailed:  PolicyFallback, // keep the unfiltered candidates
	KindScrapeFailed:      PolicyFallback, // analyze with empty website text
	KindAnalysisFailed:    PolicyFallback, // persist the lead without enrichment
	KindPersistenceFailed: PolicyLog,      // the COMPLETED commit is handled separately
}

// PolicyFor returns the policy for kind. Unknown kinds abort.
func PolicyFor(kind Kind) Policy {
	if p, ok := fallbackPolicy[kind]; ok {
		return p
	}
	return PolicyAbort
}

// StageError is a failure tagged with the stage that produced it.
type StageError struct {
	Kind Kind
	Err  error
}

func (e *StageError) Error() string { return string(e.Kind) + ": " + e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(kind Kind, err error) error {
	return &StageError{Kind: kind, Err: err}
}

// KindOf extracts the stage kind from err, if any.
func KindOf(err error) (Kind, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return "", false
}

// tolerate logs a stage failure, with secrets redacted, and reports whether
// the run may continue.
func tolerate(log *zap.Logger, err error, secrets ...string) bool {
	kind, ok := KindOf(err)
	if !ok {
		return false
	}
	policy := PolicyFor(kind)
	if policy == PolicyAbort {
		return false
	}
	log.Warn("pipeline: stage degraded",
		zap.String("kind", string(kind)),
		zap.String("policy", string(policy)),
		zap.String("error", Redact(err.Error(), secrets...)),
	)
	return true
}
