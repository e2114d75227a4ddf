// Package triage implements the deterministic classification-to-status
// decision and priority scoring applied to every incoming hazard report.
// It is a pure decision table: no I/O, no hidden state.
package triage

import (
	"github.com/tidewatch/tidewatch/internal/database"
)

// VerifiedConfidenceThreshold is the minimum (inclusive) text-classification
// confidence for auto-verification of a relevant, likely-real report.
const VerifiedConfidenceThreshold = 0.7

// Priority score bases. The score is additive and unbounded; it orders
// analyst queues and never drives control flow.
const (
	scorePanic             = 5
	scoreRelevant          = 2
	scoreNeedsVerification = 3
	scoreLikelyReal        = 1
)

// Input carries the classification signals the engine decides on.
// HasVerdict is false when no media was attached: rules that reference the
// image-heuristics verdict are skipped entirely in that case.
type Input struct {
	Label      database.MLLabel
	Confidence float64
	Verdict    database.HeuristicsVerdict
	HasVerdict bool
}

// Decision is the triage outcome stored on the report at creation time
type Decision struct {
	Status        database.ReportStatus
	PriorityScore int
}

// Decide maps classification signals to a status and priority score.
// First matching rule wins:
//
//  1. relevant + likely_real + confidence >= 0.7  -> Verified
//  2. panic + needs_verification                  -> Not Verified
//  3. irrelevant, or needs_verification, or panic + likely_real
//     -> Needs Verification
//  4. otherwise                                   -> Pending
//
// Rule 2 sits above the needs_verification branch of rule 3 so that a
// panicked report with suspect media is rejected outright rather than
// queued, regardless of confidence.
func Decide(in Input) Decision {
	return Decision{
		Status:        decideStatus(in),
		PriorityScore: score(in),
	}
}

func decideStatus(in Input) database.ReportStatus {
	if in.Label == database.LabelRelevant &&
		in.HasVerdict && in.Verdict == database.VerdictLikelyReal &&
		in.Confidence >= VerifiedConfidenceThreshold {
		return database.StatusVerified
	}

	if in.Label == database.LabelPanic &&
		in.HasVerdict && in.Verdict == database.VerdictNeedsVerification {
		return database.StatusNotVerified
	}

	if in.Label == database.LabelIrrelevant {
		return database.StatusNeedsVerification
	}
	if in.HasVerdict && in.Verdict == database.VerdictNeedsVerification {
		return database.StatusNeedsVerification
	}
	if in.Label == database.LabelPanic &&
		in.HasVerdict && in.Verdict == database.VerdictLikelyReal {
		return database.StatusNeedsVerification
	}

	return database.StatusPending
}

func score(in Input) int {
	total := 0

	switch in.Label {
	case database.LabelPanic:
		total += scorePanic
	case database.LabelRelevant:
		total += scoreRelevant
	}

	// An absent verdict scores the same as likely_real
	if in.HasVerdict && in.Verdict == database.VerdictNeedsVerification {
		total += scoreNeedsVerification
	} else {
		total += scoreLikelyReal
	}

	return total
}
