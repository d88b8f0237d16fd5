package store

import (
	"testing"
)

func TestApplyPriceChangeTxSerialization(t *testing.T) {
	// Two concurrent appliers on the same product: the second must fail with
	// ErrConflict via FOR UPDATE NOWAIT, not silently overwrite.
	t.Skip("Requires a Postgres instance")
}

func TestGetMatchingRulesScopes(t *testing.T) {
	t.Skip("Requires a Postgres instance")
}

func TestIncrementCountersRejectNonRunningExperiment(t *testing.T) {
	// Impressions and conversions against a completed or missing experiment
	// must return ErrExperimentNotFound, not silently affect zero rows.
	t.Skip("Requires a Postgres instance")
}

func TestCountCompletedExperimentsMatchesClampedWinnerNotes(t *testing.T) {
	// A winner apply whose price was clamped appends to the history note; the
	// prefix match must still count it.
	t.Skip("Requires a Postgres instance")
}
