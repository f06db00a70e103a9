// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

/*
Package recall fans a request out to several candidate recall strategies and
merges their results into one weighted, deduplicated candidate list.

# Merging

Each strategy's scores are normalized to [0, 1] independently:

	score / max                  when every score is >= 0
	(score - min) / (max - min)  otherwise
	1                            when all scores are equal

The merged score of an item is the sum, over the strategies that returned it,
of strategy weight times normalized score. Weights come from static
configuration and are normalized to sum to 1 when the Merger is built.
Results are sorted by descending score with ascending ContentID as the
tie-break and truncated to the requested size. Short results are never padded.

# Timeouts

Strategies run concurrently. Each gets its own deadline, bounded by the
caller's. A strategy that misses its deadline is abandoned: its goroutine is
left to finish on its own and whatever it eventually returns is discarded.
One failing strategy does not fail the merge; only when every strategy fails
does Recall return ErrAllStrategiesFailed.
*/
package recall
