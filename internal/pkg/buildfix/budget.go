// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package buildfix

import "time"

// RetryDelays are the staged waits between auto-fix attempts.
var RetryDelays = []time.Duration{30 * time.Second, 60 * time.Second, 120 * time.Second}

// RetryBudget computes the maximum number of auto-fix attempts for a detected
// error set. The budget is a confidence score: the more of the set is
// mechanically fixable, the more attempts a deploy earns. Any non-retryable
// kind zeroes the budget outright.
func RetryBudget(errs []BuildError) int {
	if len(errs) == 0 || HasNonRetryable(errs) {
		return 0
	}
	n := len(errs)
	k := 0
	for _, e := range errs {
		if e.AutoFixable {
			k += 1
		}
	}
	switch {
	case k == n && n <= 3:
		return 3
	case float64(k) >= 0.7*float64(n) && n <= 5:
		return 2
	case k > 0 && float64(k) < 0.7*float64(n):
		return 1
	default:
		return 0
	}
}

// RetryDelay returns the wait before the given 1-based attempt, clamping to
// the last stage.
func RetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > len(RetryDelays) {
		attempt = len(RetryDelays)
	}
	return RetryDelays[attempt-1]
}
