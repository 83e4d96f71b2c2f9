// Package aggregate answers read-side metric queries over the normalized
// and precomputed tables. It never writes.
package aggregate

// Ratio helpers. Zero denominators yield nil (or the documented zero),
// never NaN.

// AvgRework is (submissions / unique_tasks) - 1, or 0 when no tasks. The
// subtraction happens in integers so exact mixes stay exact.
func AvgRework(submissions, uniqueTasks int) float64 {
	if uniqueTasks == 0 {
		return 0
	}
	return float64(submissions-uniqueTasks) / float64(uniqueTasks)
}

// ReworkPercent is rework / (new_tasks + rework) * 100, nil when the
// denominator is zero.
func ReworkPercent(newTasks, rework int) *float64 {
	den := newTasks + rework
	if den == 0 {
		return nil
	}
	return ptr(float64(rework) / float64(den) * 100)
}

// AvgRating is score_sum / review_count, nil when no reviews.
func AvgRating(scoreSum float64, reviewCount int) *float64 {
	if reviewCount == 0 {
		return nil
	}
	return ptr(scoreSum / float64(reviewCount))
}

// MergedExpAHT blends new-task and rework AHT weighted by the submission
// mix, nil when there are no submissions.
func MergedExpAHT(newTasks, rework int, newAHT, reworkAHT float64) *float64 {
	den := newTasks + rework
	if den == 0 {
		return nil
	}
	return ptr((float64(newTasks)*newAHT + float64(rework)*reworkAHT) / float64(den))
}

// AccountedHours is the expected hours for the submission mix.
func AccountedHours(newTasks, rework int, newAHT, reworkAHT float64) float64 {
	return float64(newTasks)*newAHT + float64(rework)*reworkAHT
}

// Efficiency is accounted_hours / tracked_hours * 100, nil when no hours
// were tracked.
func Efficiency(accountedHours, trackedHours float64) *float64 {
	if trackedHours == 0 {
		return nil
	}
	return ptr(accountedHours / trackedHours * 100)
}

// AchievementPercent is actual / target * 100, nil when the target is zero.
func AchievementPercent(actual, target float64) *float64 {
	if target == 0 {
		return nil
	}
	return ptr(actual / target * 100)
}

func ptr(v float64) *float64 { return &v }
