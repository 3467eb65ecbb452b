package student

import (
	"time"

	"github.com/cf-hub/progress-tracker/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// DERIVED STATISTICS
// ══════════════════════════════════════════════════════════════════════════════

// Rating bucket labels. The bands are fixed and deliberately leave gaps
// (a 1050-rated problem lands in no bucket but still counts in totals).
const (
	Bucket800to1000   = "800-1000"
	Bucket1100to1300  = "1100-1300"
	Bucket1400to1600  = "1400-1600"
	Bucket1700to1900  = "1700-1900"
	Bucket2000andOver = "2000+"
)

// BucketLabels lists the buckets in display order.
var BucketLabels = []string{
	Bucket800to1000,
	Bucket1100to1300,
	Bucket1400to1600,
	Bucket1700to1900,
	Bucket2000andOver,
}

// Stats holds the statistics derived from the solved-problem set.
// Always rebuilt from scratch, never updated incrementally.
type Stats struct {
	TotalSolved      int            `json:"total_solved"`
	SolvedLast30Days int            `json:"solved_last_30_days"`
	SolvedLast90Days int            `json:"solved_last_90_days"`
	AverageRating    float64        `json:"average_rating"`
	AveragePerDay    float64        `json:"average_per_day"`
	RatingBuckets    map[string]int `json:"rating_buckets"`
	ActivityHeatmap  map[string]int `json:"activity_heatmap"`
}

// BucketFor returns the bucket label for a problem rating, or false
// when the rating falls outside every band.
func BucketFor(rating int) (string, bool) {
	switch {
	case rating >= 800 && rating <= 1000:
		return Bucket800to1000, true
	case rating >= 1100 && rating <= 1300:
		return Bucket1100to1300, true
	case rating >= 1400 && rating <= 1600:
		return Bucket1400to1600, true
	case rating >= 1700 && rating <= 1900:
		return Bucket1700to1900, true
	case rating >= 2000:
		return Bucket2000andOver, true
	default:
		return "", false
	}
}

// ComputeStats derives statistics from a solved-problem set as of now.
//
// Problems without a rating are excluded from the buckets and the
// average but still count toward totals, windows and the heatmap.
// AverageRating is 0 when no rated problems exist. AveragePerDay is the
// 30-day count divided by 30 regardless of how long the student has
// been tracked.
func ComputeStats(solved []SolvedProblem, now time.Time) Stats {
	stats := Stats{
		RatingBuckets:   make(map[string]int),
		ActivityHeatmap: make(map[string]int),
	}

	ratingSum := 0
	ratedCount := 0

	for _, p := range solved {
		stats.TotalSolved++

		if timeutil.WithinLastDays(p.FirstSolvedAt, now, 30) {
			stats.SolvedLast30Days++
		}
		if timeutil.WithinLastDays(p.FirstSolvedAt, now, 90) {
			stats.SolvedLast90Days++
		}

		stats.ActivityHeatmap[timeutil.DayKey(p.FirstSolvedAt)]++

		if p.Rating == nil {
			continue
		}
		ratingSum += *p.Rating
		ratedCount++
		if label, ok := BucketFor(*p.Rating); ok {
			stats.RatingBuckets[label]++
		}
	}

	if ratedCount > 0 {
		stats.AverageRating = float64(ratingSum) / float64(ratedCount)
	}
	stats.AveragePerDay = float64(stats.SolvedLast30Days) / 30.0

	return stats
}
