package tracker

import (
	"fmt"
	"time"

	"github.com/grantthrive/pulse/model"
)

const (
	minutesPerHour = 60
	minutesPerDay  = 24 * 60
)

// EstimatedCompletion returns the projected completion time for a workflow:
// the creation time plus the sum of every stage's estimated duration. It is
// computed once at initialization and stored; a stale estimate is acceptable.
func EstimatedCompletion(createdAt time.Time, stages []model.StageDefinition) time.Time {
	total := 0
	for _, s := range stages {
		total += s.EstimatedDuration
	}
	return createdAt.Add(time.Duration(total) * time.Minute)
}

// Elapsed returns a human-readable description of the time between createdAt
// and now, in the coarsest two applicable units.
func Elapsed(createdAt, now time.Time) string {
	elapsed := now.Sub(createdAt)
	if elapsed < 0 {
		elapsed = 0
	}

	days := int(elapsed.Hours()) / 24
	hours := int(elapsed.Hours()) % 24
	minutes := int(elapsed.Minutes()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%d days, %d hours", days, hours)
	case hours > 0:
		return fmt.Sprintf("%d hours, %d minutes", hours, minutes)
	default:
		return fmt.Sprintf("%d minutes", minutes)
	}
}

// RemainingMinutes sums the estimated time left from the current stage
// onward: completed stages contribute nothing, the in-progress stage
// contributes the unfinished share of its estimate, and future stages
// contribute their full estimate.
func RemainingMinutes(stages []model.StageRecord, currentStage int) float64 {
	var total float64
	for _, s := range stages[currentStage:] {
		switch s.Status {
		case model.StageStatusCompleted:
			// Done; nothing left.
		case model.StageStatusInProgress:
			remaining := 100 - s.Progress
			if remaining < 0 {
				remaining = 0
			}
			total += remaining / 100 * float64(s.EstimatedDuration)
		default:
			total += float64(s.EstimatedDuration)
		}
	}
	return total
}

// Remaining formats RemainingMinutes in a coarse human unit chosen by
// magnitude: minutes below an hour, hours below a day, days otherwise.
func Remaining(stages []model.StageRecord, currentStage int) string {
	return humanizeMinutes(RemainingMinutes(stages, currentStage))
}

func humanizeMinutes(minutes float64) string {
	switch {
	case minutes < minutesPerHour:
		return fmt.Sprintf("%d minutes", int(minutes))
	case minutes < minutesPerDay:
		return fmt.Sprintf("%d hours", int(minutes)/minutesPerHour)
	default:
		return fmt.Sprintf("%d days", int(minutes)/minutesPerDay)
	}
}
