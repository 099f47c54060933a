package analysis

import (
	"math"

	"github.com/xiaot623/gogo/mediator/internal/domain"
)

// Override is the persisted operator adjustment applied on top of derived values.
type Override struct {
	StageRank int `json:"stage_rank"`
	Progress  int `json:"progress"`
}

// Metrics is the projection of a message log.
type Metrics struct {
	MessageCount         int     `json:"message_count"`
	ParticipationBalance float64 `json:"participation_balance"`
	ProgressScore        int     `json:"progress_score"`
	CurrentStage         Stage   `json:"current_stage"`
	DerivedStage         Stage   `json:"derived_stage"`
}

// Analyze computes metrics from the ordered message log. The effective stage
// and progress never fall below the override.
func Analyze(messages []domain.Message, override Override) Metrics {
	n := len(messages)
	derived := StageForCount(n)

	rank := derived.Rank()
	if override.StageRank > rank {
		rank = override.StageRank
	}
	progress := ProgressForCount(n)
	if override.Progress > progress {
		progress = override.Progress
	}
	if progress > 100 {
		progress = 100
	}

	return Metrics{
		MessageCount:         n,
		ParticipationBalance: Balance(messages),
		ProgressScore:        progress,
		CurrentStage:         StageAt(rank),
		DerivedStage:         derived,
	}
}

// Balance returns 100 for an even split between the parties and degrades
// toward 0 as one party dominates. Mediator messages are excluded.
func Balance(messages []domain.Message) float64 {
	var a, b int
	for _, m := range messages {
		switch m.SenderRole {
		case domain.SenderRolePartyA:
			a++
		case domain.SenderRolePartyB:
			b++
		}
	}
	total := a + b
	if total == 0 {
		return 50
	}
	r := float64(a) / float64(total)
	return 100 - math.Abs(50-r*100)
}

// Advance moves the effective stage one step forward and bumps progress by 20.
// It returns the new override and false when the stage is already final.
func Advance(current Metrics) (Override, bool) {
	if current.CurrentStage.IsFinal() {
		return Override{}, false
	}
	progress := current.ProgressScore + 20
	if progress > 100 {
		progress = 100
	}
	return Override{
		StageRank: current.CurrentStage.Rank() + 1,
		Progress:  progress,
	}, true
}
