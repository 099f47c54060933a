// Package analysis derives negotiation stage and participation metrics from
// a session's message log.
package analysis

// Stage is a discrete phase of the negotiation.
type Stage string

const (
	StageInitial              Stage = "initial"
	StageDisputeClarification Stage = "dispute_clarification"
	StagePositionSharing      Stage = "position_sharing"
	StageNegotiation          Stage = "negotiation"
	StageResolution           Stage = "resolution"
)

// stageOrder is the fixed forward ordering; the index is the stage rank.
var stageOrder = []Stage{
	StageInitial,
	StageDisputeClarification,
	StagePositionSharing,
	StageNegotiation,
	StageResolution,
}

// Rank returns the position of the stage in the ordering, or 0 when unknown.
func (s Stage) Rank() int {
	for i, st := range stageOrder {
		if st == s {
			return i
		}
	}
	return 0
}

// StageAt returns the stage with the given rank, clamped to the valid range.
func StageAt(rank int) Stage {
	if rank < 0 {
		rank = 0
	}
	if rank >= len(stageOrder) {
		rank = len(stageOrder) - 1
	}
	return stageOrder[rank]
}

// IsFinal reports whether the stage cannot advance further.
func (s Stage) IsFinal() bool {
	return s.Rank() == len(stageOrder)-1
}

// StageForCount maps a message count to the derived stage.
func StageForCount(n int) Stage {
	switch {
	case n >= 15:
		return StageResolution
	case n >= 12:
		return StageNegotiation
	case n >= 8:
		return StagePositionSharing
	case n >= 4:
		return StageDisputeClarification
	}
	return StageInitial
}

// ProgressForCount maps a message count to a 0..100 progress score.
func ProgressForCount(n int) int {
	p := n * 100 / 20
	if p > 100 {
		return 100
	}
	return p
}
