package analysis

var stageRecommendations = map[Stage][]string{
	StageInitial: {
		"Encourage both parties to share their perspective",
		"Focus on understanding what happened",
	},
	StageDisputeClarification: {
		"Identify specific issues and concerns",
		"Ask clarifying questions",
	},
	StagePositionSharing: {
		"Have each party state their desired outcome",
		"Explore underlying interests and needs",
	},
	StageNegotiation: {
		"Brainstorm potential solutions together",
		"Look for areas of compromise",
	},
	StageResolution: {
		"Summarize agreed terms clearly",
		"Confirm mutual understanding",
	},
}

const balanceHintThreshold = 70

// Recommendations returns advisory guidance for the current stage.
func Recommendations(m Metrics) []string {
	recs := append([]string(nil), stageRecommendations[m.CurrentStage]...)
	if m.ParticipationBalance < balanceHintThreshold {
		recs = append(recs, "Encourage more balanced participation from both parties")
	}
	return recs
}
