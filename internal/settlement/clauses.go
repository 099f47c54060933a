package settlement

import "regexp"

// Clause is a boilerplate provision appended to every agreement.
type Clause struct {
	Title string
	Text  string
}

var boilerplate = []Clause{
	{"Confidentiality", "The parties shall keep the terms of this agreement and the mediation communications confidential, except as required by law."},
	{"No Admission of Liability", "This agreement is a compromise of disputed claims and is not an admission of liability or wrongdoing by any party."},
	{"Entire Agreement", "This agreement constitutes the entire agreement between the parties on its subject matter and supersedes all prior discussions."},
	{"Governing Law", "This agreement is governed by the laws of the jurisdiction in which it is executed."},
	{"Severability", "If any provision of this agreement is held unenforceable, the remaining provisions remain in full force and effect."},
	{"Enforceability", "The parties intend this agreement to be legally binding and enforceable once signed by both parties."},
}

var timeOfEssence = Clause{
	Title: "Time is of the Essence",
	Text:  "Time is of the essence with respect to every deadline and period for performance stated in this agreement.",
}

var deadlinePattern = regexp.MustCompile(`(?i)\b(within|by|deadline|days|weeks|months)\b`)

// HasDeadline reports whether the recommendation text mentions a deadline.
func HasDeadline(aiText string) bool {
	return deadlinePattern.MatchString(aiText)
}
