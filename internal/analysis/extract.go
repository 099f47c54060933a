package analysis

import (
	"strings"

	"github.com/xiaot623/gogo/mediator/internal/domain"
)

// Info is advisory structured information extracted from a conversation.
type Info struct {
	DisputeType       string    `json:"dispute_type"`
	KeyIssues         []string  `json:"key_issues,omitempty"`
	Positions         Positions `json:"positions"`
	ProposedSolutions []string  `json:"proposed_solutions,omitempty"`
	Source            string    `json:"source"`
}

// Positions holds each party's stated position.
type Positions struct {
	PartyA string `json:"party_a,omitempty"`
	PartyB string `json:"party_b,omitempty"`
}

const (
	SourceAI       = "ai"
	SourceKeywords = "keywords"
)

// AIExtractionThreshold is the minimum log length before AI extraction is tried.
const AIExtractionThreshold = 3

type keywordRule struct {
	label    string
	keywords []string
}

var disputeTypeRules = []keywordRule{
	{"Payment Dispute", []string{"payment", "money", "paid"}},
	{"Contract Dispute", []string{"contract", "agreement"}},
	{"Service Dispute", []string{"service", "work"}},
	{"Product Dispute", []string{"product", "item", "purchase"}},
}

var issueRules = []keywordRule{
	{"Timing/Delivery Issues", []string{"late", "delay"}},
	{"Quality Concerns", []string{"quality", "defect", "problem"}},
	{"Communication Issues", []string{"communication", "response"}},
}

// ExtractKeywords is the deterministic fallback extractor.
func ExtractKeywords(messages []domain.Message) Info {
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		parts = append(parts, m.Content)
	}
	text := strings.ToLower(strings.Join(parts, " "))

	info := Info{DisputeType: "General Dispute", Source: SourceKeywords}
	for _, r := range disputeTypeRules {
		if containsAny(text, r.keywords) {
			info.DisputeType = r.label
			break
		}
	}
	for _, r := range issueRules {
		if containsAny(text, r.keywords) {
			info.KeyIssues = append(info.KeyIssues, r.label)
		}
	}
	return info
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// Transcript renders the log as "role: content" lines for prompting.
func Transcript(messages []domain.Message) string {
	var b strings.Builder
	for i, m := range messages {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(string(m.SenderRole))
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	return b.String()
}
