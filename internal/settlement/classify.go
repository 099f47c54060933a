// Package settlement classifies disputes and assembles settlement documents.
package settlement

import (
	"regexp"
	"strings"

	"github.com/xiaot623/gogo/mediator/internal/domain"
)

type rule struct {
	category domain.Category
	pattern  *regexp.Regexp
}

func keywords(words ...string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

// rules is evaluated in order and the first match wins. The order is part of
// the classifier's contract; reordering changes results for mixed texts.
var rules = []rule{
	{domain.CategoryEmployment, keywords("employer", "employee", "employment", "wage", "wages", "salary", "overtime", "wrongful termination", "fired", "workplace", "severance")},
	{domain.CategoryLandlordTenant, keywords("landlord", "tenant", "lease", "rent", "rental", "security deposit", "eviction", "evicted")},
	{domain.CategoryBusinessPartnership, keywords("partnership", "business partner", "co-founder", "cofounder", "shareholder", "joint venture", "dissolution")},
	{domain.CategoryConsumerProtection, keywords("consumer", "warranty", "merchant", "retailer", "defective product", "store credit")},
	{domain.CategoryIntellectualProperty, keywords("copyright", "trademark", "patent", "trade secret", "infringement", "intellectual property", "licensing")},
	{domain.CategoryInsurance, keywords("insurance", "insurer", "policyholder", "premium", "coverage", "claim denied", "adjuster")},
	{domain.CategoryConstruction, keywords("construction", "contractor", "subcontractor", "renovation", "remodel", "building permit", "roofing")},
	{domain.CategoryFamily, keywords("custody", "divorce", "child support", "alimony", "visitation", "inheritance", "spouse")},
	{domain.CategoryContract, keywords("breach", "breached", "clause", "agreement terms", "terms of the agreement", "signed agreement", "non-performance")},
	{domain.CategoryFinancial, keywords("payment", "payments", "invoice", "invoices", "loan", "debt", "refund", "money", "owed", "unpaid", "reimbursement")},
	{domain.CategoryService, keywords("service", "services", "freelance", "freelancer", "consultant", "quality of work", "deliverable", "deliverables")},
	{domain.CategoryProperty, keywords("property", "boundary", "fence", "neighbor", "neighbour", "vehicle", "damaged")},
}

// Classify maps a dispute title and description to a category. Texts that
// match no keyword default to contract.
func Classify(title, description string) domain.Category {
	text := title + " " + description
	for _, r := range rules {
		if r.pattern.MatchString(text) {
			return r.category
		}
	}
	return domain.CategoryContract
}
