package settlement

import (
	"strings"

	"github.com/xiaot623/gogo/mediator/internal/domain"
)

// Section is a named part of a category template. Bodies may reference the
// placeholders {{party_a}}, {{party_b}} and {{title}}.
type Section struct {
	Heading string
	Body    string
}

// Template is the category specific body of a settlement agreement.
type Template struct {
	Category domain.Category
	Name     string
	Sections []Section
}

// Header returns the template section header, e.g. "FINANCIAL SETTLEMENT AGREEMENT".
func (t Template) Header() string {
	return strings.ToUpper(t.Name) + " SETTLEMENT AGREEMENT"
}

var templates = map[domain.Category]Template{
	domain.CategoryEmployment: {
		Name: "Employment",
		Sections: []Section{
			{"Separation and Compensation", "{{party_a}} and {{party_b}} agree that all wages, salary and benefits arising from the employment relationship described in \"{{title}}\" are resolved by the terms below."},
			{"Release of Employment Claims", "Each party releases the other from claims arising out of the employment relationship up to the date of this agreement."},
			{"References", "The parties will provide neutral references limited to dates of employment and position held."},
		},
	},
	domain.CategoryLandlordTenant: {
		Name: "Landlord-Tenant",
		Sections: []Section{
			{"Premises and Tenancy", "This agreement resolves the tenancy dispute between {{party_a}} and {{party_b}} concerning \"{{title}}\"."},
			{"Security Deposit", "Any security deposit shall be returned or applied as set out in the recommendation above."},
			{"Possession", "The parties agree on possession and move-out obligations as recommended, and neither party will commence eviction proceedings on the settled matters."},
		},
	},
	domain.CategoryBusinessPartnership: {
		Name: "Business Partnership",
		Sections: []Section{
			{"Partnership Interests", "{{party_a}} and {{party_b}} agree on the division of partnership interests related to \"{{title}}\"."},
			{"Assets and Liabilities", "Business assets and liabilities are allocated as set out in the recommendation above."},
			{"Ongoing Obligations", "Each party remains responsible for obligations it incurred individually after the effective date."},
		},
	},
	domain.CategoryConsumerProtection: {
		Name: "Consumer Protection",
		Sections: []Section{
			{"Product or Service", "This agreement resolves the consumer complaint between {{party_a}} and {{party_b}} regarding \"{{title}}\"."},
			{"Remedy", "The business party will provide the refund, replacement or correction recommended above."},
		},
	},
	domain.CategoryIntellectualProperty: {
		Name: "Intellectual Property",
		Sections: []Section{
			{"Subject Matter", "This agreement concerns the intellectual property at issue in \"{{title}}\" between {{party_a}} and {{party_b}}."},
			{"Use and Licensing", "Any continued use of the intellectual property is permitted only on the licensing terms recommended above."},
			{"Cessation", "Uses not covered by those terms shall cease."},
		},
	},
	domain.CategoryInsurance: {
		Name: "Insurance",
		Sections: []Section{
			{"Claim", "This agreement resolves the insurance claim dispute between {{party_a}} and {{party_b}} concerning \"{{title}}\"."},
			{"Claim Payment", "Payment on the claim shall be made as recommended above in full satisfaction of the disputed claim."},
		},
	},
	domain.CategoryConstruction: {
		Name: "Construction",
		Sections: []Section{
			{"Project", "This agreement resolves the construction dispute between {{party_a}} and {{party_b}} concerning \"{{title}}\"."},
			{"Completion and Remediation", "Outstanding or defective work shall be completed or remediated on the schedule recommended above."},
			{"Payment Terms", "Payments tied to the project shall follow completion of the agreed work."},
		},
	},
	domain.CategoryFamily: {
		Name: "Family Mediation",
		Sections: []Section{
			{"Family Matters", "{{party_a}} and {{party_b}} enter this agreement to resolve the family matters described in \"{{title}}\"."},
			{"Welfare of Children", "Any arrangement affecting children shall be made in the best interests of the children."},
			{"Support and Property", "Support and property division shall follow the recommendation above."},
		},
	},
	domain.CategoryContract: {
		Name: "Contract",
		Sections: []Section{
			{"Underlying Agreement", "This agreement resolves the dispute between {{party_a}} and {{party_b}} arising from the agreement described in \"{{title}}\"."},
			{"Performance", "Each party will perform the remaining obligations recommended above, and all other claims of breach are settled."},
		},
	},
	domain.CategoryFinancial: {
		Name: "Financial",
		Sections: []Section{
			{"Amounts in Dispute", "This agreement resolves the financial dispute between {{party_a}} and {{party_b}} concerning \"{{title}}\"."},
			{"Payment Schedule", "Payment shall be made according to the schedule recommended above."},
			{"Satisfaction", "Upon completion of the agreed payments the disputed amounts are satisfied in full."},
		},
	},
	domain.CategoryService: {
		Name: "Service",
		Sections: []Section{
			{"Services", "This agreement resolves the dispute between {{party_a}} and {{party_b}} regarding the services described in \"{{title}}\"."},
			{"Remedy", "Services shall be completed, corrected or compensated as recommended above."},
		},
	},
	domain.CategoryProperty: {
		Name: "Property",
		Sections: []Section{
			{"Property", "This agreement resolves the property dispute between {{party_a}} and {{party_b}} concerning \"{{title}}\"."},
			{"Repair and Compensation", "Damage shall be repaired or compensated as recommended above."},
		},
	},
}

// TemplateFor returns the template of a category, falling back to contract.
func TemplateFor(c domain.Category) Template {
	t, ok := templates[c]
	if !ok {
		c = domain.CategoryContract
		t = templates[c]
	}
	t.Category = c
	return t
}
