package settlement

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xiaot623/gogo/mediator/internal/domain"
)

// Input holds everything the assembled document depends on.
type Input struct {
	Category      domain.Category
	CaseReference string
	Date          time.Time
	Title         string
	Description   string
	PartyA        string
	PartyB        string
	AIText        string
}

const dateLayout = "January 2, 2006"

// Assemble renders the settlement document. It is a pure function of its input.
func Assemble(in Input) string {
	tmpl := TemplateFor(in.Category)
	placeholders := strings.NewReplacer(
		"{{party_a}}", in.PartyA,
		"{{party_b}}", in.PartyB,
		"{{title}}", in.Title,
	)

	var b strings.Builder
	section := 0
	heading := func(title string) {
		section++
		fmt.Fprintf(&b, "\n%d. %s\n", section, strings.ToUpper(title))
	}

	b.WriteString(tmpl.Header())
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Case Reference: %s\n", in.CaseReference)
	fmt.Fprintf(&b, "Date: %s\n", in.Date.UTC().Format(dateLayout))
	fmt.Fprintf(&b, "Matter: %s\n", in.Title)
	fmt.Fprintf(&b, "Party A: %s\n", in.PartyA)
	fmt.Fprintf(&b, "Party B: %s\n", in.PartyB)

	heading("Background")
	b.WriteString(strings.TrimSpace(in.Description))
	b.WriteString("\n")

	heading("Mediator Recommendation")
	b.WriteString(strings.TrimSpace(in.AIText))
	b.WriteString("\n")

	for _, s := range tmpl.Sections {
		heading(s.Heading)
		b.WriteString(placeholders.Replace(s.Body))
		b.WriteString("\n")
	}

	clauses := boilerplate
	if HasDeadline(in.AIText) {
		clauses = append(append([]Clause(nil), boilerplate...), timeOfEssence)
	}
	for _, c := range clauses {
		heading(c.Title)
		b.WriteString(c.Text)
		b.WriteString("\n")
	}

	heading("Signatures")
	b.WriteString("By signing below, both parties agree to the terms of this settlement.\n\n")
	fmt.Fprintf(&b, "%s\nSignature: ____________________  Date: ____________\n\n", in.PartyA)
	fmt.Fprintf(&b, "%s\nSignature: ____________________  Date: ____________", in.PartyB)

	return b.String()
}

// EnvelopeDocument appends the settlement amount section to the document sent for signature.
func EnvelopeDocument(text string, amount *decimal.Decimal) string {
	if amount == nil {
		return text
	}
	return text + "\n\nSETTLEMENT AMOUNT\n$" + amount.StringFixed(2)
}

// Filename is the download name of a settlement document.
func Filename(code string) string {
	return "settlement-" + code + ".txt"
}
