package pricing

import (
	"fmt"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-grading/app/entity"
)

// OrderSummary renders the plain text snapshot stored with a submission.
func OrderSummary(sub *entity.Submission, at time.Time) string {
	cards := sub.ActiveCards()
	lines := make([]string, 0, len(cards))
	for _, c := range cards {
		lines = append(lines, fmt.Sprintf("%s, %s, %s #%s", c.Player, c.Year, c.Set, c.CardNumber))
	}
	total := FormatCents(sub.Pricing.TotalCents)

	var b strings.Builder
	fmt.Fprintf(&b, "ORDER SUMMARY / %s\n\n", at.UTC().Format(time.RFC1123))
	fmt.Fprintf(&b, "NUMBER OF CARDS:\n%d CARDS: %d\n\n", sub.CardCount, len(cards))
	b.WriteString("(OPTIONAL) CARD LIST:\n\n")
	if len(lines) > 0 {
		b.WriteString(strings.Join(lines, "\n"))
		b.WriteString("\n")
	}
	b.WriteString("\nPRICING CALCULATION:\n")
	fmt.Fprintf(&b, "Service Type: %s\n", sub.ServiceTier)
	fmt.Fprintf(&b, "Base Price: $%s\n", FormatCents(sub.Pricing.BasePriceCents))
	fmt.Fprintf(&b, "Processing Fee: $%s\n", FormatCents(sub.Pricing.ProcessingFeeCents))
	fmt.Fprintf(&b, "FINAL ORDER TOTAL:\n$%s USD", total)
	return b.String()
}
