package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/asmaf9056/afatimachtbot36/internal/catalog"
	"github.com/asmaf9056/afatimachtbot36/internal/domain"
)

// Retriever looks up indexed website text relevant to a query.
type Retriever interface {
	Search(ctx context.Context, query string, limit int) ([]domain.Chunk, error)
}

// BuildPreamble renders the fixed instructions and catalog facts, followed by any retrieved context.
func BuildPreamble(c *catalog.Catalog, chunks []domain.Chunk) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(c.Instructions))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "%s COURSES:\n", strings.ToUpper(c.Organization))
	for _, ci := range c.Courses {
		if ci.Summary != "" {
			fmt.Fprintf(&b, "- %s: %s\n", ci.Name, ci.Summary)
		} else {
			fmt.Fprintf(&b, "- %s\n", ci.Name)
		}
	}
	if len(c.Features) > 0 {
		b.WriteString("\nFEATURES:\n")
		for _, f := range c.Features {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}
	contact := make([]string, 0, 2)
	if c.Website != "" {
		contact = append(contact, c.Website)
	}
	if c.ContactEmail != "" {
		contact = append(contact, c.ContactEmail)
	}
	if len(contact) > 0 {
		fmt.Fprintf(&b, "\nCONTACT: %s\n", strings.Join(contact, " | "))
	}

	if len(chunks) > 0 {
		b.WriteString("\nWEBSITE CONTEXT:\n")
		for _, ch := range chunks {
			b.WriteString(strings.TrimSpace(ch.Content))
			b.WriteString("\n---\n")
		}
	}
	return b.String()
}
