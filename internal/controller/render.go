package controller

import (
	"fmt"
	"strings"

	"github.com/xaenox/eco-bot/internal/models"
)

// snippetLength is the character budget for content previews.
const snippetLength = 180

// renderItems formats a numbered list. startIndex continues numbering
// across category pages.
func renderItems(items []models.Item, startIndex int) string {
	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "%d. %s", startIndex+i, item.Title)
		if item.SourceURL != "" {
			b.WriteString("\n" + item.SourceURL)
		}
		if s := snippet(item.Content); s != "" {
			b.WriteString("\n" + s)
		}
	}
	return b.String()
}

// snippet truncates content to snippetLength runes at the last whole-word
// boundary and marks the cut with an ellipsis.
func snippet(content string) string {
	content = strings.TrimSpace(content)
	runes := []rune(content)
	if len(runes) <= snippetLength {
		return content
	}

	cut := string(runes[:snippetLength])
	if i := strings.LastIndexAny(cut, " \t\n"); i > 0 {
		cut = cut[:i]
	}

	return strings.TrimRight(cut, " \t\n") + "…"
}
