package pipeline

import (
	"fmt"
	"strings"

	"newswatcher/internal/model"
)

const maxNotifyContent = 300

// FormatMatch formats a matched item as a notification message.
func FormatMatch(taskName string, item model.Item, thinking string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]\n\n", taskName)
	b.WriteString(item.Title)
	if content := truncate(item.Content, maxNotifyContent); content != "" && content != item.Title {
		b.WriteString("\n\n")
		b.WriteString(content)
	}
	if thinking != "" {
		fmt.Fprintf(&b, "\n\nWhy: %s", thinking)
	}
	if item.URL != "" {
		b.WriteString("\n\n")
		b.WriteString(item.URL)
	}
	return b.String()
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
