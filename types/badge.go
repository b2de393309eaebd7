package types

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var badgeCaser = cases.Title(language.English)

// BadgeLabel renders a tool name as a human-readable badge label for the
// invoked-tools summary, e.g. "take_screenshot" -> "Take Screenshot".
func BadgeLabel(tool string) string {
	tool = strings.TrimSpace(tool)
	if tool == "" {
		return ""
	}
	if tool == ToolMessage {
		return "Message"
	}
	tool = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(tool)
	return badgeCaser.String(tool)
}
