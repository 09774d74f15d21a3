package discord

import (
	"regexp"
	"strconv"
	"strings"
)

// The model can embed directives in its replies. Both are removed from the
// text before it is sent to the channel.
var (
	timeoutPattern = regexp.MustCompile(`timeout\((\d+)\s*,\s*(.*?)\s*\);`)
	memoryPattern  = regexp.MustCompile(`(?s)memory\((.*?)\);`)
)

// Discord caps member timeouts at 28 days.
const maxTimeoutMinutes = 28*24*60 - 1

const defaultTimeoutReason = "requested by the model"

type timeoutDirective struct {
	Minutes int
	Reason  string
}

// parseTimeout extracts the first timeout directive from a reply. A duration
// that does not parse or is out of range yields ok=false; the directive is
// still stripped by stripTimeouts.
func parseTimeout(reply string) (timeoutDirective, bool) {
	match := timeoutPattern.FindStringSubmatch(reply)
	if match == nil {
		return timeoutDirective{}, false
	}

	minutes, err := strconv.Atoi(match[1])
	if err != nil || minutes <= 0 || minutes > maxTimeoutMinutes {
		return timeoutDirective{}, false
	}

	reason := strings.TrimSpace(match[2])
	if reason == "" {
		reason = defaultTimeoutReason
	}

	return timeoutDirective{Minutes: minutes, Reason: reason}, true
}

func stripTimeouts(reply string) string {
	return strings.TrimSpace(timeoutPattern.ReplaceAllString(reply, ""))
}

// extractMemories returns the contents of every memory directive, in order,
// and the reply with the directives removed.
func extractMemories(reply string) ([]string, string) {
	matches := memoryPattern.FindAllStringSubmatch(reply, -1)
	if matches == nil {
		return nil, reply
	}

	contents := make([]string, 0, len(matches))
	for _, match := range matches {
		if content := strings.TrimSpace(match[1]); content != "" {
			contents = append(contents, content)
		}
	}

	return contents, strings.TrimSpace(memoryPattern.ReplaceAllString(reply, ""))
}
