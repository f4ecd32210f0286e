package oracle

import "regexp"

// Models wrap JSON in markdown fences and chatter more often than not.
var (
	objectBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*\\})\\s*```")
	objectAny   = regexp.MustCompile(`(?s)\{.*\}`)
	arrayBlock  = regexp.MustCompile("(?s)```(?:json)?\\s*(\\[.*\\])\\s*```")
	arrayAny    = regexp.MustCompile(`(?s)\[.*\]`)
	trailComma  = regexp.MustCompile(`,\s*([}\]])`)
)

func extractJSON(content string) string {
	if m := objectBlock.FindStringSubmatch(content); len(m) > 1 {
		return trailComma.ReplaceAllString(m[1], "$1")
	}
	return trailComma.ReplaceAllString(objectAny.FindString(content), "$1")
}

func extractJSONArray(content string) string {
	if m := arrayBlock.FindStringSubmatch(content); len(m) > 1 {
		return trailComma.ReplaceAllString(m[1], "$1")
	}
	return trailComma.ReplaceAllString(arrayAny.FindString(content), "$1")
}
