package llm

import "strings"

// StripCodeFence removes a code fence wrapped around a whole model answer,
// e.g. ```json ... ``` or ```markdown ... ```. Answers that are not fully
// fenced are returned trimmed but otherwise unchanged.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}

	body := strings.TrimSuffix(strings.TrimPrefix(s, "```"), "```")
	// Drop the info string (json, markdown, md, ...) on the opening line.
	if nl := strings.IndexByte(body, '\n'); nl >= 0 && !strings.ContainsAny(body[:nl], " \t`") {
		body = body[nl+1:]
	}
	if strings.Contains(body, "\n```") && !strings.HasSuffix(strings.TrimRight(body, " \t\n"), "\n```") {
		return s
	}
	return strings.TrimSpace(body)
}
