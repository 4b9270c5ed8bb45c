package auditlog

import "regexp"

// piiPattern replaces one kind of personal data in logged bodies.
type piiPattern struct {
	label   string
	pattern *regexp.Regexp
}

// Order matters: card numbers are matched before phone numbers.
var piiPatterns = []piiPattern{
	{"EMAIL", regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)},
	{"CC", regexp.MustCompile(`\b\d{4}[\s\-]?\d{4}[\s\-]?\d{4}[\s\-]?\d{4}\b`)},
	{"PHONE", regexp.MustCompile(`(?:\+\d{1,3}[\s.\-]?)?\(?\d{3,4}\)?[\s.\-]?\d{3,4}[\s.\-]?\d{3,4}\b`)},
	{"IP", regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\b`)},
}

// Redact masks e-mail addresses, card numbers, phone numbers and IPv4
// addresses in text.
func Redact(text string) string {
	for _, p := range piiPatterns {
		text = p.pattern.ReplaceAllString(text, "["+p.label+"]")
	}
	return text
}
