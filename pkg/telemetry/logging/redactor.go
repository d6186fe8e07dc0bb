package logging

import (
	"log/slog"
	"regexp"
	"strings"
)

// Redactor scrubs secrets from log attributes before they are written. It is
// installed as the handler's ReplaceAttr, so it sees every attribute of every
// record, including those added with Logger.With.
type Redactor struct {
	patterns []redactPattern
}

type redactPattern struct {
	regex       *regexp.Regexp
	replacement string
}

// Value patterns that are scrubbed wherever they appear in a string.
var defaultPatterns = []redactPattern{
	// Bearer tokens in forwarded headers
	{regexp.MustCompile(`Bearer\s+[a-zA-Z0-9\-._~+/]+=*`), "Bearer ***"},
	// Provider-style secret keys (sk-..., sk-ant-...)
	{regexp.MustCompile(`\bsk-[a-zA-Z0-9\-_]{8,}`), "sk-***"},
	// key=value credentials in URLs or messages
	{regexp.MustCompile(`(?i)(api[-_]?key|password|secret)=[^\s&]+`), "$1=***"},
}

// Attribute keys whose values are always redacted, compared in lower case.
var sensitiveKeys = map[string]bool{
	"authorization": true,
	"api_key":       true,
	"apikey":        true,
	"password":      true,
	"secret":        true,
	"credential":    true,
	"token":         true,
}

// Key suffixes that mark an attribute as sensitive. Token counts such as
// prompt_tokens do not match.
var sensitiveSuffixes = []string{"_key", "_secret", "_password", "_token"}

// NewRedactor creates a Redactor with the built-in patterns.
func NewRedactor() *Redactor {
	return &Redactor{patterns: defaultPatterns}
}

// ReplaceAttr implements slog.HandlerOptions.ReplaceAttr.
func (r *Redactor) ReplaceAttr(_ []string, a slog.Attr) slog.Attr {
	if r.isSensitiveKey(a.Key) {
		return slog.String(a.Key, redactValue(a.Value.String()))
	}
	if a.Value.Kind() == slog.KindString {
		if s := a.Value.String(); s != "" {
			if red := r.RedactString(s); red != s {
				return slog.String(a.Key, red)
			}
		}
	}
	return a
}

// RedactString scrubs secret-looking substrings from s.
func (r *Redactor) RedactString(s string) string {
	for _, p := range r.patterns {
		s = p.regex.ReplaceAllString(s, p.replacement)
	}
	return s
}

func (r *Redactor) isSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	if sensitiveKeys[k] {
		return true
	}
	for _, suffix := range sensitiveSuffixes {
		if strings.HasSuffix(k, suffix) {
			return true
		}
	}
	return false
}

// redactValue keeps a four character prefix of long values for correlation.
func redactValue(v string) string {
	if v == "" {
		return ""
	}
	if len(v) <= 8 {
		return "***"
	}
	return v[:4] + "***"
}
