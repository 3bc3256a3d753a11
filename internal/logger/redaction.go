package logger

import (
	"io"
	"regexp"
)

const redacted = "[REDACTED]"

// Redactor masks credentials in log output
type Redactor struct {
	rules []rule
}

type rule struct {
	re   *regexp.Regexp
	repl string
}

// keyValue keeps the key and separator of a matched pair and masks the value
const keyValue = "${1}${2}" + redacted

// NewRedactor creates a redactor covering API keys, tokens and passwords
func NewRedactor() *Redactor {
	return &Redactor{
		rules: []rule{
			// ES-API-KEY header, api_key fields and flags
			{regexp.MustCompile(`(?i)(es-api-key|api[_-]?key)("?\s*[:=]\s*"?)[^\s",}]+`), keyValue},

			// Authorization: Token <token> / Bearer <token>
			{regexp.MustCompile(`(Token|Bearer)(\s+)[a-zA-Z0-9._-]{8,}`), keyValue},

			// Telegram bot tokens
			{regexp.MustCompile(`\d{8,10}:[a-zA-Z0-9_-]{30,}`), redacted},

			// JSON or key=value passwords and secrets
			{regexp.MustCompile(`(?i)(password|secret|pwd)("?\s*[:=]\s*"?)[^\s",}]+`), keyValue},

			// Auth tokens
			{regexp.MustCompile(`(?i)(token)("?\s*[:=]\s*"?)[a-zA-Z0-9._-]{8,}`), keyValue},
		},
	}
}

// AddPattern adds a custom redaction pattern; the whole match is masked
func (r *Redactor) AddPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	r.rules = append(r.rules, rule{re: re, repl: redacted})
	return nil
}

// Redact masks sensitive values in s
func (r *Redactor) Redact(s string) string {
	result := s
	for _, rule := range r.rules {
		result = rule.re.ReplaceAllString(result, rule.repl)
	}
	return result
}

// Wrap wraps an io.Writer to redact sensitive information
func (r *Redactor) Wrap(w io.Writer) io.Writer {
	return &redactingWriter{
		writer:   w,
		redactor: r,
	}
}

type redactingWriter struct {
	writer   io.Writer
	redactor *Redactor
}

// Write reports len(p) on success so callers never see a short write
func (w *redactingWriter) Write(p []byte) (int, error) {
	if _, err := w.writer.Write([]byte(w.redactor.Redact(string(p)))); err != nil {
		return 0, err
	}
	return len(p), nil
}
