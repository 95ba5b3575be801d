package helper

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer cleans user supplied text. Rich text keeps safe markup, plain
// fields lose all of it.
type Sanitizer struct {
	rich  *bluemonday.Policy
	plain *bluemonday.Policy
}

func NewSanitizer() *Sanitizer {
	return &Sanitizer{
		rich:  bluemonday.UGCPolicy(),
		plain: bluemonday.StrictPolicy(),
	}
}

func (s *Sanitizer) RichText(in string) string {
	return strings.TrimSpace(s.rich.Sanitize(in))
}

// PlainText strips markup. Entities produced by the policy are decoded again
// so that "R&D" survives as typed.
func (s *Sanitizer) PlainText(in string) string {
	return strings.TrimSpace(html.UnescapeString(s.plain.Sanitize(in)))
}

// PlainList sanitizes every entry and drops the ones left empty.
func (s *Sanitizer) PlainList(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, v := range in {
		if clean := s.PlainText(v); clean != "" {
			out = append(out, clean)
		}
	}
	return out
}
