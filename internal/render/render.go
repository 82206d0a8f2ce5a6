// Package render builds the final post string from post_template and
// enforces the hard character-count cap, the last step before a Publisher
// is invoked.
package render

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// ellipsis is the single-codepoint truncation marker.
const ellipsis = "…"

// Vars are the three substitution variables post_template may reference.
type Vars struct {
	Title   string
	Summary string
	URL     string
}

// rewriteVars translates the spec's documented substitution tokens
// ({{title}}, {{summary}}, {{url}}) into text/template field references,
// so post_template authors write the contract's variable names verbatim
// while the engine underneath is plain text/template.
func rewriteVars(tmplSource string) string {
	r := strings.NewReplacer(
		"{{title}}", "{{.Title}}",
		"{{summary}}", "{{.Summary}}",
		"{{url}}", "{{.URL}}",
	)
	return r.Replace(tmplSource)
}

// Render executes tmpl with vars, then hard-truncates the result to
// maxChars Unicode codepoints, appending ellipsis if truncation occurred.
func Render(tmplSource string, vars Vars, maxChars int) (string, error) {
	tmpl, err := template.New("post").Parse(rewriteVars(tmplSource))
	if err != nil {
		return "", fmt.Errorf("render: parse post_template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("render: execute post_template: %w", err)
	}

	return Truncate(buf.String(), maxChars), nil
}

// Truncate hard-caps s to maxChars Unicode codepoints, appending a
// single-codepoint ellipsis if truncation occurred. maxChars <= 0 disables
// the cap.
func Truncate(s string, maxChars int) string {
	if maxChars <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	if maxChars == 0 {
		return ellipsis
	}
	return string(runes[:maxChars-1]) + ellipsis
}
