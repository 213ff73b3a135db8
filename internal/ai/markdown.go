package ai

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/yuin/goldmark"
)

// RenderMarkdown converts refinement notes to HTML for embedding in
// responses. Raw HTML in the source is not rendered.
func RenderMarkdown(markdown string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	//nolint:gosec // goldmark escapes raw HTML by default.
	return template.HTML(buf.String()), nil
}
