package server

import (
	"bytes"
	"html/template"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

type markdownRenderer struct {
	engine    goldmark.Markdown
	sanitizer *bluemonday.Policy
}

func newMarkdownRenderer() *markdownRenderer {
	return &markdownRenderer{
		engine: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithUnsafe()),
		),
		sanitizer: bluemonday.UGCPolicy(),
	}
}

// Render converts generated Markdown into sanitized HTML safe to embed in pages.
func (r *markdownRenderer) Render(source string) template.HTML {
	if source == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := r.engine.Convert([]byte(source), &buf); err != nil {
		return template.HTML(r.sanitizer.Sanitize(template.HTMLEscapeString(source)))
	}
	return template.HTML(r.sanitizer.Sanitize(buf.String()))
}
