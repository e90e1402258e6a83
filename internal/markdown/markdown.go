// Package markdown renders assistant replies and device documents as HTML
// for the web front end.
package markdown

import (
	"bytes"
	"encoding/json"
	"regexp"

	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

// DefaultStyle is the chroma style used for fenced code.
const DefaultStyle = "monokai"

// Renderer converts markdown to HTML. Raw HTML in the input is escaped since
// replies come from the model.
type Renderer struct {
	md goldmark.Markdown
}

// NewRenderer builds a GFM renderer that highlights code with style.
func NewRenderer(style string) *Renderer {
	if style == "" {
		style = DefaultStyle
	}
	return &Renderer{md: goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			highlighting.NewHighlighting(highlighting.WithStyle(style)),
		),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		// Tool replies put one device per line.
		goldmark.WithRendererOptions(html.WithHardWraps()),
	)}
}

// Render returns "" for empty input or on a conversion error; the page then
// falls back to plain text.
func (r *Renderer) Render(content string) string {
	if content == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(content), &buf); err != nil {
		return ""
	}
	return externalLinks(buf.String())
}

// RenderJSON indents doc when it is valid JSON and renders it as a
// highlighted json block.
func (r *Renderer) RenderJSON(doc string) string {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, []byte(doc), "", "  "); err == nil {
		doc = pretty.String()
	}
	return r.Render("```json\n" + doc + "\n```")
}

var std = NewRenderer(DefaultStyle)

// Render converts a chat reply with the default renderer.
func Render(content string) string { return std.Render(content) }

// RenderJSON renders a JSON document with the default renderer.
func RenderJSON(doc string) string { return std.RenderJSON(doc) }

var absLink = regexp.MustCompile(`<a href="(https?://[^"]*)"`)

func externalLinks(s string) string {
	return absLink.ReplaceAllStringFunc(s, func(m string) string {
		return m + ` target="_blank" rel="noopener noreferrer"`
	})
}
