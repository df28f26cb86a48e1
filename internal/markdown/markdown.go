// Package markdown renders post descriptions to HTML.
package markdown

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
)

// Renderer converts Markdown to HTML. It is stateless and safe for
// concurrent use.
type Renderer struct {
	engine goldmark.Markdown
}

// Options tune the renderer.
type Options struct {
	// AllowRawHTML passes inline HTML through. Post bodies written in a rich
	// text editor arrive as HTML, so the admin UI turns this on.
	AllowRawHTML bool
	HardWraps    bool
}

// New builds a Renderer with GFM, linkify, and task lists enabled.
func New(opts Options) *Renderer {
	var rendererOptions []goldmark.Option
	var htmlOptions []renderer.Option
	if opts.AllowRawHTML {
		htmlOptions = append(htmlOptions, html.WithUnsafe())
	}
	if opts.HardWraps {
		htmlOptions = append(htmlOptions, html.WithHardWraps())
	}
	if len(htmlOptions) > 0 {
		rendererOptions = append(rendererOptions, goldmark.WithRendererOptions(htmlOptions...))
	}

	engine := goldmark.New(append([]goldmark.Option{
		goldmark.WithExtensions(extension.GFM, extension.Linkify, extension.TaskList),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	}, rendererOptions...)...)
	return &Renderer{engine: engine}
}

// Render converts src to HTML.
func (r *Renderer) Render(src string) (string, error) {
	var buf bytes.Buffer
	if err := r.engine.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("markdown render: %w", err)
	}
	return buf.String(), nil
}
