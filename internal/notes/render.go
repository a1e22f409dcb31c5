package notes

import (
	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
)

// RenderMarkdown converts note content from Markdown to an HTML fragment.
// The output is sanitized with the UGC policy; raw <script> and event
// handler attributes never survive.
func RenderMarkdown(content string) string {
	if content == "" {
		return ""
	}

	extensions := parser.CommonExtensions | parser.AutoHeadingIDs | parser.NoEmptyLineBeforeBlock
	p := parser.NewWithExtensions(extensions)
	doc := p.Parse([]byte(content))

	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{
		Flags: mdhtml.CommonFlags | mdhtml.HrefTargetBlank,
	})
	rendered := markdown.Render(doc, renderer)

	return string(bluemonday.UGCPolicy().SanitizeBytes(rendered))
}
