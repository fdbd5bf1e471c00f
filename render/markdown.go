package render

import (
	"bytes"
	"regexp"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"go.uber.org/zap"
)

// Markdown converts page content to HTML. Raw HTML in the source is allowed
// through goldmark and then cleaned by a bluemonday UGC policy.
type Markdown struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
	logger *zap.Logger
}

// NewMarkdown creates a GFM renderer.
func NewMarkdown(logger *zap.Logger) *Markdown {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("code", "pre")
	policy.AllowAttrs("id").OnElements("h1", "h2", "h3", "h4", "h5", "h6")
	// GFM task list items.
	policy.AllowAttrs("type").Matching(regexp.MustCompile(`^checkbox$`)).OnElements("input")
	policy.AllowAttrs("checked", "disabled").OnElements("input")
	return &Markdown{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
			goldmark.WithRendererOptions(html.WithUnsafe()),
		),
		policy: policy,
		logger: logger,
	}
}

// Render returns sanitized HTML, or "" if conversion fails.
func (m *Markdown) Render(source string) string {
	if source == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := m.md.Convert([]byte(source), &buf); err != nil {
		m.logger.Warn("markdown conversion failed", zap.Error(err))
		return ""
	}
	return m.policy.Sanitize(buf.String())
}
