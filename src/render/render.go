// Package render formats conversation text for the terminal: fenced code
// blocks are highlighted, inline markers and citations are styled, and
// listings are truncated to the terminal width.
package render

import (
	"regexp"
	"strings"

	"github.com/charmbracelet/x/ansi"

	"github.com/elee1766/orbital/src/theme"
)

var (
	errorMarker   = regexp.MustCompile(`\[Error: [^\]]*\]`)
	stoppedMarker = regexp.MustCompile(`\[Stopped\]`)
	citation      = regexp.MustCompile(`\[(\d{1,2})\]`)
)

// Options configures a Renderer.
type Options struct {
	Styles theme.Styles
	// Highlight enables syntax highlighting of fenced code blocks.
	Highlight bool
	// CodeStyle is a chroma style name. Defaults to monokai.
	CodeStyle string
}

// Renderer formats message text.
type Renderer struct {
	styles    theme.Styles
	highlight bool
	codeStyle string
}

func New(opts Options) *Renderer {
	return &Renderer{
		styles:    opts.Styles,
		highlight: opts.Highlight,
		codeStyle: opts.CodeStyle,
	}
}

// Content renders assistant content.
func (r *Renderer) Content(text string) string {
	var out strings.Builder
	for i, seg := range splitFences(text) {
		if i > 0 {
			out.WriteByte('\n')
		}
		if seg.code {
			out.WriteString(seg.fence)
			out.WriteByte('\n')
			body := seg.text
			if r.highlight && body != "" {
				body = trimFinalNewline(Highlight(body+"\n", seg.language, r.codeStyle))
			}
			out.WriteString(body)
			if seg.closed {
				out.WriteString("\n```")
			}
			continue
		}
		out.WriteString(r.prose(seg.text))
	}
	return out.String()
}

// Reasoning renders the reasoning trace of a message.
func (r *Renderer) Reasoning(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	return r.styles.Reasoning.Render(text)
}

func (r *Renderer) prose(text string) string {
	text = errorMarker.ReplaceAllStringFunc(text, func(m string) string { return r.styles.Error.Render(m) })
	text = stoppedMarker.ReplaceAllStringFunc(text, func(m string) string { return r.styles.Notice.Render(m) })
	text = citation.ReplaceAllStringFunc(text, func(m string) string { return r.styles.Citation.Render(m) })
	return text
}

type segment struct {
	text     string
	code     bool
	fence    string
	language string
	closed   bool
}

// splitFences cuts text into prose and ``` fenced code segments. An
// unterminated fence runs to the end of text, which is what a stream in
// progress looks like.
func splitFences(text string) []segment {
	var (
		segs  []segment
		lines []string
		cur   *segment
	)
	flush := func() {
		if lines != nil {
			segs = append(segs, segment{text: strings.Join(lines, "\n")})
		}
		lines = nil
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case cur == nil && strings.HasPrefix(trimmed, "```"):
			flush()
			cur = &segment{code: true, fence: line, language: strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))}
		case cur != nil && trimmed == "```":
			cur.text = strings.Join(lines, "\n")
			cur.closed = true
			segs = append(segs, *cur)
			lines = nil
			cur = nil
		default:
			lines = append(lines, line)
		}
	}
	if cur != nil {
		cur.text = strings.Join(lines, "\n")
		segs = append(segs, *cur)
		return segs
	}
	flush()
	return segs
}

// trimFinalNewline drops the last newline when only escape sequences
// follow it.
func trimFinalNewline(s string) string {
	i := strings.LastIndex(s, "\n")
	if i < 0 || ansi.Strip(s[i+1:]) != "" {
		return s
	}
	return s[:i] + s[i+1:]
}

// Truncate shortens s to width terminal cells, keeping escape sequences
// intact. A width of zero or less disables truncation.
func Truncate(s string, width int) string {
	if width <= 0 || ansi.StringWidth(s) <= width {
		return s
	}
	return ansi.Truncate(s, width, "…")
}

// Plain strips escape sequences.
func Plain(s string) string {
	return ansi.Strip(s)
}
