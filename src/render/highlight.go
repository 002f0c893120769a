package render

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

const (
	defaultCodeStyle = "monokai"
	defaultFormatter = "terminal256"
)

// Highlight colors code for a terminal. Unknown languages are detected from
// the code itself; on any failure the code is returned unchanged.
func Highlight(code, language, style string) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	if style == "" {
		style = defaultCodeStyle
	}
	s := styles.Get(style)
	if s == nil {
		s = styles.Fallback
	}

	formatter := formatters.Get(defaultFormatter)
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}

	var buf strings.Builder
	if err := formatter.Format(&buf, s, iterator); err != nil {
		return code
	}
	return buf.String()
}
