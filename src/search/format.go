package search

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ExcerptLength is the number of characters of page content kept per result.
const ExcerptLength = 500

// Format renders results as a numbered Markdown block followed by the
// citation instruction. It returns "" for no results.
func Format(results []Result) string {
	if len(results) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("# Search Results\n\n")
	for i, r := range results {
		title := strings.TrimSpace(r.Title)
		if title == "" {
			title = "Untitled"
		}
		fmt.Fprintf(&sb, "## %d. %s\n", i+1, title)
		fmt.Fprintf(&sb, "**Link**: %s\n\n", r.URL)
		if d := strings.TrimSpace(r.Description); d != "" {
			sb.WriteString(d)
			sb.WriteString("\n\n")
		}
		if m := strings.TrimSpace(r.Markdown); m != "" {
			sb.WriteString("### Excerpt\n")
			sb.WriteString(truncate(m, ExcerptLength))
			sb.WriteString("...\n\n")
		}
		sb.WriteString("---\n\n")
	}
	sb.WriteString(CitationInstruction(results))
	return sb.String()
}

// CitationInstruction tells the model how to cite results and maps each
// result number to its URL.
func CitationInstruction(results []Result) string {
	var sb strings.Builder
	sb.WriteString("# Citation Format\n\n")
	sb.WriteString("Answer using the search results above when they are relevant. ")
	sb.WriteString("Cite a result inline as a bracketed number rendered as a Markdown link, ")
	sb.WriteString("for example [[1]](")
	sb.WriteString(results[0].URL)
	sb.WriteString("). Only cite results listed here.\n\n")
	for i, r := range results {
		fmt.Fprintf(&sb, "[%d]: %s\n", i+1, r.URL)
	}
	return sb.String()
}

// Dedupe flattens result lists and keeps the first result for each URL.
// Results without a URL cannot be cited and are dropped.
func Dedupe(lists ...[]Result) []Result {
	seen := make(map[string]struct{})
	var out []Result
	for _, list := range lists {
		for _, r := range list {
			if r.URL == "" {
				continue
			}
			if _, ok := seen[r.URL]; ok {
				continue
			}
			seen[r.URL] = struct{}{}
			out = append(out, r)
		}
	}
	return out
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
