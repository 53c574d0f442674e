// Package parser extracts tags and a display excerpt from free-form note bodies.
package parser

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// ExcerptLength is the number of runes kept by Excerpt before the ellipsis.
const ExcerptLength = 150

var tagRe = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)

// Meta is what Inspect learns about a note body.
type Meta struct {
	// Text is the body with any leading YAML front matter removed.
	Text string
	Tags []string
}

// Inspect reads optional YAML front matter (only its "tags" list is used)
// and inline #tags. Tags are lowercased and deduplicated in first-seen order.
func Inspect(body string) Meta {
	fm, text := splitFrontmatter(body)
	return Meta{
		Text: text,
		Tags: extractTags(text, fm),
	}
}

// Excerpt returns at most ExcerptLength runes of s, followed by "..." when
// the text was cut.
func Excerpt(s string) string {
	if utf8.RuneCountInString(s) <= ExcerptLength {
		return s
	}
	runes := []rune(s)
	return string(runes[:ExcerptLength]) + "..."
}

// splitFrontmatter separates a leading "---" YAML block from the rest.
// Anything that does not parse is left in the text untouched.
func splitFrontmatter(body string) (map[string]any, string) {
	const delim = "---"
	trimmed := strings.TrimLeft(body, "\n\r")
	if !strings.HasPrefix(trimmed, delim) {
		return nil, body
	}
	rest := trimmed[len(delim):]
	idx := strings.Index(rest, "\n"+delim)
	if idx < 0 {
		return nil, body
	}
	var fm map[string]any
	if err := yaml.Unmarshal([]byte(rest[:idx]), &fm); err != nil {
		return nil, body
	}
	text := strings.TrimLeft(rest[idx+1+len(delim):], "\n\r")
	return fm, text
}

func extractTags(text string, fm map[string]any) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(tag string) {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			return
		}
		if _, dup := seen[tag]; dup {
			return
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}

	if list, ok := fm["tags"].([]any); ok {
		for _, item := range list {
			if s, ok := item.(string); ok {
				add(s)
			}
		}
	}
	for _, m := range tagRe.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	return out
}
