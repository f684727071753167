// Package frontmatter extracts the delimited metadata header from a source
// document, separating it from the markdown body.
package frontmatter

import "strings"

const delimiter = "---"

// Metadata holds the structured fields extracted from a header block.
// Keys other than title, topic, tags and summary land in Extra.
type Metadata struct {
	Title   string
	Topic   string
	Tags    []string
	Summary string
	Extra   map[string]string
}

// Result carries the best-effort parse outcome. Skipped lists header lines
// that could not be parsed as key: value; callers may log them as warnings
// but the parse itself never fails.
type Result struct {
	Meta    Metadata
	Body    string
	Skipped []string
}

// Parse splits raw document text into metadata and body. If the text does not
// begin with a "---" delimited header block, the entire input is the body and
// metadata falls back to defaults. Malformed header lines are skipped, not
// fatal.
func Parse(raw string) Result {
	res := Result{
		Meta: Metadata{Title: "Untitled", Tags: []string{}},
	}

	lines := strings.Split(raw, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != delimiter {
		res.Body = raw
		return res
	}

	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == delimiter {
			end = i
			break
		}
	}
	if end < 0 {
		// Unterminated header: treat everything as body.
		res.Body = raw
		return res
	}

	for _, line := range lines[1:end] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			res.Skipped = append(res.Skipped, line)
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if key == "" {
			res.Skipped = append(res.Skipped, line)
			continue
		}

		switch key {
		case "title":
			res.Meta.Title = unquote(value)
		case "topic":
			res.Meta.Topic = unquote(value)
		case "summary":
			res.Meta.Summary = unquote(value)
		case "tags":
			res.Meta.Tags = parseList(value)
		default:
			if res.Meta.Extra == nil {
				res.Meta.Extra = make(map[string]string)
			}
			res.Meta.Extra[key] = unquote(value)
		}
	}

	res.Body = strings.Join(lines[end+1:], "\n")
	return res
}

// parseList parses a bracket-wrapped comma-separated value into a string
// slice, stripping surrounding quotes per item. A bare value becomes a
// single-element list.
func parseList(value string) []string {
	if strings.HasPrefix(value, "[") && strings.HasSuffix(value, "]") {
		value = value[1 : len(value)-1]
	}
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, p := range parts {
		item := unquote(strings.TrimSpace(p))
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
