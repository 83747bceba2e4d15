package importer

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"gopkg.in/yaml.v3"
)

// Note is a parsed Markdown file.
type Note struct {
	// RelativePath is the path below the import root.
	RelativePath string

	// Folder is the directory part of RelativePath, "" at the root.
	Folder string

	// Title comes from frontmatter, the first H1, or the file name.
	Title string

	// Body is the Markdown body with frontmatter removed and wiki links
	// replaced by plain text.
	Body string

	Tags  []string
	Links []WikiLink

	// Date is the frontmatter date, or zero.
	Date time.Time
}

var (
	inlineTagRe = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)
	listPrefix  = regexp.MustCompile(`^\s*(?:[-*+]|\d+[.)])\s+(?:\[[ xX]\]\s+)?`)
)

// ParseNote parses one Markdown file. rel is its path below the import root.
func ParseNote(content []byte, rel string) (*Note, error) {
	fm, body, err := splitFrontmatter(string(content))
	if err != nil {
		return nil, fmt.Errorf("frontmatter parse error in %s: %w", rel, err)
	}

	n := &Note{
		RelativePath: filepath.ToSlash(rel),
		Title:        stringField(fm, "title"),
		Links:        ExtractWikiLinks(body),
		Body:         strings.TrimSpace(StripWikiLinks(body)),
		Date:         dateField(fm),
	}
	if dir := filepath.ToSlash(filepath.Dir(rel)); dir != "." {
		n.Folder = dir
	}
	if n.Title == "" {
		n.Title = firstHeading(body)
	}
	if n.Title == "" {
		n.Title = titleFromPath(rel)
	}
	n.Tags = mergeTags(tagsField(fm), inlineTags(body))
	return n, nil
}

// Text renders the note as plain sentences for distillation. Headings and
// list items become separate sentences.
func (n *Note) Text() string {
	var parts []string
	if n.Folder != "" {
		parts = append(parts, fmt.Sprintf("Note %s in %s.", n.Title, n.Folder))
	} else {
		parts = append(parts, fmt.Sprintf("Note %s.", n.Title))
	}

	for _, line := range strings.Split(n.Body, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "#")
		line = listPrefix.ReplaceAllString(line, "")
		line = strings.TrimSpace(line)
		if line == "" || strings.EqualFold(line, n.Title) {
			continue
		}
		if !strings.ContainsAny(line[len(line)-1:], ".!?") {
			line += "."
		}
		parts = append(parts, line)
	}
	return strings.Join(parts, " ")
}

// splitFrontmatter separates YAML frontmatter (between --- delimiters) from
// the body. Text without frontmatter is returned whole.
func splitFrontmatter(text string) (map[string]interface{}, string, error) {
	lines := strings.Split(text, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return map[string]interface{}{}, text, nil
	}

	closeIdx := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			closeIdx = i
			break
		}
	}
	if closeIdx == -1 {
		return map[string]interface{}{}, text, nil
	}

	fm := make(map[string]interface{})
	if err := yaml.Unmarshal([]byte(strings.Join(lines[1:closeIdx], "\n")), &fm); err != nil {
		return nil, "", fmt.Errorf("invalid YAML: %w", err)
	}
	return fm, strings.Join(lines[closeIdx+1:], "\n"), nil
}

func firstHeading(body string) string {
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(StripWikiLinks(line[2:]))
		}
	}
	return ""
}

func titleFromPath(rel string) string {
	base := filepath.Base(rel)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	return strings.TrimSpace(name)
}

func stringField(fm map[string]interface{}, key string) string {
	if s, ok := fm[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// dateField reads the first date-like frontmatter field. YAML decodes bare
// dates to time.Time; anything else goes through dateparse.
func dateField(fm map[string]interface{}) time.Time {
	for _, key := range []string{"date", "created", "created_at", "updated_at"} {
		switch v := fm[key].(type) {
		case time.Time:
			return v
		case string:
			if t, err := dateparse.ParseAny(strings.TrimSpace(v)); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}

// tagsField reads tags from frontmatter in list or comma-separated form.
func tagsField(fm map[string]interface{}) []string {
	var tags []string
	switch v := fm["tags"].(type) {
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				tags = append(tags, s)
			}
		}
	case string:
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
	}
	return tags
}

func inlineTags(body string) []string {
	var tags []string
	for _, m := range inlineTagRe.FindAllStringSubmatch(body, -1) {
		tags = append(tags, m[1])
	}
	return tags
}

// mergeTags combines tag slices, deduplicating case-insensitively.
func mergeTags(a, b []string) []string {
	seen := make(map[string]bool)
	var result []string
	for _, tag := range append(a, b...) {
		lower := strings.ToLower(tag)
		if !seen[lower] {
			seen[lower] = true
			result = append(result, tag)
		}
	}
	return result
}
