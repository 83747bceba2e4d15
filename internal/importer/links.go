// Package importer bulk-loads Markdown notes (Obsidian vaults or plain
// folders) into the ingestion queue.
package importer

import (
	"regexp"
	"strings"
)

// wikilinkRe matches [[link]] and [[link|alias]] patterns.
var wikilinkRe = regexp.MustCompile(`\[\[([^\[\]|]+?)(?:\|([^\[\]]+?))?\]\]`)

// WikiLink is a parsed [[wiki-link]].
type WikiLink struct {
	Target string
	Alias  string
}

// ExtractWikiLinks returns the links in content, deduplicated by target
// (case-insensitive) in order of first appearance.
func ExtractWikiLinks(content string) []WikiLink {
	seen := make(map[string]bool)
	var links []WikiLink
	for _, m := range wikilinkRe.FindAllStringSubmatch(content, -1) {
		target := strings.TrimSpace(m[1])
		key := strings.ToLower(target)
		if seen[key] {
			continue
		}
		seen[key] = true
		links = append(links, WikiLink{Target: target, Alias: strings.TrimSpace(m[2])})
	}
	return links
}

// StripWikiLinks replaces each link with its alias, or its target when
// there is no alias.
func StripWikiLinks(content string) string {
	return wikilinkRe.ReplaceAllStringFunc(content, func(match string) string {
		parts := wikilinkRe.FindStringSubmatch(match)
		if alias := strings.TrimSpace(parts[2]); alias != "" {
			return alias
		}
		return strings.TrimSpace(parts[1])
	})
}
