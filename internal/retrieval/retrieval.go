// Package retrieval selects and orders the memories used to answer a query.
//
// Retrieval depth is the backpressure mechanism: under degraded load the
// budget shrinks, latency does not grow.
package retrieval

import (
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/scrypster/mneme/pkg/types"
)

// MaxTokens is the number of query terms used for matching.
const MaxTokens = 3

// Default budgets.
const (
	DefaultNominalBudget  = 8
	DefaultDegradedBudget = 3
)

// stopWords never become query tokens.
var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "what": true, "who": true,
	"when": true, "where": true, "does": true, "did": true, "about": true,
	"know": true, "tell": true, "you": true, "are": true, "was": true,
	"with": true, "have": true, "has": true, "this": true, "that": true,
}

// Options configures ranking.
type Options struct {
	NominalBudget  int
	DegradedBudget int
	ActiveCluster  types.Cluster
}

func (o Options) withDefaults() Options {
	if o.NominalBudget <= 0 {
		o.NominalBudget = DefaultNominalBudget
	}
	if o.DegradedBudget <= 0 {
		o.DegradedBudget = DefaultDegradedBudget
	}
	if o.ActiveCluster == "" {
		o.ActiveCluster = types.ClusterMain
	}
	return o
}

// Budget returns the candidate cap for a load state. Safe mode uses the
// degraded budget.
func (o Options) Budget(status types.SystemStatus) int {
	o = o.withDefaults()
	switch status {
	case types.SystemDegraded, types.SystemSafeMode:
		return o.DegradedBudget
	default:
		return o.NominalBudget
	}
}

// Result is the outcome of one ranking pass.
type Result struct {
	Selected   []*types.Memory
	PoolSize   int
	Candidates int
	Tokens     []string
	Scopes     []string
	Elapsed    time.Duration
}

// IDs returns the ids of the selected memories.
func (r Result) IDs() []string {
	ids := make([]string, 0, len(r.Selected))
	for _, m := range r.Selected {
		ids = append(ids, m.ID)
	}
	return ids
}

// Tokens splits query into at most MaxTokens distinct lower-cased
// alphanumeric terms longer than two characters, skipping stop words. A
// query made only of stop words keeps them; when no term qualifies at all
// the whole trimmed query is the single term.
func Tokens(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]bool)
	var tokens, common []string
	for _, f := range fields {
		if len([]rune(f)) <= 2 || seen[f] {
			continue
		}
		seen[f] = true
		if stopWords[f] {
			if len(common) < MaxTokens {
				common = append(common, f)
			}
			continue
		}
		tokens = append(tokens, f)
		if len(tokens) == MaxTokens {
			break
		}
	}
	if len(tokens) == 0 {
		tokens = common
	}
	if len(tokens) == 0 {
		if q := strings.ToLower(strings.TrimSpace(query)); q != "" {
			tokens = []string{q}
		}
	}
	return tokens
}

var friendPattern = regexp.MustCompile(`(?i)\bmy friend\s+([\p{L}\p{N}'-]+)`)

// scopeCues maps lexical cues to folder scopes.
var scopeCues = []struct {
	scope string
	cues  []string
}{
	{"work", []string{"work", "meeting", "project", "office", "colleague"}},
	{"home", []string{"home", "house", "apartment"}},
	{"health", []string{"health", "doctor", "medication", "dentist"}},
	{"finance", []string{"money", "bank", "finance", "budget"}},
}

// Scopes returns the folder scopes implied by query, e.g. "friends/ana"
// for "my friend Ana" or "work" for a meeting question.
func Scopes(query string) []string {
	var scopes []string
	if m := friendPattern.FindStringSubmatch(query); m != nil {
		scopes = append(scopes, "friends/"+strings.ToLower(m[1]))
	}

	words := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, sc := range scopeCues {
		if matchesAny(words, sc.cues) {
			scopes = append(scopes, sc.scope)
		}
	}
	return scopes
}

func matchesAny(words, cues []string) bool {
	for _, w := range words {
		for _, c := range cues {
			if w == c || w == c+"s" {
				return true
			}
		}
	}
	return false
}

// scopedPool restricts memories to the given scopes. If nothing matches a
// scope prefix it tries a direct lookup of the scope leaf folder, and
// finally falls back to the unscoped pool.
func scopedPool(memories []*types.Memory, scopes []string) []*types.Memory {
	if len(scopes) == 0 {
		return memories
	}

	var pool []*types.Memory
	for _, m := range memories {
		folder := strings.ToLower(m.FolderPath())
		for _, s := range scopes {
			if folder == s || strings.HasPrefix(folder, s+"/") {
				pool = append(pool, m)
				break
			}
		}
	}
	if len(pool) > 0 {
		return pool
	}

	for _, m := range memories {
		leaf := leafOf(strings.ToLower(m.FolderPath()))
		for _, s := range scopes {
			if leaf != "" && leaf == leafOf(s) {
				pool = append(pool, m)
				break
			}
		}
	}
	if len(pool) > 0 {
		return pool
	}
	return memories
}

func leafOf(path string) string {
	path = strings.Trim(path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

// Rank selects the memories answering query under the given load state.
// Candidates are active memories of the active cluster that contain a
// query token or are pinned, ordered by salience times trust. Ties keep
// their stored order.
func Rank(query string, memories []*types.Memory, status types.SystemStatus, opts Options) Result {
	start := time.Now()
	opts = opts.withDefaults()

	res := Result{Tokens: Tokens(query), Scopes: Scopes(query)}

	var pool []*types.Memory
	for _, m := range scopedPool(memories, res.Scopes) {
		if m.Cluster == opts.ActiveCluster && m.Status == types.StatusActive {
			pool = append(pool, m)
		}
	}
	res.PoolSize = len(pool)

	var candidates []*types.Memory
	for _, m := range pool {
		if m.IsPinned || containsAny(strings.ToLower(m.Content), res.Tokens) {
			candidates = append(candidates, m)
		}
	}
	res.Candidates = len(candidates)

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].RankScore() > candidates[j].RankScore()
	})

	if budget := opts.Budget(status); len(candidates) > budget {
		candidates = candidates[:budget]
	}
	res.Selected = candidates
	res.Elapsed = time.Since(start)
	return res
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
