// Package normalizer handles filename normalization for medialink.
//
// A raw release filename is run through an ordered list of rules; the first
// rule that matches decides the canonical name. The default order is
// temporary file, episode, movie, extra content.
package normalizer

import (
	"path/filepath"
	"strings"
)

// RuleName identifies the rule that produced a Result.
type RuleName string

const (
	RuleTemp    RuleName = "temp"
	RuleEpisode RuleName = "episode"
	RuleMovie   RuleName = "movie"
	RuleExtra   RuleName = "extra"
	RuleNone    RuleName = "none"
)

// Fields holds the segments a rule extracted from a filename.
type Fields struct {
	Title     string // show, movie or extra-content name
	Year      string
	Season    int
	Episode   int
	Subtitle  string // episode title or movie extra name
	Quality   string
	ExtraInfo string
	Extension string
}

// Result is the outcome of normalizing one filename.
type Result struct {
	Name   string   // canonical name, or the original name when nothing matched
	Skip   bool     // true for temporary files that must not be linked
	Rule   RuleName // rule that matched
	Fields Fields
}

// Matched reports whether any rule recognised the filename.
func (r Result) Matched() bool {
	return r.Rule != RuleNone
}

// Rule is one entry of the ordered classifier.
type Rule interface {
	Name() RuleName
	// Apply returns the rule's result and true if the filename matches.
	Apply(filename string) (Result, bool)
}

// Normalizer applies rules in order; the first match wins.
type Normalizer struct {
	rules []Rule
}

// New creates a Normalizer with the given rules in priority order.
// If no rules are given, DefaultRules is used.
func New(rules ...Rule) *Normalizer {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Normalizer{rules: rules}
}

// DefaultRules returns the standard rule order.
func DefaultRules() []Rule {
	return []Rule{
		TempRule{},
		EpisodeRule{},
		MovieRule{},
		ExtraRule{},
	}
}

// Rules returns a copy of the configured rules.
func (n *Normalizer) Rules() []Rule {
	result := make([]Rule, len(n.rules))
	copy(result, n.rules)
	return result
}

// Normalize maps a filename (final path segment, with extension) to its
// canonical form. When no rule matches, the original name is returned with
// Rule set to RuleNone.
func (n *Normalizer) Normalize(filename string) Result {
	for _, rule := range n.rules {
		if result, ok := rule.Apply(filename); ok {
			return result
		}
	}
	return Result{Name: filename, Rule: RuleNone}
}

var defaultNormalizer = New()

// Normalize runs filename through the default rules.
func Normalize(filename string) Result {
	return defaultNormalizer.Normalize(filename)
}

// IsTemporary reports whether filename follows the temporary-file convention.
func IsTemporary(filename string) bool {
	_, ok := TempRule{}.Apply(filename)
	return ok
}

// splitExtension separates the final dot-delimited suffix from the stem.
func splitExtension(filename string) (stem, ext string) {
	ext = filepath.Ext(filename)
	return strings.TrimSuffix(filename, ext), ext
}

// sceneWords turns dot or underscore separated names into space separated
// ones. Names that already contain spaces are returned unchanged.
func sceneWords(stem string) string {
	if strings.Contains(stem, " ") {
		return stem
	}
	replaced := strings.NewReplacer(".", " ", "_", " ").Replace(stem)
	return strings.Join(strings.Fields(replaced), " ")
}

// clean trims whitespace and separator punctuation from both ends.
func clean(s string) string {
	return strings.Trim(s, " \t-._")
}
