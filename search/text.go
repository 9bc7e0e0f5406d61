package search

import "strings"

// Triggers and terms used by the keyword fallback before the owner's name is
// added.
var (
	baseFallbackTriggers = []string{"resume", "about me", "yourself", "understand"}
	baseFallbackTerms    = []string{"resume"}
)

// nameWords splits a name into lowercased words, trimming punctuation.
// Initials are dropped since they match nearly any text.
func nameWords(name string) []string {
	fields := strings.Fields(name)
	words := make([]string, 0, len(fields))
	for _, field := range fields {
		cleaned := strings.ToLower(strings.Trim(field, ".,!?;:'\"-()[]{}"))
		if len(cleaned) > 1 {
			words = append(words, cleaned)
		}
	}
	return words
}

// OwnerFallback returns the default fallback triggers and terms for a
// knowledge base owned by ownerName. An empty name yields the generic
// defaults.
func OwnerFallback(ownerName string) (triggers, terms []string) {
	triggers = append([]string(nil), baseFallbackTriggers...)
	terms = append([]string(nil), baseFallbackTerms...)

	ownerName = strings.TrimSpace(ownerName)
	if ownerName == "" {
		return triggers, terms
	}
	words := nameWords(ownerName)
	triggers = append(triggers, words...)
	terms = append(terms, ownerName)
	terms = append(terms, words...)
	return triggers, terms
}

// containsAny reports whether the lowercased text contains any trigger.
func containsAny(text string, triggers []string) bool {
	lowered := strings.ToLower(text)
	for _, trigger := range triggers {
		if trigger != "" && strings.Contains(lowered, strings.ToLower(trigger)) {
			return true
		}
	}
	return false
}
