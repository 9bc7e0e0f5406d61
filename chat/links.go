package chat

import (
	"regexp"
	"strings"
)

var urlPattern = regexp.MustCompile(`https?://\S+`)

// Sentence punctuation that commonly ends up glued to a link.
const trailingPunctuation = ".,;:!?)]}>\"'"

// ExtractURLs returns the distinct http(s) links in text, in order of first
// appearance, with trailing punctuation removed.
func ExtractURLs(text string) []string {
	matches := urlPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	urls := make([]string, 0, len(matches))
	for _, match := range matches {
		link := strings.TrimRight(match, trailingPunctuation)
		if link == "http://" || link == "https://" {
			continue
		}
		if _, ok := seen[link]; ok {
			continue
		}
		seen[link] = struct{}{}
		urls = append(urls, link)
	}
	return urls
}
