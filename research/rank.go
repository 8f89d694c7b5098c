package research

import (
	"sort"
	"strings"

	"github.com/deepnoodle-ai/briefing"
)

// TopSources is how many sources survive prioritization.
const TopSources = 12

var academicSuffixes = []string{".edu", ".gov", ".ac.uk", ".ac.in", ".ac.jp"}

var publisherKeywords = []string{
	"nature.com", "acm.org", "ieee.org", "arxiv.org", "springer", "sciencedirect",
}

var lowSignalKeywords = []string{"reddit.com", "quora.com", "stackexchange.com"}

// ScoreAuthority is a heuristic authority score for a source, no LLM
// involved. Academic and government domains rank highest, recognized
// publishers next; aggregator sites are penalized. Attribution markers in
// the fetched content add a small bonus.
func ScoreAuthority(source briefing.Source) float64 {
	score := 0.0
	url := strings.ToLower(source.URL)

	for _, suffix := range academicSuffixes {
		if strings.HasSuffix(url, suffix) || strings.Contains(url, suffix+"/") {
			score += 3.0
			break
		}
	}
	for _, keyword := range publisherKeywords {
		if strings.Contains(url, keyword) {
			score += 2.5
			break
		}
	}
	for _, keyword := range []string{"medium.com", "substack.com", "wikipedia.org"} {
		if strings.Contains(url, keyword) {
			score += 0.5
			break
		}
	}
	if strings.Contains(url, "arxiv.org") {
		score += 1.0
	}

	text := strings.ToLower(source.Title + " " + source.Content)
	if strings.Contains(text, "author") || strings.Contains(text, "by ") ||
		strings.Contains(text, "professor") {
		score += 0.5
	}

	for _, keyword := range lowSignalKeywords {
		if strings.Contains(url, keyword) {
			score -= 0.5
			break
		}
	}
	return score
}

// Prioritize orders sources by authority score, highest first, and keeps
// the top ones. The input slice is not modified.
func Prioritize(sources []briefing.Source) []briefing.Source {
	ranked := make([]briefing.Source, len(sources))
	copy(ranked, sources)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ScoreAuthority(ranked[i]) > ScoreAuthority(ranked[j])
	})
	if len(ranked) > TopSources {
		ranked = ranked[:TopSources]
	}
	return ranked
}
