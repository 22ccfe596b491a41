package domain

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// MaxRegionCandidates bounds the number of geocoder calls made per query.
const MaxRegionCandidates = 6

var (
	// latRe and lonRe find "lat 12.5" / "lon -80.25" independently, so the
	// two tokens may appear in any order.
	latRe = regexp.MustCompile(`(?i)\blat(?:itude)?\s*[:=]?\s*([-+]?\d*\.?\d+)`)
	lonRe = regexp.MustCompile(`(?i)\blon(?:g(?:itude)?)?\s*[:=]?\s*([-+]?\d*\.?\d+)`)

	// coastalPatterns are tried in order; each captures the place name.
	// trailing marks patterns whose capture runs on past the name ("coast of
	// X in ..."), where the name is the first fragment rather than the last.
	coastalPatterns = []struct {
		re       *regexp.Regexp
		trailing bool
	}{
		{regexp.MustCompile(`(?i)\boff the coast of\s+([a-zA-Z\s]+)`), true},
		{regexp.MustCompile(`(?i)\bnear\s+([a-zA-Z\s]+?)\s+coast(?:al)?(?:\s+area)?`), false},
		{regexp.MustCompile(`(?i)\baround\s+([a-zA-Z\s]+?)\s+coast(?:al)?(?:\s+area)?`), false},
		{regexp.MustCompile(`(?i)(?:\bthe\s+)?\bcoast\s+of\s+([a-zA-Z\s]+)`), true},
		{regexp.MustCompile(`(?i)([a-zA-Z\s]+?)\s+coastal\s+area`), false},
	}

	genericNounRe = regexp.MustCompile(`(?i)\b(area|region|sea|ocean|water|the)\b`)

	// cueRe splits text on locative prepositions. Longer cues come first so
	// "off the coast of" is not consumed piecemeal.
	cueRe = regexp.MustCompile(`(?i)\b(?:off the coast of|close to|towards|around|near|over|at|in|on|by)\b`)

	fillerRe = regexp.MustCompile(`(?i)\b(tell|me|give|show|plot|visualize|table|summary|conditions|temperature|temper|salinity|pressure)\b`)

	helperPhraseRe = regexp.MustCompile(`(?i)\b(what(?:'s| is)?|give me|tell me|can you|please|around the|the area of|area near|region near|region of)\b`)
	prepositionRe  = regexp.MustCompile(`(?i)\b(near|around|close to|by|at|in|on|over|towards)\b`)

	spaceRe = regexp.MustCompile(`\s+`)
)

// stopWords are fragments left over from question phrasing that never name a
// place on their own.
var stopWords = map[string]bool{
	"what": true, "is": true, "are": true, "was": true, "were": true, "the": true,
	"a": true, "an": true, "of": true, "for": true, "how": true, "and": true,
	"data": true, "please": true, "can": true, "you": true, "i": true, "want": true,
}

const trimSet = " ,.-?!;:"

// ParseCoordinates extracts "lat <number>" and "lon <number>" from text. Both
// must be present and in range, otherwise ok is false.
func ParseCoordinates(text string) (GeoPoint, bool) {
	latM := latRe.FindStringSubmatch(text)
	lonM := lonRe.FindStringSubmatch(text)
	if latM == nil || lonM == nil {
		return GeoPoint{}, false
	}
	lat, err := strconv.ParseFloat(latM[1], 64)
	if err != nil {
		return GeoPoint{}, false
	}
	lon, err := strconv.ParseFloat(lonM[1], 64)
	if err != nil {
		return GeoPoint{}, false
	}
	p := GeoPoint{Lat: lat, Lon: lon}
	if !p.Valid() {
		return GeoPoint{}, false
	}
	return p, true
}

// ExtractRegionCandidates turns free text into an ordered list of place
// strings for the geocoder, most specific first. The result holds at most
// MaxRegionCandidates entries with no case-insensitive duplicates.
func ExtractRegionCandidates(text string) []string {
	stripped := stripTemporal(text)

	candidates := coastalCandidates(stripped)
	for _, raw := range genericCandidates(stripped, text) {
		candidates = append(candidates, raw)
		if !strings.Contains(strings.ToLower(raw), "coast") {
			candidates = append(candidates, raw+" coast", "coast of "+raw)
		}
	}
	return dedupeCandidates(candidates, MaxRegionCandidates)
}

// coastalCandidates emits "coast of X", "X coast" and "X coastal area" for
// every explicit coastal phrase, in pattern-then-match order.
func coastalCandidates(text string) []string {
	var out []string
	for _, p := range coastalPatterns {
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			name := placeFragment(m[1], p.trailing)
			if name == "" {
				continue
			}
			out = append(out, "coast of "+name, name+" coast", name+" coastal area")
		}
	}
	return out
}

// placeFragment trims a captured coastal name down to the place itself:
// filler and cue-separated context around it are dropped, as are generic
// nouns like "sea" or "region".
func placeFragment(capture string, trailing bool) string {
	var parts []string
	for _, part := range cueRe.Split(fillerRe.ReplaceAllString(capture, " "), -1) {
		part = collapse(genericNounRe.ReplaceAllString(part, " "))
		if part != "" && !onlyStopWords(part) {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	if trailing {
		return parts[0]
	}
	return parts[len(parts)-1]
}

// genericCandidates returns the full-text normalization followed by the
// fragments between locative cue words.
func genericCandidates(stripped, original string) []string {
	var raw []string
	for _, part := range cueRe.Split(stripped, -1) {
		part = collapse(fillerRe.ReplaceAllString(part, " "))
		if part == "" || onlyStopWords(part) {
			continue
		}
		raw = append(raw, part)
	}

	cleaned := normalizeRegionQuery(original)
	if cleaned != "" && !slices.ContainsFunc(raw, func(r string) bool { return strings.EqualFold(r, cleaned) }) {
		raw = append([]string{cleaned}, raw...)
	}
	return raw
}

// normalizeRegionQuery lowercases the text and strips dates, filler, helper
// phrases and prepositions, keeping coastal qualifiers intact.
func normalizeRegionQuery(text string) string {
	q := strings.ToLower(stripTemporal(text))
	q = fillerRe.ReplaceAllString(q, " ")
	q = helperPhraseRe.ReplaceAllString(q, " ")
	q = prepositionRe.ReplaceAllString(q, " ")
	return trimStopWords(collapse(q))
}

// trimStopWords drops stop words from both ends of s.
func trimStopWords(s string) string {
	words := strings.Fields(s)
	for len(words) > 0 && stopWords[words[0]] {
		words = words[1:]
	}
	for len(words) > 0 && stopWords[words[len(words)-1]] {
		words = words[:len(words)-1]
	}
	return strings.Join(words, " ")
}

func dedupeCandidates(candidates []string, limit int) []string {
	seen := make(map[string]bool, len(candidates))
	out := make([]string, 0, limit)
	for _, c := range candidates {
		c = collapse(c)
		key := strings.ToLower(c)
		if c == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
		if len(out) == limit {
			break
		}
	}
	return out
}

func collapse(s string) string {
	return strings.Trim(spaceRe.ReplaceAllString(s, " "), trimSet)
}

func onlyStopWords(s string) bool {
	for _, w := range strings.Fields(strings.ToLower(s)) {
		if !stopWords[strings.Trim(w, trimSet)] {
			return false
		}
	}
	return true
}
