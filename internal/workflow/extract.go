package workflow

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/revcraft/revcraft/internal/session"
)

const maxKeywords = 10

var (
	quotedName = regexp.MustCompile(`"([^"\n]{2,60})"`)
	// A trigger phrase followed by up to six capitalized or numeric words.
	namedProduct = regexp.MustCompile(
		`(?:\b(?i:bought|purchased|ordered|got|received|own|tried|using|returned|my new|reviewing)\b)\s+` +
			`(?:(?i:a|an|the|this|these|my|new)\s+)*` +
			`([A-Z0-9][\w'&+.-]*(?:\s+[A-Z0-9][\w'&+.-]*){0,5})`)
	scoreLine = regexp.MustCompile(`(?m)^[\s*#>-]*\**([A-Za-z][A-Za-z &/-]{1,40}?)\**\s*:\s*\**\s*(\d+(?:\.\d+)?)\s*/\s*10\b`)
)

var categoryKeywords = map[string][]string{
	"electronics": {"headphones", "headphone", "earbuds", "laptop", "phone", "battery", "charger", "charging",
		"bluetooth", "camera", "speaker", "tablet", "monitor", "keyboard", "mouse", "smartwatch", "tv", "usb"},
	"kitchen": {"kettle", "blender", "pan", "pot", "knife", "coffee", "toaster", "mixer", "cookware",
		"fryer", "oven", "mug", "espresso", "grinder"},
	"outdoor": {"tent", "backpack", "hiking", "camping", "headlamp", "bike", "trail", "cooler", "hammock"},
	"beauty": {"skin", "serum", "moisturizer", "shampoo", "conditioner", "makeup", "lipstick",
		"cream", "hair", "fragrance", "sunscreen"},
	"clothing": {"shirt", "jacket", "shoes", "pants", "dress", "fabric", "sneakers", "boots",
		"jeans", "socks", "coat", "sizing"},
	"home": {"vacuum", "lamp", "chair", "desk", "mattress", "pillow", "shelf", "curtain", "rug",
		"sofa", "bedding"},
	"toys": {"toy", "lego", "puzzle", "doll", "kids", "boardgame", "plush", "toddler"},
}

var stopwords = map[string]bool{
	"about": true, "after": true, "again": true, "also": true, "always": true, "because": true,
	"been": true, "before": true, "being": true, "bought": true, "could": true, "days": true,
	"does": true, "doesn": true, "done": true, "during": true, "each": true, "even": true,
	"every": true, "from": true, "have": true, "having": true, "into": true, "just": true,
	"know": true, "last": true, "like": true, "made": true, "make": true, "many": true,
	"month": true, "months": true, "more": true, "most": true, "much": true, "never": true,
	"only": true, "other": true, "over": true, "pretty": true, "product": true, "purchased": true,
	"really": true, "review": true, "same": true, "should": true, "since": true, "some": true,
	"still": true, "such": true, "than": true, "that": true, "their": true, "them": true,
	"then": true, "there": true, "these": true, "they": true, "thing": true, "things": true,
	"this": true, "those": true, "through": true, "time": true, "very": true, "want": true,
	"week": true, "weeks": true, "well": true, "were": true, "what": true, "when": true,
	"which": true, "while": true, "will": true, "with": true, "would": true, "year": true,
	"years": true, "your": true,
}

// ProductName guesses the product name from a free-text description. A
// quoted name wins, then capitalized words after a purchase phrase.
// Anything else yields session.DefaultProductName.
func ProductName(description string) string {
	if m := quotedName.FindStringSubmatch(description); m != nil {
		if name := strings.TrimSpace(m[1]); name != "" {
			return name
		}
	}
	if m := namedProduct.FindStringSubmatch(description); m != nil {
		if name := strings.TrimRight(strings.TrimSpace(m[1]), ".,;:!?'"); name != "" {
			return name
		}
	}
	return session.DefaultProductName
}

// Category returns the category whose keywords occur most often in the
// description, or "" when none occur. Ties go to the alphabetically first
// category.
func Category(description string) string {
	counts := make(map[string]int)
	for _, w := range words(description) {
		for category, keywords := range categoryKeywords {
			for _, k := range keywords {
				if w == k {
					counts[category]++
				}
			}
		}
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	best, bestCount := "", 0
	for _, name := range names {
		if counts[name] > bestCount {
			best, bestCount = name, counts[name]
		}
	}
	return best
}

// Keywords returns up to ten significant words of the description, most
// frequent first and otherwise in order of first appearance.
func Keywords(description string) []string {
	counts := make(map[string]int)
	var order []string
	for _, w := range words(description) {
		if len(w) < 4 || stopwords[w] || isNumber(w) {
			continue
		}
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > maxKeywords {
		order = order[:maxKeywords]
	}
	return order
}

// Scores parses "Criterion: N/10" lines into a map keyed by the lowercased
// criterion.
func Scores(text string) map[string]float64 {
	matches := scoreLine.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	scores := make(map[string]float64, len(matches))
	for _, m := range matches {
		v, err := strconv.ParseFloat(m[2], 64)
		if err != nil || v > 10 {
			continue
		}
		scores[strings.ToLower(strings.TrimSpace(m[1]))] = v
	}
	if len(scores) == 0 {
		return nil
	}
	return scores
}

func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func isNumber(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
