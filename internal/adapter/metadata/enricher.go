package metadata

import (
	"path/filepath"
	"strings"
	"unicode"

	"esgkb/internal/domain"
)

// cjkThreshold is the minimum proportion of CJK runes for a chunk to be
// classified as Chinese.
const cjkThreshold = 0.1

// Rule maps a classification category to the keywords that select it.
// Rule tables are ordered and first-match-wins; overlapping keywords are
// resolved purely by position.
type Rule struct {
	Category string
	Keywords []string
}

// Enricher derives classification tags (topic, industry, region, language)
// from a chunk's path components and keyword matches over its text and file
// stem. Enrichment is pure: it returns a new record and never rewrites the
// chunk's text.
type Enricher struct {
	topicRules    []Rule
	industryRules []Rule
}

// NewEnricher creates an enricher. Nil or empty rule slices use the built-in
// defaults. Provided slices are copied, so callers may reuse theirs.
func NewEnricher(topicRules, industryRules []Rule) *Enricher {
	if len(topicRules) == 0 {
		topicRules = defaultTopicRules()
	} else {
		topicRules = copyRules(topicRules)
	}
	if len(industryRules) == 0 {
		industryRules = defaultIndustryRules()
	} else {
		industryRules = copyRules(industryRules)
	}
	return &Enricher{
		topicRules:    topicRules,
		industryRules: industryRules,
	}
}

// Enrich fills the classification fields of a chunk. Undetermined fields get
// their documented defaults rather than staying empty.
func (e *Enricher) Enrich(c domain.Chunk) domain.Chunk {
	parts := pathParts(c.Path)
	stem := strings.ToLower(strings.TrimSuffix(c.Source, filepath.Ext(c.Source)))
	textLower := strings.ToLower(c.Text)

	c.MainTopic = e.topic(parts, stem, textLower)
	c.Industry = e.industry(parts, stem, textLower)
	c.Region = region(parts)
	c.Language = DetectLanguage(c.Text)
	return c
}

// topic prefers the directory convention (the component following
// "international" names the topic), then falls back to keyword rules.
func (e *Enricher) topic(parts []string, stem, textLower string) string {
	for i, p := range parts {
		if p == "international" && i+1 < len(parts) {
			return strings.ToLower(parts[i+1])
		}
	}
	if cat := matchRules(e.topicRules, stem, textLower); cat != "" {
		return cat
	}
	return "general"
}

// industry only applies keyword classification to case-study documents; the
// rest of the corpus is standards material that spans industries.
func (e *Enricher) industry(parts []string, stem, textLower string) string {
	if !containsPart(parts, "cases") {
		return "cross_industry"
	}
	if cat := matchRules(e.industryRules, stem, textLower); cat != "" {
		return cat
	}
	return "cross_industry"
}

func region(parts []string) string {
	switch {
	case containsPart(parts, "taiwan"):
		return "taiwan"
	case containsPart(parts, "international"):
		return "global"
	default:
		return "unknown"
	}
}

// DetectLanguage classifies text as "zh" when the proportion of CJK runes
// exceeds the threshold, "en" otherwise. Empty text is "en".
func DetectLanguage(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "en"
	}

	total := 0
	cjk := 0
	for _, r := range trimmed {
		total++
		if unicode.Is(unicode.Han, r) {
			cjk++
		}
	}
	if total == 0 {
		return "en"
	}
	if float64(cjk)/float64(total) > cjkThreshold {
		return "zh"
	}
	return "en"
}

// matchRules returns the category of the first rule with a keyword present
// in the text or the file stem, or "" when nothing matches.
func matchRules(rules []Rule, stem, textLower string) string {
	for _, rule := range rules {
		for _, kw := range rule.Keywords {
			kw = strings.ToLower(kw)
			if strings.Contains(textLower, kw) || strings.Contains(stem, kw) {
				return rule.Category
			}
		}
	}
	return ""
}

func pathParts(rel string) []string {
	rel = filepath.ToSlash(rel)
	if rel == "" {
		return nil
	}
	return strings.Split(rel, "/")
}

func containsPart(parts []string, want string) bool {
	for _, p := range parts {
		if p == want {
			return true
		}
	}
	return false
}

func copyRules(rules []Rule) []Rule {
	out := make([]Rule, len(rules))
	for i, r := range rules {
		out[i] = Rule{
			Category: r.Category,
			Keywords: append([]string(nil), r.Keywords...),
		}
	}
	return out
}

func defaultTopicRules() []Rule {
	return []Rule{
		{Category: "sustainability", Keywords: []string{"sustainability", "esg", "永續", "環境"}},
		{Category: "climate", Keywords: []string{"climate", "carbon", "氣候", "碳"}},
		{Category: "governance", Keywords: []string{"governance", "compliance", "治理", "法遵"}},
		{Category: "social", Keywords: []string{"social", "community", "社會", "社區"}},
	}
}

func defaultIndustryRules() []Rule {
	return []Rule{
		{Category: "retail", Keywords: []string{"retail", "shopping", "零售", "商場"}},
		{Category: "manufacturing", Keywords: []string{"manufacturing", "factory", "製造", "工廠"}},
		{Category: "technology", Keywords: []string{"technology", "software", "科技", "軟體"}},
		{Category: "finance", Keywords: []string{"banking", "finance", "金融", "銀行"}},
		{Category: "energy", Keywords: []string{"energy", "power", "能源", "電力"}},
		{Category: "healthcare", Keywords: []string{"healthcare", "medical", "醫療", "健康"}},
	}
}
