package policy

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Policy holds the deterministic editorial keyword policy: sponsored-content
// markers, the three hard-controversy classes, the regulatory allow-list that
// overrides them, paywalled domains, boost companies, and the trusted domain
// lists used by the Query Director.
type Policy struct {
	Sponsored          []string    `yaml:"sponsored"`
	Controversy        Controversy `yaml:"controversy"`
	PolicyAllow        []string    `yaml:"policy_allow"`
	PaywallDomains     []string    `yaml:"paywall_domains"`
	Companies          []string    `yaml:"companies"`
	ConsultancyDomains []string    `yaml:"consultancy_domains"`
	PlatformDomains    []string    `yaml:"platform_domains"`
}

// Controversy groups the three excluded topic classes.
type Controversy struct {
	Conflict  []string `yaml:"conflict"`
	Identity  []string `yaml:"identity"`
	Elections []string `yaml:"elections"`
}

// Default returns the compiled-in policy used when no policy file is present.
func Default() *Policy {
	return &Policy{
		Sponsored: []string{
			"sponsored", "sponsored content", "press release", "paid post",
			"partner content", "advertorial", "brandvoice", "pr newswire",
			"business wire", "globe newswire", "promoted by",
		},
		Controversy: Controversy{
			Conflict: []string{
				"war", "warfare", "airstrike", "missile", "invasion",
				"ceasefire", "troops", "frontline", "armed conflict",
				"bombing", "offensive against",
			},
			Identity: []string{
				"culture war", "woke", "anti-woke", "gender ideology",
				"identity politics", "dei backlash", "cancel culture",
			},
			Elections: []string{
				"election poll", "polling average", "ballot", "campaign trail",
				"swing state", "primary race", "election odds",
			},
		},
		PolicyAllow: []string{
			"tariff", "tariffs", "trade policy", "import duty", "de minimis",
			"customs", "sanction", "sanctions", "regulation", "regulatory",
			"gdpr", "data protection", "antitrust", "competition law",
		},
		PaywallDomains: []string{
			"ft.com", "wsj.com", "bloomberg.com", "economist.com",
			"nytimes.com", "businessoffashion.com", "rapaport.com",
		},
		Companies: []string{
			"Pandora", "Cartier", "Tiffany", "Richemont", "LVMH", "Signet",
			"De Beers", "Swarovski", "Chopard", "Bulgari", "Graff",
			"Mejuri", "Brilliant Earth", "Rolex", "Swatch Group",
		},
		ConsultancyDomains: []string{
			"mckinsey.com", "bain.com", "bcg.com", "deloitte.com", "kearney.com",
		},
		PlatformDomains: []string{
			"businessoffashion.com", "voguebusiness.com", "jckonline.com",
			"nationaljeweler.com", "professionaljeweller.com", "retaildive.com",
		},
	}
}

// Load reads a policy file, falling back to the default policy when the file
// does not exist. A present-but-malformed file is a configuration error.
func Load(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read policy file %s: %w", path, err)
	}

	policy := Default()
	if err := yaml.Unmarshal(data, policy); err != nil {
		return nil, fmt.Errorf("failed to parse policy file %s: %w", path, err)
	}
	return policy, nil
}

// containsAny reports whether text matches any keyword. Phrases match as
// substrings; short single tokens (<=4 chars) require word boundaries so that
// "war" does not match "award".
func containsAny(text string, keywords []string) bool {
	text = strings.ToLower(text)

	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}

		if strings.Contains(k, " ") {
			if strings.Contains(text, k) {
				return true
			}
			continue
		}

		if len(k) <= 4 {
			re := regexp.MustCompile(`\b` + regexp.QuoteMeta(k) + `\b`)
			if re.MatchString(text) {
				return true
			}
			continue
		}

		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// IsSponsored reports whether the text carries sponsored/press-release
// markers. Applied deterministically before ranking; never left to the model.
func (p *Policy) IsSponsored(text string) bool {
	return containsAny(text, p.Sponsored)
}

// IsHardControversial reports whether the text matches any of the three
// controversy classes. A match against the regulatory allow-list suppresses
// the signal: policy coverage of tariffs or data-protection law is wanted
// even when it shares vocabulary with excluded topics.
func (p *Policy) IsHardControversial(text string) bool {
	hit := containsAny(text, p.Controversy.Conflict) ||
		containsAny(text, p.Controversy.Identity) ||
		containsAny(text, p.Controversy.Elections)
	if !hit {
		return false
	}
	return !containsAny(text, p.PolicyAllow)
}

// IsPaywalledDomain reports whether the registrable domain is on the known
// paywall list.
func (p *Policy) IsPaywalledDomain(domain string) bool {
	domain = strings.ToLower(domain)
	for _, d := range p.PaywallDomains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return false
}

// MatchCompanies returns the distinct boost companies mentioned in the text
// and a boost score. Title mentions weigh double: a company in the headline
// is a stronger signal than one buried in the body.
func (p *Policy) MatchCompanies(title, text string) ([]string, int) {
	var matched []string
	score := 0
	for _, company := range p.Companies {
		inTitle := containsAny(title, []string{company})
		inText := inTitle || containsAny(text, []string{company})
		if !inText {
			continue
		}
		matched = append(matched, company)
		if inTitle {
			score += 2
		} else {
			score++
		}
	}
	return matched, score
}

var nonWordPattern = regexp.MustCompile(`[^a-z0-9\s]+`)

// NormalizeTitle lowercases, strips punctuation and collapses whitespace.
func NormalizeTitle(title string) string {
	title = strings.ToLower(title)
	title = nonWordPattern.ReplaceAllString(title, " ")
	return strings.Join(strings.Fields(title), " ")
}

// TitleOverlap computes the word-set overlap of two titles after
// normalization: the share of the smaller title's words present in the other.
func TitleOverlap(a, b string) float64 {
	wordsA := strings.Fields(NormalizeTitle(a))
	wordsB := strings.Fields(NormalizeTitle(b))
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	setA := make(map[string]struct{}, len(wordsA))
	for _, w := range wordsA {
		setA[w] = struct{}{}
	}
	setB := make(map[string]struct{}, len(wordsB))
	for _, w := range wordsB {
		setB[w] = struct{}{}
	}

	shared := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			shared++
		}
	}

	smaller := len(setA)
	if len(setB) < smaller {
		smaller = len(setB)
	}
	return float64(shared) / float64(smaller)
}

// IsNearDuplicateTitle reports whether two titles share more than 80% of
// their words.
func IsNearDuplicateTitle(a, b string) bool {
	return TitleOverlap(a, b) > 0.8
}
