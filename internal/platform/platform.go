package platform

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
)

// Profile describes one supported search platform: the syntax rules handed
// to the generation service and the URL template used to open a generated
// query on the platform itself. Profiles are immutable policy data.
type Profile struct {
	ID        string
	Name      string
	RulesText string

	// SearchURLTemplate contains a single %s placeholder for the
	// percent-encoded query.
	SearchURLTemplate string
}

// ErrUnknownPlatform is returned when a platform id is not registered.
var ErrUnknownPlatform = errors.New("platform: unknown platform")

// SearchURL builds the outbound link for a generated query.
func (p Profile) SearchURL(query string) string {
	return fmt.Sprintf(p.SearchURLTemplate, url.QueryEscape(query))
}

const jstorRules = `You are an AI search query generator designed to convert natural language research requests into JSTOR advanced search queries.
Your goal is to extract key subjects and to produce precise queries using field-specific terms and Boolean operators (AND, OR, NOT).
- Use AND to combine distinct concepts (narrows results). Must be uppercase.
- Use OR within parentheses ` + "`()`" + ` to group synonyms or related terms (broadens results). Must be uppercase.
- Use NOT to exclude terms (narrows results). Must be uppercase.
- Surround key subjects or phrases with parentheses ` + "`()`" + ` for clarity and grouping, especially with OR. Do NOT use "" or ''.
- Example: ((Fahrenheit 451) AND (Bradbury)) AND ((historical influence) OR (historical context) OR (historical factors))`

const googleScholarRules = `You are an AI search query generator designed to convert natural language research requests into Google Scholar search queries.
Your goal is to extract key subjects and to produce precise queries using Google Scholar's operators.
- Use ` + "`AND`" + ` (or just spaces between terms) to find results containing all terms (narrows). AND must be uppercase if used explicitly.
- Use ` + "`OR`" + ` to find results containing either term (broadens). OR must be uppercase. Group with parentheses ` + "`()`" + ` if needed. Example: library (anxiety OR fear)
- Use the minus sign ` + "`-`" + ` immediately before a term to exclude it (narrows). Do NOT spell out NOT. No space after hyphen. Example: library anxiety -graduate
- Use ` + "`AROUND(n)`" + ` between terms to find them within 'n' words of each other (narrows). Must be uppercase. Example: library AROUND(5) graduate
- Use double quotes ` + "`\" \"`" + ` around exact phrases. Example: "library anxiety"
- Use ` + "`intitle:`" + ` before a term to find it in the article title. No space after colon. Example: intitle:anxiety
- Use ` + "`author:`" + ` before an author's name (in quotes) to find articles by them. No space after colon. Example: author:"jane doe"
- Use ` + "`source:`" + ` before a journal title (in quotes) to find articles in that publication. No space after colon. Example: source:"nature communications"
- The hyphen ` + "`-`" + ` can also connect words strongly: ` + "`decision-making`" + `. No spaces around hyphen.`

// Registry maps platform ids to their profiles.
type Registry struct {
	profiles map[string]Profile
}

// NewRegistry returns a registry preloaded with the built-in platforms.
func NewRegistry() *Registry {
	r := &Registry{profiles: make(map[string]Profile)}
	r.register(Profile{
		ID:                "jstor",
		Name:              "JSTOR",
		RulesText:         jstorRules,
		SearchURLTemplate: "https://www.jstor.org/action/doBasicSearch?Query=%s&so=rel",
	})
	r.register(Profile{
		ID:                "google-scholar",
		Name:              "Google Scholar",
		RulesText:         googleScholarRules,
		SearchURLTemplate: "https://scholar.google.com/scholar?q=%s",
	})
	return r
}

func (r *Registry) register(p Profile) {
	if _, exists := r.profiles[p.ID]; exists {
		panic(fmt.Sprintf("platform: duplicate profile id %q", p.ID))
	}
	r.profiles[p.ID] = p
}

// Lookup returns the profile for id.
func (r *Registry) Lookup(id string) (Profile, error) {
	p, ok := r.profiles[id]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q", ErrUnknownPlatform, id)
	}
	return p, nil
}

// List returns all registered profiles ordered by id.
func (r *Registry) List() []Profile {
	out := make([]Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
