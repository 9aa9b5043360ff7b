package querygen

import (
	"fmt"

	"github.com/ivanhe123/jstor-gen/internal/platform"
)

const (
	minVariations = 1
	maxVariations = 10
)

const generationDirective = `
Generate %d distinct query variations based on the user's request below.
Use the specific syntax rules for %s.
Provide a brief general explanation first, then list the queries.
Enclose *each* generated query within its own <query>...</query> tags, with each tag pair on a new line.
Example for multiple queries:
Explanation text...
<query>Query 1 using %s syntax</query>
<query>Query 2 using %s syntax</query>`

// ComposePrompt builds the system instruction for one request: the
// platform's syntax rules followed by the generation directive. A single
// requested variation still uses the tag wrapping so downstream parsing is
// uniform.
func ComposePrompt(profile platform.Profile, variationCount int) (string, error) {
	if variationCount < minVariations || variationCount > maxVariations {
		return "", fmt.Errorf("%w: got %d", ErrInvalidVariationCount, variationCount)
	}
	directive := fmt.Sprintf(generationDirective, variationCount, profile.Name, profile.Name, profile.Name)
	return profile.RulesText + "\n" + directive, nil
}
