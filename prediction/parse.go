package prediction

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/linesmerrill/courtroom-api/models"
)

type factorContribution struct {
	Factor       string `json:"factor"`
	Contribution string `json:"contribution"`
}

type rawOutput struct {
	Probability     *float64             `json:"probability"`
	Rationale       *string              `json:"rationale"`
	FactorAnalysis  []factorContribution `json:"factor_analysis"`
	Recommendations []string             `json:"recommendations"`
}

type parsedOutput struct {
	probability     float64
	clamped         bool
	rationale       string
	factorAnalysis  map[string]string
	recommendations []string
}

// stripFences removes a markdown code fence some providers wrap JSON in
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

func factorKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// parseOutput validates the backend output against the requested factors. A probability
// outside [0, 1] is clamped and noted in the rationale rather than rejected.
func parseOutput(raw []byte, factors []models.Factor) (*parsedOutput, error) {
	text := stripFences(string(raw))
	malformed := func(format string, args ...interface{}) error {
		return &MalformedOutputError{Reason: fmt.Sprintf(format, args...), Raw: text}
	}

	var out rawOutput
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, malformed("invalid JSON: %v", err)
	}
	switch {
	case out.Probability == nil:
		return nil, malformed("missing probability")
	case math.IsNaN(*out.Probability) || math.IsInf(*out.Probability, 0):
		return nil, malformed("probability is not a finite number")
	case out.Rationale == nil || strings.TrimSpace(*out.Rationale) == "":
		return nil, malformed("missing rationale")
	case out.Recommendations == nil:
		return nil, malformed("missing recommendations")
	}

	contributions := make(map[string]string, len(out.FactorAnalysis))
	for _, fc := range out.FactorAnalysis {
		if k := factorKey(fc.Factor); k != "" {
			contributions[k] = strings.TrimSpace(fc.Contribution)
		}
	}
	analysis := make(map[string]string, len(factors))
	var missing []string
	for _, f := range factors {
		c := contributions[factorKey(f.Name)]
		if c == "" {
			missing = append(missing, f.Name)
			continue
		}
		analysis[f.Name] = c
	}
	if len(missing) > 0 {
		return nil, malformed("factor analysis does not cover %s", strings.Join(missing, ", "))
	}

	recommendations := make([]string, 0, len(out.Recommendations))
	for _, r := range out.Recommendations {
		if r = strings.TrimSpace(r); r != "" {
			recommendations = append(recommendations, r)
		}
	}

	p := &parsedOutput{
		probability:     *out.Probability,
		rationale:       strings.TrimSpace(*out.Rationale),
		factorAnalysis:  analysis,
		recommendations: recommendations,
	}
	if p.probability < 0 || p.probability > 1 {
		clamped := math.Min(math.Max(p.probability, 0), 1)
		p.rationale += fmt.Sprintf("\n\nNote: the model returned a probability of %g, outside the range 0 to 1. "+
			"It was clamped to %g and this prediction should be treated as uncertain.", p.probability, clamped)
		p.probability = clamped
		p.clamped = true
	}
	return p, nil
}
