package prediction

import "github.com/linesmerrill/courtroom-api/reasoning"

// outputSchema is the structure the backend is asked to return
var outputSchema = &reasoning.Schema{
	Name: "outcome_prediction",
	Type: reasoning.TypeObject,
	Properties: map[string]*reasoning.Schema{
		"probability": {
			Type:        reasoning.TypeNumber,
			Description: "Probability between 0 and 1 that the outcome favours the client",
		},
		"rationale": {
			Type:        reasoning.TypeString,
			Description: "Legal reasoning behind the probability",
		},
		"factor_analysis": {
			Type:        reasoning.TypeArray,
			Description: "One entry for every key factor listed in the prompt",
			Items: &reasoning.Schema{
				Type: reasoning.TypeObject,
				Properties: map[string]*reasoning.Schema{
					"factor":       {Type: reasoning.TypeString, Description: "Factor name exactly as listed"},
					"contribution": {Type: reasoning.TypeString, Description: "How the factor moves the outcome and why"},
				},
				Required: []string{"factor", "contribution"},
			},
		},
		"recommendations": {
			Type:        reasoning.TypeArray,
			Description: "Concrete recommendations for the client",
			Items:       &reasoning.Schema{Type: reasoning.TypeString},
		},
	},
	Required: []string{"probability", "rationale", "factor_analysis", "recommendations"},
}
