package prediction

import (
	"fmt"
	"strings"

	"github.com/linesmerrill/courtroom-api/models"
	"github.com/linesmerrill/courtroom-api/reasoning"
)

type promptInput struct {
	legalCase    models.Case
	scenario     string
	factors      []models.Factor
	shares       []float64
	focusAreas   []string
	transcript   []models.Message
	participants []models.Participant
}

func (in promptInput) judge() *models.Participant {
	for i := range in.participants {
		if in.participants[i].Role == models.RoleJudge {
			return &in.participants[i]
		}
	}
	return nil
}

func renderPrompt(in promptInput) string {
	var b strings.Builder

	if j := in.judge(); j != nil {
		jurisdiction := j.Background["jurisdiction"]
		if jurisdiction == "" {
			jurisdiction = "this court"
		}
		fmt.Fprintf(&b, "You are %s, presiding in %s. Assess the case impartially, as you would from the bench.\n\n", j.Name, jurisdiction)
	} else {
		b.WriteString("You are an experienced, impartial judge assessing a case.\n\n")
	}

	b.WriteString("Based on the case information and the proceeding so far, predict the likely outcome for the client.\n\n")
	fmt.Fprintf(&b, "CASE TYPE: %s\n", in.legalCase.Type)
	if d := strings.TrimSpace(in.legalCase.Description); d != "" {
		fmt.Fprintf(&b, "CASE DESCRIPTION: %s\n", d)
	}
	fmt.Fprintf(&b, "\nSCENARIO: %s\n", strings.TrimSpace(in.scenario))

	b.WriteString("\nKEY FACTORS (relative weight in parentheses):\n")
	for i, f := range in.factors {
		fmt.Fprintf(&b, "- %s (%.0f%%)", f.Name, in.shares[i]*100)
		if d := strings.TrimSpace(f.Description); d != "" {
			fmt.Fprintf(&b, ": %s", d)
		}
		b.WriteString("\n")
	}

	if len(in.focusAreas) > 0 {
		b.WriteString("\nFOCUS AREAS:\n")
		for _, area := range in.focusAreas {
			fmt.Fprintf(&b, "- %s\n", area)
		}
	}

	byID := make(map[string]models.Participant, len(in.participants))
	for _, p := range in.participants {
		byID[p.ID.Hex()] = p
	}
	b.WriteString("\nTRANSCRIPT:\n")
	if len(in.transcript) == 0 {
		b.WriteString("(no statements have been made yet)\n")
	}
	for _, m := range in.transcript {
		t := reasoning.Turn{Sequence: m.Sequence, Content: m.Content}
		if m.ParticipantID != nil {
			if p, ok := byID[*m.ParticipantID]; ok {
				t.Speaker, t.Role = p.Name, string(p.Role)
			}
		}
		b.WriteString(reasoning.FormatTurn(t))
		b.WriteString("\n")
	}

	b.WriteString("\nReturn the probability (0 to 1) that the outcome favours the client, your legal rationale, " +
		"an analysis of how each key factor contributes (use the factor names exactly as listed and cover every one) " +
		"and concrete recommendations for the client.")
	return b.String()
}
