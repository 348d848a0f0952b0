package agents

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/linesmerrill/courtroom-api/models"
)

func TestDefaultRegistry(t *testing.T) {
	reg, err := DefaultRegistry()
	require.NoError(t, err)

	assert.Equal(t, []string{"civil_hearing", "examination", "family_hearing", "mediation"}, reg.Names())

	family, err := reg.Lookup("family_hearing")
	require.NoError(t, err)
	assert.Equal(t, models.Roles, family.Roles)
	assert.Equal(t, "Family Court", family.Jurisdiction)

	mediation, err := reg.Lookup("mediation")
	require.NoError(t, err)
	assert.False(t, mediation.Requires(models.RoleJudge))
	assert.True(t, mediation.Requires(models.RoleOpposingCounsel))

	_, err = reg.Lookup("trial_by_combat")
	assert.True(t, errors.Is(err, ErrUnknownConversationType))
}

func TestParseRegistry_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "invalid yaml",
			doc:  "conversation_types: [",
			want: "failed to parse conversation types",
		},
		{
			name: "no types",
			doc:  "framings: {}",
			want: "no conversation types defined",
		},
		{
			name: "unknown role",
			doc: `
framings:
  client: hi
conversation_types:
  x:
    roles: [client, bailiff]`,
			want: `unknown role "bailiff"`,
		},
		{
			name: "duplicate role",
			doc: `
framings:
  client: hi
conversation_types:
  x:
    roles: [client, client]`,
			want: "listed twice",
		},
		{
			name: "missing framing",
			doc: `
framings:
  client: hi
conversation_types:
  x:
    roles: [client, judge]`,
			want: `no framing for role "judge"`,
		},
		{
			name: "bad template",
			doc: `
framings:
  client: "{{ .Name "
conversation_types:
  x:
    roles: [client]`,
			want: "framing for",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRegistry([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseRegistry_OverrideFraming(t *testing.T) {
	reg, err := ParseRegistry([]byte(`
framings:
  client: "shared {{ .Name }}"
conversation_types:
  plain:
    roles: [client]
  custom:
    roles: [client]
    framings:
      client: "custom {{ .Name }}"`))
	require.NoError(t, err)

	p := models.Participant{ID: primitive.NewObjectID(), Role: models.RoleClient, Name: "Ana"}
	plain, _ := reg.Lookup("plain")
	custom, _ := reg.Lookup("custom")

	out, err := plain.Frame(models.Case{}, p, nil)
	require.NoError(t, err)
	assert.Equal(t, "shared Ana", out)

	out, err = custom.Frame(models.Case{}, p, nil)
	require.NoError(t, err)
	assert.Equal(t, "custom Ana", out)
}

func TestConversationType_Frame(t *testing.T) {
	reg, err := DefaultRegistry()
	require.NoError(t, err)
	ct, err := reg.Lookup("family_hearing")
	require.NoError(t, err)

	c := models.Case{ID: primitive.NewObjectID(), Title: "Doe v. Doe", Type: "family", Description: "Custody of two children."}
	client := models.Participant{ID: primitive.NewObjectID(), Role: models.RoleClient, Name: "Jane Doe",
		Background: map[string]string{"occupation": "nurse", "demeanor": "calm"}}
	opposing := models.Participant{ID: primitive.NewObjectID(), Role: models.RoleOpposingParty, Name: "John Doe"}
	counsel := models.Participant{ID: primitive.NewObjectID(), Role: models.RoleClientCounsel, Name: "Ms. Reyes",
		Background: map[string]string{"aggressive_factor": "0.9"}}
	opposingCounsel := models.Participant{ID: primitive.NewObjectID(), Role: models.RoleOpposingCounsel, Name: "Mr. Park"}
	judge := models.Participant{ID: primitive.NewObjectID(), Role: models.RoleJudge, Name: "Judge Hale"}
	roster := []models.Participant{client, opposing, counsel, opposingCounsel, judge}

	t.Run("client", func(t *testing.T) {
		out, err := ct.Frame(c, client, roster)
		require.NoError(t, err)
		assert.Contains(t, out, `You are Jane Doe, the client in the family matter "Doe v. Doe".`)
		assert.Contains(t, out, "- occupation: nurse")
		assert.NotContains(t, out, "- demeanor")
		assert.Contains(t, out, "generally calm")
		assert.Contains(t, out, "Defer to your counsel, Ms. Reyes,")
	})
	t.Run("opposing party", func(t *testing.T) {
		out, err := ct.Frame(c, opposing, roster)
		require.NoError(t, err)
		assert.Contains(t, out, "ex-spouse relationship with Jane Doe")
		assert.Contains(t, out, "No additional background was provided.")
	})
	t.Run("client counsel", func(t *testing.T) {
		out, err := ct.Frame(c, counsel, roster)
		require.NoError(t, err)
		assert.Contains(t, out, "specializing in Family Law, representing Jane Doe.")
		assert.Contains(t, out, "assertive and forceful")
		assert.Contains(t, out, "best interests of any children")
	})
	t.Run("opposing counsel", func(t *testing.T) {
		out, err := ct.Frame(c, opposingCounsel, roster)
		require.NoError(t, err)
		assert.Contains(t, out, "representing John Doe.")
		assert.Contains(t, out, "firm but professional")
	})
	t.Run("judge", func(t *testing.T) {
		out, err := ct.Frame(c, judge, roster)
		require.NoError(t, err)
		assert.Contains(t, out, "You are Judge Hale, a judge with 20 years of experience presiding in the Family Court.")
		assert.Contains(t, out, "Remain strictly neutral")
	})
}

func TestConversationType_FrameRoleNotInType(t *testing.T) {
	reg, err := DefaultRegistry()
	require.NoError(t, err)
	ct, err := reg.Lookup("mediation")
	require.NoError(t, err)

	_, err = ct.Frame(models.Case{}, models.Participant{Role: models.RoleJudge, Name: "Judge"}, nil)
	var invalid *InvalidBindingError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, models.RoleJudge, invalid.Role)
}

func TestFramingData_Tone(t *testing.T) {
	tests := []struct {
		factor string
		want   string
	}{
		{"", "firm but professional"},
		{"not-a-number", "firm but professional"},
		{"0.2", "diplomatic"},
		{"0.71", "assertive"},
		{"7", "assertive"},
		{"-3", "diplomatic"},
	}
	for _, tt := range tests {
		d := framingData{background: map[string]string{"aggressive_factor": tt.factor}}
		assert.Contains(t, d.Tone(), tt.want, "factor %q", tt.factor)
	}
}

func TestFramingData_RepresentingFallback(t *testing.T) {
	d := framingData{Role: models.RoleOpposingCounsel, counterparts: map[models.Role]string{}}
	assert.Equal(t, "the opposing party", d.Representing())

	d.background = map[string]string{"representing": "Acme Corp"}
	assert.Equal(t, "Acme Corp", d.Representing())
}
