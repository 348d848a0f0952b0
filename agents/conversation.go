package agents

import (
	_ "embed"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/linesmerrill/courtroom-api/models"
)

//go:embed conversation_types.yaml
var defaultConversationTypes []byte

var (
	defaultRegistryOnce sync.Once
	defaultRegistry     *Registry
	defaultRegistryErr  error
)

// ConversationType selects which roles take part in a simulation and how each of
// them is framed.
type ConversationType struct {
	Name           string                 `yaml:"-"`
	Description    string                 `yaml:"description"`
	Jurisdiction   string                 `yaml:"jurisdiction"`
	Specialization string                 `yaml:"specialization"`
	Roles          []models.Role          `yaml:"roles"`
	Framings       map[models.Role]string `yaml:"framings"`

	templates map[models.Role]*template.Template
}

// Requires reports whether role must be bound for this conversation type
func (ct *ConversationType) Requires(role models.Role) bool {
	for _, r := range ct.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Registry holds the known conversation types
type Registry struct {
	types map[string]*ConversationType
}

type registryFile struct {
	Framings          map[models.Role]string       `yaml:"framings"`
	ConversationTypes map[string]*ConversationType `yaml:"conversation_types"`
}

// DefaultRegistry returns the registry built from the embedded conversation types
func DefaultRegistry() (*Registry, error) {
	defaultRegistryOnce.Do(func() {
		defaultRegistry, defaultRegistryErr = ParseRegistry(defaultConversationTypes)
	})
	return defaultRegistry, defaultRegistryErr
}

// ParseRegistry parses a YAML registry document and compiles every framing template
func ParseRegistry(data []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse conversation types: %w", err)
	}
	if len(file.ConversationTypes) == 0 {
		return nil, fmt.Errorf("no conversation types defined")
	}

	reg := &Registry{types: make(map[string]*ConversationType, len(file.ConversationTypes))}
	for name, ct := range file.ConversationTypes {
		if ct == nil {
			return nil, fmt.Errorf("conversation type %s is empty", name)
		}
		ct.Name = name
		if len(ct.Roles) == 0 {
			return nil, fmt.Errorf("conversation type %s has no roles", name)
		}
		ct.templates = make(map[models.Role]*template.Template, len(ct.Roles))
		seen := make(map[models.Role]bool, len(ct.Roles))
		for _, role := range ct.Roles {
			if !role.Valid() {
				return nil, fmt.Errorf("conversation type %s: unknown role %q", name, role)
			}
			if seen[role] {
				return nil, fmt.Errorf("conversation type %s: role %q listed twice", name, role)
			}
			seen[role] = true

			text, ok := ct.Framings[role]
			if !ok {
				text, ok = file.Framings[role]
			}
			if !ok || strings.TrimSpace(text) == "" {
				return nil, fmt.Errorf("conversation type %s: no framing for role %q", name, role)
			}
			tmpl, err := template.New(name + "/" + string(role)).Option("missingkey=zero").Parse(text)
			if err != nil {
				return nil, fmt.Errorf("conversation type %s: framing for %q: %w", name, role, err)
			}
			ct.templates[role] = tmpl
		}
		reg.types[name] = ct
	}
	return reg, nil
}

// Lookup returns the named conversation type
func (r *Registry) Lookup(name string) (*ConversationType, error) {
	ct, ok := r.types[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownConversationType, name)
	}
	return ct, nil
}

// Names returns the registered conversation type names, sorted
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// framingKeys are background attributes consumed directly by the templates and left
// out of the generic background listing.
var framingKeys = map[string]bool{
	"demeanor":               true,
	"emotional_state":        true,
	"relationship_to_client": true,
	"experience_level":       true,
	"specialization":         true,
	"representing":           true,
	"aggressive_factor":      true,
	"jurisdiction":           true,
	"legal_experience":       true,
}

// framingData is what role framing templates are executed against
type framingData struct {
	Name            string
	Role            models.Role
	CaseTitle       string
	CaseType        string
	CaseDescription string
	Jurisdiction    string
	Specialization  string

	background   map[string]string
	counterparts map[models.Role]string
}

func newFramingData(ct *ConversationType, c models.Case, p models.Participant, roster []models.Participant) framingData {
	d := framingData{
		Name:            p.Name,
		Role:            p.Role,
		CaseTitle:       c.Title,
		CaseType:        c.Type,
		CaseDescription: strings.TrimSpace(c.Description),
		Jurisdiction:    ct.Jurisdiction,
		Specialization:  ct.Specialization,
		background:      p.Background,
		counterparts:    make(map[models.Role]string, len(roster)),
	}
	for _, other := range roster {
		if other.ID == p.ID {
			continue
		}
		if _, taken := d.counterparts[other.Role]; !taken {
			d.counterparts[other.Role] = other.Name
		}
	}
	return d
}

// Attr returns a background attribute or fallback when it is unset
func (d framingData) Attr(key, fallback string) string {
	if v := strings.TrimSpace(d.background[key]); v != "" {
		return v
	}
	return fallback
}

// Counterpart returns the name of the participant holding role, if any
func (d framingData) Counterpart(role string) string {
	return d.counterparts[models.Role(role)]
}

// Representing names the party a counsel speaks for
func (d framingData) Representing() string {
	if v := d.Attr("representing", ""); v != "" {
		return v
	}
	party := models.RoleClient
	if d.Role == models.RoleOpposingCounsel {
		party = models.RoleOpposingParty
	}
	if name := d.counterparts[party]; name != "" {
		return name
	}
	if party == models.RoleOpposingParty {
		return "the opposing party"
	}
	return "the client"
}

// Tone maps the counsel's aggressiveness (0.0 - 1.0) to an instruction
func (d framingData) Tone() string {
	factor := 0.5
	if v, err := strconv.ParseFloat(d.Attr("aggressive_factor", ""), 64); err == nil {
		factor = min(max(v, 0), 1)
	}
	switch {
	case factor > 0.7:
		return "You are assertive and forceful in your arguments, pushing hard for your client's interests."
	case factor > 0.4:
		return "You are firm but professional, balancing advocacy with respectful discourse."
	default:
		return "You are diplomatic and solution-oriented, seeking reasonable compromise while protecting your client's interests."
	}
}

// BackgroundLines lists the free-form background attributes as "key: value", sorted
func (d framingData) BackgroundLines() []string {
	keys := make([]string, 0, len(d.background))
	for k, v := range d.background {
		if framingKeys[k] || strings.TrimSpace(v) == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = fmt.Sprintf("%s: %s", strings.ReplaceAll(k, "_", " "), strings.TrimSpace(d.background[k]))
	}
	return lines
}

// Frame renders the system framing for participant p
func (ct *ConversationType) Frame(c models.Case, p models.Participant, roster []models.Participant) (string, error) {
	tmpl, ok := ct.templates[p.Role]
	if !ok {
		return "", &InvalidBindingError{Role: p.Role, Reason: "role takes no part in " + ct.Name}
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, newFramingData(ct, c, p, roster)); err != nil {
		return "", fmt.Errorf("failed to render framing for %s: %w", p.Role, err)
	}
	return strings.TrimSpace(b.String()), nil
}
