package agents

// Direction tells whether a memory entry was received or spoken by the agent
type Direction string

// Memory entry directions
const (
	Inbound  Direction = "inbound"  // directives and messages addressed to the agent
	Outbound Direction = "outbound" // the agent's own utterances
)

// MemoryEntry is one item of an agent's private memory
type MemoryEntry struct {
	Direction Direction
	Content   string
	Sequence  int64  // transcript sequence, 0 for directives and utterances not yet appended
	From      string // who addressed the agent, empty for directives
}

// Memory is an agent's private, append-only record of prior turns. Values are never
// modified in place: Append always returns a new Memory sharing nothing with the old one.
type Memory struct {
	entries []MemoryEntry
}

// NewMemory returns a memory holding the given entries in order
func NewMemory(entries ...MemoryEntry) Memory {
	return Memory{}.Append(entries...)
}

// Append returns a new memory with entries added after the existing ones
func (m Memory) Append(entries ...MemoryEntry) Memory {
	next := make([]MemoryEntry, 0, len(m.entries)+len(entries))
	next = append(next, m.entries...)
	next = append(next, entries...)
	return Memory{entries: next}
}

// Entries returns a copy of the entries, oldest first
func (m Memory) Entries() []MemoryEntry {
	out := make([]MemoryEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Len returns the number of entries
func (m Memory) Len() int {
	return len(m.entries)
}

// notes renders the memory for a reasoning request
func (m Memory) notes() []string {
	out := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		switch e.Direction {
		case Inbound:
			if e.From != "" {
				out = append(out, e.From+" said to you: "+e.Content)
				continue
			}
			out = append(out, "You were asked: "+e.Content)
		default:
			out = append(out, "You said: "+e.Content)
		}
	}
	return out
}
