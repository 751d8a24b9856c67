package budget

// Snapshot is the persisted form of a ledger. It is stored inside the
// session record so the ceiling spans resumed runs.
type Snapshot struct {
	Ceiling      float64  `json:"ceiling"`
	InputPrice   float64  `json:"input_price"`
	OutputPrice  float64  `json:"output_price"`
	InputTokens  int      `json:"input_tokens"`
	OutputTokens int      `json:"output_tokens"`
	Exhausted    bool     `json:"exhausted"`
	Markers      []string `json:"markers,omitempty"`
}

// Snapshot captures the current ledger state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	var markers []string
	if len(m.markers) > 0 {
		markers = make([]string, len(m.markers))
		copy(markers, m.markers)
	}
	return Snapshot{
		Ceiling:      m.ceiling,
		InputPrice:   m.inputPrice,
		OutputPrice:  m.outputPrice,
		InputTokens:  m.inputTokens,
		OutputTokens: m.outputTokens,
		Exhausted:    m.exhausted,
		Markers:      markers,
	}
}

// Restore rebuilds a ledger from a snapshot. Derived flags are recomputed
// from the token counts so a hand-edited snapshot cannot claim headroom it
// does not have.
func Restore(s Snapshot) *Manager {
	m := NewManager(s.Ceiling, s.InputPrice, s.OutputPrice)
	m.inputTokens = s.InputTokens
	m.outputTokens = s.OutputTokens
	m.markers = append([]string(nil), s.Markers...)
	spent := m.spent()
	m.exhausted = s.Exhausted || spent >= m.ceiling
	for _, marker := range m.markers {
		if marker == MarkerApproachingLimit {
			m.warned = true
		}
	}
	return m
}
