// Package budget meters spend on priced model calls against a fixed USD ceiling.
package budget

import (
	"fmt"
	"math"
	"sync"
)

// ApproachingLimitPercent is the remaining-budget percentage below which the
// "approaching limit" marker is recorded.
const ApproachingLimitPercent = 20.0

// MarkerApproachingLimit is appended to Markers once the remaining budget
// drops below ApproachingLimitPercent.
const MarkerApproachingLimit = "approaching limit"

// tokensPerChar approximates the tokenizer for pre-flight estimates.
const tokensPerChar = 0.25

// Manager tracks cumulative token usage and cost against a ceiling.
//
// Budget checks are advisory gates evaluated before a call starts. Record
// reconciles with the usage the API actually reported, so a single call may
// overshoot the ceiling; the next WouldExceed or Exhausted check rejects.
type Manager struct {
	mu           sync.Mutex
	ceiling      float64
	inputPrice   float64 // USD per million input tokens
	outputPrice  float64 // USD per million output tokens
	inputTokens  int
	outputTokens int
	exhausted    bool
	warned       bool
	markers      []string
}

// NewManager creates a ledger with the given USD ceiling and per-million
// token prices.
func NewManager(ceiling, inputPrice, outputPrice float64) *Manager {
	if ceiling < 0 {
		ceiling = 0
	}
	return &Manager{
		ceiling:     ceiling,
		inputPrice:  inputPrice,
		outputPrice: outputPrice,
	}
}

// Cost returns the USD price of the given token counts.
func (m *Manager) Cost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)/1e6*m.inputPrice + float64(outputTokens)/1e6*m.outputPrice
}

// Ceiling returns the fixed USD ceiling.
func (m *Manager) Ceiling() float64 {
	return m.ceiling
}

// Spent returns the cumulative cost recorded so far.
func (m *Manager) Spent() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.spent()
}

func (m *Manager) spent() float64 {
	return m.Cost(m.inputTokens, m.outputTokens)
}

// Remaining returns max(0, ceiling - spent).
func (m *Manager) Remaining() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return math.Max(0, m.ceiling-m.spent())
}

// WouldExceed reports whether spending the estimated tokens on top of the
// current total would push the cost past the ceiling.
func (m *Manager) WouldExceed(estInput, estOutput int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.spent()+m.Cost(estInput, estOutput) > m.ceiling
}

// Record adds actual usage reported by the API.
func (m *Manager) Record(inputTokens, outputTokens int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.inputTokens += inputTokens
	m.outputTokens += outputTokens

	spent := m.spent()
	if spent >= m.ceiling {
		m.exhausted = true
	}
	if !m.warned && m.remainingPercent(spent) < ApproachingLimitPercent {
		m.warned = true
		m.markers = append(m.markers, MarkerApproachingLimit)
	}
}

func (m *Manager) remainingPercent(spent float64) float64 {
	if m.ceiling <= 0 {
		return 0
	}
	return math.Max(0, m.ceiling-spent) / m.ceiling * 100
}

// Exhausted returns true once cumulative cost has reached the ceiling.
func (m *Manager) Exhausted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exhausted
}

// Markers returns the one-time markers recorded so far.
func (m *Manager) Markers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.markers))
	copy(out, m.markers)
	return out
}

// Reset zeroes all counters and flags. Prices and ceiling are kept.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputTokens = 0
	m.outputTokens = 0
	m.exhausted = false
	m.warned = false
	m.markers = nil
}

// String summarizes the ledger for terminal output.
func (m *Manager) String() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	spent := m.spent()
	return fmt.Sprintf("$%.4f of $%.2f spent (%.0f%% remaining)", spent, m.ceiling, m.remainingPercent(spent))
}

// EstimateTokens approximates the token count of text at 0.25 tokens per
// character, rounded up.
func EstimateTokens(text string) int {
	return int(math.Ceil(float64(len(text)) * tokensPerChar))
}
