package mode

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"github.com/harunalabs/aituber/internal/state"
)

// ErrNoEligibleMode means the weight table and the activity context left
// nothing to select. The dispatch loop treats it as fatal.
var ErrNoEligibleMode = errors.New("no eligible mode")

const (
	Normal       = "normal"
	ThemeContinu = "theme-continuation"
	DeepDive     = "deep-dive"
	ChillChat    = "chill-chat"
	Consultation = "viewer-consultation"
)

// Context is the activity snapshot eligibility is judged against.
type Context struct {
	PendingComments int
	HistoryLen      int
	HasTheme        bool
}

// Manager picks the next content-generation mode by weighted random
// choice among the modes eligible for the current activity. Deterministic
// given the injected random source.
type Manager struct {
	weights map[string]float64
	rng     *rand.Rand

	// Switch probability ramps from rampLow at a mode's minimum
	// utterance count up to rampHigh at its maximum.
	rampLow  float64
	rampHigh float64
}

func NewManager(weights map[string]float64, rng *rand.Rand) *Manager {
	return &Manager{
		weights:  weights,
		rng:      rng,
		rampLow:  0.2,
		rampHigh: 0.8,
	}
}

// Eligible reports whether mode may be selected under ctx. Normal is
// always eligible so selection can never come up empty.
func Eligible(mode string, ctx Context) bool {
	switch mode {
	case Normal:
		return true
	case ThemeContinu:
		return ctx.HasTheme
	case DeepDive:
		return ctx.HistoryLen >= 5
	case ChillChat:
		return ctx.PendingComments == 0
	case Consultation:
		return ctx.PendingComments > 0
	default:
		return false
	}
}

// ShouldSwitch decides whether to leave the current mode after it has
// produced utterances sentences. Below min the mode is always kept, at
// max it is always left, and in between the switch probability ramps up.
func (m *Manager) ShouldSwitch(utterances, min, max int) bool {
	if utterances < min {
		return false
	}
	if max <= min || utterances >= max {
		return true
	}
	frac := float64(utterances-min) / float64(max-min)
	p := m.rampLow + (m.rampHigh-m.rampLow)*frac
	return m.rng.Float64() < p
}

// SelectNext filters the weight table down to eligible modes, excludes
// the previous mode unless it is the only candidate, draws one by weight,
// and records the switch on p. It never returns an ineligible mode; an
// empty candidate set is an invariant violation and comes back as an
// error for the caller to treat as fatal.
func (m *Manager) SelectNext(p *state.Process, ctx Context) (string, error) {
	type candidate struct {
		name   string
		weight float64
	}

	var all []candidate
	for name, w := range m.weights {
		if w <= 0 || !Eligible(name, ctx) {
			continue
		}
		all = append(all, candidate{name, w})
	}
	if len(all) == 0 {
		return "", fmt.Errorf("mode: %w for context %+v", ErrNoEligibleMode, ctx)
	}

	// Prefer modes not used recently, then anything but the previous
	// mode, then whatever is left.
	prev := p.CurrentMode()
	avoid := make(map[string]bool)
	for _, name := range p.RecentModes() {
		avoid[name] = true
	}

	candidates := all[:0:0]
	for _, c := range all {
		if !avoid[c.name] {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		for _, c := range all {
			if c.name != prev {
				candidates = append(candidates, c)
			}
		}
	}
	if len(candidates) == 0 {
		candidates = all
	}

	// Map iteration order is random, so sort for a reproducible draw
	// under a seeded source.
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].name < candidates[j].name })

	var total float64
	for _, c := range candidates {
		total += c.weight
	}
	r := m.rng.Float64() * total
	chosen := candidates[len(candidates)-1].name
	for _, c := range candidates {
		r -= c.weight
		if r < 0 {
			chosen = c.name
			break
		}
	}

	p.SetMode(chosen)
	return chosen, nil
}
