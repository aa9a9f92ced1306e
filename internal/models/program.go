package models

import (
	"fmt"
	"time"
)

// Frequency is how often a phase recurs.
type Frequency string

const (
	FrequencyDaily      Frequency = "DAILY"
	FrequencyWeekly     Frequency = "WEEKLY"
	FrequencyBiweekly   Frequency = "BIWEEKLY"
	FrequencyMonthly    Frequency = "MONTHLY"
	FrequencyQuarterly  Frequency = "QUARTERLY"
	FrequencySemiannual Frequency = "SEMIANNUAL"
	FrequencyAnnual     Frequency = "ANNUAL"
)

// NominalIntervalDays returns the default spacing in days for a frequency,
// or 0 for an unknown one.
func (f Frequency) NominalIntervalDays() int {
	switch f {
	case FrequencyDaily:
		return 1
	case FrequencyWeekly:
		return 7
	case FrequencyBiweekly:
		return 14
	case FrequencyMonthly:
		return 30
	case FrequencyQuarterly:
		return 90
	case FrequencySemiannual:
		return 180
	case FrequencyAnnual:
		return 365
	default:
		return 0
	}
}

// IsValidFrequency checks if a frequency is valid
func IsValidFrequency(f Frequency) bool {
	return f.NominalIntervalDays() > 0
}

// Phase is a recurring maintenance activity template inside a program.
type Phase struct {
	Number         int       `json:"number"`
	Description    string    `json:"description"`
	Frequency      Frequency `json:"frequency"`
	IntervalDays   int       `json:"interval_days"`
	Tasks          []string  `json:"tasks,omitempty"`
	Resources      []string  `json:"resources,omitempty"`
	EstimatedHours float64   `json:"estimated_hours"`
	Notes          string    `json:"notes,omitempty"`
}

// Validate checks the phase's required fields.
func (p *Phase) Validate() error {
	if p.Number <= 0 {
		return fmt.Errorf("%w: phase number must be positive, got %d", ErrValidation, p.Number)
	}
	if isBlank(p.Description) {
		return fmt.Errorf("%w: phase %d: description is required", ErrValidation, p.Number)
	}
	if !IsValidFrequency(p.Frequency) {
		return fmt.Errorf("%w: phase %d: unknown frequency %q", ErrValidation, p.Number, p.Frequency)
	}
	if p.IntervalDays < 0 {
		return fmt.Errorf("%w: phase %d: interval cannot be negative", ErrValidation, p.Number)
	}
	if p.EstimatedHours < 0 {
		return fmt.Errorf("%w: phase %d: estimated hours cannot be negative", ErrValidation, p.Number)
	}
	return nil
}

func (p Phase) clone() Phase {
	p.Tasks = append([]string(nil), p.Tasks...)
	p.Resources = append([]string(nil), p.Resources...)
	return p
}

// PreventiveProgram is an ordered set of phases applied to every equipment
// unit it is assigned to.
type PreventiveProgram struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Objective   string    `json:"objective,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	Responsible string    `json:"responsible,omitempty"`
	Phases      []Phase   `json:"phases"`
}

// Validate checks the program header and every phase, including phase number uniqueness.
func (p *PreventiveProgram) Validate() error {
	if p.ID <= 0 {
		return fmt.Errorf("%w: program id must be positive, got %d", ErrValidation, p.ID)
	}
	if isBlank(p.Name) {
		return fmt.Errorf("%w: program %d: name is required", ErrValidation, p.ID)
	}
	seen := make(map[int]struct{}, len(p.Phases))
	for i := range p.Phases {
		if err := p.Phases[i].Validate(); err != nil {
			return fmt.Errorf("program %d: %w", p.ID, err)
		}
		if _, dup := seen[p.Phases[i].Number]; dup {
			return fmt.Errorf("%w: program %d: duplicate phase number %d", ErrConflict, p.ID, p.Phases[i].Number)
		}
		seen[p.Phases[i].Number] = struct{}{}
	}
	return nil
}

// AddPhase appends a phase, defaulting its interval from the frequency.
func (p *PreventiveProgram) AddPhase(phase Phase) error {
	if err := phase.Validate(); err != nil {
		return err
	}
	if _, ok := p.Phase(phase.Number); ok {
		return fmt.Errorf("%w: program %d already has phase %d", ErrConflict, p.ID, phase.Number)
	}
	if phase.IntervalDays == 0 {
		phase.IntervalDays = phase.Frequency.NominalIntervalDays()
	}
	p.Phases = append(p.Phases, phase.clone())
	return nil
}

// Phase looks up a phase by number.
func (p *PreventiveProgram) Phase(number int) (Phase, bool) {
	for _, ph := range p.Phases {
		if ph.Number == number {
			return ph.clone(), true
		}
	}
	return Phase{}, false
}

// PhaseList returns a copy of the phases in stored order.
func (p *PreventiveProgram) PhaseList() []Phase {
	phases := make([]Phase, len(p.Phases))
	for i, ph := range p.Phases {
		phases[i] = ph.clone()
	}
	return phases
}

// Clone returns a deep copy of the program.
func (p PreventiveProgram) Clone() PreventiveProgram {
	p.Phases = p.PhaseList()
	return p
}

// NormalizePhaseIntervals fills unset intervals from each phase's frequency.
func (p *PreventiveProgram) NormalizePhaseIntervals() {
	for i := range p.Phases {
		if p.Phases[i].IntervalDays == 0 {
			p.Phases[i].IntervalDays = p.Phases[i].Frequency.NominalIntervalDays()
		}
	}
}
