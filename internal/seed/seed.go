// Package seed loads a plant fixture from YAML into a maintenance service.
package seed

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/ukydev/maintenance-scheduler/internal/maintenance"
	"github.com/ukydev/maintenance-scheduler/internal/models"
	"gopkg.in/yaml.v3"
)

// Fixture is the YAML document shape.
type Fixture struct {
	Programs    []Program    `yaml:"programs"`
	Equipment   []Equipment  `yaml:"equipment"`
	Technicians []Technician `yaml:"technicians"`
	Calendar    []string     `yaml:"calendar"`
}

// Program is a preventive program with its phases.
type Program struct {
	ID          int64   `yaml:"id"`
	Name        string  `yaml:"name"`
	Objective   string  `yaml:"objective"`
	Responsible string  `yaml:"responsible"`
	Phases      []Phase `yaml:"phases"`
}

// Phase uses the frequency names accepted by the API, such as MONTHLY.
type Phase struct {
	Number         int      `yaml:"number"`
	Description    string   `yaml:"description"`
	Frequency      string   `yaml:"frequency"`
	IntervalDays   int      `yaml:"interval_days"`
	Tasks          []string `yaml:"tasks"`
	Resources      []string `yaml:"resources"`
	EstimatedHours float64  `yaml:"estimated_hours"`
	Notes          string   `yaml:"notes"`
}

// Equipment carries dates as YYYY-MM-DD and cost as a decimal string.
type Equipment struct {
	ID               int64       `yaml:"id"`
	Description      string      `yaml:"description"`
	Type             string      `yaml:"type"`
	Location         string      `yaml:"location"`
	Manufacturer     string      `yaml:"manufacturer"`
	Serial           string      `yaml:"serial"`
	AcquisitionDate  string      `yaml:"acquisition_date"`
	ServiceStartDate string      `yaml:"service_start_date"`
	UsefulLifeMonths int         `yaml:"useful_life_months"`
	Cost             string      `yaml:"cost"`
	State            string      `yaml:"state"`
	ProgramID        int64       `yaml:"program_id"`
	Components       []Equipment `yaml:"components"`
}

// Technician is registered before any order can be assigned to it.
type Technician struct {
	ID        int64  `yaml:"id"`
	FirstName string `yaml:"first_name"`
	LastName  string `yaml:"last_name"`
	Specialty string `yaml:"specialty"`
	Active    bool   `yaml:"active"`
}

// Load reads and parses a fixture file.
func Load(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a fixture document. Unknown keys are rejected.
func Parse(data []byte) (*Fixture, error) {
	var f Fixture
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: parse seed: %v", models.ErrValidation, err)
	}
	return &f, nil
}

// Summary counts what Apply created.
type Summary struct {
	Programs    int
	Equipment   int
	Technicians int
	Dates       int
}

// Apply inserts the fixture into svc: programs first so equipment can
// reference them. It stops at the first error.
func Apply(ctx context.Context, svc *maintenance.Service, f *Fixture) (Summary, error) {
	var s Summary
	for _, p := range f.Programs {
		if _, err := svc.AddProgram(ctx, p.toModel()); err != nil {
			return s, fmt.Errorf("seed program %d: %w", p.ID, err)
		}
		s.Programs++
	}
	for _, e := range f.Equipment {
		equipment, err := e.toModel()
		if err != nil {
			return s, err
		}
		if _, err := svc.AddEquipment(ctx, equipment); err != nil {
			return s, fmt.Errorf("seed equipment %d: %w", e.ID, err)
		}
		s.Equipment++
	}
	for _, t := range f.Technicians {
		technician := models.Technician{
			ID:        t.ID,
			FirstName: t.FirstName,
			LastName:  t.LastName,
			Specialty: t.Specialty,
			Active:    t.Active,
		}
		if _, err := svc.AddTechnician(ctx, technician); err != nil {
			return s, fmt.Errorf("seed technician %d: %w", t.ID, err)
		}
		s.Technicians++
	}
	for _, raw := range f.Calendar {
		day, err := models.ParseDay(raw)
		if err != nil {
			return s, fmt.Errorf("%w: seed calendar date %q: %v", models.ErrValidation, raw, err)
		}
		added, err := svc.ScheduleDate(ctx, day)
		if err != nil {
			return s, fmt.Errorf("seed calendar date %s: %w", raw, err)
		}
		if added {
			s.Dates++
		}
	}
	return s, nil
}

func (p Program) toModel() models.PreventiveProgram {
	program := models.PreventiveProgram{
		ID:          p.ID,
		Name:        p.Name,
		Objective:   p.Objective,
		Responsible: p.Responsible,
	}
	for _, ph := range p.Phases {
		program.Phases = append(program.Phases, models.Phase{
			Number:         ph.Number,
			Description:    ph.Description,
			Frequency:      models.Frequency(ph.Frequency),
			IntervalDays:   ph.IntervalDays,
			Tasks:          ph.Tasks,
			Resources:      ph.Resources,
			EstimatedHours: ph.EstimatedHours,
			Notes:          ph.Notes,
		})
	}
	return program
}

func (e Equipment) toModel() (models.Equipment, error) {
	acquired, err := models.ParseDay(e.AcquisitionDate)
	if err != nil {
		return models.Equipment{}, fmt.Errorf("%w: equipment %d acquisition date: %v", models.ErrValidation, e.ID, err)
	}
	serviceStart := acquired
	if e.ServiceStartDate != "" {
		if serviceStart, err = models.ParseDay(e.ServiceStartDate); err != nil {
			return models.Equipment{}, fmt.Errorf("%w: equipment %d service start date: %v", models.ErrValidation, e.ID, err)
		}
	}
	cost := decimal.Zero
	if e.Cost != "" {
		if cost, err = decimal.NewFromString(e.Cost); err != nil {
			return models.Equipment{}, fmt.Errorf("%w: equipment %d cost %q: %v", models.ErrValidation, e.ID, e.Cost, err)
		}
	}

	equipment := models.Equipment{
		ID:               e.ID,
		Description:      e.Description,
		Type:             e.Type,
		Location:         e.Location,
		Manufacturer:     e.Manufacturer,
		Serial:           e.Serial,
		AcquisitionDate:  acquired,
		ServiceStartDate: serviceStart,
		UsefulLifeMonths: e.UsefulLifeMonths,
		Cost:             cost,
		State:            models.EquipmentState(e.State),
		ProgramID:        e.ProgramID,
	}
	for _, c := range e.Components {
		component, err := c.toModel()
		if err != nil {
			return models.Equipment{}, err
		}
		if component.State == "" {
			component.State = models.EquipmentOperational
		}
		equipment.Components = append(equipment.Components, component)
	}
	return equipment, nil
}
