package db

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ukydev/maintenance-scheduler/internal/models"
)

// ProgramStore holds preventive programs in memory.
type ProgramStore struct {
	mu       sync.RWMutex
	programs map[int64]models.PreventiveProgram
}

// NewProgramStore creates an empty program store.
func NewProgramStore() *ProgramStore {
	return &ProgramStore{programs: make(map[int64]models.PreventiveProgram)}
}

var _ ProgramCollection = (*ProgramStore)(nil)

// AddProgram validates and stores a new program.
func (s *ProgramStore) AddProgram(program models.PreventiveProgram) error {
	if err := program.Validate(); err != nil {
		return err
	}
	program.NormalizePhaseIntervals()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.programs[program.ID]; exists {
		return fmt.Errorf("%w: program %d already exists", models.ErrConflict, program.ID)
	}
	s.programs[program.ID] = program.Clone()
	return nil
}

// FindProgramByID returns a copy of the stored program.
func (s *ProgramStore) FindProgramByID(id int64) (models.PreventiveProgram, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	program, exists := s.programs[id]
	if !exists {
		return models.PreventiveProgram{}, fmt.Errorf("%w: program %d", models.ErrNotFound, id)
	}
	return program.Clone(), nil
}

// UpdateProgram replaces a stored program.
func (s *ProgramStore) UpdateProgram(program models.PreventiveProgram) error {
	if err := program.Validate(); err != nil {
		return err
	}
	program.NormalizePhaseIntervals()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.programs[program.ID]; !exists {
		return fmt.Errorf("%w: program %d", models.ErrNotFound, program.ID)
	}
	s.programs[program.ID] = program.Clone()
	return nil
}

// RemoveProgram deletes a program.
func (s *ProgramStore) RemoveProgram(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.programs[id]; !exists {
		return fmt.Errorf("%w: program %d", models.ErrNotFound, id)
	}
	delete(s.programs, id)
	return nil
}

// ListPrograms returns copies of all programs, ordered by id.
func (s *ProgramStore) ListPrograms() []models.PreventiveProgram {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]models.PreventiveProgram, 0, len(s.programs))
	for _, p := range s.programs {
		list = append(list, p.Clone())
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}
