package db

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ukydev/maintenance-scheduler/internal/models"
)

// TechnicianStore holds technicians in memory.
type TechnicianStore struct {
	mu          sync.RWMutex
	technicians map[int64]models.Technician
}

// NewTechnicianStore creates an empty technician store.
func NewTechnicianStore() *TechnicianStore {
	return &TechnicianStore{technicians: make(map[int64]models.Technician)}
}

var _ TechnicianCollection = (*TechnicianStore)(nil)

func (s *TechnicianStore) AddTechnician(technician models.Technician) error {
	if err := technician.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.technicians[technician.ID]; exists {
		return fmt.Errorf("%w: technician %d already exists", models.ErrConflict, technician.ID)
	}
	s.technicians[technician.ID] = technician
	return nil
}

func (s *TechnicianStore) FindTechnicianByID(id int64) (models.Technician, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	technician, exists := s.technicians[id]
	if !exists {
		return models.Technician{}, fmt.Errorf("%w: technician %d", models.ErrNotFound, id)
	}
	return technician, nil
}

func (s *TechnicianStore) RemoveTechnician(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.technicians[id]; !exists {
		return fmt.Errorf("%w: technician %d", models.ErrNotFound, id)
	}
	delete(s.technicians, id)
	return nil
}

func (s *TechnicianStore) ListTechnicians() []models.Technician {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]models.Technician, 0, len(s.technicians))
	for _, t := range s.technicians {
		list = append(list, t)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}
