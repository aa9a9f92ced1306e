package db

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ukydev/maintenance-scheduler/internal/models"
)

// EquipmentRegistry holds equipment in memory, keyed by id.
type EquipmentRegistry struct {
	mu        sync.RWMutex
	equipment map[int64]models.Equipment
}

// NewEquipmentRegistry creates an empty equipment registry.
func NewEquipmentRegistry() *EquipmentRegistry {
	return &EquipmentRegistry{equipment: make(map[int64]models.Equipment)}
}

var _ EquipmentCollection = (*EquipmentRegistry)(nil)

// AddEquipment validates and stores a new equipment unit.
func (r *EquipmentRegistry) AddEquipment(equipment models.Equipment) error {
	if err := equipment.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.equipment[equipment.ID]; exists {
		return fmt.Errorf("%w: equipment %d already exists", models.ErrConflict, equipment.ID)
	}
	r.equipment[equipment.ID] = equipment.Clone()
	return nil
}

// FindEquipmentByID returns a copy of the stored equipment.
func (r *EquipmentRegistry) FindEquipmentByID(id int64) (models.Equipment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	equipment, exists := r.equipment[id]
	if !exists {
		return models.Equipment{}, fmt.Errorf("%w: equipment %d", models.ErrNotFound, id)
	}
	return equipment.Clone(), nil
}

// UpdateEquipment replaces a stored equipment unit.
func (r *EquipmentRegistry) UpdateEquipment(equipment models.Equipment) error {
	if err := equipment.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.equipment[equipment.ID]; !exists {
		return fmt.Errorf("%w: equipment %d", models.ErrNotFound, equipment.ID)
	}
	r.equipment[equipment.ID] = equipment.Clone()
	return nil
}

// RemoveEquipment deletes an equipment unit. Order references are checked by the caller.
func (r *EquipmentRegistry) RemoveEquipment(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.equipment[id]; !exists {
		return fmt.Errorf("%w: equipment %d", models.ErrNotFound, id)
	}
	delete(r.equipment, id)
	return nil
}

// ListEquipment returns copies of all equipment, ordered by id.
func (r *EquipmentRegistry) ListEquipment() []models.Equipment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]models.Equipment, 0, len(r.equipment))
	for _, e := range r.equipment {
		list = append(list, e.Clone())
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}
