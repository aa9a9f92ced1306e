package db

import (
	"fmt"
	"sync"
	"time"

	"github.com/ukydev/maintenance-scheduler/internal/models"
)

type generationKey struct {
	day         string
	equipmentID int64
	programID   int64
	phaseNumber int
}

func preventiveKey(o *models.Order) (generationKey, bool) {
	if o.Kind != models.OrderPreventive {
		return generationKey{}, false
	}
	return generationKey{
		day:         models.Day(o.ScheduledDate).Format(models.DateLayout),
		equipmentID: o.EquipmentID,
		programID:   o.ProgramID,
		phaseNumber: o.PhaseNumber,
	}, true
}

// OrderStore holds orders in memory and allocates their ids from a
// monotonic counter, so ids are never reused.
type OrderStore struct {
	mu         sync.RWMutex
	orders     []models.Order
	ordersMap  map[int64]int
	preventive map[generationKey]int64
	lastID     int64
}

// NewOrderStore creates an empty order store.
func NewOrderStore() *OrderStore {
	return &OrderStore{
		ordersMap:  make(map[int64]int),
		preventive: make(map[generationKey]int64),
	}
}

var _ OrderCollection = (*OrderStore)(nil)

// InsertOrder validates the order, assigns the next id and stores it.
func (s *OrderStore) InsertOrder(order models.Order) (models.Order, error) {
	if err := order.Validate(); err != nil {
		return models.Order{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastID++
	order.ID = s.lastID
	stored := order.Clone()
	s.ordersMap[stored.ID] = len(s.orders)
	s.orders = append(s.orders, stored)
	if key, ok := preventiveKey(&stored); ok {
		if _, exists := s.preventive[key]; !exists {
			s.preventive[key] = stored.ID
		}
	}
	return stored.Clone(), nil
}

// FindOrderByID returns a copy of the stored order.
func (s *OrderStore) FindOrderByID(id int64) (models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	index, exists := s.ordersMap[id]
	if !exists {
		return models.Order{}, fmt.Errorf("%w: order %d", models.ErrNotFound, id)
	}
	return s.orders[index].Clone(), nil
}

// UpdateOrder replaces a stored order.
func (s *OrderStore) UpdateOrder(order models.Order) error {
	if err := order.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	index, exists := s.ordersMap[order.ID]
	if !exists {
		return fmt.Errorf("%w: order %d", models.ErrNotFound, order.ID)
	}

	if oldKey, ok := preventiveKey(&s.orders[index]); ok && s.preventive[oldKey] == order.ID {
		delete(s.preventive, oldKey)
	}
	s.orders[index] = order.Clone()
	if key, ok := preventiveKey(&order); ok {
		if _, exists := s.preventive[key]; !exists {
			s.preventive[key] = order.ID
		}
	}
	return nil
}

// ListOrders returns copies of all orders in id order.
func (s *OrderStore) ListOrders() []models.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]models.Order, len(s.orders))
	for i := range s.orders {
		list[i] = s.orders[i].Clone()
	}
	return list
}

// ListOrdersByEquipment returns copies of every order for one equipment unit.
func (s *OrderStore) ListOrdersByEquipment(equipmentID int64) []models.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var list []models.Order
	for i := range s.orders {
		if s.orders[i].EquipmentID == equipmentID {
			list = append(list, s.orders[i].Clone())
		}
	}
	return list
}

// FindPreventiveOrder looks up the order generated for one (day, equipment, phase) triple.
func (s *OrderStore) FindPreventiveOrder(date time.Time, equipmentID, programID int64, phaseNumber int) (models.Order, bool) {
	key := generationKey{
		day:         models.Day(date).Format(models.DateLayout),
		equipmentID: equipmentID,
		programID:   programID,
		phaseNumber: phaseNumber,
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, exists := s.preventive[key]
	if !exists {
		return models.Order{}, false
	}
	return s.orders[s.ordersMap[id]].Clone(), true
}
