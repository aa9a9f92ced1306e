package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ukydev/maintenance-scheduler/internal/models"
)

// OrderFilter narrows ListOrders. Zero values match everything.
type OrderFilter struct {
	State       models.OrderState
	EquipmentID int64
	Kind        models.OrderKind
}

func (f OrderFilter) matches(o models.Order) bool {
	return (f.State == "" || f.State == o.State) &&
		(f.EquipmentID == 0 || f.EquipmentID == o.EquipmentID) &&
		(f.Kind == "" || f.Kind == o.Kind)
}

// GeneratePendingOrders expands every due calendar day into preventive
// orders. Days already expanded are not duplicated.
func (s *Service) GeneratePendingOrders(ctx context.Context) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	created, err := s.generator.GeneratePendingOrders(ctx)
	if len(created) > 0 {
		s.record(ctx, models.EntityOrder, "generate", fmt.Sprintf("%d preventive orders (ids %d-%d)",
			len(created), created[0].ID, created[len(created)-1].ID))
	}
	return created, err
}

// CreatePreventiveOrder schedules a single preventive order by hand. The
// phase must belong to the program.
func (s *Service) CreatePreventiveOrder(ctx context.Context, date time.Time, equipmentID, programID int64, phaseNumber int) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.equipment.FindEquipmentByID(equipmentID); err != nil {
		return models.Order{}, err
	}
	program, err := s.programs.FindProgramByID(programID)
	if err != nil {
		return models.Order{}, err
	}
	if _, ok := program.Phase(phaseNumber); !ok {
		return models.Order{}, fmt.Errorf("%w: program %d has no phase %d", models.ErrNotFound, programID, phaseNumber)
	}
	order, err := models.NewPreventiveOrder(date, equipmentID, programID, phaseNumber)
	if err != nil {
		return models.Order{}, err
	}
	stored, err := s.orders.InsertOrder(*order)
	if err != nil {
		return models.Order{}, err
	}
	s.record(ctx, models.EntityOrder, "create", fmt.Sprintf("preventive order %d equipment %d phase %d", stored.ID, equipmentID, phaseNumber))
	return stored, nil
}

// CreateCorrectiveOrder opens a repair order for a reported failure.
// A zero date schedules it for today.
func (s *Service) CreateCorrectiveOrder(ctx context.Context, date time.Time, equipmentID int64, failure string, priority models.Priority) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.equipment.FindEquipmentByID(equipmentID); err != nil {
		return models.Order{}, err
	}
	if date.IsZero() {
		date = s.now()
	}
	if priority == "" {
		priority = models.PriorityMedium
	}
	order, err := models.NewCorrectiveOrder(date, equipmentID, failure, priority)
	if err != nil {
		return models.Order{}, err
	}
	stored, err := s.orders.InsertOrder(*order)
	if err != nil {
		return models.Order{}, err
	}
	s.record(ctx, models.EntityOrder, "create", fmt.Sprintf("corrective order %d equipment %d priority %s", stored.ID, equipmentID, priority))
	return stored, nil
}

// AssignTechnician sets the technician responsible for an open order.
func (s *Service) AssignTechnician(ctx context.Context, orderID, technicianID int64) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, err := s.orders.FindOrderByID(orderID)
	if err != nil {
		return models.Order{}, err
	}
	if _, err := s.technicians.FindTechnicianByID(technicianID); err != nil {
		return models.Order{}, err
	}
	if err := order.AssignTechnician(technicianID); err != nil {
		return models.Order{}, err
	}
	if err := s.orders.UpdateOrder(order); err != nil {
		return models.Order{}, err
	}
	s.record(ctx, models.EntityOrder, "assign", fmt.Sprintf("order %d technician %d", orderID, technicianID))
	return order, nil
}

// StartOrder moves an order to IN_PROGRESS and puts its equipment into the
// matching maintenance state. A zero execution date means now.
func (s *Service) StartOrder(ctx context.Context, orderID int64, executionDate time.Time) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, err := s.orders.FindOrderByID(orderID)
	if err != nil {
		return models.Order{}, err
	}
	if executionDate.IsZero() {
		executionDate = s.now()
	}
	if err := order.Start(executionDate); err != nil {
		return models.Order{}, err
	}
	if err := s.orders.UpdateOrder(order); err != nil {
		return models.Order{}, err
	}
	s.record(ctx, models.EntityOrder, "start", fmt.Sprintf("order %d", orderID))
	s.syncEquipmentState(ctx, order.EquipmentID)
	return order, nil
}

// CompleteOrder closes an order. A technician id of zero completes it
// without a recorded technician. A zero date means now.
func (s *Service) CompleteOrder(ctx context.Context, orderID int64, realDate time.Time, hoursWorked float64, diagnosis string, technicianID int64) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, err := s.orders.FindOrderByID(orderID)
	if err != nil {
		return models.Order{}, err
	}
	var technician *models.Technician
	if technicianID != 0 {
		t, err := s.technicians.FindTechnicianByID(technicianID)
		if err != nil {
			return models.Order{}, err
		}
		technician = &t
	}
	if realDate.IsZero() {
		realDate = s.now()
	}
	if err := order.Complete(realDate, hoursWorked, diagnosis, technician); err != nil {
		return models.Order{}, err
	}
	if err := s.orders.UpdateOrder(order); err != nil {
		return models.Order{}, err
	}
	s.record(ctx, models.EntityOrder, "complete", fmt.Sprintf("order %d signed by %s", orderID, order.Signature))
	s.syncEquipmentState(ctx, order.EquipmentID)
	return order, nil
}

// CancelOrder cancels an open order, keeping the reason in its notes.
func (s *Service) CancelOrder(ctx context.Context, orderID int64, reason string) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, err := s.orders.FindOrderByID(orderID)
	if err != nil {
		return models.Order{}, err
	}
	if err := order.Cancel(reason, s.now()); err != nil {
		return models.Order{}, err
	}
	if err := s.orders.UpdateOrder(order); err != nil {
		return models.Order{}, err
	}
	s.record(ctx, models.EntityOrder, "cancel", fmt.Sprintf("order %d: %s", orderID, reason))
	s.syncEquipmentState(ctx, order.EquipmentID)
	return order, nil
}

// AddMaterial records a material used on an order, in any state.
func (s *Service) AddMaterial(ctx context.Context, orderID int64, material string) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, err := s.orders.FindOrderByID(orderID)
	if err != nil {
		return models.Order{}, err
	}
	if err := order.AddMaterial(material); err != nil {
		return models.Order{}, err
	}
	if err := s.orders.UpdateOrder(order); err != nil {
		return models.Order{}, err
	}
	s.record(ctx, models.EntityOrder, "add_material", fmt.Sprintf("order %d", orderID))
	return order, nil
}

// GetOrder returns one order.
func (s *Service) GetOrder(id int64) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders.FindOrderByID(id)
}

// ListOrders returns the orders matching f in id order.
func (s *Service) ListOrders(f OrderFilter) []models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Order
	for _, o := range s.orders.ListOrders() {
		if f.matches(o) {
			out = append(out, o)
		}
	}
	return out
}

// OrdersForEquipment returns every order of an existing equipment unit.
func (s *Service) OrdersForEquipment(equipmentID int64) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.equipment.FindEquipmentByID(equipmentID); err != nil {
		return nil, err
	}
	return s.orders.ListOrdersByEquipment(equipmentID), nil
}

// syncEquipmentState derives the equipment state from its in-progress
// orders. OUT_OF_SERVICE, NON_OPERATIONAL and DISCARDED are set by hand and
// never changed here.
func (s *Service) syncEquipmentState(ctx context.Context, equipmentID int64) {
	equipment, err := s.equipment.FindEquipmentByID(equipmentID)
	if err != nil {
		s.log.WithError(err).WithField("equipment_id", equipmentID).Warn("Order references missing equipment")
		return
	}

	target := models.EquipmentOperational
	for _, o := range s.orders.ListOrdersByEquipment(equipmentID) {
		if o.State != models.OrderInProgress {
			continue
		}
		if o.Kind == models.OrderCorrective {
			target = models.EquipmentInCorrective
			break
		}
		target = models.EquipmentInPreventive
	}

	switch equipment.State {
	case models.EquipmentOperational, models.EquipmentInPreventive, models.EquipmentInCorrective:
	default:
		return
	}
	if equipment.State == target {
		return
	}

	previous := equipment.State
	equipment.State = target
	if err := s.equipment.UpdateEquipment(equipment); err != nil {
		s.log.WithError(err).WithField("equipment_id", equipmentID).Warn("Failed to update equipment state")
		return
	}
	s.log.WithFields(logrus.Fields{
		"equipment_id": equipmentID,
		"from":         previous,
		"to":           target,
	}).Debug("Equipment state follows orders")
	s.record(ctx, models.EntityEquipment, "change_state", fmt.Sprintf("equipment %d %s -> %s", equipmentID, previous, target))
}
