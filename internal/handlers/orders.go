package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ukydev/maintenance-scheduler/internal/audit"
	"github.com/ukydev/maintenance-scheduler/internal/maintenance"
	"github.com/ukydev/maintenance-scheduler/internal/models"
)

func nonNilOrders(orders []models.Order) []models.Order {
	if orders == nil {
		return []models.Order{}
	}
	return orders
}

func formatDays(days []time.Time) []string {
	out := make([]string, 0, len(days))
	for _, d := range days {
		out = append(out, d.Format(models.DateLayout))
	}
	return out
}

// ListCalendar returns every scheduled day.
func (h *Handler) ListCalendar(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, formatDays(h.svc.CalendarDates()))
}

// ListDueDates returns the scheduled days that have arrived.
func (h *Handler) ListDueDates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, formatDays(h.svc.DueDates()))
}

type scheduleDateRequest struct {
	Date string `json:"date"`
}

// ScheduleDate adds a maintenance day. Re-adding a day answers 200 instead of 201.
func (h *Handler) ScheduleDate(w http.ResponseWriter, r *http.Request) {
	var req scheduleDateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	day, err := models.ParseDay(req.Date)
	if err != nil {
		http.Error(w, "Invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	added, err := h.svc.ScheduleDate(r.Context(), day)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]interface{}{"date": day.Format(models.DateLayout), "added": added})
}

// UnscheduleDate removes a maintenance day.
func (h *Handler) UnscheduleDate(w http.ResponseWriter, r *http.Request) {
	day, err := models.ParseDay(chi.URLParam(r, "date"))
	if err != nil {
		http.Error(w, "Invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	if err := h.svc.UnscheduleDate(r.Context(), day); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GenerateOrders expands due days into preventive orders.
func (h *Handler) GenerateOrders(w http.ResponseWriter, r *http.Request) {
	created, err := h.svc.GeneratePendingOrders(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNilOrders(created))
}

// ListOrders returns orders, optionally filtered by state, kind and equipment_id.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := maintenance.OrderFilter{
		State: models.OrderState(q.Get("state")),
		Kind:  models.OrderKind(q.Get("kind")),
	}
	if filter.State != "" && !models.IsValidOrderState(filter.State) {
		http.Error(w, "Invalid state", http.StatusBadRequest)
		return
	}
	if raw := q.Get("equipment_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, "Invalid equipment_id", http.StatusBadRequest)
			return
		}
		filter.EquipmentID = id
	}
	writeJSON(w, http.StatusOK, nonNilOrders(h.svc.ListOrders(filter)))
}

// GetOrder returns one order.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	o, err := h.svc.GetOrder(id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

type preventiveOrderRequest struct {
	Date        string `json:"date"`
	EquipmentID int64  `json:"equipment_id"`
	ProgramID   int64  `json:"program_id"`
	PhaseNumber int    `json:"phase_number"`
}

// CreatePreventiveOrder schedules a preventive order by hand.
func (h *Handler) CreatePreventiveOrder(w http.ResponseWriter, r *http.Request) {
	var req preventiveOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	day, err := models.ParseDay(req.Date)
	if err != nil {
		http.Error(w, "Invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	o, err := h.svc.CreatePreventiveOrder(r.Context(), day, req.EquipmentID, req.ProgramID, req.PhaseNumber)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

type correctiveOrderRequest struct {
	Date               string          `json:"date"`
	EquipmentID        int64           `json:"equipment_id"`
	FailureDescription string          `json:"failure_description"`
	Priority           models.Priority `json:"priority"`
}

// CreateCorrectiveOrder opens a repair order. The date defaults to today.
func (h *Handler) CreateCorrectiveOrder(w http.ResponseWriter, r *http.Request) {
	var req correctiveOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	day, err := parseOptionalDay(req.Date)
	if err != nil {
		http.Error(w, "Invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	o, err := h.svc.CreateCorrectiveOrder(r.Context(), day, req.EquipmentID, req.FailureDescription, req.Priority)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

type assignTechnicianRequest struct {
	TechnicianID int64 `json:"technician_id"`
}

// AssignTechnician sets the technician of an open order.
func (h *Handler) AssignTechnician(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req assignTechnicianRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	o, err := h.svc.AssignTechnician(r.Context(), id, req.TechnicianID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

type startOrderRequest struct {
	ExecutionDate *time.Time `json:"execution_date"`
}

// StartOrder moves an order to IN_PROGRESS. The body is optional.
func (h *Handler) StartOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req startOrderRequest
	if r.ContentLength > 0 && !decodeJSON(w, r, &req) {
		return
	}
	var executed time.Time
	if req.ExecutionDate != nil {
		executed = *req.ExecutionDate
	}
	o, err := h.svc.StartOrder(r.Context(), id, executed)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

type completeOrderRequest struct {
	Date         *time.Time `json:"date"`
	HoursWorked  float64    `json:"hours_worked"`
	Diagnosis    string     `json:"diagnosis"`
	TechnicianID int64      `json:"technician_id"`
}

// CompleteOrder closes an order. A missing technician_id signs it as
// having no recorded technician.
func (h *Handler) CompleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req completeOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	var completed time.Time
	if req.Date != nil {
		completed = *req.Date
	}
	o, err := h.svc.CompleteOrder(r.Context(), id, completed, req.HoursWorked, req.Diagnosis, req.TechnicianID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

// CancelOrder cancels an open order.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req cancelOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	o, err := h.svc.CancelOrder(r.Context(), id, req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

type addMaterialRequest struct {
	Material string `json:"material"`
}

// AddMaterial records a material used on an order.
func (h *Handler) AddMaterial(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req addMaterialRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	o, err := h.svc.AddMaterial(r.Context(), id, req.Material)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// ListAuditEvents returns the audit trail, filtered by actor, entity_type and action.
func (h *Handler) ListAuditEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	events, err := h.svc.AuditEvents(r.Context(), audit.Filter{
		Actor:      q.Get("actor"),
		EntityType: q.Get("entity_type"),
		Action:     q.Get("action"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if events == nil {
		events = []models.AuditEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}
