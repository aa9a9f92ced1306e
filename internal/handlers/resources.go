package handlers

import (
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/ukydev/maintenance-scheduler/internal/models"
)

type equipmentResponse struct {
	models.Equipment
	MonthlyDepreciation decimal.Decimal `json:"monthly_depreciation"`
}

func toEquipmentResponse(e models.Equipment) equipmentResponse {
	return equipmentResponse{Equipment: e, MonthlyDepreciation: e.MonthlyDepreciation()}
}

// ListEquipment returns every equipment unit.
func (h *Handler) ListEquipment(w http.ResponseWriter, r *http.Request) {
	list := h.svc.ListEquipment()
	resp := make([]equipmentResponse, 0, len(list))
	for _, e := range list {
		resp = append(resp, toEquipmentResponse(e))
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateEquipment registers an equipment unit.
func (h *Handler) CreateEquipment(w http.ResponseWriter, r *http.Request) {
	var e models.Equipment
	if !decodeJSON(w, r, &e) {
		return
	}
	created, err := h.svc.AddEquipment(r.Context(), e)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEquipmentResponse(created))
}

// GetEquipment returns one equipment unit.
func (h *Handler) GetEquipment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	e, err := h.svc.GetEquipment(id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEquipmentResponse(e))
}

// UpdateEquipment replaces an equipment unit. The path id wins over the body.
func (h *Handler) UpdateEquipment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var e models.Equipment
	if !decodeJSON(w, r, &e) {
		return
	}
	e.ID = id
	updated, err := h.svc.UpdateEquipment(r.Context(), e)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEquipmentResponse(updated))
}

// DeleteEquipment removes an equipment unit no order references.
func (h *Handler) DeleteEquipment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.RemoveEquipment(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type assignProgramRequest struct {
	ProgramID int64 `json:"program_id"`
}

// AssignProgram attaches a program to an equipment unit.
func (h *Handler) AssignProgram(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req assignProgramRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	e, err := h.svc.AssignProgram(r.Context(), id, req.ProgramID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEquipmentResponse(e))
}

// UnassignProgram detaches the program of an equipment unit.
func (h *Handler) UnassignProgram(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	e, err := h.svc.UnassignProgram(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEquipmentResponse(e))
}

type changeStateRequest struct {
	State models.EquipmentState `json:"state"`
}

// ChangeEquipmentState sets the state of an equipment unit.
func (h *Handler) ChangeEquipmentState(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req changeStateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	e, err := h.svc.ChangeEquipmentState(r.Context(), id, req.State)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEquipmentResponse(e))
}

// EquipmentOrders lists the orders of one equipment unit.
func (h *Handler) EquipmentOrders(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	orders, err := h.svc.OrdersForEquipment(id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNilOrders(orders))
}

// ListPrograms returns every program.
func (h *Handler) ListPrograms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.ListPrograms())
}

// CreateProgram registers a program with its phases.
func (h *Handler) CreateProgram(w http.ResponseWriter, r *http.Request) {
	var p models.PreventiveProgram
	if !decodeJSON(w, r, &p) {
		return
	}
	created, err := h.svc.AddProgram(r.Context(), p)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// GetProgram returns one program.
func (h *Handler) GetProgram(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := h.svc.GetProgram(id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// DeleteProgram removes a program no equipment uses.
func (h *Handler) DeleteProgram(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.RemoveProgram(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddPhase appends a phase to a program.
func (h *Handler) AddPhase(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var phase models.Phase
	if !decodeJSON(w, r, &phase) {
		return
	}
	p, err := h.svc.AddPhase(r.Context(), id, phase)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// ListTechnicians returns every technician.
func (h *Handler) ListTechnicians(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.ListTechnicians())
}

// CreateTechnician registers a technician.
func (h *Handler) CreateTechnician(w http.ResponseWriter, r *http.Request) {
	var t models.Technician
	if !decodeJSON(w, r, &t) {
		return
	}
	created, err := h.svc.AddTechnician(r.Context(), t)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// GetTechnician returns one technician.
func (h *Handler) GetTechnician(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	t, err := h.svc.GetTechnician(id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// DeleteTechnician removes a technician with no open orders.
func (h *Handler) DeleteTechnician(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.RemoveTechnician(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
