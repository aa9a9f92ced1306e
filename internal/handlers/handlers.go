// Package handlers exposes the maintenance service as a JSON HTTP API.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"github.com/ukydev/maintenance-scheduler/internal/maintenance"
	"github.com/ukydev/maintenance-scheduler/internal/middleware"
	"github.com/ukydev/maintenance-scheduler/internal/models"
)

// Handler serves the maintenance API.
type Handler struct {
	svc *maintenance.Service
	log logrus.FieldLogger
}

// NewHandler creates a handler over svc.
func NewHandler(svc *maintenance.Service, log logrus.FieldLogger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Router builds the chi router. limiter may be nil.
func (h *Handler) Router(limiter *middleware.RateLimitMiddleware) chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.RequestLogger(h.log))
	r.Use(chimw.Recoverer)
	if limiter != nil {
		r.Use(limiter.RateLimit)
	}
	r.Use(middleware.Actor)

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Route("/equipment", func(r chi.Router) {
			r.Get("/", h.ListEquipment)
			r.Post("/", h.CreateEquipment)
			r.Get("/{id}", h.GetEquipment)
			r.Put("/{id}", h.UpdateEquipment)
			r.Delete("/{id}", h.DeleteEquipment)
			r.Put("/{id}/program", h.AssignProgram)
			r.Delete("/{id}/program", h.UnassignProgram)
			r.Put("/{id}/state", h.ChangeEquipmentState)
			r.Get("/{id}/orders", h.EquipmentOrders)
		})

		r.Route("/programs", func(r chi.Router) {
			r.Get("/", h.ListPrograms)
			r.Post("/", h.CreateProgram)
			r.Get("/{id}", h.GetProgram)
			r.Delete("/{id}", h.DeleteProgram)
			r.Post("/{id}/phases", h.AddPhase)
		})

		r.Route("/technicians", func(r chi.Router) {
			r.Get("/", h.ListTechnicians)
			r.Post("/", h.CreateTechnician)
			r.Get("/{id}", h.GetTechnician)
			r.Delete("/{id}", h.DeleteTechnician)
		})

		r.Route("/calendar", func(r chi.Router) {
			r.Get("/", h.ListCalendar)
			r.Get("/due", h.ListDueDates)
			r.Post("/", h.ScheduleDate)
			r.Delete("/{date}", h.UnscheduleDate)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.ListOrders)
			r.Post("/generate", h.GenerateOrders)
			r.Post("/preventive", h.CreatePreventiveOrder)
			r.Post("/corrective", h.CreateCorrectiveOrder)
			r.Get("/{id}", h.GetOrder)
			r.Put("/{id}/technician", h.AssignTechnician)
			r.Post("/{id}/start", h.StartOrder)
			r.Post("/{id}/complete", h.CompleteOrder)
			r.Post("/{id}/cancel", h.CancelOrder)
			r.Post("/{id}/materials", h.AddMaterial)
		})

		r.Get("/audit", h.ListAuditEvents)
	})
	return r
}

// Health reports that the service is up.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusFor maps the error taxonomy to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrConflict),
		errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, models.ErrReferentialIntegrity):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.WithError(err).WithField("path", r.URL.Path).Error("Request failed")
		http.Error(w, "Internal server error", status)
		return
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "Invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// parseOptionalDay parses a YYYY-MM-DD string; empty yields the zero time.
func parseOptionalDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return models.ParseDay(s)
}
