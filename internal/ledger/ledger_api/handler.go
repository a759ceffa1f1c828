package ledger_api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"ms-headcount/internal/ledger/service"
	"ms-headcount/internal/logger"
	"ms-headcount/internal/models"
	"ms-headcount/internal/night"
	"ms-headcount/internal/utils"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/coder/quartz"
	"github.com/go-chi/chi/v5"
)

// LedgerService is the part of service.LedgerService the handlers call.
type LedgerService interface {
	Record(ctx context.Context, at time.Time, timeSlot string, admits, leftCount int) (*service.SubmitResult, error)
	ResolveConflict(ctx context.Context, entryID int64, date string, admits, leftCount int, timestamp time.Time) (*service.Resolved, error)
	Night(ctx context.Context, date string) (*models.NightView, error)
	CurrentHolding(ctx context.Context, date string) (int, error)
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the ledger endpoints.
type Handler struct {
	Service LedgerService
	Store   Pinger
	Logger  *logger.Logger
	Clock   quartz.Clock
}

func NewHandler(svc LedgerService, store Pinger, log *logger.Logger, clock quartz.Clock) *Handler {
	if log == nil {
		log = logger.Discard()
	}
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &Handler{
		Service: svc,
		Store:   store,
		Logger:  log,
		Clock:   clock,
	}
}

// RegisterRoutes mounts the ledger routes. write wraps the routes that record
// counts, typically with a rate limiter.
func (h *Handler) RegisterRoutes(r chi.Router, write func(http.Handler) http.Handler) {
	r.Get("/healthz", h.Health)

	r.Route("/api/ledger", func(r chi.Router) {
		r.Get("/slots", h.ListSlots)
		r.Get("/nights/{date}", h.GetNight)
		r.Get("/nights/{date}/holding", h.GetHolding)

		r.Group(func(r chi.Router) {
			if write != nil {
				r.Use(write)
			}
			r.Post("/entries", h.SubmitEntry)
			r.Post("/entries/{entryId}/resolve", h.ResolveEntry)
		})
	})
}

func (h *Handler) ListSlots(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Time slots", night.Slots()))
}

// SubmitEntry records counts for a slot of the current night.
// Accepts form values or a JSON body with admits, left_count and time_slot.
func (h *Handler) SubmitEntry(w http.ResponseWriter, r *http.Request) {
	fields, err := readFields(r)
	if err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	slot := strings.TrimSpace(fields["time_slot"])
	if slot == "" {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request", "time_slot is required"))
		return
	}
	admits, err := service.ParseCount("admits", fields["admits"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	left, err := service.ParseCount("left_count", fields["left_count"])
	if err != nil {
		h.writeError(w, err)
		return
	}

	result, err := h.Service.Record(r.Context(), h.Clock.Now(), slot, admits, left)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if result.Status == service.StatusConflict {
		utils.WriteJSON(w, http.StatusConflict, utils.APIResponse{
			Success:   false,
			Message:   fmt.Sprintf("Slot %s already recorded for %s", result.Conflict.TimeSlot, result.Conflict.Date),
			Data:      result,
			Error:     string(service.StatusConflict),
			Timestamp: h.Clock.Now(),
		})
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Entry recorded", result))
}

// ResolveEntry overwrites a conflicting entry with the chosen counts.
func (h *Handler) ResolveEntry(w http.ResponseWriter, r *http.Request) {
	entryID, err := strconv.ParseInt(chi.URLParam(r, "entryId"), 10, 64)
	if err != nil || entryID <= 0 {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request", "entryId must be a positive integer"))
		return
	}

	fields, err := readFields(r)
	if err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	date, err := night.ParseDate(strings.TrimSpace(fields["date"]))
	if err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request", err.Error()))
		return
	}
	admits, err := service.ParseCount("admits", fields["admits"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	left, err := service.ParseCount("left_count", fields["left_count"])
	if err != nil {
		h.writeError(w, err)
		return
	}

	resolved, err := h.Service.ResolveConflict(r.Context(), entryID, date, admits, left, h.Clock.Now())
	if err != nil {
		h.writeError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Entry updated", resolved))
}

// GetNight lists a night's entries. ?order=night sorts them 15:00 through 06:30.
func (h *Handler) GetNight(w http.ResponseWriter, r *http.Request) {
	view, err := h.Service.Night(r.Context(), chi.URLParam(r, "date"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	if r.URL.Query().Get("order") == "night" {
		sort.SliceStable(view.Entries, func(i, j int) bool {
			a, _ := night.SlotIndex(view.Entries[i].TimeSlot)
			b, _ := night.SlotIndex(view.Entries[j].TimeSlot)
			return a < b
		})
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Night entries", view))
}

func (h *Handler) GetHolding(w http.ResponseWriter, r *http.Request) {
	date, err := night.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request", err.Error()))
		return
	}

	holding, err := h.Service.CurrentHolding(r.Context(), date)
	if err != nil {
		h.writeError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Current holding", map[string]interface{}{
		"date":    date,
		"holding": holding,
	}))
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.Store != nil {
		if err := h.Store.Ping(r.Context()); err != nil {
			h.Logger.Error("HEALTH", fmt.Sprintf("Store ping failed: %v", err))
			utils.WriteJSON(w, http.StatusServiceUnavailable, utils.ErrorResponse("Store unavailable", err.Error()))
			return
		}
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("ok", nil))
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request", err.Error()))
	case errors.Is(err, service.ErrEntryNotFound):
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("Entry not found", err.Error()))
	case errors.Is(err, service.ErrNightBusy):
		utils.WriteJSON(w, http.StatusServiceUnavailable, utils.ErrorResponse("Night is busy, retry", err.Error()))
	default:
		h.Logger.Error("LEDGER", fmt.Sprintf("Request failed: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Internal error", "failed to process request"))
	}
}

// readFields flattens a JSON object or a submitted form into string values.
func readFields(r *http.Request) (map[string]string, error) {
	fields := make(map[string]string)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var raw map[string]interface{}
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		for k, v := range raw {
			switch val := v.(type) {
			case nil:
			case string:
				fields[k] = val
			case json.Number:
				fields[k] = val.String()
			default:
				fields[k] = fmt.Sprint(val)
			}
		}
		return fields, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	for k := range r.PostForm {
		fields[k] = r.PostForm.Get(k)
	}
	return fields, nil
}
