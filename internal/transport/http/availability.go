package http

import (
	"context"
	"iter"
	"net/http"
	"time"

	"github.com/cimillas/slotwise/internal/domain"
)

// SlotLister yields free slots for an owner within a window.
type SlotLister interface {
	ListAvailableSlots(ctx context.Context, ownerID string, windowStart, windowEnd time.Time, slotDuration time.Duration) (iter.Seq[domain.Slot], error)
}

// HandleAvailability serves GET /availability.
func HandleAvailability(svc SlotLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		q := r.URL.Query()
		from, err := parseTimeParam(q.Get("from"))
		if err != nil || from.IsZero() {
			writeError(w, http.StatusBadRequest, codeInvalidInterval, "invalid from timestamp")
			return
		}
		to, err := parseTimeParam(q.Get("to"))
		if err != nil || to.IsZero() {
			writeError(w, http.StatusBadRequest, codeInvalidInterval, "invalid to timestamp")
			return
		}

		slotDuration, err := time.ParseDuration(q.Get("slot"))
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidSlotDuration, "invalid slot duration")
			return
		}

		slots, err := svc.ListAvailableSlots(r.Context(), q.Get("owner_id"), from, to, slotDuration)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		resp := availabilityResponse{Slots: []slotResponse{}}
		for slot := range slots {
			resp.Slots = append(resp.Slots, slotResponse{
				StartAt: slot.StartAt,
				EndAt:   slot.EndAt,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type slotResponse struct {
	StartAt time.Time `json:"start_at"`
	EndAt   time.Time `json:"end_at"`
}

type availabilityResponse struct {
	Slots []slotResponse `json:"slots"`
}
