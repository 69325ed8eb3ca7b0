package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cimillas/slotwise/internal/app"
	"github.com/cimillas/slotwise/internal/domain"
)

// ReservationCollection covers the operations reachable at /reservations.
type ReservationCollection interface {
	CreateReservation(ctx context.Context, in app.CreateReservationInput) (domain.Reservation, error)
	ListReservations(ctx context.Context, ownerID string, f domain.ReservationFilter) ([]domain.Reservation, error)
}

// ReservationItem covers the operations reachable at /reservations/{id}.
type ReservationItem interface {
	GetReservation(ctx context.Context, id string) (domain.Reservation, error)
	CancelReservation(ctx context.Context, id, actorID, reason string) (domain.Reservation, error)
	RescheduleReservation(ctx context.Context, id, actorID string, newStart, newEnd time.Time) (domain.Reservation, error)
}

// HandleReservations serves POST (create) and GET (list) on /reservations.
func HandleReservations(svc ReservationCollection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			createReservation(svc, w, r)
		case http.MethodGet:
			listReservations(svc, w, r)
		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		}
	}
}

func createReservation(svc ReservationCollection, w http.ResponseWriter, r *http.Request) {
	var req createReservationRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}

	token := req.IdempotencyToken
	if token == "" {
		token = r.Header.Get("Idempotency-Key")
	}

	resv, err := svc.CreateReservation(r.Context(), app.CreateReservationInput{
		OwnerID:          req.OwnerID,
		StartAt:          req.StartAt,
		EndAt:            req.EndAt,
		Status:           domain.ReservationStatus(req.Status),
		Metadata:         req.Metadata,
		IdempotencyToken: token,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toReservationResponse(resv))
}

func listReservations(svc ReservationCollection, w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var f domain.ReservationFilter
	f.Status = domain.ReservationStatus(q.Get("status"))
	var err error
	if f.From, err = parseTimeParam(q.Get("from")); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidInterval, "invalid from timestamp")
		return
	}
	if f.To, err = parseTimeParam(q.Get("to")); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidInterval, "invalid to timestamp")
		return
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid limit")
			return
		}
		f.Limit = limit
	}

	reservations, err := svc.ListReservations(r.Context(), q.Get("owner_id"), f)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]reservationResponse, 0, len(reservations))
	for _, resv := range reservations {
		out = append(out, toReservationResponse(resv))
	}
	writeJSON(w, http.StatusOK, listReservationsResponse{Reservations: out})
}

// HandleReservationItem serves /reservations/{id}, /reservations/{id}/cancel
// and /reservations/{id}/reschedule.
func HandleReservationItem(svc ReservationItem) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/reservations/")
		id, action, _ := strings.Cut(rest, "/")
		if id == "" {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		switch action {
		case "":
			if r.Method != http.MethodGet {
				writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
				return
			}
			getReservation(svc, w, r, id)
		case "cancel":
			if r.Method != http.MethodPost {
				writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
				return
			}
			cancelReservation(svc, w, r, id)
		case "reschedule":
			if r.Method != http.MethodPost {
				writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
				return
			}
			rescheduleReservation(svc, w, r, id)
		default:
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
		}
	}
}

func getReservation(svc ReservationItem, w http.ResponseWriter, r *http.Request, id string) {
	resv, err := svc.GetReservation(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationResponse(resv))
}

func cancelReservation(svc ReservationItem, w http.ResponseWriter, r *http.Request, id string) {
	var req cancelReservationRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}

	resv, err := svc.CancelReservation(r.Context(), id, req.ActorID, req.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationResponse(resv))
}

func rescheduleReservation(svc ReservationItem, w http.ResponseWriter, r *http.Request, id string) {
	var req rescheduleReservationRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}

	resv, err := svc.RescheduleReservation(r.Context(), id, req.ActorID, req.StartAt, req.EndAt)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationResponse(resv))
}

type createReservationRequest struct {
	OwnerID          string            `json:"owner_id"`
	StartAt          time.Time         `json:"start_at"`
	EndAt            time.Time         `json:"end_at"`
	Status           string            `json:"status"`
	Metadata         map[string]string `json:"metadata"`
	IdempotencyToken string            `json:"idempotency_token"`
}

type cancelReservationRequest struct {
	ActorID string `json:"actor_id"`
	Reason  string `json:"reason"`
}

type rescheduleReservationRequest struct {
	ActorID string    `json:"actor_id"`
	StartAt time.Time `json:"start_at"`
	EndAt   time.Time `json:"end_at"`
}

type reservationResponse struct {
	ID        string            `json:"id"`
	OwnerID   string            `json:"owner_id"`
	StartAt   time.Time         `json:"start_at"`
	EndAt     time.Time         `json:"end_at"`
	Status    string            `json:"status"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Version   int               `json:"version"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

type listReservationsResponse struct {
	Reservations []reservationResponse `json:"reservations"`
}

func toReservationResponse(resv domain.Reservation) reservationResponse {
	return reservationResponse{
		ID:        resv.ID,
		OwnerID:   resv.OwnerID,
		StartAt:   resv.StartAt,
		EndAt:     resv.EndAt,
		Status:    string(resv.Status),
		Metadata:  resv.Metadata,
		Version:   resv.Version,
		CreatedAt: resv.CreatedAt,
		UpdatedAt: resv.UpdatedAt,
	}
}

func parseTimeParam(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, v)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
