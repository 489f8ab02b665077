package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"tablebook/internal/admission"
	"tablebook/internal/database"
	"tablebook/internal/domain"
	"tablebook/internal/models"
	"tablebook/internal/settings"
)

type reservationResponse struct {
	Booking  *models.Booking     `json:"booking,omitempty"`
	Decision *admission.Decision `json:"decision,omitempty"`
}

func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	req, err := availabilityRequestFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	decision, err := s.reservations.CheckAvailability(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, decision)
}

func (s *HTTPServer) handleAvailabilityBulk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	type request struct {
		Type      string   `json:"type"`
		Dates     []string `json:"dates"`
		Times     []string `json:"times"`
		PartySize int      `json:"party_size"`
	}

	var body request
	if r.Method == http.MethodGet {
		body.Type = r.URL.Query().Get("type")
		body.Dates = splitCSV(r.URL.Query().Get("dates"))
		body.Times = splitCSV(r.URL.Query().Get("times"))
		body.PartySize, _ = strconv.Atoi(r.URL.Query().Get("party_size"))
	} else {
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	typ, err := models.ParseReservationType(body.Type)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(body.Dates) == 0 {
		writeError(w, http.StatusBadRequest, "dates is required")
		return
	}
	if len(body.Times) == 0 {
		writeError(w, http.StatusBadRequest, "times is required")
		return
	}
	if body.PartySize <= 0 {
		writeError(w, http.StatusBadRequest, "party_size must be positive")
		return
	}

	type bulkResult struct {
		Date     string             `json:"date"`
		Time     string             `json:"time"`
		Decision admission.Decision `json:"decision"`
	}

	results := make([]bulkResult, 0, len(body.Dates)*len(body.Times))
	for _, rawDate := range body.Dates {
		date, err := models.ParseDate(strings.TrimSpace(rawDate))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date format: "+rawDate)
			return
		}
		for _, rawTime := range body.Times {
			clock := strings.TrimSpace(rawTime)
			decision, err := s.reservations.CheckAvailability(r.Context(), admission.Request{
				Type:      typ,
				Date:      date,
				Time:      clock,
				PartySize: body.PartySize,
			})
			if err != nil {
				s.writeServiceError(w, err)
				return
			}
			results = append(results, bulkResult{
				Date:     date.Format(models.DateLayout),
				Time:     clock,
				Decision: decision,
			})
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *HTTPServer) handleReservations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	type request struct {
		Type            string `json:"type"`
		Date            string `json:"date"`
		Time            string `json:"time"`
		PartySize       int    `json:"party_size"`
		GuestName       string `json:"guest_name"`
		Phone           string `json:"phone"`
		Email           string `json:"email"`
		PrepaymentCents int64  `json:"prepayment_cents"`
		ChargeID        string `json:"charge_id"`
		PaymentStatus   string `json:"payment_status"`
	}

	var body request
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	typ, err := models.ParseReservationType(body.Type)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	date, err := models.ParseDate(body.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	booking, decision, err := s.reservations.CreateReservation(r.Context(), domain.ReservationRequest{
		Type:            typ,
		Date:            date,
		Time:            body.Time,
		PartySize:       body.PartySize,
		GuestName:       body.GuestName,
		Phone:           body.Phone,
		Email:           body.Email,
		PrepaymentCents: body.PrepaymentCents,
		ChargeID:        body.ChargeID,
		PaymentStatus:   body.PaymentStatus,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if booking == nil {
		writeJSON(w, http.StatusConflict, reservationResponse{Decision: &decision})
		return
	}

	writeJSON(w, http.StatusCreated, reservationResponse{Booking: booking, Decision: &decision})
}

func (s *HTTPServer) handleReservationByPath(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/reservations/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		s.handleGetReservation(w, r, parts[0])
	case len(parts) == 2 && r.Method == http.MethodPost:
		s.handleLifecycle(w, r, parts[0], parts[1])
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *HTTPServer) handleGetReservation(w http.ResponseWriter, r *http.Request, ref string) {
	var booking *models.Booking
	var err error

	if id, convErr := strconv.ParseInt(ref, 10, 64); convErr == nil {
		booking, err = s.reservations.GetBooking(r.Context(), id)
	} else {
		booking, err = s.reservations.GetBookingByPublicID(r.Context(), ref)
	}
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, reservationResponse{Booking: booking})
}

func (s *HTTPServer) handleLifecycle(w http.ResponseWriter, r *http.Request, idRaw, action string) {
	id, err := strconv.ParseInt(idRaw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid reservation id")
		return
	}

	type request struct {
		Version int64  `json:"version"`
		Reason  string `json:"reason"`
	}
	var body request
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Version <= 0 {
		writeError(w, http.StatusBadRequest, "version is required")
		return
	}

	var booking *models.Booking
	switch action {
	case "confirm":
		booking, err = s.reservations.ConfirmReservation(r.Context(), id, body.Version)
	case "cancel":
		booking, err = s.reservations.CancelReservation(r.Context(), id, body.Version, body.Reason)
	case "seat":
		booking, err = s.reservations.MarkSeated(r.Context(), id, body.Version)
	case "complete":
		booking, err = s.reservations.MarkCompleted(r.Context(), id, body.Version)
	case "no-show":
		booking, err = s.reservations.MarkNoShow(r.Context(), id, body.Version)
	default:
		writeError(w, http.StatusNotFound, "unknown action")
		return
	}
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, reservationResponse{Booking: booking})
}

func (s *HTTPServer) handleSettings(w http.ResponseWriter, r *http.Request) {
	key := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/admin/settings/"), "/")

	switch r.Method {
	case http.MethodGet:
		s.handleGetSettings(w, r, key)
	case http.MethodPut:
		s.handlePutSettings(w, r, key)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleGetSettings(w http.ResponseWriter, r *http.Request, key string) {
	var (
		value  any
		source settings.Source
		err    error
	)

	switch key {
	case "closure":
		value, source, err = s.settings.ClosureSettings(r.Context())
	case "availability":
		value, source, err = s.settings.AvailabilitySettings(r.Context())
	case "capacity":
		value, source, err = s.settings.CapacityModel(r.Context())
	case "confirmation":
		value, source, err = s.settings.ConfirmationSettings(r.Context())
	default:
		writeError(w, http.StatusNotFound, "unknown settings key")
		return
	}
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"source": source, "settings": value})
}

func (s *HTTPServer) handlePutSettings(w http.ResponseWriter, r *http.Request, key string) {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	var err error
	switch key {
	case "closure":
		var cfg settings.ClosureSettings
		if decodeErr := decoder.Decode(&cfg); decodeErr != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		err = s.settings.UpdateClosureSettings(r.Context(), cfg)
	case "availability":
		var cfg settings.AvailabilitySettings
		if decodeErr := decoder.Decode(&cfg); decodeErr != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		err = s.settings.UpdateAvailabilitySettings(r.Context(), cfg)
	case "capacity":
		var model settings.CapacityModel
		if decodeErr := decoder.Decode(&model); decodeErr != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		err = s.settings.UpdateCapacityModel(r.Context(), model)
	case "confirmation":
		var cfg settings.ConfirmationSettings
		if decodeErr := decoder.Decode(&cfg); decodeErr != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		err = s.settings.UpdateConfirmationSettings(r.Context(), cfg)
	default:
		writeError(w, http.StatusNotFound, "unknown settings key")
		return
	}

	var vErr *settings.ValidationError
	if errors.As(err, &vErr) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":      "validation failed",
			"violations": vErr.Violations,
		})
		return
	}
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func availabilityRequestFromQuery(r *http.Request) (admission.Request, error) {
	typ, err := models.ParseReservationType(r.URL.Query().Get("type"))
	if err != nil {
		return admission.Request{}, err
	}
	date, err := models.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		return admission.Request{}, err
	}
	partySize, _ := strconv.Atoi(r.URL.Query().Get("party_size"))
	if partySize <= 0 {
		return admission.Request{}, errors.New("party_size must be positive")
	}

	return admission.Request{
		Type:      typ,
		Date:      date,
		Time:      r.URL.Query().Get("time"),
		PartySize: partySize,
	}, nil
}

// writeServiceError maps domain errors onto HTTP status codes.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, "reservation not found")
	case errors.Is(err, database.ErrConcurrentModification):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, database.ErrDateTooFar), errors.Is(err, database.ErrPastDate):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		var vErr *settings.ValidationError
		if errors.As(err, &vErr) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":      "validation failed",
				"violations": vErr.Violations,
			})
			return
		}
		if strings.Contains(err.Error(), "cannot transition") {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		if isInputError(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error().Err(err).Msg("internal error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// isInputError covers the service layer's request validation failures, which
// arrive as plain errors.
func isInputError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "party size") ||
		strings.Contains(msg, "guest name") ||
		strings.Contains(msg, "invalid time") ||
		strings.Contains(msg, "invalid date") ||
		strings.Contains(msg, "unknown reservation type")
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
