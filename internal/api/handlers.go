// Package api exposes the HTTP surface of the workout ledger.
package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"example.com/fittrack/internal/auth"
	"example.com/fittrack/internal/domain"
	"example.com/fittrack/internal/media"
	"example.com/fittrack/internal/nutrition"
	"example.com/fittrack/internal/observability"
	"example.com/fittrack/internal/realtime"
	"example.com/fittrack/internal/session"
	"example.com/fittrack/internal/syncer"
)

// FoodSearcher is the slice of the nutrition client the handlers need.
type FoodSearcher interface {
	Search(ctx context.Context, minCalories, maxCalories, limit int) ([]domain.NutritionItem, error)
}

// Handler coordinates HTTP requests with per-user sync sessions.
type Handler struct {
	sessions *session.Manager
	foods    FoodSearcher
	hub      *realtime.Hub
	validate *validator.Validate
	foodCap  int
}

// NewHandler builds a Handler. hub may be nil to disable the websocket route.
func NewHandler(sessions *session.Manager, foods FoodSearcher, hub *realtime.Hub, foodCap int) *Handler {
	if foodCap <= 0 {
		foodCap = nutrition.DefaultResultCap
	}
	return &Handler{
		sessions: sessions,
		foods:    foods,
		hub:      hub,
		validate: validator.New(),
		foodCap:  foodCap,
	}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/workouts", h.workouts)
	mux.HandleFunc("/v1/workouts/", h.workoutByID)
	mux.HandleFunc("/v1/workouts/edit", h.editWorkout)
	mux.HandleFunc("/v1/foods", h.searchFoods)
	mux.HandleFunc("/v1/foods/selection", h.foodSelection)
	mux.HandleFunc("/v1/attachments", h.attachments)
	mux.HandleFunc("/v1/signout", h.signOut)
	if h.hub != nil {
		mux.HandleFunc("/v1/ws", h.serveWS)
	}
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) workouts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.saveWorkout(w, r)
	case http.MethodGet:
		h.listWorkouts(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) workoutByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/workouts/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing workout id")
		return
	}
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	sess, ok := h.writableSession(w, r)
	if !ok {
		return
	}
	if err := sess.Controller.DeleteWorkout(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SaveWorkoutRequest is the payload for POST /v1/workouts.
type SaveWorkoutRequest struct {
	Activity        string `json:"activity" validate:"required"`
	DurationMinutes int    `json:"duration_minutes" validate:"required,gt=0"`
}

// SaveWorkoutResponse carries the persisted record and the derived balance.
type SaveWorkoutResponse struct {
	Workout domain.WorkoutRecord `json:"workout"`
	Balance BalanceView          `json:"balance"`
}

// BalanceView is the energy-balance message shown after a save.
type BalanceView struct {
	CaloriesGained float64 `json:"calories_gained"`
	CaloriesBurned int     `json:"calories_burned"`
	Delta          float64 `json:"delta"`
	Verdict        string  `json:"verdict"`
}

func (h *Handler) saveWorkout(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.writableSession(w, r)
	if !ok {
		return
	}

	var req SaveWorkoutRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := sess.Controller.SaveWorkout(r.Context(), syncer.SaveWorkoutInput{
		Activity:        req.Activity,
		DurationMinutes: req.DurationMinutes,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, SaveWorkoutResponse{
		Workout: result.Record,
		Balance: BalanceView{
			CaloriesGained: result.Balance.Gained,
			CaloriesBurned: result.Balance.Burned,
			Delta:          result.Balance.Delta,
			Verdict:        string(result.Balance.Balance),
		},
	})
}

// ListWorkoutsResponse packages the ledger cache contents.
type ListWorkoutsResponse struct {
	Workouts []domain.WorkoutRecord `json:"workouts"`
}

func (h *Handler) listWorkouts(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.readableSession(w, r)
	if !ok {
		return
	}
	workouts := sess.Ledger.Snapshot()
	if workouts == nil {
		workouts = []domain.WorkoutRecord{}
	}
	writeJSON(w, http.StatusOK, ListWorkoutsResponse{Workouts: workouts})
}

// EditWorkoutRequest points the next save at an existing ledger position.
type EditWorkoutRequest struct {
	Index int `json:"index" validate:"gte=0"`
}

func (h *Handler) editWorkout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	sess, ok := h.writableSession(w, r)
	if !ok {
		return
	}

	var req EditWorkoutRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := sess.Controller.BeginEdit(req.Index); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SearchFoodsResponse packages nutrition search results.
type SearchFoodsResponse struct {
	Items []domain.NutritionItem `json:"items"`
}

func (h *Handler) searchFoods(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if _, ok := h.readableSession(w, r); !ok {
		return
	}

	minCalories, err := queryInt(r, "min_calories", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "min_calories must be an integer")
		return
	}
	maxCalories, err := queryInt(r, "max_calories", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "max_calories must be an integer")
		return
	}
	limit, err := queryInt(r, "limit", h.foodCap)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "limit must be an integer")
		return
	}
	if limit > h.foodCap {
		limit = h.foodCap
	}

	items, err := h.foods.Search(r.Context(), minCalories, maxCalories, limit)
	observability.RecordFoodQuery(err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SearchFoodsResponse{Items: items})
}

// FoodSelectionRequest credits or debits one food item's calories.
type FoodSelectionRequest struct {
	Title    string  `json:"title"`
	Calories float64 `json:"calories" validate:"gte=0"`
}

func (h *Handler) foodSelection(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.writableSession(w, r)
	if !ok {
		return
	}

	var req FoodSelectionRequest
	if !h.decode(w, r, &req) {
		return
	}
	item := domain.NutritionItem{Title: req.Title, Calories: req.Calories}

	switch r.Method {
	case http.MethodPost:
		sess.Controller.AddFood(item)
	case http.MethodDelete:
		sess.Controller.RemoveFood(item)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	writeJSON(w, http.StatusOK, map[string]float64{
		"calories_gained": sess.Ledger.CaloriesGained(),
	})
}

// AttachmentRequest carries an image as a base64 data URL.
type AttachmentRequest struct {
	Image string `json:"image" validate:"required"`
}

// AttachmentResponse reports the lifecycle state after upload.
type AttachmentResponse struct {
	State string `json:"state"`
	Ref   string `json:"ref,omitempty"`
}

func (h *Handler) attachments(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.writableSession(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodPost:
		var req AttachmentRequest
		if !h.decode(w, r, &req) {
			return
		}
		capture, err := decodeDataURL(req.Image)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		if err := sess.Attachments.SetPreview(capture); err != nil {
			writeDomainError(w, err)
			return
		}
		if err := sess.Attachments.Persist(r.Context()); err != nil {
			writeDomainError(w, err)
			return
		}
		ref, _ := sess.Attachments.Ref()
		writeJSON(w, http.StatusCreated, AttachmentResponse{
			State: string(sess.Attachments.State()),
			Ref:   ref,
		})
	case http.MethodDelete:
		if err := sess.Attachments.Remove(r.Context()); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) signOut(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	h.sessions.SignOut(r.Context(), claims.Subject)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) serveWS(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claimsWithScope(w, r, auth.ScopeLedgerRead, auth.ScopeLedgerWrite)
	if !ok {
		return
	}
	// Opening the socket also hydrates the session so snapshots flow.
	if _, err := h.sessions.Get(r.Context(), claims.Subject); err != nil {
		writeDomainError(w, err)
		return
	}
	h.hub.ServeWS(w, r, claims.Subject)
}

func (h *Handler) writableSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	claims, ok := h.claimsWithScope(w, r, auth.ScopeLedgerWrite)
	if !ok {
		return nil, false
	}
	return h.session(w, r, claims)
}

func (h *Handler) readableSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	claims, ok := h.claimsWithScope(w, r, auth.ScopeLedgerRead, auth.ScopeLedgerWrite)
	if !ok {
		return nil, false
	}
	return h.session(w, r, claims)
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request, claims *auth.Claims) (*session.Session, bool) {
	sess, err := h.sessions.Get(r.Context(), claims.Subject)
	if err != nil {
		writeDomainError(w, err)
		return nil, false
	}
	return sess, true
}

func (h *Handler) claimsWithScope(w http.ResponseWriter, r *http.Request, scopes ...string) (*auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	for _, scope := range scopes {
		if claims.HasScope(scope) {
			return claims, true
		}
	}
	writeError(w, http.StatusForbidden, "forbidden", "scope "+strings.Join(scopes, " or ")+" required")
	return nil, false
}

// decode parses and validates a JSON body, writing the error response itself.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, out interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return false
	}
	if err := h.validate.Struct(out); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return false
	}
	return true
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

// decodeDataURL parses "data:<content-type>;base64,<payload>" into a capture.
func decodeDataURL(value string) (media.Capture, error) {
	rest, ok := strings.CutPrefix(value, "data:")
	if !ok {
		return media.Capture{}, errors.New("image must be a base64 data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return media.Capture{}, errors.New("image must be a base64 data URL")
	}
	contentType := strings.TrimSuffix(meta, ";base64")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return media.Capture{}, errors.New("image payload is not valid base64")
	}
	return media.Capture{Data: data, ContentType: contentType}, nil
}

// writeDomainError maps sentinel errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrNotAuthenticated):
		writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
	case errors.Is(err, domain.ErrNetwork):
		writeError(w, http.StatusBadGateway, "upstream_unavailable", err.Error())
	case errors.Is(err, domain.ErrMediaCapture), errors.Is(err, domain.ErrMediaPersist):
		writeError(w, http.StatusUnprocessableEntity, "media_failed", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
