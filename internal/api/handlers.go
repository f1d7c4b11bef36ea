package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"reviewq/internal/domain"
	"reviewq/internal/ports"
	"reviewq/internal/usecase"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const maxUploadBytes = 32 << 20

type handlers struct {
	engine  *usecase.Engine
	payouts ports.PayoutQueue
	images  ports.ObjectStorage
}

type publishReq struct {
	ImageURL string `json:"image_url"`
}

type assignReq struct {
	// Worker and Reviewer default to the caller.
	Worker   string `json:"worker"`
	Reviewer string `json:"reviewer"`
}

type submitReq struct {
	Description  string    `json:"description"`
	Descriptions []*string `json:"descriptions"`
}

type adjudicateReq struct {
	Accept *bool `json:"accept"`
}

type queueResp struct {
	IDs []uint64 `json:"ids"`
	Len uint64   `json:"len"`
}

func (h *handlers) publish(w http.ResponseWriter, r *http.Request) {
	var req publishReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := h.engine.Publish(r.Context(), req.ImageURL)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (h *handlers) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()

	name := "tasks/" + uuid.NewString() + strings.ToLower(filepath.Ext(header.Filename))
	url, err := h.images.Save(r.Context(), name, file, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("failed to store uploaded image")
		writeError(w, http.StatusBadGateway, "failed to store image")
		return
	}
	id, err := h.engine.Publish(r.Context(), url)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": id, "image_url": url})
}

func (h *handlers) getTask(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	t, err := h.engine.GetTask(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if t == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("task %d not found", id))
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *handlers) assignTask(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req assignReq
	if !decodeOptional(w, r, &req) {
		return
	}
	worker := domain.Principal(req.Worker)
	if worker == "" {
		worker = PrincipalFromCtx(r.Context())
	}
	if err := h.engine.AssignTask(r.Context(), id, worker); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) submitTask(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req submitReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	desc, err := req.description()
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	reviewID, err := h.engine.SubmitTask(r.Context(), PrincipalFromCtx(r.Context()), id, desc)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"review_id": reviewID})
}

const maxDescriptions = 4

// description joins the non-empty descriptions with ";" or falls back to the
// single description field.
func (s submitReq) description() (string, error) {
	if len(s.Descriptions) == 0 {
		return s.Description, nil
	}
	if len(s.Descriptions) > maxDescriptions {
		return "", fmt.Errorf("%w: at most %d descriptions", domain.ErrInvalidArgument, maxDescriptions)
	}
	parts := make([]string, 0, len(s.Descriptions))
	for _, d := range s.Descriptions {
		if d != nil && *d != "" {
			parts = append(parts, *d)
		}
	}
	return strings.Join(parts, ";"), nil
}

func (h *handlers) getReview(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	rt, err := h.engine.GetReviewTask(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if rt == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("review task %d not found", id))
		return
	}
	writeJSON(w, http.StatusOK, rt)
}

func (h *handlers) assignReview(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req assignReq
	if !decodeOptional(w, r, &req) {
		return
	}
	reviewer := domain.Principal(req.Reviewer)
	if reviewer == "" {
		reviewer = PrincipalFromCtx(r.Context())
	}
	if err := h.engine.AssignReviewTask(r.Context(), id, reviewer); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) adjudicate(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req adjudicateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Accept == nil {
		writeError(w, http.StatusBadRequest, "accept is required")
		return
	}
	res, err := h.engine.Adjudicate(r.Context(), PrincipalFromCtx(r.Context()), id, *req.Accept)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	body := map[string]any{"review": res.Review}
	if res.PayoutID != "" {
		body["payout_id"] = res.PayoutID
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *handlers) taskQueue(w http.ResponseWriter, r *http.Request) {
	ids, err := h.engine.TaskQueueSnapshot(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, queueResp{IDs: ids, Len: uint64(len(ids))})
}

func (h *handlers) reviewQueue(w http.ResponseWriter, r *http.Request) {
	ids, err := h.engine.ReviewQueueSnapshot(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, queueResp{IDs: ids, Len: uint64(len(ids))})
}

func (h *handlers) getPayout(w http.ResponseWriter, r *http.Request) {
	if h.payouts == nil {
		writeError(w, http.StatusNotFound, "payouts are not tracked by this server")
		return
	}
	id := chi.URLParam(r, "id")
	p, err := h.payouts.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("payout %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func idParam(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid id %q", raw))
		return 0, false
	}
	return id, true
}

// decodeOptional decodes a JSON body if one was sent.
func decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNotAssignee), errors.Is(err, domain.ErrNotReviewer):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotQueued),
		errors.Is(err, domain.ErrAlreadyAssigned),
		errors.Is(err, domain.ErrAlreadyCompleted),
		errors.Is(err, domain.ErrAlreadyAdjudicated):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Ctx(r.Context()).Error().Err(err).Msg("request failed")
		writeError(w, status, "internal server error")
		return
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
