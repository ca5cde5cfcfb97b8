package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	pb "github.com/gartstein/hiring/api/hiring/v1"
	e "github.com/gartstein/hiring/internal/hiring/errors"
	"github.com/gartstein/hiring/internal/hiring/generator"
	"github.com/gartstein/hiring/internal/hiring/media"
	"github.com/gartstein/hiring/internal/hiring/models"
	"github.com/gartstein/hiring/internal/hiring/scoring"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.uber.org/zap"
)

const (
	maxJSONBody     = 50 << 20
	multipartMemory = 32 << 20
	// retryAfter is the advice sent with 429 responses, in seconds.
	retryAfter = "30"
)

// HiringController defines the business logic interface the gRPC and HTTP
// handlers invoke.
type HiringController interface {
	ListJobs(ctx context.Context) (models.Collection, error)
	GetJob(ctx context.Context, id string) (models.Job, error)
	SaveJobs(ctx context.Context, jobs []models.Job, expectedVersion string) (string, error)
	UpsertCandidate(ctx context.Context, jobID string, c models.Candidate) (models.Candidate, error)
	ScoreCandidate(ctx context.Context, jobID, candidateID string) (models.Candidate, error)
	GenerateCompetencies(ctx context.Context, req generator.CompetencyRequest) (generator.Result[[]models.Competency], error)
	GenerateJobDescription(ctx context.Context, req generator.DescriptionRequest) (generator.Result[string], error)
	GenerateQuestions(ctx context.Context, req generator.QuestionRequest) (generator.Result[[]models.Question], error)
	AnalyzeTranscript(ctx context.Context, transcript string, competencies []string) (scoring.Analysis, error)
	UploadAnswer(ctx context.Context, up media.Upload) (media.Stored, error)
	TranscribeAnswer(ctx context.Context, videoURL string) (media.Transcript, error)
	OpenAnswer(ctx context.Context, rawURL string) (*media.Object, error)
}

// HTTPHandler serves the JSON API.
type HTTPHandler struct {
	service   HiringController
	maxUpload int64
	logger    *zap.Logger
}

func NewHTTPHandler(service HiringController, maxUploadBytes int64, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{
		service:   service,
		maxUpload: maxUploadBytes,
		logger:    logger.Named("http_handler"),
	}
}

// Register mounts every route on mux.
func (h *HTTPHandler) Register(mux *runtime.ServeMux) error {
	routes := []struct {
		method  string
		pattern string
		handler runtime.HandlerFunc
	}{
		{http.MethodGet, "/healthz", h.health},
		{http.MethodGet, "/api/jobs", h.listJobs},
		{http.MethodPost, "/api/jobs", h.saveJobs},
		{http.MethodGet, "/api/jobs/{id}", h.getJob},
		{http.MethodPost, "/api/jobs/{id}/candidates", h.upsertCandidate},
		{http.MethodPost, "/api/jobs/{id}/candidates/{candidateId}/score", h.scoreCandidate},
		{http.MethodPost, "/api/generate-competencies", h.generateCompetencies},
		{http.MethodPost, "/api/generate-job-description", h.generateJobDescription},
		{http.MethodPost, "/api/generate-questions", h.generateQuestions},
		{http.MethodPost, "/api/analyze-transcript", h.analyzeTranscript},
		{http.MethodPost, "/api/transcribe", h.transcribe},
		{http.MethodPost, "/api/upload", h.upload},
		{http.MethodGet, "/uploads/{name}", h.serveUpload},
		{http.MethodGet, "/media/{name}", h.serveMedia},
	}
	for _, rt := range routes {
		if err := mux.HandlePath(rt.method, rt.pattern, rt.handler); err != nil {
			return fmt.Errorf("failed to register %s %s: %w", rt.method, rt.pattern, err)
		}
	}
	return nil
}

func (h *HTTPHandler) health(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) listJobs(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	col, err := h.service.ListJobs(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if col.Version != "" {
		w.Header().Set("ETag", etag(col.Version))
	}
	if col.Degraded {
		w.Header().Set(pb.DegradedHeader, "true")
	}
	jobs := col.Jobs
	if jobs == nil {
		jobs = []models.Job{}
	}
	h.writeJSON(w, http.StatusOK, jobs)
}

func (h *HTTPHandler) saveJobs(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var jobs []models.Job
	if err := h.decode(w, r, &jobs); err != nil {
		h.writeError(w, err)
		return
	}

	version, err := h.service.SaveJobs(r.Context(), jobs, expectedVersion(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("ETag", etag(version))
	h.writeJSON(w, http.StatusOK, saveResponse{Success: true, Count: len(jobs), Version: version})
}

func (h *HTTPHandler) getJob(w http.ResponseWriter, r *http.Request, params map[string]string) {
	job, err := h.service.GetJob(r.Context(), params["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, job)
}

func (h *HTTPHandler) upsertCandidate(w http.ResponseWriter, r *http.Request, params map[string]string) {
	var c models.Candidate
	if err := h.decode(w, r, &c); err != nil {
		h.writeError(w, err)
		return
	}
	saved, err := h.service.UpsertCandidate(r.Context(), params["id"], c)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, saved)
}

func (h *HTTPHandler) scoreCandidate(w http.ResponseWriter, r *http.Request, params map[string]string) {
	scored, err := h.service.ScoreCandidate(r.Context(), params["id"], params["candidateId"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, scored)
}

func (h *HTTPHandler) generateCompetencies(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req competenciesRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	res, err := h.service.GenerateCompetencies(r.Context(), generator.CompetencyRequest{
		JobTitle:       req.JobTitle,
		JobDescription: req.JobDescription,
		Company:        req.Company,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, competenciesResponse{Competencies: res.Value, Fallback: res.Fallback, Reason: res.Reason})
}

func (h *HTTPHandler) generateJobDescription(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req descriptionRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	res, err := h.service.GenerateJobDescription(r.Context(), generator.DescriptionRequest{
		JobTitle:   req.JobTitle,
		Company:    req.Company,
		UserPrompt: req.UserPrompt,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, descriptionResponse{Description: res.Value, Fallback: res.Fallback, Reason: res.Reason})
}

func (h *HTTPHandler) generateQuestions(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req questionsRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	in := req.toModel()
	res, err := h.service.GenerateQuestions(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, questionsResponse{
		Questions:    res.Value,
		Competencies: in.Competencies,
		Fallback:     res.Fallback,
		Reason:       res.Reason,
	})
}

func (h *HTTPHandler) analyzeTranscript(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req analyzeRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	analysis, err := h.service.AnalyzeTranscript(r.Context(), req.Transcript, req.Competencies)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, analysis)
}

func (h *HTTPHandler) transcribe(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req transcribeRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	transcript, err := h.service.TranscribeAnswer(r.Context(), req.VideoURL)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toTranscribeResponse(transcript))
}

func (h *HTTPHandler) upload(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, fmt.Errorf("%w: upload exceeds %d bytes", e.ErrMediaTooLarge, h.maxUpload))
			return
		}
		h.writeError(w, fmt.Errorf("%w: %v", e.ErrInvalidInput, err))
		return
	}

	file, header, err := r.FormFile("video")
	if err != nil {
		h.writeError(w, fmt.Errorf("%w: video file is required", e.ErrInvalidInput))
		return
	}
	defer file.Close()

	if header.Size > h.maxUpload {
		h.writeError(w, fmt.Errorf("%w: upload exceeds %d bytes", e.ErrMediaTooLarge, h.maxUpload))
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, fmt.Errorf("%w: failed to read video: %v", e.ErrInvalidInput, err))
		return
	}

	questionIndex, err := strconv.Atoi(r.FormValue("questionIndex"))
	if err != nil {
		h.writeError(w, fmt.Errorf("%w: questionIndex must be a number", e.ErrInvalidInput))
		return
	}

	stored, err := h.service.UploadAnswer(r.Context(), media.Upload{
		JobID:         r.FormValue("jobId"),
		CandidateID:   r.FormValue("candidateId"),
		QuestionIndex: questionIndex,
		Filename:      header.Filename,
		ContentType:   header.Header.Get("Content-Type"),
		Data:          data,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toUploadResponse(stored))
}

func (h *HTTPHandler) serveUpload(w http.ResponseWriter, r *http.Request, params map[string]string) {
	h.serveAnswer(w, r, "/uploads/"+params["name"])
}

func (h *HTTPHandler) serveMedia(w http.ResponseWriter, r *http.Request, params map[string]string) {
	h.serveAnswer(w, r, "/media/"+params["name"])
}

func (h *HTTPHandler) serveAnswer(w http.ResponseWriter, r *http.Request, url string) {
	obj, err := h.service.OpenAnswer(r.Context(), url)
	if err != nil {
		h.writeError(w, err)
		return
	}
	defer obj.Body.Close()

	w.Header().Set("Content-Type", obj.ContentType)
	if obj.Size >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, obj.Body); err != nil {
		h.logger.Warn("Failed to stream answer", zap.String("url", url), zap.Error(err))
	}
}

// decode reads a JSON body. Malformed bodies are invalid input.
func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("%w: malformed JSON body: %v", e.ErrInvalidInput, err)
	}
	return nil
}

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("Failed to encode response", zap.Error(err))
	}
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	code := httpStatus(err)
	if code >= http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.Int("status", code), zap.Error(err))
	}
	if code == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", retryAfter)
	}
	h.writeJSON(w, code, errorResponse{Error: err.Error()})
}
