package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	e "github.com/gartstein/hiring/internal/hiring/errors"
	"github.com/gartstein/hiring/internal/hiring/generator"
	"github.com/gartstein/hiring/internal/hiring/media"
	"github.com/gartstein/hiring/internal/hiring/models"
	"github.com/gartstein/hiring/internal/pkg/utils"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type competenciesRequest struct {
	JobTitle       string          `json:"jobTitle"`
	JobDescription string          `json:"jobDescription"`
	Company        *models.Company `json:"company"`
}

type descriptionRequest struct {
	JobTitle   string          `json:"jobTitle"`
	Company    *models.Company `json:"company"`
	UserPrompt string          `json:"userPrompt"`
}

type questionsRequest struct {
	JobTitle         string          `json:"jobTitle"`
	JobDescription   string          `json:"jobDescription"`
	Competencies     competencyList  `json:"competencies"`
	Company          *models.Company `json:"company"`
	OnePerCompetency *bool           `json:"onePerCompetency"`
}

type analyzeRequest struct {
	Transcript   string   `json:"transcript"`
	Competencies []string `json:"competencies"`
}

type transcribeRequest struct {
	VideoURL string `json:"videoUrl"`
}

// competencyList accepts competencies either as objects or as bare names.
type competencyList []models.Competency

func (l *competencyList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(competencyList, 0, len(raw))
	for i, item := range raw {
		var name string
		if err := json.Unmarshal(item, &name); err == nil {
			out = append(out, models.Competency{Name: name, Weight: 1})
			continue
		}
		var c models.Competency
		if err := json.Unmarshal(item, &c); err != nil {
			return fmt.Errorf("competency %d: %w", i, err)
		}
		out = append(out, c)
	}
	*l = out
	return nil
}

func (r questionsRequest) toModel() generator.QuestionRequest {
	return generator.QuestionRequest{
		JobTitle:         r.JobTitle,
		JobDescription:   r.JobDescription,
		Competencies:     generator.WithIDs(r.Competencies),
		Company:          r.Company,
		OnePerCompetency: utils.Deref(r.OnePerCompetency, false),
	}
}

type saveResponse struct {
	Success bool   `json:"success"`
	Count   int    `json:"count"`
	Version string `json:"version"`
}

type competenciesResponse struct {
	Competencies []models.Competency `json:"competencies"`
	Fallback     bool                `json:"fallback"`
	Reason       string              `json:"reason,omitempty"`
}

type descriptionResponse struct {
	Description string `json:"description"`
	Fallback    bool   `json:"fallback"`
	Reason      string `json:"reason,omitempty"`
}

type questionsResponse struct {
	Questions []models.Question `json:"questions"`
	// Competencies echoes the request with every competency carrying the ID
	// the questions refer to.
	Competencies []models.Competency `json:"competencies"`
	Fallback     bool                `json:"fallback"`
	Reason       string              `json:"reason,omitempty"`
}

type uploadResponse struct {
	Success    bool   `json:"success"`
	URL        string `json:"url"`
	Filename   string `json:"filename"`
	IsLocal    bool   `json:"isLocal"`
	IsFallback bool   `json:"isFallback,omitempty"`
}

func toUploadResponse(s media.Stored) uploadResponse {
	return uploadResponse{
		Success:    true,
		URL:        s.URL,
		Filename:   s.Filename,
		IsLocal:    s.IsLocal,
		IsFallback: s.IsFallback,
	}
}

type transcriptMetadata struct {
	FileSizeInMB     float64 `json:"fileSizeInMB"`
	TranscriptLength int     `json:"transcriptLength"`
}

type transcribeResponse struct {
	Success    bool               `json:"success"`
	Transcript string             `json:"transcript"`
	Metadata   transcriptMetadata `json:"metadata"`
}

func toTranscribeResponse(t media.Transcript) transcribeResponse {
	return transcribeResponse{
		Success:    true,
		Transcript: t.Text,
		Metadata: transcriptMetadata{
			FileSizeInMB:     t.FileSizeInMB,
			TranscriptLength: t.Length,
		},
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// etag quotes a collection version for the ETag header.
func etag(version string) string {
	return `"` + version + `"`
}

// expectedVersion reads If-Match. An absent header or "*" makes the save
// unconditional.
func expectedVersion(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("If-Match"))
	v = strings.TrimPrefix(v, "W/")
	v = strings.Trim(v, `"`)
	if v == "*" {
		return ""
	}
	return v
}

// httpStatus maps domain errors to HTTP status codes.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, e.ErrInvalidInput),
		errors.Is(err, e.ErrInputTooLong),
		errors.Is(err, e.ErrMediaTooLarge),
		errors.Is(err, e.ErrUnsupportedMedia):
		return http.StatusBadRequest
	case errors.Is(err, e.ErrNotFound), errors.Is(err, e.ErrMediaNotFound):
		return http.StatusNotFound
	case errors.Is(err, e.ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, e.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, e.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, e.ErrStorageUnavailable), errors.Is(err, e.ErrReadOnly):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// mapServiceError maps domain errors to gRPC status codes.
func (h *JobStoreHandler) mapServiceError(err error) error {
	switch {
	case errors.Is(err, e.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, e.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, e.ErrVersionConflict):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, e.ErrUnauthenticated):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, e.ErrReadOnly):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, e.ErrStorageUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	default:
		h.logger.Error("Internal server error", zap.Error(err))
		return status.Error(codes.Internal, fmt.Sprintf("internal server error: %v", err))
	}
}
