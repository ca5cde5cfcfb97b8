package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	pb "github.com/gartstein/hiring/api/hiring/v1"
	e "github.com/gartstein/hiring/internal/hiring/errors"
	"github.com/gartstein/hiring/internal/hiring/models"
	"github.com/gartstein/hiring/internal/hiring/storage"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// StoreRemote reconciles against an in-process storage backend.
type StoreRemote struct {
	store  storage.Backend
	logger *zap.Logger
}

func NewStoreRemote(store storage.Backend, logger *zap.Logger) *StoreRemote {
	return &StoreRemote{store: store, logger: logger.Named("store_remote")}
}

func (r *StoreRemote) Load(ctx context.Context) (models.Collection, error) {
	return r.store.Load(ctx)
}

func (r *StoreRemote) Save(ctx context.Context, jobs []models.Job, expectedVersion string) (string, error) {
	version, err := r.store.Save(ctx, jobs, expectedVersion)
	if err != nil {
		return "", err
	}
	r.logger.Debug("Collection saved",
		zap.String("backend", r.store.Name()),
		zap.Int("jobs", len(jobs)),
		zap.String("version", version),
	)
	return version, nil
}

const jobsPath = "/api/jobs"

// HTTPRemote reconciles against the collection endpoint of a running server.
// Versions travel as ETag / If-Match headers.
type HTTPRemote struct {
	client *resty.Client
	logger *zap.Logger
}

// NewHTTPRemote targets baseURL. A non-empty token is sent as a bearer token.
func NewHTTPRemote(baseURL, token string, timeout time.Duration, logger *zap.Logger) *HTTPRemote {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if token != "" {
		client.SetAuthToken(token)
	}
	return &HTTPRemote{client: client, logger: logger.Named("http_remote")}
}

func (r *HTTPRemote) Load(ctx context.Context) (models.Collection, error) {
	resp, err := r.client.R().SetContext(ctx).Get(jobsPath)
	if err != nil {
		return models.Collection{}, fmt.Errorf("%w: %v", e.ErrStorageUnavailable, err)
	}
	if resp.IsError() {
		return models.Collection{}, statusError(resp)
	}

	jobs, err := models.Decode(resp.Body())
	if err != nil {
		return models.Collection{}, fmt.Errorf("%w: collection response: %v", e.ErrUnparsable, err)
	}
	version := unquote(resp.Header().Get("ETag"))
	if version == "" {
		version = models.VersionOf(resp.Body())
	}
	return models.Collection{
		Jobs:     jobs,
		Version:  version,
		Degraded: resp.Header().Get(pb.DegradedHeader) == "true",
	}, nil
}

type saveResponse struct {
	Success bool   `json:"success"`
	Count   int    `json:"count"`
	Version string `json:"version"`
}

func (r *HTTPRemote) Save(ctx context.Context, jobs []models.Job, expectedVersion string) (string, error) {
	body, err := models.Encode(jobs)
	if err != nil {
		return "", err
	}

	req := r.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body)
	if expectedVersion != "" {
		req.SetHeader("If-Match", `"`+expectedVersion+`"`)
	}

	resp, err := req.Post(jobsPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", e.ErrStorageUnavailable, err)
	}
	if resp.IsError() {
		return "", statusError(resp)
	}

	var out saveResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", fmt.Errorf("%w: save response: %v", e.ErrUnparsable, err)
	}
	if out.Version == "" {
		out.Version = unquote(resp.Header().Get("ETag"))
	}
	r.logger.Debug("Collection pushed", zap.Int("jobs", out.Count), zap.String("version", out.Version))
	return out.Version, nil
}

// statusError maps an error response of the collection endpoint back onto
// the error taxonomy.
func statusError(resp *resty.Response) error {
	msg := strings.TrimSpace(string(resp.Body()))
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(resp.Body(), &body) == nil && body.Error != "" {
		msg = body.Error
	}

	switch resp.StatusCode() {
	case http.StatusConflict, http.StatusPreconditionFailed:
		return fmt.Errorf("%w: %s", e.ErrVersionConflict, msg)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", e.ErrInvalidInput, msg)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", e.ErrNotFound, msg)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", e.ErrMisconfigured, msg)
	default:
		return fmt.Errorf("%w: status %d: %s", e.ErrStorageUnavailable, resp.StatusCode(), msg)
	}
}

func unquote(etag string) string {
	etag = strings.TrimPrefix(strings.TrimSpace(etag), "W/")
	return strings.Trim(etag, `"`)
}
