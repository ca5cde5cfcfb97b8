// Package controller implements the hiring service layer: it validates
// requests, orchestrates the collection store, the client cache, content
// generation, transcript scoring and media handling, and publishes events.
package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"

	e "github.com/gartstein/hiring/internal/hiring/errors"
	"github.com/gartstein/hiring/internal/hiring/events"
	"github.com/gartstein/hiring/internal/hiring/generator"
	"github.com/gartstein/hiring/internal/hiring/media"
	"github.com/gartstein/hiring/internal/hiring/models"
	"github.com/gartstein/hiring/internal/hiring/scoring"
	"go.uber.org/zap"
)

type EventProducer interface {
	Produce(ev events.Event)
}

// CollectionStore is the authoritative full-replace store of all jobs.
type CollectionStore interface {
	Save(ctx context.Context, jobs []models.Job, expectedVersion string) (string, error)
}

// JobCache serves reads and candidate writes in front of the store.
type JobCache interface {
	Jobs(ctx context.Context) (models.Collection, error)
	Get(ctx context.Context, id string) (models.Job, error)
	UpsertCandidate(ctx context.Context, jobID string, c models.Candidate) (models.Candidate, error)
	UpdateCandidate(ctx context.Context, jobID, candidateID string, fn func(*models.Candidate)) (models.Candidate, error)
	Invalidate(ctx context.Context) error
}

type ContentGenerator interface {
	GenerateCompetencies(ctx context.Context, req generator.CompetencyRequest) (generator.Result[[]models.Competency], error)
	GenerateJobDescription(ctx context.Context, req generator.DescriptionRequest) (generator.Result[string], error)
	GenerateQuestions(ctx context.Context, req generator.QuestionRequest) (generator.Result[[]models.Question], error)
}

type TranscriptAnalyzer interface {
	Analyze(ctx context.Context, transcript string, competencies []string) (scoring.Analysis, error)
}

type MediaPipeline interface {
	Store(ctx context.Context, up media.Upload) (media.Stored, error)
	Open(ctx context.Context, rawURL string) (*media.Object, error)
	Transcribe(ctx context.Context, rawURL string) (media.Transcript, error)
}

// Dependencies are the collaborators of HiringService.
type Dependencies struct {
	Store     CollectionStore
	Jobs      JobCache
	Generator ContentGenerator
	Analyzer  TranscriptAnalyzer
	Media     MediaPipeline
	Producer  EventProducer
}

type HiringService struct {
	store     CollectionStore
	jobs      JobCache
	generator ContentGenerator
	analyzer  TranscriptAnalyzer
	media     MediaPipeline
	producer  EventProducer
	logger    *zap.Logger
}

func NewHiringService(deps Dependencies, logger *zap.Logger) *HiringService {
	return &HiringService{
		store:     deps.Store,
		jobs:      deps.Jobs,
		generator: deps.Generator,
		analyzer:  deps.Analyzer,
		media:     deps.Media,
		producer:  deps.Producer,
		logger:    logger.Named("hiring_service"),
	}
}

// ListJobs returns the whole collection with its version.
func (s *HiringService) ListJobs(ctx context.Context) (models.Collection, error) {
	col, err := s.jobs.Jobs(ctx)
	if err != nil {
		return models.Collection{}, fmt.Errorf("failed to list jobs: %w", err)
	}
	return col, nil
}

func (s *HiringService) GetJob(ctx context.Context, id string) (models.Job, error) {
	if strings.TrimSpace(id) == "" {
		return models.Job{}, fmt.Errorf("%w: job id is required", e.ErrInvalidInput)
	}
	job, err := s.jobs.Get(ctx, id)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return models.Job{}, err
		}
		return models.Job{}, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// SaveJobs replaces the whole collection. A non-empty expectedVersion makes
// the save conditional on the stored version.
func (s *HiringService) SaveJobs(ctx context.Context, jobs []models.Job, expectedVersion string) (string, error) {
	if jobs == nil {
		return "", fmt.Errorf("%w: a JSON array of jobs is required", e.ErrInvalidInput)
	}
	if err := models.ValidateJobs(jobs); err != nil {
		return "", fmt.Errorf("%w: %v", e.ErrInvalidInput, err)
	}

	version, err := s.store.Save(ctx, jobs, expectedVersion)
	if err != nil {
		if errors.Is(err, e.ErrVersionConflict) || errors.Is(err, e.ErrInvalidInput) {
			return "", err
		}
		return "", fmt.Errorf("failed to save jobs: %w", err)
	}

	if err := s.jobs.Invalidate(ctx); err != nil {
		s.logger.Warn("Failed to drop job cache after save", zap.Error(err))
	}
	s.producer.Produce(events.Event{Type: events.JobsSaved, Version: version, Count: len(jobs)})
	return version, nil
}

// UpsertCandidate adds a candidate to a job or replaces the one with the
// same ID.
func (s *HiringService) UpsertCandidate(ctx context.Context, jobID string, c models.Candidate) (models.Candidate, error) {
	if strings.TrimSpace(c.Name) == "" {
		return models.Candidate{}, fmt.Errorf("%w: candidate name is required", e.ErrInvalidInput)
	}
	if err := c.Validate(); err != nil {
		return models.Candidate{}, fmt.Errorf("%w: %v", e.ErrInvalidInput, err)
	}
	saved, err := s.jobs.UpsertCandidate(ctx, jobID, c)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return models.Candidate{}, err
		}
		return models.Candidate{}, fmt.Errorf("failed to save candidate: %w", err)
	}
	return saved, nil
}

func (s *HiringService) GenerateCompetencies(ctx context.Context, req generator.CompetencyRequest) (generator.Result[[]models.Competency], error) {
	return s.generator.GenerateCompetencies(ctx, req)
}

func (s *HiringService) GenerateJobDescription(ctx context.Context, req generator.DescriptionRequest) (generator.Result[string], error) {
	return s.generator.GenerateJobDescription(ctx, req)
}

func (s *HiringService) GenerateQuestions(ctx context.Context, req generator.QuestionRequest) (generator.Result[[]models.Question], error) {
	return s.generator.GenerateQuestions(ctx, req)
}

func (s *HiringService) AnalyzeTranscript(ctx context.Context, transcript string, competencies []string) (scoring.Analysis, error) {
	return s.analyzer.Analyze(ctx, transcript, competencies)
}

// ScoreCandidate analyzes the stored transcript of a candidate against the
// job's competencies and records the machine scores on the candidate.
func (s *HiringService) ScoreCandidate(ctx context.Context, jobID, candidateID string) (models.Candidate, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return models.Candidate{}, err
	}
	i := job.FindCandidate(candidateID)
	if i < 0 {
		return models.Candidate{}, fmt.Errorf("%w: candidate %s in job %s", e.ErrNotFound, candidateID, jobID)
	}
	transcript := job.Candidates[i].Transcript
	if strings.TrimSpace(transcript) == "" {
		return models.Candidate{}, fmt.Errorf("%w: candidate %s has no transcript", e.ErrInvalidInput, candidateID)
	}

	analysis, err := s.analyzer.Analyze(ctx, transcript, job.CompetencyNames())
	if err != nil {
		return models.Candidate{}, err
	}

	scored, err := s.jobs.UpdateCandidate(ctx, jobID, candidateID, func(c *models.Candidate) {
		c.AIScores = analysis.Scores
		c.Explanations = analysis.Explanations
	})
	if err != nil {
		return models.Candidate{}, fmt.Errorf("failed to record scores: %w", err)
	}

	s.logger.Info("Candidate scored",
		zap.String("job_id", jobID),
		zap.String("candidate_id", candidateID),
		zap.Int("competencies", len(analysis.Scores)),
	)
	s.producer.Produce(events.Event{Type: events.CandidateScored, JobID: jobID, CandidateID: candidateID})
	return scored, nil
}

// UploadAnswer stores a recorded answer and attaches it to the candidate.
// The stored answer is returned even when attaching fails so the client can
// keep it.
func (s *HiringService) UploadAnswer(ctx context.Context, up media.Upload) (media.Stored, error) {
	stored, err := s.media.Store(ctx, up)
	if err != nil {
		return media.Stored{}, err
	}

	answer := models.Interview{
		JobID:         up.JobID,
		CandidateID:   up.CandidateID,
		QuestionIndex: up.QuestionIndex,
		URL:           stored.URL,
		IsLocal:       stored.IsLocal,
		IsFallback:    stored.IsFallback,
	}
	_, err = s.jobs.UpdateCandidate(ctx, up.JobID, up.CandidateID, func(c *models.Candidate) {
		c.RecordInterview(answer)
	})
	if err != nil {
		s.logger.Warn("Answer stored but not attached to candidate",
			zap.String("job_id", up.JobID),
			zap.String("candidate_id", up.CandidateID),
			zap.Int("question_index", up.QuestionIndex),
			zap.Error(err),
		)
	}

	s.producer.Produce(events.Event{
		Type:          events.AnswerUploaded,
		JobID:         up.JobID,
		CandidateID:   up.CandidateID,
		QuestionIndex: up.QuestionIndex,
	})
	return stored, nil
}

func (s *HiringService) TranscribeAnswer(ctx context.Context, videoURL string) (media.Transcript, error) {
	return s.media.Transcribe(ctx, videoURL)
}

// OpenAnswer returns the bytes of a stored answer by its URL.
func (s *HiringService) OpenAnswer(ctx context.Context, rawURL string) (*media.Object, error) {
	return s.media.Open(ctx, rawURL)
}
