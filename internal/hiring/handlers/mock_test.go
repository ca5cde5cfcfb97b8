package handlers

import (
	"context"
	"errors"

	"github.com/gartstein/hiring/internal/hiring/generator"
	"github.com/gartstein/hiring/internal/hiring/media"
	"github.com/gartstein/hiring/internal/hiring/models"
	"github.com/gartstein/hiring/internal/hiring/scoring"
)

var errNotMocked = errors.New("not mocked")

// mockHiringController is a func-field implementation of HiringController.
// Unset functions fail with errNotMocked.
type mockHiringController struct {
	listJobsFunc               func(ctx context.Context) (models.Collection, error)
	getJobFunc                 func(ctx context.Context, id string) (models.Job, error)
	saveJobsFunc               func(ctx context.Context, jobs []models.Job, expectedVersion string) (string, error)
	upsertCandidateFunc        func(ctx context.Context, jobID string, c models.Candidate) (models.Candidate, error)
	scoreCandidateFunc         func(ctx context.Context, jobID, candidateID string) (models.Candidate, error)
	generateCompetenciesFunc   func(ctx context.Context, req generator.CompetencyRequest) (generator.Result[[]models.Competency], error)
	generateJobDescriptionFunc func(ctx context.Context, req generator.DescriptionRequest) (generator.Result[string], error)
	generateQuestionsFunc      func(ctx context.Context, req generator.QuestionRequest) (generator.Result[[]models.Question], error)
	analyzeTranscriptFunc      func(ctx context.Context, transcript string, competencies []string) (scoring.Analysis, error)
	uploadAnswerFunc           func(ctx context.Context, up media.Upload) (media.Stored, error)
	transcribeAnswerFunc       func(ctx context.Context, videoURL string) (media.Transcript, error)
	openAnswerFunc             func(ctx context.Context, rawURL string) (*media.Object, error)
}

func (m *mockHiringController) ListJobs(ctx context.Context) (models.Collection, error) {
	if m.listJobsFunc == nil {
		return models.Collection{}, errNotMocked
	}
	return m.listJobsFunc(ctx)
}

func (m *mockHiringController) GetJob(ctx context.Context, id string) (models.Job, error) {
	if m.getJobFunc == nil {
		return models.Job{}, errNotMocked
	}
	return m.getJobFunc(ctx, id)
}

func (m *mockHiringController) SaveJobs(ctx context.Context, jobs []models.Job, expectedVersion string) (string, error) {
	if m.saveJobsFunc == nil {
		return "", errNotMocked
	}
	return m.saveJobsFunc(ctx, jobs, expectedVersion)
}

func (m *mockHiringController) UpsertCandidate(ctx context.Context, jobID string, c models.Candidate) (models.Candidate, error) {
	if m.upsertCandidateFunc == nil {
		return models.Candidate{}, errNotMocked
	}
	return m.upsertCandidateFunc(ctx, jobID, c)
}

func (m *mockHiringController) ScoreCandidate(ctx context.Context, jobID, candidateID string) (models.Candidate, error) {
	if m.scoreCandidateFunc == nil {
		return models.Candidate{}, errNotMocked
	}
	return m.scoreCandidateFunc(ctx, jobID, candidateID)
}

func (m *mockHiringController) GenerateCompetencies(ctx context.Context, req generator.CompetencyRequest) (generator.Result[[]models.Competency], error) {
	if m.generateCompetenciesFunc == nil {
		return generator.Result[[]models.Competency]{}, errNotMocked
	}
	return m.generateCompetenciesFunc(ctx, req)
}

func (m *mockHiringController) GenerateJobDescription(ctx context.Context, req generator.DescriptionRequest) (generator.Result[string], error) {
	if m.generateJobDescriptionFunc == nil {
		return generator.Result[string]{}, errNotMocked
	}
	return m.generateJobDescriptionFunc(ctx, req)
}

func (m *mockHiringController) GenerateQuestions(ctx context.Context, req generator.QuestionRequest) (generator.Result[[]models.Question], error) {
	if m.generateQuestionsFunc == nil {
		return generator.Result[[]models.Question]{}, errNotMocked
	}
	return m.generateQuestionsFunc(ctx, req)
}

func (m *mockHiringController) AnalyzeTranscript(ctx context.Context, transcript string, competencies []string) (scoring.Analysis, error) {
	if m.analyzeTranscriptFunc == nil {
		return scoring.Analysis{}, errNotMocked
	}
	return m.analyzeTranscriptFunc(ctx, transcript, competencies)
}

func (m *mockHiringController) UploadAnswer(ctx context.Context, up media.Upload) (media.Stored, error) {
	if m.uploadAnswerFunc == nil {
		return media.Stored{}, errNotMocked
	}
	return m.uploadAnswerFunc(ctx, up)
}

func (m *mockHiringController) TranscribeAnswer(ctx context.Context, videoURL string) (media.Transcript, error) {
	if m.transcribeAnswerFunc == nil {
		return media.Transcript{}, errNotMocked
	}
	return m.transcribeAnswerFunc(ctx, videoURL)
}

func (m *mockHiringController) OpenAnswer(ctx context.Context, rawURL string) (*media.Object, error) {
	if m.openAnswerFunc == nil {
		return nil, errNotMocked
	}
	return m.openAnswerFunc(ctx, rawURL)
}
