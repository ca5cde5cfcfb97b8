package controller

import (
	"context"
	"errors"
	"fmt"
	"testing"

	e "github.com/gartstein/hiring/internal/hiring/errors"
	"github.com/gartstein/hiring/internal/hiring/events"
	"github.com/gartstein/hiring/internal/hiring/generator"
	"github.com/gartstein/hiring/internal/hiring/media"
	"github.com/gartstein/hiring/internal/hiring/models"
	"github.com/gartstein/hiring/internal/hiring/scoring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// MockStore implements CollectionStore for testing.
type MockStore struct {
	save func(context.Context, []models.Job, string) (string, error)
}

func (m *MockStore) Save(ctx context.Context, jobs []models.Job, expected string) (string, error) {
	return m.save(ctx, jobs, expected)
}

// MockJobCache implements JobCache over a single in-memory job.
type MockJobCache struct {
	job         *models.Job
	invalidated int
	updateErr   error
}

func (m *MockJobCache) Jobs(context.Context) (models.Collection, error) {
	if m.job == nil {
		return models.Collection{Jobs: []models.Job{}}, nil
	}
	return models.Collection{Jobs: []models.Job{*m.job}, Version: "v1"}, nil
}

func (m *MockJobCache) Get(_ context.Context, id string) (models.Job, error) {
	if m.job == nil || m.job.ID != id {
		return models.Job{}, fmt.Errorf("%w: job %s", e.ErrNotFound, id)
	}
	return *m.job, nil
}

func (m *MockJobCache) UpsertCandidate(_ context.Context, jobID string, c models.Candidate) (models.Candidate, error) {
	if m.job == nil || m.job.ID != jobID {
		return models.Candidate{}, fmt.Errorf("%w: job %s", e.ErrNotFound, jobID)
	}
	if c.ID == "" {
		c.ID = "generated"
	}
	m.job.UpsertCandidate(c)
	return c, nil
}

func (m *MockJobCache) UpdateCandidate(_ context.Context, jobID, candidateID string, fn func(*models.Candidate)) (models.Candidate, error) {
	if m.updateErr != nil {
		return models.Candidate{}, m.updateErr
	}
	if m.job == nil || m.job.ID != jobID {
		return models.Candidate{}, fmt.Errorf("%w: job %s", e.ErrNotFound, jobID)
	}
	i := m.job.FindCandidate(candidateID)
	if i < 0 {
		return models.Candidate{}, fmt.Errorf("%w: candidate %s", e.ErrNotFound, candidateID)
	}
	fn(&m.job.Candidates[i])
	return m.job.Candidates[i], nil
}

func (m *MockJobCache) Invalidate(context.Context) error {
	m.invalidated++
	return nil
}

// MockAnalyzer implements TranscriptAnalyzer for testing.
type MockAnalyzer struct {
	analyze func(context.Context, string, []string) (scoring.Analysis, error)
}

func (m *MockAnalyzer) Analyze(ctx context.Context, transcript string, comps []string) (scoring.Analysis, error) {
	return m.analyze(ctx, transcript, comps)
}

// MockMedia implements MediaPipeline for testing.
type MockMedia struct {
	store func(context.Context, media.Upload) (media.Stored, error)
}

func (m *MockMedia) Store(ctx context.Context, up media.Upload) (media.Stored, error) {
	return m.store(ctx, up)
}

func (m *MockMedia) Open(context.Context, string) (*media.Object, error) {
	return nil, e.ErrMediaNotFound
}

func (m *MockMedia) Transcribe(context.Context, string) (media.Transcript, error) {
	return media.Transcript{}, errors.New("unexpected transcription")
}

// MockGenerator implements ContentGenerator for testing.
type MockGenerator struct{}

func (MockGenerator) GenerateCompetencies(context.Context, generator.CompetencyRequest) (generator.Result[[]models.Competency], error) {
	return generator.Result[[]models.Competency]{Value: generator.DefaultCompetencies(), Fallback: true}, nil
}

func (MockGenerator) GenerateJobDescription(context.Context, generator.DescriptionRequest) (generator.Result[string], error) {
	return generator.Result[string]{Value: "**About the Role**"}, nil
}

func (MockGenerator) GenerateQuestions(context.Context, generator.QuestionRequest) (generator.Result[[]models.Question], error) {
	return generator.Result[[]models.Question]{}, nil
}

// MockProducer records produced events.
type MockProducer struct {
	produced []events.Event
}

func (m *MockProducer) Produce(ev events.Event) {
	m.produced = append(m.produced, ev)
}

func testJob() *models.Job {
	return &models.Job{
		ID:    "job-1",
		Title: "Backend Engineer",
		Competencies: []models.Competency{
			{ID: "c1", Name: "Go", Weight: 1},
			{ID: "c2", Name: "Communication", Weight: 1},
		},
		Candidates: []models.Candidate{
			{ID: "cand-1", Name: "Ada", Transcript: "I built the Go services and presented them."},
			{ID: "cand-2", Name: "Bob"},
		},
	}
}

type fixture struct {
	svc      *HiringService
	store    *MockStore
	jobs     *MockJobCache
	analyzer *MockAnalyzer
	media    *MockMedia
	producer *MockProducer
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		store:    &MockStore{},
		jobs:     &MockJobCache{job: testJob()},
		analyzer: &MockAnalyzer{},
		media:    &MockMedia{},
		producer: &MockProducer{},
	}
	f.svc = NewHiringService(Dependencies{
		Store:     f.store,
		Jobs:      f.jobs,
		Generator: MockGenerator{},
		Analyzer:  f.analyzer,
		Media:     f.media,
		Producer:  f.producer,
	}, zaptest.NewLogger(t))
	return f
}

func TestHiringService_SaveJobs(t *testing.T) {
	tests := []struct {
		name          string
		jobs          []models.Job
		expected      string
		saveErr       error
		expectedError error
		wantEvent     bool
	}{
		{
			name:      "successful save",
			jobs:      []models.Job{{ID: "a"}, {ID: "b"}},
			expected:  "v1",
			wantEvent: true,
		},
		{
			name:          "nil body",
			jobs:          nil,
			expectedError: e.ErrInvalidInput,
		},
		{
			name:          "duplicate ids",
			jobs:          []models.Job{{ID: "a"}, {ID: "a"}},
			expectedError: e.ErrInvalidInput,
		},
		{
			name:          "stale version",
			jobs:          []models.Job{{ID: "a"}},
			expected:      "old",
			saveErr:       fmt.Errorf("%w: stored version moved on", e.ErrVersionConflict),
			expectedError: e.ErrVersionConflict,
		},
		{
			name:          "backend failure",
			jobs:          []models.Job{{ID: "a"}},
			saveErr:       e.ErrStorageUnavailable,
			expectedError: e.ErrStorageUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			var gotExpected string
			f.store.save = func(_ context.Context, _ []models.Job, expected string) (string, error) {
				gotExpected = expected
				if tt.saveErr != nil {
					return "", tt.saveErr
				}
				return "v2", nil
			}

			version, err := f.svc.SaveJobs(context.Background(), tt.jobs, tt.expected)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Zero(t, f.jobs.invalidated)
				assert.Empty(t, f.producer.produced)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "v2", version)
			assert.Equal(t, tt.expected, gotExpected)
			assert.Equal(t, 1, f.jobs.invalidated)
			require.Len(t, f.producer.produced, 1)
			assert.Equal(t, events.Event{Type: events.JobsSaved, Version: "v2", Count: len(tt.jobs)}, f.producer.produced[0])
		})
	}
}

func TestHiringService_GetJob(t *testing.T) {
	f := newFixture(t)

	job, err := f.svc.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, "Backend Engineer", job.Title)

	_, err = f.svc.GetJob(context.Background(), "missing")
	assert.ErrorIs(t, err, e.ErrNotFound)

	_, err = f.svc.GetJob(context.Background(), " ")
	assert.ErrorIs(t, err, e.ErrInvalidInput)
}

func TestHiringService_UpsertCandidate(t *testing.T) {
	f := newFixture(t)

	saved, err := f.svc.UpsertCandidate(context.Background(), "job-1", models.Candidate{Name: "Grace", Email: "g@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "generated", saved.ID)
	assert.GreaterOrEqual(t, f.jobs.job.FindCandidate("generated"), 0)

	_, err = f.svc.UpsertCandidate(context.Background(), "job-1", models.Candidate{})
	assert.ErrorIs(t, err, e.ErrInvalidInput)

	_, err = f.svc.UpsertCandidate(context.Background(), "missing", models.Candidate{Name: "Grace"})
	assert.ErrorIs(t, err, e.ErrNotFound)
}

func TestHiringService_UpsertCandidateRejectsScoresOutOfRange(t *testing.T) {
	for _, score := range []int{0, 6, 42} {
		f := newFixture(t)

		_, err := f.svc.UpsertCandidate(context.Background(), "job-1", models.Candidate{
			Name:   "Grace",
			Scores: map[string]int{"Communication": score},
		})
		assert.ErrorIs(t, err, e.ErrInvalidInput, "score %d", score)
		assert.Len(t, f.jobs.job.Candidates, 2, "rejected candidate must not be stored")
	}
}

func TestHiringService_ScoreCandidate(t *testing.T) {
	f := newFixture(t)
	var gotComps []string
	f.analyzer.analyze = func(_ context.Context, transcript string, comps []string) (scoring.Analysis, error) {
		gotComps = comps
		return scoring.Analysis{
			Scores:       map[string]int{"Go": 4, "Communication": 3},
			Explanations: map[string]string{"Go": "built services", "Communication": "presented"},
		}, nil
	}

	scored, err := f.svc.ScoreCandidate(context.Background(), "job-1", "cand-1")
	require.NoError(t, err)

	assert.Equal(t, []string{"Go", "Communication"}, gotComps)
	assert.Equal(t, 4, scored.AIScores["Go"])
	assert.Equal(t, "presented", f.jobs.job.Candidates[0].Explanations["Communication"])
	require.Len(t, f.producer.produced, 1)
	assert.Equal(t, events.CandidateScored, f.producer.produced[0].Type)
	assert.Equal(t, "cand-1", f.producer.produced[0].CandidateID)
}

func TestHiringService_ScoreCandidateErrors(t *testing.T) {
	tests := []struct {
		name          string
		jobID         string
		candidateID   string
		analyzeErr    error
		expectedError error
	}{
		{"unknown job", "missing", "cand-1", nil, e.ErrNotFound},
		{"unknown candidate", "job-1", "missing", nil, e.ErrNotFound},
		{"no transcript", "job-1", "cand-2", nil, e.ErrInvalidInput},
		{"rate limited", "job-1", "cand-1", e.ErrRateLimited, e.ErrRateLimited},
		{"unparsable", "job-1", "cand-1", e.ErrUnparsable, e.ErrUnparsable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.analyzer.analyze = func(context.Context, string, []string) (scoring.Analysis, error) {
				return scoring.Analysis{}, tt.analyzeErr
			}

			_, err := f.svc.ScoreCandidate(context.Background(), tt.jobID, tt.candidateID)

			assert.ErrorIs(t, err, tt.expectedError)
			assert.Empty(t, f.jobs.job.Candidates[0].AIScores)
			assert.Empty(t, f.producer.produced)
		})
	}
}

func TestHiringService_UploadAnswer(t *testing.T) {
	stored := media.Stored{URL: "/uploads/job-1_cand-1_q0_x.webm", Filename: "job-1_cand-1_q0_x.webm", IsLocal: true}

	t.Run("attaches answer", func(t *testing.T) {
		f := newFixture(t)
		f.media.store = func(context.Context, media.Upload) (media.Stored, error) { return stored, nil }

		got, err := f.svc.UploadAnswer(context.Background(), media.Upload{JobID: "job-1", CandidateID: "cand-1", QuestionIndex: 0})
		require.NoError(t, err)
		assert.Equal(t, stored, got)

		interviews := f.jobs.job.Candidates[0].Interviews
		require.Len(t, interviews, 1)
		assert.Equal(t, stored.URL, interviews[0].URL)
		assert.True(t, interviews[0].IsLocal)
		require.Len(t, f.producer.produced, 1)
		assert.Equal(t, events.AnswerUploaded, f.producer.produced[0].Type)
	})

	t.Run("answer kept when candidate is unknown", func(t *testing.T) {
		f := newFixture(t)
		f.media.store = func(context.Context, media.Upload) (media.Stored, error) { return stored, nil }

		got, err := f.svc.UploadAnswer(context.Background(), media.Upload{JobID: "job-1", CandidateID: "ghost"})
		require.NoError(t, err)
		assert.Equal(t, stored.URL, got.URL)
	})

	t.Run("answer kept when cache write fails", func(t *testing.T) {
		f := newFixture(t)
		f.jobs.updateErr = e.ErrStorageUnavailable
		fallback := media.Stored{URL: "data:video/webm;base64,AAAA", IsFallback: true, IsLocal: true}
		f.media.store = func(context.Context, media.Upload) (media.Stored, error) { return fallback, nil }

		got, err := f.svc.UploadAnswer(context.Background(), media.Upload{JobID: "job-1", CandidateID: "cand-1"})
		require.NoError(t, err)
		assert.True(t, got.IsFallback)
	})

	t.Run("invalid upload", func(t *testing.T) {
		f := newFixture(t)
		f.media.store = func(context.Context, media.Upload) (media.Stored, error) {
			return media.Stored{}, fmt.Errorf("%w: video is empty", e.ErrInvalidInput)
		}

		_, err := f.svc.UploadAnswer(context.Background(), media.Upload{JobID: "job-1", CandidateID: "cand-1"})
		assert.ErrorIs(t, err, e.ErrInvalidInput)
		assert.Empty(t, f.producer.produced)
	})
}

func TestHiringService_ListJobs(t *testing.T) {
	f := newFixture(t)
	f.jobs.job = nil

	col, err := f.svc.ListJobs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, col.Jobs)
	assert.Empty(t, col.Version)
}
