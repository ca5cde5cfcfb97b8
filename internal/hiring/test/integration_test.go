package test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gartstein/hiring/internal/hiring/auth"
	"github.com/gartstein/hiring/internal/hiring/cache"
	"github.com/gartstein/hiring/internal/hiring/controller"
	"github.com/gartstein/hiring/internal/hiring/events"
	"github.com/gartstein/hiring/internal/hiring/generator"
	"github.com/gartstein/hiring/internal/hiring/handlers"
	"github.com/gartstein/hiring/internal/hiring/llm"
	"github.com/gartstein/hiring/internal/hiring/media"
	"github.com/gartstein/hiring/internal/hiring/models"
	"github.com/gartstein/hiring/internal/hiring/scoring"
	"github.com/gartstein/hiring/internal/hiring/storage"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

const jwtSecret = "integration-secret"

// fakeModel answers completions by operation, told apart by the request
// shape each caller uses.
type fakeModel struct {
	broken atomic.Bool
	calls  atomic.Int32
}

func (m *fakeModel) Complete(_ context.Context, req llm.CompletionRequest) (string, error) {
	m.calls.Add(1)
	if m.broken.Load() {
		return "", nil
	}
	switch {
	case req.Temperature < 0.5:
		return `{"scores":{"go":4,"Communication":5.4},"explanations":{"Go":"Designed the worker pool.","Communication":"Clear and structured."}}`, nil
	case req.MaxTokens == 1000:
		return `{"competencies":[{"name":"Go","description":"Writes idiomatic Go."}]}`, nil
	case req.MaxTokens == 1500:
		return "# About the Role\n* Build services\n---\n", nil
	default:
		return "```json\n" + `{"questions":[
			{"question":"Describe a Go service you built.","type":"technical","competencies":["Go"]},
			{"question":"How do you explain trade-offs?","type":"behavioral","timeLimit":500,"competencies":["Communication"]}
		]}` + "\n```", nil
	}
}

type fakeTranscriber struct {
	mu    sync.Mutex
	files []string
}

func (t *fakeTranscriber) Transcribe(_ context.Context, filename string, audio io.Reader) (string, error) {
	data, err := io.ReadAll(audio)
	if err != nil {
		return "", err
	}
	t.mu.Lock()
	t.files = append(t.files, filename)
	t.mu.Unlock()
	return "  I migrated our billing system to Go (" + string(data) + ").  ", nil
}

// recordingProducer keeps produced events for assertions.
type recordingProducer struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingProducer) Produce(ev events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingProducer) types() []events.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.EventType, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

func (p *recordingProducer) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

type IntegrationTestSuite struct {
	suite.Suite
	store        *storage.Chain
	syncer       *cache.Synchronizer
	model        *fakeModel
	transcriber  *fakeTranscriber
	producer     *recordingProducer
	server       *httptest.Server
	token        string
	logger       *zap.Logger
	cleanupFuncs []func()
}

func TestIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests")
	}
	suite.Run(t, new(IntegrationTestSuite))
}

func (s *IntegrationTestSuite) SetupSuite() {
	s.logger = zap.NewNop()
	dir := s.T().TempDir()
	ctx := context.Background()

	store, closeStore, err := storage.Open(ctx, storage.Options{
		Signals: storage.Signals{DatabaseDSN: "sqlite://" + filepath.Join(dir, "hiring.db")},
	}, s.logger)
	s.Require().NoError(err)
	s.Require().Equal([]string{"database"}, store.Backends())
	s.store = store
	s.cleanupFuncs = append(s.cleanupFuncs, func() { _ = closeStore() })

	s.producer = &recordingProducer{}
	s.syncer = cache.NewSynchronizer(cache.NewMemoryCache(), cache.NewStoreRemote(store, s.logger), cache.Options{
		PushTimeout: 5 * time.Second,
		OnPushed: func(version string, count int) {
			s.producer.Produce(events.Event{Type: events.JobsSaved, Version: version, Count: count})
		},
	}, s.logger)

	s.model = &fakeModel{}
	s.transcriber = &fakeTranscriber{}
	svc := controller.NewHiringService(controller.Dependencies{
		Store:     store,
		Jobs:      s.syncer,
		Generator: generator.New(s.model, s.logger),
		Analyzer:  scoring.NewEngine(s.model, 100000, s.logger),
		Media:     media.NewPipeline(media.NewLocalSink(filepath.Join(dir, "uploads")), s.transcriber, 25, s.logger),
		Producer:  s.producer,
	}, s.logger)

	mux := runtime.NewServeMux()
	s.Require().NoError(handlers.NewHTTPHandler(svc, 10<<20, s.logger).Register(mux))
	s.server = httptest.NewServer(auth.HTTPMiddleware(mux, jwtSecret))
	s.cleanupFuncs = append(s.cleanupFuncs, s.server.Close)

	s.token, err = auth.GenerateToken("integration", jwtSecret, time.Hour)
	s.Require().NoError(err)
}

func (s *IntegrationTestSuite) TearDownSuite() {
	s.syncer.Wait()
	for i := len(s.cleanupFuncs) - 1; i >= 0; i-- {
		s.cleanupFuncs[i]()
	}
}

func (s *IntegrationTestSuite) SetupTest() {
	ctx := context.Background()
	s.syncer.Wait()
	_, err := s.store.Save(ctx, []models.Job{}, "")
	s.Require().NoError(err)
	s.Require().NoError(s.syncer.Invalidate(ctx))
	s.model.broken.Store(false)
	s.producer.reset()
}

func (s *IntegrationTestSuite) do(method, path string, body io.Reader, headers map[string]string) (*http.Response, []byte) {
	req, err := http.NewRequest(method, s.server.URL+path, body)
	s.Require().NoError(err)
	if body != nil && headers["Content-Type"] == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	return resp, data
}

func (s *IntegrationTestSuite) authed(extra ...string) map[string]string {
	h := map[string]string{"Authorization": "Bearer " + s.token}
	for i := 0; i+1 < len(extra); i += 2 {
		h[extra[i]] = extra[i+1]
	}
	return h
}

func (s *IntegrationTestSuite) saveJobs(jobs ...models.Job) string {
	data, err := json.Marshal(jobs)
	s.Require().NoError(err)
	resp, body := s.do(http.MethodPost, "/api/jobs", bytes.NewReader(data), s.authed())
	s.Require().Equal(http.StatusOK, resp.StatusCode, string(body))
	var out struct{ Version string }
	s.Require().NoError(json.Unmarshal(body, &out))
	return out.Version
}

func (s *IntegrationTestSuite) storedJobs() []models.Job {
	s.syncer.Wait()
	col, err := s.store.Load(context.Background())
	s.Require().NoError(err)
	return col.Jobs
}

func sampleJob(id string) models.Job {
	return models.Job{
		ID:        id,
		CompanyID: "co-1",
		Title:     "Backend Engineer",
		Competencies: []models.Competency{
			{ID: "c-go", Name: "Go", Weight: 1},
			{ID: "c-comm", Name: "Communication", Weight: 1},
		},
		InterviewQuestions: []models.Question{},
		Candidates:         []models.Candidate{},
	}
}

func (s *IntegrationTestSuite) TestCollectionSaveIsVersioned() {
	resp, body := s.do(http.MethodGet, "/api/jobs", nil, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.JSONEq(`[]`, string(body))
	empty := strings.Trim(resp.Header.Get("ETag"), `"`)
	s.Equal(models.EmptyVersion, empty)

	payload := `[{"id":"job-1","title":"Backend Engineer","competencies":[],"interviewQuestions":[],"candidates":[]}]`

	resp, _ = s.do(http.MethodPost, "/api/jobs", strings.NewReader(payload), nil)
	s.Equal(http.StatusUnauthorized, resp.StatusCode, "writes need a token")

	resp, body = s.do(http.MethodPost, "/api/jobs", strings.NewReader(payload), s.authed("If-Match", `"`+empty+`"`))
	s.Require().Equal(http.StatusOK, resp.StatusCode, string(body))
	var saved struct {
		Success bool
		Count   int
		Version string
	}
	s.Require().NoError(json.Unmarshal(body, &saved))
	s.True(saved.Success)
	s.Equal(1, saved.Count)
	s.NotEqual(empty, saved.Version)

	resp, _ = s.do(http.MethodGet, "/api/jobs", nil, nil)
	s.Equal(`"`+saved.Version+`"`, resp.Header.Get("ETag"), "the cache is dropped after a save")

	resp, body = s.do(http.MethodPost, "/api/jobs", strings.NewReader(`[]`), s.authed("If-Match", `"`+empty+`"`))
	s.Equal(http.StatusConflict, resp.StatusCode, string(body))

	s.Len(s.storedJobs(), 1)
	s.Contains(s.producer.types(), events.JobsSaved)
}

func (s *IntegrationTestSuite) TestInvalidCollectionIsRejected() {
	resp, _ := s.do(http.MethodPost, "/api/jobs", strings.NewReader(`[{"id":"a"},{"id":"a"}]`), s.authed())
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(http.MethodPost, "/api/jobs", strings.NewReader(`{"jobs":[]}`), s.authed())
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *IntegrationTestSuite) TestCandidateIsScoredAndPersisted() {
	s.saveJobs(sampleJob("job-1"))

	resp, body := s.do(http.MethodPost, "/api/jobs/job-1/candidates",
		strings.NewReader(`{"name":"Ada","transcript":"I built a worker pool in Go and presented it to the team."}`), s.authed())
	s.Require().Equal(http.StatusOK, resp.StatusCode, string(body))
	var cand models.Candidate
	s.Require().NoError(json.Unmarshal(body, &cand))
	s.Require().NotEmpty(cand.ID)

	resp, body = s.do(http.MethodPost, "/api/jobs/job-1/candidates/"+cand.ID+"/score", nil, s.authed())
	s.Require().Equal(http.StatusOK, resp.StatusCode, string(body))
	s.Require().NoError(json.Unmarshal(body, &cand))
	s.Equal(map[string]int{"Go": 4, "Communication": 5}, cand.AIScores)

	stored := s.storedJobs()
	s.Require().Len(stored[0].Candidates, 1)
	s.Equal(4, stored[0].Candidates[0].AIScores["Go"])
	s.Equal("Designed the worker pool.", stored[0].Candidates[0].Explanations["Go"])
	s.Contains(s.producer.types(), events.CandidateScored)

	resp, _ = s.do(http.MethodPost, "/api/jobs/job-1/candidates/nobody/score", nil, s.authed())
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *IntegrationTestSuite) TestAnswerUploadTranscribeAndServe() {
	s.saveJobs(sampleJob("job-1"))
	resp, body := s.do(http.MethodPost, "/api/jobs/job-1/candidates", strings.NewReader(`{"id":"cand-1","name":"Ada"}`), s.authed())
	s.Require().Equal(http.StatusOK, resp.StatusCode, string(body))

	form := &bytes.Buffer{}
	mw := multipart.NewWriter(form)
	for k, v := range map[string]string{"jobId": "job-1", "candidateId": "cand-1", "questionIndex": "1"} {
		s.Require().NoError(mw.WriteField(k, v))
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="video"; filename="blob"`)
	h.Set("Content-Type", "video/webm;codecs=vp8,opus")
	part, err := mw.CreatePart(h)
	s.Require().NoError(err)
	_, err = part.Write([]byte("webm-bytes"))
	s.Require().NoError(err)
	s.Require().NoError(mw.Close())

	resp, body = s.do(http.MethodPost, "/api/upload", form, map[string]string{"Content-Type": mw.FormDataContentType()})
	s.Require().Equal(http.StatusOK, resp.StatusCode, string(body))
	var up struct {
		Success    bool
		URL        string
		IsLocal    bool
		IsFallback bool
	}
	s.Require().NoError(json.Unmarshal(body, &up))
	s.True(up.IsLocal)
	s.False(up.IsFallback)
	s.True(strings.HasPrefix(up.URL, "/uploads/job-1_cand-1_q1_"), up.URL)
	s.True(strings.HasSuffix(up.URL, ".webm"), up.URL)

	stored := s.storedJobs()
	s.Require().Len(stored[0].Candidates[0].Interviews, 1)
	s.Equal(up.URL, stored[0].Candidates[0].Interviews[0].URL)

	resp, body = s.do(http.MethodGet, up.URL, nil, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Equal("video/webm", resp.Header.Get("Content-Type"))
	s.Equal("webm-bytes", string(body))

	reqBody, _ := json.Marshal(map[string]string{"videoUrl": s.server.URL + up.URL})
	resp, body = s.do(http.MethodPost, "/api/transcribe", bytes.NewReader(reqBody), nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode, string(body))
	var tr struct {
		Success    bool
		Transcript string
		Metadata   struct {
			FileSizeInMB     float64
			TranscriptLength int
		}
	}
	s.Require().NoError(json.Unmarshal(body, &tr))
	s.Equal("I migrated our billing system to Go (webm-bytes).", tr.Transcript)
	s.Equal(len(tr.Transcript), tr.Metadata.TranscriptLength)
	s.Contains(s.transcriber.files, "answer.webm")

	resp, _ = s.do(http.MethodPost, "/api/transcribe", strings.NewReader(`{"videoUrl":"/uploads/missing.webm"}`), nil)
	s.Equal(http.StatusNotFound, resp.StatusCode)
	s.Contains(s.producer.types(), events.AnswerUploaded)
}

func (s *IntegrationTestSuite) TestGenerationFallsBackOnUnusableOutput() {
	req := `{"jobTitle":"Backend Engineer","competencies":[{"id":"c-go","name":"Go"},{"id":"c-comm","name":"Communication"}],"onePerCompetency":true}`

	resp, body := s.do(http.MethodPost, "/api/generate-questions", strings.NewReader(req), nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode, string(body))
	var out struct {
		Questions []models.Question
		Fallback  bool
	}
	s.Require().NoError(json.Unmarshal(body, &out))
	s.False(out.Fallback)
	s.Require().Len(out.Questions, 2)
	s.Equal("c-go", out.Questions[0].CompetencyID)
	s.Equal(240, out.Questions[0].TimeLimit)
	s.Equal(300, out.Questions[1].TimeLimit)

	s.model.broken.Store(true)
	resp, body = s.do(http.MethodPost, "/api/generate-questions", strings.NewReader(req), nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode, string(body))
	s.Require().NoError(json.Unmarshal(body, &out))
	s.True(out.Fallback)
	s.Len(out.Questions, 2)

	var named struct {
		Questions    []models.Question
		Competencies []models.Competency
	}
	resp, body = s.do(http.MethodPost, "/api/generate-questions",
		strings.NewReader(`{"jobTitle":"Backend Engineer","competencies":["Go","Communication"],"onePerCompetency":true}`), nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode, string(body))
	s.Require().NoError(json.Unmarshal(body, &named))
	s.Require().Len(named.Competencies, 2)
	s.Require().Len(named.Questions, 2)
	for i, c := range named.Competencies {
		s.NotEmpty(c.ID)
		s.Equal(c.ID, named.Questions[i].CompetencyID, "questions refer to the returned competency IDs")
	}

	resp, body = s.do(http.MethodPost, "/api/generate-job-description", strings.NewReader(`{"jobTitle":"Dev","userPrompt":"remote"}`), nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode, string(body))
	s.Contains(string(body), `"fallback":true`)
}

func (s *IntegrationTestSuite) TestCacheFollowsOtherInstances() {
	s.saveJobs(sampleJob("job-1"))
	resp, _ := s.do(http.MethodGet, "/api/jobs", nil, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	// Another instance writes straight to storage and announces it.
	ctx := context.Background()
	version, err := s.store.Save(ctx, []models.Job{sampleJob("job-1"), sampleJob("job-2")}, "")
	s.Require().NoError(err)

	resp, _ = s.do(http.MethodGet, "/api/jobs/job-2", nil, nil)
	s.Equal(http.StatusOK, resp.StatusCode, "a missing job triggers one refresh")

	s.Require().NoError(s.syncer.HandleEvent(ctx, events.Event{Type: events.JobsSaved, Version: version, Source: "other"}))
	resp, _ = s.do(http.MethodGet, "/api/jobs", nil, nil)
	s.Equal(`"`+version+`"`, resp.Header.Get("ETag"))
}
