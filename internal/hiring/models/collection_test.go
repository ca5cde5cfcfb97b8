package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleJobs() []Job {
	return []Job{
		{
			ID:        "job-1",
			CompanyID: "co-1",
			Title:     "Backend Engineer",
			Competencies: []Competency{
				{ID: "c1", Name: "Technical Skills", Description: "Go", Weight: 1},
			},
			InterviewQuestions: []Question{
				{ID: "q1", Question: "Tell us about Go.", TimeLimit: 180, CompetencyID: "c1"},
			},
			Candidates: []Candidate{
				{
					ID:           "cand-1",
					Name:         "Sam",
					DateAdded:    time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
					Scores:       map[string]int{"Technical Skills": 4},
					AIScores:     map[string]int{},
					Explanations: nil,
					Interviews: []Interview{
						{JobID: "job-1", CandidateID: "cand-1", QuestionIndex: 0, URL: "/uploads/a.webm", IsLocal: true},
					},
				},
			},
		},
		{ID: "job-2", CompanyID: "co-1", Title: "Designer", IsDraft: true},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	jobs := sampleJobs()

	data, err := Encode(jobs)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, jobs, decoded)
}

func TestEncodeNilIsEmptyArray(t *testing.T) {
	data, err := Encode(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))

	jobs, err := Decode(nil)
	require.NoError(t, err)
	assert.Empty(t, jobs)
	assert.NotNil(t, jobs)
}

func TestVersionTracksContent(t *testing.T) {
	jobs := sampleJobs()
	v1 := MustVersion(jobs)
	assert.Equal(t, v1, MustVersion(sampleJobs()), "same content should hash the same")

	jobs[1].Title = "Senior Designer"
	assert.NotEqual(t, v1, MustVersion(jobs))
	assert.Equal(t, EmptyVersion, MustVersion([]Job{}))
}

func TestValidateJobs(t *testing.T) {
	assert.NoError(t, ValidateJobs(sampleJobs()))
	assert.Error(t, ValidateJobs([]Job{{ID: "a"}, {ID: "a"}}))
	assert.Error(t, ValidateJobs([]Job{{Title: "no id"}}))
}

func TestValidateJobs_Ranges(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(j *Job)
		wantErr string
	}{
		{"time limit at lower bound", func(j *Job) { j.InterviewQuestions[0].TimeLimit = 30 }, ""},
		{"time limit at upper bound", func(j *Job) { j.InterviewQuestions[0].TimeLimit = 600 }, ""},
		{"time limit too short", func(j *Job) { j.InterviewQuestions[0].TimeLimit = 29 }, "timeLimit 29"},
		{"time limit too long", func(j *Job) { j.InterviewQuestions[0].TimeLimit = 601 }, "timeLimit 601"},
		{"time limit missing", func(j *Job) { j.InterviewQuestions[0].TimeLimit = 0 }, "timeLimit 0"},
		{"human score too high", func(j *Job) { j.Candidates[0].Scores["Technical Skills"] = 42 }, "score 42"},
		{"human score too low", func(j *Job) { j.Candidates[0].Scores["Technical Skills"] = 0 }, "score 0"},
		{"ai score out of range", func(j *Job) { j.Candidates[0].AIScores["Technical Skills"] = 6 }, "aiScore 6"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs := sampleJobs()
			tt.mutate(&jobs[0])

			err := ValidateJobs(jobs)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCandidate_Validate(t *testing.T) {
	assert.NoError(t, Candidate{Name: "Sam"}.Validate())
	assert.NoError(t, Candidate{Scores: map[string]int{"Communication": 1, "Go": 5}}.Validate())
	assert.Error(t, Candidate{Scores: map[string]int{"Communication": 42}}.Validate())
}

func TestCloneJobsIsDeep(t *testing.T) {
	jobs := sampleJobs()
	clone, err := CloneJobs(jobs)
	require.NoError(t, err)

	clone[0].Candidates[0].Scores["Technical Skills"] = 1
	assert.Equal(t, 4, jobs[0].Candidates[0].Scores["Technical Skills"])
}

func TestUpsertCandidateAndRecordInterview(t *testing.T) {
	job := sampleJobs()[0]

	updated := job.Candidates[0]
	updated.Notes = "strong"
	job.UpsertCandidate(updated)
	require.Len(t, job.Candidates, 1)
	assert.Equal(t, "strong", job.Candidates[0].Notes)

	job.UpsertCandidate(Candidate{ID: "cand-2", Name: "Alex"})
	assert.Len(t, job.Candidates, 2)
	assert.Equal(t, 1, job.FindCandidate("cand-2"))
	assert.Equal(t, -1, job.FindCandidate("missing"))

	c := &job.Candidates[0]
	c.RecordInterview(Interview{QuestionIndex: 0, URL: "/uploads/b.webm"})
	c.RecordInterview(Interview{QuestionIndex: 1, URL: "/uploads/c.webm"})
	require.Len(t, c.Interviews, 2)
	assert.Equal(t, "/uploads/b.webm", c.Interviews[0].URL)

	assert.Equal(t, []string{"Technical Skills"}, job.CompetencyNames())
	assert.Equal(t, 1, FindJob(sampleJobs(), "job-2"))
}
