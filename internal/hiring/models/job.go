// Package models defines the core domain models for hiring: companies, jobs,
// their competencies and interview questions, and the candidates recorded
// against them. JSON field names match the persisted collection layout.
package models

import (
	"time"
)

// Company owns zero or more jobs. Jobs reference it by ID only.
type Company struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Website     string `json:"website,omitempty"`
	Description string `json:"description,omitempty"`
}

// Competency is a named evaluation dimension scored 1..5.
type Competency struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	// Weight is a display/aggregation multiplier. Defaults to 1.
	Weight float64 `json:"weight"`
}

// Question is one interview question shown to a candidate.
type Question struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	// TimeLimit is the answer time in seconds.
	TimeLimit    int    `json:"timeLimit"`
	CompetencyID string `json:"competencyId,omitempty"`
	// Covers lists every competency ID a merged question addresses.
	Covers     []string `json:"covers,omitempty"`
	IsOptional bool     `json:"isOptional,omitempty"`
}

// Interview is one recorded answer. The bytes behind URL are owned by the
// media backend that stored them.
type Interview struct {
	JobID         string `json:"jobId"`
	CandidateID   string `json:"candidateId"`
	QuestionIndex int    `json:"questionIndex"`
	URL           string `json:"url"`
	IsLocal       bool   `json:"isLocal"`
	IsFallback    bool   `json:"isFallback,omitempty"`
}

// Candidate is a person being evaluated for a job.
type Candidate struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	DateAdded time.Time `json:"dateAdded"`
	// Scores are entered by the hiring team, keyed by competency name.
	Scores map[string]int `json:"scores"`
	// AIScores and Explanations are produced by transcript analysis.
	AIScores     map[string]int    `json:"aiScores"`
	Explanations map[string]string `json:"explanations"`
	Transcript   string            `json:"transcript,omitempty"`
	Interviews   []Interview       `json:"interviews"`
}

// Job is a hiring requisition bundling competencies, questions and candidates.
type Job struct {
	ID                 string       `json:"id"`
	CompanyID          string       `json:"companyId"`
	Title              string       `json:"title"`
	Description        string       `json:"description"`
	Department         string       `json:"department,omitempty"`
	Competencies       []Competency `json:"competencies"`
	InterviewQuestions []Question   `json:"interviewQuestions"`
	Candidates         []Candidate  `json:"candidates"`
	IsDraft            bool         `json:"isDraft"`
}

// CompetencyNames returns the job's competency names in order.
func (j *Job) CompetencyNames() []string {
	names := make([]string, 0, len(j.Competencies))
	for _, c := range j.Competencies {
		names = append(names, c.Name)
	}
	return names
}

// FindCandidate returns the index of the candidate with the given ID, or -1.
func (j *Job) FindCandidate(id string) int {
	for i := range j.Candidates {
		if j.Candidates[i].ID == id {
			return i
		}
	}
	return -1
}

// UpsertCandidate replaces the candidate with the same ID or appends it.
func (j *Job) UpsertCandidate(c Candidate) {
	if i := j.FindCandidate(c.ID); i >= 0 {
		j.Candidates[i] = c
		return
	}
	j.Candidates = append(j.Candidates, c)
}

// RecordInterview stores an answer on the candidate, replacing any earlier
// answer to the same question.
func (c *Candidate) RecordInterview(answer Interview) {
	for i := range c.Interviews {
		if c.Interviews[i].QuestionIndex == answer.QuestionIndex {
			c.Interviews[i] = answer
			return
		}
	}
	c.Interviews = append(c.Interviews, answer)
}
