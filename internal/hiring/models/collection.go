package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Collection is the full ordered set of jobs together with the version token
// of the stored content it was read from.
type Collection struct {
	Jobs    []Job
	Version string
	// Degraded marks a collection served while the primary store was
	// unreachable: a fallback copy or an empty placeholder.
	Degraded bool
}

// EmptyVersion is the version of a store that holds no jobs.
var EmptyVersion = MustVersion(nil)

// Encode renders jobs in the persisted layout: a single JSON array.
// A nil slice is written as an empty array.
func Encode(jobs []Job) ([]byte, error) {
	if jobs == nil {
		jobs = []Job{}
	}
	return json.Marshal(jobs)
}

// Decode parses the persisted layout. Empty input is an empty collection.
func Decode(data []byte) ([]Job, error) {
	if len(data) == 0 {
		return []Job{}, nil
	}
	var jobs []Job
	if err := json.Unmarshal(data, &jobs); err != nil {
		return nil, err
	}
	if jobs == nil {
		jobs = []Job{}
	}
	return jobs, nil
}

// VersionOf returns the content hash of already encoded collection bytes.
func VersionOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Version returns the content hash of jobs in their persisted encoding.
func Version(jobs []Job) (string, error) {
	data, err := Encode(jobs)
	if err != nil {
		return "", err
	}
	return VersionOf(data), nil
}

// MustVersion is Version for values known to encode.
func MustVersion(jobs []Job) string {
	v, err := Version(jobs)
	if err != nil {
		panic(err)
	}
	return v
}

// Ranges enforced on questions and candidate scores.
const (
	MinTimeLimit = 30
	MaxTimeLimit = 600

	MinScore = 1
	MaxScore = 5
)

// ValidateJobs checks the collection invariants: every job has an ID, no two
// jobs share one, question time limits and candidate scores are in range.
func ValidateJobs(jobs []Job) error {
	seen := make(map[string]struct{}, len(jobs))
	for i, j := range jobs {
		if j.ID == "" {
			return fmt.Errorf("job at position %d has no id", i)
		}
		if _, dup := seen[j.ID]; dup {
			return fmt.Errorf("duplicate job id %q", j.ID)
		}
		seen[j.ID] = struct{}{}

		for k, q := range j.InterviewQuestions {
			if err := q.Validate(); err != nil {
				return fmt.Errorf("job %q question %d: %w", j.ID, k, err)
			}
		}
		for _, c := range j.Candidates {
			if err := c.Validate(); err != nil {
				return fmt.Errorf("job %q candidate %q: %w", j.ID, c.ID, err)
			}
		}
	}
	return nil
}

// Validate checks the answer time is within MinTimeLimit..MaxTimeLimit seconds.
func (q Question) Validate() error {
	if q.TimeLimit < MinTimeLimit || q.TimeLimit > MaxTimeLimit {
		return fmt.Errorf("timeLimit %d is outside %d..%d seconds", q.TimeLimit, MinTimeLimit, MaxTimeLimit)
	}
	return nil
}

// Validate checks human and analysis scores are within MinScore..MaxScore.
func (c Candidate) Validate() error {
	for name, s := range c.Scores {
		if s < MinScore || s > MaxScore {
			return fmt.Errorf("score %d for %q is outside %d..%d", s, name, MinScore, MaxScore)
		}
	}
	for name, s := range c.AIScores {
		if s < MinScore || s > MaxScore {
			return fmt.Errorf("aiScore %d for %q is outside %d..%d", s, name, MinScore, MaxScore)
		}
	}
	return nil
}

// FindJob returns the index of the job with the given ID, or -1.
func FindJob(jobs []Job, id string) int {
	for i := range jobs {
		if jobs[i].ID == id {
			return i
		}
	}
	return -1
}

// CloneJobs deep-copies jobs so callers can mutate the result freely.
func CloneJobs(jobs []Job) ([]Job, error) {
	data, err := Encode(jobs)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}
