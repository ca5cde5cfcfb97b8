package generator

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	e "github.com/gartstein/hiring/internal/hiring/errors"
	"github.com/gartstein/hiring/internal/hiring/llm"
	"github.com/gartstein/hiring/internal/hiring/models"
	"github.com/google/uuid"
)

const (
	minTimeLimit = 120
	maxTimeLimit = 300
)

// defaultTimeLimits are seconds per question type.
var defaultTimeLimits = map[string]int{
	"technical":   240,
	"behavioral":  180,
	"situational": 180,
}

type rawCompetency struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type rawQuestion struct {
	Question     string   `json:"question"`
	Type         string   `json:"type"`
	TimeLimit    float64  `json:"timeLimit"`
	Competencies []string `json:"competencies"`
}

// decodeList reads either a bare JSON array or an object holding the array
// under key.
func decodeList[T any](text, key string) ([]T, error) {
	text = llm.StripCodeFence(text)

	var list []T
	if err := json.Unmarshal([]byte(text), &list); err == nil {
		return list, nil
	}

	obj := text
	if !strings.HasPrefix(obj, "{") {
		obj = llm.ExtractObject(text)
	}
	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal([]byte(obj), &wrapped); err != nil {
		return nil, fmt.Errorf("%w: %v", e.ErrUnparsable, err)
	}
	raw, ok := wrapped[key]
	if !ok {
		return nil, fmt.Errorf("%w: missing %q", e.ErrUnparsable, key)
	}
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", e.ErrUnparsable, key, err)
	}
	return list, nil
}

func parseCompetencies(text string) ([]models.Competency, error) {
	raw, err := decodeList[rawCompetency](text, "competencies")
	if err != nil {
		return nil, err
	}

	comps := make([]models.Competency, 0, maxCompetencies)
	seen := make(map[string]struct{})
	for _, r := range raw {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			continue
		}
		if _, dup := seen[strings.ToLower(name)]; dup {
			continue
		}
		seen[strings.ToLower(name)] = struct{}{}
		comps = append(comps, models.Competency{
			ID:          uuid.NewString(),
			Name:        name,
			Description: strings.TrimSpace(r.Description),
			Weight:      1,
		})
		if len(comps) == maxCompetencies {
			break
		}
	}
	if len(comps) == 0 {
		return nil, fmt.Errorf("%w: no competencies in response", e.ErrUnparsable)
	}
	return comps, nil
}

// padCompetencies appends defaults not already present until n are reached.
func padCompetencies(comps []models.Competency, n int) []models.Competency {
	have := make(map[string]struct{}, len(comps))
	for _, c := range comps {
		have[strings.ToLower(c.Name)] = struct{}{}
	}
	for _, d := range DefaultCompetencies() {
		if len(comps) >= n {
			break
		}
		if _, ok := have[strings.ToLower(d.Name)]; ok {
			continue
		}
		comps = append(comps, d)
	}
	return comps
}

func parseQuestions(text string) ([]rawQuestion, error) {
	raw, err := decodeList[rawQuestion](text, "questions")
	if err != nil {
		return nil, err
	}
	out := raw[:0]
	for _, q := range raw {
		q.Question = strings.TrimSpace(q.Question)
		if q.Question != "" {
			out = append(out, q)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no questions in response", e.ErrUnparsable)
	}
	return out, nil
}

// TimeLimit returns the answer time for a question type, honouring the
// model's suggestion when given, clamped to the allowed range.
func TimeLimit(questionType string, suggested float64) int {
	limit := int(math.Round(suggested))
	if limit <= 0 {
		var ok bool
		if limit, ok = defaultTimeLimits[strings.ToLower(strings.TrimSpace(questionType))]; !ok {
			limit = minTimeLimit
		}
	}
	return min(max(limit, minTimeLimit), maxTimeLimit)
}

// CoverageTarget is the number of questions asked in coverage mode for n
// competencies. Fewer than three competencies get one question each.
func CoverageTarget(n int) int {
	if n < 3 {
		return n
	}
	return min(n, 7)
}

func onePerCompetency(raw []rawQuestion, comps []models.Competency) ([]models.Question, error) {
	if len(raw) < len(comps) {
		return nil, fmt.Errorf("%w: got %d questions for %d competencies", e.ErrUnparsable, len(raw), len(comps))
	}
	questions := make([]models.Question, len(comps))
	for i, c := range comps {
		questions[i] = models.Question{
			ID:           uuid.NewString(),
			Question:     raw[i].Question,
			TimeLimit:    TimeLimit(raw[i].Type, raw[i].TimeLimit),
			CompetencyID: c.ID,
			Covers:       []string{c.ID},
		}
	}
	return questions, nil
}

// coverage maps model questions onto competency IDs and repairs coverage:
// a competency no question names is attached to the question covering the
// fewest competencies.
func coverage(raw []rawQuestion, comps []models.Competency) ([]models.Question, error) {
	target := CoverageTarget(len(comps))
	if len(raw) < target {
		return nil, fmt.Errorf("%w: got %d questions, want %d", e.ErrUnparsable, len(raw), target)
	}
	raw = raw[:target]

	byName := make(map[string]string, len(comps))
	for _, c := range comps {
		byName[normalizeName(c.Name)] = c.ID
	}

	questions := make([]models.Question, len(raw))
	covered := make(map[string]bool, len(comps))
	for i, r := range raw {
		q := models.Question{
			ID:        uuid.NewString(),
			Question:  r.Question,
			TimeLimit: TimeLimit(r.Type, r.TimeLimit),
			Covers:    []string{},
		}
		for _, name := range r.Competencies {
			id, ok := byName[normalizeName(name)]
			if !ok || contains(q.Covers, id) {
				continue
			}
			q.Covers = append(q.Covers, id)
			covered[id] = true
		}
		questions[i] = q
	}

	for _, c := range comps {
		if covered[c.ID] {
			continue
		}
		least := 0
		for i := range questions {
			if len(questions[i].Covers) < len(questions[least].Covers) {
				least = i
			}
		}
		questions[least].Covers = append(questions[least].Covers, c.ID)
		covered[c.ID] = true
	}

	for i := range questions {
		if len(questions[i].Covers) > 0 {
			questions[i].CompetencyID = questions[i].Covers[0]
		}
	}
	return questions, nil
}

func normalizeName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
