// Package scoring rates an interview transcript against a job's competencies
// on a 1..5 scale using a language model.
package scoring

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"text/template"
	"unicode/utf8"

	e "github.com/gartstein/hiring/internal/hiring/errors"
	"github.com/gartstein/hiring/internal/hiring/llm"
	"go.uber.org/zap"
)

const (
	DefaultMaxTranscriptChars = 100000

	MinScore = 1
	MaxScore = 5

	NoEvidence = "No evidence found in the transcript"

	maxTokens   = 2000
	temperature = 0.1
)

//go:embed prompts/analyze.tmpl
var analyzePromptRaw string

var analyzeTemplate = template.Must(template.New("analyze").Parse(analyzePromptRaw))

const systemPrompt = "You assess interview transcripts for hiring teams. You answer with JSON only."

// Analysis holds one score and one explanation per requested competency,
// keyed by the competency name as requested.
type Analysis struct {
	Scores       map[string]int    `json:"scores"`
	Explanations map[string]string `json:"explanations"`
}

type Engine struct {
	completer llm.Completer
	maxChars  int
	logger    *zap.Logger
}

// NewEngine builds an engine. maxChars <= 0 selects DefaultMaxTranscriptChars.
func NewEngine(completer llm.Completer, maxChars int, logger *zap.Logger) *Engine {
	if maxChars <= 0 {
		maxChars = DefaultMaxTranscriptChars
	}
	return &Engine{
		completer: completer,
		maxChars:  maxChars,
		logger:    logger.Named("scoring"),
	}
}

// Analyze scores transcript for every competency. Transcripts over the
// configured ceiling are rejected with ErrInputTooLong and never truncated.
func (en *Engine) Analyze(ctx context.Context, transcript string, competencies []string) (Analysis, error) {
	if strings.TrimSpace(transcript) == "" {
		return Analysis{}, fmt.Errorf("%w: transcript is required", e.ErrInvalidInput)
	}
	names := cleanNames(competencies)
	if len(names) == 0 {
		return Analysis{}, fmt.Errorf("%w: at least one competency is required", e.ErrInvalidInput)
	}
	if n := utf8.RuneCountInString(transcript); n > en.maxChars {
		return Analysis{}, fmt.Errorf("%w: transcript has %d characters, limit is %d", e.ErrInputTooLong, n, en.maxChars)
	}

	var prompt strings.Builder
	if err := analyzeTemplate.Execute(&prompt, struct {
		Competencies []string
		Transcript   string
	}{names, transcript}); err != nil {
		return Analysis{}, fmt.Errorf("failed to render prompt: %w", err)
	}

	text, err := en.completer.Complete(ctx, llm.CompletionRequest{
		System:      systemPrompt,
		Prompt:      prompt.String(),
		MaxTokens:   maxTokens,
		Temperature: temperature,
		JSON:        true,
	})
	if err != nil {
		en.logger.Error("Transcript analysis failed", zap.Int("competencies", len(names)), zap.Error(err))
		return Analysis{}, err
	}

	parsed, err := parse(text)
	if err != nil {
		en.logger.Error("Unparsable analysis response",
			zap.Int("response_length", len(text)),
			zap.Error(err),
		)
		return Analysis{}, err
	}
	analysis, err := normalize(parsed, names)
	if err != nil {
		en.logger.Error("Analysis response scores none of the competencies",
			zap.Strings("competencies", names),
			zap.Int("scored_keys", len(parsed.Scores)),
		)
		return Analysis{}, err
	}
	return analysis, nil
}

type rawAnalysis struct {
	Scores       map[string]any    `json:"scores"`
	Explanations map[string]string `json:"explanations"`
}

// parse reads the model response, falling back to the largest embedded
// object when the response is not bare JSON.
func parse(text string) (rawAnalysis, error) {
	candidates := []string{llm.StripCodeFence(text)}
	if obj := llm.ExtractObject(text); obj != "" && obj != candidates[0] {
		candidates = append(candidates, obj)
	}

	var lastErr error
	for _, c := range candidates {
		var raw rawAnalysis
		if err := json.Unmarshal([]byte(c), &raw); err != nil {
			lastErr = err
			continue
		}
		if raw.Scores == nil {
			lastErr = fmt.Errorf("missing scores")
			continue
		}
		return raw, nil
	}
	return rawAnalysis{}, fmt.Errorf("%w: %v", e.ErrUnparsable, lastErr)
}

// normalize keys the result by the requested names, matching the model's
// keys case-insensitively. Unrequested keys are dropped; requested names
// the model skipped score MinScore. A response scoring none of the requested
// names is ErrUnparsable.
func normalize(raw rawAnalysis, names []string) (Analysis, error) {
	scores := make(map[string]any, len(raw.Scores))
	for k, v := range raw.Scores {
		scores[foldKey(k)] = v
	}
	explanations := make(map[string]string, len(raw.Explanations))
	for k, v := range raw.Explanations {
		explanations[foldKey(k)] = v
	}

	out := Analysis{
		Scores:       make(map[string]int, len(names)),
		Explanations: make(map[string]string, len(names)),
	}
	matched := 0
	for _, name := range names {
		key := foldKey(name)
		score, ok := toScore(scores[key])
		if !ok {
			out.Scores[name] = MinScore
			out.Explanations[name] = NoEvidence
			continue
		}
		matched++
		out.Scores[name] = score
		if exp := strings.TrimSpace(explanations[key]); exp != "" {
			out.Explanations[name] = exp
		} else if score == MinScore {
			out.Explanations[name] = NoEvidence
		} else {
			out.Explanations[name] = "No explanation provided"
		}
	}
	if matched == 0 {
		return Analysis{}, fmt.Errorf("%w: no score for any of %d competencies", e.ErrUnparsable, len(names))
	}
	return out, nil
}

func toScore(v any) (int, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) {
		return 0, false
	}
	return ClampScore(int(math.Round(f))), true
}

// ClampScore forces a score into MinScore..MaxScore.
func ClampScore(s int) int {
	return min(max(s, MinScore), MaxScore)
}

func foldKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func cleanNames(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, dup := seen[foldKey(n)]; dup {
			continue
		}
		seen[foldKey(n)] = struct{}{}
		out = append(out, n)
	}
	return out
}
