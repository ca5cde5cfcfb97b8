// Package generator drafts hiring content with a language model:
// competencies, job descriptions and interview questions. When the model's
// output cannot be used, a fixed default of the same shape is returned and
// flagged as a fallback.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	e "github.com/gartstein/hiring/internal/hiring/errors"
	"github.com/gartstein/hiring/internal/hiring/llm"
	"github.com/gartstein/hiring/internal/hiring/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	maxCompetencies = 7
	minCompetencies = 5

	competenciesMaxTokens = 1000
	descriptionMaxTokens  = 1500
	questionsMaxTokens    = 2000
	creativeTemperature   = 0.7
)

// Result carries generated content and whether the default was used instead
// of the model's output.
type Result[T any] struct {
	Value    T
	Fallback bool
	// Reason explains why the fallback was used.
	Reason string
}

func generated[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

func fallback[T any](v T, reason error) Result[T] {
	return Result[T]{Value: v, Fallback: true, Reason: reason.Error()}
}

type CompetencyRequest struct {
	JobTitle       string
	JobDescription string
	Company        *models.Company
}

type DescriptionRequest struct {
	JobTitle   string
	Company    *models.Company
	UserPrompt string
}

type QuestionRequest struct {
	JobTitle         string
	JobDescription   string
	Competencies     []models.Competency
	Company          *models.Company
	OnePerCompetency bool
}

type Generator struct {
	completer llm.Completer
	logger    *zap.Logger
}

func New(completer llm.Completer, logger *zap.Logger) *Generator {
	return &Generator{
		completer: completer,
		logger:    logger.Named("generator"),
	}
}

func (g *Generator) GenerateCompetencies(ctx context.Context, req CompetencyRequest) (Result[[]models.Competency], error) {
	if strings.TrimSpace(req.JobTitle) == "" {
		return Result[[]models.Competency]{}, fmt.Errorf("%w: jobTitle is required", e.ErrInvalidInput)
	}

	prompt, err := render(competenciesTemplate, req)
	if err != nil {
		return Result[[]models.Competency]{}, fmt.Errorf("failed to render prompt: %w", err)
	}
	text, err := g.complete(ctx, "competencies", llm.CompletionRequest{
		System:      systemPrompt,
		Prompt:      prompt,
		MaxTokens:   competenciesMaxTokens,
		Temperature: creativeTemperature,
		JSON:        true,
	})
	if err != nil {
		if surfaced(err) {
			return Result[[]models.Competency]{}, err
		}
		return g.competencyFallback(err), nil
	}

	comps, err := parseCompetencies(text)
	if err != nil {
		return g.competencyFallback(err), nil
	}
	if len(comps) < minCompetencies {
		g.logger.Info("Padding short competency list with defaults", zap.Int("generated", len(comps)))
		comps = padCompetencies(comps, minCompetencies)
	}
	return generated(comps), nil
}

func (g *Generator) competencyFallback(reason error) Result[[]models.Competency] {
	g.logger.Warn("Using default competencies", zap.Error(reason))
	return fallback(DefaultCompetencies(), reason)
}

func (g *Generator) GenerateJobDescription(ctx context.Context, req DescriptionRequest) (Result[string], error) {
	switch {
	case strings.TrimSpace(req.JobTitle) == "":
		return Result[string]{}, fmt.Errorf("%w: jobTitle is required", e.ErrInvalidInput)
	case strings.TrimSpace(req.UserPrompt) == "":
		return Result[string]{}, fmt.Errorf("%w: userPrompt is required", e.ErrInvalidInput)
	}

	prompt, err := render(descriptionTemplate, req)
	if err != nil {
		return Result[string]{}, fmt.Errorf("failed to render prompt: %w", err)
	}
	text, err := g.complete(ctx, "description", llm.CompletionRequest{
		System:      systemPrompt,
		Prompt:      prompt,
		MaxTokens:   descriptionMaxTokens,
		Temperature: creativeTemperature,
	})
	if err != nil {
		if surfaced(err) {
			return Result[string]{}, err
		}
		return g.descriptionFallback(req, err), nil
	}

	formatted := FormatDescription(llm.StripCodeFence(text))
	if formatted == "" {
		return g.descriptionFallback(req, fmt.Errorf("%w: empty description", e.ErrUnparsable)), nil
	}
	return generated(formatted), nil
}

func (g *Generator) descriptionFallback(req DescriptionRequest, reason error) Result[string] {
	g.logger.Warn("Using default job description", zap.String("job_title", req.JobTitle), zap.Error(reason))
	return fallback(DefaultDescription(req.JobTitle, req.Company), reason)
}

func (g *Generator) GenerateQuestions(ctx context.Context, req QuestionRequest) (Result[[]models.Question], error) {
	if strings.TrimSpace(req.JobTitle) == "" {
		return Result[[]models.Question]{}, fmt.Errorf("%w: jobTitle is required", e.ErrInvalidInput)
	}
	if len(req.Competencies) == 0 {
		return Result[[]models.Question]{}, fmt.Errorf("%w: at least one competency is required", e.ErrInvalidInput)
	}
	for i, c := range req.Competencies {
		if strings.TrimSpace(c.Name) == "" {
			return Result[[]models.Question]{}, fmt.Errorf("%w: competency %d has no name", e.ErrInvalidInput, i)
		}
	}
	comps := WithIDs(req.Competencies)
	req.Competencies = comps

	prompt, err := render(questionsTemplate, struct {
		QuestionRequest
		Target int
	}{req, CoverageTarget(len(comps))})
	if err != nil {
		return Result[[]models.Question]{}, fmt.Errorf("failed to render prompt: %w", err)
	}
	text, err := g.complete(ctx, "questions", llm.CompletionRequest{
		System:      systemPrompt,
		Prompt:      prompt,
		MaxTokens:   questionsMaxTokens,
		Temperature: creativeTemperature,
		JSON:        true,
	})
	if err != nil {
		if surfaced(err) {
			return Result[[]models.Question]{}, err
		}
		return g.questionFallback(req, err), nil
	}

	raw, err := parseQuestions(text)
	if err != nil {
		return g.questionFallback(req, err), nil
	}

	var questions []models.Question
	if req.OnePerCompetency {
		questions, err = onePerCompetency(raw, comps)
	} else {
		questions, err = coverage(raw, comps)
	}
	if err != nil {
		return g.questionFallback(req, err), nil
	}
	if !req.OnePerCompetency {
		questions = append(questions, closingQuestion())
	}
	return generated(questions), nil
}

func (g *Generator) questionFallback(req QuestionRequest, reason error) Result[[]models.Question] {
	g.logger.Warn("Using default interview questions",
		zap.Int("competencies", len(req.Competencies)),
		zap.Bool("one_per_competency", req.OnePerCompetency),
		zap.Error(reason),
	)
	return fallback(DefaultQuestions(req.Competencies, req.OnePerCompetency), reason)
}

func (g *Generator) complete(ctx context.Context, op string, req llm.CompletionRequest) (string, error) {
	text, err := g.completer.Complete(ctx, req)
	if err != nil {
		g.logger.Error("Generation request failed", zap.String("op", op), zap.Error(err))
		return "", err
	}
	return text, nil
}

// WithIDs returns a copy of comps where competencies without an ID get a
// fresh one. Question competencyId and covers values refer to these IDs.
func WithIDs(comps []models.Competency) []models.Competency {
	out := make([]models.Competency, len(comps))
	for i, c := range comps {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		out[i] = c
	}
	return out
}

// surfaced reports errors the caller must act on; anything else is replaced
// by default content.
func surfaced(err error) bool {
	return errors.Is(err, e.ErrRateLimited) ||
		errors.Is(err, e.ErrInputTooLong) ||
		errors.Is(err, e.ErrMisconfigured) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
