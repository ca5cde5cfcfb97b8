package generator

import (
	"fmt"
	"strings"

	"github.com/gartstein/hiring/internal/hiring/models"
	"github.com/google/uuid"
)

var defaultCompetencies = []struct{ name, description string }{
	{"Technical Skills", "Applies the tools, methods and domain knowledge the role requires."},
	{"Communication", "Explains ideas clearly and adapts the message to the audience."},
	{"Problem Solving", "Breaks down ambiguous problems and reaches sound, practical solutions."},
	{"Teamwork", "Collaborates openly, shares context and supports colleagues."},
	{"Adaptability", "Adjusts quickly to changing priorities, feedback and new information."},
	{"Ownership", "Takes responsibility for outcomes and follows through without being asked."},
}

const closingPrompt = "Is there anything else you would like to share about your experience or qualifications that we have not covered?"

// DefaultCompetencies returns the generic competency set with fresh IDs.
func DefaultCompetencies() []models.Competency {
	comps := make([]models.Competency, len(defaultCompetencies))
	for i, d := range defaultCompetencies {
		comps[i] = models.Competency{
			ID:          uuid.NewString(),
			Name:        d.name,
			Description: d.description,
			Weight:      1,
		}
	}
	return comps
}

// DefaultDescription returns a posting skeleton already in the highlighted
// header convention.
func DefaultDescription(jobTitle string, company *models.Company) string {
	companyName := "our company"
	if company != nil && company.Name != "" {
		companyName = company.Name
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**About the Role**\n")
	fmt.Fprintf(&b, "%s is looking for a %s to join the team and help deliver on our goals.\n\n", companyName, jobTitle)
	b.WriteString("**Responsibilities**\n")
	b.WriteString("- Deliver high quality work in your area of expertise\n")
	b.WriteString("- Collaborate with colleagues across teams\n")
	b.WriteString("- Continuously improve processes and share knowledge\n\n")
	b.WriteString("**Requirements**\n")
	fmt.Fprintf(&b, "- Proven experience relevant to the %s role\n", jobTitle)
	b.WriteString("- Strong communication and problem solving skills\n")
	b.WriteString("- Ability to work independently and as part of a team\n\n")
	b.WriteString("**What We Offer**\n")
	b.WriteString("- A supportive team and room to grow\n")
	b.WriteString("- Meaningful work with real impact")
	return b.String()
}

// DefaultQuestions builds questions without a model. In coverage mode the
// competencies are grouped round-robin into CoverageTarget buckets and the
// closing question is appended.
func DefaultQuestions(comps []models.Competency, onePerCompetency bool) []models.Question {
	if onePerCompetency {
		questions := make([]models.Question, len(comps))
		for i, c := range comps {
			questions[i] = models.Question{
				ID:           uuid.NewString(),
				Question:     fmt.Sprintf("Tell us about a time you demonstrated %s. What was the situation, what did you do, and what was the result?", c.Name),
				TimeLimit:    defaultTimeLimits["behavioral"],
				CompetencyID: c.ID,
				Covers:       []string{c.ID},
			}
		}
		return questions
	}

	target := CoverageTarget(len(comps))
	buckets := make([][]models.Competency, target)
	for i, c := range comps {
		buckets[i%target] = append(buckets[i%target], c)
	}

	questions := make([]models.Question, 0, target+1)
	for _, bucket := range buckets {
		names := make([]string, len(bucket))
		ids := make([]string, len(bucket))
		for i, c := range bucket {
			names[i], ids[i] = c.Name, c.ID
		}
		questions = append(questions, models.Question{
			ID:           uuid.NewString(),
			Question:     fmt.Sprintf("Describe a situation where your %s made a difference. What did you do and what was the outcome?", joinNames(names)),
			TimeLimit:    defaultTimeLimits["behavioral"],
			CompetencyID: ids[0],
			Covers:       ids,
		})
	}
	return append(questions, closingQuestion())
}

func closingQuestion() models.Question {
	return models.Question{
		ID:         uuid.NewString(),
		Question:   closingPrompt,
		TimeLimit:  minTimeLimit,
		IsOptional: true,
	}
}

func joinNames(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	default:
		return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
	}
}
