package generator

import (
	_ "embed"
	"strings"
	"text/template"
)

var (
	//go:embed prompts/competencies.tmpl
	competenciesPromptRaw string
	//go:embed prompts/description.tmpl
	descriptionPromptRaw string
	//go:embed prompts/questions.tmpl
	questionsPromptRaw string
)

var funcs = template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}

// Parsed once at package init.
var (
	competenciesTemplate = template.Must(template.New("competencies").Funcs(funcs).Parse(competenciesPromptRaw))
	descriptionTemplate  = template.Must(template.New("description").Funcs(funcs).Parse(descriptionPromptRaw))
	questionsTemplate    = template.Must(template.New("questions").Funcs(funcs).Parse(questionsPromptRaw))
)

const systemPrompt = "You are an assistant for hiring teams. Follow the requested output format exactly."

func render(t *template.Template, data any) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(b.String()), nil
}
