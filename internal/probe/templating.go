package probe

import (
	"bytes"
	"math/rand"
	"strings"
	"text/template"

	"github.com/google/uuid"
)

// TemplateEngine renders request paths.
type TemplateEngine struct {
	funcMap template.FuncMap
}

// TemplateData is passed to the execution context
type TemplateData struct {
	Size      int64
	Index     int
	RequestID string
}

func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{}

	e.funcMap = template.FuncMap{
		"kb":           kb,
		"randomInt":    e.randomInt,
		"randomChoice": e.randomChoice,
		"uuid":         e.randomUUID,
	}

	return e
}

// Preprocess converts simple variables {{size}} to Go template syntax {{.Size}}
func (e *TemplateEngine) Preprocess(input string) string {
	s := input
	s = strings.ReplaceAll(s, "{{size}}", "{{.Size}}")
	s = strings.ReplaceAll(s, "{{index}}", "{{.Index}}")
	s = strings.ReplaceAll(s, "{{requestID}}", "{{.RequestID}}")
	return s
}

func (e *TemplateEngine) Parse(name, text string) (*template.Template, error) {
	return template.New(name).Funcs(e.funcMap).Option("missingkey=error").Parse(e.Preprocess(text))
}

func (e *TemplateEngine) Execute(t *template.Template, data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// --- Functions ---

func kb(n int64) int64 {
	return n / 1024
}

func (e *TemplateEngine) randomInt(min, max int) int {
	if max <= min {
		return min
	}
	return rand.Intn(max-min) + min
}

func (e *TemplateEngine) randomUUID() string {
	return uuid.New().String()
}

func (e *TemplateEngine) randomChoice(choices ...string) string {
	if len(choices) == 0 {
		return ""
	}
	return choices[rand.Intn(len(choices))]
}
