// Package framework loads the review framework: per-phase system prompt
// templates, research operation templates and category guidance.
package framework

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/revcraft/revcraft/prompts"
)

// ErrTemplateNotFound is returned when no template exists for a phase or
// research operation.
var ErrTemplateNotFound = errors.New("template not found")

// Framework is a parsed review framework.
type Framework struct {
	Name       string                   `yaml:"name"`
	Version    int                      `yaml:"version"`
	Phases     map[string]PhaseTemplate `yaml:"phases"`
	Research   map[string]string        `yaml:"research"`
	Categories map[string]Category      `yaml:"categories"`

	phaseTmpls    map[string]*template.Template
	researchTmpls map[string]*template.Template
}

// PhaseTemplate is the system prompt source for one phase.
type PhaseTemplate struct {
	Title  string `yaml:"title"`
	System string `yaml:"system"`
}

// Category carries guidance injected into prompts for products of that category.
type Category struct {
	Guidance string `yaml:"guidance"`
}

// Context is the data available to phase templates.
type Context struct {
	ProductName      string
	Category         string
	CategoryGuidance string
	Keywords         []string
	Iteration        int
}

// ResearchContext is the data available to research templates.
type ResearchContext struct {
	ProductName  string
	Category     string
	Keywords     []string
	Description  string
	Topic        string
	GapAnalysis  string
	MaxQuestions int
}

var funcs = template.FuncMap{
	"join": strings.Join,
}

// Default returns the embedded framework.
func Default() (*Framework, error) {
	return Parse(prompts.FrameworkYAML)
}

// Load reads a framework file. An empty path selects the embedded default.
func Load(path string) (*Framework, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading framework %s: %w", path, err)
	}
	fw, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("loading framework %s: %w", path, err)
	}
	return fw, nil
}

// Parse decodes framework YAML and compiles every template.
func Parse(data []byte) (*Framework, error) {
	var fw Framework
	if err := yaml.Unmarshal(data, &fw); err != nil {
		return nil, fmt.Errorf("parsing framework yaml: %w", err)
	}

	fw.phaseTmpls = make(map[string]*template.Template, len(fw.Phases))
	for name, p := range fw.Phases {
		tmpl, err := template.New("phase_" + name).Funcs(funcs).Option("missingkey=zero").Parse(p.System)
		if err != nil {
			return nil, fmt.Errorf("parsing %s phase template: %w", name, err)
		}
		fw.phaseTmpls[name] = tmpl
	}

	fw.researchTmpls = make(map[string]*template.Template, len(fw.Research))
	for name, src := range fw.Research {
		tmpl, err := template.New("research_" + name).Funcs(funcs).Option("missingkey=zero").Parse(src)
		if err != nil {
			return nil, fmt.Errorf("parsing %s research template: %w", name, err)
		}
		fw.researchTmpls[name] = tmpl
	}

	return &fw, nil
}

// Render executes the system prompt template for phase. CategoryGuidance is
// filled from the framework when the caller leaves it empty.
func (f *Framework) Render(phase string, ctx Context) (string, error) {
	tmpl, ok := f.phaseTmpls[phase]
	if !ok {
		return "", fmt.Errorf("%w: phase %q", ErrTemplateNotFound, phase)
	}
	if ctx.CategoryGuidance == "" {
		ctx.CategoryGuidance = f.Guidance(ctx.Category)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("rendering %s phase template: %w", phase, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// RenderResearch executes the research template for an operation.
func (f *Framework) RenderResearch(name string, ctx ResearchContext) (string, error) {
	tmpl, ok := f.researchTmpls[name]
	if !ok {
		return "", fmt.Errorf("%w: research %q", ErrTemplateNotFound, name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("rendering %s research template: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// HasResearch reports whether a research template exists for name.
func (f *Framework) HasResearch(name string) bool {
	_, ok := f.researchTmpls[name]
	return ok
}

// Guidance returns the category guidance, or "" for unknown categories.
func (f *Framework) Guidance(category string) string {
	return f.Categories[strings.ToLower(category)].Guidance
}
