package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultPrompts []byte

// Prompts holds every piece of model-facing text the service sends.
type Prompts struct {
	SystemPrompt     string            `yaml:"system_prompt"`
	Greeting         string            `yaml:"greeting"`
	ContextTemplate  string            `yaml:"context_template"`
	ToolDescription  string            `yaml:"tool_description"`
	DocumentQuestion string            `yaml:"document_question"`
	Summaries        map[string]string `yaml:"summaries"`
}

// LoadPrompts reads prompts from path, filling any missing field from the embedded defaults.
// An empty path returns the defaults.
func LoadPrompts(path string) (*Prompts, error) {
	var p Prompts
	if err := yaml.Unmarshal(defaultPrompts, &p); err != nil {
		return nil, fmt.Errorf("parse default prompts: %w", err)
	}
	if path == "" {
		return &p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts file: %w", err)
	}
	var override Prompts
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("parse prompts file %s: %w", path, err)
	}
	p.merge(&override)
	return &p, nil
}

func (p *Prompts) merge(o *Prompts) {
	if o.SystemPrompt != "" {
		p.SystemPrompt = o.SystemPrompt
	}
	if o.Greeting != "" {
		p.Greeting = o.Greeting
	}
	if o.ContextTemplate != "" {
		p.ContextTemplate = o.ContextTemplate
	}
	if o.ToolDescription != "" {
		p.ToolDescription = o.ToolDescription
	}
	if o.DocumentQuestion != "" {
		p.DocumentQuestion = o.DocumentQuestion
	}
	for k, v := range o.Summaries {
		if p.Summaries == nil {
			p.Summaries = map[string]string{}
		}
		p.Summaries[k] = v
	}
}

// Render substitutes {{key}} placeholders in tmpl.
func Render(tmpl string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
