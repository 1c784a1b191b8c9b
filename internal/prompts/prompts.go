package prompts

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"sales-nlu/internal/llm"
)

//go:embed prompts.yaml
var defaultPrompts []byte

// Required lists the prompt keys every prompt file must define.
var Required = []string{
	"extract_initial_profile",
	"recommend_plan",
	"generate_sales_pitch",
	"classify_intent",
	"extract_scheduling_data",
}

type entry struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

type prompt struct {
	system string
	user   *template.Template
}

// Set holds the parsed prompt templates. It is read-only after Parse.
type Set struct {
	prompts map[string]prompt
}

// Default returns the embedded prompt set.
func Default() (*Set, error) {
	return Parse(defaultPrompts)
}

// Load reads a prompt file, falling back to the embedded set when path is empty.
func Load(path string) (*Set, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML prompt definitions and compiles the user templates.
func Parse(data []byte) (*Set, error) {
	var raw map[string]entry
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode prompts: %w", err)
	}
	set := &Set{prompts: make(map[string]prompt, len(raw))}
	for _, name := range Required {
		e, ok := raw[name]
		if !ok {
			return nil, fmt.Errorf("prompt %q missing", name)
		}
		if strings.TrimSpace(e.System) == "" || strings.TrimSpace(e.User) == "" {
			return nil, fmt.Errorf("prompt %q needs both system and user text", name)
		}
		tmpl, err := template.New(name).Option("missingkey=error").Parse(e.User)
		if err != nil {
			return nil, fmt.Errorf("parse prompt %q: %w", name, err)
		}
		set.prompts[name] = prompt{system: strings.TrimSpace(e.System), user: tmpl}
	}
	return set, nil
}

// Render builds the system/user message pair for name.
func (s *Set) Render(name string, data any) ([]llm.ChatMessage, error) {
	p, ok := s.prompts[name]
	if !ok {
		return nil, fmt.Errorf("unknown prompt %q", name)
	}
	var user strings.Builder
	if err := p.user.Execute(&user, data); err != nil {
		return nil, fmt.Errorf("render prompt %q: %w", name, err)
	}
	return []llm.ChatMessage{llm.System(p.system), llm.User(user.String())}, nil
}
