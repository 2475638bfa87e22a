package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"text/template"
)

// ErrPromptMissing is returned when a prompt template is empty or references
// a placeholder that is not supplied.
var ErrPromptMissing = errors.New("config: prompt missing")

// Placeholders lists the template fields available to every prompt. Templates
// reference them as {{.name}}.
var Placeholders = []string{
	"transcript",
	"meeting_topic",
	"meeting_goals",
	"background",
	"language",
	"user_name",
	"key_stakeholders",
	"notes",
	"duration",
	"speaker_stats",
}

var missingKeyRe = regexp.MustCompile(`no entry for key "([^"]+)"`)

// Action names one of the assistant's prompt-driven actions.
type Action string

const (
	ActionSummarize  Action = "summarize"
	ActionViewpoints Action = "viewpoints"
	ActionNavigate   Action = "navigate"
	ActionMinutes    Action = "minutes"
)

// Actions lists every action in display order.
var Actions = []Action{ActionSummarize, ActionViewpoints, ActionNavigate, ActionMinutes}

// Template returns the prompt template configured for action.
func (p PromptsConfig) Template(action Action) (PromptTemplate, error) {
	switch action {
	case ActionSummarize:
		return p.Summarize, nil
	case ActionViewpoints:
		return p.Viewpoints, nil
	case ActionNavigate:
		return p.Navigate, nil
	case ActionMinutes:
		return p.Minutes, nil
	}
	return PromptTemplate{}, fmt.Errorf("%w: unknown action %q", ErrPromptMissing, action)
}

// Render executes the system and user templates against data. A template
// that references a key absent from data fails with [ErrPromptMissing] naming
// that key.
func (t PromptTemplate) Render(data map[string]string) (system, user string, err error) {
	if strings.TrimSpace(t.User) == "" {
		return "", "", fmt.Errorf("%w: user template is empty", ErrPromptMissing)
	}
	system, err = render("system", t.System, data)
	if err != nil {
		return "", "", err
	}
	user, err = render("user", t.User, data)
	if err != nil {
		return "", "", err
	}
	return system, user, nil
}

func render(name, text string, data map[string]string) (string, error) {
	if text == "" {
		return "", nil
	}
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("config: parse %s prompt: %w", name, err)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		if m := missingKeyRe.FindStringSubmatch(err.Error()); m != nil {
			return "", fmt.Errorf("%w: %s prompt references unknown placeholder %q", ErrPromptMissing, name, m[1])
		}
		return "", fmt.Errorf("config: render %s prompt: %w", name, err)
	}
	return b.String(), nil
}

// placeholderData returns a data map holding every known placeholder.
func placeholderData() map[string]string {
	data := make(map[string]string, len(Placeholders))
	for _, k := range Placeholders {
		data[k] = ""
	}
	return data
}
