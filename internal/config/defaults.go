package config

import "time"

// Default values applied by [ApplyDefaults].
const (
	DefaultWindowClass      = "ZPLiveTranscriptWndClass"
	DefaultFilePrefix       = "zoom"
	DefaultPollInterval     = time.Second
	DefaultIdentity         = "draft"
	DefaultMaxBackfillPages = 500
	DefaultLanguage         = "En"
	DefaultDuration         = "60min"
	DefaultLiveInterval     = 30 * time.Second
)

const defaultSystemPrompt = `You are a meeting assistant helping {{.user_name}} follow a live meeting.
Meeting topic: {{.meeting_topic}}
Goals: {{.meeting_goals}}
Background: {{.background}}
Key stakeholders: {{.key_stakeholders}}
Planned duration: {{.duration}}
Notes: {{.notes}}
Always answer in {{.language}}. Be concise and concrete.`

// DefaultPrompts returns the built-in prompt templates.
func DefaultPrompts() PromptsConfig {
	return PromptsConfig{
		Summarize: PromptTemplate{
			System: defaultSystemPrompt,
			User: `Summarise the meeting so far in a few bullet points. Cover decisions, open questions and action items with owners.

Transcript:
{{.transcript}}`,
		},
		Viewpoints: PromptTemplate{
			System: defaultSystemPrompt,
			User: `List each participant's main viewpoints and where they agree or disagree.

Transcript:
{{.transcript}}`,
		},
		Navigate: PromptTemplate{
			System: defaultSystemPrompt,
			User: `Compare the discussion with the meeting goals. Point out topics that are drifting, goals not yet addressed and what {{.user_name}} could say next to steer the meeting.

Speaking time: {{.speaker_stats}}

Transcript:
{{.transcript}}`,
		},
		Minutes: PromptTemplate{
			System: defaultSystemPrompt,
			User: `Write meeting minutes in Markdown with the sections Attendees, Agenda, Discussion, Decisions and Action Items.

Transcript:
{{.transcript}}`,
		},
	}
}

// ApplyDefaults fills unset fields of cfg with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}

	c := &cfg.Capture
	if c.WindowClass == "" {
		c.WindowClass = DefaultWindowClass
	}
	if c.FilePrefix == "" {
		c.FilePrefix = DefaultFilePrefix
	}
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.Identity == "" {
		c.Identity = DefaultIdentity
	}
	if c.MaxBackfillPages == 0 {
		c.MaxBackfillPages = DefaultMaxBackfillPages
	}

	m := &cfg.Meeting
	if m.Language == "" {
		m.Language = DefaultLanguage
	}
	if m.Duration == "" {
		m.Duration = DefaultDuration
	}
	if m.LiveInterval == 0 {
		m.LiveInterval = DefaultLiveInterval
	}

	defaults := DefaultPrompts()
	fillPrompt(&cfg.Prompts.Summarize, defaults.Summarize)
	fillPrompt(&cfg.Prompts.Viewpoints, defaults.Viewpoints)
	fillPrompt(&cfg.Prompts.Navigate, defaults.Navigate)
	fillPrompt(&cfg.Prompts.Minutes, defaults.Minutes)
}

func fillPrompt(p *PromptTemplate, def PromptTemplate) {
	if p.System == "" {
		p.System = def.System
	}
	if p.User == "" {
		p.User = def.User
	}
}
