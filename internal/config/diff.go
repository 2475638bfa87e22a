package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// MeetingChanged is true if any meeting context field changed.
	MeetingChanged bool

	// LiveChanged is true if live analysis was toggled or its interval changed.
	LiveChanged bool

	// PromptsChanged lists the actions whose templates changed.
	PromptsChanged []Action

	// RestartRequired lists settings that changed but only take effect after
	// a restart (e.g., "capture", "providers").
	RestartRequired []string
}

// Empty reports whether d carries no change at all.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.MeetingChanged && !d.LiveChanged &&
		len(d.PromptsChanged) == 0 && len(d.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	om, nm := old.Meeting, new.Meeting
	if om.Live != nm.Live || om.LiveInterval != nm.LiveInterval {
		d.LiveChanged = true
	}
	om.Live, om.LiveInterval = nm.Live, nm.LiveInterval
	if om != nm {
		d.MeetingChanged = true
	}

	for _, action := range Actions {
		ot, _ := old.Prompts.Template(action)
		nt, _ := new.Prompts.Template(action)
		if ot != nt {
			d.PromptsChanged = append(d.PromptsChanged, action)
		}
	}

	if old.Capture != new.Capture {
		d.RestartRequired = append(d.RestartRequired, "capture")
	}
	if !sameProviders(old.Providers, new.Providers) {
		d.RestartRequired = append(d.RestartRequired, "providers")
	}
	if old.Server.ListenAddr != new.Server.ListenAddr || old.Server.LogFile != new.Server.LogFile {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if old.Memory != new.Memory {
		d.RestartRequired = append(d.RestartRequired, "memory")
	}

	return d
}

func sameProviders(a, b ProvidersConfig) bool {
	if !sameEntry(a.LLM, b.LLM) || len(a.Fallbacks) != len(b.Fallbacks) {
		return false
	}
	for i := range a.Fallbacks {
		if !sameEntry(a.Fallbacks[i], b.Fallbacks[i]) {
			return false
		}
	}
	return true
}

// sameEntry compares the scalar fields of two entries. Options are not
// compared.
func sameEntry(a, b ProviderEntry) bool {
	return a.Name == b.Name && a.APIKey == b.APIKey && a.BaseURL == b.BaseURL && a.Model == b.Model
}
