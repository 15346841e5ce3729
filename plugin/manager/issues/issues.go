// Package issues accumulates the findings of plugin validation per plugin.
// Findings are queried rather than raised so that one broken plugin cannot
// abort the loading of the others.
package issues

import (
	"slices"
	"sync"
)

// Severity classifies an issue.
type Severity string

const (
	// ConfigError rejects the whole plugin.
	ConfigError Severity = "cfgError"
	// CommandError rejects the plugin's commands.
	CommandError Severity = "cmdError"
	// OverrideError is reserved for problems with overrides. It never blocks admission.
	OverrideError Severity = "overError"
	// Warning is advisory only.
	Warning Severity = "warning"
)

// Issue is a single finding for a plugin.
type Issue struct {
	Plugin   string   `json:"plugin"`
	Severity Severity `json:"severity"`
	Text     string   `json:"text"`
}

// Tracker holds the issues of every plugin for the lifetime of the process.
type Tracker struct {
	mu     sync.RWMutex
	issues map[string][]Issue
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{issues: make(map[string][]Issue)}
}

// Record appends an issue for the plugin.
func (t *Tracker) Record(plugin string, severity Severity, text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.issues[plugin] = append(t.issues[plugin], Issue{Plugin: plugin, Severity: severity, Text: text})
}

// Clear drops all issues of the plugin. It must be called before a plugin is
// validated again.
func (t *Tracker) Clear(plugin string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.issues, plugin)
}

// HasSeverity reports whether the plugin has an issue of one of the given severities.
func (t *Tracker) HasSeverity(plugin string, severities ...Severity) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, issue := range t.issues[plugin] {
		if slices.Contains(severities, issue.Severity) {
			return true
		}
	}
	return false
}

// List returns the issues of the plugin in recorded order.
func (t *Tracker) List(plugin string) []Issue {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.issues[plugin])
}

// Admissible reports whether the plugin has no issue that rejects it.
func (t *Tracker) Admissible(plugin string) bool {
	return !t.HasSeverity(plugin, ConfigError, CommandError)
}

// Plugins returns the names of all plugins with recorded issues, sorted.
func (t *Tracker) Plugins() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.issues))
	for name := range t.issues {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
