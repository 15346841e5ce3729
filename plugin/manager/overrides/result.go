package overrides

import (
	"maps"
	"slices"

	"ocm.software/open-component-model/plughost/plugin/manager/modules"
	"ocm.software/open-component-model/plughost/plugin/manager/types"
)

// Result is the outcome of resolving one setting: either a resolved module or
// a diagnostic raised when the override is used.
type Result struct {
	setting    string
	plugin     string
	module     modules.Module
	diagnostic string
}

// Resolved returns a result carrying the module a plugin supplies.
func Resolved(setting, plugin string, module modules.Module) Result {
	return Result{setting: setting, plugin: plugin, module: module}
}

// Failing returns a result that fails with diagnostic on use.
func Failing(setting, plugin, diagnostic string) Result {
	return Result{setting: setting, plugin: plugin, diagnostic: diagnostic}
}

// Setting returns the name of the resolved setting.
func (r Result) Setting() string { return r.setting }

// Plugin returns the plugin selected for the setting.
func (r Result) Plugin() string { return r.plugin }

// Failed reports whether the override could not be resolved.
func (r Result) Failed() bool { return r.module == nil }

// Diagnostic returns the reason a failing result fails.
func (r Result) Diagnostic() string { return r.diagnostic }

// Implementation returns the override module or an override error carrying
// the diagnostic.
func (r Result) Implementation() (modules.Module, error) {
	if r.module == nil {
		return nil, types.NewError(types.ErrOverride, r.diagnostic, nil)
	}
	return r.module, nil
}

// Registry maps setting names to resolved overrides. Settings using the
// built-in implementation have no entry.
type Registry struct {
	results map[string]Result
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{results: map[string]Result{}}
}

// Set stores the result for its setting.
func (r *Registry) Set(result Result) {
	r.results[result.setting] = result
}

// Get returns the result for a setting.
func (r *Registry) Get(setting string) (Result, bool) {
	if r == nil {
		return Result{}, false
	}
	result, ok := r.results[setting]
	return result, ok
}

// Len returns the number of overridden settings.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.results)
}

// Settings returns the overridden settings in sorted order.
func (r *Registry) Settings() []string {
	if r == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(r.results))
}
