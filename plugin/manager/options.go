package manager

import (
	"ocm.software/open-component-model/plughost/plugin/manager/modules"
	"ocm.software/open-component-model/plughost/plugin/manager/overrides"
	"ocm.software/open-component-model/plughost/plugin/manager/types"
	"ocm.software/open-component-model/plughost/plugin/manager/validation"
)

// Options configure a PluginManager.
type Options struct {
	Loader          modules.Loader
	ConfigValidator validation.ConfigurationValidator
	Catalog         *overrides.Catalog
	HostProfiles    []types.ProfileTypeConfiguration
}

type OptionFn func(*Options)

// WithModuleLoader replaces the loader for plugin modules.
func WithModuleLoader(l modules.Loader) OptionFn {
	return func(o *Options) {
		o.Loader = l
	}
}

// WithConfigurationValidator replaces the structural validation of plugin configurations.
func WithConfigurationValidator(v validation.ConfigurationValidator) OptionFn {
	return func(o *Options) {
		o.ConfigValidator = v
	}
}

// WithCatalog replaces the supported override settings and their known providers.
func WithCatalog(c overrides.Catalog) OptionFn {
	return func(o *Options) {
		o.Catalog = &c
	}
}

// WithHostProfiles declares the profile types of the host.
func WithHostProfiles(profiles ...types.ProfileTypeConfiguration) OptionFn {
	return func(o *Options) {
		o.HostProfiles = append(o.HostProfiles, profiles...)
	}
}
