package npm

import (
	"context"
	"maps"
	"slices"
)

// RegistryInfo tells the package manager where to install from and the
// manifest where a plugin came from.
type RegistryInfo struct {
	// Location is recorded in the manifest.
	Location string
	// Registry is the default registry of the install.
	Registry string
	// ScopeRegistries map scopes ("@acme") to their registry.
	ScopeRegistries map[string]string
}

// ScopeNames returns the scopes with a registry in sorted order.
func (i RegistryInfo) ScopeNames() []string {
	return slices.Sorted(maps.Keys(i.ScopeRegistries))
}

// RegistryRequest is the input of BuildRegistryInfo.
type RegistryRequest struct {
	Spec Spec
	// UserRegistry is the registry the user asked for, if any.
	UserRegistry string
	// CachedLocation is the location of an existing manifest entry, if any.
	CachedLocation string
}

// BuildRegistryInfo decides where a package is installed from:
//
//   - a registry given by the user is used for the package and its scope,
//   - local and URL specs are their own location and use the default registry
//     for dependencies,
//   - a cached location of a registry package is reused, its scope registry is
//     always looked up again,
//   - otherwise the scope registry (for scoped packages) or the default
//     registry is used.
func BuildRegistryInfo(ctx context.Context, pm PackageManager, req RegistryRequest) (RegistryInfo, error) {
	spec := req.Spec
	scope := spec.Scope()

	if req.UserRegistry != "" {
		info := RegistryInfo{Location: req.UserRegistry, Registry: req.UserRegistry}
		if scope != "" {
			info.ScopeRegistries = map[string]string{scope: req.UserRegistry}
		}
		return info, nil
	}

	registry, err := pm.Registry(ctx)
	if err != nil {
		return RegistryInfo{}, err
	}

	switch spec.Kind {
	case KindDirectory, KindTarball:
		return RegistryInfo{Location: spec.Path, Registry: registry}, nil
	case KindURL:
		return RegistryInfo{Location: spec.Raw, Registry: registry}, nil
	}

	var scopeRegistry string
	if scope != "" {
		if scopeRegistry, err = pm.ScopeRegistry(ctx, scope); err != nil {
			return RegistryInfo{}, err
		}
	}

	info := RegistryInfo{Location: registry, Registry: registry}
	if req.CachedLocation != "" && !ParseSpec(req.CachedLocation).IsLocal() {
		info.Location = req.CachedLocation
		info.Registry = req.CachedLocation
	}
	if scopeRegistry != "" {
		if req.CachedLocation == "" {
			info.Location = scopeRegistry
		}
		info.ScopeRegistries = map[string]string{scope: scopeRegistry}
	}
	return info, nil
}
