// Package credentials gives commands access to the active credential manager:
// the built-in file store or the override a plugin supplies for the
// CredentialManager setting.
package credentials

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ocm.software/open-component-model/plughost/plugin/manager/modules"
	"ocm.software/open-component-model/plughost/plugin/manager/overrides"
	"ocm.software/open-component-model/plughost/plugin/manager/types"
	"ocm.software/open-component-model/plughost/settings"
)

// ErrNotFound is returned when no secret is stored for an account.
var ErrNotFound = errors.New("no credentials stored for account")

// Manager stores secrets per account.
type Manager interface {
	Load(ctx context.Context, account string) (string, error)
	Save(ctx context.Context, account, secret string) error
	Delete(ctx context.Context, account string) error
}

// FromRegistry returns the credential manager override of the resolved
// overrides, or nil when the built-in manager is selected. A failing override
// is returned as a manager that fails on every call.
func FromRegistry(registry *overrides.Registry) Manager {
	result, ok := registry.Get(settings.CredentialManager)
	if !ok {
		return nil
	}
	module, err := result.Implementation()
	if err != nil {
		return &failing{err: err}
	}
	return Adapt(result.Plugin(), module)
}

// Resolve returns the override of the registry or, without one, fallback.
func Resolve(registry *overrides.Registry, fallback Manager) Manager {
	if m := FromRegistry(registry); m != nil {
		return m
	}
	return fallback
}

// Adapt turns an override module into a Manager. Modules implementing Manager
// are used directly; executables are run with the operation and account as
// arguments.
func Adapt(plugin string, module modules.Module) Manager {
	switch m := module.(type) {
	case Manager:
		return m
	case modules.Executable:
		return &execManager{plugin: plugin, module: m}
	default:
		return &failing{err: types.NewError(types.ErrOverride,
			fmt.Sprintf("the credential manager module %q of plugin %q implements neither Load, Save nor Delete", module.Path(), plugin), nil)}
	}
}

// execManager runs an executable module as
//
//	<module> load <account>            prints the secret
//	<module> save <account>            reads the secret from stdin
//	<module> delete <account>
type execManager struct {
	plugin string
	module modules.Executable
}

func (m *execManager) Load(ctx context.Context, account string) (string, error) {
	out, err := m.run(ctx, nil, "load", account)
	if err != nil {
		return "", err
	}
	secret := string(bytes.TrimRight(out, "\r\n"))
	if secret == "" {
		return "", fmt.Errorf("%w: %s", ErrNotFound, account)
	}
	return secret, nil
}

func (m *execManager) Save(ctx context.Context, account, secret string) error {
	_, err := m.run(ctx, []byte(secret), "save", account)
	return err
}

func (m *execManager) Delete(ctx context.Context, account string) error {
	_, err := m.run(ctx, nil, "delete", account)
	return err
}

func (m *execManager) run(ctx context.Context, stdin []byte, op, account string) ([]byte, error) {
	slog.DebugContext(ctx, "calling credential manager override",
		slog.String("plugin", m.plugin), slog.String("operation", op), slog.String("account", account))
	out, err := m.module.Exec(ctx, stdin, op, account)
	if err != nil {
		return nil, types.NewError(types.ErrOverride,
			fmt.Sprintf("the credential manager of plugin %q failed to %s the credentials of %q", m.plugin, op, account), err)
	}
	return out, nil
}

// failing reports the resolution failure when the override is first used.
type failing struct {
	err error
}

func (f *failing) Load(context.Context, string) (string, error) { return "", f.err }

func (f *failing) Save(context.Context, string, string) error { return f.err }

func (f *failing) Delete(context.Context, string) error { return f.err }
