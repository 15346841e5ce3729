package context

import (
	"context"
	"sync"

	"github.com/spf13/cobra"

	"ocm.software/open-component-model/plughost/internal/configuration"
	"ocm.software/open-component-model/plughost/internal/credentials"
	"ocm.software/open-component-model/plughost/plugin/manager"
	"ocm.software/open-component-model/plughost/plugin/manager/types"
	"ocm.software/open-component-model/plughost/plugin/operations"
)

type ctxKey string

const key ctxKey = "ocm.software/open-component-model/plughost/internal/context"

// Context is the command line context of the host CLI.
// It carries the centrally created structures that many commands share.
// It travels inside a context.Context but only as a pointer, so commands
// that change it are seen by every other command of the same invocation.
type Context struct {
	mu sync.RWMutex

	// configuration is the host configuration. It is set first; when it is
	// missing, defaults apply.
	configuration *configuration.Config

	// pluginManager loads the installed plugins and owns their issues.
	pluginManager *manager.PluginManager

	// operations installs, updates and uninstalls plugins.
	operations *operations.Operations

	// credentials is the active credential manager, either built in or
	// supplied by a plugin.
	credentials credentials.Manager

	// hostTree is the command tree the installed plugins were loaded into.
	// It is nil until the plugins are loaded.
	hostTree *types.CommandDefinition
}

// WithConfiguration stores the host configuration in the context.
func WithConfiguration(ctx context.Context, cfg *configuration.Config) context.Context {
	ctx, c := retrieveOrCreate(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.configuration = cfg
	return ctx
}

// WithPluginManager stores the plugin manager in the context.
func WithPluginManager(ctx context.Context, pm *manager.PluginManager) context.Context {
	ctx, c := retrieveOrCreate(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pluginManager = pm
	return ctx
}

// WithOperations stores the package operations in the context.
func WithOperations(ctx context.Context, ops *operations.Operations) context.Context {
	ctx, c := retrieveOrCreate(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.operations = ops
	return ctx
}

// WithCredentials stores the active credential manager in the context.
func WithCredentials(ctx context.Context, m credentials.Manager) context.Context {
	ctx, c := retrieveOrCreate(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.credentials = m
	return ctx
}

// WithHostTree records the command tree the plugins were loaded into.
func WithHostTree(ctx context.Context, tree *types.CommandDefinition) context.Context {
	ctx, c := retrieveOrCreate(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hostTree = tree
	return ctx
}

// Register makes sure cmd carries a Context.
func Register(cmd *cobra.Command) {
	ctx, _ := retrieveOrCreate(cmd.Context())
	cmd.SetContext(ctx)
}

func (c *Context) Configuration() *configuration.Config {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.configuration
}

func (c *Context) PluginManager() *manager.PluginManager {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pluginManager
}

func (c *Context) Operations() *operations.Operations {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.operations
}

func (c *Context) Credentials() credentials.Manager {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.credentials
}

func (c *Context) HostTree() *types.CommandDefinition {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hostTree
}

// FromContext returns the Context stored in ctx or nil.
func FromContext(ctx context.Context) *Context {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(key).(*Context); ok {
		return v
	}
	return nil
}

// WithContext stores c in ctx.
func WithContext(ctx context.Context, c *Context) context.Context {
	if c == nil {
		return ctx
	}
	return context.WithValue(ctx, key, c)
}

func retrieveOrCreate(ctx context.Context) (context.Context, *Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	c := FromContext(ctx)
	if c == nil {
		c = &Context{}
		ctx = WithContext(ctx, c)
	}
	return ctx, c
}
