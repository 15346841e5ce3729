package context

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"ocm.software/open-component-model/plughost/internal/configuration"
	"ocm.software/open-component-model/plughost/internal/credentials"
	"ocm.software/open-component-model/plughost/plugin/manager"
	"ocm.software/open-component-model/plughost/plugin/manager/types"
)

func TestContextValues(t *testing.T) {
	r := require.New(t)
	cfg := &configuration.Config{Registry: "https://npm.acme.example/"}
	pm, err := manager.NewPluginManager(types.HostInfo{PackageName: "@acme/cli"}, types.Layout{Home: t.TempDir()})
	r.NoError(err)
	creds := credentials.NewFileManager(filepath.Join(t.TempDir(), credentials.FileName))

	ctx := WithConfiguration(context.Background(), cfg)
	first := FromContext(ctx)
	ctx = WithPluginManager(ctx, pm)
	ctx = WithCredentials(ctx, creds)

	c := FromContext(ctx)
	r.Same(first, c, "values are added to the existing context")
	r.Same(cfg, c.Configuration())
	r.Same(pm, c.PluginManager())
	r.Equal(credentials.Manager(creds), c.Credentials())
	r.Nil(c.Operations())
}

func TestNilContext(t *testing.T) {
	r := require.New(t)
	var c *Context
	r.Nil(c.Configuration())
	r.Nil(c.PluginManager())
	r.Nil(c.Operations())
	r.Nil(c.Credentials())
	r.Nil(FromContext(context.Background()))
	//nolint:staticcheck // a nil context is tolerated
	r.Nil(FromContext(nil))
}

func TestRegister(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	Register(cmd)
	c := FromContext(cmd.Context())
	require.NotNil(t, c)
	Register(cmd)
	require.Same(t, c, FromContext(cmd.Context()))
}

func TestConcurrentAccess(t *testing.T) {
	ctx := WithConfiguration(context.Background(), &configuration.Config{})
	c := FromContext(ctx)
	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			WithConfiguration(ctx, &configuration.Config{Home: filepath.Join("home", string(rune('a'+i)))})
		}()
		go func() {
			defer wg.Done()
			_ = c.Configuration()
		}()
	}
	wg.Wait()
	require.NotNil(t, c.Configuration())
}
