package profiles_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"ocm.software/open-component-model/plughost/plugin/manager/profiles"
	"ocm.software/open-component-model/plughost/plugin/manager/types"
)

func profile(typ string, props map[string]any, required ...string) types.ProfileTypeConfiguration {
	return types.ProfileTypeConfiguration{
		Type: typ,
		Schema: types.ProfileSchema{
			Type:       "object",
			Title:      typ,
			Properties: props,
			Required:   required,
		},
	}
}

func TestRegister(t *testing.T) {
	r := require.New(t)
	reg := profiles.NewRegistry()
	r.NoError(reg.Register(profiles.HostOwner, []types.ProfileTypeConfiguration{profile("base", nil)}))
	r.NoError(reg.Register("sample-plugin", []types.ProfileTypeConfiguration{
		profile("TestProfile", map[string]any{"host": map[string]any{"type": "string"}}, "host"),
	}))
	r.Equal([]string{"base", "TestProfile"}, reg.Types())
	r.Equal([]string{"base"}, reg.TypesExcept("sample-plugin"))

	e, ok := reg.Get("TestProfile")
	r.True(ok)
	r.Equal("sample-plugin", e.Owner)

	r.NoError(reg.Validate("TestProfile", map[string]any{"host": "example.com"}))
	r.Error(reg.Validate("TestProfile", map[string]any{"host": 1}))
	r.Error(reg.Validate("TestProfile", map[string]any{}))
	r.Error(reg.Validate("unknown", nil))

	reg.Unregister("sample-plugin")
	r.Equal([]string{"base"}, reg.Types())
}

func TestRegisterIsAllOrNothing(t *testing.T) {
	tests := []struct {
		name     string
		profiles []types.ProfileTypeConfiguration
	}{
		{name: "collision with registered type", profiles: []types.ProfileTypeConfiguration{profile("new", nil), profile("base", nil)}},
		{name: "duplicate within request", profiles: []types.ProfileTypeConfiguration{profile("x", nil), profile("x", nil)}},
		{name: "invalid schema", profiles: []types.ProfileTypeConfiguration{profile("new", nil), {
			Type:   "broken",
			Schema: types.ProfileSchema{Type: "no-such-type"},
		}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := require.New(t)
			reg := profiles.NewRegistry()
			r.NoError(reg.Register(profiles.HostOwner, []types.ProfileTypeConfiguration{profile("base", nil)}))
			r.Error(reg.Register("p", tc.profiles))
			r.Equal([]string{"base"}, reg.Types())
		})
	}
}
