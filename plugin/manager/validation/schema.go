package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"

	invopop "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"ocm.software/open-component-model/plughost/plugin/manager/types"
)

// ConfigurationValidator validates the structure of a plugin configuration.
type ConfigurationValidator interface {
	Validate(cfg *types.FrameworkConfig) error
}

// ConfigurationValidatorFunc adapts a function to a ConfigurationValidator.
type ConfigurationValidatorFunc func(cfg *types.FrameworkConfig) error

func (f ConfigurationValidatorFunc) Validate(cfg *types.FrameworkConfig) error {
	return f(cfg)
}

const frameworkConfigSchemaURL = "framework-config.schema.json"

// SchemaValidator validates configurations against the JSON schema reflected
// from types.FrameworkConfig.
type SchemaValidator struct {
	schema *jsonschema.Schema
}

var _ ConfigurationValidator = (*SchemaValidator)(nil)

// NewSchemaValidator reflects and compiles the configuration schema.
func NewSchemaValidator() (*SchemaValidator, error) {
	raw, err := FrameworkConfigSchema()
	if err != nil {
		return nil, err
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(frameworkConfigSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("failed to add configuration schema: %w", err)
	}
	sch, err := c.Compile(frameworkConfigSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile configuration schema: %w", err)
	}
	return &SchemaValidator{schema: sch}, nil
}

// FrameworkConfigSchema returns the JSON schema of the framework configuration block.
func FrameworkConfigSchema() ([]byte, error) {
	r := &invopop.Reflector{
		Anonymous:                  true,
		AllowAdditionalProperties:  true,
		RequiredFromJSONSchemaTags: true,
	}
	schema, err := r.ReflectFromType(reflect.TypeOf(types.FrameworkConfig{})).MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to create json schema for the framework configuration: %w", err)
	}
	return schema, nil
}

func (v *SchemaValidator) Validate(cfg *types.FrameworkConfig) error {
	if cfg == nil {
		return fmt.Errorf("the plugin has no configuration")
	}
	content, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(content))
	if err != nil {
		return fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := v.schema.Validate(instance); err != nil {
		return fmt.Errorf("the configuration does not match its schema: %w", err)
	}
	return nil
}
