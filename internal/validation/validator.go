package validation

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/splax/installer/internal/domain"
)

// Validator checks submitted form fields against a declarative rule set.
type Validator struct {
	schema   *jsonschema.Schema
	fields   []string
	messages map[string]string
}

// New compiles schema and returns a Validator using messages for overrides
// keyed by "field.keyword".
func New(name, schema string, messages map[string]string) (*Validator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft7
	url := fmt.Sprintf("https://installer.schemas.local/%s.schema.json", name)
	if err := c.AddResource(url, strings.NewReader(schema)); err != nil {
		return nil, fmt.Errorf("load form schema: %w", err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile form schema: %w", err)
	}
	fields := make([]string, 0, len(compiled.Properties))
	for field := range compiled.Properties {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return &Validator{schema: compiled, fields: fields, messages: messages}, nil
}

// NewWizard returns the Validator for the environment wizard.
func NewWizard() (*Validator, error) {
	return New("environment-wizard", WizardSchema, WizardMessages)
}

// Validate returns the field errors for form; an empty result means it passed.
// Declared fields missing from form are validated as empty strings.
func (v *Validator) Validate(form map[string]string) domain.FieldErrors {
	errs := domain.FieldErrors{}
	instance := make(map[string]any, len(form)+len(v.fields))
	for _, field := range v.fields {
		instance[field] = ""
	}
	for k, val := range form {
		instance[k] = val
	}
	err := v.schema.Validate(instance)
	if err == nil {
		return errs
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		errs.Add("form", err.Error())
		return errs
	}
	for _, leaf := range leaves(ve) {
		field := strings.TrimPrefix(leaf.InstanceLocation, "/")
		if field == "" {
			field = "form"
		}
		keyword := leaf.KeywordLocation[strings.LastIndex(leaf.KeywordLocation, "/")+1:]
		errs.Add(field, v.message(field, keyword, leaf.Message))
	}
	return errs
}

func (v *Validator) message(field, keyword, fallback string) string {
	if msg, ok := v.messages[field+"."+keyword]; ok {
		return msg
	}
	label := strings.ReplaceAll(field, "_", " ")
	switch keyword {
	case "minLength":
		return fmt.Sprintf("The %s field is required.", label)
	case "maxLength":
		return fmt.Sprintf("The %s may not be greater than the allowed length.", label)
	case "type":
		return fmt.Sprintf("The %s must be a string.", label)
	default:
		return fmt.Sprintf("The %s is invalid: %s.", label, fallback)
	}
}

func leaves(ve *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*jsonschema.ValidationError{ve}
	}
	var out []*jsonschema.ValidationError
	for _, cause := range ve.Causes {
		out = append(out, leaves(cause)...)
	}
	return out
}
