package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// schemaSet compiles each target's JSON schema once.
type schemaSet struct {
	compiled sync.Map // schema name -> *jsonschema.Schema
}

func (s *schemaSet) get(target Schema) (*jsonschema.Schema, error) {
	name := target.SchemaName()
	if v, ok := s.compiled.Load(name); ok {
		return v.(*jsonschema.Schema), nil
	}
	raw, err := json.Marshal(target.JSONSchema())
	if err != nil {
		return nil, fmt.Errorf("marshal schema %s: %w", name, err)
	}
	url := name + ".json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema %s: %w", name, err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	actual, _ := s.compiled.LoadOrStore(name, compiled)
	return actual.(*jsonschema.Schema), nil
}

// decodeInto checks raw against the JSON schema, decodes it into target and
// runs the validator's struct tags. target is zeroed on every call so a
// failed attempt never leaks partial fields.
func decodeInto(raw string, target Schema, compiled *jsonschema.Schema, v *validator.Validate) error {
	resetTarget(target)
	body := stripCodeFence(raw)
	if body == "" {
		return errors.New("empty reply")
	}
	var doc any
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("reply is not valid JSON: %w", err)
	}
	if err := compiled.Validate(doc); err != nil {
		return fmt.Errorf("reply does not match schema: %w", err)
	}
	if err := json.Unmarshal([]byte(body), target); err != nil {
		resetTarget(target)
		return fmt.Errorf("decode reply: %w", err)
	}
	if err := v.Struct(target); err != nil {
		resetTarget(target)
		return formatValidation(err)
	}
	return nil
}

func resetTarget(target Schema) {
	rv := reflect.ValueOf(target)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv.Elem().Set(reflect.Zero(rv.Elem().Type()))
	}
}

// stripCodeFence removes a ```json fence some models wrap JSON replies in.
func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// formatValidation renders validator errors as "field: rule" pairs the model
// can act on when re-prompted.
func formatValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		parts = append(parts, fmt.Sprintf("%s: failed %s", fe.Field(), rule))
	}
	return fmt.Errorf("field validation failed: %s", strings.Join(parts, "; "))
}

// NewValidator returns a validator that reports JSON field names.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return v
}
