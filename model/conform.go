package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const schemaBaseURL = "https://schemas.bookforge.dev/"

var (
	compileOnce sync.Once
	compiled    map[string]*jsonschema.Schema
	compileErr  error

	messages = message.NewPrinter(language.English)
)

// compileSchemas compiles every registered descriptor once. The descriptors
// are round-tripped through JSON so the compiler sees plain JSON values.
func compileSchemas() {
	c := jsonschema.NewCompiler()
	for name, build := range schemas {
		raw, err := json.Marshal(build())
		if err != nil {
			compileErr = fmt.Errorf("encode schema %s: %w", name, err)
			return
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			compileErr = fmt.Errorf("decode schema %s: %w", name, err)
			return
		}
		if err := c.AddResource(schemaBaseURL+name+".json", doc); err != nil {
			compileErr = fmt.Errorf("add schema %s: %w", name, err)
			return
		}
	}
	compiled = make(map[string]*jsonschema.Schema, len(schemas))
	for name := range schemas {
		sch, err := c.Compile(schemaBaseURL + name + ".json")
		if err != nil {
			compileErr = fmt.Errorf("compile schema %s: %w", name, err)
			return
		}
		compiled[name] = sch
	}
}

func compiledSchema(name string) (*jsonschema.Schema, error) {
	compileOnce.Do(compileSchemas)
	if compileErr != nil {
		return nil, compileErr
	}
	sch, ok := compiled[name]
	if !ok {
		return nil, fmt.Errorf("unknown schema: %s", name)
	}
	return sch, nil
}

// conform checks v against the schema registered under name, the same
// descriptor providers receive. Null members are dropped first: a nil Go
// slice or pointer means the field is absent.
func (c *checker) conform(name string, v any) {
	sch, err := compiledSchema(name)
	if err != nil {
		c.add("(schema)", "%v", err)
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		c.add("(root)", "cannot encode: %v", err)
		return
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		c.add("(root)", "cannot decode: %v", err)
		return
	}
	err = sch.Validate(dropNulls(inst))
	if err == nil {
		return
	}
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		c.add("(root)", "%v", err)
		return
	}
	for _, leaf := range leaves(verr, nil) {
		c.add(fieldPath(leaf.InstanceLocation), "%s", leaf.ErrorKind.LocalizedString(messages))
	}
}

func dropNulls(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, item := range t {
			if item == nil {
				delete(t, k)
				continue
			}
			t[k] = dropNulls(item)
		}
	case []any:
		for i, item := range t {
			t[i] = dropNulls(item)
		}
	}
	return v
}

// leaves flattens a validation error tree to the failures that caused it.
func leaves(e *jsonschema.ValidationError, out []*jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(e.Causes) == 0 {
		return append(out, e)
	}
	for _, cause := range e.Causes {
		out = leaves(cause, out)
	}
	return out
}

// fieldPath renders an instance location as chapters[0].title.
func fieldPath(location []string) string {
	if len(location) == 0 {
		return "(root)"
	}
	var b strings.Builder
	for _, tok := range location {
		if _, err := strconv.Atoi(tok); err == nil {
			b.WriteString("[" + tok + "]")
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(tok)
	}
	return b.String()
}
