package registry

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed schema/package.schema.json
var packageSchemaBytes []byte

//go:embed schema/tarball.schema.json
var tarballSchemaBytes []byte

var (
	compileOnce   sync.Once
	compileErr    error
	packageSchema *jsonschema.Schema
	tarballSchema *jsonschema.Schema
	printer       = message.NewPrinter(language.English)
)

// compileSchemas compiles the embedded response schemas once.
func compileSchemas() error {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		for _, s := range []struct {
			id  string
			raw []byte
		}{
			{"package.schema.json", packageSchemaBytes},
			{"tarball.schema.json", tarballSchemaBytes},
		} {
			doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(s.raw))
			if err != nil {
				compileErr = fmt.Errorf("unmarshaling %s: %w", s.id, err)
				return
			}
			if err := c.AddResource(s.id, doc); err != nil {
				compileErr = fmt.Errorf("adding schema resource %s: %w", s.id, err)
				return
			}
		}
		if packageSchema, compileErr = c.Compile("package.schema.json"); compileErr != nil {
			return
		}
		tarballSchema, compileErr = c.Compile("tarball.schema.json")
	})
	return compileErr
}

// validateResponse checks a raw JSON response body against one of the
// embedded schemas, returning a readable list of violations on mismatch.
func validateResponse(schemaID string, body []byte) error {
	if err := compileSchemas(); err != nil {
		return fmt.Errorf("loading response schemas: %w", err)
	}

	var schema *jsonschema.Schema
	switch schemaID {
	case "package.schema.json":
		schema = packageSchema
	case "tarball.schema.json":
		schema = tarballSchema
	default:
		return fmt.Errorf("unknown schema %q", schemaID)
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("response is not valid JSON: %w", err)
	}

	err = schema.Validate(inst)
	if err == nil {
		return nil
	}

	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err
	}
	return fmt.Errorf("unexpected response shape: %s", strings.Join(flattenIssues(ve), "; "))
}

// flattenIssues walks the validation error tree and renders leaf errors.
func flattenIssues(ve *jsonschema.ValidationError) []string {
	if len(ve.Causes) == 0 {
		loc := "/" + strings.Join(ve.InstanceLocation, "/")
		msg := ve.Error()
		if ve.ErrorKind != nil {
			msg = ve.ErrorKind.LocalizedString(printer)
		}
		return []string{loc + ": " + msg}
	}
	var out []string
	for _, cause := range ve.Causes {
		out = append(out, flattenIssues(cause)...)
	}
	return out
}
