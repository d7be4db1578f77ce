package config

import (
	"bytes"
	"errors"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueyaml "cuelang.org/go/encoding/yaml"
)

// schemaSource constrains configuration files before they are unmarshalled,
// so a misspelled key or a wrongly typed value fails with an error naming
// the offending field instead of being silently ignored.
const schemaSource = `
#Config: {
	name?:     string
	capacity?: int & >0
	workers?:  int & >0
	source?:   string
	term?:     string
	matcher?: {
		kind?: "substring" | "fold" | "regexp" | "expr"
	}
	throttle?: string
	logging?: {
		level?:  string
		format?: "json" | "text"
		loki?: {
			enabled?: bool
			url?:     string
			labels?: {[string]: string}
		}
	}
	telemetry?: {
		enabled?:  bool
		provider?: string
		listen?:   string
	}
}
`

func validateSchema(filename string, raw []byte) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return errors.New("file is empty")
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))
	if err := def.Err(); err != nil {
		return fmt.Errorf("lookup schema definition: %w", err)
	}

	file, err := cueyaml.Extract(filename, raw)
	if err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	data := ctx.BuildFile(file)
	if err := data.Err(); err != nil {
		return fmt.Errorf("build yaml: %w", err)
	}

	if err := def.Unify(data).Validate(); err != nil {
		return fmt.Errorf("schema violation: %w", err)
	}
	return nil
}
