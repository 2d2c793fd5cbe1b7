package extraction

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed interruption_record.schema.json
var recordSchemaJSON string

const recordSchemaName = "interruption_record.schema.json"

// ErrInvalidRecord wraps every decode or schema failure of an extracted record.
var ErrInvalidRecord = errors.New("invalid extracted record")

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// Decode validates raw extractor output against the record schema and returns
// the normalized Record. An empty object decodes to an unrelated record.
func Decode(raw json.RawMessage) (Record, error) {
	value, err := decodeStrictJSON(raw)
	if err != nil {
		return Record{}, fmt.Errorf("%w: decode JSON: %v", ErrInvalidRecord, err)
	}

	schema, err := loadSchema()
	if err != nil {
		return Record{}, fmt.Errorf("load schema: %w", err)
	}

	if err := schema.Validate(value); err != nil {
		return Record{}, fmt.Errorf("%w: schema validation failed: %v", ErrInvalidRecord, err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return Record{}, fmt.Errorf("%w: normalize JSON: %v", ErrInvalidRecord, err)
	}

	var wire wireRecord
	if err := json.Unmarshal(normalized, &wire); err != nil {
		return Record{}, fmt.Errorf("%w: unmarshal record: %v", ErrInvalidRecord, err)
	}

	return wire.normalize(), nil
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020

		if err := compiler.AddResource(recordSchemaName, strings.NewReader(recordSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile(recordSchemaName)
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}

		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}

	return value, nil
}
