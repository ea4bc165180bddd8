package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	schemaMu sync.Mutex
	compiled = map[string]*jsonschema.Schema{}
)

func schemaFor(name string) (*jsonschema.Schema, error) {
	schemaMu.Lock()
	defer schemaMu.Unlock()
	if s, ok := compiled[name]; ok {
		return s, nil
	}
	raw, err := schemaFS.ReadFile("schemas/" + name)
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	s, err := c.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	compiled[name] = s
	return s, nil
}

// validateAndDecode checks b against the named schema, then decodes into out.
func validateAndDecode(name string, b []byte, out any) error {
	s, err := schemaFor(name)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}
	if err := s.Validate(doc); err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

// DecodeGather parses and validates a GATHER request.
func DecodeGather(b []byte) (GatherMsg, error) {
	var m GatherMsg
	if err := validateAndDecode("gather.schema.json", b, &m); err != nil {
		return GatherMsg{}, fmt.Errorf("GATHER: %w", err)
	}
	return m, nil
}

// DecodeExtractReq parses and validates a STORAGE_EXTRACT request.
func DecodeExtractReq(b []byte) (ExtractReqMsg, error) {
	var m ExtractReqMsg
	if err := validateAndDecode("storage_extract.schema.json", b, &m); err != nil {
		return ExtractReqMsg{}, fmt.Errorf("STORAGE_EXTRACT: %w", err)
	}
	return m, nil
}
