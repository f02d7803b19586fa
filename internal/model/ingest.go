package model

import (
	"encoding/json"
	"fmt"
	"strings"

	"jsonbench-api/pkg/jsonvalue"
)

// IngestMode selects how inbound heavy documents are accepted.
type IngestMode string

const (
	// IngestTyped validates the full heavy schema before projecting it.
	IngestTyped IngestMode = "typed"
	// IngestUntyped accepts payload, metadata and nested_array as any JSON
	// value and only checks the top-level layout.
	IngestUntyped IngestMode = "untyped"
)

// ParseIngestMode parses a mode name, case-insensitively.
func ParseIngestMode(s string) (IngestMode, error) {
	switch IngestMode(strings.ToLower(strings.TrimSpace(s))) {
	case IngestTyped, "":
		return IngestTyped, nil
	case IngestUntyped:
		return IngestUntyped, nil
	}
	return "", fmt.Errorf("unknown ingest mode %q (want typed or untyped)", s)
}

// Ingester turns a request body into a HeavyDocument. Both modes feed the
// same document into the write path.
type Ingester struct {
	Mode    IngestMode
	Options ParseOptions
}

// Ingest validates body according to the configured mode.
func (in Ingester) Ingest(body []byte) (HeavyDocument, error) {
	if in.Mode == IngestUntyped {
		return ingestUntyped(body, in.Options)
	}
	p, err := ParseHeavyPayload(body, in.Options)
	if err != nil {
		return HeavyDocument{}, err
	}
	return p.Document(), nil
}

func ingestUntyped(body []byte, opts ParseOptions) (HeavyDocument, error) {
	root, err := wellFormed(body)
	if err != nil {
		return HeavyDocument{}, err
	}
	d := decoder{strict: opts.Strict}
	f, err := d.object(root, "")
	if err != nil {
		return HeavyDocument{}, err
	}
	if err := f.only("payload", "metadata", "nested_array", "tags"); err != nil {
		return HeavyDocument{}, err
	}

	var doc HeavyDocument
	sections := []struct {
		name string
		dst  *jsonvalue.Value
	}{
		{"payload", &doc.Payload},
		{"metadata", &doc.Metadata},
		{"nested_array", &doc.NestedArray},
	}
	for _, s := range sections {
		raw, ok := f.members[s.name]
		if !ok {
			return HeavyDocument{}, invalid(s.name, "required field missing")
		}
		if *s.dst, err = jsonvalue.Parse(raw); err != nil {
			return HeavyDocument{}, invalid(s.name, "malformed JSON: %v", err)
		}
	}
	err = f.with("tags", func(raw json.RawMessage, path string) (err error) {
		doc.Tags, err = d.strings(raw, path)
		return err
	})
	if err != nil {
		return HeavyDocument{}, err
	}
	return doc, nil
}
