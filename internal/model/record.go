package model

import (
	"time"

	"jsonbench-api/pkg/jsonvalue"
)

// HeavyDocument is a heavy document in storage form, ready to be inserted.
type HeavyDocument struct {
	Payload     jsonvalue.Value
	Metadata    jsonvalue.Value
	NestedArray jsonvalue.Value
	Tags        []string
}

// HeavyRecord is a stored heavy document with the identity and timestamps
// assigned by storage. It is a pure carrier and performs no validation.
type HeavyRecord struct {
	ID          int64           `json:"id"`
	Payload     jsonvalue.Value `json:"payload"`
	Metadata    jsonvalue.Value `json:"metadata"`
	NestedArray jsonvalue.Value `json:"nested_array"`
	Tags        []string        `json:"tags"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// NewHeavyRecord wraps doc with its storage identity. Tags are copied and
// always encode as an array.
func NewHeavyRecord(id int64, doc HeavyDocument, createdAt, updatedAt time.Time) *HeavyRecord {
	return &HeavyRecord{
		ID:          id,
		Payload:     doc.Payload,
		Metadata:    doc.Metadata,
		NestedArray: doc.NestedArray,
		Tags:        cloneStrings(doc.Tags),
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}
}

// Document returns the stored sections of the record.
func (r *HeavyRecord) Document() HeavyDocument {
	return HeavyDocument{
		Payload:     r.Payload,
		Metadata:    r.Metadata,
		NestedArray: r.NestedArray,
		Tags:        cloneStrings(r.Tags),
	}
}

// LightData is the inbound light document.
type LightData struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// LightRecord is a stored light document.
type LightRecord struct {
	ID        int64     `json:"id"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewLightRecord wraps data with its storage identity.
func NewLightRecord(id int64, data LightData, createdAt, updatedAt time.Time) *LightRecord {
	return &LightRecord{
		ID:        id,
		Key:       data.Key,
		Value:     data.Value,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
}

// ParseLightData validates a light document: both key and value must be
// present as strings.
func ParseLightData(data []byte, opts ParseOptions) (*LightData, error) {
	root, err := wellFormed(data)
	if err != nil {
		return nil, err
	}
	d := decoder{strict: opts.Strict}
	f, err := d.object(root, "")
	if err != nil {
		return nil, err
	}
	if err := f.only("key", "value"); err != nil {
		return nil, err
	}
	var l LightData
	if l.Key, err = f.str("key"); err != nil {
		return nil, err
	}
	if l.Value, err = f.str("value"); err != nil {
		return nil, err
	}
	return &l, nil
}
