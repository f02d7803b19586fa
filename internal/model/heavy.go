package model

import (
	"encoding/json"
	"fmt"
)

// Item is a single order line.
type Item struct {
	SKU   string  `json:"sku"`
	Qty   int32   `json:"qty"`
	Price float64 `json:"price"`
}

// UserPrefs holds free-form user preferences.
type UserPrefs struct {
	Lang  string `json:"lang"`
	TZ    string `json:"tz"`
	Flags []bool `json:"flags"`
}

// User is the account section of a payload.
type User struct {
	ID    int64     `json:"id"`
	Name  string    `json:"name"`
	Prefs UserPrefs `json:"prefs"`
}

// Payload is the business section of a heavy document.
type Payload struct {
	User  User   `json:"user"`
	Items []Item `json:"items"`
}

// MetadataHeaders mirrors the request headers captured by the client.
type MetadataHeaders struct {
	UA     string   `json:"ua"`
	Accept []string `json:"accept"`
}

// Metadata carries tracing information.
type Metadata struct {
	Trace   string          `json:"trace"`
	TS      int64           `json:"ts"`
	Headers MetadataHeaders `json:"headers"`
}

// BarData is the keyed part of a level 1 element.
type BarData struct {
	K1 string `json:"k1"`
	K2 string `json:"k2"`
}

// Level1Data is the data shape {foo, bar}.
type Level1Data struct {
	Foo []int32 `json:"foo"`
	Bar BarData `json:"bar"`
}

// XObj is a single entry of Level2Data.Obj.
type XObj struct {
	X int32 `json:"x"`
}

// Level2Data is the data shape {numbers, obj}.
type Level2Data struct {
	Numbers []int32 `json:"numbers"`
	Obj     []XObj  `json:"obj"`
}

// NestedKind identifies which shape a NestedElement holds.
type NestedKind uint8

const (
	NestedLevel1 NestedKind = iota + 1
	NestedLevel2
)

func (k NestedKind) String() string {
	switch k {
	case NestedLevel1:
		return "level1"
	case NestedLevel2:
		return "level2"
	default:
		return fmt.Sprintf("NestedKind(%d)", uint8(k))
	}
}

// NestedElement is one entry of nested_array. No tag is sent on the wire;
// the variant is picked from the shape of data and recorded in Kind. Exactly
// one of Level1 and Level2 is set, matching Kind.
type NestedElement struct {
	Kind   NestedKind
	Level  int32
	Level1 *Level1Data
	Level2 *Level2Data
}

// NewLevel1Element returns a level 1 nested element.
func NewLevel1Element(level int32, data Level1Data) NestedElement {
	return NestedElement{Kind: NestedLevel1, Level: level, Level1: &data}
}

// NewLevel2Element returns a level 2 nested element.
func NewLevel2Element(level int32, data Level2Data) NestedElement {
	return NestedElement{Kind: NestedLevel2, Level: level, Level2: &data}
}

// MarshalJSON encodes the element without a tag, as {level, data}.
func (e NestedElement) MarshalJSON() ([]byte, error) {
	switch {
	case e.Kind == NestedLevel1 && e.Level1 != nil:
		return json.Marshal(struct {
			Level int32       `json:"level"`
			Data  *Level1Data `json:"data"`
		}{e.Level, e.Level1})
	case e.Kind == NestedLevel2 && e.Level2 != nil:
		return json.Marshal(struct {
			Level int32       `json:"level"`
			Data  *Level2Data `json:"data"`
		}{e.Level, e.Level2})
	}
	return nil, fmt.Errorf("nested element: no data for variant %s", e.Kind)
}

// UnmarshalJSON decodes an element, choosing the variant by the shape of data.
func (e *NestedElement) UnmarshalJSON(data []byte) error {
	d := decoder{}
	el, err := d.nestedElement(data, "")
	if err != nil {
		return err
	}
	*e = el
	return nil
}

// HeavyPayload is the validated form of an inbound heavy document. It only
// lives for the duration of a request; storage keeps the projected form.
type HeavyPayload struct {
	Payload     Payload         `json:"payload"`
	Metadata    Metadata        `json:"metadata"`
	NestedArray []NestedElement `json:"nested_array"`
	Tags        []string        `json:"tags"`
}

// UnmarshalJSON decodes and validates a heavy payload in lenient mode.
func (p *HeavyPayload) UnmarshalJSON(data []byte) error {
	parsed, err := ParseHeavyPayload(data, ParseOptions{})
	if err != nil {
		return err
	}
	*p = *parsed
	return nil
}
