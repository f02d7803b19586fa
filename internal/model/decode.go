package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
)

// ParseOptions controls how inbound documents are validated.
type ParseOptions struct {
	// Strict rejects object members that are not part of the schema.
	Strict bool
}

// ParseHeavyPayload validates data against the heavy payload schema. On
// failure it returns a *ValidationError describing the first mismatch and no
// partial result.
func ParseHeavyPayload(data []byte, opts ParseOptions) (*HeavyPayload, error) {
	root, err := wellFormed(data)
	if err != nil {
		return nil, err
	}

	d := decoder{strict: opts.Strict}
	f, err := d.object(root, "")
	if err != nil {
		return nil, err
	}
	if err := f.only("payload", "metadata", "nested_array", "tags"); err != nil {
		return nil, err
	}

	var p HeavyPayload
	if err := f.with("payload", func(raw json.RawMessage, path string) (err error) {
		p.Payload, err = d.payload(raw, path)
		return err
	}); err != nil {
		return nil, err
	}
	if err := f.with("metadata", func(raw json.RawMessage, path string) (err error) {
		p.Metadata, err = d.metadata(raw, path)
		return err
	}); err != nil {
		return nil, err
	}
	if err := f.with("nested_array", func(raw json.RawMessage, path string) error {
		items, err := d.array(raw, path)
		if err != nil {
			return err
		}
		p.NestedArray = make([]NestedElement, len(items))
		for i, item := range items {
			if p.NestedArray[i], err = d.nestedElement(item, index(path, i)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}
	if err := f.with("tags", func(raw json.RawMessage, path string) (err error) {
		p.Tags, err = d.strings(raw, path)
		return err
	}); err != nil {
		return nil, err
	}
	return &p, nil
}

// wellFormed checks data is a single syntactically valid JSON value.
func wellFormed(data []byte) (json.RawMessage, error) {
	var root json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil {
		verr := invalid("", "%v: %v", ErrMalformedJSON, err)
		verr.Err = ErrMalformedJSON
		return nil, verr
	}
	return root, nil
}

type decoder struct {
	strict bool
}

// fields is a decoded JSON object awaiting per-member validation.
type fields struct {
	d       decoder
	path    string
	members map[string]json.RawMessage
}

func (d decoder) object(raw json.RawMessage, path string) (fields, error) {
	if k := kindOf(raw); k != "object" {
		return fields{}, invalid(path, "expected object, got %s", k)
	}
	var members map[string]json.RawMessage
	if err := json.Unmarshal(raw, &members); err != nil {
		return fields{}, invalid(path, "malformed object: %v", err)
	}
	return fields{d: d, path: path, members: members}, nil
}

// only rejects members outside names when the decoder is strict.
func (f fields) only(names ...string) error {
	if !f.d.strict {
		return nil
	}
	var unknown []string
	for key := range f.members {
		known := false
		for _, name := range names {
			if key == name {
				known = true
				break
			}
		}
		if !known {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return invalid(join(f.path, unknown[0]), "unknown field")
}

// get returns a required member. A missing member and an explicit null are
// both rejected.
func (f fields) get(name string) (json.RawMessage, string, error) {
	path := join(f.path, name)
	raw, ok := f.members[name]
	if !ok {
		return nil, path, invalid(path, "required field missing")
	}
	if kindOf(raw) == "null" {
		return nil, path, invalid(path, "must not be null")
	}
	return raw, path, nil
}

func (f fields) with(name string, fn func(raw json.RawMessage, path string) error) error {
	raw, path, err := f.get(name)
	if err != nil {
		return err
	}
	return fn(raw, path)
}

func (f fields) str(name string) (string, error) {
	raw, path, err := f.get(name)
	if err != nil {
		return "", err
	}
	return f.d.str(raw, path)
}

func (f fields) int32(name string) (int32, error) {
	raw, path, err := f.get(name)
	if err != nil {
		return 0, err
	}
	return f.d.int32(raw, path)
}

func (f fields) int64(name string) (int64, error) {
	raw, path, err := f.get(name)
	if err != nil {
		return 0, err
	}
	return f.d.int64(raw, path)
}

func (f fields) float64(name string) (float64, error) {
	raw, path, err := f.get(name)
	if err != nil {
		return 0, err
	}
	return f.d.float64(raw, path)
}

func (d decoder) str(raw json.RawMessage, path string) (string, error) {
	if k := kindOf(raw); k != "string" {
		return "", invalid(path, "expected string, got %s", k)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", invalid(path, "malformed string: %v", err)
	}
	return s, nil
}

func (d decoder) bool(raw json.RawMessage, path string) (bool, error) {
	switch string(bytes.TrimSpace(raw)) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, invalid(path, "expected boolean, got %s", kindOf(raw))
}

func (d decoder) integer(raw json.RawMessage, path string, bits int) (int64, error) {
	if k := kindOf(raw); k != "number" {
		return 0, invalid(path, "expected integer, got %s", k)
	}
	lit := string(bytes.TrimSpace(raw))
	n, err := strconv.ParseInt(lit, 10, bits)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, invalid(path, "%s overflows %d-bit integer", lit, bits)
		}
		return 0, invalid(path, "expected integer, got %s", lit)
	}
	return n, nil
}

func (d decoder) int32(raw json.RawMessage, path string) (int32, error) {
	n, err := d.integer(raw, path, 32)
	return int32(n), err
}

func (d decoder) int64(raw json.RawMessage, path string) (int64, error) {
	return d.integer(raw, path, 64)
}

func (d decoder) float64(raw json.RawMessage, path string) (float64, error) {
	if k := kindOf(raw); k != "number" {
		return 0, invalid(path, "expected number, got %s", k)
	}
	lit := string(bytes.TrimSpace(raw))
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return 0, invalid(path, "%s overflows 64-bit float", lit)
	}
	return f, nil
}

func (d decoder) array(raw json.RawMessage, path string) ([]json.RawMessage, error) {
	if k := kindOf(raw); k != "array" {
		return nil, invalid(path, "expected array, got %s", k)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, invalid(path, "malformed array: %v", err)
	}
	return items, nil
}

func (d decoder) strings(raw json.RawMessage, path string) ([]string, error) {
	items, err := d.array(raw, path)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(items))
	for i, item := range items {
		if out[i], err = d.str(item, index(path, i)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (d decoder) bools(raw json.RawMessage, path string) ([]bool, error) {
	items, err := d.array(raw, path)
	if err != nil {
		return nil, err
	}
	out := make([]bool, len(items))
	for i, item := range items {
		if out[i], err = d.bool(item, index(path, i)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (d decoder) int32s(raw json.RawMessage, path string) ([]int32, error) {
	items, err := d.array(raw, path)
	if err != nil {
		return nil, err
	}
	out := make([]int32, len(items))
	for i, item := range items {
		if out[i], err = d.int32(item, index(path, i)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (d decoder) payload(raw json.RawMessage, path string) (Payload, error) {
	var p Payload
	f, err := d.object(raw, path)
	if err != nil {
		return p, err
	}
	if err := f.only("user", "items"); err != nil {
		return p, err
	}
	if err := f.with("user", func(raw json.RawMessage, path string) (err error) {
		p.User, err = d.user(raw, path)
		return err
	}); err != nil {
		return p, err
	}
	err = f.with("items", func(raw json.RawMessage, path string) error {
		items, err := d.array(raw, path)
		if err != nil {
			return err
		}
		p.Items = make([]Item, len(items))
		for i, item := range items {
			if p.Items[i], err = d.item(item, index(path, i)); err != nil {
				return err
			}
		}
		return nil
	})
	return p, err
}

func (d decoder) user(raw json.RawMessage, path string) (User, error) {
	var u User
	f, err := d.object(raw, path)
	if err != nil {
		return u, err
	}
	if err := f.only("id", "name", "prefs"); err != nil {
		return u, err
	}
	if u.ID, err = f.int64("id"); err != nil {
		return u, err
	}
	if u.Name, err = f.str("name"); err != nil {
		return u, err
	}
	err = f.with("prefs", func(raw json.RawMessage, path string) (err error) {
		u.Prefs, err = d.prefs(raw, path)
		return err
	})
	return u, err
}

func (d decoder) prefs(raw json.RawMessage, path string) (UserPrefs, error) {
	var p UserPrefs
	f, err := d.object(raw, path)
	if err != nil {
		return p, err
	}
	if err := f.only("lang", "tz", "flags"); err != nil {
		return p, err
	}
	if p.Lang, err = f.str("lang"); err != nil {
		return p, err
	}
	if p.TZ, err = f.str("tz"); err != nil {
		return p, err
	}
	err = f.with("flags", func(raw json.RawMessage, path string) (err error) {
		p.Flags, err = d.bools(raw, path)
		return err
	})
	return p, err
}

func (d decoder) item(raw json.RawMessage, path string) (Item, error) {
	var it Item
	f, err := d.object(raw, path)
	if err != nil {
		return it, err
	}
	if err := f.only("sku", "qty", "price"); err != nil {
		return it, err
	}
	if it.SKU, err = f.str("sku"); err != nil {
		return it, err
	}
	if it.SKU == "" {
		return it, invalid(join(path, "sku"), "must not be empty")
	}
	if it.Qty, err = f.int32("qty"); err != nil {
		return it, err
	}
	it.Price, err = f.float64("price")
	return it, err
}

func (d decoder) metadata(raw json.RawMessage, path string) (Metadata, error) {
	var m Metadata
	f, err := d.object(raw, path)
	if err != nil {
		return m, err
	}
	if err := f.only("trace", "ts", "headers"); err != nil {
		return m, err
	}
	if m.Trace, err = f.str("trace"); err != nil {
		return m, err
	}
	if m.TS, err = f.int64("ts"); err != nil {
		return m, err
	}
	err = f.with("headers", func(raw json.RawMessage, path string) error {
		hf, err := d.object(raw, path)
		if err != nil {
			return err
		}
		if err := hf.only("ua", "accept"); err != nil {
			return err
		}
		if m.Headers.UA, err = hf.str("ua"); err != nil {
			return err
		}
		return hf.with("accept", func(raw json.RawMessage, path string) (err error) {
			m.Headers.Accept, err = d.strings(raw, path)
			return err
		})
	})
	return m, err
}

// nestedElement decodes {level, data} and resolves the variant. Both shapes
// are tried so that a data object satisfying both is reported as ambiguous
// instead of silently taking the first.
func (d decoder) nestedElement(raw json.RawMessage, path string) (NestedElement, error) {
	f, err := d.object(raw, path)
	if err != nil {
		return NestedElement{}, err
	}
	if err := f.only("level", "data"); err != nil {
		return NestedElement{}, err
	}
	level, err := f.int32("level")
	if err != nil {
		return NestedElement{}, err
	}
	data, dataPath, err := f.get("data")
	if err != nil {
		return NestedElement{}, err
	}
	if k := kindOf(data); k != "object" {
		return NestedElement{}, invalid(dataPath, "expected object, got %s", k)
	}

	l1, err1 := d.level1(data, dataPath)
	l2, err2 := d.level2(data, dataPath)
	switch {
	case err1 == nil && err2 == nil:
		return NestedElement{}, invalid(dataPath, "ambiguous shape: matches both {foo, bar} and {numbers, obj}")
	case err1 == nil:
		return NewLevel1Element(level, l1), nil
	case err2 == nil:
		return NewLevel2Element(level, l2), nil
	}
	return NestedElement{}, invalid(dataPath, "matches neither {foo, bar} (%v) nor {numbers, obj} (%v)", err1, err2)
}

func (d decoder) level1(raw json.RawMessage, path string) (Level1Data, error) {
	var l Level1Data
	f, err := d.object(raw, path)
	if err != nil {
		return l, err
	}
	if err := f.only("foo", "bar"); err != nil {
		return l, err
	}
	if err := f.with("foo", func(raw json.RawMessage, path string) (err error) {
		l.Foo, err = d.int32s(raw, path)
		return err
	}); err != nil {
		return l, err
	}
	err = f.with("bar", func(raw json.RawMessage, path string) error {
		bf, err := d.object(raw, path)
		if err != nil {
			return err
		}
		if err := bf.only("k1", "k2"); err != nil {
			return err
		}
		if l.Bar.K1, err = bf.str("k1"); err != nil {
			return err
		}
		l.Bar.K2, err = bf.str("k2")
		return err
	})
	return l, err
}

func (d decoder) level2(raw json.RawMessage, path string) (Level2Data, error) {
	var l Level2Data
	f, err := d.object(raw, path)
	if err != nil {
		return l, err
	}
	if err := f.only("numbers", "obj"); err != nil {
		return l, err
	}
	if err := f.with("numbers", func(raw json.RawMessage, path string) (err error) {
		l.Numbers, err = d.int32s(raw, path)
		return err
	}); err != nil {
		return l, err
	}
	err = f.with("obj", func(raw json.RawMessage, path string) error {
		items, err := d.array(raw, path)
		if err != nil {
			return err
		}
		l.Obj = make([]XObj, len(items))
		for i, item := range items {
			xf, err := d.object(item, index(path, i))
			if err != nil {
				return err
			}
			if err := xf.only("x"); err != nil {
				return err
			}
			if l.Obj[i].X, err = xf.int32("x"); err != nil {
				return err
			}
		}
		return nil
	})
	return l, err
}

// kindOf names the JSON kind of a raw value from its first byte.
func kindOf(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "nothing"
	}
	switch raw[0] {
	case '{':
		return "object"
	case '[':
		return "array"
	case '"':
		return "string"
	case 't', 'f':
		return "boolean"
	case 'n':
		return "null"
	default:
		return "number"
	}
}

func join(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

func index(path string, i int) string {
	return path + "[" + strconv.Itoa(i) + "]"
}
