package jsonvalue

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// indexThreshold is the object size above which duplicate keys are detected
// through a map instead of a linear scan.
const indexThreshold = 16

// Parse decodes exactly one JSON value from data. Trailing non-whitespace
// content is an error. When an object repeats a key, the last occurrence
// wins and keeps the position of the first.
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := parseValue(dec)
	if err != nil {
		return Value{}, err
	}
	if _, err := dec.Token(); err != io.EOF {
		if err == nil {
			return Value{}, errors.New("jsonvalue: unexpected data after top-level value")
		}
		return Value{}, err
	}
	return v, nil
}

func parseValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return Value{}, io.ErrUnexpectedEOF
		}
		return Value{}, err
	}
	return valueFromToken(dec, tok)
}

func valueFromToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case nil:
		return Value{}, nil
	case bool:
		return NewBool(t), nil
	case json.Number:
		return Value{kind: Number, text: string(t)}, nil
	case string:
		return NewString(t), nil
	case json.Delim:
		switch t {
		case '[':
			return parseArray(dec)
		case '{':
			return parseObject(dec)
		}
	}
	return Value{}, fmt.Errorf("jsonvalue: unexpected token %v", tok)
}

func parseArray(dec *json.Decoder) (Value, error) {
	items := []Value{}
	for dec.More() {
		item, err := parseValue(dec)
		if err != nil {
			return Value{}, err
		}
		items = append(items, item)
	}
	if _, err := dec.Token(); err != nil { // ']'
		return Value{}, err
	}
	return Value{kind: Array, items: items}, nil
}

func parseObject(dec *json.Decoder) (Value, error) {
	members := []Member{}
	var index map[string]int

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Value{}, err
		}
		key, ok := tok.(string)
		if !ok {
			return Value{}, fmt.Errorf("jsonvalue: unexpected object key %v", tok)
		}
		val, err := parseValue(dec)
		if err != nil {
			return Value{}, err
		}

		pos := -1
		if index != nil {
			if i, found := index[key]; found {
				pos = i
			}
		} else {
			for i := range members {
				if members[i].Key == key {
					pos = i
					break
				}
			}
		}
		if pos >= 0 {
			members[pos].Value = val
			continue
		}

		members = append(members, Member{Key: key, Value: val})
		if index != nil {
			index[key] = len(members) - 1
		} else if len(members) > indexThreshold {
			index = make(map[string]int, len(members)*2)
			for i, m := range members {
				index[m.Key] = i
			}
		}
	}
	if _, err := dec.Token(); err != nil { // '}'
		return Value{}, err
	}
	return Value{kind: Object, members: members}, nil
}
