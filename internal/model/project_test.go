package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"gotest.tools/v3/assert"

	"jsonbench-api/pkg/jsonvalue"
)

// generic re-parses v's JSON encoding as an untyped tree.
func generic(t *testing.T, v interface{}) jsonvalue.Value {
	t.Helper()
	out, err := json.Marshal(v)
	assert.NilError(t, err)
	tree, err := jsonvalue.Parse(out)
	assert.NilError(t, err)
	return tree
}

// assertRoundTrip checks that projecting p and re-parsing the serialized
// trees gives the same values as serializing the typed sections directly.
func assertRoundTrip(t *testing.T, p *HeavyPayload) {
	t.Helper()
	proj := Project(p)

	sections := []struct {
		name      string
		projected jsonvalue.Value
		typed     interface{}
	}{
		{"payload", proj.Payload, p.Payload},
		{"metadata", proj.Metadata, p.Metadata},
		{"nested_array", proj.NestedArray, p.NestedArray},
	}
	for _, s := range sections {
		got := generic(t, s.projected)
		want := generic(t, s.typed)
		assert.Assert(t, got.Equal(want), "%s: projected %s, typed %s", s.name, got, want)
	}
}

func TestProjectExample(t *testing.T) {
	p, err := ParseHeavyPayload([]byte(examplePayload), ParseOptions{})
	assert.NilError(t, err)

	proj := Project(p)
	assert.Equal(t, proj.Payload.String(),
		`{"user":{"id":1,"name":"a","prefs":{"lang":"en","tz":"UTC","flags":[true]}},"items":[{"sku":"X1","qty":2,"price":9.99}]}`)
	assert.Equal(t, proj.Metadata.String(),
		`{"trace":"t1","ts":1000,"headers":{"ua":"curl","accept":["*/*"]}}`)
	assert.Equal(t, proj.NestedArray.String(),
		`[{"level":1,"data":{"foo":[1,2],"bar":{"k1":"a","k2":"b"}}}]`)
	assertRoundTrip(t, p)
}

func TestProjectMatchesInput(t *testing.T) {
	for name, input := range map[string]string{"example": examplePayload, "mixed": mixedPayload} {
		t.Run(name, func(t *testing.T) {
			p, err := ParseHeavyPayload([]byte(input), ParseOptions{Strict: true})
			assert.NilError(t, err)
			raw, err := jsonvalue.Parse([]byte(input))
			assert.NilError(t, err)

			proj := Project(p)
			for key, projected := range map[string]jsonvalue.Value{
				"payload":      proj.Payload,
				"metadata":     proj.Metadata,
				"nested_array": proj.NestedArray,
			} {
				section, ok := raw.Get(key)
				assert.Assert(t, ok)
				assert.Assert(t, projected.Equal(section), "%s: got %s want %s", key, projected, section)
			}
			assertRoundTrip(t, p)
		})
	}
}

// randomPayload builds a valid payload from r.
func randomPayload(r *rand.Rand) *HeavyPayload {
	str := func() string {
		const alphabet = "abcXYZ019 \"\\/\n\t\u00e9 "
		runes := []rune(alphabet)
		n := r.Intn(8)
		out := make([]rune, n)
		for i := range out {
			out[i] = runes[r.Intn(len(runes))]
		}
		return string(out)
	}
	ints := func() []int32 {
		out := make([]int32, r.Intn(5))
		for i := range out {
			out[i] = int32(r.Uint32())
		}
		return out
	}

	p := &HeavyPayload{
		Payload: Payload{
			User: User{
				ID:   r.Int63() - r.Int63(),
				Name: str(),
				Prefs: UserPrefs{Lang: str(), TZ: str(), Flags: make([]bool, r.Intn(4))},
			},
			Items: make([]Item, r.Intn(4)),
		},
		Metadata: Metadata{
			Trace:   str(),
			TS:      r.Int63(),
			Headers: MetadataHeaders{UA: str(), Accept: make([]string, r.Intn(3))},
		},
		NestedArray: make([]NestedElement, r.Intn(4)),
		Tags:        make([]string, r.Intn(3)),
	}
	for i := range p.Payload.User.Prefs.Flags {
		p.Payload.User.Prefs.Flags[i] = r.Intn(2) == 0
	}
	for i := range p.Payload.Items {
		p.Payload.Items[i] = Item{
			SKU:   "S" + str(),
			Qty:   int32(r.Uint32()),
			Price: (r.Float64() - 0.5) * math.Pow(10, float64(r.Intn(40)-20)),
		}
	}
	for i := range p.Metadata.Headers.Accept {
		p.Metadata.Headers.Accept[i] = str()
	}
	for i := range p.NestedArray {
		if r.Intn(2) == 0 {
			p.NestedArray[i] = NewLevel1Element(int32(r.Uint32()), Level1Data{Foo: ints(), Bar: BarData{K1: str(), K2: str()}})
			continue
		}
		objs := make([]XObj, r.Intn(3))
		for j := range objs {
			objs[j].X = int32(r.Uint32())
		}
		p.NestedArray[i] = NewLevel2Element(int32(r.Uint32()), Level2Data{Numbers: ints(), Obj: objs})
	}
	for i := range p.Tags {
		p.Tags[i] = str()
	}
	return p
}

func TestProjectRoundTripProperty(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		p := randomPayload(r)
		t.Run(fmt.Sprintf("case-%d", i), func(t *testing.T) {
			// every generated payload must also survive validation
			body, err := json.Marshal(p)
			assert.NilError(t, err)
			parsed, err := ParseHeavyPayload(body, ParseOptions{Strict: true})
			assert.NilError(t, err)

			assertRoundTrip(t, p)
			assertRoundTrip(t, parsed)
			assert.Assert(t, Project(p).Payload.Equal(Project(parsed).Payload))
		})
	}
}

func TestProjectPanicsOnDefect(t *testing.T) {
	testCases := []struct {
		name string
		p    *HeavyPayload
		path string
	}{
		{name: "nil payload", p: nil, path: ""},
		{
			name: "non-finite price",
			p:    &HeavyPayload{Payload: Payload{Items: []Item{{SKU: "x"}, {SKU: "y", Price: math.NaN()}}}},
			path: "payload.items[1].price",
		},
		{
			name: "variant without data",
			p:    &HeavyPayload{NestedArray: []NestedElement{{Kind: NestedLevel2}}},
			path: "nested_array[0]",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			defer func() {
				rec := recover()
				perr, ok := rec.(*ProjectionError)
				assert.Assert(t, ok, "recovered %v", rec)
				assert.Equal(t, perr.Path, tc.path)
				assert.Assert(t, errors.Unwrap(perr) != nil)
			}()
			Project(tc.p)
		})
	}
}

func TestDocumentCopiesTags(t *testing.T) {
	p, err := ParseHeavyPayload([]byte(examplePayload), ParseOptions{})
	assert.NilError(t, err)
	doc := p.Document()
	p.Tags[0] = "changed"
	assert.DeepEqual(t, doc.Tags, []string{"a", "b"})
}
