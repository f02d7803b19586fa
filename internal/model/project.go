package model

import (
	"jsonbench-api/pkg/jsonvalue"
)

// Projection is the storage form of a HeavyPayload: the three document
// sections as generic JSON trees.
type Projection struct {
	Payload     jsonvalue.Value
	Metadata    jsonvalue.Value
	NestedArray jsonvalue.Value
}

// Project converts a validated payload into generic JSON trees, keeping the
// field names and nesting of the typed encoding. It never fails for a payload
// produced by ParseHeavyPayload; any failure is a bug and panics with a
// *ProjectionError.
func Project(p *HeavyPayload) Projection {
	if p == nil {
		panic(&ProjectionError{Path: "", Err: errNilPayload})
	}
	return Projection{
		Payload:     projectPayload(&p.Payload),
		Metadata:    projectMetadata(&p.Metadata),
		NestedArray: projectNested(p.NestedArray),
	}
}

// Document projects the payload and copies its tags into a HeavyDocument.
func (p *HeavyPayload) Document() HeavyDocument {
	proj := Project(p)
	return HeavyDocument{
		Payload:     proj.Payload,
		Metadata:    proj.Metadata,
		NestedArray: proj.NestedArray,
		Tags:        cloneStrings(p.Tags),
	}
}

func projectPayload(p *Payload) jsonvalue.Value {
	items := make([]jsonvalue.Value, len(p.Items))
	for i, it := range p.Items {
		items[i] = jsonvalue.NewObject(
			member("sku", jsonvalue.NewString(it.SKU)),
			member("qty", jsonvalue.NewInt(int64(it.Qty))),
			member("price", mustFloat(index("payload.items", i)+".price", it.Price)),
		)
	}
	flags := make([]jsonvalue.Value, len(p.User.Prefs.Flags))
	for i, f := range p.User.Prefs.Flags {
		flags[i] = jsonvalue.NewBool(f)
	}
	return jsonvalue.NewObject(
		member("user", jsonvalue.NewObject(
			member("id", jsonvalue.NewInt(p.User.ID)),
			member("name", jsonvalue.NewString(p.User.Name)),
			member("prefs", jsonvalue.NewObject(
				member("lang", jsonvalue.NewString(p.User.Prefs.Lang)),
				member("tz", jsonvalue.NewString(p.User.Prefs.TZ)),
				member("flags", jsonvalue.NewArray(flags...)),
			)),
		)),
		member("items", jsonvalue.NewArray(items...)),
	)
}

func projectMetadata(m *Metadata) jsonvalue.Value {
	return jsonvalue.NewObject(
		member("trace", jsonvalue.NewString(m.Trace)),
		member("ts", jsonvalue.NewInt(m.TS)),
		member("headers", jsonvalue.NewObject(
			member("ua", jsonvalue.NewString(m.Headers.UA)),
			member("accept", stringArray(m.Headers.Accept)),
		)),
	)
}

func projectNested(elems []NestedElement) jsonvalue.Value {
	out := make([]jsonvalue.Value, len(elems))
	for i, e := range elems {
		path := index("nested_array", i)
		var data jsonvalue.Value
		switch {
		case e.Kind == NestedLevel1 && e.Level1 != nil:
			data = jsonvalue.NewObject(
				member("foo", intArray(e.Level1.Foo)),
				member("bar", jsonvalue.NewObject(
					member("k1", jsonvalue.NewString(e.Level1.Bar.K1)),
					member("k2", jsonvalue.NewString(e.Level1.Bar.K2)),
				)),
			)
		case e.Kind == NestedLevel2 && e.Level2 != nil:
			objs := make([]jsonvalue.Value, len(e.Level2.Obj))
			for j, o := range e.Level2.Obj {
				objs[j] = jsonvalue.NewObject(member("x", jsonvalue.NewInt(int64(o.X))))
			}
			data = jsonvalue.NewObject(
				member("numbers", intArray(e.Level2.Numbers)),
				member("obj", jsonvalue.NewArray(objs...)),
			)
		default:
			panic(&ProjectionError{Path: path, Err: errUnknownVariant})
		}
		out[i] = jsonvalue.NewObject(
			member("level", jsonvalue.NewInt(int64(e.Level))),
			member("data", data),
		)
	}
	return jsonvalue.NewArray(out...)
}

func member(key string, v jsonvalue.Value) jsonvalue.Member {
	return jsonvalue.Member{Key: key, Value: v}
}

func mustFloat(path string, f float64) jsonvalue.Value {
	v, err := jsonvalue.NewFloat(f)
	if err != nil {
		panic(&ProjectionError{Path: path, Err: err})
	}
	return v
}

func intArray(ns []int32) jsonvalue.Value {
	out := make([]jsonvalue.Value, len(ns))
	for i, n := range ns {
		out[i] = jsonvalue.NewInt(int64(n))
	}
	return jsonvalue.NewArray(out...)
}

func stringArray(ss []string) jsonvalue.Value {
	out := make([]jsonvalue.Value, len(ss))
	for i, s := range ss {
		out[i] = jsonvalue.NewString(s)
	}
	return jsonvalue.NewArray(out...)
}

func cloneStrings(ss []string) []string {
	out := make([]string, len(ss))
	copy(out, ss)
	return out
}
