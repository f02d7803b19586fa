package model

// examplePayload is the worked example used across the model tests.
const examplePayload = `{
	"payload": {
		"user": {"id": 1, "name": "a", "prefs": {"lang": "en", "tz": "UTC", "flags": [true]}},
		"items": [{"sku": "X1", "qty": 2, "price": 9.99}]
	},
	"metadata": {"trace": "t1", "ts": 1000, "headers": {"ua": "curl", "accept": ["*/*"]}},
	"nested_array": [{"level": 1, "data": {"foo": [1, 2], "bar": {"k1": "a", "k2": "b"}}}],
	"tags": ["a", "b"]
}`

// mixedPayload carries both nested element shapes and a few edge values.
const mixedPayload = `{
	"payload": {
		"user": {"id": 9223372036854775807, "name": "", "prefs": {"lang": "", "tz": "Europe/Berlin", "flags": []}},
		"items": [
			{"sku": "A", "qty": 0, "price": 0},
			{"sku": "B", "qty": -3, "price": 1e-7},
			{"sku": "C", "qty": 2147483647, "price": 123456.789}
		]
	},
	"metadata": {"trace": "", "ts": -1, "headers": {"ua": "bench/1.0", "accept": []}},
	"nested_array": [
		{"level": 1, "data": {"foo": [], "bar": {"k1": "", "k2": "z"}}},
		{"level": 2, "data": {"numbers": [-2147483648, 5], "obj": [{"x": 1}, {"x": -1}]}}
	],
	"tags": []
}`
