package repository

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"gotest.tools/v3/assert"

	"jsonbench-api/pkg/jsonvalue"
)

// bsonRoundTrip encodes v the way InsertHeavy does and decodes it the way
// GetHeavyByID does.
func bsonRoundTrip(t *testing.T, v jsonvalue.Value) jsonvalue.Value {
	t.Helper()
	converted, err := toBSON(v)
	assert.NilError(t, err)

	raw, err := bson.Marshal(bson.D{{Key: "v", Value: converted}})
	assert.NilError(t, err)

	back, err := fromBSON(bson.Raw(raw).Lookup("v"))
	assert.NilError(t, err)
	return back
}

func TestBSONConversionRoundTrip(t *testing.T) {
	testCases := []string{
		`null`,
		`true`,
		`"text with \"quotes\" and é"`,
		`0`,
		`-9223372036854775808`,
		`9.99`,
		`1e-7`,
		`[]`,
		`{}`,
		`[1,"two",null,[false],{"k":[]}]`,
		`{"z":1,"a":{"nested":[1.5,2]},"m":null}`,
	}
	for _, tc := range testCases {
		t.Run(tc, func(t *testing.T) {
			v, err := jsonvalue.Parse([]byte(tc))
			assert.NilError(t, err)

			back := bsonRoundTrip(t, v)
			assert.Assert(t, back.Equal(v), "got %s want %s", back, v)
		})
	}
}

func TestBSONConversionKeepsMemberOrder(t *testing.T) {
	v, err := jsonvalue.Parse([]byte(`{"z":1,"a":2,"m":{"y":true,"b":false}}`))
	assert.NilError(t, err)

	back := bsonRoundTrip(t, v)
	assert.Equal(t, back.String(), `{"z":1,"a":2,"m":{"y":true,"b":false}}`)
}

func TestBSONConversionRejectsHugeNumbers(t *testing.T) {
	v, err := jsonvalue.Parse([]byte(`[1e400]`))
	assert.NilError(t, err)

	_, err = toBSON(v)
	assert.ErrorContains(t, err, "not representable in BSON")
}
