package worksheet

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeKeepsOrder(t *testing.T) {
	doc, err := Decode(strings.NewReader(`{"z":1,"a":{"q":2,"b":[1,2]},"m":null}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "a", "m"}, doc.Keys())

	raw, ok := doc.Get("a")
	require.True(t, ok)
	assert.Equal(t, `{"q":2,"b":[1,2]}`, string(raw))
	assert.Equal(t, `{"z":1,"a":{"q":2,"b":[1,2]},"m":null}`, mustJSON(t, doc))
}

func TestDecodeDuplicateKey(t *testing.T) {
	doc := mustParse(t, `{"a":1,"b":2,"a":3}`)
	assert.Equal(t, []string{"a", "b"}, doc.Keys())
	raw, _ := doc.Get("a")
	assert.Equal(t, "3", string(raw))
}

func TestDecodeRejectsNonObject(t *testing.T) {
	for _, src := range []string{`[1,2]`, `"x"`, `3`, `null`} {
		_, err := Parse([]byte(src))
		assert.True(t, errors.Is(err, ErrNotObject), src)
	}
}

func TestDecodeErrors(t *testing.T) {
	_, err := Parse([]byte(``))
	assert.Error(t, err)

	_, err = Parse([]byte(`{"a":`))
	assert.Error(t, err)

	_, err = Parse([]byte(`{"a":1} {"b":2}`))
	assert.True(t, errors.Is(err, ErrTrailingData))

	_, err = Parse([]byte("{\"a\":1}\n\n"))
	assert.NoError(t, err)
}

func TestDocumentSetDelete(t *testing.T) {
	doc := NewDocument()
	require.NoError(t, doc.SetValue("a", 1))
	require.NoError(t, doc.SetValue("b", "two"))
	require.NoError(t, doc.SetValue("c", []int{3}))
	require.NoError(t, doc.SetValue("a", 10))

	assert.Equal(t, `{"a":10,"b":"two","c":[3]}`, mustJSON(t, doc))

	doc.Delete("b")
	doc.Delete("missing")
	assert.Equal(t, []string{"a", "c"}, doc.Keys())
	raw, ok := doc.Get("c")
	require.True(t, ok)
	assert.Equal(t, "[3]", string(raw))

	require.NoError(t, doc.SetValue("b", true))
	assert.Equal(t, `{"a":10,"c":[3],"b":true}`, mustJSON(t, doc))
}

func TestDocumentCloneIsIndependent(t *testing.T) {
	doc := mustParse(t, `{"a":1,"b":2,"c":3}`)
	c := doc.Clone()
	c.Delete("b")
	require.NoError(t, c.SetValue("d", 4))

	assert.Equal(t, []string{"a", "b", "c"}, doc.Keys())
	assert.Equal(t, []string{"a", "c", "d"}, c.Keys())
}

func TestZeroDocument(t *testing.T) {
	var doc Document
	doc.Set("k", []byte(`"v"`))
	assert.Equal(t, 1, doc.Len())
	assert.Equal(t, `{}`, mustJSON(t, NewDocument()))
}
