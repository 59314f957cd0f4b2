package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_Roundtrip(t *testing.T) {
	raw := `{"answer":"ok","results":[{"url":"http://x","score":0.9}],"count":2,"partial":false}`

	var v Value
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	assert.Equal(t, KindObject, v.Kind())

	data, err := json.Marshal(v)
	require.NoError(t, err)

	var back Value
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, v.ToGo(), back.ToGo())
}

func TestValue_At(t *testing.T) {
	v := Object(map[string]Value{
		"result": Object(map[string]Value{
			"urls": Array(String("http://x"), String("http://y")),
		}),
		"results": Array(
			Object(map[string]Value{"url": String("http://acme.example/widget")}),
		),
		"answer": String("42"),
	})

	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"result.urls[0]", "http://x", true},
		{"result.urls[1]", "http://y", true},
		{"results[0].url", "http://acme.example/widget", true},
		{"answer", "42", true},
		{"result.urls[5]", "", false},
		{"missing.field", "", false},
		{"results[0].title", "", false},
		{"answer[0]", "", false},
		{"results[x].url", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := v.At(tt.path)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				s, _ := got.AsString()
				assert.Equal(t, tt.want, s)
			}
		})
	}
}

func TestValue_At_EmptyPathReturnsSelf(t *testing.T) {
	v := String("hello")
	got, ok := v.At("")
	require.True(t, ok)
	s, _ := got.AsString()
	assert.Equal(t, "hello", s)
}

func TestValue_Accessors(t *testing.T) {
	assert.True(t, Null().IsNull())

	b, ok := Bool(true).AsBool()
	assert.True(t, ok)
	assert.True(t, b)

	n, ok := Number(1.5).AsNumber()
	assert.True(t, ok)
	assert.Equal(t, 1.5, n)

	_, ok = String("x").AsNumber()
	assert.False(t, ok)

	arr := Array(Int(1), Int(2))
	assert.Equal(t, 2, arr.Len())
	_, ok = arr.Index(2)
	assert.False(t, ok)

	obj := Object(map[string]Value{"a": Int(1)})
	assert.Equal(t, []string{"a"}, obj.Keys())
}

func TestValue_Text(t *testing.T) {
	assert.Equal(t, "plain", String("plain").Text())
	assert.Equal(t, "true", Bool(true).Text())
	assert.Equal(t, "3", Int(3).Text())
	assert.Equal(t, "", Null().Text())
	assert.Equal(t, `["a"]`, Array(String("a")).Text())
}
