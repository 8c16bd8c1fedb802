package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseTruthy(t *testing.T) {
	tests := []struct {
		name string
		resp *Result
		want bool
	}{
		{"data no error", NewResponse[any]([]int{1}), true},
		{"empty data", NewResponse[any]([]int{}), false},
		{"nil data", NewResponse[any](nil), false},
		{"string error", NewResponse[any]("x", WithError("failed")), false},
		{"error value", NewResponse[any]("x", WithError(errors.New("e"))), false},
		{"empty string error is falsy", NewResponse[any]("x", WithError("")), true},
		{"zero int", NewResponse[any](0), false},
		{"map data", NewResponse[any](map[string]any{"a": 1}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.resp.Truthy())
			assert.Equal(t, tt.want, Truthy(tt.resp))
		})
	}

	var nilResp *Response[int]
	assert.False(t, nilResp.Truthy())
}

func TestResponseAccessors(t *testing.T) {
	h := Header{"server": "test"}
	r := NewResponse([]string{"a", "b"}, WithCode(200), WithHeader(h))

	assert.Equal(t, []string{"a", "b"}, r.Data())
	assert.Equal(t, 200, r.Code())
	assert.Equal(t, h, r.Header())
	assert.Nil(t, r.Err())
	assert.Equal(t, map[string]any{
		"data":   []string{"a", "b"},
		"code":   200,
		"header": h,
		"error":  nil,
	}, r.Dict())
}

func TestResponseThrow(t *testing.T) {
	assert.NoError(t, NewResponse(1).Throw())

	cause := Errorf(ErrSessionFinding, "no index")
	assert.Same(t, cause, NewResponse(1, WithError(cause)).Throw())

	err := NewResponse(1, WithError("bad request")).Throw()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoSQL)
	assert.Contains(t, err.Error(), "bad request")
}

func TestResponseDelegatesToData(t *testing.T) {
	r := NewResponse([]any{"x", 2, "z"})
	assert.Equal(t, 3, r.Len())
	assert.True(t, r.Contains(2))
	assert.False(t, r.Contains("y"))

	v, err := r.Index(0)
	require.NoError(t, err)
	assert.Equal(t, "x", v)

	v, err = r.Index(-1)
	require.NoError(t, err)
	assert.Equal(t, "z", v)

	_, err = r.Index(3)
	assert.Error(t, err)

	m := NewResponse(map[string]int{"k": 1})
	assert.Equal(t, 1, m.Len())
	assert.True(t, m.Contains("k"))
	assert.False(t, m.Contains(1))
	_, err = m.Index(0)
	assert.ErrorIs(t, err, ErrNotIndexable)

	s := NewResponse("hello")
	assert.True(t, s.Contains("ell"))
	assert.Equal(t, 5, s.Len())

	assert.Equal(t, 0, NewResponse(42).Len())
}

func TestResponseAny(t *testing.T) {
	r := NewResponse([]int{1}, WithCode(7)).Any()
	assert.Equal(t, []int{1}, r.Data())
	assert.Equal(t, 7, r.Code())
}

func TestResponseStringUsesVendor(t *testing.T) {
	t.Cleanup(func() { SetVendor("") })

	SetVendor("AcmeDB")
	assert.Contains(t, NewResponse(1).String(), "<AcmeDB Response object>")

	SetVendor("")
	assert.Equal(t, DefaultVendor, Vendor())
}
