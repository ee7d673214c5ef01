package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New("test error")
	require.NotNil(t, err)
	assert.Equal(t, "test error", err.Error())
}

func TestWrapPreservesSentinel(t *testing.T) {
	err := Wrap(ErrNotFound, "entity E-123")
	assert.Contains(t, err.Error(), "entity E-123")
	assert.True(t, Is(err, ErrNotFound))
	assert.False(t, Is(err, ErrDuplicate))
}

func TestSentinelClassifiers(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		checker func(error) bool
	}{
		{"not found", Wrap(ErrNotFound, "ctx"), IsNotFound},
		{"duplicate", Wrap(ErrDuplicate, "ctx"), IsDuplicate},
		{"malformed", Wrap(ErrMalformed, "ctx"), IsMalformed},
		{"archived", Wrap(ErrArchived, "ctx"), IsArchived},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.checker(tt.err))
			assert.False(t, tt.checker(nil))
			assert.False(t, tt.checker(New("unrelated")))
		})
	}
}

func TestNewNotFound(t *testing.T) {
	err := NewNotFound("edge %s missing", "EDG-42")
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "EDG-42")
}

func TestNewMalformed(t *testing.T) {
	err := NewMalformed("weight %f out of range", 1.5)
	assert.True(t, IsMalformed(err))
	assert.Contains(t, err.Error(), "out of range")
}

func TestWrapNestedChain(t *testing.T) {
	base := Wrap(ErrMalformed, "bad weight vector")
	err := Wrap(base, "observe edge")
	err = WithHint(err, "weights must be in [0,1]")
	err = Wrap(err, "ingest batch")

	assert.True(t, Is(err, ErrMalformed))
	assert.Contains(t, err.Error(), "ingest batch")
	assert.Contains(t, err.Error(), "observe edge")

	hints := GetAllHints(err)
	assert.Contains(t, hints, "weights must be in [0,1]")
}

func TestStackTrace(t *testing.T) {
	err := New("with stack")

	detailed := fmt.Sprintf("%+v", err)
	assert.Contains(t, detailed, "errors_test.go")
}

func TestNilHandling(t *testing.T) {
	assert.Nil(t, Wrap(nil, "context"))
	assert.Nil(t, Wrapf(nil, "context %d", 1))
	assert.Nil(t, WithStack(nil))
	assert.Nil(t, WithHint(nil, "hint"))
	assert.False(t, IsNotFound(nil))
}

func ExampleWrap() {
	baseErr := New("disk full")
	err := Wrap(baseErr, "failed to persist snapshot")
	fmt.Println(err)
	// Output: failed to persist snapshot: disk full
}
