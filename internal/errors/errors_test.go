package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructorsSetKindAndOperation(t *testing.T) {
	underlying := errors.New("boom")
	cases := []struct {
		name string
		err  *CoreError
		kind Kind
	}{
		{"io", IO("read", underlying), KindIO},
		{"parse", Parse("parse", underlying), KindParse},
		{"extraction", Extraction("extract", underlying), KindExtraction},
		{"storage", Storage("persist", underlying), KindStorage},
		{"schema", Schema("migrate", underlying), KindSchema},
		{"contention", Contention("write", underlying), KindContention},
		{"timeout", Timeout("query", underlying), KindTimeout},
		{"config", Config("load", underlying), KindConfig},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.kind, c.err.Kind)
			assert.ErrorIs(t, c.err, underlying)
			assert.NotZero(t, c.err.Timestamp)
		})
	}
}

func TestWithPathAndRecoverable(t *testing.T) {
	err := IO("read", errors.New("eof")).WithPath("a.go").WithRecoverable(false)
	require.Equal(t, "a.go", err.Path)
	require.False(t, err.Recoverable)
	assert.Contains(t, err.Error(), "a.go")
}

func TestIsMatchesKindOnly(t *testing.T) {
	err := Storage("commit", errors.New("locked"))
	assert.True(t, Is(err, KindStorage))
	assert.False(t, Is(err, KindIO))
	assert.False(t, Is(errors.New("plain"), KindStorage))
}

func TestNewMultiDropsNilsAndEmptyIsNil(t *testing.T) {
	assert.Nil(t, NewMulti([]error{nil, nil}))

	m := NewMulti([]error{nil, IO("a", errors.New("x")), Parse("b", errors.New("y"))})
	require.NotNil(t, m)
	require.Len(t, m.Errors, 2)
	assert.Contains(t, m.Error(), "2 errors")
}

func TestMultiSingleErrorFormatsBare(t *testing.T) {
	m := NewMulti([]error{IO("a", errors.New("x"))})
	require.NotNil(t, m)
	assert.Equal(t, m.Errors[0].Error(), m.Error())
}
