package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOffsetContainment(t *testing.T) {
	outer := Offset{Start: 0, End: 100}
	inner := Offset{Start: 10, End: 20}
	assert.True(t, outer.Start <= inner.Start && inner.End <= outer.End)
}

func TestNowIsOverridableForTests(t *testing.T) {
	orig := Now
	defer func() { Now = orig }()

	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	Now = func() time.Time { return fixed }
	assert.Equal(t, fixed, Now())
}

func TestSymbolZeroValueHasNoVisibilityOrParent(t *testing.T) {
	var s Symbol
	assert.Nil(t, s.Visibility)
	assert.Nil(t, s.ParentID)
	assert.Equal(t, SymbolKind(""), s.Kind)
}

func TestStatsMapsAreNilUntilPopulated(t *testing.T) {
	var s Stats
	assert.Nil(t, s.ByKind)
	assert.Nil(t, s.ByLanguageKind)
}
