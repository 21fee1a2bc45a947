package aspects_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"hoursync/internal/aspects"
	"hoursync/internal/domain"
)

func TestMatchesEssentialSign(t *testing.T) {
	below := domain.SphereSpec{Essential: domain.Aspects{"heat": -5}}
	assert.True(t, aspects.Matches(below, domain.Aspects{"heat": 4}))
	assert.False(t, aspects.Matches(below, domain.Aspects{"heat": 5}))

	atLeast := domain.SphereSpec{Essential: domain.Aspects{"heat": 5}}
	assert.True(t, aspects.Matches(atLeast, domain.Aspects{"heat": 5}))
	assert.False(t, aspects.Matches(atLeast, domain.Aspects{"heat": 4}))
}

func TestMatchesEssentialMissing(t *testing.T) {
	spec := domain.SphereSpec{Essential: domain.Aspects{"heat": -5}}
	assert.False(t, aspects.Matches(spec, domain.Aspects{"moth": 2}))
	assert.False(t, aspects.Matches(spec, domain.Aspects{"heat": 0}))
}

func TestMatchesRequiredIsAny(t *testing.T) {
	spec := domain.SphereSpec{Required: domain.Aspects{"lantern": 2, "forge": 3}}
	assert.True(t, aspects.Matches(spec, domain.Aspects{"forge": 3}))
	assert.True(t, aspects.Matches(spec, domain.Aspects{"lantern": 5, "forge": 1}))
	assert.False(t, aspects.Matches(spec, domain.Aspects{"lantern": 1, "forge": 2}))
	assert.False(t, aspects.Matches(spec, domain.Aspects{}))
}

func TestMatchesForbidden(t *testing.T) {
	spec := domain.SphereSpec{
		Required:  domain.Aspects{"tool": 1},
		Forbidden: domain.Aspects{"fragile": 1, "heat": -3},
	}
	assert.True(t, aspects.Matches(spec, domain.Aspects{"tool": 1}))
	assert.False(t, aspects.Matches(spec, domain.Aspects{"tool": 1, "fragile": 2}))
	// heat below 3 is forbidden, heat of 3 or more is fine
	assert.False(t, aspects.Matches(spec, domain.Aspects{"tool": 1, "heat": 2}))
	assert.True(t, aspects.Matches(spec, domain.Aspects{"tool": 1, "heat": 3}))
}

func TestMatchesEmptySpecAcceptsAnything(t *testing.T) {
	assert.True(t, aspects.Matches(domain.SphereSpec{}, nil))
	assert.True(t, aspects.Matches(domain.SphereSpec{}, domain.Aspects{"x": 1}))
}

func TestGateOpen(t *testing.T) {
	spec := domain.SphereSpec{IfAspectsPresent: domain.Aspects{"memory": 1}}
	assert.False(t, aspects.GateOpen(spec, domain.Aspects{}))
	assert.True(t, aspects.GateOpen(spec, domain.Aspects{"memory": 2}))
	assert.True(t, aspects.GateOpen(domain.SphereSpec{}, nil))
}

func TestActionMatches(t *testing.T) {
	assert.True(t, aspects.ActionMatches("", "study"))
	assert.True(t, aspects.ActionMatches("study", "study"))
	assert.False(t, aspects.ActionMatches("study", "studyroom"))
	assert.True(t, aspects.ActionMatches("study*", "studyroom"))
	assert.False(t, aspects.ActionMatches("work*", "study"))
}

func TestCombineAndMagnitude(t *testing.T) {
	combined := aspects.Combine(domain.Aspects{"heat": 2, "moth": 1}, domain.Aspects{"moth": -1, "edge": 3})
	assert.Equal(t, domain.Aspects{"heat": 2, "edge": 3}, combined)
	assert.Equal(t, 5, aspects.Magnitude(combined))
	assert.Equal(t, 3, aspects.MagnitudeOf(combined, domain.Aspects{"edge": 1, "winter": 1}))
}

func TestEqualIgnoresZeros(t *testing.T) {
	assert.True(t, aspects.Equal(domain.Aspects{"a": 1, "b": 0}, domain.Aspects{"a": 1}))
	assert.False(t, aspects.Equal(domain.Aspects{"a": 1}, domain.Aspects{"a": 2}))
	assert.False(t, aspects.Equal(domain.Aspects{"a": 1}, domain.Aspects{"a": 1, "c": 4}))
}
