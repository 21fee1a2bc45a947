// Package aspects evaluates slot predicates and aspect arithmetic.
//
// A threshold value's sign carries meaning: a non-negative threshold t is met
// by a quantity q when q >= t, a negative threshold t is met when q < |t|.
// Aspects with a zero quantity count as absent.
package aspects

import (
	"sort"
	"strings"

	"hoursync/internal/domain"
)

// Matches reports whether an element with the given aspects fits spec.
func Matches(spec domain.SphereSpec, candidate domain.Aspects) bool {
	for key, threshold := range spec.Essential {
		q, ok := present(candidate, key)
		if !ok || !meets(q, threshold) {
			return false
		}
	}
	if len(spec.Required) > 0 {
		satisfied := false
		for key, threshold := range spec.Required {
			if q, ok := present(candidate, key); ok && meets(q, threshold) {
				satisfied = true
				break
			}
		}
		if !satisfied {
			return false
		}
	}
	for key, threshold := range spec.Forbidden {
		if q, ok := present(candidate, key); ok && meets(q, threshold) {
			return false
		}
	}
	return true
}

// GateOpen reports whether the ifAspectsPresent gate of spec is satisfied by
// the aggregate aspects. An empty gate is always open.
func GateOpen(spec domain.SphereSpec, aggregate domain.Aspects) bool {
	for key, threshold := range spec.IfAspectsPresent {
		q, ok := present(aggregate, key)
		if !ok || !meets(q, threshold) {
			return false
		}
	}
	return true
}

// ActionMatches reports whether a slot's action id pattern admits verbID.
// An empty pattern admits every verb and a trailing '*' matches by prefix.
func ActionMatches(pattern, verbID string) bool {
	if pattern == "" {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(verbID, prefix)
	}
	return pattern == verbID
}

// Combine returns the sum of all given aspect maps, dropping zero entries.
func Combine(sets ...domain.Aspects) domain.Aspects {
	out := domain.Aspects{}
	for _, set := range sets {
		for key, q := range set {
			out[key] += q
		}
	}
	for key, q := range out {
		if q == 0 {
			delete(out, key)
		}
	}
	return out
}

// Magnitude is the total quantity across all aspects.
func Magnitude(a domain.Aspects) int {
	total := 0
	for _, q := range a {
		total += q
	}
	return total
}

// MagnitudeOf is the total quantity of a restricted to the keys of filter.
func MagnitudeOf(a, filter domain.Aspects) int {
	total := 0
	for key := range filter {
		total += a[key]
	}
	return total
}

// Equal reports whether two aspect maps hold the same non-zero quantities.
func Equal(a, b domain.Aspects) bool {
	count := 0
	for key, q := range a {
		if q == 0 {
			continue
		}
		if b[key] != q {
			return false
		}
		count++
	}
	for _, q := range b {
		if q != 0 {
			count--
		}
	}
	return count == 0
}

// Keys returns the aspect ids of a in sorted order.
func Keys(a domain.Aspects) []string {
	keys := make([]string, 0, len(a))
	for key := range a {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func present(a domain.Aspects, key string) (int, bool) {
	q, ok := a[key]
	if !ok || q == 0 {
		return 0, false
	}
	return q, true
}

func meets(q, threshold int) bool {
	if threshold < 0 {
		return q < -threshold
	}
	return q >= threshold
}
