// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package state

import "strings"

// Set is an immutable membership set over a state space.
type Set[S Code] struct {
	bits uint64
}

// Of builds a set containing the given states.
func Of[S Code](states ...S) Set[S] {
	var set Set[S]
	for _, s := range states {
		set = set.With(s)
	}
	return set
}

// With returns a copy of the set with s added.
func (set Set[S]) With(s S) Set[S] {
	set.bits |= 1 << uint64(s)
	return set
}

// Without returns a copy of the set with s removed.
func (set Set[S]) Without(s S) Set[S] {
	set.bits &^= 1 << uint64(s)
	return set
}

// Contains reports whether s is a member.
func (set Set[S]) Contains(s S) bool {
	return set.bits&(1<<uint64(s)) != 0
}

// Empty reports whether the set has no members.
func (set Set[S]) Empty() bool {
	return set.bits == 0
}

func (set Set[S]) String() string {
	var names []string
	for i := uint64(0); i < 64; i++ {
		if set.bits&(1<<i) != 0 {
			names = append(names, S(i).String())
		}
	}
	return "{" + strings.Join(names, ",") + "}"
}
