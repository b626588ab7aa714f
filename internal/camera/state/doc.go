// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package state holds the waitable camera state registers.
//
// A Holder stores exactly one state of a small enumerated space and wakes
// every waiter on each transition. Two spaces exist: Ladder, the ordered
// open → configure → preview → focus progression that gates admission, and
// Activity, the parallel register tracking what the sensor is busy with.
// Membership tests go through Set rather than raw bit masks.
package state
