// Package wheel implements a hashed timing-wheel timer for fire-once
// delayed jobs.
//
// The wheel is an array of slots visited by a single scheduling goroutine
// at a fixed tick. A job submitted with delay D lands in slot
// (currentTick + D/tick) % slotNum with a remaining-rounds counter of
// D/tick/slotNum; it fires on the rounds-th visit of the tick pointer to
// that slot. Insertion and removal are O(1); precision is bounded by the
// tick: a job fires somewhere in [D, D+tick) after submission, never
// earlier.
//
// Execution happens on a dedicated dispatcher goroutine so a slow or
// panicking job can never stall tick advancement. Stop() drains every
// job that has not run yet (inbound, in-slot and in-dispatch) and hands
// it back to the caller.
package wheel
