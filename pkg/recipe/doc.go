// Package recipe combines independent feature providers into one rule set
// and one contract list, and checks states against what the providers need.
//
// A FeatureProvider exposes rules plus the contract its rules expect the
// state to implement. New flattens the providers in order, which fixes rule
// precedence, and deduplicates contracts in first-seen order so the first
// contract stays the primary one.
//
// Verify runs once per concrete state type; later states of the same type
// skip the check. NewDispatcher always verifies first, so a misconfigured
// state fails at construction rather than on its first call.
package recipe
