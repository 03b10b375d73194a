// Package resolver computes a consistent version assignment for the full
// transitive dependency graph. The strategy is greedy highest-satisfying-
// version: for each package the highest non-yanked release satisfying every
// range imposed on it is chosen, and choices are never revisited; an
// unsatisfiable intersection fails immediately with VERSION_CONFLICT.
// Expansion runs over an explicit work stack rather than language
// recursion, so graph depth is bounded by memory, not the call stack.
// Given the same requested ranges and registry snapshot, the result is
// byte-for-byte identical across runs.
package resolver
