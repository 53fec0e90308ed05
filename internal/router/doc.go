// Package router selects the transformation policy that applies to a
// request.
//
// A Table holds routes keyed by path prefix plus an optional default
// policy. Match tries the longest prefix first and respects path segment
// boundaries. Tables are immutable; the gateway builds a new one on every
// configuration reload and swaps it in atomically.
package router
