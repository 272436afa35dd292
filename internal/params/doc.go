// Package params provides the tagged parameter values used for system and run
// parameters.
//
// A Value is one of Int, Float, Bool, String, FloatArray or IntArray (the last
// two are the numeric-array variant). Other is the escape hatch for anything
// else: it is never stored natively and always degrades to its string form.
//
// Params maps parameter names to values. Two Params are equal when they have
// the same key set and every pair of values is equal under Equal. Fingerprint
// gives a stable hash of a Params for indexing; equal Params always share a
// fingerprint, the converse does not hold.
//
// This package imports nothing internal.
package params
