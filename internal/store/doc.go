// Package store persists computed artifacts together with the parameters that
// produced them, in a single container file.
//
// # Layout
//
//	/system_params                                  group: key -> typed field
//	/runs/<run_id>/params                           group: key -> typed field
//	/runs/<run_id>/instances/<instance_id>/artifact opaque field
//	/runs/<run_id>/instances/<instance_id>/timestamp string field, optional
//
// A run without both params and instances is a legacy layout. Load refuses it;
// LoadAll skips it with a diagnostic.
//
// # Identity
//
// Saves without an explicit run id reuse the first existing run whose stored
// params equal the requested params after a codec round trip; otherwise a new
// numeric run id is allocated. An explicit run id never reuses: it always
// names a fresh run, suffixed "_1", "_2", ... when the name is taken.
//
// # Ordering
//
// Numeric-looking ids compare by value. Load picks the numerically largest id,
// or the lexicographically last when no id is numeric. LoadAll lists numeric
// ids ascending, then the remaining ids lexicographically.
//
// # Sessions
//
// Every operation opens the file, does its work and closes it. The store has
// no internal locking and assumes a single writer per file. Fan computation
// out in parallel and funnel the saves through one goroutine.
package store
