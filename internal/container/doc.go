// Package container provides a hierarchical group/field container stored in a
// single SQLite file.
//
// A container is a tree of named nodes. Groups hold child nodes; fields hold one
// typed value. Names are unique within their parent. The layout mirrors a
// self-describing binary container (one file, nested groups, typed datasets):
//
//	/                       root group
//	/system_params          group
//	/system_params/J        float64 field
//	/runs/1/instances/1     group
//
// # Field Types
//
//   - int64, float64, bool, string scalars
//   - int64[] and float64[] numeric arrays with an explicit shape
//   - opaque byte blobs carrying a free-form tag
//
// Floats are stored as raw IEEE 754 bits so NaN and signed zero survive a
// write/read cycle unchanged.
//
// # Sessions
//
// A File is one session. Open it in ModeRead or ModeReadWriteCreate, do the work,
// Close it. There is no locking beyond SQLite's own; callers are expected to have
// a single writer per file.
package container
