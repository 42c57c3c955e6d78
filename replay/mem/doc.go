// Package mem models simulated memory for the replay timeline: opaque state
// snapshots, the layout that maps dotted field paths to byte locations and
// primitive kinds, the tagged Value union exchanged at package boundaries,
// and the symbol table used for human readable labels.
//
// The package knows nothing about frames beyond the tag a State carries; all
// timeline semantics live in the replay package above it.
package mem
