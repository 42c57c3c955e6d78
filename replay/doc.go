// Package replay provides deterministic random access over a strictly
// sequential, step-based simulation.
//
// # Reading Guide
//
// Start with these three files to understand the core:
//   - editlog.go: the ordered frame→Edit mapping and its shifting insert/delete
//   - driver.go: the only code that invokes the step function, one frame at a time
//   - slots.go: the fixed snapshot pool and the balancer that places snapshots
//     near hotspots to keep re-simulation cheap
//
// # Architecture
//
// Timeline is the facade over the slot pool, driver, and edit log: it answers
// "materialize frame F" in time proportional to the distance from F to the
// nearest cached snapshot, within a fixed memory budget of N snapshots.
// Pipeline sits on top and resolves structured Variables (name plus optional
// frame, object, behavior, and surface qualifiers) to typed values against
// timeline-provided state. Loader constructs Pipelines and invalidates old
// ones when a new program is loaded.
//
// Memory modelling (states, layouts, values, symbols) lives in replay/mem;
// concrete scripted programs live in replay/machine.
//
// # Concurrency
//
// Everything here is single-threaded and synchronous. Every call runs to
// completion and blocks its caller, including BalanceDistribution up to its
// time budget. Callers must serialize all access to a Timeline/Pipeline pair;
// views returned by Frame are borrowed and must not outlive the next
// mutating call.
package replay
