// Package blackboard defines the shared contract between the orchestrator and
// the agents that execute pipeline stages: the run-scoped configuration
// (RunContext and its dials), the artifact reference type that flows into the
// manifest, and the Board itself - a write-once arena keyed by stage name
// where agents publish their notes and artifact handles for later stages to
// read.
//
// Everything in this package is scoped to a single run. Two runs never share a
// Board or a RunContext, which is what allows concurrent runs in one process
// without any cross-run locking.
package blackboard
