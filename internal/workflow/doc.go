// Package workflow drives one VM from request to bootstrapped node.
//
// A run authenticates, resolves the image and size, creates the node, waits
// for its address and deploys the bootstrap script. Every step is a state
// of a [Machine]; the [Result] of a run carries the final state, the
// timestamped transitions and, once the node exists, its record. Created
// nodes are never rolled back: a failure after creation is reported next
// to the live node.
//
// [Runner.RunBatch] runs many requests concurrently. Runs share only the
// provider rate limiter and the metrics recorder.
package workflow
