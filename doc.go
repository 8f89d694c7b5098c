// Package briefing implements a checkpointed workflow execution engine for
// long-running content production pipelines. Sessions advance node by node
// through a validated graph, may suspend indefinitely at human review
// checkpoints, and resume from durable state when a decision arrives.
// Lifecycle events are fanned out live to any number of subscribers.
package briefing
