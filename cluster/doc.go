// Package cluster is the distributed extension of the memory subsystem:
// a node registry with heartbeats, vector-clock conflict handling, an
// asynchronous sync-operation queue, and replication-health statistics.
//
// Replication rides on Redis, the same infrastructure used for node
// discovery: each node announces itself under a TTL key, pushes sync
// operations onto per-peer queues, and mirrors its durable records for
// strong-consistency reads. Propagation is asynchronous and never blocks
// the originating write; failed deliveries are retried on the next sync
// cycle with exponential backoff.
package cluster
