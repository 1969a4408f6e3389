// Package memory implements the OpenSwarm memory subsystem: a namespaced,
// partitioned key-value store used by cooperating agents to record knowledge,
// task state, messages, consensus decisions, and learned heuristics.
//
// The package layers an in-process LRU cache over a durable embedded backend
// (bbolt) with an automatic in-memory fallback, organizes entries into
// capacity-bounded partitions with TTL expiry, and exposes the generic Store
// API consumed by the swarm and cluster packages.
//
// Basic usage:
//
//	mgr := memory.NewManager(memory.DefaultConfig())
//	if err := mgr.Initialize(ctx); err != nil { ... }
//	defer mgr.Shutdown(ctx)
//
//	mgr.Store(ctx, "greeting", []byte(`"hello"`), nil)
//	value, _ := mgr.Retrieve(ctx, "greeting", "default")
package memory
