// Package openswarm wires the memory subsystem together: a write-back
// cached, durably persisted, partitioned store (memory), an optional
// Redis-backed replication engine (cluster), and the typed swarm domain
// layer (swarm).
//
// Typical usage:
//
//	sys, err := openswarm.New(
//		openswarm.WithMemoryOptions(memory.WithDirectory("/var/lib/openswarm")),
//		openswarm.WithCluster(cluster.Config{NodeID: "node-1", RedisURL: "redis://localhost:6379"}),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := sys.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
//	defer sys.Stop(ctx)
//
//	sys.Swarm().StoreAgent(ctx, &swarm.Agent{ID: "researcher-1", Type: "researcher"})
//
// Each layer is usable on its own; the System type only handles lifecycle
// ordering and cross-wiring.
package openswarm
