package openswarm

import (
	"context"
	"time"

	"github.com/yte121/openswarm-sub013/cluster"
	"github.com/yte121/openswarm-sub013/memory"
	"github.com/yte121/openswarm-sub013/swarm"
)

// System bundles the memory manager, the optional cluster engine, and the
// swarm domain store, and owns their startup and shutdown ordering.
type System struct {
	mgr    *memory.Manager
	store  *swarm.Store
	engine *cluster.Engine
	logger memory.Logger

	memOpts    []memory.Option
	clusterCfg *cluster.Config

	started bool
}

// Option configures a System.
type Option func(*System)

// WithMemoryOptions forwards options to the memory manager's configuration.
func WithMemoryOptions(opts ...memory.Option) Option {
	return func(s *System) { s.memOpts = append(s.memOpts, opts...) }
}

// WithCluster enables Redis-backed replication with the given settings.
func WithCluster(cfg cluster.Config) Option {
	return func(s *System) { s.clusterCfg = &cfg }
}

// New assembles a system. Nothing starts until Start is called.
func New(opts ...Option) (*System, error) {
	s := &System{}
	for _, opt := range opts {
		opt(s)
	}

	cfg, err := memory.NewConfig(s.memOpts...)
	if err != nil {
		return nil, err
	}
	s.logger = cfg.Logger
	s.mgr = memory.NewManager(cfg)
	s.store = swarm.New(s.mgr)

	if s.clusterCfg != nil {
		if s.clusterCfg.Logger == nil {
			s.clusterCfg.Logger = s.logger
		}
		engine, err := cluster.NewRedisEngine(s.clusterCfg, s.mgr)
		if err != nil {
			return nil, err
		}
		s.engine = engine
	}
	return s, nil
}

// Start initializes storage, creates the swarm partitions, and, when
// clustering is configured, joins the cluster.
func (s *System) Start(ctx context.Context) error {
	if s.started {
		return memory.ErrAlreadyInitialized
	}
	if err := s.mgr.Initialize(ctx); err != nil {
		return err
	}
	if err := s.store.Setup(ctx); err != nil {
		s.mgr.Shutdown(ctx)
		return err
	}
	if s.engine != nil {
		if err := s.engine.Start(ctx); err != nil {
			s.mgr.Shutdown(ctx)
			return err
		}
	}
	s.started = true
	s.logger.Info("System started", map[string]interface{}{
		"clustered": s.engine != nil,
		"fallback":  s.mgr.FallbackActive(),
	})
	return nil
}

// Stop leaves the cluster first so peers stop routing to this node, then
// flushes and closes storage.
func (s *System) Stop(ctx context.Context) error {
	if !s.started {
		return nil
	}
	s.started = false
	if s.engine != nil {
		if err := s.engine.Stop(ctx); err != nil {
			s.logger.Warn("Cluster engine stop failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	return s.mgr.Shutdown(ctx)
}

// Memory exposes the generic store layer.
func (s *System) Memory() *memory.Manager { return s.mgr }

// Swarm exposes the typed domain layer.
func (s *System) Swarm() *swarm.Store { return s.store }

// Cluster exposes the replication engine, or nil when clustering is off.
func (s *System) Cluster() *cluster.Engine { return s.engine }

// Store writes through the memory layer and feeds write latency into the
// cluster's replication statistics.
func (s *System) Store(ctx context.Context, key string, value []byte, opts *memory.StoreOptions) (*memory.StoreResult, error) {
	start := time.Now()
	res, err := s.mgr.Store(ctx, key, value, opts)
	if s.engine != nil && err == nil {
		s.engine.ObserveWrite(time.Since(start))
	}
	return res, err
}

// Retrieve reads through the memory layer and feeds read latency into the
// cluster's replication statistics.
func (s *System) Retrieve(ctx context.Context, key, namespace string) ([]byte, error) {
	start := time.Now()
	value, err := s.mgr.Retrieve(ctx, key, namespace)
	if s.engine != nil && err == nil {
		s.engine.ObserveRead(time.Since(start))
	}
	return value, err
}
