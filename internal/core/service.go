// Package core dispatches lifecycle actions: it consults reachability, calls
// the synchronization gateway or the offline cache, and reconciles results
// into the lifecycle coordinator.
package core

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"herdbook/internal/cache"
	"herdbook/internal/gateway"
	"herdbook/internal/lifecycle"
	"herdbook/internal/reachability"
	"herdbook/pkg/domain"
)

// ErrSuperseded reports a response discarded because a newer action on the
// same collection or record started after it.
var ErrSuperseded = errors.New("response superseded by a newer action")

// Section is the presentation status of one collection.
type Section struct {
	Loading bool
	Err     string
}

type section struct {
	inflight int
	err      string
}

// Service is the action dispatcher. It is safe for concurrent use.
type Service struct {
	gateway *gateway.Gateway
	monitor reachability.Monitor
	cache   *cache.Cache
	state   *lifecycle.Coordinator
	opts    serviceOptions

	// mu guards sections and generations; it is taken before the
	// coordinator lock, never after.
	mu       sync.Mutex
	sections map[domain.Collection]*section
	reads    map[domain.Collection]uint64
	writes   map[writeKey]uint64
}

type writeKey struct {
	collection domain.Collection
	id         string
}

// NewService wires a dispatcher. A nil monitor is treated as always online,
// a nil cache uses an in-memory bundle, and a nil coordinator starts empty.
func NewService(gw *gateway.Gateway, monitor reachability.Monitor, c *cache.Cache, state *lifecycle.Coordinator, opts ...Option) *Service {
	o := defaultServiceOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if monitor == nil {
		monitor = reachability.Static(true)
	}
	if c == nil {
		c = cache.New(nil, cache.WithClock(o.clock.Now))
	}
	if state == nil {
		state = lifecycle.NewCoordinator(nil)
	}
	return &Service{
		gateway:  gw,
		monitor:  monitor,
		cache:    c,
		state:    state,
		opts:     o,
		sections: make(map[domain.Collection]*section),
		reads:    make(map[domain.Collection]uint64),
		writes:   make(map[writeKey]uint64),
	}
}

// State exposes the lifecycle coordinator holding the in-memory collections.
func (s *Service) State() *lifecycle.Coordinator { return s.state }

// Cache exposes the offline cache.
func (s *Service) Cache() *cache.Cache { return s.cache }

// Section reports the loading flag and last error message of a collection.
func (s *Service) Section(collection domain.Collection) Section {
	s.mu.Lock()
	defer s.mu.Unlock()
	sec, ok := s.sections[collection]
	if !ok {
		return Section{}
	}
	return Section{Loading: sec.inflight > 0, Err: sec.err}
}

func (s *Service) sectionLocked(collection domain.Collection) *section {
	sec, ok := s.sections[collection]
	if !ok {
		sec = &section{}
		s.sections[collection] = sec
	}
	return sec
}

// begin marks the section loading and clears its error.
func (s *Service) begin(collection domain.Collection) {
	s.mu.Lock()
	sec := s.sectionLocked(collection)
	sec.inflight++
	sec.err = ""
	s.mu.Unlock()
}

// finish clears loading and records err unless the response was discarded.
func (s *Service) finish(collection domain.Collection, err error) {
	s.mu.Lock()
	sec := s.sectionLocked(collection)
	sec.inflight--
	if err != nil && !errors.Is(err, ErrSuperseded) && !errors.Is(err, context.Canceled) {
		sec.err = err.Error()
	}
	s.mu.Unlock()
}

func (s *Service) nextRead(collection domain.Collection) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads[collection]++
	return s.reads[collection]
}

func (s *Service) nextWrite(key writeKey) uint64 {
	if key.id == "" {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes[key]++
	return s.writes[key]
}

// commitRead applies fn when gen is still the newest read of collection.
func (s *Service) commitRead(ctx context.Context, collection domain.Collection, gen uint64, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.reads[collection] != gen {
		return ErrSuperseded
	}
	fn()
	return nil
}

// commitWrite applies fn when gen is still the newest write of the record.
// Reads of the collection started before the commit are superseded by it.
func (s *Service) commitWrite(ctx context.Context, key writeKey, gen uint64, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if key.id != "" && s.writes[key] != gen {
		return ErrSuperseded
	}
	fn()
	s.reads[key.collection]++
	return nil
}

func (s *Service) stillCurrentRead(collection domain.Collection, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads[collection] == gen
}

// observe wraps one action with tracing, metrics and logging.
func (s *Service) observe(ctx context.Context, op string, collection domain.Collection, fn func(ctx context.Context, ev *zerolog.Event) error) error {
	ctx, span := s.opts.tracer.Start(ctx, op)
	start := s.opts.clock.Now()
	fields := s.opts.logger.With().Str("action", op).Str("collection", string(collection)).Logger()
	var done *zerolog.Event
	if fields.GetLevel() <= zerolog.WarnLevel && zerolog.GlobalLevel() <= zerolog.WarnLevel {
		done = zerolog.Dict()
	}
	err := fn(ctx, done)
	elapsed := s.opts.clock.Now().Sub(start)
	span.End(err)
	s.opts.metrics.Observe(ctx, op, err == nil, elapsed)
	var ev *zerolog.Event
	switch {
	case err == nil:
		ev = fields.Debug()
	case errors.Is(err, ErrSuperseded), errors.Is(err, context.Canceled):
		ev = fields.Debug().Err(err)
	default:
		ev = fields.Warn().Err(err)
	}
	if done != nil {
		ev = ev.Dict("detail", done)
	}
	ev.Dur("duration", elapsed).Msg("action finished")
	return err
}

// read runs the shared read protocol for one collection.
func read[T any](
	ctx context.Context,
	s *Service,
	op string,
	collection domain.Collection,
	fetch func(context.Context) ([]T, error),
	apply func(*lifecycle.Coordinator, []T),
) ([]T, error) {
	var out []T
	err := s.observe(ctx, op, collection, func(ctx context.Context, ev *zerolog.Event) (err error) {
		s.begin(collection)
		defer func() { s.finish(collection, err) }()
		gen := s.nextRead(collection)

		var items []T
		if !s.monitor.IsConnected(ctx) {
			ev.Str("source", "cache")
			ok, cacheErr := s.cache.Fresh(ctx, collection, &items)
			if cacheErr != nil {
				s.opts.logger.Warn().Err(cacheErr).Str("collection", string(collection)).Msg("cache entry unusable")
			}
			if !ok {
				return domain.ErrNetworkUnavailable
			}
		} else {
			ev.Str("source", "remote")
			items, err = fetch(ctx)
			if err != nil {
				return err
			}
			if s.stillCurrentRead(collection, gen) {
				if storeErr := s.cache.Store(ctx, collection, items); storeErr != nil {
					s.opts.logger.Warn().Err(storeErr).Str("collection", string(collection)).Msg("cache refresh failed")
				}
			}
		}
		if items == nil {
			items = []T{}
		}
		ev.Int("count", len(items))
		if err := s.commitRead(ctx, collection, gen, func() { apply(s.state, items) }); err != nil {
			return err
		}
		out = items
		return nil
	})
	return out, err
}

// write runs the shared write protocol. id is empty for creates.
func write[T any](
	ctx context.Context,
	s *Service,
	op string,
	collection domain.Collection,
	id string,
	call func(context.Context) (T, error),
	apply func(*lifecycle.Coordinator, T) domain.Result,
) (T, domain.Result, error) {
	var (
		out T
		res domain.Result
	)
	key := writeKey{collection: collection, id: id}
	err := s.observe(ctx, op, collection, func(ctx context.Context, ev *zerolog.Event) (err error) {
		s.begin(collection)
		defer func() { s.finish(collection, err) }()
		if id != "" {
			ev.Str("id", id)
		}
		gen := s.nextWrite(key)
		if !s.monitor.IsConnected(ctx) {
			return domain.ErrNetworkUnavailable
		}
		rec, err := call(ctx)
		if err != nil {
			return err
		}
		if err := s.commitWrite(ctx, key, gen, func() { res = apply(s.state, rec) }); err != nil {
			return err
		}
		for _, v := range res.Violations {
			s.opts.logger.Warn().
				Str("rule", v.Rule).
				Str("severity", string(v.Severity)).
				Str("entity", string(v.Entity)).
				Str("entity_id", v.EntityID).
				Msg(v.Message)
		}
		out = rec
		return nil
	})
	return out, res, err
}
