// Package datastore persists the recipe document as a single protobuf file
// and serializes every mutation through one owner goroutine.
package datastore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/starford/recipebox/internal/apperr"
	"github.com/starford/recipebox/internal/broker"
	"github.com/starford/recipebox/internal/checksum"
	"github.com/starford/recipebox/internal/recipepb"
	"github.com/starford/recipebox/internal/recipes"
	"github.com/starford/recipebox/internal/storage"
)

// DefaultFileName is the document file inside the data directory.
const DefaultFileName = "recipe_list.pb"

// Transform maps the current document to its replacement. It receives a
// private copy and may modify it in place. Returning an error aborts the
// update without writing anything.
type Transform func(doc *recipes.RecipeList) (*recipes.RecipeList, error)

type requestKind int

const (
	kindRead requestKind = iota
	kindUpdate
	kindReload
)

type request struct {
	kind requestKind
	fn   Transform
	resp chan result
}

type result struct {
	doc     *recipes.RecipeList
	changed bool
	err     error
}

// Store owns the on-disk document.
//
// Concurrency model: a single loop goroutine owns the cached document and is
// the only writer of the file. Reads and updates are requests queued on a
// channel and served strictly in arrival order, so at most one update runs at
// a time. Documents handed to subscribers are shared and must be treated as
// read-only.
type Store struct {
	provider storage.Provider
	name     string
	logger   *slog.Logger
	metrics  *metrics
	docs     *broker.Broker[*recipes.RecipeList]

	reqCh   chan request
	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// Option configures a Store.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	registerer prometheus.Registerer
	queueSize  int
}

// WithLogger sets the store logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRegisterer registers the store metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithQueueSize bounds the number of requests waiting for the loop.
func WithQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

// Open binds a store to the file name inside provider and starts its loop.
// The file is not read until the first request.
func Open(provider storage.Provider, name string, opts ...Option) (*Store, error) {
	o := options{logger: slog.Default(), queueSize: 64}
	for _, opt := range opts {
		opt(&o)
	}
	if name == "" {
		name = DefaultFileName
	}
	m, err := newMetrics(o.registerer)
	if err != nil {
		return nil, fmt.Errorf("datastore: register metrics: %w", err)
	}

	s := &Store{
		provider: provider,
		name:     name,
		logger:   o.logger,
		metrics:  m,
		docs:     broker.New[*recipes.RecipeList](),
		reqCh:    make(chan request, o.queueSize),
		stopCh:   make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go s.run()
	return s, nil
}

// Name returns the document file name.
func (s *Store) Name() string {
	return s.name
}

// Read returns a copy of the latest document. A missing file yields the empty
// document; undecodable bytes yield an error wrapping apperr.ErrCorruption.
func (s *Store) Read(ctx context.Context) (*recipes.RecipeList, error) {
	res := s.do(ctx, request{kind: kindRead})
	return res.doc, res.err
}

// Update applies fn to the latest document and atomically persists the
// result. Once queued, the update runs to completion even if ctx is cancelled;
// the caller only stops waiting for it.
func (s *Store) Update(ctx context.Context, fn Transform) (*recipes.RecipeList, error) {
	if fn == nil {
		return nil, errors.New("datastore: nil transform")
	}
	res := s.do(ctx, request{kind: kindUpdate, fn: fn})
	return res.doc, res.err
}

// Reload re-reads the file and publishes it if it differs from what the store
// last read or wrote. It reports whether the document changed.
func (s *Store) Reload(ctx context.Context) (bool, error) {
	res := s.do(ctx, request{kind: kindReload})
	return res.changed, res.err
}

// Subscribe returns a channel that receives the current document once loaded
// and every later version.
func (s *Store) Subscribe() <-chan *recipes.RecipeList {
	return s.docs.Subscribe()
}

// Unsubscribe stops delivery to ch and closes it.
func (s *Store) Unsubscribe(ch <-chan *recipes.RecipeList) {
	s.docs.Unsubscribe(ch)
}

// Close lets already queued requests finish, stops the loop and closes all
// subscriptions. It is safe to call more than once.
func (s *Store) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		close(s.stopCh)
	}
	<-s.stopped
	return nil
}

func (s *Store) do(ctx context.Context, req request) result {
	if s.closed.Load() {
		return result{err: apperr.ErrClosed}
	}
	req.resp = make(chan result, 1)

	select {
	case s.reqCh <- req:
	case <-ctx.Done():
		return result{err: ctx.Err()}
	case <-s.stopped:
		return result{err: apperr.ErrClosed}
	}

	select {
	case res := <-req.resp:
		return res
	case <-ctx.Done():
		return result{err: ctx.Err()}
	case <-s.stopped:
		select {
		case res := <-req.resp:
			return res
		default:
			return result{err: apperr.ErrClosed}
		}
	}
}

// loopState is owned by the run goroutine.
type loopState struct {
	cur *recipes.RecipeList // nil until loaded
	sum string              // checksum of the bytes cur was read from or written as
}

func (s *Store) run() {
	defer close(s.stopped)
	defer s.docs.Close()

	var st loopState
	for {
		select {
		case <-s.stopCh:
			for {
				select {
				case req := <-s.reqCh:
					req.resp <- s.handle(&st, req)
					continue
				default:
				}
				return
			}
		case req := <-s.reqCh:
			req.resp <- s.handle(&st, req)
		}
	}
}

func (s *Store) handle(st *loopState, req request) result {
	switch req.kind {
	case kindRead:
		if err := s.ensureLoaded(st); err != nil {
			return result{err: err}
		}
		return result{doc: st.cur.Clone()}
	case kindUpdate:
		return s.update(st, req.fn)
	case kindReload:
		return s.reload(st)
	}
	return result{err: fmt.Errorf("datastore: unknown request %d", req.kind)}
}

func (s *Store) ensureLoaded(st *loopState) error {
	if st.cur != nil {
		return nil
	}
	_, err := s.sync(st)
	return err
}

// sync brings st in line with the bytes on disk. It reports whether the
// cached document was replaced. A missing file reads as the empty document.
// Missing ids are assigned in memory and persisted with the next update.
func (s *Store) sync(st *loopState) (bool, error) {
	data, err := s.provider.Read(s.name)
	if errors.Is(err, fs.ErrNotExist) {
		data, err = nil, nil
	}
	if err != nil {
		return false, fmt.Errorf("datastore: read: %w", err)
	}
	sum := checksum.Sum(data)
	if st.cur != nil && sum == st.sum {
		return false, nil
	}
	doc, err := recipepb.Unmarshal(data)
	if err != nil {
		s.metrics.corruptions.Inc()
		s.logger.Error("datastore: cannot decode document",
			slog.String("file", s.name),
			slog.String("error", err.Error()))
		return false, fmt.Errorf("datastore: decode %s: %w: %v", s.name, apperr.ErrCorruption, err)
	}
	doc.AssignIDs()

	first := st.cur == nil
	st.cur, st.sum = doc, sum
	s.docs.Publish(st.cur)
	if first {
		s.logger.Debug("datastore: loaded",
			slog.String("file", s.name),
			slog.Int("recipes", len(doc.Recipes)))
	} else {
		s.logger.Info("datastore: picked up external change",
			slog.String("file", s.name),
			slog.Int("recipes", len(doc.Recipes)))
	}
	return true, nil
}

func (s *Store) update(st *loopState, fn Transform) result {
	start := time.Now()
	defer func() { s.metrics.duration.Observe(time.Since(start).Seconds()) }()

	// Another process may have written the file since our last read.
	if _, err := s.sync(st); err != nil {
		s.metrics.updates.WithLabelValues(resultError).Inc()
		return result{err: err}
	}
	next, err := fn(st.cur.Clone())
	if err != nil {
		s.metrics.updates.WithLabelValues(resultAborted).Inc()
		return result{err: err}
	}
	if next == nil {
		s.metrics.updates.WithLabelValues(resultAborted).Inc()
		return result{err: errors.New("datastore: transform returned nil document")}
	}
	next.AssignIDs()
	data := recipepb.Marshal(next)
	if err := s.provider.Write(s.name, data); err != nil {
		s.metrics.updates.WithLabelValues(resultError).Inc()
		s.logger.Error("datastore: write failed",
			slog.String("file", s.name),
			slog.String("error", err.Error()))
		return result{err: fmt.Errorf("datastore: write: %w", err)}
	}
	st.cur, st.sum = next, checksum.Sum(data)
	s.metrics.updates.WithLabelValues(resultOK).Inc()
	s.docs.Publish(st.cur)
	return result{doc: st.cur.Clone(), changed: true}
}

func (s *Store) reload(st *loopState) result {
	changed, err := s.sync(st)
	if err != nil {
		return result{err: err}
	}
	return result{doc: st.cur.Clone(), changed: changed}
}
