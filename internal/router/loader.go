package router

import (
	"context"
	"errors"
	"io"
	"sync"
)

// ErrPredictorClosed is returned by a SerialPredictor after Close.
var ErrPredictorClosed = errors.New("predictor closed")

// LoadFunc builds a predictor, typically by loading model weights.
type LoadFunc func() (Predictor, error)

// ConcurrencyReporter is implemented by predictors that know whether
// concurrent Predict calls are safe.
type ConcurrencyReporter interface {
	ConcurrencySafe() bool
}

// ModelLoader loads the model at most once, on first use. The outcome,
// success or failure, is shared by every caller.
type ModelLoader struct {
	once      sync.Once
	load      LoadFunc
	serialize bool
	predictor Predictor
	err       error
}

// NewModelLoader creates a loader. The loaded predictor is wrapped in a
// SerialPredictor when serialize is set or when it reports that it is not
// safe for concurrent use.
func NewModelLoader(load LoadFunc, serialize bool) *ModelLoader {
	return &ModelLoader{load: load, serialize: serialize}
}

// Predictor implements PredictorSource.
func (l *ModelLoader) Predictor() (Predictor, error) {
	l.once.Do(func() {
		p, err := l.load()
		if err != nil {
			l.err = err
			return
		}
		if l.serialize || !concurrencySafe(p) {
			p = NewSerialPredictor(p)
		}
		l.predictor = p
	})
	return l.predictor, l.err
}

// Close releases the predictor if one was loaded. A loader closed before first
// use never loads.
func (l *ModelLoader) Close() error {
	l.once.Do(func() {
		l.err = ErrPredictorClosed
	})
	if c, ok := l.predictor.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func concurrencySafe(p Predictor) bool {
	if r, ok := p.(ConcurrencyReporter); ok {
		return r.ConcurrencySafe()
	}
	return true
}

type serialRequest struct {
	ctx   context.Context
	query string
	reply chan serialReply
}

type serialReply struct {
	pred Prediction
	err  error
}

// SerialPredictor funnels every call through one goroutine so a model that is
// not safe for concurrent use sees one request at a time.
type SerialPredictor struct {
	inner     Predictor
	requests  chan serialRequest
	done      chan struct{}
	stopped   chan struct{}
	closeErr  error
	closeOnce sync.Once
}

// NewSerialPredictor starts the worker goroutine.
func NewSerialPredictor(inner Predictor) *SerialPredictor {
	s := &SerialPredictor{
		inner:    inner,
		requests: make(chan serialRequest),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go s.run()
	return s
}

// run owns the wrapped predictor: it is the only goroutine that calls
// Predict, and it closes the predictor after its last call.
func (s *SerialPredictor) run() {
	defer close(s.stopped)
	for {
		select {
		case req := <-s.requests:
			pred, err := s.inner.Predict(req.ctx, req.query)
			req.reply <- serialReply{pred: pred, err: err}
		case <-s.done:
			if c, ok := s.inner.(io.Closer); ok {
				s.closeErr = c.Close()
			}
			return
		}
	}
}

// Predict implements Predictor.
func (s *SerialPredictor) Predict(ctx context.Context, query string) (Prediction, error) {
	select {
	case <-s.done:
		return Prediction{}, ErrPredictorClosed
	default:
	}
	req := serialRequest{ctx: ctx, query: query, reply: make(chan serialReply, 1)}
	select {
	case s.requests <- req:
	case <-s.done:
		return Prediction{}, ErrPredictorClosed
	case <-ctx.Done():
		return Prediction{}, ctx.Err()
	}
	select {
	case r := <-req.reply:
		return r.pred, r.err
	case <-ctx.Done():
		return Prediction{}, ctx.Err()
	}
}

// Close stops the worker, waiting for an in-flight Predict to finish, and
// closes the wrapped predictor when it is an io.Closer.
func (s *SerialPredictor) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	<-s.stopped
	return s.closeErr
}
