package discoveryworker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrNoRequests is returned by Claim when nothing is queued.
var ErrNoRequests = errors.New("no queued discovery requests")

// Request asks for one discovery run of a site.
type Request struct {
	ID          string    `json:"id"`
	Site        string    `json:"site"`
	Preset      string    `json:"preset"`
	Accept      bool      `json:"accept"`
	RequestedAt time.Time `json:"requested_at"`
}

// Queue is an in-memory FIFO of discovery requests with at most one pending
// request per site.
type Queue struct {
	mu    sync.Mutex
	items []Request
	wake  chan struct{}
	now   func() time.Time
}

func NewQueue() *Queue {
	return &Queue{wake: make(chan struct{}, 1), now: time.Now}
}

// Enqueue adds a request for site. If one is already pending for the site it
// is returned instead and queued is false.
func (q *Queue) Enqueue(site, preset string, accept bool) (req Request, queued bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, r := range q.items {
		if r.Site == site {
			return r, false
		}
	}
	req = Request{
		ID:          uuid.NewString(),
		Site:        site,
		Preset:      CanonicalPreset(preset),
		Accept:      accept,
		RequestedAt: q.now().UTC(),
	}
	q.items = append(q.items, req)
	select {
	case q.wake <- struct{}{}:
	default:
	}
	return req, true
}

// Claim removes and returns the oldest request.
func (q *Queue) Claim(ctx context.Context) (Request, error) {
	if err := ctx.Err(); err != nil {
		return Request{}, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Request{}, ErrNoRequests
	}
	req := q.items[0]
	q.items = q.items[1:]
	return req, nil
}

// Pending returns a copy of the queued requests, oldest first.
func (q *Queue) Pending() []Request {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Request, len(q.items))
	copy(out, q.items)
	return out
}

// Wake is signalled whenever a request is queued.
func (q *Queue) Wake() <-chan struct{} { return q.wake }

type Claimer interface {
	Claim(ctx context.Context) (Request, error)
}

// Executor performs a claimed run.
type Executor interface {
	Execute(ctx context.Context, req Request) error
}

type WorkerOptions struct {
	PollInterval time.Duration
	MaxRuntime   time.Duration
	// Wake, when set, short-circuits the poll interval.
	Wake <-chan struct{}
}

// Worker drains a request queue, running one discovery at a time.
type Worker struct {
	log          zerolog.Logger
	q            Claimer
	exec         Executor
	pollInterval time.Duration
	maxRuntime   time.Duration
	wake         <-chan struct{}
}

func NewWorker(log zerolog.Logger, q Claimer, exec Executor, opts WorkerOptions) *Worker {
	pi := opts.PollInterval
	if pi <= 0 {
		pi = 2 * time.Second
	}
	mr := opts.MaxRuntime
	if mr <= 0 {
		mr = 30 * time.Minute
	}
	return &Worker{
		log:          log,
		q:            q,
		exec:         exec,
		pollInterval: pi,
		maxRuntime:   mr,
		wake:         opts.Wake,
	}
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.q == nil || w.exec == nil {
		return
	}

	timer := time.NewTimer(w.pollInterval)
	defer timer.Stop()

	var consecutiveFailures int
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		case <-w.wake:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		for {
			processed, err := w.runOnce(ctx)
			if err != nil {
				consecutiveFailures++
				break
			}
			consecutiveFailures = 0
			if !processed {
				break
			}
		}

		timer.Reset(backoffDuration(w.pollInterval, consecutiveFailures))
	}
}

func backoffDuration(base time.Duration, failures int) time.Duration {
	if base <= 0 {
		base = 2 * time.Second
	}
	if failures <= 0 {
		return base
	}
	if failures > 6 {
		failures = 6
	}
	d := base * time.Duration(1<<failures)
	if d > time.Minute {
		return time.Minute
	}
	return d
}

func (w *Worker) runOnce(ctx context.Context) (bool, error) {
	req, err := w.q.Claim(ctx)
	if err != nil {
		if errors.Is(err, ErrNoRequests) {
			return false, nil
		}
		if ctx.Err() == nil {
			w.log.Error().Err(err).Msg("failed to claim discovery request")
		}
		return false, err
	}

	log := w.log.With().Str("run_id", req.ID).Str("site", req.Site).Logger()
	log.Info().Str("preset", req.Preset).Msg("discovery request claimed")

	execCtx, cancel := context.WithTimeout(ctx, w.maxRuntime)
	defer cancel()

	if err := w.exec.Execute(execCtx, req); err != nil {
		log.Error().Err(err).Msg("discovery request failed")
		return true, err
	}
	log.Info().Msg("discovery request completed")
	return true, nil
}

// CanonicalPreset maps free-form input onto a known preset name.
func CanonicalPreset(value string) string {
	s := strings.ToLower(strings.TrimSpace(value))
	switch s {
	case PresetFast, PresetNormal, PresetDeep:
		return s
	default:
		return PresetNormal
	}
}
