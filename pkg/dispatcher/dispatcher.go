package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"clusterdash/pkg/log"
	"clusterdash/pkg/models"
	"clusterdash/pkg/reader"
)

const defaultInterval = 5 * time.Minute

// ErrRefreshInProgress is returned when a refresh is requested while another is running.
var ErrRefreshInProgress = errors.New("refresh already in progress")

type State string

const (
	StateIdle       State = "idle"
	StateRefreshing State = "refreshing"
)

// SnapshotReader reads the latest snapshot.
type SnapshotReader interface {
	ReadLatest(ctx context.Context) (*reader.Result, error)
}

// Renderer turns one cluster's pair into a chart.
type Renderer interface {
	Name() models.ClusterName
	Render(pair models.UtilizationPair) models.ChartSpec
}

// Listener is notified synchronously after every refresh attempt.
type Listener interface {
	RefreshSucceeded(frame *Frame, elapsed time.Duration)
	RefreshFailed(err error, elapsed time.Duration)
}

// Frame is one published display state together with the charts rendered from it.
// A frame is never modified after it has been published.
type Frame struct {
	State  *models.DisplayState
	Charts []models.ChartSpec
}

// Chart returns the chart for the named cluster.
func (f *Frame) Chart(name models.ClusterName) (models.ChartSpec, bool) {
	if f == nil {
		return models.ChartSpec{}, false
	}
	for _, chart := range f.Charts {
		if chart.Cluster == name {
			return chart, true
		}
	}
	return models.ChartSpec{}, false
}

// Status describes the refresh history.
type Status struct {
	State               State     `json:"state"`
	Interval            string    `json:"interval"`
	SnapshotID          int64     `json:"snapshot_id"`
	LastAttempt         time.Time `json:"last_attempt"`
	LastSuccess         time.Time `json:"last_success"`
	LastError           string    `json:"last_error,omitempty"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	DroppedTicks        int64     `json:"dropped_ticks"`
}

// Healthy reports whether the last refresh attempt succeeded.
func (s Status) Healthy() bool {
	return !s.LastSuccess.IsZero() && s.ConsecutiveFailures == 0
}

// Dispatcher reads one snapshot per tick and fans it out to every renderer,
// so all charts always come from the same snapshot.
type Dispatcher struct {
	reader    SnapshotReader
	renderers []Renderer
	listeners []Listener
	interval  time.Duration

	frame      atomic.Pointer[Frame]
	refreshing atomic.Bool
	dropped    atomic.Int64

	mu     sync.RWMutex
	status Status

	cancel context.CancelFunc
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a dispatcher. A non-positive interval falls back to five minutes.
func New(rd SnapshotReader, renderers []Renderer, interval time.Duration, listeners ...Listener) *Dispatcher {
	if interval <= 0 {
		interval = defaultInterval
	}

	return &Dispatcher{
		reader:    rd,
		renderers: renderers,
		listeners: listeners,
		interval:  interval,
		status:    Status{State: StateIdle, Interval: interval.String()},
		stopCh:    make(chan struct{}),
	}
}

// Interval returns the refresh period.
func (d *Dispatcher) Interval() time.Duration {
	return d.interval
}

// Start performs one synchronous refresh, then refreshes on every tick until Stop.
// A failing first read is logged and does not prevent the loop from starting.
func (d *Dispatcher) Start(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.Refresh(loopCtx); err != nil {
		log.Warn().Err(err).Msg("Initial refresh failed, dashboard starts empty")
	}

	d.wg.Add(1)
	go d.refreshLoop(loopCtx)

	log.Info().
		Dur("interval", d.interval).
		Int("renderers", len(d.renderers)).
		Msg("Refresh dispatcher started")
}

// Stop ends the loop and waits for an in-flight refresh to finish.
func (d *Dispatcher) Stop() {
	close(d.stopCh)
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
	log.Info().Msg("Refresh dispatcher stopped")
}

// Clusters returns the rendered cluster names in display order.
func (d *Dispatcher) Clusters() []models.ClusterName {
	names := make([]models.ClusterName, 0, len(d.renderers))
	for _, r := range d.renderers {
		names = append(names, r.Name())
	}
	return names
}

// Frame returns the currently published frame, or nil before the first successful refresh.
func (d *Dispatcher) Frame() *Frame {
	return d.frame.Load()
}

// Status returns a copy of the refresh status.
func (d *Dispatcher) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	status := d.status
	status.DroppedTicks = d.dropped.Load()
	return status
}

// Refresh reads the latest snapshot once and publishes a new frame on success.
// On failure the current frame stays in place. A call made while another refresh
// is running is dropped and returns ErrRefreshInProgress.
func (d *Dispatcher) Refresh(ctx context.Context) error {
	if !d.refreshing.CompareAndSwap(false, true) {
		d.dropped.Add(1)
		return ErrRefreshInProgress
	}
	defer d.refreshing.Store(false)

	start := time.Now()
	d.setState(StateRefreshing, start)
	defer d.setState(StateIdle, time.Time{})

	frame, err := d.read(ctx, start)
	elapsed := time.Since(start)
	if err != nil {
		d.recordFailure(err)
		for _, l := range d.listeners {
			l.RefreshFailed(err, elapsed)
		}
		return err
	}

	d.frame.Store(frame)
	d.recordSuccess(frame)
	for _, l := range d.listeners {
		l.RefreshSucceeded(frame, elapsed)
	}

	log.Debug().
		Int64("snapshot_id", frame.State.SnapshotID).
		Dur("elapsed", elapsed).
		Msg("Display state refreshed")
	return nil
}

func (d *Dispatcher) read(ctx context.Context, start time.Time) (*Frame, error) {
	result, err := d.reader.ReadLatest(ctx)
	if err != nil {
		return nil, err
	}

	state := &models.DisplayState{
		SnapshotID:  result.SnapshotID,
		SnapshotAt:  result.SnapshotAt,
		RefreshedAt: start,
		Pairs:       make(map[models.ClusterName]models.UtilizationPair, len(result.Pairs)),
	}
	for name, pair := range result.Pairs {
		state.Pairs[name] = pair
	}

	charts := make([]models.ChartSpec, 0, len(d.renderers))
	for _, r := range d.renderers {
		pair, ok := state.Pairs[r.Name()]
		if !ok {
			return nil, fmt.Errorf("%w: no data for cluster %q", reader.ErrMalformedRecord, r.Name())
		}
		charts = append(charts, r.Render(pair))
	}

	return &Frame{State: state, Charts: charts}, nil
}

func (d *Dispatcher) refreshLoop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.wg.Add(1)
			go d.tick(ctx)
		}
	}
}

func (d *Dispatcher) tick(ctx context.Context) {
	defer d.wg.Done()

	err := d.Refresh(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrRefreshInProgress):
		log.Debug().Msg("Tick dropped, refresh still running")
	case errors.Is(err, context.Canceled):
	default:
		log.Warn().Err(err).Msg("Refresh failed, keeping last good display state")
	}
}

func (d *Dispatcher) setState(state State, attempt time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.status.State = state
	if !attempt.IsZero() {
		d.status.LastAttempt = attempt
	}
}

func (d *Dispatcher) recordSuccess(frame *Frame) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.status.SnapshotID = frame.State.SnapshotID
	d.status.LastSuccess = frame.State.RefreshedAt
	d.status.LastError = ""
	d.status.ConsecutiveFailures = 0
}

func (d *Dispatcher) recordFailure(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.status.LastError = err.Error()
	d.status.ConsecutiveFailures++
}
