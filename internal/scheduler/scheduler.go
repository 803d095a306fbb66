package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"StochSentinel/internal/collector"
	"StochSentinel/internal/model"
	"StochSentinel/internal/notifier"
	"StochSentinel/internal/recorder"
	"StochSentinel/internal/strategy"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// ErrCycleRunning is returned when a cycle is requested while another is active.
var ErrCycleRunning = errors.New("a screening cycle is already running")

// State is the scheduler's position in the Idle -> Running -> (Waiting) cycle.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateWaiting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateWaiting:
		return "waiting"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Scheduler runs screening cycles one at a time.
type Scheduler struct {
	Collector  *collector.Collector
	Notifier   notifier.Notifier
	Recorder   recorder.Recorder
	Thresholds strategy.Thresholds
	Log        logrus.FieldLogger
	Cron       *cron.Cron

	running    atomic.Bool
	continuous atomic.Bool
	state      atomic.Int32

	mu   sync.Mutex
	last *model.CycleReport

	now   func() time.Time
	newID func() string
}

// NewScheduler creates a new Scheduler.
func NewScheduler(col *collector.Collector, n notifier.Notifier, rec recorder.Recorder, th strategy.Thresholds, log logrus.FieldLogger) *Scheduler {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Scheduler{
		Collector:  col,
		Notifier:   n,
		Recorder:   rec,
		Thresholds: th,
		Log:        log,
		now:        time.Now,
		newID:      func() string { return uuid.New().String() },
	}
}

func (s *Scheduler) State() State { return State(s.state.Load()) }

func (s *Scheduler) setState(st State) { s.state.Store(int32(st)) }

// Last returns the report of the most recent finished cycle, or nil.
func (s *Scheduler) Last() *model.CycleReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// RunCycle scans the universe, classifies the snapshots and sends at most one alert.
// The returned error is non-nil only when the cycle could not run: the universe
// could not be listed, or another cycle is active. Delivery failures are reported
// on the CycleReport.
func (s *Scheduler) RunCycle(ctx context.Context) (*model.CycleReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrCycleRunning
	}
	defer s.running.Store(false)

	s.setState(StateRunning)
	defer func() {
		if s.continuous.Load() {
			s.setState(StateWaiting)
		} else {
			s.setState(StateIdle)
		}
	}()

	rep := &model.CycleReport{
		ID:        s.newID(),
		Source:    s.Collector.Source.Name(),
		Timeframe: s.Collector.Opts.Timeframe,
		StartedAt: s.now(),
	}
	log := s.Log.WithFields(logrus.Fields{"cycle": rep.ID, "source": rep.Source, "timeframe": rep.Timeframe})
	log.Info("screening cycle started")
	defer s.finish(rep, log)

	res, err := s.Collector.Collect(ctx)
	if err != nil {
		rep.Err = err
		log.WithError(err).Error("screening cycle aborted")
		return rep, err
	}
	rep.Universe = res.Universe
	rep.Scanned = len(res.Snapshots)
	rep.Skipped = len(res.Skipped)
	rep.Classification = strategy.Classify(res.Snapshots, s.Thresholds)

	if msg, ok := notifier.ComposeAlert(notifier.AlertTitle(rep.Source, rep.Timeframe), rep.Classification); ok {
		rep.Alert = msg
		if err := s.Notifier.Send(ctx, msg); err != nil {
			if !errors.Is(err, notifier.ErrDeliveryFailed) {
				err = fmt.Errorf("%w: %w", notifier.ErrDeliveryFailed, err)
			}
			rep.DeliveryErr = err
			log.WithError(err).Error("alert delivery failed")
		} else {
			rep.AlertSent = true
		}
	}

	log.WithFields(logrus.Fields{
		"universe":   rep.Universe,
		"scanned":    rep.Scanned,
		"skipped":    rep.Skipped,
		"oversold":   len(rep.Classification.Oversold),
		"overbought": len(rep.Classification.Overbought),
		"alert_sent": rep.AlertSent,
	}).Info("screening cycle finished")
	return rep, nil
}

func (s *Scheduler) finish(rep *model.CycleReport, log logrus.FieldLogger) {
	rep.FinishedAt = s.now()
	if err := s.Recorder.RecordCycle(rep); err != nil {
		log.WithError(err).Error("record cycle")
	}
	s.mu.Lock()
	s.last = rep
	s.mu.Unlock()
}

// Run repeats cycles with delay between the end of one and the start of the next,
// until ctx is cancelled. Cycle errors are logged and never stop the loop.
// Cancellation is checked before every new cycle.
func (s *Scheduler) Run(ctx context.Context, delay time.Duration) {
	s.continuous.Store(true)
	defer func() {
		s.continuous.Store(false)
		s.setState(StateIdle)
	}()

	for {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.RunCycle(ctx); err != nil {
			s.Log.WithError(err).Warn("cycle failed, next attempt after delay")
		}
		s.setState(StateWaiting)
		s.Log.Debugf("waiting %v before next cycle", delay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// StartCron runs cycles on a cron schedule (with seconds field) instead of a fixed delay.
// Overlapping triggers are skipped.
func (s *Scheduler) StartCron(ctx context.Context, spec string) error {
	logger := cron.PrintfLogger(s.Log)
	s.Cron = cron.New(
		cron.WithSeconds(),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := s.Cron.AddFunc(spec, func() {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.RunCycle(ctx); err != nil {
			s.Log.WithError(err).Warn("scheduled cycle failed")
		}
	}); err != nil {
		return fmt.Errorf("register screening task: %w", err)
	}
	s.Cron.Start()
	s.Log.WithField("cron", spec).Info("scheduler started")
	return nil
}

// Stop stops the cron scheduler and waits for a running cycle to finish.
func (s *Scheduler) Stop() {
	if s.Cron == nil {
		return
	}
	<-s.Cron.Stop().Done()
	s.Log.Info("scheduler stopped")
}

// HandleCommand processes a chat command and returns a reply.
// Group chats address commands as /scan@BotName; the suffix is ignored.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	switch normalizeCommand(command) {
	case "/scan":
		rep, err := s.RunCycle(ctx)
		switch {
		case errors.Is(err, ErrCycleRunning):
			return "⏳ A screening cycle is already running."
		case err != nil:
			return notifier.FormatCycleSummary(rep)
		case rep.AlertSent:
			// The alert itself is the reply.
			return ""
		default:
			return notifier.FormatCycleSummary(rep)
		}
	case "/status":
		return fmt.Sprintf("State: %s\n\n%s", s.State(), notifier.FormatCycleSummary(s.Last()))
	case "/test":
		return "✅ Test message from <b>StochSentinel</b> delivered!"
	default:
		return "Available commands:\n• /scan run the screener now\n• /status last cycle summary\n• /test send a test message"
	}
}

func normalizeCommand(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	name, _, _ := strings.Cut(fields[0], "@")
	return name
}
