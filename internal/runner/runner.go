// Package runner evaluates every open task once per cycle and dispatches the
// reminders that are due, at most once per (task, kind).
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/sandeepkv93/remindd/internal/classify"
	"github.com/sandeepkv93/remindd/internal/clock"
	"github.com/sandeepkv93/remindd/internal/model"
	"github.com/sandeepkv93/remindd/internal/notify"
	"github.com/sandeepkv93/remindd/internal/tz"
)

const DefaultConcurrency = 4

type TaskStore interface {
	ActiveTasks(ctx context.Context) ([]model.Task, error)
	CommitReminderState(ctx context.Context, claim model.Claim, status model.ReminderStatus) error
}

type UserStore interface {
	GetUser(ctx context.Context, id string) (model.User, error)
}

// Gate grants a claim to exactly one caller.
type Gate interface {
	TryClaim(ctx context.Context, claim model.Claim) (bool, error)
}

type Resolver interface {
	Resolve(name string) (*time.Location, error)
}

type Stage string

const (
	StageOwner    Stage = "owner"
	StageClassify Stage = "classify"
	StageClaim    Stage = "claim"
	StageSend     Stage = "send"
	StageCommit   Stage = "commit"
)

type Failure struct {
	TaskID string
	Kind   model.ReminderKind
	Stage  Stage
	Err    error
}

func (f Failure) Error() string {
	if f.Kind == "" {
		return fmt.Sprintf("%s %s: %v", f.Stage, f.TaskID, f.Err)
	}
	return fmt.Sprintf("%s %s/%s: %v", f.Stage, f.TaskID, f.Kind, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

type RunReport struct {
	CycleID   string
	StartedAt time.Time
	Duration  time.Duration
	Evaluated int
	Skipped   int
	Claimed   int
	Sent      int
	Failed    int
	// Stale counts commits dropped because the deadline was edited while the
	// reminder was in flight.
	Stale    int
	Failures []Failure
}

type Runner struct {
	tasks       TaskStore
	users       UserStore
	gate        Gate
	notifier    notify.Notifier
	clock       clock.Clock
	resolver    Resolver
	log         zerolog.Logger
	concurrency int
}

type Option func(*Runner)

func WithClock(c clock.Clock) Option {
	return func(r *Runner) {
		if c != nil {
			r.clock = c
		}
	}
}

func WithResolver(res Resolver) Option {
	return func(r *Runner) {
		if res != nil {
			r.resolver = res
		}
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(r *Runner) { r.log = log }
}

// WithConcurrency bounds how many tasks are processed at once.
func WithConcurrency(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

func New(tasks TaskStore, users UserStore, gate Gate, notifier notify.Notifier, opts ...Option) (*Runner, error) {
	if tasks == nil || users == nil || gate == nil || notifier == nil {
		return nil, errors.New("runner: tasks, users, gate and notifier are required")
	}
	r := &Runner{
		tasks:       tasks,
		users:       users,
		gate:        gate,
		notifier:    notifier,
		clock:       clock.System{},
		resolver:    tz.NewResolver(),
		log:         zerolog.Nop(),
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// RunCycle evaluates all active tasks against the current instant. Only a
// failure to list tasks is returned as an error; everything else is isolated
// to its task and reported.
func (r *Runner) RunCycle(ctx context.Context) (RunReport, error) {
	now := r.clock.Now()
	rep := &tally{report: RunReport{CycleID: uuid.NewString(), StartedAt: now}}
	log := r.log.With().Str("cycle_id", rep.report.CycleID).Logger()
	started := time.Now()

	tasks, err := r.tasks.ActiveTasks(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to load active tasks")
		return rep.done(started), fmt.Errorf("runner: load active tasks: %w", err)
	}

	owners := newOwnerCache(r.users)
	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for _, task := range tasks {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			r.processTask(ctx, log, now, task, owners, rep)
			return nil
		})
	}
	_ = g.Wait()

	report := rep.done(started)
	log.Info().
		Int("tasks", len(tasks)).
		Int("evaluated", report.Evaluated).
		Int("skipped", report.Skipped).
		Int("claimed", report.Claimed).
		Int("sent", report.Sent).
		Int("failed", report.Failed).
		Int("stale", report.Stale).
		Dur("duration", report.Duration).
		Msg("reminder cycle finished")
	return report, ctx.Err()
}

func (r *Runner) processTask(ctx context.Context, log zerolog.Logger, now time.Time, task model.Task, owners *ownerCache, rep *tally) {
	owner, err := owners.get(ctx, task.OwnerID)
	if err != nil {
		r.fail(log, rep, Failure{TaskID: task.ID, Stage: StageOwner, Err: err})
		return
	}
	if !owner.EmailNotificationsEnabled {
		rep.add(func(rr *RunReport) { rr.Skipped++ })
		return
	}
	rep.add(func(rr *RunReport) { rr.Evaluated++ })

	loc, err := r.resolver.Resolve(owner.Timezone)
	if err != nil {
		r.fail(log, rep, Failure{TaskID: task.ID, Stage: StageClassify, Err: err})
		return
	}
	eligible, err := classify.Classify(task, now, loc)
	if err != nil {
		r.fail(log, rep, Failure{TaskID: task.ID, Stage: StageClassify, Err: err})
		return
	}

	revision := task.Revision
	if revision <= 0 {
		revision = 1
	}
	for _, kind := range eligible.Intersect(classify.Pending(task)).Kinds() {
		claim := model.Claim{TaskID: task.ID, Revision: revision, Kind: kind}
		claimed, err := r.gate.TryClaim(ctx, claim)
		if err != nil {
			r.fail(log, rep, Failure{TaskID: task.ID, Kind: kind, Stage: StageClaim, Err: err})
			continue
		}
		if !claimed {
			continue
		}
		rep.add(func(rr *RunReport) { rr.Claimed++ })

		msg := notify.Render(task, kind, loc)
		if err := r.notifier.Send(ctx, owner.Email, msg.Subject, msg.Body); err != nil {
			// The claim stays consumed; delivery is at most once.
			r.fail(log, rep, Failure{TaskID: task.ID, Kind: kind, Stage: StageSend, Err: err})
		} else {
			rep.add(func(rr *RunReport) { rr.Sent++ })
			log.Debug().
				Str("task_id", task.ID).
				Str("kind", string(kind)).
				Str("to", owner.Email).
				Msg("reminder sent")
		}

		if err := r.tasks.CommitReminderState(ctx, claim, model.ReminderSent); err != nil {
			if errors.Is(err, model.ErrStaleClaim) {
				rep.add(func(rr *RunReport) { rr.Stale++ })
				log.Info().
					Str("task_id", task.ID).
					Str("kind", string(kind)).
					Int64("revision", revision).
					Msg("deadline edited during dispatch, new schedule left pending")
				return
			}
			r.fail(log, rep, Failure{TaskID: task.ID, Kind: kind, Stage: StageCommit, Err: err})
		}
	}
}

func (r *Runner) fail(log zerolog.Logger, rep *tally, f Failure) {
	rep.add(func(rr *RunReport) {
		rr.Failed++
		rr.Failures = append(rr.Failures, f)
	})
	ev := log.Warn().Err(f.Err).Str("task_id", f.TaskID).Str("stage", string(f.Stage))
	if f.Kind != "" {
		ev = ev.Str("kind", string(f.Kind))
	}
	ev.Msg("reminder task failed")
}

type tally struct {
	mu     sync.Mutex
	report RunReport
}

func (t *tally) add(fn func(*RunReport)) {
	t.mu.Lock()
	fn(&t.report)
	t.mu.Unlock()
}

func (t *tally) done(started time.Time) RunReport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.report.Duration = time.Since(started)
	out := t.report
	out.Failures = append([]Failure(nil), t.report.Failures...)
	return out
}

// ownerCache looks each owner up at most once per cycle.
type ownerCache struct {
	users UserStore
	group singleflight.Group
	mu    sync.Mutex
	seen  map[string]ownerResult
}

type ownerResult struct {
	user model.User
	err  error
}

func newOwnerCache(users UserStore) *ownerCache {
	return &ownerCache{users: users, seen: make(map[string]ownerResult)}
}

func (c *ownerCache) get(ctx context.Context, id string) (model.User, error) {
	c.mu.Lock()
	res, ok := c.seen[id]
	c.mu.Unlock()
	if ok {
		return res.user, res.err
	}

	v, _, _ := c.group.Do(id, func() (any, error) {
		user, err := c.users.GetUser(ctx, id)
		if err != nil {
			err = fmt.Errorf("owner %s: %w", id, err)
		}
		out := ownerResult{user: user, err: err}
		c.mu.Lock()
		c.seen[id] = out
		c.mu.Unlock()
		return out, nil
	})
	res = v.(ownerResult)
	return res.user, res.err
}
