// Package scheduler runs the posting loop on a randomized cadence with
// daily action budgets. Randomized delays keep the cadence organic;
// budgets keep the account under the platform's informal rate ceilings.
package scheduler

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/hasan199191/crobot/internal/logging"
)

// ActionKind identifies what the loop did on a given tick.
type ActionKind string

const (
	ActionPost    ActionKind = "post"
	ActionComment ActionKind = "comment"
	ActionSkip    ActionKind = "skip"
)

// Config configures the cadence and budgets.
type Config struct {
	MinInterval time.Duration // Lower bound between actions
	MaxInterval time.Duration // Upper bound between actions

	MaxPostsPerDay    int
	MaxCommentsPerDay int

	// CommentProbability is the chance a tick attempts a comment
	// instead of a fresh post, in [0, 1].
	CommentProbability float64
}

// DefaultConfig returns the cadence used in production.
func DefaultConfig() Config {
	return Config{
		MinInterval:        45 * time.Minute,
		MaxInterval:        2 * time.Hour,
		MaxPostsPerDay:     8,
		MaxCommentsPerDay:  12,
		CommentProbability: 0.4,
	}
}

// Action is one unit of work executed per tick. It reports what it did
// so the budget for the right kind is consumed.
type Action func(ctx context.Context, kind ActionKind) (ActionKind, error)

// Metrics is a point-in-time snapshot of the loop.
type Metrics struct {
	PostsToday    int
	CommentsToday int
	TotalTicks    int64
	TotalErrors   int64
	LastAction    ActionKind
	LastActionAt  time.Time
	NextActionAt  time.Time
}

// Scheduler drives the action loop.
type Scheduler struct {
	cfg Config
	rng *rand.Rand
	now func() time.Time

	mu            sync.Mutex
	postsToday    int
	commentsToday int
	budgetDay     time.Time
	totalTicks    int64
	totalErrors   int64
	lastAction    ActionKind
	lastActionAt  time.Time
	nextActionAt  time.Time
}

// New creates a scheduler. rng and now are injectable for tests; nil
// selects time-seeded randomness and the wall clock.
func New(cfg Config, rng *rand.Rand, now func() time.Time) *Scheduler {
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = time.Minute
	}
	if cfg.MaxInterval < cfg.MinInterval {
		cfg.MaxInterval = cfg.MinInterval
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if now == nil {
		now = time.Now
	}
	s := &Scheduler{cfg: cfg, rng: rng, now: now}
	s.budgetDay = dayOf(now())
	return s
}

// Seed primes today's budgets from persisted history, so a restart
// mid-day does not grant a fresh allowance.
func (s *Scheduler) Seed(posts, comments int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rolloverLocked()
	if posts > s.postsToday {
		s.postsToday = posts
	}
	if comments > s.commentsToday {
		s.commentsToday = comments
	}
}

// UpdateConfig swaps in new cadence settings. Takes effect from the
// next tick; budgets already consumed today are kept.
func (s *Scheduler) UpdateConfig(cfg Config) {
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = time.Minute
	}
	if cfg.MaxInterval < cfg.MinInterval {
		cfg.MaxInterval = cfg.MinInterval
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	logging.Scheduler("cadence updated: %s to %s, caps %d/%d",
		cfg.MinInterval, cfg.MaxInterval, cfg.MaxPostsPerDay, cfg.MaxCommentsPerDay)
}

// NextDelay returns a uniformly random delay in [MinInterval, MaxInterval].
func (s *Scheduler) NextDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	span := s.cfg.MaxInterval - s.cfg.MinInterval
	if span <= 0 {
		return s.cfg.MinInterval
	}
	return s.cfg.MinInterval + time.Duration(s.rng.Int63n(int64(span)))
}

// PickKind chooses the next action kind, honoring remaining budgets.
// Returns ActionSkip when both budgets are spent.
func (s *Scheduler) PickKind() ActionKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rolloverLocked()

	postOK := s.postsToday < s.cfg.MaxPostsPerDay
	commentOK := s.commentsToday < s.cfg.MaxCommentsPerDay

	switch {
	case !postOK && !commentOK:
		return ActionSkip
	case !postOK:
		return ActionComment
	case !commentOK:
		return ActionPost
	case s.rng.Float64() < s.cfg.CommentProbability:
		return ActionComment
	default:
		return ActionPost
	}
}

// Record books a completed action against today's budget.
func (s *Scheduler) Record(kind ActionKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rolloverLocked()
	switch kind {
	case ActionPost:
		s.postsToday++
	case ActionComment:
		s.commentsToday++
	}
	s.lastAction = kind
	s.lastActionAt = s.now()
}

// rolloverLocked resets the budgets when the local day changes.
func (s *Scheduler) rolloverLocked() {
	today := dayOf(s.now())
	if today.Equal(s.budgetDay) {
		return
	}
	logging.Scheduler("new day, resetting budgets (posted %d, commented %d yesterday)",
		s.postsToday, s.commentsToday)
	s.budgetDay = today
	s.postsToday = 0
	s.commentsToday = 0
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Metrics returns a snapshot of loop state.
func (s *Scheduler) Metrics() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rolloverLocked()
	return Metrics{
		PostsToday:    s.postsToday,
		CommentsToday: s.commentsToday,
		TotalTicks:    s.totalTicks,
		TotalErrors:   s.totalErrors,
		LastAction:    s.lastAction,
		LastActionAt:  s.lastActionAt,
		NextActionAt:  s.nextActionAt,
	}
}

// Run executes the action loop until ctx is cancelled. The first action
// fires after a short warmup rather than a full interval so a fresh
// deployment produces output promptly.
func (s *Scheduler) Run(ctx context.Context, action Action) error {
	s.mu.Lock()
	warmup := s.cfg.MinInterval / 10
	s.mu.Unlock()
	if warmup > time.Minute {
		warmup = time.Minute
	}
	delay := warmup

	for {
		s.mu.Lock()
		s.nextActionAt = s.now().Add(delay)
		s.mu.Unlock()
		logging.Scheduler("next action in %s", delay.Round(time.Second))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			logging.Scheduler("loop stopped: %v", ctx.Err())
			return ctx.Err()
		case <-timer.C:
		}

		s.mu.Lock()
		s.totalTicks++
		s.mu.Unlock()

		kind := s.PickKind()
		if kind == ActionSkip {
			logging.Scheduler("daily budgets exhausted, skipping tick")
			delay = s.NextDelay()
			continue
		}

		done, err := action(ctx, kind)
		if err != nil {
			s.mu.Lock()
			s.totalErrors++
			s.mu.Unlock()
			logging.SchedulerDebug("action %s failed: %v", kind, err)
		} else if done != ActionSkip {
			s.Record(done)
			s.mu.Lock()
			logging.Scheduler("%s done (posts %d/%d, comments %d/%d today)",
				done, s.postsToday, s.cfg.MaxPostsPerDay,
				s.commentsToday, s.cfg.MaxCommentsPerDay)
			s.mu.Unlock()
		}

		delay = s.NextDelay()
	}
}
