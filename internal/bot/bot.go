// Package bot wires the pieces together: the scheduler picks when and
// what, the generator writes the text, the twitter client posts it, and
// the store remembers what happened.
package bot

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hasan199191/crobot/internal/generator"
	"github.com/hasan199191/crobot/internal/health"
	"github.com/hasan199191/crobot/internal/logging"
	"github.com/hasan199191/crobot/internal/scheduler"
	"github.com/hasan199191/crobot/internal/store"
	"github.com/hasan199191/crobot/internal/twitter"
)

// Poster is the posting surface the bot drives. Implemented by
// twitter.Client.
type Poster interface {
	EnsureLoggedIn(ctx context.Context) error
	IsLoggedIn() bool
	ForceRelogin()
	PostTweet(ctx context.Context, content string) error
	PostComment(ctx context.Context, tweetURL, comment string) error
	LatestTweet(ctx context.Context, username string) (*twitter.Tweet, error)
}

// History is the slice of the store the bot needs.
type History interface {
	RecordPost(ctx context.Context, kind store.Kind, target, content string) (string, error)
	HasCommented(ctx context.Context, tweetURL string) (bool, error)
	LastPostTime(ctx context.Context) (time.Time, error)
}

// Config holds the bot's content parameters.
type Config struct {
	Topics            []string
	MonitoredAccounts []string
}

// Bot is the orchestrator.
type Bot struct {
	cfg   Config
	post  Poster
	gen   generator.Client
	hist  History
	sched *scheduler.Scheduler
	rng   *rand.Rand
}

// New creates a bot. rng is injectable for tests; nil seeds from the
// clock.
func New(cfg Config, post Poster, gen generator.Client, hist History, sched *scheduler.Scheduler, rng *rand.Rand) *Bot {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Bot{cfg: cfg, post: post, gen: gen, hist: hist, sched: sched, rng: rng}
}

// Run drives the scheduler loop and the health endpoint until ctx is
// cancelled.
func (b *Bot) Run(ctx context.Context, healthAddr string) error {
	g, ctx := errgroup.WithContext(ctx)

	srv := health.NewServer(healthAddr, b.healthStatus)
	g.Go(func() error { return srv.Start(ctx) })
	g.Go(func() error { return b.sched.Run(ctx, b.tick) })

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// tick is one scheduled action. A login failure is surfaced so the next
// tick retries from scratch; content failures fall back from comment to
// post so a tick rarely goes to waste.
func (b *Bot) tick(ctx context.Context, kind scheduler.ActionKind) (scheduler.ActionKind, error) {
	if err := b.post.EnsureLoggedIn(ctx); err != nil {
		return scheduler.ActionSkip, fmt.Errorf("login: %w", err)
	}

	if kind == scheduler.ActionComment {
		done, err := b.tryComment(ctx)
		if err != nil {
			// The session may have died under us; redo the full
			// login before the next attempt.
			b.post.ForceRelogin()
			return scheduler.ActionSkip, err
		}
		if done {
			return scheduler.ActionComment, nil
		}
		logging.Scheduler("no comment candidate, posting instead")
		kind = scheduler.ActionPost
	}

	if err := b.doPost(ctx); err != nil {
		b.post.ForceRelogin()
		return scheduler.ActionSkip, err
	}
	return scheduler.ActionPost, nil
}

// doPost generates and posts a fresh tweet on a random topic.
func (b *Bot) doPost(ctx context.Context) error {
	topic := "crypto markets"
	if len(b.cfg.Topics) > 0 {
		topic = b.cfg.Topics[b.rng.Intn(len(b.cfg.Topics))]
	}

	text, err := b.gen.CompleteWithSystem(ctx, generator.SystemPrompt(), generator.PostPrompt(topic))
	if err != nil {
		return fmt.Errorf("generate post: %w", err)
	}
	text = generator.Sanitize(text)
	if text == "" {
		return fmt.Errorf("generator returned empty post for topic %q", topic)
	}

	if err := b.post.PostTweet(ctx, text); err != nil {
		return fmt.Errorf("post tweet: %w", err)
	}
	if _, err := b.hist.RecordPost(ctx, store.KindPost, topic, text); err != nil {
		logging.Scheduler("history write failed: %v", err)
	}
	return nil
}

// tryComment looks for a monitored account with an un-commented latest
// tweet and replies to it. Returns false when no candidate exists.
func (b *Bot) tryComment(ctx context.Context) (bool, error) {
	if len(b.cfg.MonitoredAccounts) == 0 {
		return false, nil
	}

	// Random starting offset spreads attention across accounts.
	offset := b.rng.Intn(len(b.cfg.MonitoredAccounts))
	for i := range b.cfg.MonitoredAccounts {
		account := b.cfg.MonitoredAccounts[(offset+i)%len(b.cfg.MonitoredAccounts)]

		tweet, err := b.post.LatestTweet(ctx, account)
		if err != nil {
			logging.Scheduler("latest tweet for @%s: %v", account, err)
			continue
		}

		seen, err := b.hist.HasCommented(ctx, tweet.URL)
		if err != nil {
			return false, fmt.Errorf("comment history: %w", err)
		}
		if seen {
			continue
		}

		reply, err := b.gen.CompleteWithSystem(ctx, generator.SystemPrompt(), generator.ReplyPrompt(tweet.Text))
		if err != nil {
			return false, fmt.Errorf("generate reply: %w", err)
		}
		reply = generator.Sanitize(reply)
		if reply == "" {
			continue
		}

		if err := b.post.PostComment(ctx, tweet.URL, reply); err != nil {
			return false, fmt.Errorf("post comment on %s: %w", tweet.URL, err)
		}
		if _, err := b.hist.RecordPost(ctx, store.KindComment, tweet.URL, reply); err != nil {
			logging.Scheduler("history write failed: %v", err)
		}
		return true, nil
	}
	return false, nil
}

func (b *Bot) healthStatus() health.Status {
	m := b.sched.Metrics()
	st := health.Status{
		Status:        "ok",
		LoggedIn:      b.post.IsLoggedIn(),
		PostsToday:    m.PostsToday,
		CommentsToday: m.CommentsToday,
		NextAction:    m.NextActionAt,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if last, err := b.hist.LastPostTime(ctx); err == nil {
		st.LastPost = last
	}
	return st
}
