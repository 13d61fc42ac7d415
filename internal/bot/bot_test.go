package bot

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/hasan199191/crobot/internal/scheduler"
	"github.com/hasan199191/crobot/internal/store"
	"github.com/hasan199191/crobot/internal/twitter"
)

type fakePoster struct {
	loggedIn  bool
	loginErr  error
	tweets    []string
	comments  map[string]string
	latest    map[string]*twitter.Tweet
	latestErr error
}

func (f *fakePoster) EnsureLoggedIn(ctx context.Context) error {
	if f.loginErr != nil {
		return f.loginErr
	}
	f.loggedIn = true
	return nil
}

func (f *fakePoster) IsLoggedIn() bool { return f.loggedIn }

func (f *fakePoster) ForceRelogin() { f.loggedIn = false }

func (f *fakePoster) PostTweet(ctx context.Context, content string) error {
	f.tweets = append(f.tweets, content)
	return nil
}

func (f *fakePoster) PostComment(ctx context.Context, tweetURL, comment string) error {
	if f.comments == nil {
		f.comments = map[string]string{}
	}
	f.comments[tweetURL] = comment
	return nil
}

func (f *fakePoster) LatestTweet(ctx context.Context, username string) (*twitter.Tweet, error) {
	if f.latestErr != nil {
		return nil, f.latestErr
	}
	if t, ok := f.latest[username]; ok {
		return t, nil
	}
	return nil, errors.New("no tweet")
}

type fakeGen struct {
	out string
	err error
}

func (f *fakeGen) Complete(ctx context.Context, prompt string) (string, error) {
	return f.out, f.err
}

func (f *fakeGen) CompleteWithSystem(ctx context.Context, sys, prompt string) (string, error) {
	return f.out, f.err
}

type fakeHistory struct {
	rows      []store.Post
	commented map[string]bool
}

func (f *fakeHistory) RecordPost(ctx context.Context, kind store.Kind, target, content string) (string, error) {
	f.rows = append(f.rows, store.Post{Kind: kind, Target: target, Content: content, PostedAt: time.Now()})
	return "id", nil
}

func (f *fakeHistory) HasCommented(ctx context.Context, tweetURL string) (bool, error) {
	return f.commented[tweetURL], nil
}

func (f *fakeHistory) LastPostTime(ctx context.Context) (time.Time, error) {
	if len(f.rows) == 0 {
		return time.Time{}, nil
	}
	return f.rows[len(f.rows)-1].PostedAt, nil
}

func newTestBot(cfg Config, p *fakePoster, g *fakeGen, h *fakeHistory) *Bot {
	sched := scheduler.New(scheduler.DefaultConfig(), rand.New(rand.NewSource(1)), nil)
	return New(cfg, p, g, h, sched, rand.New(rand.NewSource(1)))
}

func TestTick_PostsOnTopic(t *testing.T) {
	p := &fakePoster{}
	g := &fakeGen{out: "fresh take on rollups"}
	h := &fakeHistory{}
	b := newTestBot(Config{Topics: []string{"rollups"}}, p, g, h)

	kind, err := b.tick(context.Background(), scheduler.ActionPost)
	if err != nil {
		t.Fatalf("tick failed: %v", err)
	}
	if kind != scheduler.ActionPost {
		t.Errorf("expected post action, got %s", kind)
	}
	if len(p.tweets) != 1 || p.tweets[0] != "fresh take on rollups" {
		t.Errorf("tweet not posted: %v", p.tweets)
	}
	if len(h.rows) != 1 || h.rows[0].Kind != store.KindPost {
		t.Errorf("history not written: %+v", h.rows)
	}
}

func TestTick_CommentsOnMonitoredAccount(t *testing.T) {
	tweet := &twitter.Tweet{URL: "https://twitter.com/vitalik/status/9", Text: "on sharding", Username: "vitalik"}
	p := &fakePoster{latest: map[string]*twitter.Tweet{"vitalik": tweet}}
	g := &fakeGen{out: "good point about sharding"}
	h := &fakeHistory{commented: map[string]bool{}}
	b := newTestBot(Config{MonitoredAccounts: []string{"vitalik"}}, p, g, h)

	kind, err := b.tick(context.Background(), scheduler.ActionComment)
	if err != nil {
		t.Fatalf("tick failed: %v", err)
	}
	if kind != scheduler.ActionComment {
		t.Errorf("expected comment action, got %s", kind)
	}
	if p.comments[tweet.URL] != "good point about sharding" {
		t.Errorf("comment not posted: %v", p.comments)
	}
	if len(h.rows) != 1 || h.rows[0].Kind != store.KindComment || h.rows[0].Target != tweet.URL {
		t.Errorf("history not written: %+v", h.rows)
	}
}

func TestTick_SkipsAlreadyCommentedTweet(t *testing.T) {
	tweet := &twitter.Tweet{URL: "https://twitter.com/a/status/1", Text: "x", Username: "a"}
	p := &fakePoster{latest: map[string]*twitter.Tweet{"a": tweet}}
	g := &fakeGen{out: "text"}
	h := &fakeHistory{commented: map[string]bool{tweet.URL: true}}
	b := newTestBot(Config{Topics: []string{"t"}, MonitoredAccounts: []string{"a"}}, p, g, h)

	kind, err := b.tick(context.Background(), scheduler.ActionComment)
	if err != nil {
		t.Fatalf("tick failed: %v", err)
	}
	if kind != scheduler.ActionPost {
		t.Errorf("expected fallback to post, got %s", kind)
	}
	if len(p.comments) != 0 {
		t.Errorf("tweet commented twice: %v", p.comments)
	}
	if len(p.tweets) != 1 {
		t.Errorf("fallback post missing: %v", p.tweets)
	}
}

func TestTick_LoginFailureSkips(t *testing.T) {
	p := &fakePoster{loginErr: errors.New("challenge failed")}
	b := newTestBot(Config{Topics: []string{"t"}}, p, &fakeGen{out: "x"}, &fakeHistory{})

	kind, err := b.tick(context.Background(), scheduler.ActionPost)
	if err == nil {
		t.Fatal("expected login error to surface")
	}
	if kind != scheduler.ActionSkip {
		t.Errorf("expected skip on login failure, got %s", kind)
	}
}

func TestTick_EmptyGenerationFails(t *testing.T) {
	p := &fakePoster{}
	b := newTestBot(Config{Topics: []string{"t"}}, p, &fakeGen{out: "   "}, &fakeHistory{})

	if _, err := b.tick(context.Background(), scheduler.ActionPost); err == nil {
		t.Fatal("expected error for empty generated post")
	}
	if len(p.tweets) != 0 {
		t.Errorf("empty content must not be posted: %v", p.tweets)
	}
}

func TestRun_CleanShutdownOnCancel(t *testing.T) {
	p := &fakePoster{}
	b := newTestBot(Config{Topics: []string{"t"}}, p, &fakeGen{out: "x"}, &fakeHistory{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		// Cancellation surfaces through errgroup wrapped in whatever
		// component saw it first; a clean shutdown must return nil.
		if err != nil {
			t.Errorf("expected nil on cancellation, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("bot did not shut down")
	}
}

func TestHealthStatus(t *testing.T) {
	p := &fakePoster{loggedIn: true}
	h := &fakeHistory{}
	b := newTestBot(Config{}, p, &fakeGen{out: "x"}, h)

	st := b.healthStatus()
	if st.Status != "ok" {
		t.Errorf("status %q", st.Status)
	}
	if !st.LoggedIn {
		t.Error("logged_in should reflect the poster")
	}
}
