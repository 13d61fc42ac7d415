// Package twitter drives the Twitter/X web interface through a headless
// browser: login (including the emailed verification-code challenge),
// posting tweets and threads, replying, and reading a profile's latest
// tweet.
package twitter

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod/lib/proto"

	"github.com/hasan199191/crobot/internal/browser"
	"github.com/hasan199191/crobot/internal/logging"
)

const (
	loginURL   = "https://twitter.com/i/flow/login"
	homeURL    = "https://twitter.com/home"
	composeURL = "https://twitter.com/compose/tweet"

	selectorTimeout = 8 * time.Second
)

// Config holds the account and posting parameters.
type Config struct {
	Username string
	Password string

	// TweetLimit is the per-part character budget for threads.
	TweetLimit int
}

// CodeSource supplies the emailed verification code during a login
// challenge. Implemented by mailbox.Reader.
type CodeSource interface {
	WaitForCode(ctx context.Context, since time.Time) (string, error)
}

// Tweet is a tweet read back from a profile page.
type Tweet struct {
	URL      string
	Text     string
	Username string
}

// Client drives the posting surface.
type Client struct {
	cfg   Config
	mgr   *browser.Manager
	codes CodeSource
	rng   *rand.Rand

	mu       sync.Mutex
	loggedIn bool
}

// NewClient creates a client over an already-configured browser manager.
func NewClient(cfg Config, mgr *browser.Manager, codes CodeSource, rng *rand.Rand) *Client {
	if cfg.TweetLimit <= 0 {
		cfg.TweetLimit = 260
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Client{cfg: cfg, mgr: mgr, codes: codes, rng: rng}
}

// IsLoggedIn reports whether a login has been verified this run.
func (c *Client) IsLoggedIn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loggedIn
}

func (c *Client) setLoggedIn(v bool) {
	c.mu.Lock()
	c.loggedIn = v
	c.mu.Unlock()
}

// ForceRelogin drops the verified-login flag so the next action runs
// the full login flow again. Called after a posting failure that may
// mean the session expired.
func (c *Client) ForceRelogin() {
	c.setLoggedIn(false)
}

// jitter pauses between min and max seconds.
func (c *Client) jitter(ctx context.Context, minSec, maxSec int) error {
	return browser.Jitter(ctx, c.rng,
		time.Duration(minSec)*time.Second, time.Duration(maxSec)*time.Second)
}

// EnsureLoggedIn logs in unless a previous login is still live. A
// restored session is probed by loading the home feed first; the full
// credential flow only runs when that fails.
func (c *Client) EnsureLoggedIn(ctx context.Context) error {
	if c.IsLoggedIn() {
		return nil
	}

	if err := c.mgr.Start(ctx); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}

	// Try the persisted session before typing credentials.
	if err := c.mgr.Navigate(ctx, homeURL); err == nil {
		if _, _, err := c.mgr.ElementAny(ctx, 5*time.Second, loginSuccessSelectors...); err == nil {
			logging.Login("restored session is still valid")
			c.setLoggedIn(true)
			return nil
		}
	}

	return c.Login(ctx)
}

// Login performs the full credential login flow.
func (c *Client) Login(ctx context.Context) error {
	logging.Login("===== starting login flow =====")
	loginStart := time.Now()

	if err := c.mgr.Start(ctx); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}

	if err := c.mgr.Navigate(ctx, loginURL); err != nil {
		return fmt.Errorf("open login page: %w", err)
	}
	if err := c.jitter(ctx, 3, 5); err != nil {
		return err
	}
	c.mgr.Screenshot(ctx, "1_login_page")

	// Step 1: username.
	sel, err := c.mgr.InputAny(ctx, selectorTimeout, c.cfg.Username, usernameSelectors...)
	if err != nil {
		c.mgr.Screenshot(ctx, "login_username_not_found")
		return fmt.Errorf("username field: %w", err)
	}
	logging.Login("entered username via %q", sel)
	if err := c.jitter(ctx, 2, 3); err != nil {
		return err
	}

	if err := c.clickButtonByText(ctx, "Next"); err != nil {
		return fmt.Errorf("next button: %w", err)
	}
	if err := c.jitter(ctx, 4, 7); err != nil {
		return err
	}
	c.mgr.Screenshot(ctx, "2_after_username")

	// Step 2: password.
	sel, err = c.mgr.InputAny(ctx, selectorTimeout, c.cfg.Password, passwordSelectors...)
	if err != nil {
		c.mgr.Screenshot(ctx, "3_password_field_not_found")
		return fmt.Errorf("password field: %w", err)
	}
	logging.Login("entered password via %q", sel)
	if err := c.jitter(ctx, 2, 3); err != nil {
		return err
	}

	if err := c.clickButtonByText(ctx, "Log in"); err != nil {
		return fmt.Errorf("login button: %w", err)
	}
	if err := c.jitter(ctx, 4, 6); err != nil {
		return err
	}
	c.mgr.Screenshot(ctx, "4_after_login")

	// Step 3: security challenges.
	if c.challengePresent(ctx) {
		if err := c.handleChallenge(ctx, loginStart); err != nil {
			return err
		}
	}

	// Step 4: verify the home feed actually loaded.
	if err := c.jitter(ctx, 4, 7); err != nil {
		return err
	}
	if _, _, err := c.mgr.ElementAny(ctx, selectorTimeout, loginSuccessSelectors...); err != nil {
		c.mgr.Screenshot(ctx, "5_login_error")
		return fmt.Errorf("login verification failed: %w", err)
	}

	c.setLoggedIn(true)
	logging.Login("login verified, persisting session")
	if err := c.mgr.SaveSession(); err != nil {
		logging.LoginWarn("session save failed: %v", err)
	}
	return nil
}

func (c *Client) challengePresent(ctx context.Context) bool {
	for _, indicator := range securityIndicators {
		if c.mgr.HasText(ctx, indicator) {
			logging.Login("security challenge detected: %q", indicator)
			return true
		}
	}
	return false
}

// handleChallenge resolves a post-password security interstitial. The
// email-code variant is answered with the code from the mailbox; other
// variants get a best-effort skip.
func (c *Client) handleChallenge(ctx context.Context, loginStart time.Time) error {
	emailChallenge := false
	for _, indicator := range emailChallengeIndicators {
		if c.mgr.HasText(ctx, indicator) {
			emailChallenge = true
			break
		}
	}

	if !emailChallenge {
		// Interstitials like "save your login info" have a skip path.
		logging.LoginWarn("non-email challenge, attempting to skip")
		if err := c.clickButtonByText(ctx, "Skip|Continue|Not now"); err != nil {
			logging.LoginWarn("could not skip challenge: %v", err)
		}
		return c.jitter(ctx, 2, 3)
	}

	if c.codes == nil {
		return fmt.Errorf("email verification required but no mailbox configured")
	}

	logging.Login("email verification required, polling mailbox")
	code, err := c.codes.WaitForCode(ctx, loginStart)
	if err != nil {
		return fmt.Errorf("get verification code: %w", err)
	}

	if _, err := c.mgr.InputAny(ctx, selectorTimeout, code, verificationInputSelectors...); err != nil {
		c.mgr.Screenshot(ctx, "verification_input_not_found")
		return fmt.Errorf("verification input: %w", err)
	}
	if err := c.jitter(ctx, 1, 2); err != nil {
		return err
	}
	if err := c.clickButtonByText(ctx, "Next|Verify|Continue"); err != nil {
		return fmt.Errorf("verification submit: %w", err)
	}
	logging.Login("verification code submitted")
	return c.jitter(ctx, 3, 5)
}

// clickButtonByText clicks the first role=button whose text matches the
// given pattern. Covers the buttons the DOM exposes without testids.
func (c *Client) clickButtonByText(ctx context.Context, pattern string) error {
	page, err := c.mgr.Page()
	if err != nil {
		return err
	}
	el, err := page.Context(ctx).Timeout(selectorTimeout).
		ElementR(`div[role="button"], button`, pattern)
	if err != nil {
		return fmt.Errorf("button %q not found: %w", pattern, err)
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

// PostTweet posts content as a single tweet, or as a thread when it
// exceeds the per-tweet limit.
func (c *Client) PostTweet(ctx context.Context, content string) error {
	if err := c.EnsureLoggedIn(ctx); err != nil {
		return err
	}

	if len(content) > c.cfg.TweetLimit {
		logging.Compose("content is %d chars, posting as thread", len(content))
		return c.PostThread(ctx, SplitThread(content, c.cfg.TweetLimit))
	}
	return c.postSingle(ctx, content)
}

func (c *Client) postSingle(ctx context.Context, content string) error {
	logging.Compose("posting single tweet (%d chars)", len(content))

	if !strings.HasPrefix(c.mgr.URL(), homeURL) {
		if err := c.mgr.Navigate(ctx, homeURL); err != nil {
			return fmt.Errorf("navigate home: %w", err)
		}
		if err := c.jitter(ctx, 2, 4); err != nil {
			return err
		}
	}

	if _, err := c.mgr.ClickAny(ctx, selectorTimeout, composeButtonSelectors...); err != nil {
		c.mgr.Screenshot(ctx, "compose_button_not_found")
		return fmt.Errorf("compose button: %w", err)
	}
	if err := c.jitter(ctx, 2, 4); err != nil {
		return err
	}

	if _, err := c.mgr.InputAny(ctx, selectorTimeout, content, tweetTextareaSelectors...); err != nil {
		c.mgr.Screenshot(ctx, "tweet_content_not_entered")
		return fmt.Errorf("tweet textarea: %w", err)
	}
	if err := c.jitter(ctx, 2, 4); err != nil {
		return err
	}

	if _, err := c.mgr.ClickAny(ctx, selectorTimeout, postButtonSelectors...); err != nil {
		c.mgr.Screenshot(ctx, "post_button_not_found")
		return fmt.Errorf("post button: %w", err)
	}
	if err := c.jitter(ctx, 4, 8); err != nil {
		return err
	}

	c.mgr.Screenshot(ctx, "after_posting_tweet")
	logging.Compose("tweet posted")
	return nil
}

// PostThread posts the parts as one connected thread.
func (c *Client) PostThread(ctx context.Context, parts []string) error {
	if len(parts) == 0 {
		return fmt.Errorf("empty thread")
	}
	if err := c.EnsureLoggedIn(ctx); err != nil {
		return err
	}

	logging.Compose("posting thread with %d parts", len(parts))

	if err := c.mgr.Navigate(ctx, composeURL); err != nil {
		return fmt.Errorf("open composer: %w", err)
	}
	if err := c.jitter(ctx, 3, 5); err != nil {
		return err
	}

	if _, err := c.mgr.InputAny(ctx, selectorTimeout, parts[0], tweetTextareaSelectors...); err != nil {
		return fmt.Errorf("thread part 1: %w", err)
	}
	if err := c.jitter(ctx, 2, 3); err != nil {
		return err
	}

	for i, part := range parts[1:] {
		n := i + 2
		logging.ComposeDebug("adding thread part %d/%d", n, len(parts))

		if _, err := c.mgr.ClickAny(ctx, selectorTimeout, threadAddButtonSelectors...); err != nil {
			c.mgr.Screenshot(ctx, fmt.Sprintf("thread_add_%d_failed", n))
			return fmt.Errorf("thread add button for part %d: %w", n, err)
		}
		if err := c.jitter(ctx, 2, 3); err != nil {
			return err
		}

		textarea := fmt.Sprintf(`[data-testid="tweetTextarea_%d"]`, n-1)
		if _, err := c.mgr.InputAny(ctx, selectorTimeout, part, textarea); err != nil {
			c.mgr.Screenshot(ctx, fmt.Sprintf("thread_part_%d_failed", n))
			return fmt.Errorf("thread part %d: %w", n, err)
		}
		if err := c.jitter(ctx, 2, 3); err != nil {
			return err
		}
	}

	if _, err := c.mgr.ClickAny(ctx, selectorTimeout, `[data-testid="tweetButton"]`); err != nil {
		return fmt.Errorf("thread post button: %w", err)
	}
	if err := c.jitter(ctx, 5, 8); err != nil {
		return err
	}
	logging.Compose("thread posted")
	return nil
}

// PostComment replies to the tweet at tweetURL.
func (c *Client) PostComment(ctx context.Context, tweetURL, comment string) error {
	if err := c.EnsureLoggedIn(ctx); err != nil {
		return err
	}

	logging.Compose("replying to %s", tweetURL)
	if err := c.mgr.Navigate(ctx, tweetURL); err != nil {
		return fmt.Errorf("open tweet: %w", err)
	}
	if err := c.jitter(ctx, 3, 5); err != nil {
		return err
	}

	if _, err := c.mgr.ClickAny(ctx, selectorTimeout, replyButtonSelectors...); err != nil {
		return fmt.Errorf("reply button: %w", err)
	}
	if err := c.jitter(ctx, 2, 3); err != nil {
		return err
	}

	if _, err := c.mgr.InputAny(ctx, selectorTimeout, comment, tweetTextareaSelectors...); err != nil {
		return fmt.Errorf("reply textarea: %w", err)
	}
	if err := c.jitter(ctx, 2, 3); err != nil {
		return err
	}

	if _, err := c.mgr.ClickAny(ctx, selectorTimeout, postButtonSelectors...); err != nil {
		return fmt.Errorf("reply post button: %w", err)
	}
	if err := c.jitter(ctx, 3, 5); err != nil {
		return err
	}
	logging.Compose("reply posted")
	return nil
}

// LatestTweet returns the newest tweet on a profile page.
func (c *Client) LatestTweet(ctx context.Context, username string) (*Tweet, error) {
	if err := c.EnsureLoggedIn(ctx); err != nil {
		return nil, err
	}

	profileURL := "https://twitter.com/" + username
	if err := c.mgr.Navigate(ctx, profileURL); err != nil {
		return nil, fmt.Errorf("open profile %s: %w", username, err)
	}
	if err := c.jitter(ctx, 3, 5); err != nil {
		return nil, err
	}

	article, sel, err := c.mgr.ElementAny(ctx, selectorTimeout, tweetArticleSelectors...)
	if err != nil {
		return nil, fmt.Errorf("no tweet found for @%s: %w", username, err)
	}
	logging.ComposeDebug("found tweet for @%s via %q", username, sel)

	link, err := article.Element(`a[href*="/status/"]`)
	if err != nil {
		return nil, fmt.Errorf("tweet URL for @%s: %w", username, err)
	}
	href, err := link.Attribute("href")
	if err != nil || href == nil {
		return nil, fmt.Errorf("tweet href for @%s: %w", username, err)
	}
	url := *href
	if !strings.HasPrefix(url, "http") {
		url = "https://twitter.com" + url
	}

	text, err := article.Text()
	if err != nil {
		return nil, fmt.Errorf("tweet text for @%s: %w", username, err)
	}

	return &Tweet{URL: url, Text: text, Username: username}, nil
}
