// Package mailbox retrieves one-time login verification codes from the
// account's IMAP inbox. The login flow blocks on WaitForCode while the
// platform delivers the challenge email.
package mailbox

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/hasan199191/crobot/internal/logging"
)

// Config holds IMAP mailbox configuration.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string

	// Sender the verification email is expected from. Empty accepts
	// any sender (useful against forwarding setups).
	VerificationSender string

	PollInterval time.Duration
	WaitTimeout  time.Duration
}

// DefaultConfig returns sensible defaults for a Gmail inbox.
func DefaultConfig() Config {
	return Config{
		Host:               "imap.gmail.com",
		Port:               993,
		VerificationSender: "info@x.com",
		PollInterval:       10 * time.Second,
		WaitTimeout:        3 * time.Minute,
	}
}

// Reader polls an IMAP mailbox for verification codes.
type Reader struct {
	cfg Config

	// dial is swappable for tests.
	dial func(addr string) (imapClient, error)
}

// imapClient is the slice of go-imap's client used by the reader.
type imapClient interface {
	Login(username, password string) error
	Select(name string, readOnly bool) (*imap.MailboxStatus, error)
	Search(criteria *imap.SearchCriteria) ([]uint32, error)
	Fetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	Logout() error
}

// NewReader creates a mailbox reader.
func NewReader(cfg Config) *Reader {
	return &Reader{
		cfg: cfg,
		dial: func(addr string) (imapClient, error) {
			return client.DialTLS(addr, nil)
		},
	}
}

// WaitForCode polls the inbox until a verification code delivered after
// `since` shows up, the wait timeout elapses, or ctx is cancelled.
func (r *Reader) WaitForCode(ctx context.Context, since time.Time) (string, error) {
	deadline := time.Now().Add(r.cfg.WaitTimeout)
	logging.Mailbox("waiting for verification code (timeout %v)", r.cfg.WaitTimeout)

	var lastErr error
	for attempt := 1; ; attempt++ {
		code, err := r.fetchCode(since)
		if err != nil {
			lastErr = err
			logging.MailboxDebug("poll %d failed: %v", attempt, err)
		} else if code != "" {
			logging.Mailbox("verification code found on poll %d", attempt)
			return code, nil
		}

		if time.Now().After(deadline) {
			if lastErr != nil {
				return "", fmt.Errorf("no verification code within %v (last error: %w)", r.cfg.WaitTimeout, lastErr)
			}
			return "", fmt.Errorf("no verification code within %v", r.cfg.WaitTimeout)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(r.cfg.PollInterval):
		}
	}
}

// fetchCode makes one pass over recent unseen messages. Each poll uses
// a fresh connection; verification waits are rare and short-lived, so a
// held-open IMAP session buys nothing.
func (r *Reader) fetchCode(since time.Time) (string, error) {
	addr := fmt.Sprintf("%s:%d", r.cfg.Host, r.cfg.Port)
	c, err := r.dial(addr)
	if err != nil {
		return "", fmt.Errorf("dial %s: %w", addr, err)
	}
	defer c.Logout()

	if err := c.Login(r.cfg.Username, r.cfg.Password); err != nil {
		return "", fmt.Errorf("imap login: %w", err)
	}

	if _, err := c.Select("INBOX", true); err != nil {
		return "", fmt.Errorf("select inbox: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	// SINCE has date granularity; the envelope date is checked below.
	criteria.Since = since.Add(-24 * time.Hour)
	criteria.WithoutFlags = []string{imap.SeenFlag}
	ids, err := c.Search(criteria)
	if err != nil {
		return "", fmt.Errorf("search: %w", err)
	}
	if len(ids) == 0 {
		return "", nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	section := &imap.BodySectionName{
		BodyPartName: imap.BodyPartName{Specifier: imap.TextSpecifier},
		Peek:         true,
	}
	items := []imap.FetchItem{imap.FetchEnvelope, section.FetchItem()}

	messages := make(chan *imap.Message, len(ids))
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, items, messages)
	}()

	code := ""
	for msg := range messages {
		if msg.Envelope == nil {
			continue
		}
		if msg.Envelope.Date.Before(since.Add(-time.Minute)) {
			continue
		}
		if !r.senderMatches(msg.Envelope) {
			continue
		}

		body := ""
		if literal := msg.GetBody(section); literal != nil {
			if data, err := io.ReadAll(literal); err == nil {
				body = string(data)
			}
		}

		if found := ExtractCode(msg.Envelope.Subject, body); found != "" {
			code = found
			// Drain the channel; the fetch goroutine owns it.
		}
	}

	if err := <-done; err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	return code, nil
}

func (r *Reader) senderMatches(env *imap.Envelope) bool {
	if r.cfg.VerificationSender == "" {
		return true
	}
	want := strings.ToLower(r.cfg.VerificationSender)
	for _, from := range env.From {
		got := strings.ToLower(from.MailboxName + "@" + from.HostName)
		if got == want {
			return true
		}
	}
	return false
}
