// Package generator produces post and reply text through a hosted
// generative API. Gemini is the primary provider; any OpenAI-compatible
// chat endpoint can be used as a fallback.
package generator

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Client is the text generation interface the bot consumes.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Config holds generator configuration.
type Config struct {
	Provider string // gemini, openai
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
}

// New creates a client for the configured provider.
func New(cfg Config) (Client, error) {
	switch cfg.Provider {
	case "gemini", "":
		return NewGeminiClient(cfg)
	case "openai":
		return NewOpenAIClient(cfg), nil
	default:
		return nil, fmt.Errorf("unknown generator provider: %s", cfg.Provider)
	}
}

const systemPrompt = `You write short social media posts for a crypto/web3 commentary account.
Voice: sharp, curious, conversational. No hashtags unless essential, at most one.
No emoji spam. Never mention being an AI. Output only the post text itself.`

// SystemPrompt returns the persona instruction shared by posts and
// replies.
func SystemPrompt() string {
	return systemPrompt
}

// PostPrompt builds the prompt for a fresh post about a topic.
func PostPrompt(topic string) string {
	return fmt.Sprintf(
		"Write a single engaging post (under 240 characters) sharing a concrete observation or question about %s. Plain text only.",
		topic)
}

// ReplyPrompt builds the prompt for a reply to someone's tweet.
func ReplyPrompt(tweetText string) string {
	return fmt.Sprintf(
		"Write a short, thoughtful reply (under 240 characters) to this post. Add something, don't just agree.\n\nPost:\n%s",
		tweetText)
}

// Sanitize cleans up model output before it is typed into the compose
// box: strips code fences, surrounding quotes, and leading labels the
// models like to add.
func Sanitize(s string) string {
	s = strings.TrimSpace(s)

	// Markdown fences around the whole response.
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if idx := strings.Index(s, "\n"); idx >= 0 && !strings.Contains(s[:idx], " ") {
			s = s[idx+1:] // Drop a language tag line.
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}

	// Whole-response quoting.
	for _, q := range []struct{ open, close string }{
		{`"`, `"`}, {`“`, `”`}, {`'`, `'`},
	} {
		if strings.HasPrefix(s, q.open) && strings.HasSuffix(s, q.close) && len(s) > len(q.open)+len(q.close) {
			s = strings.TrimSuffix(strings.TrimPrefix(s, q.open), q.close)
			s = strings.TrimSpace(s)
			break
		}
	}

	// "Tweet:" / "Post:" style prefixes.
	lower := strings.ToLower(s)
	for _, label := range []string{"tweet:", "post:", "reply:"} {
		if strings.HasPrefix(lower, label) {
			s = strings.TrimSpace(s[len(label):])
			break
		}
	}
	return s
}
