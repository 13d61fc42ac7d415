package mailbox

import (
	"regexp"
	"strings"
)

// Verification emails arrive in two shapes: a subject line of the form
// "Your X confirmation code is a1b2c3d4" (6-8 char alphanumeric) or a
// body carrying a bare 6-digit code near the words "verification" or
// "confirmation".
var (
	labeledCodeRe = regexp.MustCompile(`(?i)(?:confirmation|verification)\s+code(?:\s+is)?[:\s]+([A-Za-z0-9]{6,8})`)
	digitCodeRe   = regexp.MustCompile(`\b(\d{6})\b`)
)

// ExtractCode pulls a one-time verification code out of a message.
// The subject is checked first since the platform puts the code there;
// the body is the fallback. Returns "" when no code is present.
func ExtractCode(subject, body string) string {
	for _, text := range []string{subject, body} {
		if m := labeledCodeRe.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}

	// A bare 6-digit group only counts when the message is plausibly a
	// verification mail, otherwise order numbers and the like match.
	for _, text := range []string{subject, body} {
		lower := strings.ToLower(text)
		if !strings.Contains(lower, "verif") && !strings.Contains(lower, "confirm") {
			continue
		}
		if m := digitCodeRe.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return ""
}
