package browser

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hasan199191/crobot/internal/logging"
)

// sessionState is the on-disk shape of a persisted browser session.
type sessionState struct {
	Cookies      []*proto.NetworkCookieParam `json:"cookies"`
	LocalStorage string                      `json:"local_storage"`
}

// SaveSession snapshots cookies and localStorage to the session file.
// Callers invoke this only after a verified login.
func (m *Manager) SaveSession() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveSessionLocked()
}

func (m *Manager) saveSessionLocked() error {
	if m.cfg.SessionFile == "" || m.browser == nil || m.page == nil {
		return nil
	}

	cookies, err := m.browser.GetCookies()
	if err != nil {
		return fmt.Errorf("get cookies: %w", err)
	}

	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		params = append(params, &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: c.SameSite,
			Priority: c.Priority,
		})
	}

	state := sessionState{
		Cookies:      params,
		LocalStorage: snapshotLocalStorage(m.page),
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(m.cfg.SessionFile), 0755); err != nil {
		return err
	}
	// 0600: the session file is a credential.
	if err := os.WriteFile(m.cfg.SessionFile, data, 0600); err != nil {
		return err
	}
	logging.Browser("session saved: %d cookies", len(params))
	return nil
}

// loadSessionLocked restores a persisted session. A missing file is not
// an error; a corrupt file is reported so the caller can fall back to a
// fresh login.
func (m *Manager) loadSessionLocked() error {
	if m.cfg.SessionFile == "" || m.browser == nil {
		return nil
	}

	data, err := os.ReadFile(m.cfg.SessionFile)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Browser("no session file, fresh session")
			return nil
		}
		return err
	}

	var state sessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("invalid session file: %w", err)
	}

	if len(state.Cookies) > 0 {
		if err := m.browser.SetCookies(state.Cookies); err != nil {
			return fmt.Errorf("restore cookies: %w", err)
		}
	}
	if state.LocalStorage != "" && m.page != nil {
		restoreLocalStorage(m.page, state.LocalStorage)
	}
	logging.Browser("session restored: %d cookies", len(state.Cookies))
	return nil
}

func snapshotLocalStorage(page *rod.Page) string {
	res, err := page.Evaluate(&rod.EvalOptions{
		JS: `() => {
			try {
				const out = {};
				for (const key of Object.keys(localStorage)) {
					out[key] = localStorage.getItem(key);
				}
				return JSON.stringify(out);
			} catch (e) {
				return "{}";
			}
		}`,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil || res == nil || res.Value.Nil() {
		return "{}"
	}
	return res.Value.String()
}

func restoreLocalStorage(page *rod.Page, stored string) {
	_, _ = page.Evaluate(&rod.EvalOptions{
		JS: `(stored) => {
			try {
				const entries = JSON.parse(stored || "{}");
				Object.entries(entries).forEach(([k, v]) => localStorage.setItem(k, v));
			} catch (e) {}
		}`,
		JSArgs:       []interface{}{stored},
		ByValue:      true,
		AwaitPromise: true,
		UserGesture:  true,
	})
}
