package twitter

import "testing"

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(Config{Username: "u", Password: "p"}, nil, nil, nil)
	if c.cfg.TweetLimit != 260 {
		t.Errorf("expected default tweet limit 260, got %d", c.cfg.TweetLimit)
	}
	if c.rng == nil {
		t.Error("rng should be seeded when nil is passed")
	}
	if c.IsLoggedIn() {
		t.Error("fresh client should not report logged in")
	}
}

func TestClient_LoggedInFlag(t *testing.T) {
	c := NewClient(Config{}, nil, nil, nil)
	c.setLoggedIn(true)
	if !c.IsLoggedIn() {
		t.Error("flag should stick after setLoggedIn(true)")
	}
	c.setLoggedIn(false)
	if c.IsLoggedIn() {
		t.Error("flag should clear after setLoggedIn(false)")
	}
}
