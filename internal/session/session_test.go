package session

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestTransitions(t *testing.T) {
	type step func(Session) (Session, error)
	login := func(s Session) (Session, error) { return s.Login("alice") }
	logout := func(s Session) (Session, error) { return s.Logout(), nil }
	start := func(s Session) (Session, error) { return s.StartRegistration() }
	complete := func(s Session) (Session, error) { return s.CompleteRegistration("bob") }
	cancel := func(s Session) (Session, error) { return s.CancelRegistration() }

	tests := []struct {
		name      string
		steps     []step
		wantState State
		wantUser  string
		wantErr   bool
	}{
		{"login from logged out", []step{login}, LoggedIn, "alice", false},
		{"logout", []step{login, logout}, LoggedOut, "", false},
		{"start registration", []step{start}, Registering, "", false},
		{"complete registration", []step{start, complete}, LoggedIn, "bob", false},
		{"cancel registration", []step{start, cancel}, LoggedOut, "", false},
		{"login from registration page", []step{start, login}, LoggedIn, "alice", false},
		{"login twice", []step{login, login}, LoggedIn, "alice", true},
		{"complete without registering", []step{complete}, LoggedOut, "", true},
		{"cancel without registering", []step{cancel}, LoggedOut, "", true},
		{"register while logged in", []step{login, start}, LoggedIn, "alice", true},
		{"register twice", []step{start, start}, Registering, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			var err error
			for _, st := range tt.steps {
				s, err = st(s)
				if err != nil {
					break
				}
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("error = %v, want ErrInvalidTransition", err)
			}
			if s.State != tt.wantState || s.User != tt.wantUser {
				t.Errorf("session = %s/%q, want %s/%q", s.State, s.User, tt.wantState, tt.wantUser)
			}
		})
	}
}

func TestLoginRequiresUser(t *testing.T) {
	if _, err := New().Login("  "); !errors.Is(err, ErrNoUser) {
		t.Errorf("Login(blank) error = %v, want ErrNoUser", err)
	}
}

func TestNavigate(t *testing.T) {
	if _, err := New().Navigate(ViewAboutApp, TabTips); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Navigate() while logged out error = %v", err)
	}
	s, _ := New().Login("alice")
	s, err := s.Navigate(ViewAboutSpending, TabAdd)
	if err != nil || s.View != ViewAboutSpending || s.Tab != TabAdd {
		t.Fatalf("Navigate() = %+v, %v", s, err)
	}
	if s = s.Logout(); s.View != ViewDashboard || s.Tab != TabAnalysis {
		t.Errorf("Logout() kept navigation: %+v", s)
	}
}

func TestParseViewAndTab(t *testing.T) {
	if got := ParseView("about-app"); got != ViewAboutApp {
		t.Errorf("ParseView(about-app) = %s", got)
	}
	if got := ParseView("settings"); got != ViewDashboard {
		t.Errorf("ParseView(settings) = %s, want dashboard", got)
	}
	if got := ParseTab(" tips "); got != TabTips {
		t.Errorf("ParseTab(tips) = %s", got)
	}
	if got := ParseTab(""); got != TabAnalysis {
		t.Errorf("ParseTab(empty) = %s, want analysis", got)
	}
}

func newCodec(t *testing.T, now *time.Time) *Codec {
	t.Helper()
	c, err := NewCodec([]byte("0123456789abcdef"), time.Hour, WithClock(func() time.Time { return *now }))
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestCodecRoundTrip(t *testing.T) {
	now := time.Date(2025, 5, 15, 10, 0, 0, 0, time.UTC)
	c := newCodec(t, &now)

	s, _ := New().Login("alice")
	s, _ = s.Navigate(ViewAboutSpending, TabTips)
	token, err := c.Encode(s)
	if err != nil {
		t.Fatal(err)
	}
	got, err := c.Decode(token)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got != s {
		t.Errorf("Decode() = %+v, want %+v", got, s)
	}

	reg, _ := New().StartRegistration()
	token, _ = c.Encode(reg)
	if got, err := c.Decode(token); err != nil || got.State != Registering {
		t.Errorf("Decode(registering) = %+v, %v", got, err)
	}
}

func TestCodecRejects(t *testing.T) {
	now := time.Date(2025, 5, 15, 10, 0, 0, 0, time.UTC)
	c := newCodec(t, &now)
	s, _ := New().Login("alice")
	token, _ := c.Encode(s)

	other, _ := NewCodec([]byte("another-secret-value"), time.Hour, WithClock(func() time.Time { return now }))
	if _, err := other.Decode(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Decode() with wrong secret error = %v", err)
	}

	parts := strings.Split(token, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]
	if _, err := c.Decode(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Decode(tampered) error = %v", err)
	}

	now = now.Add(2 * time.Hour)
	if got, err := c.Decode(token); !errors.Is(err, ErrInvalidToken) || got.State != LoggedOut {
		t.Errorf("Decode(expired) = %+v, %v", got, err)
	}
}

func TestNewCodecValidation(t *testing.T) {
	if _, err := NewCodec(nil, time.Hour); err == nil {
		t.Error("NewCodec() without secret should fail")
	}
	if _, err := NewCodec([]byte("secret"), 0); err == nil {
		t.Error("NewCodec() with zero ttl should fail")
	}
}

func TestCookieReadWrite(t *testing.T) {
	now := time.Date(2025, 5, 15, 10, 0, 0, 0, time.UTC)
	c := newCodec(t, &now)

	rr := httptest.NewRecorder()
	s, _ := New().Login("alice")
	if err := c.Write(rr, s); err != nil {
		t.Fatal(err)
	}
	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != CookieName || !cookies[0].HttpOnly {
		t.Fatalf("cookies = %+v", cookies)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	if got := c.Read(req); got != s {
		t.Errorf("Read() = %+v, want %+v", got, s)
	}

	if got := c.Read(httptest.NewRequest(http.MethodGet, "/", nil)); got != New() {
		t.Errorf("Read() without cookie = %+v", got)
	}

	garbage := httptest.NewRequest(http.MethodGet, "/", nil)
	garbage.AddCookie(&http.Cookie{Name: CookieName, Value: "not-a-token"})
	if got := c.Read(garbage); got != New() {
		t.Errorf("Read(garbage) = %+v", got)
	}

	rr = httptest.NewRecorder()
	if err := c.Write(rr, s.Logout()); err != nil {
		t.Fatal(err)
	}
	if ck := rr.Result().Cookies(); len(ck) != 1 || ck[0].MaxAge >= 0 {
		t.Errorf("logout should clear the cookie, got %+v", ck)
	}
}
