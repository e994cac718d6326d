// Package session holds the per-browser state of the web UI: who is logged
// in, whether a registration is in progress, and which view and tab are
// active.
package session

import (
	"errors"
	"fmt"
	"strings"
)

type State int

const (
	LoggedOut State = iota
	Registering
	LoggedIn
)

func (s State) String() string {
	switch s {
	case LoggedOut:
		return "logged_out"
	case Registering:
		return "registering"
	case LoggedIn:
		return "logged_in"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func parseState(s string) (State, error) {
	for _, st := range []State{LoggedOut, Registering, LoggedIn} {
		if st.String() == s {
			return st, nil
		}
	}
	return LoggedOut, fmt.Errorf("unknown session state %q", s)
}

// View is a sidebar entry of the logged-in menu.
type View string

const (
	ViewDashboard     View = "dashboard"
	ViewAboutSpending View = "about-spending"
	ViewAboutApp      View = "about-app"
)

// Tab is a tab of the dashboard view.
type Tab string

const (
	TabAnalysis Tab = "analysis"
	TabTips     Tab = "tips"
	TabAdd      Tab = "add"
)

var (
	ErrInvalidTransition = errors.New("invalid session transition")
	ErrNoUser            = errors.New("session has no user")
)

// Views returns the menu entries in display order.
func Views() []View { return []View{ViewDashboard, ViewAboutSpending, ViewAboutApp} }

// Tabs returns the dashboard tabs in display order.
func Tabs() []Tab { return []Tab{TabAnalysis, TabTips, TabAdd} }

// ParseView falls back to the dashboard for unknown values.
func ParseView(s string) View {
	v := View(strings.TrimSpace(s))
	for _, known := range Views() {
		if v == known {
			return v
		}
	}
	return ViewDashboard
}

// ParseTab falls back to the analysis tab for unknown values.
func ParseTab(s string) Tab {
	t := Tab(strings.TrimSpace(s))
	for _, known := range Tabs() {
		if t == known {
			return t
		}
	}
	return TabAnalysis
}

func (v View) Label() string {
	switch v {
	case ViewAboutSpending:
		return "About Student Spending"
	case ViewAboutApp:
		return "About This App"
	}
	return "Dashboard"
}

func (t Tab) Label() string {
	switch t {
	case TabTips:
		return "Optimization Tips"
	case TabAdd:
		return "Add Expenses"
	}
	return "Expense Analysis"
}

// Session is an immutable value; every transition returns a new one.
type Session struct {
	State State
	User  string
	View  View
	Tab   Tab
}

// New returns the logged-out session every visitor starts with.
func New() Session {
	return Session{State: LoggedOut, View: ViewDashboard, Tab: TabAnalysis}
}

func (s Session) Authenticated() bool { return s.State == LoggedIn && s.User != "" }

// Login is valid from the login page and from the registration page.
func (s Session) Login(user string) (Session, error) {
	if s.State == LoggedIn {
		return s, fmt.Errorf("%w: login while %s", ErrInvalidTransition, s.State)
	}
	return loggedIn(user)
}

// Logout is valid from any state and resets navigation.
func (s Session) Logout() Session {
	return New()
}

func (s Session) StartRegistration() (Session, error) {
	if s.State != LoggedOut {
		return s, fmt.Errorf("%w: start registration while %s", ErrInvalidTransition, s.State)
	}
	next := New()
	next.State = Registering
	return next, nil
}

// CompleteRegistration logs the new user in directly.
func (s Session) CompleteRegistration(user string) (Session, error) {
	if s.State != Registering {
		return s, fmt.Errorf("%w: complete registration while %s", ErrInvalidTransition, s.State)
	}
	return loggedIn(user)
}

func (s Session) CancelRegistration() (Session, error) {
	if s.State != Registering {
		return s, fmt.Errorf("%w: cancel registration while %s", ErrInvalidTransition, s.State)
	}
	return New(), nil
}

// Navigate switches the active view and tab. Only a logged-in session has
// anywhere to navigate to.
func (s Session) Navigate(view View, tab Tab) (Session, error) {
	if !s.Authenticated() {
		return s, fmt.Errorf("%w: navigate while %s", ErrInvalidTransition, s.State)
	}
	s.View, s.Tab = view, tab
	return s, nil
}

func loggedIn(user string) (Session, error) {
	user = strings.TrimSpace(user)
	if user == "" {
		return Session{}, ErrNoUser
	}
	next := New()
	next.State = LoggedIn
	next.User = user
	return next, nil
}
