package http

import (
	"net/http"

	applog "studentbudget/internal/log"
	"studentbudget/internal/session"
)

// handleDashboard switches view and tab from the query and renders the
// logged-in page. Missing parameters keep the current selection.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Read(r)
	if !sess.Authenticated() {
		redirect(w, r, "/")
		return
	}

	q := r.URL.Query()
	view, tab := sess.View, sess.Tab
	if q.Has("view") {
		view = session.ParseView(q.Get("view"))
	}
	if q.Has("tab") {
		tab = session.ParseTab(q.Get("tab"))
	}
	if next, err := sess.Navigate(view, tab); err == nil && next != sess {
		sess = next
		s.saveSession(w, r, sess)
	}

	var notice string
	switch {
	case q.Has("login"):
		notice = "Login successful!"
	case q.Has("registered"):
		notice = "Registration successful!"
	case q.Has("added"):
		notice = "Expense added successfully!"
	}
	s.renderDashboard(w, r, sess, http.StatusOK, "", notice)
}

// renderDashboard recomputes the figures and renders the active view.
// errMsg and form values are shown on the add expense tab.
func (s *Server) renderDashboard(w http.ResponseWriter, r *http.Request, sess session.Session, status int, errMsg, notice string, sticky ...map[string]string) {
	ctx := r.Context()
	d, err := s.svc.Dashboard(ctx, sess.User)
	if err != nil {
		if s.dropStaleSession(w, r, err) {
			return
		}
		applog.FromContext(ctx).ErrorContext(ctx, "Dashboard computation failed",
			applog.FieldError, err,
			applog.FieldUsername, sess.User)
		http.Error(w, msgInternal, http.StatusInternalServerError)
		return
	}

	page := s.newPage("Welcome, "+d.User.Name+"!", sess)
	page.Dashboard = &d
	page.Error = errMsg
	page.Notice = notice
	if len(sticky) > 0 {
		page.Form = sticky[0]
	}
	s.render(w, r, status, "dashboard.html", page)
}
