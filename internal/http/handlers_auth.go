package http

import (
	"errors"
	"net/http"

	"studentbudget/internal/core"
	applog "studentbudget/internal/log"
	"studentbudget/internal/services"
	"studentbudget/internal/session"
)

// handleIndex shows the page matching the session state.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Read(r)
	switch sess.State {
	case session.LoggedIn:
		s.renderDashboard(w, r, sess, http.StatusOK, "", "")
	case session.Registering:
		s.render(w, r, http.StatusOK, "register.html", s.newPage("Registration Form", sess))
	default:
		s.render(w, r, http.StatusOK, "login.html", s.newPage("Student Budget Tracker", sess))
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx).WithComponent(applog.ComponentSession)

	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		page := s.newPage("Student Budget Tracker", session.New())
		page.Error = "Invalid request"
		s.render(w, r, http.StatusBadRequest, "login.html", page)
		return
	}
	name, password := p.Credentials()

	sess := s.sessions.Read(r)
	if sess.Authenticated() {
		sess = sess.Logout()
	}

	u, err := s.svc.Authenticate(ctx, name, password)
	if err != nil {
		status, msg := errorStatus(err)
		if status >= http.StatusInternalServerError {
			logger.ErrorContext(ctx, "Login failed", applog.FieldError, err, applog.FieldOperation, applog.OpLogin)
		} else {
			logger.InfoContext(ctx, "Rejected login", applog.FieldUsername, name, applog.FieldOperation, applog.OpLogin)
		}
		page := s.newPage("Student Budget Tracker", sess)
		page.Error = msg
		page.Form["username"] = name
		s.render(w, r, status, "login.html", page)
		return
	}

	next, err := sess.Login(u.Name)
	if err != nil {
		logger.ErrorContext(ctx, "Session transition failed", applog.FieldError, err)
		redirect(w, r, "/")
		return
	}
	s.saveSession(w, r, next)
	logger.InfoContext(ctx, "User logged in", applog.FieldUsername, u.Name, applog.FieldOperation, applog.OpLogin)
	redirect(w, r, "/dashboard?login=1")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Read(r)
	if sess.Authenticated() {
		applog.FromContext(r.Context()).WithComponent(applog.ComponentSession).InfoContext(r.Context(), "User logged out",
			applog.FieldUsername, sess.User)
	}
	s.sessions.Clear(w)
	redirect(w, r, "/")
}

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Read(r)
	if sess.Authenticated() {
		redirect(w, r, "/dashboard")
		return
	}
	if sess.State == session.LoggedOut {
		next, err := sess.StartRegistration()
		if err != nil {
			redirect(w, r, "/")
			return
		}
		sess = next
		s.saveSession(w, r, sess)
	}
	s.render(w, r, http.StatusOK, "register.html", s.newPage("Registration Form", sess))
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx).WithComponent(applog.ComponentSession)

	sess := s.sessions.Read(r)
	if sess.Authenticated() {
		redirect(w, r, "/dashboard")
		return
	}
	if sess.State == session.LoggedOut {
		// a direct POST without visiting the form first
		sess, _ = sess.StartRegistration()
	}

	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		page := s.newPage("Registration Form", sess)
		page.Error = "Invalid request"
		s.render(w, r, http.StatusBadRequest, "register.html", page)
		return
	}
	form := p.RegistrationForm()

	u, err := s.svc.Register(ctx, form)
	if err != nil {
		status, msg := errorStatus(err)
		if status >= http.StatusInternalServerError {
			logger.ErrorContext(ctx, "Registration failed", applog.FieldError, err, applog.FieldOperation, applog.OpRegister)
		}
		s.saveSession(w, r, sess)
		page := s.newPage("Registration Form", sess)
		page.Error = msg
		page.Form = stickyRegistration(form)
		s.render(w, r, status, "register.html", page)
		return
	}

	next, err := sess.CompleteRegistration(u.Name)
	if err != nil {
		logger.ErrorContext(ctx, "Session transition failed", applog.FieldError, err)
		redirect(w, r, "/")
		return
	}
	s.saveSession(w, r, next)
	redirect(w, r, "/dashboard?registered=1")
}

func (s *Server) handleCancelRegistration(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Read(r)
	if next, err := sess.CancelRegistration(); err == nil {
		s.saveSession(w, r, next)
	} else if !sess.Authenticated() {
		s.sessions.Clear(w)
	}
	redirect(w, r, "/")
}

// stickyRegistration refills the form after a rejection. The password is
// never echoed back.
func stickyRegistration(form services.RegistrationForm) map[string]string {
	out := map[string]string{
		"name":           form.Name,
		"age":            form.Age,
		"gender":         form.Gender,
		"monthly_income": form.MonthlyIncome,
	}
	for _, cat := range core.Categories() {
		out[baselineField(cat)] = form.Baseline[cat]
	}
	return out
}

// dropStaleSession clears a session that points at a user the store no
// longer has and sends the browser back to the login page.
func (s *Server) dropStaleSession(w http.ResponseWriter, r *http.Request, err error) bool {
	if !errors.Is(err, core.ErrUserNotFound) {
		return false
	}
	applog.FromContext(r.Context()).WithComponent(applog.ComponentSession).WarnContext(r.Context(), "Session for unknown user dropped")
	s.sessions.Clear(w)
	redirect(w, r, "/")
	return true
}
