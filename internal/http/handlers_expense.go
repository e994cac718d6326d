package http

import (
	"net/http"

	applog "studentbudget/internal/log"
	"studentbudget/internal/session"
)

// handleAddExpense records one expense for the logged-in user. Forms are
// answered with a redirect back to the add tab; JSON bodies get JSON.
func (s *Server) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := s.sessions.Read(r)

	p := NewRequestBodyParser(r)
	parseErr := p.Parse()
	asJSON := p.IsJSON()

	if !sess.Authenticated() {
		if asJSON {
			UnauthorizedError("login required").Write(w)
			return
		}
		redirect(w, r, "/")
		return
	}
	if parseErr != nil {
		if asJSON {
			ErrorResponse(http.StatusBadRequest, "invalid request body").Write(w)
			return
		}
		s.renderAddTab(w, r, sess, http.StatusBadRequest, "Invalid request", nil)
		return
	}

	form := p.ExpenseForm()
	ref, err := s.svc.AddExpense(ctx, sess.User, form)
	if err != nil {
		status, msg := errorStatus(err)
		if status >= http.StatusInternalServerError {
			applog.FromContext(ctx).ErrorContext(ctx, "Expense append error",
				applog.NewFields().
					WithError(err).
					WithOperation(applog.OpAppend).
					WithExpense(sess.User, form.Category, form.Amount).
					ToSlice()...)
			msg = "Failed to add expense. Please try again."
		}
		if asJSON {
			ErrorResponse(status, msg).Write(w)
			return
		}
		if s.dropStaleSession(w, r, err) {
			return
		}
		s.renderAddTab(w, r, sess, status, msg, map[string]string{
			"category":        form.Category,
			"custom_category": form.CustomCategory,
			"amount":          form.Amount,
			"date":            form.Date,
			"note":            form.Note,
		})
		return
	}

	if asJSON {
		NewResponse().Status(http.StatusCreated).JSON(map[string]string{"ref": ref}).Write(w)
		return
	}
	redirect(w, r, "/dashboard?view=dashboard&tab=add&added=1")
}

func (s *Server) renderAddTab(w http.ResponseWriter, r *http.Request, sess session.Session, status int, msg string, sticky map[string]string) {
	if next, err := sess.Navigate(session.ViewDashboard, session.TabAdd); err == nil {
		sess = next
	}
	if sticky == nil {
		sticky = map[string]string{}
	}
	s.renderDashboard(w, r, sess, status, msg, "", sticky)
}
