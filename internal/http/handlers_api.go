package http

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"studentbudget/internal/advisor"
	"studentbudget/internal/core"
	applog "studentbudget/internal/log"
	"studentbudget/internal/services"
)

type userKey struct{}

// requireUser lets API calls through only with a logged-in session.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := s.sessions.Read(r)
		if !sess.Authenticated() {
			UnauthorizedError("login required").Write(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, sess.User)))
	})
}

func userFrom(ctx context.Context) string {
	u, _ := ctx.Value(userKey{}).(string)
	return u
}

type categoryAmountJSON struct {
	Category  core.Category   `json:"category"`
	Label     string          `json:"label"`
	Amount    decimal.Decimal `json:"amount"`
	Formatted string          `json:"formatted"`
	Percent   float64         `json:"percent"`
}

type metricsJSON struct {
	User          string               `json:"user"`
	TotalExpenses decimal.Decimal      `json:"total_expenses"`
	Income        decimal.Decimal      `json:"income"`
	Savings       decimal.Decimal      `json:"savings"`
	ExpenseRatio  float64              `json:"expense_ratio"`
	ByCategory    []categoryAmountJSON `json:"by_category"`
}

type topicJSON struct {
	Topic advisor.Topic `json:"topic"`
	Tips  []string      `json:"tips"`
}

type comparisonJSON struct {
	Category          core.Category   `json:"category"`
	Label             string          `json:"label"`
	UserAmount        decimal.Decimal `json:"user_amount"`
	Average           decimal.Decimal `json:"average"`
	PercentDifference float64         `json:"percent_difference"`
}

type averageJSON struct {
	Category core.Category   `json:"category"`
	Label    string          `json:"label"`
	Average  decimal.Decimal `json:"average"`
}

// dashboardOrFail writes the error response itself when it returns false.
func (s *Server) dashboardOrFail(w http.ResponseWriter, r *http.Request) (services.Dashboard, bool) {
	ctx := r.Context()
	d, err := s.svc.Dashboard(ctx, userFrom(ctx))
	if err != nil {
		status, msg := errorStatus(err)
		if status >= http.StatusInternalServerError {
			applog.FromContext(ctx).ErrorContext(ctx, "Dashboard computation failed", applog.FieldError, err)
		}
		ErrorResponse(status, msg).Write(w)
		return d, false
	}
	return d, true
}

func (s *Server) handleAPIMetrics(w http.ResponseWriter, r *http.Request) {
	d, ok := s.dashboardOrFail(w, r)
	if !ok {
		return
	}
	out := metricsJSON{
		User:          d.User.Name,
		TotalExpenses: d.Metrics.TotalExpenses,
		Income:        d.Metrics.Income,
		Savings:       d.Metrics.Savings,
		ExpenseRatio:  d.Metrics.ExpenseRatio,
		ByCategory:    make([]categoryAmountJSON, 0, len(d.Shares)),
	}
	for _, sh := range d.Shares {
		out.ByCategory = append(out.ByCategory, categoryAmountJSON{
			Category:  sh.Category,
			Label:     sh.Category.Label(),
			Amount:    sh.Amount,
			Formatted: formatRupees(sh.Amount),
			Percent:   sh.Percent,
		})
	}
	NewResponse().JSON(out).Write(w)
}

func (s *Server) handleAPITips(w http.ResponseWriter, r *http.Request) {
	d, ok := s.dashboardOrFail(w, r)
	if !ok {
		return
	}
	topics := make([]topicJSON, 0, len(d.Tips))
	for _, t := range d.Tips.Topics() {
		tips := d.Tips[t]
		if tips == nil {
			tips = []string{}
		}
		topics = append(topics, topicJSON{Topic: t, Tips: tips})
	}
	NewResponse().JSON(map[string]any{
		"guidelines": d.Guidelines,
		"topics":     topics,
		"count":      d.Tips.Count(),
	}).Write(w)
}

func (s *Server) handleAPIComparison(w http.ResponseWriter, r *http.Request) {
	d, ok := s.dashboardOrFail(w, r)
	if !ok {
		return
	}
	rows := make([]comparisonJSON, 0, len(d.Cohort.Comparison))
	for _, c := range d.Cohort.Comparison {
		rows = append(rows, comparisonJSON{
			Category:          c.Category,
			Label:             c.Category.Label(),
			UserAmount:        c.UserAmount,
			Average:           c.Average,
			PercentDifference: c.PercentDifference,
		})
	}
	NewResponse().JSON(map[string]any{
		"insufficient_data": d.Cohort.InsufficientData,
		"comparison":        rows,
	}).Write(w)
}

func (s *Server) handleAPICohort(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	report, err := s.svc.Cohort(ctx)
	if err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Cohort computation failed", applog.FieldError, err)
		InternalServerError(msgInternal).Write(w)
		return
	}
	averages := make([]averageJSON, 0, len(report.Categories))
	if !report.InsufficientData {
		for _, cat := range report.Categories {
			averages = append(averages, averageJSON{Category: cat, Label: cat.Label(), Average: report.Averages[cat]})
		}
	}
	NewResponse().JSON(map[string]any{
		"users":             report.Users,
		"insufficient_data": report.InsufficientData,
		"averages":          averages,
	}).Write(w)
}
