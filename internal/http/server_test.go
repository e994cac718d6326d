package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"studentbudget/internal/core"
	"studentbudget/internal/middleware/ratelimit"
	"studentbudget/internal/services"
	"studentbudget/internal/session"
	"studentbudget/internal/store/memory"
)

func newTestServer(t *testing.T, rl ratelimit.Config) (*Server, *memory.Store) {
	t.Helper()
	st := memory.New(nil, nil)
	svc := services.NewBudgetService(st, services.Options{
		Today: func() core.Date { return core.NewDate(2025, 5, 15) },
	}, nil)
	codec, err := session.NewCodec([]byte("test-secret-0123456789"), time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	srv, err := NewServer(":0", Options{Service: svc, Store: st, Sessions: codec, RateLimit: rl})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, st
}

// browser replays the session cookie between requests.
type browser struct {
	t       *testing.T
	h       http.Handler
	cookies map[string]*http.Cookie
}

func newBrowser(t *testing.T, h http.Handler) *browser {
	return &browser{t: t, h: h, cookies: map[string]*http.Cookie{}}
}

func (b *browser) do(method, target string, form url.Values) *httptest.ResponseRecorder {
	b.t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for _, c := range b.cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	b.h.ServeHTTP(rr, req)
	for _, c := range rr.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c
	}
	return rr
}

func (b *browser) get(target string) *httptest.ResponseRecorder {
	return b.do(http.MethodGet, target, nil)
}

func (b *browser) post(target string, form url.Values) *httptest.ResponseRecorder {
	if form == nil {
		form = url.Values{}
	}
	return b.do(http.MethodPost, target, form)
}

func aliceForm() url.Values {
	return url.Values{
		"name":                  {"alice"},
		"password":              {"1234"},
		"age":                   {"20"},
		"gender":                {"Female"},
		"student_accommodation": {"500"},
		"grocery_shopping":      {"50"},
		"takeaways_dining":      {"60"},
		"monthly_income":        {"1000"},
	}
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status = %d, want %d; body: %s", rr.Code, want, rr.Body.String())
	}
}

func expectBody(t *testing.T, rr *httptest.ResponseRecorder, parts ...string) {
	t.Helper()
	for _, p := range parts {
		if !strings.Contains(rr.Body.String(), p) {
			t.Errorf("body missing %q", p)
		}
	}
}

func registerAlice(t *testing.T, b *browser) {
	t.Helper()
	rr := b.post("/register", aliceForm())
	expectStatus(t, rr, http.StatusSeeOther)
}

func TestLoginPageAndHealth(t *testing.T) {
	srv, _ := newTestServer(t, ratelimit.Config{})
	b := newBrowser(t, srv.Handler)

	rr := b.get("/")
	expectStatus(t, rr, http.StatusOK)
	expectBody(t, rr, "Student Budget Tracker", "New User?")
	if rr.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("security headers missing")
	}

	for _, path := range []string{"/healthz", "/readyz", "/static/style.css"} {
		expectStatus(t, b.get(path), http.StatusOK)
	}

	rr = b.get("/readyz")
	var ready struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&ready); err != nil || ready.Status != "ready" {
		t.Errorf("readyz = %+v, %v", ready, err)
	}
}

func TestRegisterFlowShowsDashboard(t *testing.T) {
	srv, st := newTestServer(t, ratelimit.Config{})
	b := newBrowser(t, srv.Handler)

	rr := b.get("/register")
	expectStatus(t, rr, http.StatusOK)
	expectBody(t, rr, "Registration Form", "Monthly Expenses (in ₹)", `name="health_medical_expenses"`)

	rr = b.post("/register", aliceForm())
	expectStatus(t, rr, http.StatusSeeOther)
	if loc := rr.Header().Get("Location"); loc != "/dashboard?registered=1" {
		t.Fatalf("Location = %q", loc)
	}

	rr = b.get("/dashboard?registered=1")
	expectStatus(t, rr, http.StatusOK)
	expectBody(t, rr, "Welcome, alice!", "Registration successful!",
		"₹610.00", "₹1,000.00", "₹390.00", "61.00%", "Student Accommodation")

	es, _ := st.ListExpenses(context.Background())
	if len(es) != 3 {
		t.Errorf("seeded %d rows, want 3", len(es))
	}

	rr = b.get("/")
	expectStatus(t, rr, http.StatusOK)
	expectBody(t, rr, "Expense Analysis")
}

func TestRegisterErrors(t *testing.T) {
	srv, st := newTestServer(t, ratelimit.Config{})
	registerAlice(t, newBrowser(t, srv.Handler))

	tests := []struct {
		name   string
		mutate func(url.Values)
		status int
		msg    string
	}{
		{"duplicate name", func(url.Values) {}, http.StatusConflict, "Username already exists!"},
		{"bad age", func(v url.Values) { v.Set("name", "bob"); v.Set("age", "abc") }, http.StatusUnprocessableEntity, "Age"},
		{"negative baseline", func(v url.Values) { v.Set("name", "bob"); v.Set("utilities", "-5") }, http.StatusUnprocessableEntity, "Utilities"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBrowser(t, srv.Handler)
			form := aliceForm()
			tt.mutate(form)
			rr := b.post("/register", form)
			expectStatus(t, rr, tt.status)
			expectBody(t, rr, tt.msg, "Registration Form")
			if strings.Contains(rr.Body.String(), `value="1234"`) {
				t.Error("password echoed back into the form")
			}
		})
	}

	users, _ := st.ListUsers(context.Background())
	es, _ := st.ListExpenses(context.Background())
	if len(users) != 1 || len(es) != 3 {
		t.Errorf("store changed by rejected registrations: %d users, %d rows", len(users), len(es))
	}
}

func TestLoginLogout(t *testing.T) {
	srv, _ := newTestServer(t, ratelimit.Config{})
	registerAlice(t, newBrowser(t, srv.Handler))

	b := newBrowser(t, srv.Handler)
	rr := b.post("/login", url.Values{"username": {"alice"}, "password": {"wrong"}})
	expectStatus(t, rr, http.StatusUnauthorized)
	expectBody(t, rr, "Invalid username or password")

	rr = b.post("/login", url.Values{"username": {"nobody"}, "password": {"1234"}})
	expectStatus(t, rr, http.StatusUnauthorized)
	expectBody(t, rr, "Invalid username or password")

	rr = b.post("/login", url.Values{"username": {"alice"}, "password": {"1234"}})
	expectStatus(t, rr, http.StatusSeeOther)
	expectBody(t, b.get(rr.Header().Get("Location")), "Login successful!", "Welcome, alice!")

	expectStatus(t, b.post("/logout", nil), http.StatusSeeOther)
	rr = b.get("/")
	expectBody(t, rr, "Login")
	if strings.Contains(rr.Body.String(), "Welcome, alice!") {
		t.Error("still logged in after logout")
	}
	expectStatus(t, b.get("/dashboard"), http.StatusSeeOther)
}

func TestCancelRegistration(t *testing.T) {
	srv, _ := newTestServer(t, ratelimit.Config{})
	b := newBrowser(t, srv.Handler)

	b.get("/register")
	expectBody(t, b.get("/"), "Registration Form")

	expectStatus(t, b.post("/register/cancel", nil), http.StatusSeeOther)
	expectBody(t, b.get("/"), "New User?")
}

func TestAddExpense(t *testing.T) {
	srv, st := newTestServer(t, ratelimit.Config{})
	b := newBrowser(t, srv.Handler)
	registerAlice(t, b)
	ctx := context.Background()

	rr := b.post("/expenses", url.Values{"category": {string(core.Groceries)}, "amount": {"25"}, "date": {"2025-05-16"}})
	expectStatus(t, rr, http.StatusSeeOther)
	rr = b.get(rr.Header().Get("Location"))
	expectBody(t, rr, "Expense added successfully!", "Add New Expense")

	u, _ := st.GetUser(ctx, "alice")
	if !u.Amount(core.Groceries).Equal(decimal.NewFromInt(75)) {
		t.Errorf("groceries baseline = %s, want 75", u.Amount(core.Groceries))
	}

	rr = b.post("/expenses", url.Values{"category": {services.OtherCategory}, "custom_category": {"Coffee"}, "amount": {"3.50"}})
	expectStatus(t, rr, http.StatusSeeOther)
	es, _ := st.ListUserExpenses(ctx, "alice")
	if last := es[len(es)-1]; last.Category != "Coffee" || !last.Amount.Equal(decimal.RequireFromString("3.5")) {
		t.Errorf("last row = %+v", last)
	}

	rr = b.post("/expenses", url.Values{"category": {string(core.Groceries)}, "amount": {"0"}, "note": {"free lunch"}})
	expectStatus(t, rr, http.StatusUnprocessableEntity)
	expectBody(t, rr, "Amount", "free lunch", "Add New Expense")

	rr = newBrowser(t, srv.Handler).post("/expenses", url.Values{"category": {"Coffee"}, "amount": {"1"}})
	expectStatus(t, rr, http.StatusSeeOther)
	if after, _ := st.ListUserExpenses(ctx, "alice"); len(after) != len(es) {
		t.Error("anonymous POST wrote a ledger row")
	}

	expectStatus(t, b.get("/expenses"), http.StatusMethodNotAllowed)
}

func TestDashboardViews(t *testing.T) {
	srv, _ := newTestServer(t, ratelimit.Config{})
	b := newBrowser(t, srv.Handler)
	registerAlice(t, b)

	tests := []struct {
		target string
		want   []string
	}{
		{"/dashboard?view=dashboard&tab=tips", []string{"General Budgeting Guidelines for Students", "50/30/20 Rule", "exceed 40% of your income"}},
		{"/dashboard?tab=add", []string{"Add New Expense", `value="Other"`, `min="0.01"`}},
		{"/dashboard?view=about-spending", []string{"Average Monthly Expenses for College Students", "Comparison with Average", "₹500.00", "0.00%"}},
		{"/dashboard?view=about-app", []string{"About Student Budget Tracker", "How to Use This App"}},
		{"/dashboard?view=bogus&tab=bogus", []string{"Expense Analysis", "Total Monthly Expenses"}},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rr := b.get(tt.target)
			expectStatus(t, rr, http.StatusOK)
			expectBody(t, rr, tt.want...)
		})
	}

	b.get("/dashboard?view=dashboard&tab=tips")
	expectBody(t, b.get("/"), "General Budgeting Guidelines for Students")
}

func TestAPI(t *testing.T) {
	srv, _ := newTestServer(t, ratelimit.Config{})
	b := newBrowser(t, srv.Handler)

	for _, path := range []string{"/api/metrics", "/api/tips", "/api/comparison", "/api/cohort"} {
		expectStatus(t, b.get(path), http.StatusUnauthorized)
	}

	registerAlice(t, b)

	rr := b.get("/api/metrics")
	expectStatus(t, rr, http.StatusOK)
	var m metricsJSON
	if err := json.NewDecoder(rr.Body).Decode(&m); err != nil {
		t.Fatal(err)
	}
	if !m.TotalExpenses.Equal(decimal.NewFromInt(610)) || m.ExpenseRatio != 61 || len(m.ByCategory) != 3 {
		t.Errorf("metrics = %+v", m)
	}

	rr = b.get("/api/tips")
	expectStatus(t, rr, http.StatusOK)
	expectBody(t, rr, `"Housing"`, `"guidelines"`)

	rr = b.get("/api/comparison")
	expectStatus(t, rr, http.StatusOK)
	expectBody(t, rr, `"insufficient_data":false`, `"percent_difference":0`)

	rr = b.get("/api/cohort")
	expectStatus(t, rr, http.StatusOK)
	var cohort struct {
		Users    int           `json:"users"`
		Averages []averageJSON `json:"averages"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&cohort); err != nil {
		t.Fatal(err)
	}
	if cohort.Users != 1 || len(cohort.Averages) != len(core.Categories()) {
		t.Errorf("cohort = %+v", cohort)
	}

	req := httptest.NewRequest(http.MethodPost, "/expenses", strings.NewReader(`{"category":"Books_and_Supplies","amount":"12.5"}`))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range b.cookies {
		req.AddCookie(c)
	}
	rr = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	expectStatus(t, rr, http.StatusCreated)
	expectBody(t, rr, `"ref":"mem:`)
}

func TestPostRateLimit(t *testing.T) {
	srv, _ := newTestServer(t, ratelimit.Config{RequestsPerMinute: 2, Methods: []string{http.MethodPost}})
	b := newBrowser(t, srv.Handler)
	creds := url.Values{"username": {"x"}, "password": {"y"}}

	expectStatus(t, b.post("/login", creds), http.StatusUnauthorized)
	expectStatus(t, b.post("/login", creds), http.StatusUnauthorized)
	rr := b.post("/login", creds)
	expectStatus(t, rr, http.StatusTooManyRequests)
	if rr.Header().Get("Retry-After") == "" {
		t.Error("Retry-After missing")
	}
	expectStatus(t, b.get("/"), http.StatusOK)
}
