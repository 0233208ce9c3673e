package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optionsworth/internal/core"
	"optionsworth/internal/log"
	"optionsworth/internal/middleware/ratelimit"
	"optionsworth/internal/session"
)

type testClient struct {
	t      *testing.T
	srv    *Server
	cookie *http.Cookie
}

func newTestClient(t *testing.T, opts Options) *testClient {
	t.Helper()
	if opts.Sessions == nil {
		opts.Sessions = session.NewStore(session.DefaultConfig(), nil)
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.Config{Level: slog.LevelError, Output: io.Discard})
	}
	srv, err := NewServer(opts)
	require.NoError(t, err)
	return &testClient{t: t, srv: srv}
}

func (c *testClient) do(req *http.Request) *httptest.ResponseRecorder {
	c.t.Helper()
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	rr := httptest.NewRecorder()
	c.srv.Handler.ServeHTTP(rr, req)
	for _, ck := range rr.Result().Cookies() {
		if ck.Name == sessionCookie {
			c.cookie = ck
		}
	}
	return rr
}

func (c *testClient) get(path string) *httptest.ResponseRecorder {
	return c.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (c *testClient) form(path string, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")
	return c.do(req)
}

func (c *testClient) json(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func decodeValuation(t *testing.T, rr *httptest.ResponseRecorder) core.Valuation {
	t.Helper()
	var v core.Valuation
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestIndexAndHealth(t *testing.T) {
	c := newTestClient(t, Options{})

	rr := c.get("/")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "How much are my options worth?")
	assert.Contains(t, body, "Your Options are worth: 0.00")
	assert.Contains(t, body, "Based on your tax bracket")
	assert.Equal(t, 1, strings.Count(body, `class="grant-row"`))
	require.NotNil(t, c.cookie, "session cookie should be set")
	assert.True(t, c.cookie.HttpOnly)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := c.get(path)
		assert.Equal(t, http.StatusOK, rr.Code, path)
		assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	}
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	c := newTestClient(t, Options{})
	rr := c.get("/")
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Contains(t, rr.Header().Get("Cache-Control"), "no-store")
}

func TestStaticAssets(t *testing.T) {
	c := newTestClient(t, Options{})
	rr := c.get("/static/app.js")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Cache-Control"), "max-age=3600")
}

func TestSessionCookieReused(t *testing.T) {
	store := session.NewStore(session.DefaultConfig(), nil)
	c := newTestClient(t, Options{Sessions: store})

	c.get("/")
	first := c.cookie.Value
	c.form("/grants", nil)
	c.get("/")

	assert.Equal(t, first, c.cookie.Value)
	assert.Equal(t, 1, store.Len())

	sess, ok := store.Get(first)
	require.True(t, ok)
	assert.Len(t, sess.Snapshot().Grants, 2)
}

func TestStaleCookieStartsNewSession(t *testing.T) {
	c := newTestClient(t, Options{})
	c.cookie = &http.Cookie{Name: sessionCookie, Value: "expired"}

	rr := c.get("/api/portfolio")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotEqual(t, "expired", c.cookie.Value)
	assert.Len(t, decodeValuation(t, rr).Grants, 1)
}

func TestUIWorkedExample(t *testing.T) {
	c := newTestClient(t, Options{})
	c.get("/")

	rr := c.form("/rates", url.Values{"field": {"market_price"}, "value": {"10"}})
	require.Equal(t, http.StatusOK, rr.Code)
	rr = c.form("/grants/0", url.Values{"field": {"num_shares"}, "value": {"100"}})
	require.Equal(t, http.StatusOK, rr.Code)
	rr = c.form("/grants/0", url.Values{"field": {"exercise_price"}, "value": {"5"}})
	require.Equal(t, http.StatusOK, rr.Code)

	body := rr.Body.String()
	assert.True(t, strings.HasPrefix(strings.TrimSpace(body), `<section id="calculator"`))
	assert.Contains(t, body, "Your Options are worth: 729.00")
	assert.Contains(t, body, ">171.00<")
	assert.Contains(t, body, ">100.00<")

	var trigger map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(rr.Header().Get("HX-Trigger")), &trigger))
	assert.Equal(t, 729.0, trigger[EventPortfolioUpdated]["total"])
}

func TestUIAddGrantSeedsDefaults(t *testing.T) {
	c := newTestClient(t, Options{})
	c.get("/")
	c.form("/rates", url.Values{"field": {"market_price"}, "value": {"3"}})

	rr := c.form("/grants", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 2, strings.Count(rr.Body.String(), `class="grant-row"`))
	assert.Contains(t, rr.Header().Get("HX-Trigger"), EventPortfolioUpdated)
}

func TestUIErrors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		values url.Values
		want   int
	}{
		{"invalid number", "/grants/0", url.Values{"field": {"num_shares"}, "value": {"abc"}}, http.StatusUnprocessableEntity},
		{"empty number", "/rates", url.Values{"field": {"market_price"}, "value": {""}}, http.StatusUnprocessableEntity},
		{"unknown grant field", "/grants/0", url.Values{"field": {"taxes"}, "value": {"1"}}, http.StatusBadRequest},
		{"unknown rate field", "/rates", url.Values{"field": {"bogus"}, "value": {"1"}}, http.StatusBadRequest},
		{"missing field", "/rates", url.Values{"value": {"1"}}, http.StatusBadRequest},
		{"index out of range", "/grants/3", url.Values{"field": {"num_shares"}, "value": {"1"}}, http.StatusNotFound},
		{"non numeric index", "/grants/abc", url.Values{"field": {"num_shares"}, "value": {"1"}}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, Options{})
			c.get("/")
			rr := c.form(tt.path, tt.values)
			assert.Equal(t, tt.want, rr.Code)
			assert.Contains(t, rr.Header().Get("HX-Trigger"), "show-notification")

			v := decodeValuation(t, c.get("/api/portfolio"))
			assert.Equal(t, core.NewPortfolio(core.DefaultRates()).Snapshot(), v, "failed change must not mutate state")
		})
	}
}

func TestAPIWorkedExample(t *testing.T) {
	c := newTestClient(t, Options{})

	rr := c.json(http.MethodPut, "/api/rates", `{"field":"market_price","value":10}`)
	require.Equal(t, http.StatusOK, rr.Code)
	rr = c.json(http.MethodPut, "/api/grants/0", `{"field":"num_shares","value":"100"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	rr = c.json(http.MethodPut, "/api/grants/0", `{"field":"exercisePrice","value":5}`)
	require.Equal(t, http.StatusOK, rr.Code)

	v := decodeValuation(t, rr)
	require.Len(t, v.Grants, 1)
	assert.Equal(t, 100.0, v.Grants[0].CostToExercise)
	assert.Equal(t, 171.0, v.Grants[0].Taxes)
	assert.Equal(t, 729.0, v.Total)

	rr = c.get("/api/total")
	require.Equal(t, http.StatusOK, rr.Code)
	var total totalResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &total))
	assert.Equal(t, totalResponse{Total: 729, Formatted: "729.00", Grants: 1}, total)
}

func TestAPIAddGrant(t *testing.T) {
	c := newTestClient(t, Options{})

	rr := c.json(http.MethodPost, "/api/grants", "")
	require.Equal(t, http.StatusCreated, rr.Code)

	var resp addGrantResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Index)
	require.Len(t, resp.Portfolio.Grants, 2)
	assert.Equal(t, resp.Portfolio.Grants[0], resp.Portfolio.Grants[1])
}

func TestAPIErrors(t *testing.T) {
	c := newTestClient(t, Options{})

	rr := c.json(http.MethodPut, "/api/grants/7", `{"field":"num_shares","value":1}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	var body errorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, http.StatusNotFound, body.Status)
	assert.Contains(t, body.Error, "out of range")

	rr = c.json(http.MethodPut, "/api/rates", `{"field":"market_price"`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = c.json(http.MethodPut, "/api/rates", `{"field":"market_price","value":"NaN"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = c.json(http.MethodDelete, "/api/grants/0", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestExportImportRoundTrip(t *testing.T) {
	c := newTestClient(t, Options{})
	c.json(http.MethodPut, "/api/rates", `{"field":"market_price","value":10}`)
	c.json(http.MethodPut, "/api/grants/0", `{"field":"num_shares","value":100}`)
	c.json(http.MethodPut, "/api/grants/0", `{"field":"exercise_price","value":5}`)

	rr := c.get("/portfolio.yaml")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/yaml", rr.Header().Get("Content-Type"))
	exported := rr.Body.String()
	assert.Contains(t, exported, "market_price: 10")

	other := newTestClient(t, Options{})
	req := httptest.NewRequest(http.MethodPost, "/portfolio.yaml", strings.NewReader(exported))
	req.Header.Set("Content-Type", "application/yaml")
	rr = other.do(req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, 729.0, decodeValuation(t, rr).Total)
}

func TestImportMultipartFromHTMX(t *testing.T) {
	c := newTestClient(t, Options{})
	c.get("/")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "portfolio.yaml")
	require.NoError(t, err)
	_, err = io.WriteString(fw, "rates:\n  market_price: 10\ngrants:\n  - num_shares: 100\n    exercise_price: 5\n  - {}\n")
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/portfolio.yaml", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("HX-Request", "true")
	rr := c.do(req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, 2, strings.Count(rr.Body.String(), `class="grant-row"`))
	// second grant (1,1,1) at market 10: 10 - 0 - 1.35 - 1
	assert.Contains(t, rr.Body.String(), "Your Options are worth: 736.65")

	var triggers map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(rr.Header().Get("HX-Trigger")), &triggers))
	assert.Equal(t, "success", triggers["show-notification"]["type"])
	assert.Equal(t, "Imported 2 grants", triggers["show-notification"]["message"])
	assert.Contains(t, triggers, EventPortfolioUpdated)
}

func TestImportRejectsInvalidFile(t *testing.T) {
	c := newTestClient(t, Options{})
	c.get("/")

	req := httptest.NewRequest(http.MethodPost, "/portfolio.yaml", strings.NewReader("grants: [1, 2"))
	rr := c.do(req)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	v := decodeValuation(t, c.get("/api/portfolio"))
	assert.Len(t, v.Grants, 1)
}

func TestReportPDF(t *testing.T) {
	c := newTestClient(t, Options{})
	rr := c.get("/report.pdf")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("%PDF")))
}

func TestRateLimitAppliesToMutationsOnly(t *testing.T) {
	c := newTestClient(t, Options{RateLimit: ratelimit.Config{RequestsPerMinute: 2}})

	assert.Equal(t, http.StatusOK, c.form("/grants", nil).Code)
	assert.Equal(t, http.StatusOK, c.form("/grants", nil).Code)
	rr := c.form("/grants", nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, c.get("/api/portfolio").Code)
}

func TestNewServerRequiresSessions(t *testing.T) {
	_, err := NewServer(Options{})
	assert.Error(t, err)
}

func TestAPIRejectsOverflowingChange(t *testing.T) {
	c := newTestClient(t, Options{})

	rr := c.json(http.MethodPut, "/api/grants/0", `{"field":"num_shares","value":1e300}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = c.json(http.MethodPut, "/api/grants/0", `{"field":"strike_price","value":1e300}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	var body errorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, http.StatusUnprocessableEntity, body.Status)

	rr = c.json(http.MethodPut, "/api/rates", `{"field":"market_price","value":1e300}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = c.get("/api/portfolio")
	require.Equal(t, http.StatusOK, rr.Code)
	v := decodeValuation(t, rr)
	assert.Equal(t, 1e300, v.Grants[0].NumShares)
	assert.Equal(t, 1.0, v.Grants[0].StrikePrice)
	assert.Equal(t, 1.0, v.Rates.MarketPrice)

	rr = c.get("/api/total")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Body.String())
}
