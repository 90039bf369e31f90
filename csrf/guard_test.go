package csrf_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/onboardAuth/csrf"
	"github.com/MrEthical07/onboardAuth/internal/store/storetest"
	"github.com/MrEthical07/onboardAuth/session"
)

func setup(t *testing.T) (*csrf.Guard, *session.Manager, string) {
	t.Helper()
	sessions := session.NewManager(storetest.NewDB(t))
	s, err := sessions.Create(context.Background(), "acc-1", map[string]string{session.AttrAuthStage: session.StageFull}, time.Hour)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return csrf.NewGuard(sessions, csrf.DefaultConfig(), nil), sessions, s.ID
}

func serve(g *csrf.Guard, r *http.Request) int {
	h := g.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec.Code
}

func withSession(r *http.Request, id string) *http.Request {
	r.AddCookie(&http.Cookie{Name: csrf.DefaultCookieName, Value: id})
	return r
}

func TestStateChangingRequestNeedsMatchingToken(t *testing.T) {
	g, _, sid := setup(t)
	token, err := g.Issue(context.Background(), sid)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	r := withSession(httptest.NewRequest(http.MethodPost, "/password/change", nil), sid)
	if code := serve(g, r); code != http.StatusForbidden {
		t.Fatalf("missing header: got %d", code)
	}

	r = withSession(httptest.NewRequest(http.MethodPost, "/password/change", nil), sid)
	r.Header.Set(csrf.DefaultHeaderName, token+"x")
	if code := serve(g, r); code != http.StatusForbidden {
		t.Fatalf("wrong header: got %d", code)
	}

	r = withSession(httptest.NewRequest(http.MethodPost, "/password/change", nil), sid)
	r.Header.Set(csrf.DefaultHeaderName, token)
	if code := serve(g, r); code != http.StatusNoContent {
		t.Fatalf("valid header: got %d", code)
	}
}

func TestIssueRotatesToken(t *testing.T) {
	g, _, sid := setup(t)
	first, _ := g.Issue(context.Background(), sid)
	second, _ := g.Issue(context.Background(), sid)
	if first == second {
		t.Fatal("expected rotation")
	}
	r := withSession(httptest.NewRequest(http.MethodPut, "/admin/security-settings", nil), sid)
	r.Header.Set(csrf.DefaultHeaderName, first)
	if code := serve(g, r); code != http.StatusForbidden {
		t.Fatalf("stale token accepted: %d", code)
	}
}

func TestUnknownSessionRejected(t *testing.T) {
	g, sessions, sid := setup(t)
	token, _ := g.Issue(context.Background(), sid)
	_ = sessions.Destroy(context.Background(), sid)

	r := withSession(httptest.NewRequest(http.MethodPost, "/admin/accounts", nil), sid)
	r.Header.Set(csrf.DefaultHeaderName, token)
	if code := serve(g, r); code != http.StatusForbidden {
		t.Fatalf("destroyed session: got %d", code)
	}
	if _, err := g.Issue(context.Background(), sid); err != csrf.ErrNoSession {
		t.Fatalf("Issue on destroyed session = %v", err)
	}
}

func TestExemptions(t *testing.T) {
	g, _, sid := setup(t)

	cases := []struct {
		name   string
		method string
		path   string
		ctype  string
		cookie bool
		bearer bool
		want   int
	}{
		{"safe method", http.MethodGet, "/me", "", true, false, http.StatusNoContent},
		{"login", http.MethodPost, "/login", "", true, false, http.StatusNoContent},
		{"mfa prefix", http.MethodPost, "/mfa/setup/verify", "", true, false, http.StatusNoContent},
		{"prefix boundary", http.MethodPost, "/mfa-admin", "", true, false, http.StatusForbidden},
		{"multipart upload", http.MethodPost, "/uploads/doc", "multipart/form-data; boundary=x", true, false, http.StatusNoContent},
		{"json upload", http.MethodPost, "/uploads/doc", "application/json", true, false, http.StatusForbidden},
		{"multipart elsewhere", http.MethodPost, "/password/change", "multipart/form-data; boundary=x", true, false, http.StatusForbidden},
		{"bearer only", http.MethodPost, "/password/change", "", false, true, http.StatusNoContent},
		{"bearer with cookie", http.MethodPost, "/password/change", "", true, true, http.StatusForbidden},
		{"no credentials", http.MethodPost, "/password/change", "", false, false, http.StatusForbidden},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(tc.method, tc.path, strings.NewReader(""))
		if tc.ctype != "" {
			r.Header.Set("Content-Type", tc.ctype)
		}
		if tc.cookie {
			withSession(r, sid)
		}
		if tc.bearer {
			r.Header.Set("Authorization", "Bearer abc.def.ghi")
		}
		if code := serve(g, r); code != tc.want {
			t.Fatalf("%s: got %d want %d", tc.name, code, tc.want)
		}
	}
}
