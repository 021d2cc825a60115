package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func newRouter(j JWT, disabled bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware(j, disabled))
	r.GET("/me", func(c *gin.Context) {
		actor, ok := ActorFromGin(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		team := uint64(0)
		if actor.TeamID != nil {
			team = *actor.TeamID
		}
		c.JSON(http.StatusOK, gin.H{"user": actor.UserID, "team": team})
	})
	r.GET("/admin", RequireRole("admin"), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func do(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestMiddlewareAcceptsValidToken(t *testing.T) {
	j := JWT{Secret: []byte("secret"), TokenTTL: time.Minute}
	team := uint64(4)
	tok, _, err := j.Sign(Claims{UserID: 9, TeamID: &team, Role: "sales"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	w := do(newRouter(j, false), "/me", tok)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if got := w.Body.String(); got != `{"team":4,"user":9}` {
		t.Fatalf("body=%s", got)
	}

	if w := do(newRouter(j, false), "/admin", tok); w.Code != http.StatusForbidden {
		t.Fatalf("admin status=%d want 403", w.Code)
	}
}

func TestMiddlewareRejects(t *testing.T) {
	j := JWT{Secret: []byte("secret")}
	r := newRouter(j, false)

	if w := do(r, "/me", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing token status=%d", w.Code)
	}
	if w := do(r, "/me", "garbage"); w.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token status=%d", w.Code)
	}

	other, _, _ := JWT{Secret: []byte("other")}.Sign(Claims{UserID: 1})
	if w := do(r, "/me", other); w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong secret status=%d", w.Code)
	}

	expired, _, _ := j.Sign(Claims{
		UserID:           1,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))},
	})
	if w := do(r, "/me", expired); w.Code != http.StatusUnauthorized {
		t.Fatalf("expired status=%d", w.Code)
	}

	foreign, _, _ := JWT{Secret: []byte("secret"), Issuer: "someone-else"}.Sign(Claims{UserID: 1})
	if w := do(r, "/me", foreign); w.Code != http.StatusUnauthorized {
		t.Fatalf("foreign issuer status=%d", w.Code)
	}

	noUser, _, _ := j.Sign(Claims{Role: "admin"})
	if w := do(r, "/me", noUser); w.Code != http.StatusUnauthorized {
		t.Fatalf("no user status=%d", w.Code)
	}
}

func TestMiddlewareDisabled(t *testing.T) {
	r := newRouter(JWT{}, true)
	w := do(r, "/me", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if w := do(r, "/admin", ""); w.Code != http.StatusNoContent {
		t.Fatalf("admin status=%d", w.Code)
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"":             "",
		"Bearer abc":   "abc",
		"bearer  abc ": "abc",
		"Basic abc":    "",
		"Bearerabc":    "",
	}
	for in, want := range cases {
		if got := bearerToken(in); got != want {
			t.Fatalf("bearerToken(%q)=%q want %q", in, got, want)
		}
	}
}
