package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-papers/internal/config"
	"github.com/stemsi/exstem-papers/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testAuth() *service.AuthService {
	return service.NewAuthService(&config.Config{JWTSecret: "test-secret", JWTExpiry: time.Hour})
}

func issue(t *testing.T, auth *service.AuthService, tt service.TokenType, id int) string {
	t.Helper()
	tok, err := auth.GenerateToken(tt, id)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return tok
}

func TestRequireTeacherJWT(t *testing.T) {
	auth := testAuth()
	r := gin.New()
	r.GET("/p", RequireTeacherJWT(auth), func(c *gin.Context) {
		caller := CallerFrom(c)
		if caller.Role != service.RoleTeacher || caller.UserID != 7 {
			t.Errorf("caller = %+v", caller)
		}
		c.Status(http.StatusNoContent)
	})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"garbage", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"student token", "Bearer " + issue(t, auth, service.TokenTypeStudent, 7), http.StatusForbidden},
		{"teacher token", "Bearer " + issue(t, auth, service.TokenTypeTeacher, 7), http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/p", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestRequireTeacherWSAuthReadsQuery(t *testing.T) {
	auth := testAuth()
	r := gin.New()
	r.GET("/ws", RequireTeacherWSAuth(auth), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws?token="+issue(t, auth, service.TokenTypeTeacher, 3), nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestCallerFromWithoutClaimsIsAnonymous(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if got := CallerFrom(c); got.UserID != 0 {
		t.Fatalf("caller = %+v, want zero", got)
	}
}

func TestRateLimiterFixedWindow(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	auth := testAuth()
	rl := NewRateLimiter(rdb, 2, time.Minute, zerolog.Nop())
	now := time.Date(2026, 3, 2, 9, 0, 10, 0, time.UTC)
	rl.now = func() time.Time { return now }

	r := gin.New()
	r.POST("/start", RequireStudentJWT(auth), rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	call := func(tok string) int {
		req := httptest.NewRequest(http.MethodPost, "/start", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	alice := issue(t, auth, service.TokenTypeStudent, 1)
	bob := issue(t, auth, service.TokenTypeStudent, 2)
	for i, want := range []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests} {
		if got := call(alice); got != want {
			t.Fatalf("call %d: status = %d, want %d", i+1, got, want)
		}
	}
	if got := call(bob); got != http.StatusOK {
		t.Fatalf("other student limited: %d", got)
	}

	key := config.CacheKey.StudentRateKey(1, now.Unix()/60)
	if ttl := mr.TTL(key); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("window ttl = %v", ttl)
	}

	now = now.Add(time.Minute)
	if got := call(alice); got != http.StatusOK {
		t.Fatalf("next window: status = %d", got)
	}
}

func TestRateLimiterFailsOpen(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	auth := testAuth()
	r := gin.New()
	r.POST("/submit", RequireStudentJWT(auth), NewRateLimiter(rdb, 1, time.Minute, zerolog.Nop()).Middleware(),
		func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/submit", nil)
	req.Header.Set("Authorization", "Bearer "+issue(t, auth, service.TokenTypeStudent, 1))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 when redis is down", w.Code)
	}
}

func TestBrotliCompressesLargeBodies(t *testing.T) {
	large := strings.Repeat("question ", 400)
	r := gin.New()
	r.Use(Brotli(5))
	r.GET("/large", func(c *gin.Context) { c.String(http.StatusOK, large) })
	r.GET("/small", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	req := httptest.NewRequest(http.MethodGet, "/large", nil)
	req.Header.Set("Accept-Encoding", "gzip, br;q=1.0")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Header().Get("Content-Encoding") != "br" {
		t.Fatalf("large body not compressed: %v", w.Header())
	}
	plain, err := io.ReadAll(brotli.NewReader(bytes.NewReader(w.Body.Bytes())))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(plain) != large {
		t.Fatal("round trip mismatch")
	}

	req = httptest.NewRequest(http.MethodGet, "/small", nil)
	req.Header.Set("Accept-Encoding", "br")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Header().Get("Content-Encoding") != "" || w.Body.String() != "ok" {
		t.Fatalf("small body: enc=%q body=%q", w.Header().Get("Content-Encoding"), w.Body.String())
	}
}

func TestNoStore(t *testing.T) {
	r := gin.New()
	r.GET("/x", NoStore(), func(c *gin.Context) { c.Status(http.StatusOK) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("Cache-Control = %q", w.Header().Get("Cache-Control"))
	}
}
