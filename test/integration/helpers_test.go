// Package integration provides integration tests for the portier gateway.
//
// Tests run against a real HTTP server assembled the way cmd/server does it,
// started in-process using net/http/httptest: three authentication schemes
// (bearer, apikey, cookie), authorization policies, and the auth middleware.
package integration

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/avekoy/portier/pkg/auth"
	"github.com/avekoy/portier/pkg/auth/apikey"
	"github.com/avekoy/portier/pkg/auth/bearer"
	"github.com/avekoy/portier/pkg/auth/cookie"
	"github.com/avekoy/portier/pkg/authz"
)

// testEnv holds the shared server for all integration tests.
var testEnv *TestEnvironment

// TestEnvironment holds the gateway server and the key material used to mint
// test credentials.
type TestEnvironment struct {
	Server  *httptest.Server
	signKey *rsa.PrivateKey
}

// TestMain starts the gateway before running tests.
func TestMain(m *testing.M) {
	testEnv = setupTestEnvironment()
	code := m.Run()
	testEnv.Server.Close()
	os.Exit(code)
}

// setupTestEnvironment assembles a gateway with all three schemes registered.
func setupTestEnvironment() *TestEnvironment {
	signKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(fmt.Sprintf("generating test RSA key: %v", err))
	}

	bearerHandler := bearer.New(bearer.Config{
		Issuer:    "https://auth.example.com",
		Audience:  "portier-test",
		PublicKey: &signKey.PublicKey,
	})

	keyHandler := apikey.New(apikey.Config{}, apikey.NewStaticStore([]apikey.RawKey{
		{Key: "sk-admin-key", Identity: apikey.Identity{Subject: "admin-svc", Roles: []string{"admin"}, Tier: "pro"}},
		{Key: "sk-user-key", Identity: apikey.Identity{Subject: "user-svc", Roles: []string{"user"}}},
	}))

	cookieHandler, err := cookie.New(cookie.Config{
		Secret: []byte("integration-test-secret-32-bytes"),
		TTL:    time.Hour,
	}, cookie.NewMemoryStore())
	if err != nil {
		panic(fmt.Sprintf("creating cookie handler: %v", err))
	}

	svc, err := auth.NewServiceBuilder().
		AddHandler("bearer", bearerHandler).
		AddHandler("apikey", keyHandler).
		AddHandler("session", cookieHandler).
		DefaultScheme("bearer").
		Build()
	if err != nil {
		panic(fmt.Sprintf("building auth service: %v", err))
	}

	authenticated := authz.NewPolicyBuilder().Build(svc)
	adminOnly := authz.NewPolicyBuilder().RequireRole("admin").Build(svc)

	guard := func(policy *authz.Policy, h http.HandlerFunc) http.Handler {
		return auth.Middleware(svc, policy, nil, nil)(h)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("GET /whoami", guard(authenticated, func(w http.ResponseWriter, r *http.Request) {
		p := auth.PrincipalFromContext(r.Context())
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"subject": p.Subject()})
	}))
	mux.Handle("GET /admin", guard(adminOnly, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	mux.Handle("POST /session", guard(authenticated, func(w http.ResponseWriter, r *http.Request) {
		p := auth.PrincipalFromContext(r.Context())
		resp, err := svc.SignIn(r.Context(), r, "session", p)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		resp.Write(w)
	}))
	mux.HandleFunc("DELETE /session", func(w http.ResponseWriter, r *http.Request) {
		resp, err := svc.SignOut(r.Context(), r, "session")
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		resp.Write(w)
	})

	return &TestEnvironment{
		Server:  httptest.NewServer(mux),
		signKey: signKey,
	}
}

// mintToken signs a JWT for the subject with the environment's test key.
func (e *TestEnvironment) mintToken(t *testing.T, subject string, roles ...string) string {
	t.Helper()

	claims := jwtlib.MapClaims{
		"sub": subject,
		"iss": "https://auth.example.com",
		"aud": "portier-test",
		"exp": time.Now().Add(time.Hour).Unix(),
		"iat": time.Now().Unix(),
	}
	if len(roles) > 0 {
		arr := make([]interface{}, len(roles))
		for i, r := range roles {
			arr[i] = r
		}
		claims["role"] = arr
	}

	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodRS256, claims).SignedString(e.signKey)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return token
}

// do sends a request to the test server and returns the response.
func (e *TestEnvironment) do(t *testing.T, method, path string, mutate func(*http.Request)) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, e.Server.URL+path, nil)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	if mutate != nil {
		mutate(req)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}
