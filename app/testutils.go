package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sushihentaime/quillpost/internal/commentservice"
	"github.com/sushihentaime/quillpost/internal/common"
	"github.com/sushihentaime/quillpost/internal/postservice"
	"github.com/sushihentaime/quillpost/internal/userservice"
)

type testServer struct {
	*httptest.Server
}

func newTestServer(t *testing.T, h http.Handler) *testServer {
	ts := httptest.NewServer(h)

	t.Cleanup(ts.Close)

	return &testServer{ts}
}

func readResponse(t *testing.T, res *http.Response) (int, http.Header, envelope) {
	defer res.Body.Close()

	responseBody, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatal(err)
	}

	var envelope envelope
	if len(responseBody) > 0 {
		err = json.Unmarshal(responseBody, &envelope)
		if err != nil {
			t.Fatal(err)
		}
	}

	return res.StatusCode, res.Header, envelope
}

func testConfig() *Config {
	return &Config{
		Port:             "4000",
		Environment:      "testing",
		Version:          "test",
		Timezone:         "UTC",
		RateLimitEnabled: false,
	}
}

// newBareApplication has no services behind it, for middleware and routing tests.
func newBareApplication() *application {
	return &application{
		config:   testConfig(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		location: time.UTC,
	}
}

func newTestApplication(t *testing.T) (*application, *sql.DB) {
	db := common.TestDB("file://../migrations", t)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	rabbitURI := common.TestRabbitMQ(t)
	rabbitmq, err := common.NewMessageBroker(rabbitURI)
	require.NoError(t, err)
	t.Cleanup(func() { rabbitmq.Close() })

	require.NoError(t, common.SetupUserExchange(rabbitmq))
	require.NoError(t, common.SetupPostExchange(rabbitmq))

	cache := common.NewCache(5*time.Minute, 10*time.Minute)

	app := &application{
		config:         testConfig(),
		logger:         logger,
		db:             db,
		location:       time.UTC,
		userService:    userservice.NewUserService(db, rabbitmq, cache),
		postService:    postservice.NewPostService(db, cache, time.UTC),
		commentService: commentservice.NewCommentService(db, rabbitmq, logger),
	}

	return app, db
}

// registerAndLogin creates an account through the service layer and returns its access token.
func registerAndLogin(t *testing.T, app *application, name, email string) (*userservice.User, string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := app.userService.RegisterUser(ctx, name, email, "Test_1234!", "Test_1234!")
	require.NoError(t, err)

	user, token, err := app.userService.LoginUser(ctx, email, "Test_1234!")
	require.NoError(t, err)

	return user, token.AccessTokenPlain
}

// loginAdmin bootstraps an administrator and returns its access token.
func loginAdmin(t *testing.T, app *application) (*userservice.User, string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := app.userService.EnsureAdmin(ctx, "Admin", "admin@example.com", "Admin_1234!")
	require.NoError(t, err)

	user, token, err := app.userService.LoginUser(ctx, "admin@example.com", "Admin_1234!")
	require.NoError(t, err)

	return user, token.AccessTokenPlain
}

func (ts *testServer) do(t *testing.T, method, path string, token *string, payload any, headers http.Header) (int, http.Header, envelope) {
	var body io.Reader
	if payload != nil {
		jsonPayload, err := json.Marshal(payload)
		if err != nil {
			t.Fatal(err)
		}
		body = bytes.NewReader(jsonPayload)
	}

	req, err := http.NewRequest(method, ts.URL+path, body)
	if err != nil {
		t.Fatal(err)
	}

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != nil {
		req.Header.Set("Authorization", "Bearer "+*token)
	}
	for key, values := range headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	res, err := ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}

	return readResponse(t, res)
}

func (ts *testServer) post(t *testing.T, path string, data any, token *string) (int, http.Header, envelope) {
	return ts.do(t, http.MethodPost, path, token, data, nil)
}

func (ts *testServer) get(t *testing.T, path string, token *string) (int, http.Header, envelope) {
	return ts.do(t, http.MethodGet, path, token, nil, nil)
}

func (ts *testServer) put(t *testing.T, path string, token *string, payload any) (int, http.Header, envelope) {
	return ts.do(t, http.MethodPut, path, token, payload, nil)
}

func (ts *testServer) patch(t *testing.T, path string, token *string, payload any) (int, http.Header, envelope) {
	return ts.do(t, http.MethodPatch, path, token, payload, nil)
}

func (ts *testServer) delete(t *testing.T, path string, token *string) (int, http.Header, envelope) {
	return ts.do(t, http.MethodDelete, path, token, nil, nil)
}
