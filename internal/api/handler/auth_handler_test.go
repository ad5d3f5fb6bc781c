package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/dock-kiosk/internal/core/domain"
	"github.com/99minutos/dock-kiosk/internal/core/ports"
)

type stubAuthService struct {
	registerFn    func(ctx context.Context, username, password, email string) (*domain.User, error)
	loginFn       func(ctx context.Context, username, password string) (string, *domain.User, error)
	driverLoginFn func(ctx context.Context, code string) (string, *ports.DriverIdentity, error)
}

func (s *stubAuthService) RegisterOperator(ctx context.Context, username, password, email string) (*domain.User, error) {
	return s.registerFn(ctx, username, password, email)
}

func (s *stubAuthService) LoginOperator(ctx context.Context, username, password string) (string, *domain.User, error) {
	return s.loginFn(ctx, username, password)
}

func (s *stubAuthService) LoginDriver(ctx context.Context, code string) (string, *ports.DriverIdentity, error) {
	return s.driverLoginFn(ctx, code)
}

func postJSON(e *echo.Echo, path, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestAuthHandler_RegisterOperator_Success(t *testing.T) {
	e := newTestEcho()
	stub := &stubAuthService{
		registerFn: func(ctx context.Context, username, password, email string) (*domain.User, error) {
			if username != "alice" || email != "a@example.com" {
				t.Fatalf("unexpected args: %s %s", username, email)
			}
			return &domain.User{Username: username, Email: email, Role: domain.RoleOperator}, nil
		},
	}
	handler := NewAuthHandler(stub)

	c, rec := postJSON(e, "/auth/operators/register", `{"username":"alice","password":"secret-pw","email":"a@example.com"}`)
	if err := handler.RegisterOperator(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	user, ok := resp["user"].(map[string]any)
	if !ok {
		t.Fatalf("expected user in response")
	}
	if user["username"] != "alice" || user["role"] != "operator" {
		t.Fatalf("unexpected user payload: %+v", user)
	}
	if _, leaked := user["PasswordHash"]; leaked {
		t.Fatalf("password hash must not be serialised")
	}
}

func TestAuthHandler_RegisterOperator_UserExists(t *testing.T) {
	e := newTestEcho()
	stub := &stubAuthService{
		registerFn: func(ctx context.Context, username, password, email string) (*domain.User, error) {
			return nil, domain.ErrUserExists
		},
	}
	handler := NewAuthHandler(stub)

	c, rec := postJSON(e, "/auth/operators/register", `{"username":"bob","password":"long-enough"}`)
	_ = handler.RegisterOperator(c)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestAuthHandler_RegisterOperator_InvalidPayload(t *testing.T) {
	cases := map[string]string{
		"not json":       "not-json",
		"short password": `{"username":"bob","password":"short"}`,
		"bad email":      `{"username":"bob","password":"long-enough","email":"nope"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			e := newTestEcho()
			stub := &stubAuthService{
				registerFn: func(ctx context.Context, username, password, email string) (*domain.User, error) {
					t.Fatalf("should not be called")
					return nil, nil
				},
			}
			handler := NewAuthHandler(stub)

			c, rec := postJSON(e, "/auth/operators/register", body)
			_ = handler.RegisterOperator(c)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestAuthHandler_LoginOperator_Success(t *testing.T) {
	e := newTestEcho()
	stub := &stubAuthService{
		loginFn: func(ctx context.Context, username, password string) (string, *domain.User, error) {
			if username != "alice" || password != "secret" {
				t.Fatalf("unexpected args: %s %s", username, password)
			}
			return "token123", &domain.User{Username: "alice", Role: domain.RoleOperator}, nil
		},
	}
	handler := NewAuthHandler(stub)

	c, rec := postJSON(e, "/auth/operators/login", `{"username":"alice","password":"secret"}`)
	if err := handler.LoginOperator(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp["token"] != "token123" {
		t.Fatalf("expected token, got %v", resp["token"])
	}
}

func TestAuthHandler_LoginOperator_Failures(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"bad password", domain.ErrInvalidCredentials},
		{"unknown user", domain.ErrUserNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestEcho()
			stub := &stubAuthService{
				loginFn: func(ctx context.Context, username, password string) (string, *domain.User, error) {
					return "", nil, tc.err
				},
			}
			handler := NewAuthHandler(stub)

			c, rec := postJSON(e, "/auth/operators/login", `{"username":"ghost","password":"pwd"}`)
			_ = handler.LoginOperator(c)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), "invalid credentials") {
				t.Fatalf("expected generic credentials error, got %s", rec.Body.String())
			}
		})
	}
}

func TestAuthHandler_LoginOperator_InvalidPayload(t *testing.T) {
	e := newTestEcho()
	stub := &stubAuthService{
		loginFn: func(ctx context.Context, username, password string) (string, *domain.User, error) {
			t.Fatalf("should not be called")
			return "", nil, nil
		},
	}
	handler := NewAuthHandler(stub)

	c, rec := postJSON(e, "/auth/operators/login", "{")
	_ = handler.LoginOperator(c)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAuthHandler_LoginDriver(t *testing.T) {
	e := newTestEcho()
	stub := &stubAuthService{
		driverLoginFn: func(ctx context.Context, code string) (string, *ports.DriverIdentity, error) {
			if code != "ABC123" {
				return "", nil, domain.ErrInvalidCredentials
			}
			return "driver-token", &ports.DriverIdentity{BookingID: "B1", Status: domain.StatusConfirmed}, nil
		},
	}
	handler := NewAuthHandler(stub)

	c, rec := postJSON(e, "/auth/drivers/login", `{"confirmation_code":"ABC123"}`)
	if err := handler.LoginDriver(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp authResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Token != "driver-token" || resp.BookingID != "B1" || resp.Status != "confirmed" {
		t.Fatalf("unexpected response %+v", resp)
	}

	c, rec = postJSON(e, "/auth/drivers/login", `{"confirmation_code":"WRONG"}`)
	_ = handler.LoginDriver(c)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
