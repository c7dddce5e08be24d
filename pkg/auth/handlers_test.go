package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/encoding/json"
	"github.com/serenitylibrary/serenity/pkg/binder"
	"github.com/serenitylibrary/serenity/pkg/errcodes"
	"github.com/serenitylibrary/serenity/pkg/mailer"
	"github.com/serenitylibrary/serenity/pkg/otp"
	"github.com/serenitylibrary/serenity/pkg/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type authFixture struct {
	e      *echo.Echo
	svc    *Service
	sender *mailer.Recorder
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	svc, _, _ := newAuthService(t)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
	})

	e := echo.New()
	b, err := binder.New()
	require.NoError(t, err)
	e.Binder = b
	e.HTTPErrorHandler = errcodes.NewHandler().Handle

	sender := &mailer.Recorder{}
	RegisterRoutes(e, svc, otp.NewStore(client, 10*time.Minute), sender)

	return &authFixture{e, svc, sender}
}

func (f *authFixture) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	f.e.ServeHTTP(rr, req)
	return rr
}

func TestLoginAndMe(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t)

	user := testutils.CreateUser(t, f.svc.db, "Ada")
	require.NoError(t, f.svc.SetPassword(context.Background(), user.ID, "correct horse"))

	rr := f.do(t, http.MethodPost, "/auth/login", `{"email":"`+strings.ToUpper(user.Email)+`","password":"wrong password"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = f.do(t, http.MethodPost, "/auth/login", `{"email":"`+user.Email+`","password":"correct horse"}`, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &login))
	require.NotEmpty(t, login.Token)
	assert.NotContains(t, rr.Body.String(), "password_hash")

	rr = f.do(t, http.MethodGet, "/auth/me", "", login.Token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), user.Email)

	rr = f.do(t, http.MethodGet, "/auth/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestPasswordResetFlow(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t)
	ctx := context.Background()

	user := testutils.CreateUser(t, f.svc.db, "Grace")
	require.NoError(t, f.svc.SetPassword(ctx, user.ID, "old password"))

	rr := f.do(t, http.MethodPost, "/auth/request-otp", `{"email":"`+user.Email+`"}`, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	sent := f.sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, user.Email, sent[0].To)
	code := regexp.MustCompile(`\d{4}`).FindString(sent[0].HTMLBody)
	require.NotEmpty(t, code)

	rr = f.do(t, http.MethodPost, "/auth/verify-otp", `{"email":"`+user.Email+`","code":"`+code+`"}`, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var verified VerifyOTPResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &verified))

	// The code was consumed.
	rr = f.do(t, http.MethodPost, "/auth/verify-otp", `{"email":"`+user.Email+`","code":"`+code+`"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = f.do(t, http.MethodPost, "/auth/reset-password", `{"reset_token":"`+verified.ResetToken+`","new_password":"new password"}`, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	_, err := f.svc.Authenticate(ctx, user.Email, "new password")
	require.NoError(t, err)
	_, err = f.svc.Authenticate(ctx, user.Email, "old password")
	assert.Error(t, err)
}

func TestRequestOTP_UnknownEmail(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t)

	rr := f.do(t, http.MethodPost, "/auth/request-otp", `{"email":"nobody@example.com"}`, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, f.sender.Sent())
}

func TestResetPassword_RejectsAccessToken(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t)

	user := testutils.CreateUser(t, f.svc.db, "Linus")
	access, err := f.svc.GenerateToken(user)
	require.NoError(t, err)

	rr := f.do(t, http.MethodPost, "/auth/reset-password", `{"reset_token":"`+access+`","new_password":"new password"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
