// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers_test

import (
	"context"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"codeberg.org/oliverandrich/bankgate/internal/auth"
	"codeberg.org/oliverandrich/bankgate/internal/handlers"
	"codeberg.org/oliverandrich/bankgate/internal/i18n"
	"codeberg.org/oliverandrich/bankgate/internal/models"
	"codeberg.org/oliverandrich/bankgate/internal/repository"
	"codeberg.org/oliverandrich/bankgate/internal/services/access"
	"codeberg.org/oliverandrich/bankgate/internal/services/delivery"
	"codeberg.org/oliverandrich/bankgate/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	if err := i18n.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type dropSender struct{ method string }

func (s dropSender) Method() string { return s.method }

func (dropSender) Send(context.Context, string, delivery.Message) error { return nil }

func newTestHandlers(t *testing.T) (*handlers.Handlers, *repository.Repository) {
	t.Helper()
	_, repo := testutil.NewTestDB(t)
	service := access.New(access.Config{
		Repo:  repo,
		Email: dropSender{method: "email"},
		SMS:   dropSender{method: "sms"},
	})
	return handlers.New(repo, service), repo
}

func httpStatus(t *testing.T, err error) int {
	t.Helper()
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	return httpErr.Code
}

func TestIssueCodeHandler(t *testing.T) {
	h, repo := newTestHandlers(t)
	e := echo.New()
	user := testutil.NewTestUser(t, repo, "alice@example.com")

	c, rec := testutil.NewEchoContext(e, http.MethodPost, "/api/access/code", strings.NewReader(`{"channel":"email"}`))
	testutil.AuthenticateContext(c, &auth.User{ID: user.ID, Role: "member"})

	require.NoError(t, h.IssueCode(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"method":"email"`)
	assert.Contains(t, rec.Body.String(), `"expires_in":900`)
}

func TestIssueCodeHandlerInvalidChannel(t *testing.T) {
	h, repo := newTestHandlers(t)
	e := echo.New()
	user := testutil.NewTestUser(t, repo, "alice@example.com")

	c, _ := testutil.NewEchoContext(e, http.MethodPost, "/api/access/code", strings.NewReader(`{"channel":"fax"}`))
	testutil.AuthenticateContext(c, &auth.User{ID: user.ID, Role: "member"})

	err := h.IssueCode(c)
	assert.Equal(t, http.StatusBadRequest, httpStatus(t, err))
}

func TestIssueCodeHandlerRateLimited(t *testing.T) {
	h, repo := newTestHandlers(t)
	e := echo.New()
	user := testutil.NewTestUser(t, repo, "alice@example.com")

	for range 3 {
		c, _ := testutil.NewEchoContext(e, http.MethodPost, "/api/access/code", strings.NewReader(`{"channel":"email"}`))
		testutil.AuthenticateContext(c, &auth.User{ID: user.ID, Role: "member"})
		require.NoError(t, h.IssueCode(c))
	}

	c, rec := testutil.NewEchoContext(e, http.MethodPost, "/api/access/code", strings.NewReader(`{"channel":"email"}`))
	testutil.AuthenticateContext(c, &auth.User{ID: user.ID, Role: "member"})

	err := h.IssueCode(c)
	assert.Equal(t, http.StatusTooManyRequests, httpStatus(t, err))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestVerifyCodeHandler(t *testing.T) {
	h, repo := newTestHandlers(t)
	e := echo.New()
	user := testutil.NewTestUser(t, repo, "alice@example.com")
	ctx := context.Background()

	// Plant a known code directly.
	expires := time.Now().Add(10 * time.Minute).UTC()
	rec, err := repo.GetSecurityRecord(ctx, user.ID)
	require.NoError(t, err)
	rec.SetOneTimeCode("123456", expires)
	require.NoError(t, repo.SaveSecurityRecord(ctx, rec))

	c, res := testutil.NewEchoContext(e, http.MethodPost, "/api/access/verify", strings.NewReader(`{"code":"123456"}`))
	testutil.AuthenticateContext(c, &auth.User{ID: user.ID, Role: "member"})

	require.NoError(t, h.VerifyCode(c))
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestVerifyCodeHandlerDenied(t *testing.T) {
	h, repo := newTestHandlers(t)
	e := echo.New()
	user := testutil.NewTestUser(t, repo, "alice@example.com")
	ctx := context.Background()

	rec, err := repo.GetSecurityRecord(ctx, user.ID)
	require.NoError(t, err)
	rec.SetOneTimeCode("123456", time.Now().Add(10*time.Minute).UTC())
	require.NoError(t, repo.SaveSecurityRecord(ctx, rec))

	c, _ := testutil.NewEchoContext(e, http.MethodPost, "/api/access/verify", strings.NewReader(`{"code":"654321"}`))
	testutil.AuthenticateContext(c, &auth.User{ID: user.ID, Role: "member"})

	err = h.VerifyCode(c)
	assert.Equal(t, http.StatusForbidden, httpStatus(t, err))
}

func TestVerifyCodeHandlerExpired(t *testing.T) {
	h, repo := newTestHandlers(t)
	e := echo.New()
	user := testutil.NewTestUser(t, repo, "alice@example.com")
	ctx := context.Background()

	rec, err := repo.GetSecurityRecord(ctx, user.ID)
	require.NoError(t, err)
	rec.SetOneTimeCode("123456", time.Now().Add(-time.Minute).UTC())
	require.NoError(t, repo.SaveSecurityRecord(ctx, rec))

	c, _ := testutil.NewEchoContext(e, http.MethodPost, "/api/access/verify", strings.NewReader(`{"code":"123456"}`))
	testutil.AuthenticateContext(c, &auth.User{ID: user.ID, Role: "member"})

	err = h.VerifyCode(c)
	assert.Equal(t, http.StatusGone, httpStatus(t, err))
}

func TestVerifyCodeHandlerNoCode(t *testing.T) {
	h, repo := newTestHandlers(t)
	e := echo.New()
	user := testutil.NewTestUser(t, repo, "alice@example.com")

	c, _ := testutil.NewEchoContext(e, http.MethodPost, "/api/access/verify", strings.NewReader(`{"code":"123456"}`))
	testutil.AuthenticateContext(c, &auth.User{ID: user.ID, Role: "member"})

	err := h.VerifyCode(c)
	assert.Equal(t, http.StatusConflict, httpStatus(t, err))
}

func TestSetPermanentAccessCodeHandler(t *testing.T) {
	h, repo := newTestHandlers(t)
	e := echo.New()
	user := testutil.NewTestUser(t, repo, "alice@example.com")

	c, res := testutil.NewEchoContext(e, http.MethodPut, "/api/admin/users/"+user.ID+"/access-code", strings.NewReader(`{"code":"s3cret"}`))
	c.SetParamNames("id")
	c.SetParamValues(user.ID)
	testutil.AuthenticateContext(c, &auth.User{ID: "admin-1", Role: "admin"})

	require.NoError(t, h.SetPermanentAccessCode(c))
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestSetPermanentAccessCodeHandlerForbidden(t *testing.T) {
	h, repo := newTestHandlers(t)
	e := echo.New()
	user := testutil.NewTestUser(t, repo, "alice@example.com")

	c, _ := testutil.NewEchoContext(e, http.MethodPut, "/api/admin/users/"+user.ID+"/access-code", strings.NewReader(`{"code":"s3cret"}`))
	c.SetParamNames("id")
	c.SetParamValues(user.ID)
	testutil.AuthenticateContext(c, &auth.User{ID: user.ID, Role: "member"})

	err := h.SetPermanentAccessCode(c)
	assert.Equal(t, http.StatusForbidden, httpStatus(t, err))
}

func TestListAuditEntriesHandler(t *testing.T) {
	h, repo := newTestHandlers(t)
	e := echo.New()
	user := testutil.NewTestUser(t, repo, "alice@example.com")

	require.NoError(t, repo.AppendAuditEntry(context.Background(), &models.AuditEntry{
		UserID:      user.ID,
		Action:      models.AuditActionAccess,
		Method:      models.AuditMethodTemporaryCode,
		Success:     true,
		PerformedBy: user.ID,
	}))

	c, res := testutil.NewEchoContext(e, http.MethodGet, "/api/admin/users/"+user.ID+"/audit", nil)
	c.SetParamNames("id")
	c.SetParamValues(user.ID)
	testutil.AuthenticateContext(c, &auth.User{ID: "admin-1", Role: "admin"})

	require.NoError(t, h.ListAuditEntries(c))
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), models.AuditActionAccess)

	// Members may not read the audit trail.
	c2, _ := testutil.NewEchoContext(e, http.MethodGet, "/api/admin/users/"+user.ID+"/audit", nil)
	c2.SetParamNames("id")
	c2.SetParamValues(user.ID)
	testutil.AuthenticateContext(c2, &auth.User{ID: user.ID, Role: "member"})

	err := h.ListAuditEntries(c2)
	assert.Equal(t, http.StatusForbidden, httpStatus(t, err))
}

func TestHealthHandler(t *testing.T) {
	h, _ := newTestHandlers(t)
	e := echo.New()

	c, res := testutil.NewEchoContext(e, http.MethodGet, "/health", nil)

	require.NoError(t, h.Health(c))
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "ok")
}
