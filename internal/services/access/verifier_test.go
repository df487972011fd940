// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package access_test

import (
	"context"
	"testing"
	"time"

	"codeberg.org/oliverandrich/bankgate/internal/auth"
	"codeberg.org/oliverandrich/bankgate/internal/models"
	"codeberg.org/oliverandrich/bankgate/internal/repository"
	"codeberg.org/oliverandrich/bankgate/internal/services/access"
	"codeberg.org/oliverandrich/bankgate/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func issueAndFetchCode(t *testing.T, service *access.Service, repo *repository.Repository, userID string) string {
	t.Helper()
	ctx := context.Background()
	_, err := service.IssueCode(ctx, userID, models.ChannelEmail)
	require.NoError(t, err)
	rec, err := repo.GetSecurityRecord(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, rec.OneTimeCode)
	return *rec.OneTimeCode
}

func TestVerifyCodeGrantsAndClears(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	clock := &testClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	service, _, _ := newTestService(repo, clock)
	user := testutil.NewTestUser(t, repo, "alice@example.com")
	ctx := context.Background()

	code := issueAndFetchCode(t, service, repo, user.ID)

	require.NoError(t, service.VerifyCode(ctx, user.ID, code))

	rec, err := repo.GetSecurityRecord(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.NoActiveCode, rec.CodeState(clock.Now()))
	assert.Zero(t, rec.FailedAttemptCount)
	require.NotNil(t, rec.LastGrantedAt)

	// A one-time code grants exactly once.
	assert.ErrorIs(t, service.VerifyCode(ctx, user.ID, code), access.ErrNoCode)
}

func TestVerifyCodeTrimsSubmission(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	clock := &testClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	service, _, _ := newTestService(repo, clock)
	user := testutil.NewTestUser(t, repo, "alice@example.com")

	code := issueAndFetchCode(t, service, repo, user.ID)

	assert.NoError(t, service.VerifyCode(context.Background(), user.ID, "  "+code+"\n"))
}

func TestVerifyCodeTrimsStoredCode(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	clock := &testClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	service, _, _ := newTestService(repo, clock)
	user := testutil.NewTestUser(t, repo, "alice@example.com")
	ctx := context.Background()

	// A stored code that picked up whitespace still verifies cleanly.
	rec, err := repo.GetSecurityRecord(ctx, user.ID)
	require.NoError(t, err)
	rec.SetOneTimeCode(" 123456 ", clock.Now().Add(10*time.Minute))
	require.NoError(t, repo.SaveSecurityRecord(ctx, rec))

	assert.NoError(t, service.VerifyCode(ctx, user.ID, "123456"))
}

func TestVerifyCodeWrongCodeCountsFailure(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	clock := &testClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	service, _, _ := newTestService(repo, clock)
	user := testutil.NewTestUser(t, repo, "alice@example.com")
	ctx := context.Background()

	code := issueAndFetchCode(t, service, repo, user.ID)
	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	require.ErrorIs(t, service.VerifyCode(ctx, user.ID, wrong), access.ErrAccessDenied)
	require.ErrorIs(t, service.VerifyCode(ctx, user.ID, wrong), access.ErrAccessDenied)

	rec, err := repo.GetSecurityRecord(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.FailedAttemptCount)
	require.NotNil(t, rec.LastFailedAt)

	// Every denial leaves a failed access entry in the audit trail.
	entries, err := repo.ListAuditEntries(ctx, user.ID, 10)
	require.NoError(t, err)
	denials := 0
	for _, entry := range entries {
		if entry.Action == models.AuditActionAccess && !entry.Success {
			denials++
			assert.Equal(t, models.AuditMethodTemporaryCode, entry.Method)
			assert.Equal(t, user.ID, entry.PerformedBy)
		}
	}
	assert.Equal(t, 2, denials)

	// The code survives failed guesses and still grants.
	require.NoError(t, service.VerifyCode(ctx, user.ID, code))
	rec, err = repo.GetSecurityRecord(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, rec.FailedAttemptCount)
}

func TestVerifyCodeExpiryBoundary(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	clock := &testClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	service, _, _ := newTestService(repo, clock)
	user := testutil.NewTestUser(t, repo, "alice@example.com")
	ctx := context.Background()

	code := issueAndFetchCode(t, service, repo, user.ID)

	// One second before the deadline the code still works.
	clock.Advance(15*time.Minute - time.Second)
	rec, err := repo.GetSecurityRecord(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ActiveCode, rec.CodeState(clock.Now()))

	// At exactly the deadline it does not.
	clock.Advance(time.Second)
	require.ErrorIs(t, service.VerifyCode(ctx, user.ID, code), access.ErrCodeExpired)

	// Lazy expiry cleared the stored code and left a trace.
	rec, err = repo.GetSecurityRecord(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.NoActiveCode, rec.CodeState(clock.Now()))

	entries, err := repo.ListAuditEntries(ctx, user.ID, 10)
	require.NoError(t, err)
	actions := make([]string, 0, len(entries))
	for _, entry := range entries {
		actions = append(actions, entry.Action)
	}
	assert.Contains(t, actions, models.AuditActionCodeExpired)
}

func TestVerifyCodeNoCodeSet(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	clock := &testClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	service, _, _ := newTestService(repo, clock)
	user := testutil.NewTestUser(t, repo, "alice@example.com")

	err := service.VerifyCode(context.Background(), user.ID, "123456")

	assert.ErrorIs(t, err, access.ErrNoCode)
}

func TestVerifyCodeUnknownUser(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	clock := &testClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	service, _, _ := newTestService(repo, clock)

	err := service.VerifyCode(context.Background(), "no-such-user", "123456")

	assert.ErrorIs(t, err, access.ErrUserNotFound)
}

func adminContext() context.Context {
	return auth.SetUser(context.Background(), &auth.User{ID: "admin-1", Role: "admin"})
}

func TestPermanentAccessCode(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	clock := &testClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	service, _, _ := newTestService(repo, clock)
	user := testutil.NewTestUser(t, repo, "alice@example.com")
	ctx := context.Background()

	require.NoError(t, service.SetPermanentAccessCode(adminContext(), user.ID, "s3cret"))

	// The permanent code grants without a one-time code being issued.
	require.NoError(t, service.VerifyCode(ctx, user.ID, "s3cret"))

	// Unlike one-time codes, the submission is not trimmed.
	require.ErrorIs(t, service.VerifyCode(ctx, user.ID, " s3cret "), access.ErrAccessDenied)

	// The hash never leaves the record in clear text.
	rec, err := repo.GetSecurityRecord(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, rec.PermanentAccessHash)
	assert.NotContains(t, *rec.PermanentAccessHash, "s3cret")
	assert.Len(t, *rec.PermanentAccessHash, 64)
}

func TestActiveCodeShadowsPermanentCode(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	clock := &testClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	service, _, _ := newTestService(repo, clock)
	user := testutil.NewTestUser(t, repo, "alice@example.com")
	ctx := context.Background()

	require.NoError(t, service.SetPermanentAccessCode(adminContext(), user.ID, "s3cret"))
	code := issueAndFetchCode(t, service, repo, user.ID)

	// While a one-time code is live, only that code unlocks access; the
	// permanent code counts as a failed attempt like any other mismatch.
	require.ErrorIs(t, service.VerifyCode(ctx, user.ID, "s3cret"), access.ErrAccessDenied)

	rec, err := repo.GetSecurityRecord(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.FailedAttemptCount)
	require.NotNil(t, rec.LastFailedAt)

	// The one-time code itself still works, and the permanent code
	// resumes once it is gone.
	require.NoError(t, service.VerifyCode(ctx, user.ID, code))
	require.NoError(t, service.VerifyCode(ctx, user.ID, "s3cret"))
}

func TestPermanentCodeMatchesAfterExpiry(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	clock := &testClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	service, _, _ := newTestService(repo, clock)
	user := testutil.NewTestUser(t, repo, "alice@example.com")
	ctx := context.Background()

	require.NoError(t, service.SetPermanentAccessCode(adminContext(), user.ID, "s3cret"))
	issueAndFetchCode(t, service, repo, user.ID)
	clock.Advance(16 * time.Minute)

	// The first submission only clears the expired code; the retry
	// against the clean record matches the permanent hash.
	require.ErrorIs(t, service.VerifyCode(ctx, user.ID, "s3cret"), access.ErrCodeExpired)
	require.NoError(t, service.VerifyCode(ctx, user.ID, "s3cret"))
}

func TestVerifyCodeEmptySubmission(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	clock := &testClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	service, _, _ := newTestService(repo, clock)
	user := testutil.NewTestUser(t, repo, "alice@example.com")

	assert.ErrorIs(t, service.VerifyCode(context.Background(), user.ID, "   "), access.ErrEmptyCode)
}

func TestSetPermanentAccessCodeRequiresAdmin(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	clock := &testClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	service, _, _ := newTestService(repo, clock)
	user := testutil.NewTestUser(t, repo, "alice@example.com")

	memberCtx := auth.SetUser(context.Background(), &auth.User{ID: user.ID, Role: "member"})
	assert.ErrorIs(t, service.SetPermanentAccessCode(memberCtx, user.ID, "s3cret"), access.ErrForbidden)

	// Anonymous contexts are rejected as well.
	assert.ErrorIs(t, service.SetPermanentAccessCode(context.Background(), user.ID, "s3cret"), access.ErrForbidden)
}

func TestSetPermanentAccessCodeValidation(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	clock := &testClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	service, _, _ := newTestService(repo, clock)
	user := testutil.NewTestUser(t, repo, "alice@example.com")

	assert.ErrorIs(t, service.SetPermanentAccessCode(adminContext(), user.ID, "123"), access.ErrWeakCode)
	assert.ErrorIs(t, service.SetPermanentAccessCode(adminContext(), "no-such-user", "s3cret"), access.ErrUserNotFound)
}

func TestVerifyCodeAuditTrail(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	clock := &testClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	service, _, _ := newTestService(repo, clock)
	user := testutil.NewTestUser(t, repo, "alice@example.com")
	ctx := context.Background()

	code := issueAndFetchCode(t, service, repo, user.ID)
	require.NoError(t, service.VerifyCode(ctx, user.ID, code))

	entries, err := repo.ListAuditEntries(ctx, user.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byAction := map[string]models.AuditEntry{}
	for _, entry := range entries {
		byAction[entry.Action] = entry
	}

	requested := byAction[models.AuditActionCodeRequested]
	assert.True(t, requested.Success)
	assert.Equal(t, models.AuditMethodTemporaryCode, requested.Method)

	granted := byAction[models.AuditActionAccess]
	assert.True(t, granted.Success)
	assert.Equal(t, models.AuditMethodTemporaryCode, granted.Method)
	assert.Equal(t, user.ID, granted.PerformedBy)
}
