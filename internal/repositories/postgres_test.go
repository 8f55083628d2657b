package repositories

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wedhub/internal/models"
	"wedhub/internal/utils"
)

// testDB connects to DATABASE_URL and applies the schema. Without it the
// Postgres tests are skipped.
func testDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := Open(ctx, dsn, 10, 5)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, Migrate(ctx, db))
	return db
}

func hashOf(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

func newCode(email, code string, now time.Time) *models.VerificationCode {
	return &models.VerificationCode{
		ID:        uuid.New(),
		Email:     email,
		CodeHash:  hashOf(code),
		Purpose:   models.PurposeEmailVerification,
		UserID:    uuid.New(),
		ExpiresAt: now.Add(10 * time.Minute),
		CreatedAt: now,
	}
}

func attemptsOf(t *testing.T, db *sql.DB, id uuid.UUID) (attempts int, verified bool) {
	t.Helper()
	err := db.QueryRow(`SELECT attempts, verified FROM verification_codes WHERE id = $1`, id).Scan(&attempts, &verified)
	require.NoError(t, err)
	return attempts, verified
}

func TestPostgresIssueCode(t *testing.T) {
	db := testDB(t)
	repo := NewVerificationCodeRepository(db)
	ctx := context.Background()
	email := uuid.NewString() + "@example.com"
	now := time.Now().UTC().Truncate(time.Microsecond)
	since := now.Add(-time.Hour)

	first := newCode(email, "111111", now)
	require.NoError(t, repo.Issue(ctx, first, since, 3))
	second := newCode(email, "222222", now.Add(time.Second))
	require.NoError(t, repo.Issue(ctx, second, since, 3))

	// the older code is invalidated by the new issue
	got, err := repo.FindActive(ctx, email, models.PurposeEmailVerification, hashOf("111111"), now)
	require.NoError(t, err)
	assert.Nil(t, got)
	got, err = repo.FindActive(ctx, email, models.PurposeEmailVerification, hashOf("222222"), now)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, second.ID, got.ID)

	// other purposes have their own budget
	reset := newCode(email, "333333", now)
	reset.Purpose = models.PurposePasswordReset
	require.NoError(t, repo.Issue(ctx, reset, since, 1))
	reset.ID = uuid.New()
	assert.ErrorIs(t, repo.Issue(ctx, reset, since, 1), utils.ErrRateLimited)

	require.NoError(t, repo.Issue(ctx, newCode(email, "444444", now), since, 3))
	assert.ErrorIs(t, repo.Issue(ctx, newCode(email, "555555", now), since, 3), utils.ErrRateLimited)
}

func TestPostgresIssueCodeConcurrent(t *testing.T) {
	db := testDB(t)
	repo := NewVerificationCodeRepository(db)
	email := uuid.NewString() + "@example.com"
	now := time.Now().UTC().Truncate(time.Microsecond)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok      int
		limited int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.Issue(context.Background(), newCode(email, "123456", now), now.Add(-time.Hour), 3)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case assert.ErrorIs(t, err, utils.ErrRateLimited):
				limited++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 3, ok)
	assert.Equal(t, 5, limited)

	var active int
	require.NoError(t, db.QueryRow(
		`SELECT COUNT(*) FROM verification_codes WHERE email = $1 AND verified = FALSE`, email,
	).Scan(&active))
	assert.Equal(t, 1, active)
}

func TestPostgresRecordFailedAttempt(t *testing.T) {
	db := testDB(t)
	repo := NewVerificationCodeRepository(db)
	ctx := context.Background()
	email := uuid.NewString() + "@example.com"
	now := time.Now().UTC().Truncate(time.Microsecond)

	old := newCode(email, "111111", now.Add(-time.Minute))
	require.NoError(t, repo.Issue(ctx, old, now.Add(-time.Hour), 3))
	current := newCode(email, "222222", now)
	require.NoError(t, repo.Issue(ctx, current, now.Add(-time.Hour), 3))

	// an unrelated hash counts against the newest active code only
	require.NoError(t, repo.RecordFailedAttempt(ctx, email, models.PurposeEmailVerification, hashOf("999999"), now))
	attempts, _ := attemptsOf(t, db, current.ID)
	assert.Equal(t, 1, attempts)
	attempts, verified := attemptsOf(t, db, old.ID)
	assert.Equal(t, 0, attempts)
	assert.True(t, verified)

	// the superseded code's hash bumps both rows
	require.NoError(t, repo.RecordFailedAttempt(ctx, email, models.PurposeEmailVerification, hashOf("111111"), now))
	attempts, _ = attemptsOf(t, db, current.ID)
	assert.Equal(t, 2, attempts)
	attempts, _ = attemptsOf(t, db, old.ID)
	assert.Equal(t, 1, attempts)

	require.NoError(t, repo.MarkVerified(ctx, current.ID))
	_, verified = attemptsOf(t, db, current.ID)
	assert.True(t, verified)
	assert.ErrorIs(t, repo.MarkVerified(ctx, uuid.New()), utils.ErrNotFound)
}

func TestPostgresConsumeLink(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	owner, vendor := uuid.New(), uuid.New()
	_, err := db.Exec(`INSERT INTO users (id, email, password_hash, user_type) VALUES ($1, $2, 'x', 'vendor')`,
		owner, owner.String()+"@example.com")
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO vendors (id, owner_id, business_name) VALUES ($1, $2, 'Bloom')`, vendor, owner)
	require.NoError(t, err)

	links := NewTelegramLinkRepository(db)
	code := hashOf(vendor.String())[:32]
	require.NoError(t, links.CreateLink(ctx, &models.TelegramLink{
		ID: uuid.New(), VendorID: vendor, Code: code, ExpiresAt: now.Add(time.Minute), CreatedAt: now,
	}))

	got, err := links.ConsumeLink(ctx, code, 4242, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Nil(t, got, "expired")

	got, err = links.ConsumeLink(ctx, code, 4242, now)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, vendor, got.VendorID)

	v, err := NewInquiryRepository(db).GetVendor(ctx, vendor)
	require.NoError(t, err)
	assert.Equal(t, int64(4242), v.TelegramChat)

	got, err = links.ConsumeLink(ctx, code, 1, now)
	require.NoError(t, err)
	assert.Nil(t, got, "single use")
}
