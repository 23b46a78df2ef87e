package service

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/mhmpets/mhm_server/internal/model"
	"github.com/mhmpets/mhm_server/internal/model/dto"
	"github.com/mhmpets/mhm_server/internal/repository"
	"github.com/mhmpets/mhm_server/internal/testutil"
)

func hashCode(t *testing.T, code string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestGenerateCode_SixDigits(t *testing.T) {
	pattern := regexp.MustCompile(`^[0-9]{6}$`)
	for i := 0; i < 200; i++ {
		code, err := generateCode()
		require.NoError(t, err)
		assert.Regexp(t, pattern, code)
	}
}

func TestVerificationService_IssueCode(t *testing.T) {
	svc, mailer, db := setupVerificationService(t)

	resp, err := svc.IssueCode(context.Background(), "a@x.com", "MHM-AAAA")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-01T12:10:00.000Z", resp.ExpiresAt)

	sent := mailer.last()
	assert.Equal(t, "code", sent.kind)
	assert.Equal(t, "a@x.com", sent.to)
	assert.Len(t, sent.value, 6)

	var row model.VerificationCode
	require.NoError(t, db.First(&row).Error)
	assert.NotEqual(t, sent.value, row.CodeHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(row.CodeHash), []byte(sent.value)))
	assert.Equal(t, "MHM-AAAA", row.CloudID)
}

func TestVerificationService_IssueCode_ReplacesPrevious(t *testing.T) {
	svc, mailer, db := setupVerificationService(t)
	ctx := context.Background()

	_, err := svc.IssueCode(ctx, "a@x.com", "")
	require.NoError(t, err)
	firstCode := mailer.last().value

	_, err = svc.IssueCode(ctx, "a@x.com", "")
	require.NoError(t, err)
	secondCode := mailer.last().value

	n, err := repository.NewVerificationRepository(db).CountByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	if firstCode != secondCode {
		_, err = svc.VerifyCode(ctx, "a@x.com", firstCode, "")
		assert.ErrorIs(t, err, ErrInvalidCode)
	}
}

func TestVerificationService_IssueCode_SendFailureKeepsCode(t *testing.T) {
	svc, mailer, db := setupVerificationService(t)
	mailer.err = errors.New("smtp down")

	resp, err := svc.IssueCode(context.Background(), "a@x.com", "")
	assert.ErrorIs(t, err, ErrNotification)
	require.NotNil(t, resp)

	n, err := repository.NewVerificationRepository(db).CountByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestVerificationService_IssueCode_RequiresEmail(t *testing.T) {
	svc, mailer, _ := setupVerificationService(t)

	_, err := svc.IssueCode(context.Background(), "  ", "")
	assert.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, mailer.sent)
}

func TestVerificationService_VerifyCode_SingleUse(t *testing.T) {
	svc, mailer, _ := setupVerificationService(t)
	ctx := context.Background()

	_, err := svc.IssueCode(ctx, "a@x.com", "MHM-AAAA")
	require.NoError(t, err)
	code := mailer.last().value

	resp, err := svc.VerifyCode(ctx, "a@x.com", " "+code+" ", "")
	require.NoError(t, err)
	assert.True(t, resp.Verified)
	require.NotNil(t, resp.CloudID)
	assert.Equal(t, "MHM-AAAA", *resp.CloudID)
	assert.False(t, resp.Linked)

	_, err = svc.VerifyCode(ctx, "a@x.com", code, "")
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestVerificationService_VerifyCode_Expired(t *testing.T) {
	svc, _, db := setupVerificationService(t)
	ctx := context.Background()
	testutil.TestVerificationCode(t, db, "a@x.com", hashCode(t, "123456"), fixedNow.Add(-time.Minute))

	_, err := svc.VerifyCode(ctx, "a@x.com", "123456", "")
	assert.ErrorIs(t, err, ErrExpiredCode)

	n, err := repository.NewVerificationRepository(db).CountByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestVerificationService_VerifyCode_WrongCode(t *testing.T) {
	svc, _, db := setupVerificationService(t)
	testutil.TestVerificationCode(t, db, "a@x.com", hashCode(t, "123456"), fixedNow.Add(time.Minute))

	_, err := svc.VerifyCode(context.Background(), "a@x.com", "654321", "")
	assert.ErrorIs(t, err, ErrInvalidCode)

	_, err = svc.VerifyCode(context.Background(), "b@x.com", "123456", "")
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestVerificationService_VerifyCode_MissingFields(t *testing.T) {
	svc, _, _ := setupVerificationService(t)

	_, err := svc.VerifyCode(context.Background(), "", "123456", "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.VerifyCode(context.Background(), "a@x.com", "", "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestVerificationService_VerifyCode_LinksCloudID(t *testing.T) {
	svc, _, db := setupVerificationService(t)
	ctx := context.Background()
	testutil.TestVerificationCode(t, db, "a@x.com", hashCode(t, "000123"), fixedNow.Add(time.Minute))

	resp, err := svc.VerifyCode(ctx, "a@x.com", "000123", "MHM-LINK")
	require.NoError(t, err)

	assert.True(t, resp.Linked)
	require.NotNil(t, resp.CloudID)
	assert.Equal(t, "MHM-LINK", *resp.CloudID)

	account, err := svc.GetAccountByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "MHM-LINK", account.CloudID)
}

func TestVerificationService_VerifyCode_LinkConflictStillVerifies(t *testing.T) {
	svc, _, db := setupVerificationService(t)
	testutil.TestAccount(t, db, "a@x.com", "MHM-0001")
	testutil.TestVerificationCode(t, db, "a@x.com", hashCode(t, "111111"), fixedNow.Add(time.Minute))

	resp, err := svc.VerifyCode(context.Background(), "a@x.com", "111111", "MHM-0002")
	require.NoError(t, err)

	assert.True(t, resp.Verified)
	assert.False(t, resp.Linked)
}

func TestVerificationService_VerifyCode_NoCloudID(t *testing.T) {
	svc, _, db := setupVerificationService(t)
	testutil.TestVerificationCode(t, db, "a@x.com", hashCode(t, "222222"), fixedNow.Add(time.Minute))

	resp, err := svc.VerifyCode(context.Background(), "a@x.com", "222222", "")
	require.NoError(t, err)
	assert.Nil(t, resp.CloudID)
}

func TestVerificationService_LinkEmail(t *testing.T) {
	svc, _, db := setupVerificationService(t)
	ctx := context.Background()

	res, err := svc.LinkEmail(ctx, "a@x.com", "MHM-1")
	require.NoError(t, err)
	assert.Equal(t, dto.LinkCreated, res.Outcome)

	res, err = svc.LinkEmail(ctx, "a@x.com", "MHM-1")
	require.NoError(t, err)
	assert.Equal(t, dto.LinkRefreshed, res.Outcome)

	res, err = svc.LinkEmail(ctx, "b@x.com", "MHM-1")
	require.NoError(t, err)
	assert.Equal(t, dto.LinkRepointed, res.Outcome)
	assert.Equal(t, "MHM-1", res.CloudID)

	var accounts []model.UserAccount
	require.NoError(t, db.Find(&accounts).Error)
	require.Len(t, accounts, 1)
	assert.Equal(t, "b@x.com", accounts[0].Email)
	assert.True(t, accounts[0].LinkedAt.Equal(fixedNow))
}

func TestVerificationService_LinkEmail_AlreadyLinked(t *testing.T) {
	svc, _, _ := setupVerificationService(t)
	ctx := context.Background()

	_, err := svc.LinkEmail(ctx, "a@x.com", "MHM-1")
	require.NoError(t, err)

	_, err = svc.LinkEmail(ctx, "a@x.com", "MHM-2")
	assert.ErrorIs(t, err, ErrAlreadyLinked)
}

func TestVerificationService_LinkEmail_ConflictBeatsRepoint(t *testing.T) {
	svc, _, db := setupVerificationService(t)
	// cloudId 行在前，邮箱冲突行在后
	testutil.TestAccount(t, db, "b@x.com", "MHM-1")
	testutil.TestAccount(t, db, "a@x.com", "MHM-2")

	_, err := svc.LinkEmail(context.Background(), "a@x.com", "MHM-1")
	assert.ErrorIs(t, err, ErrAlreadyLinked)

	account, err := svc.GetAccountByCloudID(context.Background(), "MHM-1")
	require.NoError(t, err)
	assert.Equal(t, "b@x.com", account.Email)
}

func TestVerificationService_LinkEmail_RequiresBoth(t *testing.T) {
	svc, _, _ := setupVerificationService(t)

	_, err := svc.LinkEmail(context.Background(), "", "MHM-1")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.LinkEmail(context.Background(), "a@x.com", "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestVerificationService_RecoverAccount_FromLinks(t *testing.T) {
	svc, mailer, db := setupVerificationService(t)
	testutil.TestAccount(t, db, "a@x.com", "MHM-LNK1")
	testutil.TestSubscriber(t, db, testutil.WithSubscriberEmail("a@x.com"), testutil.WithCloudID("MHM-SUB1"))

	require.NoError(t, svc.RecoverAccount(context.Background(), "a@x.com"))

	sent := mailer.last()
	assert.Equal(t, "recovery", sent.kind)
	assert.Equal(t, "MHM-LNK1", sent.value)
}

func TestVerificationService_RecoverAccount_FallsBackToSubscribers(t *testing.T) {
	svc, mailer, db := setupVerificationService(t)
	testutil.TestSubscriber(t, db, testutil.WithSubscriberEmail("a@x.com"), testutil.WithCloudID("MHM-SUB1"))

	require.NoError(t, svc.RecoverAccount(context.Background(), "a@x.com"))
	assert.Equal(t, "MHM-SUB1", mailer.last().value)
}

func TestVerificationService_RecoverAccount_NotFound(t *testing.T) {
	svc, mailer, _ := setupVerificationService(t)

	err := svc.RecoverAccount(context.Background(), "ghost@x.com")
	assert.ErrorIs(t, err, ErrAccountNotFound)
	assert.Empty(t, mailer.sent)
}

func TestVerificationService_RecoverAccount_SendFailure(t *testing.T) {
	svc, mailer, db := setupVerificationService(t)
	testutil.TestAccount(t, db, "a@x.com", "MHM-1")
	mailer.err = errors.New("smtp down")

	err := svc.RecoverAccount(context.Background(), "a@x.com")
	assert.ErrorIs(t, err, ErrNotification)
}

func TestVerificationService_GetAccount(t *testing.T) {
	svc, _, db := setupVerificationService(t)
	ctx := context.Background()
	testutil.TestAccount(t, db, "a@x.com", "MHM-1")

	byEmail, err := svc.GetAccountByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "MHM-1", byEmail.CloudID)
	assert.NotEmpty(t, byEmail.LinkedAt)

	byCloud, err := svc.GetAccountByCloudID(ctx, "MHM-1")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", byCloud.Email)

	_, err = svc.GetAccountByEmail(ctx, "ghost@x.com")
	assert.ErrorIs(t, err, ErrAccountNotFound)

	_, err = svc.GetAccountByCloudID(ctx, "MHM-NONE")
	assert.ErrorIs(t, err, ErrAccountNotFound)

	_, err = svc.GetAccountByCloudID(ctx, "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestVerificationService_SweepExpired(t *testing.T) {
	svc, _, db := setupVerificationService(t)
	testutil.TestVerificationCode(t, db, "old@x.com", hashCode(t, "111111"), fixedNow.Add(-time.Hour))
	testutil.TestVerificationCode(t, db, "new@x.com", hashCode(t, "222222"), fixedNow.Add(time.Hour))

	n, err := svc.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var remaining []model.VerificationCode
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, "new@x.com", remaining[0].Email)
}

func TestVerificationService_VerifyCode_ConsumedConcurrently(t *testing.T) {
	db, mock := testutil.SetupMockDB(t)
	svc, _ := newVerificationService(db)

	mock.ExpectQuery("SELECT \\* FROM `verification_codes`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "code_hash", "expires_at", "cloud_id"}).
			AddRow(7, "a@x.com", hashCode(t, "123456"), fixedNow.Add(5*time.Minute), ""))
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `verification_codes`").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	resp, err := svc.VerifyCode(context.Background(), "a@x.com", "123456", "")
	assert.ErrorIs(t, err, ErrInvalidCode)
	assert.Nil(t, resp)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// emailsAreCaseSensitive 大小写不同的邮箱是两个独立的绑定
func emailsAreCaseSensitive(t *testing.T, svc *VerificationService, db *gorm.DB) {
	t.Helper()
	ctx := context.Background()
	testutil.TestAccount(t, db, "A@x.com", "MHM-1")

	res, err := svc.LinkEmail(ctx, "a@x.com", "MHM-2")
	require.NoError(t, err)
	assert.Equal(t, dto.LinkCreated, res.Outcome)

	lower, err := svc.GetAccountByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "MHM-2", lower.CloudID)

	upper, err := svc.GetAccountByEmail(ctx, "A@x.com")
	require.NoError(t, err)
	assert.Equal(t, "MHM-1", upper.CloudID)

	_, err = svc.GetAccountByCloudID(ctx, "mhm-1")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestVerificationService_LinkEmail_CaseVariant(t *testing.T) {
	svc, _, db := setupVerificationService(t)
	emailsAreCaseSensitive(t, svc, db)
}

func TestVerificationService_LinkEmail_CaseVariant_MySQL(t *testing.T) {
	db := testutil.SetupTestDBWithMySQL(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	svc, _ := newVerificationService(db)
	emailsAreCaseSensitive(t, svc, db)
}
