package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/mhmpets/mhm_server/config"
	"github.com/mhmpets/mhm_server/internal/repository"
	"github.com/mhmpets/mhm_server/internal/testutil"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testCatalog() *PlanCatalog {
	return NewPlanCatalog(
		config.SubscriptionConfig{
			Plans: map[string]config.PlanConfig{
				"free":    {Name: "Free", MaxPets: 1, Price: 0},
				"basic":   {Name: "Basic", MaxPets: 3, Price: 24},
				"pro":     {Name: "Pro", MaxPets: 5, Price: 36},
				"premium": {Name: "Premium", MaxPets: 10, Price: 48},
			},
			DefaultPaidPlan: "basic",
		},
		config.PayPalConfig{
			PlanIDs: map[string]string{
				"P-BASIC-PLAN-ID":   "basic",
				"P-PRO-PLAN-ID":     "pro",
				"P-PREMIUM-PLAN-ID": "premium",
			},
		},
	)
}

func setupEntitlementService(t *testing.T) (*EntitlementService, *gorm.DB) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	svc := NewEntitlementService(repository.NewSubscriberRepository(db), testCatalog())
	svc.now = func() time.Time { return fixedNow }
	return svc, db
}

type sentMail struct {
	kind, to, value string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) SendVerificationCode(_ context.Context, to, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{kind: "code", to: to, value: code})
	return m.err
}

func (m *fakeMailer) SendAccountRecovery(_ context.Context, to, cloudID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{kind: "recovery", to: to, value: cloudID})
	return m.err
}

func (m *fakeMailer) last() sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentMail{}
	}
	return m.sent[len(m.sent)-1]
}

func setupVerificationService(t *testing.T) (*VerificationService, *fakeMailer, *gorm.DB) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	svc, mailer := newVerificationService(db)
	return svc, mailer, db
}

func newVerificationService(db *gorm.DB) (*VerificationService, *fakeMailer) {
	mailer := &fakeMailer{}
	svc := NewVerificationService(
		repository.NewVerificationRepository(db),
		repository.NewAccountRepository(db),
		repository.NewSubscriberRepository(db),
		mailer,
		10*time.Minute,
		4,
	)
	svc.now = func() time.Time { return fixedNow }
	return svc, mailer
}
