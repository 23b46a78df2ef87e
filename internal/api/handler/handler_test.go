package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/mhmpets/mhm_server/config"
	"github.com/mhmpets/mhm_server/internal/repository"
	"github.com/mhmpets/mhm_server/internal/service"
	"github.com/mhmpets/mhm_server/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testAdminSecret = "test-admin-secret"

type recordingMailer struct {
	mu    sync.Mutex
	codes map[string]string
	sent  []string
}

func (m *recordingMailer) SendVerificationCode(_ context.Context, to, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.codes == nil {
		m.codes = make(map[string]string)
	}
	m.codes[to] = code
	m.sent = append(m.sent, to)
	return nil
}

func (m *recordingMailer) SendAccountRecovery(_ context.Context, to, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to)
	return nil
}

func (m *recordingMailer) codeFor(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[email]
}

type testEnv struct {
	db      *gorm.DB
	mailer  *recordingMailer
	subs    *SubscriptionHandler
	hooks   *WebhookHandler
	verify  *VerificationHandler
	actions *ActionHandler
}

func setupHandlers(t *testing.T, adminSecret string) *testEnv {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	catalog := service.NewPlanCatalog(
		config.SubscriptionConfig{
			Plans: map[string]config.PlanConfig{
				"free":    {MaxPets: 1, Price: 0},
				"basic":   {MaxPets: 3, Price: 24},
				"pro":     {MaxPets: 5, Price: 36},
				"premium": {MaxPets: 10, Price: 48},
			},
			DefaultPaidPlan: "basic",
		},
		config.PayPalConfig{PlanIDs: map[string]string{"P-PRO-PLAN-ID": "pro"}},
	)

	subscriberRepo := repository.NewSubscriberRepository(db)
	entitlements := service.NewEntitlementService(subscriberRepo, catalog)
	webhooks := service.NewWebhookService(entitlements, repository.NewEventLogRepository(db), catalog, nil)

	mailer := &recordingMailer{}
	verification := service.NewVerificationService(
		repository.NewVerificationRepository(db),
		repository.NewAccountRepository(db),
		subscriberRepo,
		mailer,
		10*time.Minute,
		bcrypt.MinCost,
	)

	env := &testEnv{
		db:     db,
		mailer: mailer,
		subs:   NewSubscriptionHandler(entitlements),
		hooks:  NewWebhookHandler(webhooks),
		verify: NewVerificationHandler(verification),
	}
	env.actions = NewActionHandler(env.subs, env.hooks, env.verify, adminSecret)
	return env
}

func performRequest(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func performForm(r http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func parseEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}
