package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhmpets/mhm_server/internal/model"
	"github.com/mhmpets/mhm_server/internal/pkg/jwt"
	"github.com/mhmpets/mhm_server/internal/testutil"
)

func actionRouter(env *testEnv) *gin.Engine {
	router := gin.New()
	router.GET("/exec", env.actions.Exec)
	router.POST("/exec", env.actions.Exec)
	return router
}

func TestActionHandler_CheckSubscriptionViaGET(t *testing.T) {
	env := setupHandlers(t, "")
	testutil.TestSubscriber(t, env.db, testutil.WithSubscriberEmail("a@x.com"), testutil.WithPlan(model.PlanPremium))

	w := performRequest(actionRouter(env), "GET", "/exec?action=checkSubscription&email=a@x.com", nil)
	body := parseEnvelope(t, w)

	assert.Equal(t, "success", body["status"])
	sub := body["subscription"].(map[string]interface{})
	assert.Equal(t, "premium", sub["plan"])
	assert.Equal(t, float64(10), sub["maxPets"])
}

func TestActionHandler_UnknownAction(t *testing.T) {
	env := setupHandlers(t, "")

	w := performRequest(actionRouter(env), "GET", "/exec?action=read", nil)
	body := parseEnvelope(t, w)

	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "Action not found", body["message"])
}

func TestActionHandler_EmptyPostBody(t *testing.T) {
	env := setupHandlers(t, "")

	w := performRequest(actionRouter(env), "POST", "/exec", nil)
	body := parseEnvelope(t, w)

	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "No data received", body["message"])
}

func TestActionHandler_VerifyCodeWithNumericCode(t *testing.T) {
	env := setupHandlers(t, "")
	router := actionRouter(env)

	w := performRequest(router, "POST", "/exec", map[string]string{"action": "sendVerificationCode", "email": "a@x.com"})
	require.Equal(t, "success", parseEnvelope(t, w)["status"])

	code := env.mailer.codeFor("a@x.com")
	if code[0] == '0' {
		t.Skip("numeric transport cannot carry a leading zero")
	}

	w = performRequest(router, "POST", "/exec", map[string]interface{}{
		"action": "verifyCode",
		"email":  "a@x.com",
		"code":   json.Number(code),
	})
	body := parseEnvelope(t, w)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, true, body["verified"])
}

func TestActionHandler_PayPalWebhook(t *testing.T) {
	env := setupHandlers(t, "")

	w := performRequest(actionRouter(env), "POST", "/exec", map[string]interface{}{
		"action":     "paypalWebhook",
		"event_type": "BILLING.SUBSCRIPTION.CREATED",
		"resource": map[string]interface{}{
			"id":         "I-1",
			"plan_id":    "P-PRO-PLAN-ID",
			"subscriber": map[string]string{"email_address": "a@x.com"},
		},
	})
	body := parseEnvelope(t, w)
	assert.Equal(t, "success", body["status"])

	var sub model.Subscriber
	require.NoError(t, env.db.First(&sub).Error)
	assert.Equal(t, "pro", sub.Plan)
	assert.Equal(t, "I-1", sub.TxnID)
}

func TestActionHandler_FormPostWithoutActionIsIPN(t *testing.T) {
	env := setupHandlers(t, "")

	w := performForm(actionRouter(env), "/exec", url.Values{
		"payment_status": {"Completed"},
		"txn_type":       {"subscr_payment"},
		"payer_email":    {"a@x.com"},
		"mc_gross":       {"10.00"},
		"txn_id":         {"TX-1"},
	})
	body := parseEnvelope(t, w)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "basic", body["plan"])

	var events []model.EventLog
	require.NoError(t, env.db.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, "IPN", events[0].EventType)
}

func TestActionHandler_LinkAndLookup(t *testing.T) {
	env := setupHandlers(t, "")
	router := actionRouter(env)

	w := performRequest(router, "POST", "/exec", map[string]string{"action": "linkEmail", "email": "a@x.com", "cloudId": "MHM-1"})
	assert.Equal(t, "success", parseEnvelope(t, w)["status"])

	w = performRequest(router, "GET", "/exec?action=getAccountByCloudId&cloudId=MHM-1", nil)
	body := parseEnvelope(t, w)
	assert.Equal(t, "a@x.com", body["account"].(map[string]interface{})["email"])

	w = performRequest(router, "GET", "/exec?action=getAccountByEmail&email=ghost@x.com", nil)
	assert.Equal(t, "not_found", parseEnvelope(t, w)["status"])
}

func TestActionHandler_AdminActionsRequireToken(t *testing.T) {
	env := setupHandlers(t, testAdminSecret)
	router := actionRouter(env)

	w := performRequest(router, "GET", "/exec?action=getSubscribers", nil)
	body := parseEnvelope(t, w)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "Unauthorized", body["message"])

	token, err := jwt.GenerateToken("ops", testAdminSecret, 1)
	require.NoError(t, err)

	w = performRequest(router, "GET", "/exec?action=registerSubscription&email=a@x.com&plan=pro&token="+token, nil)
	body = parseEnvelope(t, w)
	assert.Equal(t, "success", body["status"])

	w = performRequest(router, "POST", "/exec?token="+token, map[string]interface{}{
		"action":      "adminSync",
		"subscribers": []map[string]string{{"email": "b@x.com"}},
	})
	body = parseEnvelope(t, w)
	assert.Equal(t, "Synced 1 subscribers", body["message"])

	w = performRequest(router, "GET", "/exec?action=getSubscribers&token="+token, nil)
	body = parseEnvelope(t, w)
	subs := body["subscribers"].([]interface{})
	require.Len(t, subs, 1)
	assert.Equal(t, "b@x.com", subs[0].(map[string]interface{})["email"])
}

func postRaw(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestActionHandler_PayPalWebhookIsLoggedBeforeParsing(t *testing.T) {
	tests := []struct {
		name string
		path string
		body string
	}{
		{"truncated json", "/exec?action=paypalWebhook", `{"event_type":"BILLING.SUBSCRIPTION.ACTIVATED",`},
		{"field clashing with action request", "/exec?action=paypalWebhook", `{"event_type":"X","code":{"a":1}}`},
		{"empty body", "/exec?action=paypalWebhook", ``},
		{"action in body with clashing field", "/exec", `{"action":"paypalWebhook","event_type":"X","code":{"a":1}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupHandlers(t, "")

			w := postRaw(actionRouter(env), tt.path, tt.body)
			parseEnvelope(t, w)

			var events int64
			require.NoError(t, env.db.Model(&model.EventLog{}).Count(&events).Error)
			assert.Equal(t, int64(1), events)
		})
	}
}

func TestActionHandler_PayPalWebhookQueryActionWithClashingField(t *testing.T) {
	env := setupHandlers(t, "")

	w := postRaw(actionRouter(env), "/exec?action=paypalWebhook", `{"event_type":"CHECKOUT.ORDER.APPROVED","code":{"a":1}}`)
	body := parseEnvelope(t, w)

	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "ignored", body["action"])
}
