// File: trustpay/handlers/handlers_test.go
package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"trustpay/database"
	"trustpay/services/biometric"
	"trustpay/services/identity"
	"trustpay/services/linking"
	"trustpay/services/risk"
	"trustpay/services/trust"
	"trustpay/services/verification"
)

type testEnv struct {
	router *gin.Engine
	store  *trust.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	kv := database.NewMemoryStore()
	ident := identity.NewService(kv)
	store := trust.NewStore(kv, ident)
	links := linking.NewService(kv, ident, store)
	codes := verification.NewService(kv, nil)
	engine := risk.NewEngine(store, codes, biometric.AcceptAllMatcher{}, 10000)

	deviceHandler := NewDeviceHandler(store, ident)
	linkHandler := NewLinkHandler(links)
	riskHandler := NewRiskHandler(engine, codes, store)

	router := gin.New()
	router.POST("/api/devices/register", deviceHandler.RegisterDeviceHandler)
	router.GET("/api/devices", deviceHandler.ListDevicesHandler)
	router.POST("/api/link/issue", linkHandler.IssueLinkHandler)
	router.POST("/api/link/redeem", linkHandler.RedeemLinkHandler)
	router.POST("/api/risk/evaluate", riskHandler.EvaluateHandler)

	return &testEnv{router: router, store: store}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestRegisterDeviceHandler(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/devices/register", gin.H{
		"name":        "My Phone",
		"phoneNumber": "0712345678",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Device struct {
			DeviceID        string `json:"deviceId"`
			IsCurrentDevice bool   `json:"isCurrentDevice"`
		} `json:"device"`
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Device.DeviceID == "" || !resp.Device.IsCurrentDevice {
		t.Errorf("unexpected device in response: %+v", resp.Device)
	}
	if resp.Token == "" {
		t.Error("registration did not return a token")
	}
}

func TestRegisterDeviceHandler_BadPhone(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/devices/register", gin.H{
		"name":        "My Phone",
		"phoneNumber": "123",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestEvaluateHandler_UntrustedDevice(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/risk/evaluate", gin.H{
		"id":       "tx-1",
		"amount":   50.0,
		"currency": "USD",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Result struct {
			Verified  bool   `json:"verified"`
			RiskLevel string `json:"riskLevel"`
		} `json:"result"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Result.Verified || resp.Result.RiskLevel != "high" {
		t.Errorf("unexpected result for untrusted device: %+v", resp.Result)
	}
}

func TestEvaluateHandler_ApprovedAfterRegistration(t *testing.T) {
	env := newTestEnv(t)

	if w := env.do(t, http.MethodPost, "/api/devices/register", gin.H{"name": "Phone"}); w.Code != http.StatusOK {
		t.Fatalf("register status = %d", w.Code)
	}

	w := env.do(t, http.MethodPost, "/api/risk/evaluate", gin.H{
		"id":       "tx-2",
		"amount":   50.0,
		"currency": "USD",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Result struct {
			Verified       bool   `json:"verified"`
			Recommendation string `json:"recommendation"`
		} `json:"result"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Result.Verified || resp.Result.Recommendation != "allow" {
		t.Errorf("unexpected result for trusted device: %+v", resp.Result)
	}
}

func TestLinkHandlers_IssueAndRedeem(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/link/issue", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("issue status = %d, body = %s", w.Code, w.Body.String())
	}
	var issued struct {
		Payload string `json:"payload"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &issued); err != nil || issued.Payload == "" {
		t.Fatalf("bad issue response: %v, %s", err, w.Body.String())
	}

	w = env.do(t, http.MethodPost, "/api/link/redeem", gin.H{"payload": issued.Payload})
	if w.Code != http.StatusOK {
		t.Fatalf("redeem status = %d, body = %s", w.Code, w.Body.String())
	}

	// Replays are refused.
	w = env.do(t, http.MethodPost, "/api/link/redeem", gin.H{"payload": issued.Payload})
	if w.Code != http.StatusConflict {
		t.Fatalf("replay status = %d, want 409", w.Code)
	}
}

func TestRedeemLinkHandler_Malformed(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/link/redeem", gin.H{"payload": "not-a-payload"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}
