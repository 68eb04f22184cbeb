package handler

import (
	"fmt"
	"testing"

	"github.com/bitfantasy/packhouse/internal/assembly/entity"
	"github.com/bitfantasy/packhouse/internal/assembly/repository"
	"github.com/bitfantasy/packhouse/internal/assembly/service"
	"github.com/bitfantasy/packhouse/internal/assembly/testutil"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func setupTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	svc := service.NewServices(repos, db, nil)
	h := NewHandlers(svc, repos, nil)

	r := testutil.SetupRouter()
	assembly := testutil.AuthGroup(r, "/api/v1").Group("/assembly")
	{
		assembly.POST("/bundles", h.Bundle.Create)
		assembly.GET("/bundles", h.Bundle.List)
		assembly.DELETE("/bundles/:id", h.Bundle.Delete)
		assembly.POST("/qr-pool", h.Bundle.RegisterPoolCodes)
		assembly.GET("/qr-pool/stats", h.Bundle.PoolStats)
		assembly.POST("/sessions", h.Session.Start)
		assembly.POST("/bundles/:id/scan", h.Session.Scan)
		assembly.POST("/bundles/:id/confirm-phase", h.Session.ConfirmPhase)
		assembly.POST("/bundles/:id/complete", h.Session.Complete)
		assembly.GET("/bundles/:id/session", h.Session.GetSession)
	}
	return r, db
}

func seedSessionFixture(t *testing.T, db *gorm.DB) {
	t.Helper()
	testutil.SeedProduct(t, db, "prod-x", "Ball Pack")
	testutil.SeedBundle(t, db, "bundle-001", "BDL-TEST01", entity.BundleStatusPending, []entity.BundlePhase{
		{ProductID: "prod-x", ExpectedCount: 2, PhaseOrder: 0},
	})
	testutil.SeedPoolCodes(t, db, "QR-A", "QR-B")
}

func TestSessionRoutesRequireAuth(t *testing.T) {
	r, _ := setupTestRouter(t)

	w := testutil.DoRequest(r, "POST", "/api/v1/assembly/sessions",
		gin.H{"bundle_qr_code": "BDL-TEST01"}, "")
	if w.Code != 401 {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
}

func TestStartSessionRoute(t *testing.T) {
	r, db := setupTestRouter(t)
	seedSessionFixture(t, db)
	token := testutil.DefaultTestToken()

	w := testutil.DoRequest(r, "POST", "/api/v1/assembly/sessions",
		gin.H{"bundle_qr_code": "BDL-TEST01"}, token)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	if resp["code"].(float64) != 0 {
		t.Fatalf("unexpected envelope code: %v", resp["code"])
	}
	data := resp["data"].(map[string]interface{})
	bundle := data["bundle"].(map[string]interface{})
	if bundle["status"] != entity.BundleStatusAssembling {
		t.Fatalf("expected assembling, got %v", bundle["status"])
	}
	current := data["current_phase"].(map[string]interface{})
	if current["product_name"] != "Ball Pack" {
		t.Fatalf("expected product name in current phase, got %v", current["product_name"])
	}

	// Unknown bundle code
	w = testutil.DoRequest(r, "POST", "/api/v1/assembly/sessions",
		gin.H{"bundle_qr_code": "BDL-NOPE"}, token)
	if w.Code != 404 {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	resp = testutil.ParseResponse(w)
	if resp["code"].(float64) != 40400 {
		t.Fatalf("expected code 40400, got %v", resp["code"])
	}

	// Missing body field
	w = testutil.DoRequest(r, "POST", "/api/v1/assembly/sessions", gin.H{}, token)
	if w.Code != 400 {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestScanRoute(t *testing.T) {
	r, db := setupTestRouter(t)
	seedSessionFixture(t, db)
	token := testutil.DefaultTestToken()

	testutil.DoRequest(r, "POST", "/api/v1/assembly/sessions",
		gin.H{"bundle_qr_code": "BDL-TEST01"}, token)

	w := testutil.DoRequest(r, "POST", "/api/v1/assembly/bundles/bundle-001/scan",
		gin.H{"qr_code": "QR-A"}, token)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["scanned_count"].(float64) != 1 {
		t.Fatalf("expected scanned_count 1, got %v", data["scanned_count"])
	}
	if data["is_phase_complete"].(bool) {
		t.Fatal("phase must not be complete at 1/2")
	}

	// Reused code is a conflict
	w = testutil.DoRequest(r, "POST", "/api/v1/assembly/bundles/bundle-001/scan",
		gin.H{"qr_code": "QR-A"}, token)
	if w.Code != 409 {
		t.Fatalf("expected 409 on reused code, got %d", w.Code)
	}
	resp := testutil.ParseResponse(w)
	if resp["code"].(float64) != 40900 {
		t.Fatalf("expected code 40900, got %v", resp["code"])
	}

	// Unknown code
	w = testutil.DoRequest(r, "POST", "/api/v1/assembly/bundles/bundle-001/scan",
		gin.H{"qr_code": "QR-GHOST"}, token)
	if w.Code != 404 {
		t.Fatalf("expected 404 on unknown code, got %d", w.Code)
	}
}

func TestCompleteRoute(t *testing.T) {
	r, db := setupTestRouter(t)
	seedSessionFixture(t, db)
	token := testutil.DefaultTestToken()

	testutil.DoRequest(r, "POST", "/api/v1/assembly/sessions",
		gin.H{"bundle_qr_code": "BDL-TEST01"}, token)

	// Premature completion
	w := testutil.DoRequest(r, "POST", "/api/v1/assembly/bundles/bundle-001/complete", nil, token)
	if w.Code != 422 {
		t.Fatalf("expected 422 on premature completion, got %d", w.Code)
	}
	resp := testutil.ParseResponse(w)
	if resp["code"].(float64) != 42200 {
		t.Fatalf("expected code 42200, got %v", resp["code"])
	}

	for _, qr := range []string{"QR-A", "QR-B"} {
		w = testutil.DoRequest(r, "POST", "/api/v1/assembly/bundles/bundle-001/scan",
			gin.H{"qr_code": qr}, token)
		if w.Code != 200 {
			t.Fatalf("scan %s failed: %d %s", qr, w.Code, w.Body.String())
		}
	}

	w = testutil.DoRequest(r, "POST", "/api/v1/assembly/bundles/bundle-001/complete", nil, token)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// Session read-back shows the final state
	w = testutil.DoRequest(r, "GET", "/api/v1/assembly/bundles/bundle-001/session", nil, token)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	bundle := data["bundle"].(map[string]interface{})
	if bundle["status"] != entity.BundleStatusCompleted {
		t.Fatalf("expected completed, got %v", bundle["status"])
	}
}

func TestTenantIsolation(t *testing.T) {
	r, db := setupTestRouter(t)
	seedSessionFixture(t, db)
	otherToken := testutil.GenerateTestToken("user-other", "tenant-other", "Other Operator")

	w := testutil.DoRequest(r, "POST", "/api/v1/assembly/sessions",
		gin.H{"bundle_qr_code": "BDL-TEST01"}, otherToken)
	if w.Code != 404 {
		t.Fatalf("foreign tenant must not see the bundle, got %d", w.Code)
	}
}

func TestConfirmPhaseRoute(t *testing.T) {
	r, db := setupTestRouter(t)
	testutil.SeedProduct(t, db, "prod-x", "Ball Pack")
	testutil.SeedProduct(t, db, "prod-y", "Paddle")
	testutil.SeedBundle(t, db, "bundle-002", "BDL-TEST02", entity.BundleStatusPending, []entity.BundlePhase{
		{ProductID: "prod-x", ExpectedCount: 1, PhaseOrder: 0},
		{ProductID: "prod-y", ExpectedCount: 1, PhaseOrder: 1},
	})
	token := testutil.DefaultTestToken()

	testutil.DoRequest(r, "POST", "/api/v1/assembly/sessions",
		gin.H{"bundle_qr_code": "BDL-TEST02"}, token)

	w := testutil.DoRequest(r, "POST", "/api/v1/assembly/bundles/bundle-002/confirm-phase", nil, token)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["phase_index"].(float64) != 1 {
		t.Fatalf("expected phase_index 1, got %v", data["phase_index"])
	}
	if data["is_complete"].(bool) {
		t.Fatal("is_complete must be false before the last phase")
	}

	w = testutil.DoRequest(r, "POST", "/api/v1/assembly/bundles/bundle-002/confirm-phase", nil, token)
	data = testutil.ParseResponse(w)["data"].(map[string]interface{})
	if fmt.Sprint(data["phase_index"]) != "1" || !data["is_complete"].(bool) {
		t.Fatalf("pointer must hold at last phase, got %v", data)
	}
}
