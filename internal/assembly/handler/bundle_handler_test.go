package handler

import (
	"strings"
	"testing"

	"github.com/bitfantasy/packhouse/internal/assembly/entity"
	"github.com/bitfantasy/packhouse/internal/assembly/testutil"
	"github.com/gin-gonic/gin"
)

func TestCreateBundleRoute(t *testing.T) {
	r, db := setupTestRouter(t)
	testutil.SeedProduct(t, db, "prod-x", "Ball Pack")
	testutil.SeedProduct(t, db, "prod-y", "Paddle")
	token := testutil.DefaultTestToken()

	w := testutil.DoRequest(r, "POST", "/api/v1/assembly/bundles", gin.H{
		"name": "Starter Kit",
		"phases": []gin.H{
			{"product_id": "prod-x", "expected_count": 2},
			{"product_id": "prod-y", "expected_count": 1},
		},
	}, token)
	if w.Code != 201 {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["status"] != entity.BundleStatusPending {
		t.Fatalf("new bundle must be pending, got %v", data["status"])
	}
	qrCode, _ := data["qr_code"].(string)
	if !strings.HasPrefix(qrCode, "BDL-") {
		t.Fatalf("expected generated bundle code, got %q", qrCode)
	}
	if len(data["phases"].([]interface{})) != 2 {
		t.Fatalf("expected 2 phases, got %v", data["phases"])
	}

	// Unknown product
	w = testutil.DoRequest(r, "POST", "/api/v1/assembly/bundles", gin.H{
		"name":   "Bad Kit",
		"phases": []gin.H{{"product_id": "prod-ghost", "expected_count": 1}},
	}, token)
	if w.Code != 404 {
		t.Fatalf("expected 404 for unknown product, got %d", w.Code)
	}

	// No phases
	w = testutil.DoRequest(r, "POST", "/api/v1/assembly/bundles", gin.H{
		"name":   "Empty Kit",
		"phases": []gin.H{},
	}, token)
	if w.Code != 400 {
		t.Fatalf("expected 400 for empty phases, got %d", w.Code)
	}
}

func TestListBundlesRoute(t *testing.T) {
	r, db := setupTestRouter(t)
	testutil.SeedProduct(t, db, "prod-x", "Ball Pack")
	testutil.SeedBundle(t, db, "bundle-a", "BDL-AAA", entity.BundleStatusPending, []entity.BundlePhase{
		{ProductID: "prod-x", ExpectedCount: 1, PhaseOrder: 0},
	})
	testutil.SeedBundle(t, db, "bundle-b", "BDL-BBB", entity.BundleStatusCompleted, []entity.BundlePhase{
		{ProductID: "prod-x", ExpectedCount: 1, PhaseOrder: 0},
	})
	token := testutil.DefaultTestToken()

	w := testutil.DoRequest(r, "GET", "/api/v1/assembly/bundles", nil, token)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if len(data["items"].([]interface{})) != 2 {
		t.Fatalf("expected 2 bundles, got %v", data["items"])
	}

	w = testutil.DoRequest(r, "GET", "/api/v1/assembly/bundles?status=completed", nil, token)
	data = testutil.ParseResponse(w)["data"].(map[string]interface{})
	items := data["items"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("expected 1 completed bundle, got %d", len(items))
	}
	pagination := data["pagination"].(map[string]interface{})
	if pagination["total"].(float64) != 1 {
		t.Fatalf("expected total 1, got %v", pagination["total"])
	}
}

func TestDeleteBundleRoute(t *testing.T) {
	r, db := setupTestRouter(t)
	testutil.SeedProduct(t, db, "prod-x", "Ball Pack")
	testutil.SeedBundle(t, db, "bundle-a", "BDL-AAA", entity.BundleStatusPending, []entity.BundlePhase{
		{ProductID: "prod-x", ExpectedCount: 1, PhaseOrder: 0},
	})
	testutil.SeedBundle(t, db, "bundle-b", "BDL-BBB", entity.BundleStatusAssembling, []entity.BundlePhase{
		{ProductID: "prod-x", ExpectedCount: 1, PhaseOrder: 0},
	})
	token := testutil.DefaultTestToken()

	w := testutil.DoRequest(r, "DELETE", "/api/v1/assembly/bundles/bundle-a", nil, token)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var phaseCount int64
	db.Model(&entity.BundlePhase{}).Where("bundle_id = ?", "bundle-a").Count(&phaseCount)
	if phaseCount != 0 {
		t.Fatalf("phases must be deleted with the bundle, %d left", phaseCount)
	}

	// An assembling bundle can only run to completion
	w = testutil.DoRequest(r, "DELETE", "/api/v1/assembly/bundles/bundle-b", nil, token)
	if w.Code != 422 {
		t.Fatalf("expected 422 for assembling bundle, got %d", w.Code)
	}
}

func TestQRPoolRoutes(t *testing.T) {
	r, db := setupTestRouter(t)
	token := testutil.DefaultTestToken()

	w := testutil.DoRequest(r, "POST", "/api/v1/assembly/qr-pool",
		gin.H{"codes": []string{"QR-1", "QR-2", " QR-3 "}}, token)
	if w.Code != 201 {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["registered"].(float64) != 3 {
		t.Fatalf("expected 3 registered, got %v", data["registered"])
	}

	var entry entity.QRPoolEntry
	db.First(&entry, "code = ?", "QR-3")
	if entry.Code != "QR-3" {
		t.Fatal("codes must be trimmed before registration")
	}

	// Duplicate within the batch
	w = testutil.DoRequest(r, "POST", "/api/v1/assembly/qr-pool",
		gin.H{"codes": []string{"QR-9", "QR-9"}}, token)
	if w.Code != 409 {
		t.Fatalf("expected 409 for in-batch duplicate, got %d", w.Code)
	}

	// Already registered
	w = testutil.DoRequest(r, "POST", "/api/v1/assembly/qr-pool",
		gin.H{"codes": []string{"QR-1"}}, token)
	if w.Code != 409 {
		t.Fatalf("expected 409 for existing code, got %d", w.Code)
	}

	w = testutil.DoRequest(r, "GET", "/api/v1/assembly/qr-pool/stats", nil, token)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	stats := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if stats["available"].(float64) != 3 || stats["used"].(float64) != 0 {
		t.Fatalf("expected 3 available / 0 used, got %v", stats)
	}
}
