package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"

	"stamprally/internal/models"
	"stamprally/internal/services"
	"stamprally/internal/storage"
)

const testAdminKey = "test-admin-key"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	logger.Init("handlers-test", false, false, io.Discard)
	os.Exit(m.Run())
}

func setupRouter(t *testing.T) (*gin.Engine, *storage.Store) {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "rally.sqlite")
	db, err := storage.Open(dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := storage.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	store := storage.NewStore(db)

	stampService := services.NewStampService(store, 2, 5)
	drawService := services.NewDrawService(store.Registry)
	handler := NewHTTPHandler(stampService, drawService, testAdminKey)

	router := gin.New()
	handler.RegisterRoutes(router)
	return router, store
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func asParticipant(userID string) map[string]string {
	return map[string]string{participantHeader: userID}
}

func asAdmin() map[string]string {
	return map[string]string{adminKeyHeader: testAdminKey}
}

func TestStampFlow(t *testing.T) {
	router, store := setupRouter(t)

	booth := &models.Booth{BoothID: 1, Name: "Pottery", StaffPIN: "123456", IsActive: true}
	if err := store.Booths.Upsert(booth); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	w := doJSON(t, router, "POST", "/api/participants", gin.H{
		"user_id": "u1", "name": "Alice", "student_id": "10101",
	}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201 on registration, got %d: %s", w.Code, w.Body.String())
	}

	t.Run("stamp attempt requires the participant header", func(t *testing.T) {
		w := doJSON(t, router, "POST", "/api/stamps", gin.H{"booth_id": 1, "code": "123456"}, nil)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401 without header, got %d", w.Code)
		}
	})

	t.Run("valid stamp is accepted", func(t *testing.T) {
		w := doJSON(t, router, "POST", "/api/stamps", gin.H{"booth_id": 1, "code": "123456"}, asParticipant("u1"))
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
		}
		var result models.StampResult
		if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
			t.Fatalf("decode result: %v", err)
		}
		if !result.Accepted || result.Progress.Count != 1 {
			t.Errorf("Expected accepted with count 1, got %+v", result)
		}
	})

	t.Run("duplicate comes back 200 with a reason", func(t *testing.T) {
		w := doJSON(t, router, "POST", "/api/stamps", gin.H{"booth_id": 1, "code": "123456"}, asParticipant("u1"))
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200 for duplicate outcome, got %d", w.Code)
		}
		var result models.StampResult
		if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
			t.Fatalf("decode result: %v", err)
		}
		if result.Accepted || result.Reason != models.ReasonAlreadyStamped {
			t.Errorf("Expected already_stamped, got %+v", result)
		}
	})

	t.Run("empty code is a definitive result, not a validation error", func(t *testing.T) {
		w := doJSON(t, router, "POST", "/api/participants", gin.H{
			"user_id": "u2", "name": "Bob", "student_id": "10202",
		}, nil)
		if w.Code != http.StatusCreated {
			t.Fatalf("Expected 201 on registration, got %d", w.Code)
		}

		w = doJSON(t, router, "POST", "/api/stamps", gin.H{"booth_id": 1, "code": ""}, asParticipant("u2"))
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200 for a blank code, got %d: %s", w.Code, w.Body.String())
		}
		var result models.StampResult
		if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
			t.Fatalf("decode result: %v", err)
		}
		if result.Accepted || result.Reason != models.ReasonInvalidCode {
			t.Errorf("Expected invalid_code, got %+v", result)
		}
	})

	t.Run("unknown booth is 404", func(t *testing.T) {
		w := doJSON(t, router, "POST", "/api/stamps", gin.H{"booth_id": 42, "code": "x"}, asParticipant("u1"))
		if w.Code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", w.Code)
		}
	})

	t.Run("progress", func(t *testing.T) {
		w := doJSON(t, router, "GET", "/api/progress", nil, asParticipant("u1"))
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", w.Code)
		}
		var progress models.Progress
		if err := json.Unmarshal(w.Body.Bytes(), &progress); err != nil {
			t.Fatalf("decode progress: %v", err)
		}
		if progress.Count != 1 || progress.RequiredTotal != 2 {
			t.Errorf("Expected 1/2 progress, got %+v", progress)
		}
	})

	t.Run("booth listing carries no secrets", func(t *testing.T) {
		w := doJSON(t, router, "GET", "/api/booths", nil, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", w.Code)
		}
		if bytes.Contains(w.Body.Bytes(), []byte("123456")) {
			t.Error("Expected staff pin to be absent from the public listing")
		}
	})
}

func TestLuckyDrawFlow(t *testing.T) {
	router, store := setupRouter(t)

	for _, b := range []models.Booth{
		{BoothID: 1, Name: "Pottery", StaffPIN: "111111", IsActive: true},
		{BoothID: 2, Name: "Calligraphy", StaffPIN: "222222", IsActive: true},
	} {
		booth := b
		if err := store.Booths.Upsert(&booth); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	w := doJSON(t, router, "POST", "/api/participants", gin.H{
		"user_id": "u1", "name": "Alice", "student_id": "10101",
	}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", w.Code)
	}

	// Required total is 2 in this setup; two stamps complete the rally.
	for boothID, code := range map[int]string{1: "111111", 2: "222222"} {
		w := doJSON(t, router, "POST", "/api/stamps", gin.H{"booth_id": boothID, "code": code}, asParticipant("u1"))
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", w.Code)
		}
	}

	t.Run("admin routes reject a wrong key", func(t *testing.T) {
		w := doJSON(t, router, "GET", "/api/admin/lucky-draw/eligible", nil,
			map[string]string{adminKeyHeader: "wrong"})
		if w.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", w.Code)
		}
	})

	var entries []models.LuckyDrawEntry
	w = doJSON(t, router, "GET", "/api/admin/lucky-draw/eligible", nil, asAdmin())
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 eligible entry, got %d", len(entries))
	}

	t.Run("sample then confirm then revoke", func(t *testing.T) {
		w := doJSON(t, router, "POST", "/api/admin/lucky-draw/sample", gin.H{"n": 1}, asAdmin())
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200 on sample, got %d: %s", w.Code, w.Body.String())
		}
		var candidates []models.LuckyDrawEntry
		if err := json.Unmarshal(w.Body.Bytes(), &candidates); err != nil {
			t.Fatalf("decode candidates: %v", err)
		}
		if len(candidates) != 1 {
			t.Fatalf("Expected 1 candidate, got %d", len(candidates))
		}

		w = doJSON(t, router, "POST", "/api/admin/lucky-draw/confirm",
			gin.H{"entry_ids": []string{candidates[0].ID}}, asAdmin())
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200 on confirm, got %d: %s", w.Code, w.Body.String())
		}

		w = doJSON(t, router, "GET", "/api/admin/lucky-draw/winners", nil, asAdmin())
		var winners []models.LuckyDrawEntry
		if err := json.Unmarshal(w.Body.Bytes(), &winners); err != nil {
			t.Fatalf("decode winners: %v", err)
		}
		if len(winners) != 1 || winners[0].ID != candidates[0].ID {
			t.Fatalf("Expected the confirmed winner, got %+v", winners)
		}

		// The pool is empty now; over-sampling is a conflict.
		w = doJSON(t, router, "POST", "/api/admin/lucky-draw/sample", gin.H{"n": 1}, asAdmin())
		if w.Code != http.StatusConflict {
			t.Errorf("Expected 409 on empty pool, got %d", w.Code)
		}

		w = doJSON(t, router, "POST", "/api/admin/lucky-draw/revoke",
			gin.H{"entry_id": candidates[0].ID}, asAdmin())
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200 on revoke, got %d: %s", w.Code, w.Body.String())
		}

		w = doJSON(t, router, "POST", "/api/admin/lucky-draw/sample", gin.H{"n": 1}, asAdmin())
		if w.Code != http.StatusOK {
			t.Errorf("Expected revoked entry to be sampleable, got %d", w.Code)
		}
	})
}

func TestAdminBoothManagement(t *testing.T) {
	router, _ := setupRouter(t)

	w := doJSON(t, router, "POST", "/api/admin/booths", gin.H{
		"booth_id": 7, "name": "Robotics", "staff_pin": "777777", "is_active": true,
	}, asAdmin())
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 on booth upsert, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, "POST", "/api/admin/booths/7/rotate", gin.H{"kind": "pin"}, asAdmin())
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 on rotation, got %d: %s", w.Code, w.Body.String())
	}
	var rotated struct {
		NewSecret string `json:"new_secret"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &rotated); err != nil {
		t.Fatalf("decode rotation: %v", err)
	}
	if len(rotated.NewSecret) != 6 {
		t.Errorf("Expected a fresh 6-digit pin, got %q", rotated.NewSecret)
	}

	t.Run("unknown kind is 400", func(t *testing.T) {
		w := doJSON(t, router, "POST", "/api/admin/booths/7/rotate", gin.H{"kind": "totp"}, asAdmin())
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", w.Code)
		}
	})

	t.Run("rotation audit trail", func(t *testing.T) {
		w := doJSON(t, router, "GET", "/api/admin/booths/7/rotations", nil, asAdmin())
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", w.Code)
		}
		var rotations []models.SecretRotation
		if err := json.Unmarshal(w.Body.Bytes(), &rotations); err != nil {
			t.Fatalf("decode rotations: %v", err)
		}
		if len(rotations) != 1 {
			t.Errorf("Expected 1 rotation record, got %d", len(rotations))
		}
	})
}
