package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ZeremItay/autohub/internal/models"
	"github.com/ZeremItay/autohub/internal/services"
	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestParseRouteInfo(t *testing.T) {
	tests := []struct {
		path   string
		method string
		module string
		action string
	}{
		{"/api/admin/courses/:id", "PUT", "Courses", "Update"},
		{"/api/admin/users/:id", "DELETE", "Users", "Delete"},
		{"/api/admin/points-rules", "POST", "Points Rules", "Create"},
		{"/api/email-preferences", "PUT", "Email Preferences", "Update"},
		{"/api/admin/:id", "POST", "unknown", "Create"},
		{"", "PATCH", "unknown", "PATCH"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+strings.ReplaceAll(tt.path, "/", "_"), func(t *testing.T) {
			module, action := parseRouteInfo(tt.path, tt.method)
			if module != tt.module {
				t.Errorf("module = %q, expected %q", module, tt.module)
			}
			if action != tt.action {
				t.Errorf("action = %q, expected %q", action, tt.action)
			}
		})
	}
}

func TestFormatAuditMessage(t *testing.T) {
	ok := formatAuditMessage("admin@example.com", "PUT", "/api/admin/settings", 200)
	if ok != "[Audit] admin@example.com PUT /api/admin/settings -> OK" {
		t.Errorf("unexpected message %q", ok)
	}

	failed := formatAuditMessage("admin@example.com", "DELETE", "/api/admin/users/1", 400)
	if !strings.HasSuffix(failed, "-> Failed") {
		t.Errorf("expected failure suffix, got %q", failed)
	}
}

func TestMaskSensitiveFields(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		contains string
		hidden   string
	}{
		{"password", `{"email":"a@b.c","password":"hunter22"}`, `"password":"***"`, "hunter22"},
		{"spaced", `{"new_password": "s3cret!!"}`, `"new_password": "***"`, "s3cret!!"},
		{"smtp setting", `{"settings":{"email_password":"smtp-pass"}}`, `"email_password":"***"`, "smtp-pass"},
		{"no secrets", `{"role":"premium"}`, `{"role":"premium"}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := maskSensitiveFields(tt.body)
			if !strings.Contains(got, tt.contains) {
				t.Errorf("masked body %q should contain %q", got, tt.contains)
			}
			if tt.hidden != "" && strings.Contains(got, tt.hidden) {
				t.Errorf("masked body %q still contains %q", got, tt.hidden)
			}
		})
	}
}

func TestAuditLog_RecordsAdminWrites(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:audit_log?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatal(err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		services.InitSystemLogger(nil)
		sqlDB.Close()
	})
	if err := db.AutoMigrate(&models.SystemLog{}); err != nil {
		t.Fatal(err)
	}
	services.InitSystemLogger(db)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(ContextUserID, uint(1))
		c.Set(ContextEmail, "admin@example.com")
		c.Next()
	}, AuditLog())
	router.GET("/api/admin/users", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.PUT("/api/admin/users/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.DELETE("/api/admin/users/:id", func(c *gin.Context) { c.Status(http.StatusBadRequest) })

	send := func(method, path, body string) {
		req, _ := http.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(httptest.NewRecorder(), req)
	}
	send("GET", "/api/admin/users", "")
	send("PUT", "/api/admin/users/7", `{"role":"premium","password":"hunter22"}`)
	send("DELETE", "/api/admin/users/1", "")

	var logs []models.SystemLog
	db.Order("id").Find(&logs)
	if len(logs) != 2 {
		t.Fatalf("logs = %d, want 2 (reads are not audited)", len(logs))
	}

	update := logs[0]
	if update.Level != "info" || update.Module != "Users" || update.Action != "Update" {
		t.Errorf("update log = %+v", update)
	}
	if update.ProfileID == nil || *update.ProfileID != 1 {
		t.Errorf("update log profile = %v", update.ProfileID)
	}
	if strings.Contains(update.Extra, "hunter22") || !strings.Contains(update.Extra, `"target_id":"7"`) {
		t.Errorf("update extra = %s", update.Extra)
	}

	if logs[1].Level != "warning" || logs[1].Action != "Delete" {
		t.Errorf("rejected delete log = %+v", logs[1])
	}
}
