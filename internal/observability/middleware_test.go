package observability

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MewKitBit/Solaris/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func TestRequestLoggerTagsScenarioAndRun(t *testing.T) {
	testlog.Start(t)

	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestLogger(logger, "dusty-mesa", "run-0001"))
	router.GET("/api/v1/units/:id", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/units/AB000001", nil))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line not json: %v (%s)", err, buf.String())
	}
	if line["scenario"] != "dusty-mesa" || line["run"] != "run-0001" {
		t.Fatalf("run attribution missing: %s", buf.String())
	}
	if line["path"] != "/api/v1/units/:id" {
		t.Fatalf("path=%v, want route pattern", line["path"])
	}
	if line["level"] != "info" {
		t.Fatalf("level=%v, want info", line["level"])
	}
}

func TestRequestLoggerEscalatesErrorStatuses(t *testing.T) {
	testlog.Start(t)

	cases := []struct {
		status int
		level  string
	}{
		{http.StatusNotFound, "warn"},
		{http.StatusInternalServerError, "error"},
	}
	for _, tc := range cases {
		var buf bytes.Buffer
		logger := zerolog.New(&buf)

		gin.SetMode(gin.TestMode)
		router := gin.New()
		router.Use(RequestLogger(logger, "dusty-mesa", "run-0001"))
		router.GET("/boom", func(c *gin.Context) {
			c.Status(tc.status)
		})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

		if !strings.Contains(buf.String(), `"level":"`+tc.level+`"`) {
			t.Fatalf("status %d: want level %s, got %s", tc.status, tc.level, buf.String())
		}
	}
}
