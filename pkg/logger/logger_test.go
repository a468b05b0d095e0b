package logger

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestGinLogger_LevelByStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		status    int
		wantLevel string
	}{
		{http.StatusOK, "info"},
		{http.StatusConflict, "warn"},
		{http.StatusInternalServerError, "error"},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		InitWithWriter("info", &buf)

		router := gin.New()
		router.Use(GinLogger())
		router.GET("/p", func(c *gin.Context) { c.Status(tt.status) })

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/p?x=1", nil)
		router.ServeHTTP(w, req)

		var line map[string]interface{}
		if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
			t.Fatalf("status %d: log line is not JSON: %q", tt.status, buf.String())
		}
		if line["level"] != tt.wantLevel || line["path"] != "/p" || line["query"] != "x=1" {
			t.Errorf("status %d: unexpected log line %v", tt.status, line)
		}
	}
	Init("info")
}

func TestGinRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	InitWithWriter("info", &buf)
	defer Init("info")

	router := gin.New()
	router.Use(GinRecovery())
	router.GET("/panic", func(c *gin.Context) { panic("nil project") })

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/panic", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}
	if !strings.Contains(buf.String(), "nil project") {
		t.Errorf("panic value should be logged, got %q", buf.String())
	}
}

func TestInit_InvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("verbose", &buf)
	defer Init("info")

	Debug().Msg("hidden")
	Info().Msg("shown")

	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("unexpected output %q", buf.String())
	}
}
