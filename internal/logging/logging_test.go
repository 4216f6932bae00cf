package logging

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{" WARN ", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"loud", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestComponentTagsLines(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(Config{Level: "info", Format: "json"}, &buf)
	cl := Component(l, "scheduler")
	cl.Info().Msg("hello")
	if !strings.Contains(buf.String(), `"component":"scheduler"`) {
		t.Fatalf("output = %s", buf.String())
	}
}

func TestGormLoggerFiltersSweepQueries(t *testing.T) {
	var buf bytes.Buffer
	zl := zerolog.New(&buf).Level(zerolog.DebugLevel)
	gl := NewGormLogger(zl, "info", "reminder_sent = false")

	trace := func(sql string, err error) {
		gl.Trace(context.Background(), time.Now(), func() (string, int64) { return sql, 1 }, err)
	}

	trace(`SELECT * FROM "bookings" WHERE reminder_sent = false AND status = 'pending'`, nil)
	if buf.Len() != 0 {
		t.Fatalf("ignored query logged: %s", buf.String())
	}

	trace(`SELECT * FROM "contacts"`, nil)
	if !strings.Contains(buf.String(), "contacts") {
		t.Fatalf("regular query not logged: %s", buf.String())
	}

	buf.Reset()
	trace(`SELECT * FROM "contacts" WHERE id = 1`, gorm.ErrRecordNotFound)
	if strings.Contains(buf.String(), "query failed") {
		t.Fatalf("record not found logged as failure: %s", buf.String())
	}

	buf.Reset()
	trace(`UPDATE "bookings" SET reminder_sent = false`, errors.New("deadlock"))
	if !strings.Contains(buf.String(), "query failed") {
		t.Fatalf("failed query not logged: %s", buf.String())
	}
}

func TestGormLoggerSilent(t *testing.T) {
	var buf bytes.Buffer
	gl := NewGormLogger(zerolog.New(&buf), "info").LogMode(logger.Silent)
	gl.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT 1", 1 }, errors.New("boom"))
	if buf.Len() != 0 {
		t.Fatalf("silent logger wrote: %s", buf.String())
	}
}

func TestRealClientIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"x-real-ip", map[string]string{"X-Real-IP": "203.0.113.7", "X-Forwarded-For": "198.51.100.1"}, "203.0.113.7"},
		{"forwarded chain", map[string]string{"X-Forwarded-For": "198.51.100.1, 10.0.0.1"}, "198.51.100.1"},
		{"remote addr", nil, "192.0.2.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				c.Request.Header.Set(k, v)
			}
			if got := RealClientIP(c); got != tt.want {
				t.Fatalf("RealClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}
