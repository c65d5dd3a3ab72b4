package services

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/propscan/hmo-backend/shared"
)

func TestRecordQueryCounters(t *testing.T) {
	svc := &PropertyService{
		serviceMetrics: shared.NewServiceMetrics("Property_Service"),
		dbMetrics:      shared.NewDatabaseMetrics(),
	}

	started := time.Now().Add(-5 * time.Millisecond)
	svc.recordQuery("get_properties", started, nil)
	svc.recordQuery("get_properties", started, nil)
	svc.recordQuery("upsert_property", started, errors.New("duplicate key"))

	snapshot := svc.GetMetricsSnapshot()
	if total, ok := snapshot["total_queries"].(int64); !ok || total != 3 {
		t.Errorf("expected 3 recorded queries, got %v", snapshot["total_queries"])
	}
	if slow, ok := snapshot["slow_queries"].(int64); !ok || slow != 0 {
		t.Errorf("expected no slow queries, got %v", snapshot["slow_queries"])
	}
	if rate, ok := snapshot["query_success_rate"].(float64); !ok || math.Abs(rate-100.0/1.5) > 0.001 {
		t.Errorf("expected 2/3 query success rate, got %v", snapshot["query_success_rate"])
	}

	// A query over the half-second threshold counts as slow
	svc.recordQuery("get_properties", time.Now().Add(-time.Second), nil)
	snapshot = svc.GetMetricsSnapshot()
	if slow, _ := snapshot["slow_queries"].(int64); slow != 1 {
		t.Errorf("expected 1 slow query, got %v", snapshot["slow_queries"])
	}
}

func TestAuditValueString(t *testing.T) {
	rent := 650.0
	beds := 4
	city := "Leeds"
	seen := time.Date(2026, time.January, 15, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name  string
		value interface{}
		want  string
	}{
		{"float pointer", &rent, "650"},
		{"int pointer", &beds, "4"},
		{"string pointer", &city, "Leeds"},
		{"time pointer", &seen, "2026-01-15"},
		{"plain string", "available", "available"},
	}
	for _, tc := range cases {
		got := auditValueString(tc.value)
		if got == nil || *got != tc.want {
			t.Errorf("%s: auditValueString = %v, want %q", tc.name, got, tc.want)
		}
	}

	if got := auditValueString(nil); got != nil {
		t.Errorf("expected nil for nil value, got %q", *got)
	}
	var nilRent *float64
	if got := auditValueString(nilRent); got != nil {
		t.Errorf("expected nil for nil float pointer, got %q", *got)
	}
}
