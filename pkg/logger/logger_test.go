package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line %q: %v", buf.String(), err)
	}
	return entry
}

func TestInfoCarriesServiceField(t *testing.T) {
	var buf bytes.Buffer
	log := New("traderd", &buf)

	log.Info("engine working")

	entry := decodeLine(t, &buf)
	if entry["service"] != "traderd" {
		t.Fatalf("service = %v, want traderd", entry["service"])
	}
	if entry["message"] != "engine working" {
		t.Fatalf("message = %v", entry["message"])
	}
	if entry["level"] != "info" {
		t.Fatalf("level = %v, want info", entry["level"])
	}
	if _, ok := entry["timestamp"]; !ok {
		t.Fatal("expected timestamp field")
	}
}

func TestInfofFields(t *testing.T) {
	var buf bytes.Buffer
	log := New("traderd", &buf)

	log.Infof("order accepted", map[string]interface{}{
		"orderID": 100,
		"offset":  "OPEN",
	})

	entry := decodeLine(t, &buf)
	if entry["orderID"] != float64(100) {
		t.Fatalf("orderID = %v, want 100", entry["orderID"])
	}
	if entry["offset"] != "OPEN" {
		t.Fatalf("offset = %v, want OPEN", entry["offset"])
	}
}

func TestWithErrorAndField(t *testing.T) {
	var buf bytes.Buffer
	log := New("traderd", &buf)

	log.WithError(errors.New("boom")).WithField("traderID", "sim-01").Error("reconcile failed")

	entry := decodeLine(t, &buf)
	if entry["error"] != "boom" {
		t.Fatalf("error = %v, want boom", entry["error"])
	}
	if entry["traderID"] != "sim-01" {
		t.Fatalf("traderID = %v, want sim-01", entry["traderID"])
	}
	if entry["level"] != "error" {
		t.Fatalf("level = %v, want error", entry["level"])
	}
}

func TestNilWriterDefaultsToStdout(t *testing.T) {
	log := New("traderd", nil)
	if log == nil {
		t.Fatal("expected logger")
	}
}
