package util

import (
	"testing"
	"time"
)

func TestParseBoolEnv(t *testing.T) {
	t.Setenv("TEST_BOOL", "yes")
	if !ParseBoolEnv("TEST_BOOL", false) {
		t.Error("expected 'yes' to parse as true")
	}
	t.Setenv("TEST_BOOL", "off")
	if ParseBoolEnv("TEST_BOOL", true) {
		t.Error("expected 'off' to parse as false")
	}
	t.Setenv("TEST_BOOL", "banana")
	if !ParseBoolEnv("TEST_BOOL", true) {
		t.Error("invalid value should fall back to default")
	}
	if ParseBoolEnv("TEST_BOOL_UNSET", false) {
		t.Error("unset should fall back to default")
	}
}

func TestParseIntEnv(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	if got := ParseIntEnv("TEST_INT", 7); got != 42 {
		t.Errorf("expected 42, got %d", got)
	}
	t.Setenv("TEST_INT", "nope")
	if got := ParseIntEnv("TEST_INT", 7); got != 7 {
		t.Errorf("invalid value should fall back to default, got %d", got)
	}
}

func TestParseFloatEnv(t *testing.T) {
	t.Setenv("TEST_FLOAT", "0.6")
	if got := ParseFloatEnv("TEST_FLOAT", 0.1); got != 0.6 {
		t.Errorf("expected 0.6, got %f", got)
	}
}

func TestParseDurationEnv(t *testing.T) {
	t.Setenv("TEST_DUR", "45s")
	if got := ParseDurationEnv("TEST_DUR", time.Minute); got != 45*time.Second {
		t.Errorf("expected 45s, got %s", got)
	}
	t.Setenv("TEST_DUR", "garbage")
	if got := ParseDurationEnv("TEST_DUR", time.Minute); got != time.Minute {
		t.Errorf("invalid value should fall back to default, got %s", got)
	}
}

func TestGetEnvDefault(t *testing.T) {
	t.Setenv("TEST_STR", "hello")
	if got := GetEnvDefault("TEST_STR", "fallback"); got != "hello" {
		t.Errorf("expected hello, got %s", got)
	}
	if got := GetEnvDefault("TEST_STR_UNSET", "fallback"); got != "fallback" {
		t.Errorf("expected fallback, got %s", got)
	}
}
