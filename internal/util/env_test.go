package util

import "testing"

func TestGetEnv(t *testing.T) {
	t.Setenv("LEADBOT_TEST_VAR", "value")
	if got := GetEnv("LEADBOT_TEST_VAR", "fallback"); got != "value" {
		t.Errorf("GetEnv = %q", got)
	}
	if got := GetEnv("LEADBOT_TEST_UNSET", "fallback"); got != "fallback" {
		t.Errorf("GetEnv = %q, want fallback", got)
	}
}

func TestParseBoolEnv(t *testing.T) {
	for _, v := range []string{"1", "true", "YES", " on "} {
		t.Setenv("LEADBOT_TEST_BOOL", v)
		if !ParseBoolEnv("LEADBOT_TEST_BOOL") {
			t.Errorf("ParseBoolEnv(%q) = false", v)
		}
	}
	for _, v := range []string{"", "0", "false", "off", "nope"} {
		t.Setenv("LEADBOT_TEST_BOOL", v)
		if ParseBoolEnv("LEADBOT_TEST_BOOL") {
			t.Errorf("ParseBoolEnv(%q) = true", v)
		}
	}
}
