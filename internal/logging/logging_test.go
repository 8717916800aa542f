package logging

import "testing"

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", ""} {
		log, err := NewLogger(level)
		if err != nil {
			t.Fatalf("NewLogger(%q) failed: %v", level, err)
		}
		log.Debugw("logger constructed", "level", level)
	}

	log, err := NewLogger("not-a-level")
	if err != nil {
		t.Fatalf("unknown level should fall back, got error: %v", err)
	}
	log.Infow("fallback logger works")
}
