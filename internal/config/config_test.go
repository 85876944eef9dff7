package config

import (
	"testing"
	"time"
)

func TestNew_Defaults(t *testing.T) {
	t.Setenv(EnvPort, "")
	t.Setenv(EnvSessionBackend, "")
	t.Setenv(EnvKafkaBrokers, "")
	t.Setenv(EnvAutoSelect, "")

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != DefaultPort {
		t.Errorf("Port = %d, want %d", cfg.Port(), DefaultPort)
	}
	if cfg.SessionBackend() != "memory" {
		t.Errorf("SessionBackend = %q, want memory", cfg.SessionBackend())
	}
	if len(cfg.KafkaBrokers()) != 0 {
		t.Errorf("KafkaBrokers = %v, want empty", cfg.KafkaBrokers())
	}
	if cfg.FallbackDelay() != 3*time.Second {
		t.Errorf("FallbackDelay = %v, want 3s", cfg.FallbackDelay())
	}
	if !cfg.AutoSelectFirst() {
		t.Error("AutoSelectFirst = false, want true")
	}
}

func TestNew_InvalidPort(t *testing.T) {
	t.Setenv(EnvPort, "70000")

	if _, err := New(); err == nil {
		t.Fatal("expected error for out-of-range port")
	}
}

func TestNew_InvalidSessionBackend(t *testing.T) {
	t.Setenv(EnvSessionBackend, "sqlite")

	if _, err := New(); err == nil {
		t.Fatal("expected error for unknown session backend")
	}
}

func TestNew_KafkaBrokersFromEnv(t *testing.T) {
	t.Setenv(EnvKafkaBrokers, "kafka-1:9092, kafka-2:9092,")

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	brokers := cfg.KafkaBrokers()
	if len(brokers) != 2 || brokers[0] != "kafka-1:9092" || brokers[1] != "kafka-2:9092" {
		t.Errorf("KafkaBrokers = %v, want [kafka-1:9092 kafka-2:9092]", brokers)
	}
}

func TestNew_SessionTTL(t *testing.T) {
	t.Setenv(EnvSessionTTL, "45m")

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SessionTTL() != 45*time.Minute {
		t.Errorf("SessionTTL = %v, want 45m", cfg.SessionTTL())
	}

	t.Setenv(EnvSessionTTL, "-1s")
	if _, err := New(); err == nil {
		t.Fatal("expected error for negative TTL")
	}
}

func TestNew_CoordinatorURLTrimmed(t *testing.T) {
	t.Setenv(EnvCoordinatorURL, "http://coordinator.local:5000/")

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.CoordinatorURL() != "http://coordinator.local:5000" {
		t.Errorf("CoordinatorURL = %q", cfg.CoordinatorURL())
	}
}

func TestNew_AutoSelect(t *testing.T) {
	t.Setenv(EnvAutoSelect, "false")

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AutoSelectFirst() {
		t.Error("AutoSelectFirst = true, want false")
	}

	t.Setenv(EnvAutoSelect, "sometimes")
	if _, err := New(); err == nil {
		t.Fatal("expected error for invalid auto-select flag")
	}
}
