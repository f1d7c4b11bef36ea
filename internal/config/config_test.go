package config

import (
	"testing"
	"time"
)

func TestParse_Defaults(t *testing.T) {
	c, err := Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.Workflow.Store != "redis" {
		t.Errorf("store: got %q, want redis", c.Workflow.Store)
	}
	if c.Workflow.RejectPolicy != "lenient" {
		t.Errorf("reject policy: got %q, want lenient", c.Workflow.RejectPolicy)
	}
	if c.Workflow.LeaseTTL != 0 {
		t.Errorf("lease ttl: got %s, want disabled", c.Workflow.LeaseTTL)
	}
	if c.Payout.Amount != 1000000 || c.Payout.MaxAttempts != 5 {
		t.Errorf("payout defaults: got %+v", c.Payout)
	}
	if len(c.Kafka.Brokers) != 0 {
		t.Errorf("kafka brokers: got %v, want none", c.Kafka.Brokers)
	}
}

func TestParse_Environment(t *testing.T) {
	t.Setenv("Workflow_Store", "memory")
	t.Setenv("Workflow_LeaseTTL", "15m")
	t.Setenv("Payout_Account", "treasury")
	t.Setenv("Payout_Recipient", "worker")
	t.Setenv("Kafka_Brokers", "k1:9092,k2:9092")
	t.Setenv("Redis_DB", "3")

	c, err := Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.Workflow.Store != "memory" {
		t.Errorf("store: got %q", c.Workflow.Store)
	}
	if c.Workflow.LeaseTTL != 15*time.Minute {
		t.Errorf("lease ttl: got %s", c.Workflow.LeaseTTL)
	}
	if c.Payout.Account != "treasury" || c.Payout.Recipient != "worker" {
		t.Errorf("payout: got %+v", c.Payout)
	}
	if len(c.Kafka.Brokers) != 2 || c.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("brokers: got %v", c.Kafka.Brokers)
	}
	if c.Redis.DB != 3 {
		t.Errorf("redis db: got %d", c.Redis.DB)
	}
}

func TestParse_InvalidDuration(t *testing.T) {
	t.Setenv("Workflow_LeaseTTL", "soon")
	if _, err := Parse(); err == nil {
		t.Fatal("expected error for malformed duration")
	}
}
