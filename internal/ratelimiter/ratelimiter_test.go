package ratelimiter

import (
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		perSecond uint
		burst     uint
		wantNil   bool
		wantBurst int
	}{
		{name: "standard rate", perSecond: 100, burst: 200, wantBurst: 200},
		{name: "burst defaults to rate", perSecond: 50, burst: 0, wantBurst: 50},
		{name: "unlimited", perSecond: 0, burst: 10, wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter := New(tt.perSecond, tt.burst)
			if tt.wantNil {
				if limiter != nil {
					t.Fatal("expected nil limiter for zero rate")
				}
				return
			}
			if limiter == nil {
				t.Fatal("New() returned nil")
			}
			if limiter.Limit() != float64(tt.perSecond) {
				t.Fatalf("limit = %v, want %d", limiter.Limit(), tt.perSecond)
			}
			if limiter.Burst() != tt.wantBurst {
				t.Fatalf("burst = %d, want %d", limiter.Burst(), tt.wantBurst)
			}
		})
	}
}

func TestAllow(t *testing.T) {
	limiter := New(10, 3)

	for i := 0; i < 3; i++ {
		if !limiter.Allow() {
			t.Fatalf("connection %d should be admitted (within burst)", i)
		}
	}

	if limiter.Allow() {
		t.Fatal("connection should be refused after burst exhausted")
	}

	// 10/s refills one token every 100ms
	time.Sleep(120 * time.Millisecond)

	if !limiter.Allow() {
		t.Fatal("connection should be admitted after refill")
	}
}

func TestNilLimiterAdmitsEverything(t *testing.T) {
	var limiter *RateLimiter

	for i := 0; i < 1000; i++ {
		if !limiter.Allow() {
			t.Fatal("nil limiter refused a connection")
		}
	}
	if limiter.Limit() != 0 || limiter.Burst() != 0 {
		t.Fatal("nil limiter should report zero limits")
	}
}
