package freebox

import (
	"testing"
	"time"
)

func TestTimeoutPolicy_DeadlineFor(t *testing.T) {
	tests := []struct {
		name      string
		policy    TimeoutPolicy
		path      string
		slowClass bool
		want      time.Duration
	}{
		{
			name:      "normal class uses default",
			policy:    TimeoutPolicy{},
			path:      "/system/",
			slowClass: false,
			want:      10 * time.Second,
		},
		{
			name:      "normal class slow endpoint still uses default",
			policy:    TimeoutPolicy{},
			path:      "/dhcp/dynamic_lease/",
			slowClass: false,
			want:      10 * time.Second,
		},
		{
			name:      "configured default overrides stock value",
			policy:    TimeoutPolicy{Default: 3 * time.Second},
			path:      "/system/",
			slowClass: false,
			want:      3 * time.Second,
		},
		{
			name:      "slow class ordinary endpoint",
			policy:    TimeoutPolicy{},
			path:      "/wifi/config/",
			slowClass: true,
			want:      25 * time.Second,
		},
		{
			name:      "slow class slow endpoint",
			policy:    TimeoutPolicy{},
			path:      "/dhcp/dynamic_lease/",
			slowClass: true,
			want:      45 * time.Second,
		},
		{
			name:      "slow class ignores configured default",
			policy:    TimeoutPolicy{Default: 3 * time.Second},
			path:      "/lan/browser/pub/",
			slowClass: true,
			want:      45 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.policy.DeadlineFor(tt.path, tt.slowClass)
			if got != tt.want {
				t.Errorf("DeadlineFor(%q, %v) = %v, want %v", tt.path, tt.slowClass, got, tt.want)
			}
		})
	}
}

func TestIsSlowEndpoint(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/dhcp/dynamic_lease/", true},
		{"/dhcp/static_lease/", true},
		{"/lan/browser/pub/", true},
		{"/call/log/", true},
		{"/storage/disk/", true},
		{"/system/", false},
		{"/connection/", false},
		{"/wifi/config/", false},
		{"/dhcp/config/", false},
	}

	for _, tt := range tests {
		if got := isSlowEndpoint(tt.path); got != tt.want {
			t.Errorf("isSlowEndpoint(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestRetryPolicy_ShouldRetry(t *testing.T) {
	rp := DefaultRetryPolicy()

	tests := []struct {
		name       string
		path       string
		slowClass  bool
		remaining  int
		wasTimeout bool
		want       bool
	}{
		{"eligible", "/dhcp/dynamic_lease/", true, 2, true, true},
		{"last attempt still eligible", "/dhcp/dynamic_lease/", true, 1, true, true},
		{"exhausted", "/dhcp/dynamic_lease/", true, 0, true, false},
		{"normal class never retries", "/dhcp/dynamic_lease/", false, 2, true, false},
		{"ordinary endpoint never retries", "/system/", true, 2, true, false},
		{"non-timeout failure never retries", "/dhcp/dynamic_lease/", true, 2, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rp.ShouldRetry(tt.path, tt.slowClass, tt.remaining, tt.wasTimeout)
			if got != tt.want {
				t.Errorf("ShouldRetry(%q, %v, %d, %v) = %v, want %v",
					tt.path, tt.slowClass, tt.remaining, tt.wasTimeout, got, tt.want)
			}
		})
	}
}

func TestRetryPolicy_BackoffFor(t *testing.T) {
	rp := DefaultRetryPolicy()

	if got := rp.MaxRetries(); got != 2 {
		t.Fatalf("MaxRetries() = %d, want 2", got)
	}
	if got := rp.BackoffFor(2); got != time.Second {
		t.Errorf("BackoffFor(2) = %v, want 1s", got)
	}
	if got := rp.BackoffFor(1); got != 2*time.Second {
		t.Errorf("BackoffFor(1) = %v, want 2s", got)
	}
	if got := rp.BackoffFor(0); got != 0 {
		t.Errorf("BackoffFor(0) = %v, want 0 for out-of-schedule", got)
	}
	if got := rp.BackoffFor(5); got != 0 {
		t.Errorf("BackoffFor(5) = %v, want 0 for out-of-schedule", got)
	}
}

func TestRetryPolicy_CustomSchedule(t *testing.T) {
	rp := RetryPolicy{Backoff: []time.Duration{100 * time.Millisecond}}

	if got := rp.MaxRetries(); got != 1 {
		t.Fatalf("MaxRetries() = %d, want 1", got)
	}
	if got := rp.BackoffFor(1); got != 100*time.Millisecond {
		t.Errorf("BackoffFor(1) = %v, want 100ms", got)
	}
}

func TestRetryPolicy_EmptySchedule(t *testing.T) {
	rp := RetryPolicy{}

	if got := rp.MaxRetries(); got != 0 {
		t.Fatalf("MaxRetries() = %d, want 0", got)
	}
	if rp.ShouldRetry("/dhcp/dynamic_lease/", true, 0, true) {
		t.Error("empty schedule must never permit a retry")
	}
}
