package action

import (
	"testing"
	"time"

	"browserctl/internal/config"
	"browserctl/pkg/models"
)

func testLimiterConfig() config.Config {
	var cfg config.Config
	cfg.RateLimit.RequestsPerMinute = 6000 // effectively unthrottled for single-call tests
	cfg.RateLimit.Burst = 1000
	cfg.RateLimit.MaxFailures = 3
	cfg.RateLimit.ResetTimeout = 20 * time.Millisecond
	return cfg
}

func TestLimiterAllowsUnderBurst(t *testing.T) {
	l := NewLimiter(testLimiterConfig())
	if !l.Allow(models.ActionClick) {
		t.Fatal("Allow(click) = false, want true under burst capacity")
	}
}

func TestLimiterTripsCircuitAfterMaxFailures(t *testing.T) {
	cfg := testLimiterConfig()
	cfg.RateLimit.MaxFailures = 2
	l := NewLimiter(cfg)

	var tripped models.ActionType
	l.OnTripped(func(actionType models.ActionType) { tripped = actionType })

	l.RecordFailure(models.ActionScreenshot)
	if !l.Allow(models.ActionScreenshot) {
		t.Fatal("Allow after 1 failure = false, want true (circuit still closed)")
	}
	l.RecordFailure(models.ActionScreenshot)

	if l.Allow(models.ActionScreenshot) {
		t.Fatal("Allow after maxFailures reached = true, want false (circuit open)")
	}
	if tripped != models.ActionScreenshot {
		t.Fatalf("OnTripped callback fired for %q, want %q", tripped, models.ActionScreenshot)
	}
}

func TestLimiterHalfOpensAfterResetTimeout(t *testing.T) {
	cfg := testLimiterConfig()
	cfg.RateLimit.MaxFailures = 1
	cfg.RateLimit.ResetTimeout = 5 * time.Millisecond
	l := NewLimiter(cfg)

	l.RecordFailure(models.ActionPDF)
	if l.Allow(models.ActionPDF) {
		t.Fatal("Allow immediately after trip = true, want false")
	}

	time.Sleep(10 * time.Millisecond)
	if !l.Allow(models.ActionPDF) {
		t.Fatal("Allow after resetTimeout elapsed = false, want true (half-open probe)")
	}
}

func TestLimiterRecordSuccessClosesHalfOpenCircuit(t *testing.T) {
	cfg := testLimiterConfig()
	cfg.RateLimit.MaxFailures = 2
	cfg.RateLimit.ResetTimeout = 5 * time.Millisecond
	l := NewLimiter(cfg)

	l.RecordFailure(models.ActionEvaluate)
	l.RecordFailure(models.ActionEvaluate)
	time.Sleep(10 * time.Millisecond)
	if !l.Allow(models.ActionEvaluate) {
		t.Fatal("half-open probe should be allowed")
	}
	l.RecordSuccess(models.ActionEvaluate)

	// A second failure should need maxFailures again, not trip instantly.
	l.RecordFailure(models.ActionEvaluate)
	if !l.Allow(models.ActionEvaluate) {
		t.Fatal("Allow after single failure post-recovery = false, want true (circuit closed, not re-tripped)")
	}
}

func TestLimiterIndependentCircuitsPerActionType(t *testing.T) {
	cfg := testLimiterConfig()
	cfg.RateLimit.MaxFailures = 1
	l := NewLimiter(cfg)

	l.RecordFailure(models.ActionClick)
	if l.Allow(models.ActionClick) {
		t.Fatal("Allow(click) after trip = true, want false")
	}
	if !l.Allow(models.ActionNavigate) {
		t.Fatal("Allow(navigate) should be unaffected by click's open circuit")
	}
}
