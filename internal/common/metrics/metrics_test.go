package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// === HTTP Metrics Tests ===

func TestHTTPRequests_Labels(t *testing.T) {
	methods := []string{"GET", "POST", "PUT", "DELETE"}
	statuses := []string{"200", "201", "400", "403", "404", "409", "500"}

	for _, method := range methods {
		for _, status := range statuses {
			HTTPRequests.WithLabelValues(method, "/users", status).Inc()
		}
	}

	counter := HTTPRequests.WithLabelValues("GET", "/users", "200")
	if counter == nil {
		t.Error("Expected counter to be non-nil")
	}
}

func TestHTTPDuration_Observe(t *testing.T) {
	durations := []float64{0.001, 0.01, 0.1, 0.5, 1.0}
	for _, d := range durations {
		HTTPDuration.WithLabelValues("GET", "/users").Observe(d)
	}

	histogram := HTTPDuration.WithLabelValues("GET", "/users")
	if histogram == nil {
		t.Error("Expected histogram to be non-nil")
	}
}

func TestHTTPRateLimited_Counter(t *testing.T) {
	HTTPRateLimited.Inc()
	HTTPRateLimited.Add(5)

	desc := HTTPRateLimited.Desc()
	if desc == nil {
		t.Error("Expected Desc to be non-nil")
	}
}

// === Model Metrics Tests ===

func TestModelOperationTotal_Labels(t *testing.T) {
	operations := []string{"getAll", "getOne", "count", "addOne", "updateOne", "deleteOne"}
	results := []string{"success", "constraint_violation", "timeout", "internal"}

	for _, operation := range operations {
		for _, result := range results {
			ModelOperationTotal.WithLabelValues("users", operation, result).Inc()
		}
	}

	counter := ModelOperationTotal.WithLabelValues("users", "getAll", "success")
	if counter == nil {
		t.Error("Expected counter to be non-nil")
	}
}

func TestModelOperationDuration_Observe(t *testing.T) {
	ModelOperationDuration.WithLabelValues("users", "getAll").Observe(0.015)
	ModelOperationDuration.WithLabelValues("departments", "getOne").Observe(0.002)

	histogram := ModelOperationDuration.WithLabelValues("users", "getAll")
	if histogram == nil {
		t.Error("Expected histogram to be non-nil")
	}
}

func TestCacheLookups_Outcomes(t *testing.T) {
	for _, outcome := range []string{"hit", "miss", "bypass"} {
		CacheLookups.WithLabelValues("users", outcome).Inc()
	}

	counter := CacheLookups.WithLabelValues("users", "hit")
	if counter == nil {
		t.Error("Expected counter to be non-nil")
	}
}

// === Changefeed Metrics Tests ===

func TestChangeEventsPublished_Labels(t *testing.T) {
	for _, operation := range []string{"create", "update", "delete"} {
		for _, result := range []string{"success", "failed"} {
			ChangeEventsPublished.WithLabelValues("users", operation, result).Inc()
		}
	}

	counter := ChangeEventsPublished.WithLabelValues("users", "create", "success")
	if counter == nil {
		t.Error("Expected counter to be non-nil")
	}
}

// === Counter Value Tests ===

func TestCounterValue(t *testing.T) {
	// Create a new registry for isolated testing
	reg := prometheus.NewRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_counter",
		Help: "Test counter",
	})

	reg.MustRegister(counter)

	counter.Add(5)

	val := testutil.ToFloat64(counter)
	if val != 5 {
		t.Errorf("Expected counter value 5, got %f", val)
	}

	counter.Inc()

	val = testutil.ToFloat64(counter)
	if val != 6 {
		t.Errorf("Expected counter value 6, got %f", val)
	}
}

// === Metrics Integration Tests ===

func TestModelMetricsIntegration(t *testing.T) {
	entity := "integration-test-entity"

	// Simulate a burst of store operations
	for i := 0; i < 100; i++ {
		if i%10 == 0 {
			ModelOperationTotal.WithLabelValues(entity, "addOne", "constraint_violation").Inc()
		} else {
			ModelOperationTotal.WithLabelValues(entity, "getAll", "success").Inc()
		}
		ModelOperationDuration.WithLabelValues(entity, "getAll").Observe(float64(i) * 0.001)
	}

	// All operations should succeed without panic
}

// Benchmark for counter operations
func BenchmarkCounterInc(b *testing.B) {
	counter := HTTPRequests.WithLabelValues("GET", "/users", "200")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		counter.Inc()
	}
}

// Benchmark for histogram observations
func BenchmarkHistogramObserve(b *testing.B) {
	histogram := ModelOperationDuration.WithLabelValues("bench-entity", "getAll")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		histogram.Observe(0.123)
	}
}
