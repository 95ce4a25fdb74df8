package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordDecode(t *testing.T) {
	m := New()

	m.RecordDecode("xcch", "xCCH", ResultOK, 3, 456, false, time.Millisecond)
	m.RecordDecode("xcch", "xCCH", ResultCRC, 40, 456, false, time.Millisecond)
	m.RecordDecode("tch_f", "FACCH/F", ResultOK, 0, 456, true, time.Millisecond)

	if got := testutil.ToFloat64(m.decodes.WithLabelValues("xcch", "xCCH", ResultOK)); got != 1 {
		t.Errorf("Expected 1 ok decode, got %v", got)
	}
	if got := testutil.ToFloat64(m.bitErrors.WithLabelValues("xcch")); got != 43 {
		t.Errorf("Expected 43 bit errors, got %v", got)
	}
	if got := testutil.ToFloat64(m.bitsTotal.WithLabelValues("xcch")); got != 912 {
		t.Errorf("Expected 912 compared bits, got %v", got)
	}
	if got := testutil.ToFloat64(m.stolen.WithLabelValues("tch_f")); got != 1 {
		t.Errorf("Expected 1 stolen block, got %v", got)
	}
}

func TestZeroBitsSkipsBER(t *testing.T) {
	m := New()
	m.RecordDecode("rach", "RACH", ResultInvalid, 0, 0, false, 0)
	if got := testutil.CollectAndCount(m.ber); got != 0 {
		t.Errorf("Expected no BER observation, got %d series", got)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.RecordEncode("pdtch", "MCS-9")
	m.SetSubscribers(2)
	m.RecordSelfTest("CS-1", 0.01)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	expectedMetrics := []string{
		`btscodec_encodes_total{channel="pdtch",scheme="MCS-9"} 1`,
		"btscodec_event_subscribers 2",
		`btscodec_selftest_mean_ber{scheme="CS-1"} 0.01`,
		"go_goroutines",
	}
	for _, metric := range expectedMetrics {
		if !strings.Contains(bodyStr, metric) {
			t.Errorf("Expected %s in output", metric)
		}
	}
}

func TestInstancesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.RecordEncode("sch", "SCH")
	if got := testutil.ToFloat64(b.encodes.WithLabelValues("sch", "SCH")); got != 0 {
		t.Errorf("Expected separate registries, got %v", got)
	}
}
