package observability

import (
	"testing"
	"time"

	"github.com/MewKitBit/Solaris/internal/testutil/testlog"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)

	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("solarisctl", "GET", "/api/v1/farm", 200, 12*time.Millisecond)
	RecordStep(10500.5, 0.97, 0.93)
	RecordFailureObserved()
	RecordReplacements(2)
	RecordIDSpaceReserved(40)
	RecordSoilingMagnitude(0.0012)
}
