package lightmeter

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/SWCZ56/esp-open-rtos/internal/publisher"
	"github.com/SWCZ56/esp-open-rtos/internal/tools"
	"github.com/SWCZ56/esp-open-rtos/tsl2561"
)

// stubConn satisfies tsl2561.Conn so Configure can drive the setters
// without hardware.
type stubConn struct{}

func (s stubConn) ReadReg(reg byte, buf []byte) error  { return nil }
func (s stubConn) WriteReg(reg byte, buf []byte) error { return nil }
func (s stubConn) Close() error                        { return nil }

type capturingPublisher struct {
	published []publisher.Reading
}

func (c *capturingPublisher) Publish(r publisher.Reading) error {
	c.published = append(c.published, r)
	return nil
}

func (c *capturingPublisher) Close() error { return nil }

func newTestMeter(t *testing.T) *Meter {
	t.Helper()
	db, err := tools.ConnectSqlite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("connect sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &Meter{
		TSL2561: &tsl2561.TSL2561{
			Device:          stubConn{},
			PackageType:     tsl2561.PackageTFNCL,
			Gain:            tsl2561.Gain16X,
			IntegrationTime: tsl2561.IntegrationTime402ms,
		},
		ResultsDB:      db,
		LuxResultsChan: make(chan LuxResult),
	}
}

func TestRecordAndCurrentConditions(t *testing.T) {
	m := newTestMeter(t)

	if err := m.recordResult(LuxResult{
		Lux:          1234,
		Channel0:     500,
		Channel1:     120,
		FullSpectrum: 500.0 / 0xFFFF,
		Visible:      380.0 / 0xFFFF,
		Infrared:     120.0 / 0xFFFF,
		JobID:        "job-1",
	}); err != nil {
		t.Fatalf("recordResult: %v", err)
	}

	r := httptest.NewRequest(http.MethodGet, "/current-conditions", nil)
	conditions, err := m.getCurrentConditions(r)
	if err != nil {
		t.Fatalf("getCurrentConditions: %v", err)
	}
	if conditions.JobID != "job-1" || conditions.Lux != 1234 {
		t.Errorf("conditions = %+v; want job-1 at 1234 lux", conditions)
	}
	if conditions.ReadingsInRange != 1 {
		t.Errorf("ReadingsInRange = %d; want 1", conditions.ReadingsInRange)
	}
}

func TestCurrentConditionsEmptyDB(t *testing.T) {
	m := newTestMeter(t)
	r := httptest.NewRequest(http.MethodGet, "/current-conditions", nil)
	conditions, err := m.getCurrentConditions(r)
	if err != nil {
		t.Fatalf("getCurrentConditions on empty db: %v", err)
	}
	if conditions.JobID != "" || conditions.Lux != 0 {
		t.Errorf("conditions = %+v; want zero value", conditions)
	}
}

func TestRecordResultPublishes(t *testing.T) {
	m := newTestMeter(t)
	pub := &capturingPublisher{}
	m.Publisher = pub

	if err := m.recordResult(LuxResult{Lux: 42, JobID: "job-2"}); err != nil {
		t.Fatalf("recordResult: %v", err)
	}
	if len(pub.published) != 1 {
		t.Fatalf("published %d readings; want 1", len(pub.published))
	}
	got := pub.published[0]
	if got.Lux != 42 || got.JobID != "job-2" {
		t.Errorf("published reading = %+v", got)
	}
	if got.Gain != "16x" || got.IntegrationTime != "402ms" {
		t.Errorf("published config = %s/%s; want 16x/402ms", got.Gain, got.IntegrationTime)
	}
}

func TestStartWithoutSensor(t *testing.T) {
	m := &Meter{}
	w := httptest.NewRecorder()
	m.Start()(w, httptest.NewRequest(http.MethodGet, "/start", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d; want %d", w.Code, http.StatusBadRequest)
	}
}

func TestStopWhenNotRunning(t *testing.T) {
	m := newTestMeter(t)
	w := httptest.NewRecorder()
	m.Stop()(w, httptest.NewRequest(http.MethodGet, "/stop", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d; want %d", w.Code, http.StatusBadRequest)
	}
}

func TestConfigure(t *testing.T) {
	m := newTestMeter(t)

	w := httptest.NewRecorder()
	m.Configure()(w, httptest.NewRequest(http.MethodGet, "/configure?gain=1x&integration=101ms", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if m.Gain != tsl2561.Gain1X {
		t.Errorf("Gain = %v; want 1x", m.Gain)
	}
	if m.IntegrationTime != tsl2561.IntegrationTime101ms {
		t.Errorf("IntegrationTime = %v; want 101ms", m.IntegrationTime)
	}

	w = httptest.NewRecorder()
	m.Configure()(w, httptest.NewRequest(http.MethodGet, "/configure?gain=4x", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad gain status = %d; want %d", w.Code, http.StatusBadRequest)
	}
	// The rejected request must not have touched the cached settings
	if m.Gain != tsl2561.Gain1X || m.IntegrationTime != tsl2561.IntegrationTime101ms {
		t.Errorf("configuration changed by rejected request: %v/%v", m.Gain, m.IntegrationTime)
	}
}

func TestServeSensorStatus(t *testing.T) {
	m := newTestMeter(t)
	w := httptest.NewRecorder()
	m.ServeSensorStatus()(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var status map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if status["connected"] != true {
		t.Errorf("connected = %v; want true", status["connected"])
	}
	if status["gain"] != "16x" || status["integrationTime"] != "402ms" {
		t.Errorf("status = %v", status)
	}

	// Disconnected meter still answers
	w = httptest.NewRecorder()
	(&Meter{}).ServeSensorStatus()(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if status["connected"] != false {
		t.Errorf("connected = %v; want false", status["connected"])
	}
}
