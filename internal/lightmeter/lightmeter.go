package lightmeter

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/SWCZ56/esp-open-rtos/internal/publisher"
	"github.com/SWCZ56/esp-open-rtos/internal/tools"
	"github.com/SWCZ56/esp-open-rtos/tsl2561"
	"github.com/google/uuid"
)

// Meter wraps one TSL2561 with result recording and the HTTP control
// surface. The sensor handle is only ever touched from the acquisition
// goroutine or a Configure request; the chip sits disabled between
// acquisitions.
type Meter struct {
	*tsl2561.TSL2561
	LuxResultsChan chan LuxResult
	ResultsDB      *sql.DB
	Publisher      publisher.Publisher
	Pid            int

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
}

type LuxResult struct {
	Lux          uint32
	Channel0     uint16
	Channel1     uint16
	FullSpectrum float64
	Visible      float64
	Infrared     float64
	JobID        string
}

type Conditions struct {
	JobID                string  `json:"jobID"`
	Lux                  uint32  `json:"lux"`
	FullSpectrum         float64 `json:"fullSpectrum"`
	Visible              float64 `json:"visible"`
	Infrared             float64 `json:"infrared"`
	DateRange            string  `json:"dateRange"`
	AverageLuxInRange    float64 `json:"averageLuxInRange"`
	ReadingsInRange      int     `json:"readingsInRange"`
	RecordedHoursInRange float64 `json:"recordedHoursInRange"`
}

const (
	MAX_JOB_DURATION = 8 * time.Hour
	RECORD_INTERVAL  = 30 * time.Second
	DB_PATH          = "lightmeter.db"
)

// Start the sensor, and collect data in a loop
func (m *Meter) Start() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Println("It's going to be a bright day!")
		if m.TSL2561 == nil {
			ServeResponse(w, r, "The sensor is not connected", http.StatusBadRequest)
			return
		} else if m.Running() {
			ServeResponse(w, r, "The sensor is already started", http.StatusBadRequest)
			return
		}

		// Create a new context with a timeout to manage the job lifecycle
		ctx, cancel := context.WithTimeout(context.Background(), MAX_JOB_DURATION)
		m.mu.Lock()
		m.cancel = cancel
		m.running = true
		m.mu.Unlock()

		go func() {
			defer m.setRunning(false)

			jobID := uuid.New().String()
			ticker := time.NewTicker(RECORD_INTERVAL)
			defer ticker.Stop()
			for {
				// Check if we've cancelled this job.
				select {
				case <-ctx.Done():
					log.Println("Job Cancelled, stopping sensor")
					return
				default:
				}

				// Each acquisition powers the chip up, waits out the
				// integration window, and powers it back down.
				ch0, ch1 := m.GetChannelData()
				lux := m.CalculateLux(ch0, ch1)

				m.LuxResultsChan <- LuxResult{
					Lux:          lux,
					Channel0:     ch0,
					Channel1:     ch1,
					FullSpectrum: tsl2561.GetNormalizedOutput(tsl2561.FullSpectrum, ch0, ch1),
					Visible:      tsl2561.GetNormalizedOutput(tsl2561.Visible, ch0, ch1),
					Infrared:     tsl2561.GetNormalizedOutput(tsl2561.Infrared, ch0, ch1),
					JobID:        jobID,
				}

				select {
				case <-ctx.Done():
					log.Println("Job Cancelled, stopping sensor")
					return
				case <-ticker.C:
				}
			}
		}()
		ServeResponse(w, r, "Light Reading Started", http.StatusOK)
	}
}

// Stop the acquisition job
func (m *Meter) Stop() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m.TSL2561 == nil {
			ServeResponse(w, r, "The sensor is not connected", http.StatusBadRequest)
			return
		} else if !m.Running() {
			ServeResponse(w, r, "The sensor is already stopped", http.StatusBadRequest)
			return
		}

		m.mu.Lock()
		cancel := m.cancel
		m.mu.Unlock()
		cancel()

		ServeResponse(w, r, "Light Reading Stopped", http.StatusOK)
	}
}

// Configure applies gain and integration-time settings from query params,
// e.g. /configure?gain=16x&integration=101ms
func (m *Meter) Configure() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m.TSL2561 == nil {
			ServeResponse(w, r, "The sensor is not connected", http.StatusBadRequest)
			return
		} else if m.Running() {
			ServeResponse(w, r, "Stop the current job before reconfiguring", http.StatusBadRequest)
			return
		}

		if v := r.URL.Query().Get("gain"); v != "" {
			gain, err := parseGain(v)
			if err != nil {
				ServeResponse(w, r, err.Error(), http.StatusBadRequest)
				return
			}
			m.SetGain(gain)
		}
		if v := r.URL.Query().Get("integration"); v != "" {
			it, err := parseIntegrationTime(v)
			if err != nil {
				ServeResponse(w, r, err.Error(), http.StatusBadRequest)
				return
			}
			m.SetIntegrationTime(it)
		}

		ServeResponse(w, r, fmt.Sprintf("Sensor configured: gain=%s integration=%s",
			m.Gain, m.IntegrationTime), http.StatusOK)
	}
}

func parseGain(v string) (tsl2561.Gain, error) {
	switch v {
	case "1x":
		return tsl2561.Gain1X, nil
	case "16x":
		return tsl2561.Gain16X, nil
	}
	return 0, fmt.Errorf("unknown gain %q, expected 1x or 16x", v)
}

func parseIntegrationTime(v string) (tsl2561.IntegrationTime, error) {
	switch v {
	case "13ms":
		return tsl2561.IntegrationTime13ms, nil
	case "101ms":
		return tsl2561.IntegrationTime101ms, nil
	case "402ms":
		return tsl2561.IntegrationTime402ms, nil
	}
	return 0, fmt.Errorf("unknown integration time %q, expected 13ms, 101ms or 402ms", v)
}

// Serve data about the most recent entry saved to the db
func (m *Meter) CurrentConditions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m.TSL2561 == nil {
			ServeResponse(w, r, "The sensor is not connected", http.StatusBadRequest)
			return
		}
		conditions, err := m.getCurrentConditions(r)
		if err != nil {
			log.Println(err)
			ServeResponse(w, r, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(conditions)
	}
}

// ServeSensorStatus reports the sensor's connection state and cached configuration
func (m *Meter) ServeSensorStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type Status struct {
			Connected       bool   `json:"connected"`
			Running         bool   `json:"running"`
			Address         string `json:"address,omitempty"`
			PackageType     string `json:"packageType,omitempty"`
			Gain            string `json:"gain,omitempty"`
			IntegrationTime string `json:"integrationTime,omitempty"`
		}
		status := Status{}
		if m.TSL2561 != nil {
			status.Connected = true
			status.Running = m.Running()
			status.Address = fmt.Sprintf("%#02x", m.Addr)
			status.PackageType = m.PackageType.String()
			status.Gain = m.Gain.String()
			status.IntegrationTime = m.IntegrationTime.String()
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(status)
	}
}

// Return the most recent entry saved to the db, with stats for the request's
// date range folded in
func (m *Meter) getCurrentConditions(r *http.Request) (Conditions, error) {
	conditions := Conditions{}
	row := m.ResultsDB.QueryRow(
		"SELECT job_id, lux, full_spectrum, visible, infrared FROM readings ORDER BY id DESC LIMIT 1")
	err := row.Scan(&conditions.JobID, &conditions.Lux, &conditions.FullSpectrum,
		&conditions.Visible, &conditions.Infrared)
	if err == sql.ErrNoRows {
		return conditions, nil
	} else if err != nil {
		return Conditions{}, err
	}

	startDate, endDate := tools.ParseStartAndEndDate(r)
	conditions.DateRange = startDate + " - " + endDate
	row = m.ResultsDB.QueryRow(
		"SELECT COALESCE(AVG(lux), 0), COUNT(*) FROM readings WHERE created_at BETWEEN ? AND ?",
		startDate, endDate)
	if err := row.Scan(&conditions.AverageLuxInRange, &conditions.ReadingsInRange); err != nil {
		return Conditions{}, err
	}
	conditions.RecordedHoursInRange = float64(conditions.ReadingsInRange) * RECORD_INTERVAL.Hours()
	return conditions, nil
}

// Read from LuxResultsChan, write the results to sqlite
func (m *Meter) MonitorAndRecordResults() {
	log.Println("Monitoring for new light readings...")
	for result := range m.LuxResultsChan {
		log.Println(fmt.Sprintf("- JobID: %s, Lux: %d", result.JobID, result.Lux))
		if err := m.recordResult(result); err != nil {
			log.Println(err)
		}
	}
}

// recordResult saves one reading and republishes it if a publisher is wired
func (m *Meter) recordResult(result LuxResult) error {
	_, err := m.ResultsDB.Exec(
		"INSERT INTO readings (job_id, lux, channel0, channel1, full_spectrum, visible, infrared, gain, integration_time) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		result.JobID,
		result.Lux,
		result.Channel0,
		result.Channel1,
		fmt.Sprintf("%.5e", result.FullSpectrum),
		fmt.Sprintf("%.5e", result.Visible),
		fmt.Sprintf("%.5e", result.Infrared),
		m.Gain.String(),
		m.IntegrationTime.String(),
	)
	if err != nil {
		return err
	}

	if m.Publisher != nil {
		if err := m.Publisher.Publish(publisher.Reading{
			JobID:           result.JobID,
			Lux:             result.Lux,
			FullSpectrum:    result.FullSpectrum,
			Visible:         result.Visible,
			Infrared:        result.Infrared,
			Gain:            m.Gain.String(),
			IntegrationTime: m.IntegrationTime.String(),
			Timestamp:       time.Now().UTC(),
		}); err != nil {
			log.Println("Failed to publish reading:", err)
		}
	}
	return nil
}

// Running reports whether an acquisition job is active.
func (m *Meter) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Meter) setRunning(v bool) {
	m.mu.Lock()
	m.running = v
	m.mu.Unlock()
}

// Populate the response with a JSON message
func ServeResponse(w http.ResponseWriter, r *http.Request, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}
