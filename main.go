package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/SWCZ56/esp-open-rtos/internal/lightmeter"
	"github.com/SWCZ56/esp-open-rtos/internal/publisher"
	"github.com/SWCZ56/esp-open-rtos/internal/tools"
	"github.com/SWCZ56/esp-open-rtos/tsl2561"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

/*
	Entry point for the Light Meter application.
	It should be running at startup, on a Raspberry Pi, with the TSL2561 sensor connected.
*/

func main() {
	pid := os.Getpid()
	log.Println("LightMeter [" + fmt.Sprintf("%d", pid) + "]")

	// connect to the lux sensor
	device, err := tsl2561.NewTSL2561(os.Getenv("I2C_DEV"), sensorAddress())
	if err != nil {
		log.Fatalf("Failed to connect to the TSL2561 sensor: %v", err)
	}
	log.Printf("Sensor ready: package=%s gain=%s integration=%s",
		device.PackageType, device.Gain, device.IntegrationTime)

	// connect to the sqlite database
	db, err := tools.ConnectSqlite(lightmeter.DB_PATH)
	if err != nil {
		// Unlike connecting to the sensor, this should always work.
		log.Fatalf("Failed to connect to the sqlite database: %v", err)
	}

	// optional MQTT republishing, driven by MQTT_* env vars
	pub, err := publisher.NewMQTTFromEnv()
	if err != nil {
		log.Fatalf("Failed to connect to the MQTT broker: %v", err)
	}

	meter := &lightmeter.Meter{
		TSL2561:        device,
		ResultsDB:      db,
		LuxResultsChan: make(chan lightmeter.LuxResult),
		Pid:            pid,
	}
	if pub != nil {
		meter.Publisher = pub
		defer pub.Close()
	}

	// Initialize router
	r := chi.NewRouter()
	// Log requests and recover from panics
	r.Use(middleware.Logger)
	r.Use(handleServerPanic)

	defineRoutes(r, meter)

	if os.Getenv("SSL") == "true" {
		// Generate a self-signed certificate if one doesn't exist
		tools.EnsureCertificate("cert.pem", "key.pem")

		log.Printf("Starting HTTPS server on port 443")
		err = http.ListenAndServeTLS(":443", "cert.pem", "key.pem", r)
		if err != nil {
			log.Fatalf("Failed to start HTTPS server: %v", err)
		}
	} else {
		log.Printf("Starting HTTP server on port 80")
		err = http.ListenAndServe(":80", r)
		if err != nil {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}
}

// sensorAddress reads TSL2561_ADDR from the environment; the driver falls
// back to the floating-pin address when unset.
func sensorAddress() int {
	v := os.Getenv("TSL2561_ADDR")
	if v == "" {
		return 0
	}
	addr, err := strconv.ParseInt(v, 0, 0)
	if err != nil {
		log.Fatalf("Invalid TSL2561_ADDR %q: %v", v, err)
	}
	return int(addr)
}

func defineRoutes(r *chi.Mux, meter *lightmeter.Meter) {
	// Listen for any result messages from our jobs, record them in sqlite
	go meter.MonitorAndRecordResults()

	// Light Meter dashboard, restricted to the local network
	r.Group(func(r chi.Router) {
		r.Use(tools.CheckInNetwork)
		r.Get("/", meter.ServeDashboard())
		r.Post("/graph", meter.ServeResultsGraph())
	})

	// Light Meter API, these serve a JSON response
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/start", meter.Start())
		r.Get("/stop", meter.Stop())
		r.Get("/configure", meter.Configure())
		r.Get("/status", meter.ServeSensorStatus())
		r.Get("/current-conditions", meter.CurrentConditions())
		r.Get("/export", meter.ServeResultsDB())
	})

	// Route for service identification
	r.Get("/id", func(w http.ResponseWriter, r *http.Request) {
		lightmeter.ServeResponse(w, r, "Light Meter", http.StatusOK)
	})
}

func handleServerPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				lightmeter.ServeResponse(w, r, fmt.Sprintf("%v", err), http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
