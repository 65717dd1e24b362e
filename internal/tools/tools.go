package tools

import (
	"log"
	"net"
	"net/http"
	"time"
)

const dbTimeLayout = "2006-01-02 15:04:05"

// Prevent out-of-network requests to dashboard endpoints
func CheckInNetwork(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}
		parsedIP := net.ParseIP(ip)
		if parsedIP == nil {
			http.Error(w, "Invalid IP address", http.StatusBadRequest)
			return
		}
		if !isLocalAddress(parsedIP) {
			http.Error(w, "Access denied", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func isLocalAddress(ip net.IP) bool {
	privateBlocks := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
	}
	for _, block := range privateBlocks {
		_, cidr, _ := net.ParseCIDR(block)
		if cidr.Contains(ip) {
			return true
		}
	}
	return ip.IsLoopback()
}

// ParseStartAndEndDate pulls the graph date range out of the request form,
// formatted for comparison against the readings table. An empty or invalid
// range falls back to the last 24 hours.
func ParseStartAndEndDate(r *http.Request) (string, string) {
	r.ParseForm()
	now := time.Now().UTC()
	start := now.Add(-24 * time.Hour)
	end := now

	const layoutInput = "2006-01-02T15:04"
	if v := r.FormValue("start"); v != "" {
		t, err := time.Parse(layoutInput, v)
		if err != nil {
			log.Println("Error parsing start date:", err)
		} else {
			start = t.UTC()
		}
	}
	if v := r.FormValue("end"); v != "" {
		t, err := time.Parse(layoutInput, v)
		if err != nil {
			log.Println("Error parsing end date:", err)
		} else {
			end = t.UTC()
		}
	}
	return start.Format(dbTimeLayout), end.Format(dbTimeLayout)
}

// StartAndEndDateToTime parses a range already in DB format back into times.
func StartAndEndDateToTime(startDate string, endDate string) (time.Time, time.Time, error) {
	start, err := time.Parse(dbTimeLayout, startDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := time.Parse(dbTimeLayout, endDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}
