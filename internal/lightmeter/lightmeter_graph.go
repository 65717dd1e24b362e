package lightmeter

import (
	"fmt"
	"log"
	"math"
	"net/http"
	"time"

	"github.com/SWCZ56/esp-open-rtos/internal/tools"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
)

// Reference lux levels drawn behind the readings so the chart reads at a
// glance. Rough daylight categories.
var luxLevels = []struct {
	level int
	title string
	color string
}{
	{500, "Shade", "DarkGrey"},
	{1000, "Partial Shade", "WhiteSmoke"},
	{10000, "Partial Sun", "SkyBlue"},
	{25000, "Full Sun", "Yellow"},
}

// Serve the sqlite db for download
func (m *Meter) ServeResultsDB() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", DB_PATH))
		w.Header().Set("Content-Type", "application/octet-stream")
		http.ServeFile(w, r, DB_PATH)
	}
}

// Serve the homepage: the lux graph over the default date range
func (m *Meter) ServeDashboard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.renderGraph(w, r)
	}
}

// Serve the results graph for a requested date range
func (m *Meter) ServeResultsGraph() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.renderGraph(w, r)
	}
}

func (m *Meter) renderGraph(w http.ResponseWriter, r *http.Request) {
	startDate, endDate := tools.ParseStartAndEndDate(r)

	rows, err := m.ResultsDB.Query(
		"SELECT lux, created_at FROM readings WHERE created_at BETWEEN ? AND ? ORDER BY created_at",
		startDate, endDate)
	if err != nil {
		log.Println(err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	// Prepare the data for the chart
	var luxValues []opts.LineData
	var timeValues []string
	var maxLux int
	for rows.Next() {
		var lux uint32
		var createdAt time.Time
		if err := rows.Scan(&lux, &createdAt); err != nil {
			log.Println(err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		if int(lux) > maxLux {
			// Round up to the nearest 5000
			maxLux = int(math.Ceil(float64(lux)/5000) * 5000)
		}
		luxValues = append(luxValues, opts.LineData{Value: lux})
		timeValues = append(timeValues, createdAt.Format("2006-01-02 15:04:05"))
	}
	if err := rows.Err(); err != nil {
		log.Println(err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	line := charts.NewLine()

	// Flat series for each daylight category
	for _, lvl := range luxLevels {
		data := make([]opts.LineData, len(timeValues))
		for i := range data {
			data[i] = opts.LineData{Value: lvl.level}
		}
		line.AddSeries(lvl.title, data,
			charts.WithLineChartOpts(opts.LineChart{Color: lvl.color}))
	}

	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:     types.ThemeChalk,
			PageTitle: "Light Meter",
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Name: "Time",
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name: "Lux",
			Min:  "0",
			Max:  fmt.Sprintf("%d", maxLux),
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:      true,
			Trigger:   "axis",
			TriggerOn: "mousemove",
		}),
		charts.WithToolboxOpts(opts.Toolbox{
			Show: true,
			Feature: &opts.ToolBoxFeature{
				SaveAsImage: &opts.ToolBoxFeatureSaveAsImage{
					Show:  true,
					Title: "Save as Image",
					Name:  "light-meter",
				},
			},
		}),
	)
	line.SetXAxis(timeValues).AddSeries("Lux", luxValues)

	page := components.NewPage()
	page.AddCharts(line)

	w.Header().Set("Content-Type", "text/html")
	if err := page.Render(w); err != nil {
		log.Println(err)
	}
}
