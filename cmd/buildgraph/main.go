// Command buildgraph renders PNG charts from the JSON session reports
// written by cmd/bench: one chart per simulated CPU count, throughput per
// implementation across concurrency settings, with the spread of the
// iterations shown as error bars.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// BenchmarkResult mirrors the result schema written by cmd/bench.
type BenchmarkResult struct {
	Implementation      string  `json:"implementation"`
	NumProducers        int     `json:"num_producers"`
	NumConsumers        int     `json:"num_consumers"`
	Capacity            int     `json:"capacity"`
	NumMessages         int64   `json:"num_messages"`
	NumMessagesConsumed int64   `json:"num_messages_consumed"`
	TestDuration        string  `json:"test_duration"`
	ActualElapsed       string  `json:"actual_elapsed"`
	Throughput          float64 `json:"throughput_msgs_sec"`
	Timestamp           int64   `json:"timestamp"`
	GoVersion           string  `json:"go_version"`
}

// SystemInfo mirrors the system info schema written by cmd/bench.
type SystemInfo struct {
	NumCPU            int     `json:"num_cpu"`
	TrueCPU           int     `json:"true_cpu,omitempty"`
	SimulatedCPUCount int     `json:"simulated_cpu_count,omitempty"`
	CPUModel          string  `json:"cpu_model,omitempty"`
	CPUSpeedMHz       float64 `json:"cpu_speed_mhz,omitempty"`
	GOARCH            string  `json:"go_arch"`
	TotalMemory       uint64  `json:"total_memory_bytes,omitempty"`
}

// FullReport represents a complete bench session.
type FullReport struct {
	SessionTime string            `json:"session_time"`
	SystemInfo  SystemInfo        `json:"system_info"`
	Benchmarks  []BenchmarkResult `json:"benchmarks"`
}

// workerStats holds min/median/max throughput for one worker count.
type workerStats struct {
	x      float64 // category index on the X axis
	orig   float64 // original worker count
	min    float64
	median float64
	max    float64
}

// statsPoints implements plotter.XYer and plotter.YErrorer so each
// implementation can be drawn as a line with error bars.
type statsPoints []workerStats

func (s statsPoints) Len() int                { return len(s) }
func (s statsPoints) XY(i int) (x, y float64) { return s[i].x, s[i].median }
func (s statsPoints) YError(i int) (low, high float64) {
	return s[i].median - s[i].min, s[i].max - s[i].median
}

// categoryTicks places worker-count labels at category positions 0,1,2,...
type categoryTicks struct {
	positions []float64
	labels    []string
}

func (ct categoryTicks) Ticks(min, max float64) []plot.Tick {
	var ticks []plot.Tick
	for i, pos := range ct.positions {
		if pos >= min && pos <= max {
			ticks = append(ticks, plot.Tick{Value: pos, Label: ct.labels[i]})
		}
	}
	return ticks
}

func main() {
	jsonFile := flag.String("jsonfile", "test-results.json", "Path to JSON file containing bench sessions")
	outputPrefix := flag.String("out", "benchmark_graph", "Output graph image filename prefix")
	flag.Parse()

	data, err := os.ReadFile(*jsonFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading JSON file: %v\n", err)
		os.Exit(1)
	}

	var sessions []FullReport
	if err := json.Unmarshal(data, &sessions); err != nil {
		fmt.Fprintf(os.Stderr, "Error unmarshalling JSON: %v\n", err)
		os.Exit(1)
	}

	// Group throughput samples by CPU count -> implementation -> workers.
	samplesByCPU := make(map[int]map[string]map[float64][]float64)
	for _, session := range sessions {
		cpus := session.SystemInfo.SimulatedCPUCount
		if cpus == 0 {
			cpus = session.SystemInfo.NumCPU
		}
		if _, ok := samplesByCPU[cpus]; !ok {
			samplesByCPU[cpus] = make(map[string]map[float64][]float64)
		}
		for _, b := range session.Benchmarks {
			if b.Throughput <= 0 {
				continue
			}
			workers := float64(b.NumProducers + b.NumConsumers)
			implMap := samplesByCPU[cpus]
			if _, ok := implMap[b.Implementation]; !ok {
				implMap[b.Implementation] = make(map[float64][]float64)
			}
			implMap[b.Implementation][workers] = append(implMap[b.Implementation][workers], b.Throughput)
		}
	}

	for cpus, implMap := range samplesByCPU {
		if err := renderChart(cpus, implMap, *outputPrefix); err != nil {
			fmt.Fprintf(os.Stderr, "Error rendering chart for %d CPU(s): %v\n", cpus, err)
		}
	}
}

// renderChart draws one PNG for a given CPU count.
func renderChart(cpus int, implMap map[string]map[float64][]float64, outputPrefix string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Throughput (min / median / max) vs. Workers for %d CPU(s)", cpus)
	p.X.Label.Text = "NumProducers + NumConsumers"
	p.Y.Label.Text = "Throughput (msgs/sec)"
	p.Legend.Top = true
	p.Legend.Left = true
	p.Add(plotter.NewGrid())

	// Union of worker counts across implementations, mapped onto a
	// categorical axis so sparse settings stay evenly spaced.
	workerSet := make(map[float64]struct{})
	for _, implData := range implMap {
		for w := range implData {
			workerSet[w] = struct{}{}
		}
	}
	var workerValues []float64
	for w := range workerSet {
		workerValues = append(workerValues, w)
	}
	sort.Float64s(workerValues)

	mapping := make(map[float64]float64)
	var positions []float64
	var labels []string
	for i, w := range workerValues {
		mapping[w] = float64(i)
		positions = append(positions, float64(i))
		labels = append(labels, strconv.FormatFloat(w, 'f', -1, 64))
	}
	p.X.Tick.Marker = categoryTicks{positions: positions, labels: labels}

	var implNames []string
	for name := range implMap {
		implNames = append(implNames, name)
	}
	sort.Strings(implNames)

	colors := plotutil.SoftColors
	shapes := []draw.GlyphDrawer{
		draw.CircleGlyph{},
		draw.SquareGlyph{},
		draw.TriangleGlyph{},
		draw.CrossGlyph{},
		draw.PlusGlyph{},
	}

	// Slight X offset per implementation so error bars don't overlap.
	offsetRange := 0.3
	offsetStep := offsetRange / float64(len(implNames))
	startOffset := -offsetRange/2 + offsetStep/2

	for i, name := range implNames {
		stats := buildStats(implMap[name])
		if len(stats) == 0 {
			continue
		}
		for j := range stats {
			stats[j].x = mapping[stats[j].orig] + startOffset + float64(i)*offsetStep
		}
		sort.Slice(stats, func(a, b int) bool { return stats[a].x < stats[b].x })
		sp := statsPoints(stats)

		line, err := plotter.NewLine(sp)
		if err != nil {
			return err
		}
		line.Color = colors[i%len(colors)]

		points, err := plotter.NewScatter(sp)
		if err != nil {
			return err
		}
		points.GlyphStyle.Radius = vg.Points(4)
		points.Color = colors[i%len(colors)]
		points.Shape = shapes[i%len(shapes)]

		errBars, err := plotter.NewYErrorBars(sp)
		if err != nil {
			return err
		}
		errBars.Color = colors[i%len(colors)]

		p.Add(line, points, errBars)
		p.Legend.Add(name, line, points)
	}

	filename := fmt.Sprintf("%s_%d.png", outputPrefix, cpus)
	if err := p.Save(12*vg.Inch, 8*vg.Inch, filename); err != nil {
		return err
	}
	fmt.Printf("Graph for %d CPU(s) saved to %s\n", cpus, filename)
	return nil
}

// buildStats reduces the raw throughput samples per worker count to
// min, median and max.
func buildStats(samples map[float64][]float64) []workerStats {
	var out []workerStats
	for w, vals := range samples {
		if len(vals) == 0 {
			continue
		}
		sort.Float64s(vals)
		out = append(out, workerStats{
			orig:   w,
			min:    vals[0],
			median: median(vals),
			max:    vals[len(vals)-1],
		})
	}
	return out
}

func median(sorted []float64) float64 {
	n := len(sorted)
	mid := n / 2
	if n%2 == 1 {
		return sorted[mid]
	}
	return 0.5 * (sorted[mid-1] + sorted[mid])
}
