package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"gopkg.in/yaml.v3"

	"github.com/queuetools/monitorq/internal/queue"
	"github.com/queuetools/monitorq/internal/testbench"
	"github.com/queuetools/monitorq/pkg/chanq"
	"github.com/queuetools/monitorq/pkg/monitorq"
)

// benchQueue is the runtime view of the queue contract the bench drives.
type benchQueue = queue.BlockingQueue[*int]

// BenchmarkResult holds results for one test run.
type BenchmarkResult struct {
	Implementation      string  `json:"implementation"`
	NumProducers        int     `json:"num_producers"`
	NumConsumers        int     `json:"num_consumers"`
	Capacity            int     `json:"capacity"`
	NumMessages         int64   `json:"num_messages"`          // produced count
	NumMessagesConsumed int64   `json:"num_messages_consumed"` // consumed count
	TestDuration        string  `json:"test_duration"`         // e.g. "5s"
	ActualElapsed       string  `json:"actual_elapsed"`        // measured time
	Throughput          float64 `json:"throughput_msgs_sec"`   // based on consumed count
	Timestamp           int64   `json:"timestamp"`
	GoVersion           string  `json:"go_version"`
}

// SystemInfo holds system information.
type SystemInfo struct {
	NumCPU            int     `json:"num_cpu"`
	TrueCPU           int     `json:"true_cpu,omitempty"`
	SimulatedCPUCount int     `json:"simulated_cpu_count,omitempty"`
	CPUModel          string  `json:"cpu_model,omitempty"`
	CPUSpeedMHz       float64 `json:"cpu_speed_mhz,omitempty"`
	GOARCH            string  `json:"go_arch"`
	TotalMemory       uint64  `json:"total_memory_bytes,omitempty"`
}

// FullReport represents a complete test session.
type FullReport struct {
	SessionTime string            `json:"session_time"`
	SystemInfo  SystemInfo        `json:"system_info"`
	Benchmarks  []BenchmarkResult `json:"benchmarks"`
}

// Implementation describes one queue implementation under test.
type Implementation struct {
	name        string
	description string
	pkgName     string
	features    []string
	newQueue    func(capacity int) benchQueue
}

// benchFile is the YAML layout accepted by -config.
type benchFile struct {
	Duration    string             `yaml:"duration"`
	Capacity    int                `yaml:"capacity"`
	Concurrency []testbench.Config `yaml:"concurrency"`
}

// loadBenchFile reads a YAML bench configuration and applies whatever
// fields it sets on top of the flag defaults.
func loadBenchFile(path string, duration *time.Duration, capacity *int, configs *[]testbench.Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config %q: %w", path, err)
	}
	var bf benchFile
	if err := yaml.Unmarshal(data, &bf); err != nil {
		return fmt.Errorf("parsing config %q: %w", path, err)
	}
	if bf.Duration != "" {
		d, err := time.ParseDuration(bf.Duration)
		if err != nil {
			return fmt.Errorf("config %q: bad duration: %w", path, err)
		}
		*duration = d
	}
	if bf.Capacity > 0 {
		*capacity = bf.Capacity
	}
	if len(bf.Concurrency) > 0 {
		for _, c := range bf.Concurrency {
			if c.NumProducers <= 0 || c.NumConsumers <= 0 {
				return fmt.Errorf("config %q: producers and consumers must be positive", path)
			}
		}
		*configs = bf.Concurrency
	}
	return nil
}

// outputMarkdownTable loads the JSON file and outputs a Markdown table.
func outputMarkdownTable(jsonFile string) {
	data, err := os.ReadFile(jsonFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading JSON file %q: %v\n", jsonFile, err)
		os.Exit(1)
	}
	var sessions []FullReport
	if err := json.Unmarshal(data, &sessions); err != nil {
		fmt.Fprintf(os.Stderr, "Error unmarshalling JSON: %v\n", err)
		os.Exit(1)
	}
	if len(sessions) == 0 {
		fmt.Fprintln(os.Stderr, "No sessions found in JSON.")
		os.Exit(1)
	}
	// Use the last session for the table.
	lastSession := sessions[len(sessions)-1]
	implMetaMap := make(map[string]Implementation)
	for _, impl := range getImplementations() {
		implMetaMap[impl.name] = impl
	}
	type tableRow struct {
		implementation string
		pkgName        string
		features       string
		throughput     float64
	}
	var rows []tableRow
	for _, bench := range lastSession.Benchmarks {
		meta, ok := implMetaMap[bench.Implementation]
		var pkgName, features string
		if ok {
			pkgName = meta.pkgName
			features = strings.Join(meta.features, ", ")
		}
		rows = append(rows, tableRow{
			implementation: bench.Implementation,
			pkgName:        pkgName,
			features:       features,
			throughput:     bench.Throughput,
		})
	}
	// Sort rows by throughput descending.
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].throughput > rows[j].throughput
	})
	fmt.Println("## Last Session Benchmark Summary")
	fmt.Println()
	fmt.Println("| Implementation           | Package         | Features                            | Throughput (msgs/sec) |")
	fmt.Println("|--------------------------|-----------------|-------------------------------------|-----------------------|")
	for _, r := range rows {
		fmt.Printf("| %-24s | %-15s | %-35s | %21.0f |\n",
			r.implementation, r.pkgName, r.features, r.throughput)
	}
}

func main() {
	// Flags.
	testIterations := flag.Int("iter", 5, "Number of test iterations per concurrency setting")
	cpuMaxFlag := flag.Int("cpu", 0, "If non-zero, test only that GOMAXPROCS value; if 0, test common CPU/vCPU values up to runtime.NumCPU()")
	durationFlag := flag.Duration("duration", 5*time.Second, "Test duration per iteration")
	capacityFlag := flag.Int("capacity", 1024, "Queue capacity used for all runs")
	configFile := flag.String("config", "", "Optional YAML file overriding duration, capacity and concurrency settings")
	jsonExport := flag.Bool("json", false, "Export results as JSON to test-results.json")
	highConcurrency := flag.Bool("high-concurrency", false, "Include high concurrency configurations")
	markdownTable := flag.Bool("markdown-table", false, "Output markdown table from test-results.json and exit")
	jsonFileForMarkdown := flag.String("jsonfile", "test-results.json", "Path to JSON file for markdown table")
	progressFlag := flag.Bool("progress", false, "Display a progress bar with ETA")
	flag.Parse()

	if *markdownTable {
		outputMarkdownTable(*jsonFileForMarkdown)
		return
	}

	trueCpuCount := runtime.NumCPU()
	var cpuSettings []int
	// Define the common CPU/vCPU settings.
	commonCPUs := []int{1, 2, 3, 4, 6, 8, 12, 16, 32, 48, 56, 64, 96, 128, 192, 256, 384, 512}

	if *cpuMaxFlag > 0 {
		desired := *cpuMaxFlag
		if desired > trueCpuCount {
			desired = trueCpuCount
		}
		cpuSettings = []int{desired}
	} else {
		for _, v := range commonCPUs {
			if v <= trueCpuCount {
				cpuSettings = append(cpuSettings, v)
			}
		}
	}

	// Define concurrency configurations.
	concurrencyConfigs := []testbench.Config{
		{NumProducers: 2, NumConsumers: 2},
		{NumProducers: 10, NumConsumers: 10},
		{NumProducers: 50, NumConsumers: 50},
	}
	if *highConcurrency {
		concurrencyConfigs = append(concurrencyConfigs,
			testbench.Config{NumProducers: 100, NumConsumers: 100},
			testbench.Config{NumProducers: 250, NumConsumers: 250},
			testbench.Config{NumProducers: 500, NumConsumers: 500},
		)
	}

	testDuration := *durationFlag
	capacity := *capacityFlag
	if *configFile != "" {
		if err := loadBenchFile(*configFile, &testDuration, &capacity, &concurrencyConfigs); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	// Calculate total number of tests for progress tracking.
	impls := getImplementations()
	totalTests := len(cpuSettings) * len(concurrencyConfigs) * (*testIterations) * len(impls)

	var bar *progressbar.ProgressBar
	if *progressFlag {
		bar = progressbar.NewOptions(totalTests,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("benchmarking"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(os.Stderr) }),
		)
	}

	var allSessions []FullReport

	// Iterate over the desired GOMAXPROCS settings.
	for _, cpus := range cpuSettings {
		runtime.GOMAXPROCS(cpus)
		sysInfo := gatherSystemInfo()
		sysInfo.NumCPU = cpus
		sysInfo.TrueCPU = trueCpuCount
		sysInfo.SimulatedCPUCount = cpus

		fmt.Printf("\n=============================\n")
		fmt.Printf("GOMAXPROCS = %d\n", cpus)
		fmt.Printf("=============================\n")

		var results []BenchmarkResult

		for _, cfg := range concurrencyConfigs {
			fmt.Printf("  [Concurrency: producers=%d, consumers=%d]\n", cfg.NumProducers, cfg.NumConsumers)
			for iteration := 1; iteration <= *testIterations; iteration++ {
				fmt.Printf("    iteration %d/%d\n", iteration, *testIterations)
				for _, impl := range impls {
					runtime.GC()
					q := impl.newQueue(capacity)
					time.Sleep(250 * time.Millisecond)

					produced, consumed, actualTime := testbench.RunTimedTest(
						q,
						cfg,
						testDuration,
						func(i int) *int {
							v := i
							return &v
						},
					)
					throughput := float64(consumed) / actualTime.Seconds()

					fmt.Printf("    %s => produced=%d, consumed=%d, throughput=%.0f msg/s, took=%v\n",
						impl.name, produced, consumed, throughput, actualTime)

					if bar != nil {
						bar.Add(1)
					}

					results = append(results, BenchmarkResult{
						Implementation:      impl.name,
						NumProducers:        cfg.NumProducers,
						NumConsumers:        cfg.NumConsumers,
						Capacity:            capacity,
						NumMessages:         produced,
						NumMessagesConsumed: consumed,
						TestDuration:        testDuration.String(),
						ActualElapsed:       actualTime.String(),
						Throughput:          throughput,
						Timestamp:           time.Now().Unix(),
						GoVersion:           runtime.Version(),
					})
				}
			}
		}

		allSessions = append(allSessions, FullReport{
			SessionTime: time.Now().Format(time.RFC3339),
			SystemInfo:  sysInfo,
			Benchmarks:  results,
		})
	}

	// If JSON export is requested, append the new sessions to test-results.json.
	if *jsonExport {
		const filename = "test-results.json"
		var previous []FullReport
		if _, err := os.Stat(filename); err == nil {
			data, err := os.ReadFile(filename)
			if err == nil && len(data) > 0 {
				json.Unmarshal(data, &previous)
			}
		}
		updated := append(previous, allSessions...)
		data, err := json.MarshalIndent(updated, "", "  ")
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error marshalling JSON:", err)
			os.Exit(1)
		}
		if err = os.WriteFile(filename, data, 0644); err != nil {
			fmt.Fprintln(os.Stderr, "Error writing JSON file:", err)
			os.Exit(1)
		}
		fmt.Printf("\nWrote results to %s\n", filename)
	}
}

// gatherSystemInfo collects basic CPU and memory details.
func gatherSystemInfo() SystemInfo {
	numCPU := runtime.NumCPU()
	goArch := runtime.GOARCH

	var cpuModel string
	var cpuSpeed float64
	if infos, err := cpu.Info(); err == nil && len(infos) > 0 {
		cpuModel = infos[0].ModelName
		cpuSpeed = infos[0].Mhz
	}

	var totalMemory uint64
	if vm, err := mem.VirtualMemory(); err == nil {
		totalMemory = vm.Total
	}

	return SystemInfo{
		NumCPU:      numCPU,
		CPUModel:    cpuModel,
		CPUSpeedMHz: cpuSpeed,
		GOARCH:      goArch,
		TotalMemory: totalMemory,
	}
}

// getImplementations enumerates the queue implementations under test.
func getImplementations() []Implementation {
	return []Implementation{
		{
			name:        "MonitorQueue",
			pkgName:     "monitorq",
			description: "Mutex plus two condition variables around a fixed ring buffer, with cooperative shutdown that drains in FIFO order.",
			features:    []string{"MPMC", "FIFO", "Blocking", "Shutdown-Drain"},
			newQueue: func(capacity int) benchQueue {
				return monitorq.New[*int](capacity)
			},
		},
		{
			name:        "Buffered Channel Queue",
			pkgName:     "chanq",
			description: "Buffered Go channel with a done channel for shutdown; the baseline the monitor queue is measured against.",
			features:    []string{"MPMC", "FIFO", "Blocking", "Shutdown-Drain"},
			newQueue: func(capacity int) benchQueue {
				return chanq.New[*int](capacity)
			},
		},
	}
}
