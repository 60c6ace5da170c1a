package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hackgods/practice-scheduling/internal/logging"
)

type SimConfig struct {
	APIBaseURL  string
	PracticeID  uuid.UUID
	Duration    time.Duration
	Workers     int
	Patients    int
	Days        int
	BookingRate float64 // share of operations that are bookings, the rest are reads
}

// slot is one (patient, date, time) combination the workers race for.
type slot struct {
	PatientID uuid.UUID
	Date      string
	Time      string
}

func (s slot) key() string {
	return s.PatientID.String() + "|" + s.Date + "|" + s.Time
}

type DataPool struct {
	Patients []uuid.UUID
	Slots    []slot

	mu      sync.Mutex
	created map[string]int // successful bookings per slot
}

func (dp *DataPool) RecordCreated(s slot) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.created[s.key()]++
}

// DoubleBooked returns the slots that were booked more than once.
func (dp *DataPool) DoubleBooked() []string {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	var out []string
	for k, n := range dp.created {
		if n > 1 {
			out = append(out, fmt.Sprintf("%s (%d)", k, n))
		}
	}
	sort.Strings(out)
	return out
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case success:
		atomic.AddInt64(&om.Success, 1)
	case conflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)

	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[min2(len(latencies)*50/100, len(latencies)-1)]
	p95 = latencies[min2(len(latencies)*95/100, len(latencies)-1)]

	return avg, min, max, p50, p95
}

type Metrics struct {
	Booking  OperationMetrics
	List     OperationMetrics
	Conflict OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	logger  zerolog.Logger
	metrics Metrics
}

func main() {
	logger := logging.Init("simulate", getEnv("APP_ENV", "dev"), getEnv("LOG_LEVEL", "info"))

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	logger.Info().
		Str("api", cfg.APIBaseURL).
		Str("practice_id", cfg.PracticeID.String()).
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Msg("simulator starting")

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}

	setupCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	sim.pool, err = sim.prepare(setupCtx)
	if err != nil {
		logger.Fatal().Err(err).Msg("prepare data pool")
	}
	logger.Info().Int("patients", len(sim.pool.Patients)).Int("slots", len(sim.pool.Slots)).Msg("data pool ready")

	sim.Run()

	if doubled := sim.PrintReport(); len(doubled) > 0 {
		os.Exit(1)
	}
}

func loadConfig() (SimConfig, error) {
	cfg := SimConfig{
		APIBaseURL:  strings.TrimRight(getEnv("SIM_API_BASE_URL", "http://localhost:8080"), "/"),
		PracticeID:  uuid.New(),
		Duration:    getDuration("SIM_DURATION", 30*time.Second),
		Workers:     getInt("SIM_WORKERS", 20),
		Patients:    getInt("SIM_PATIENTS", 20),
		Days:        getInt("SIM_DAYS", 5),
		BookingRate: getFloat("SIM_BOOKING_RATIO", 0.8),
	}
	if raw := os.Getenv("SIM_PRACTICE_ID"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return cfg, fmt.Errorf("SIM_PRACTICE_ID must be a UUID: %w", err)
		}
		cfg.PracticeID = id
	}

	if cfg.Workers <= 0 {
		return cfg, fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return cfg, fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.Patients <= 0 || cfg.Days <= 0 {
		return cfg, fmt.Errorf("SIM_PATIENTS and SIM_DAYS must be > 0")
	}
	return cfg, nil
}

func (s *Simulator) practiceURL(path string) string {
	return s.config.APIBaseURL + "/practices/" + s.config.PracticeID.String() + path
}

// prepare registers patients through the API and builds the weekday slots they compete for.
func (s *Simulator) prepare(ctx context.Context) (*DataPool, error) {
	dp := &DataPool{created: map[string]int{}}
	faker := gofakeit.New(0)

	for i := 0; i < s.config.Patients; i++ {
		body, _ := json.Marshal(map[string]string{
			"name":  faker.Name(),
			"phone": "+49" + faker.Numerify("##########"),
		})
		req, _ := http.NewRequestWithContext(ctx, http.MethodPost, s.practiceURL("/patients"), bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("create patient: %w", err)
		}
		var p struct {
			ID uuid.UUID `json:"id"`
		}
		err = json.NewDecoder(resp.Body).Decode(&p)
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated || err != nil {
			return nil, fmt.Errorf("create patient: status %d", resp.StatusCode)
		}
		dp.Patients = append(dp.Patients, p.ID)
	}

	day := time.Now().AddDate(0, 0, 1)
	for added := 0; added < s.config.Days; day = day.AddDate(0, 0, 1) {
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		added++
		for hour := 8; hour < 12; hour++ {
			for _, p := range dp.Patients {
				dp.Slots = append(dp.Slots, slot{PatientID: p, Date: day.Format("2006-01-02"), Time: fmt.Sprintf("%02d:00", hour)})
			}
		}
	}

	return dp, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.logger.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.logger.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.BookingRate:
				s.doBooking(ctx, rng)
			case r < s.config.BookingRate+(1-s.config.BookingRate)/2:
				s.doConflictCheck(ctx, rng)
			default:
				s.doList(ctx, rng)
			}
		}
	}
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	sl := s.pool.Slots[rng.Intn(len(s.pool.Slots))]

	body, _ := json.Marshal(map[string]string{
		"patient_id": sl.PatientID.String(),
		"date":       sl.Date,
		"time":       sl.Time,
		"service":    "Kontrolluntersuchung",
	})

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, s.practiceURL("/appointments"), bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		if ctx.Err() == nil {
			s.metrics.Booking.Record(latency, false, false)
		}
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	success := resp.StatusCode == http.StatusCreated
	if success {
		s.pool.RecordCreated(sl)
	}
	s.metrics.Booking.Record(latency, success, resp.StatusCode == http.StatusConflict)
}

func (s *Simulator) doConflictCheck(ctx context.Context, rng *rand.Rand) {
	sl := s.pool.Slots[rng.Intn(len(s.pool.Slots))]
	url := fmt.Sprintf("%s?patient_id=%s&date=%s&time=%s", s.practiceURL("/appointments/conflicts"), sl.PatientID, sl.Date, sl.Time)
	s.doGet(ctx, url, &s.metrics.Conflict)
}

func (s *Simulator) doList(ctx context.Context, rng *rand.Rand) {
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]
	s.doGet(ctx, s.practiceURL("/appointments?patient_id="+patientID.String()), &s.metrics.List)
}

func (s *Simulator) doGet(ctx context.Context, url string, om *OperationMetrics) {
	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		if ctx.Err() == nil {
			om.Record(latency, false, false)
		}
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	om.Record(latency, resp.StatusCode == http.StatusOK, false)
}

// PrintReport writes the summary and returns any slots that were booked twice.
func (s *Simulator) PrintReport() []string {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Practice: %s\n", s.config.PracticeID)
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Conflict check", &s.metrics.Conflict)
	printOperationReport("List by patient", &s.metrics.List)

	doubled := s.pool.DoubleBooked()
	if len(doubled) == 0 {
		fmt.Println("Double bookings: none")
	} else {
		fmt.Printf("Double bookings: %d\n", len(doubled))
		for _, d := range doubled {
			fmt.Printf("  %s\n", d)
		}
	}
	return doubled
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func min2(a, b int) int {
	if a < b {
		return a
	}
	return b
}
