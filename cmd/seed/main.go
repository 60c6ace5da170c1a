package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hackgods/practice-scheduling/internal/config"
	"github.com/hackgods/practice-scheduling/internal/db"
	"github.com/hackgods/practice-scheduling/internal/logging"
	"github.com/hackgods/practice-scheduling/internal/scheduling"
)

var services = []string{
	"Erstberatung",
	"Kontrolluntersuchung",
	"Physiotherapie",
	"Blutabnahme",
	"Impfung",
	"Vorsorgeuntersuchung",
	"Befundbesprechung",
	"Wundversorgung",
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}
	logger := logging.Init("seed", cfg.Env, cfg.LogLevel)
	if cfg.StorageBackend != config.StoragePostgres {
		logger.Fatal().Msg("seed writes to Postgres, set STORAGE_BACKEND=postgres")
	}

	practiceID := uuid.New()
	if raw := os.Getenv("SEED_PRACTICE_ID"); raw != "" {
		if practiceID, err = uuid.Parse(raw); err != nil {
			logger.Fatal().Err(err).Msg("SEED_PRACTICE_ID must be a UUID")
		}
	}
	patients := getInt("SEED_PATIENTS", 200)
	ruleEvery := getInt("SEED_RULE_EVERY", 5)

	logger.Info().Str("practice_id", practiceID.String()).Int("patients", patients).Msg("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("migrate")
	}

	clock := scheduling.NewZoneClock(cfg.PracticeTimezone)
	svc := scheduling.NewService(scheduling.NewPgRepository(pool), nil, nil, clock, cfg)
	faker := gofakeit.New(0)

	if err := seedBusinessHours(ctx, svc, practiceID); err != nil {
		logger.Fatal().Err(err).Msg("seed business hours")
	}
	ids, err := seedPatients(ctx, logger, svc, faker, practiceID, patients)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed patients")
	}
	if err := seedRules(ctx, logger, svc, faker, clock, practiceID, ids, ruleEvery); err != nil {
		logger.Fatal().Err(err).Msg("seed recurring rules")
	}

	logger.Info().Str("practice_id", practiceID.String()).Msg("seed complete")
}

func seedBusinessHours(ctx context.Context, svc *scheduling.Service, practiceID uuid.UUID) error {
	weekday := scheduling.DayHours{Open: scheduling.NewTimeOfDay(8, 0), Close: scheduling.NewTimeOfDay(18, 0)}
	return svc.PutBusinessHours(ctx, practiceID, scheduling.BusinessHours{
		time.Monday:    weekday,
		time.Tuesday:   weekday,
		time.Wednesday: weekday,
		time.Thursday:  {Open: scheduling.NewTimeOfDay(8, 0), Close: scheduling.NewTimeOfDay(19, 0)},
		time.Friday:    {Open: scheduling.NewTimeOfDay(8, 0), Close: scheduling.NewTimeOfDay(14, 0)},
		time.Saturday:  {Closed: true},
		time.Sunday:    {Closed: true},
	})
}

func seedPatients(ctx context.Context, logger zerolog.Logger, svc *scheduling.Service, faker *gofakeit.Faker, practiceID uuid.UUID, count int) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		email := faker.Email()
		p, err := svc.CreatePatient(ctx, practiceID, faker.Name(), "+49"+faker.Numerify("##########"), &email)
		if err != nil {
			return ids, err
		}
		ids = append(ids, p.ID)

		if (i+1)%100 == 0 {
			logger.Info().Int("done", i+1).Int("total", count).Msg("patients seeded")
		}
	}
	return ids, nil
}

// seedRules gives every nth patient a weekly or monthly series and books its first two weeks.
func seedRules(ctx context.Context, logger zerolog.Logger, svc *scheduling.Service, faker *gofakeit.Faker, clock scheduling.Clock, practiceID uuid.UUID, patients []uuid.UUID, every int) error {
	if every <= 0 {
		return nil
	}
	today := scheduling.DateOf(clock.Now())

	var rules, created, skipped int
	for i := 0; i < len(patients); i += every {
		rule := scheduling.RecurringRule{
			PatientID:          patients[i],
			Service:            services[faker.Number(0, len(services)-1)],
			DurationMinutes:    faker.RandomInt([]int{15, 30, 45, 60}),
			RecurrenceInterval: faker.Number(1, 2),
			StartTime:          scheduling.NewTimeOfDay(faker.Number(8, 16), faker.RandomInt([]int{0, 15, 30, 45})),
			StartDate:          today.AddDays(faker.Number(0, 6)),
		}
		if faker.Bool() {
			rule.RecurrenceType = scheduling.RecurrenceWeekly
			rule.DaysOfWeek = []int{faker.Number(1, 5)}
		} else {
			rule.RecurrenceType = scheduling.RecurrenceMonthly
			dom := faker.Number(1, 28)
			rule.DayOfMonth = &dom
		}

		r, err := svc.CreateRecurringRule(ctx, practiceID, rule)
		if err != nil {
			return err
		}
		rules++

		res, err := svc.MaterializeRule(ctx, practiceID, r.ID, today, today.AddDays(14))
		if err != nil {
			return err
		}
		created += len(res.Created)
		skipped += len(res.Skipped)
	}

	logger.Info().Int("rules", rules).Int("appointments", created).Int("skipped", skipped).Msg("recurring rules seeded")
	return nil
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
