package main

import (
	"context"
	"os"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/careconnect/backend/internal/infrastructure/clients/postgres"
	"github.com/careconnect/backend/internal/infrastructure/observability"
	"github.com/careconnect/backend/pkg/config"
)

type seedPatient struct {
	first, last, gender, mrn string
	dob                      time.Time
	// heart rate, systolic, diastolic, SpO2
	vitals [4]float64
}

func main() {
	ctx := context.Background()
	cfg, _, err := config.LoadWithSecrets(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	observability.InitLogger("seed", cfg.Server.Env)

	pgClient, err := postgres.NewClient(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to DB")
	}
	defer pgClient.Close()

	if path := os.Getenv("SCHEMA_FILE"); path != "" {
		schema, err := os.ReadFile(path)
		if err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("Failed to read schema")
		}
		if _, err := pgClient.DB().ExecContext(ctx, string(schema)); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply schema")
		}
	}

	if os.Getenv("RESET_DB") == "true" {
		log.Info().Msg("RESET_DB=true detected, truncating tables before seeding")
		_, err := pgClient.DB().ExecContext(ctx, `TRUNCATE TABLE ai_insights, vital_uploads, patients CASCADE`)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to reset tables")
		}
	}

	patients := []seedPatient{
		{"Amara", "Okafor", "female", "MRN-1001", time.Date(1958, 4, 12, 0, 0, 0, 0, time.UTC), [4]float64{128, 172, 104, 89}},
		{"Tunde", "Bakare", "male", "MRN-1002", time.Date(1971, 9, 3, 0, 0, 0, 0, time.UTC), [4]float64{76, 118, 78, 98}},
		{"Ngozi", "Eze", "female", "MRN-1003", time.Date(1989, 1, 27, 0, 0, 0, 0, time.UTC), [4]float64{104, 145, 92, 95}},
	}

	db := goqu.New("postgres", pgClient.DB())
	now := time.Now().UTC()

	for _, p := range patients {
		id := uuid.NewString()
		insert := db.Insert("patients").Rows(goqu.Record{
			"id":                    id,
			"first_name":            p.first,
			"last_name":             p.last,
			"gender":                p.gender,
			"date_of_birth":         p.dob,
			"medical_record_number": p.mrn,
		}).OnConflict(goqu.DoNothing())
		if _, err := insert.Executor().ExecContext(ctx); err != nil {
			log.Error().Err(err).Str("mrn", p.mrn).Msg("Failed to create patient")
			continue
		}

		vitals := db.Insert("vital_uploads").Rows(goqu.Record{
			"patient_id":               id,
			"heart_rate":               int(p.vitals[0]),
			"blood_pressure_systolic":  int(p.vitals[1]),
			"blood_pressure_diastolic": int(p.vitals[2]),
			"oxygen_saturation":        p.vitals[3],
			"recorded_at":              now,
		})
		if _, err := vitals.Executor().ExecContext(ctx); err != nil {
			log.Error().Err(err).Str("patient_id", id).Msg("Failed to create vitals")
			continue
		}

		log.Info().
			Str("patient_id", id).
			Str("name", p.first+" "+p.last).
			Str("upload_prefix", id+"/").
			Msg("Seeded patient; upload a PDF under this prefix to generate insights")
	}
}
