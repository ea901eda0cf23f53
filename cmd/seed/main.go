package main

import (
	"context"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/curelink/hospital-scheduling/internal/db"
)

var departmentNames = []string{
	"Emergency",
	"Cardiology",
	"Dermatology",
	"General Medicine",
	"Orthopedics",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "seed").Logger()
	log.Info().Msg("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal().Msg("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	if err := db.ApplySchema(context.Background(), pool); err != nil {
		log.Fatal().Err(err).Msg("apply schema")
	}
	log.Info().Msg("schema applied")

	gofakeit.Seed(time.Now().UnixNano())

	hospitalID, deptIDs, err := seedHospital(context.Background(), pool, log)
	if err != nil {
		log.Fatal().Err(err).Msg("seed hospital")
	}
	if err := seedDoctors(context.Background(), pool, log, hospitalID, deptIDs, 80); err != nil {
		log.Fatal().Err(err).Msg("seed doctors")
	}
	if err := seedPatients(context.Background(), pool, log, 5000); err != nil {
		log.Fatal().Err(err).Msg("seed patients")
	}

	log.Info().Str("hospital_id", hospitalID.String()).Msg("seed complete")
}

func seedHospital(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger) (uuid.UUID, map[string]uuid.UUID, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, nil, err
	}
	defer tx.Rollback(ctx)

	hospitalID := uuid.New()
	name := gofakeit.City() + " General Hospital"
	_, err = tx.Exec(ctx, `
		INSERT INTO hospitals (id, name, created_at)
		VALUES ($1, $2, now())
	`, hospitalID, name)
	if err != nil {
		return uuid.Nil, nil, err
	}

	deptIDs := make(map[string]uuid.UUID, len(departmentNames))
	for _, dept := range departmentNames {
		id := uuid.New()
		_, err := tx.Exec(ctx, `
			INSERT INTO departments (id, hospital_id, name)
			VALUES ($1, $2, $3)
		`, id, hospitalID, dept)
		if err != nil {
			return uuid.Nil, nil, err
		}
		deptIDs[dept] = id
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, nil, err
	}

	log.Info().Str("name", name).Int("departments", len(deptIDs)).Msg("hospital seeded")
	return hospitalID, deptIDs, nil
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger, hospitalID uuid.UUID, deptIDs map[string]uuid.UUID, count int) error {
	log.Info().Int("count", count).Msg("seeding doctors")

	depts := make([]uuid.UUID, 0, len(deptIDs))
	for _, id := range deptIDs {
		depts = append(depts, id)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		name := "Dr. " + gofakeit.Name()
		deptID := depts[gofakeit.Number(0, len(depts)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO doctors (id, hospital_id, department_id, full_name, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, true, now(), now())
		`, id, hospitalID, deptID, name)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Info().Msg("doctors seeded")
	return nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger, count int) error {
	log.Info().Int("count", count).Msg("seeding patients")

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			name := gofakeit.Name()
			email := gofakeit.Email()

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, full_name, email, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, id, name, email)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Info().Int("done", end).Int("total", count).Msg("patient batch seeded")
	}

	log.Info().Msg("patients seeded")
	return nil
}
