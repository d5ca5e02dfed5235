// Command seed fills an empty database with one demo clinic: two branches,
// a service catalog, one staff user per role and a batch of fake patients.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository/postgres"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/security"
)

type catalogEntry struct {
	name    string
	minutes int
	price   string
}

var catalog = []catalogEntry{
	{"General consultation", 30, "100.00"},
	{"Blood test", 15, "50.00"},
	{"Vaccination", 10, "35.00"},
	{"ECG", 20, "80.00"},
	{"Follow-up visit", 15, "40.00"},
}

func main() {
	patients := flag.Int("patients", 50, "number of fake patients")
	password := flag.String("password", envOr("SEED_PASSWORD", "changeme123"), "password for the seeded staff users")
	flag.Parse()

	logger.NewLogger(&logger.Config{Level: logger.InfoLevel, Pretty: true, Service: "clinic-seed"}).SetGlobal()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	gofakeit.Seed(time.Now().UnixNano())

	hash, err := security.NewBcryptHasher(bcrypt.DefaultCost).Hash(*password)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to hash password")
	}

	base := postgres.NewBaseRepository(db)
	var clinicID uuid.UUID
	err = base.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		clinicID, err = seedClinic(ctx, tx, hash)
		return err
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to seed clinic")
	}

	if err := seedPatients(ctx, postgres.NewPatientRepository(base), clinicID, *patients); err != nil {
		log.Fatal().Err(err).Msg("failed to seed patients")
	}

	log.Info().Str("clinic_id", clinicID.String()).Msg("seed complete")
}

func seedClinic(ctx context.Context, tx *sqlx.Tx, passwordHash string) (uuid.UUID, error) {
	clinicID := uuid.New()
	clinicName := gofakeit.Company() + " Clinic"
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO clinics (id, name, phone, address)
		VALUES ($1, $2, $3, $4)
	`, clinicID, clinicName, gofakeit.Phone(), gofakeit.Street()); err != nil {
		return uuid.Nil, fmt.Errorf("insert clinic: %w", err)
	}
	log.Info().Str("clinic", clinicName).Msg("clinic seeded")

	branchIDs := make([]uuid.UUID, 0, 2)
	for _, name := range []string{"Downtown", "Uptown"} {
		id := uuid.New()
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO branches (id, clinic_id, name, address)
			VALUES ($1, $2, $3, $4)
		`, id, clinicID, name, gofakeit.Street()); err != nil {
			return uuid.Nil, fmt.Errorf("insert branch: %w", err)
		}
		branchIDs = append(branchIDs, id)
	}

	for _, s := range catalog {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO services (id, clinic_id, name, duration_min, base_price)
			VALUES ($1, $2, $3, $4, $5)
		`, uuid.New(), clinicID, s.name, s.minutes, decimal.RequireFromString(s.price)); err != nil {
			return uuid.Nil, fmt.Errorf("insert service: %w", err)
		}
	}

	domain := strings.ToLower(strings.Join(strings.Fields(gofakeit.Word()), "")) + ".test"
	staff := []struct {
		role   model.UserRole
		branch *uuid.UUID
	}{
		{model.UserRoleAdmin, nil},
		{model.UserRoleDoctor, &branchIDs[0]},
		{model.UserRoleReceptionist, &branchIDs[0]},
	}
	for _, s := range staff {
		email := string(s.role) + "@" + domain
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, clinic_id, branch_id, full_name, email, password_hash, role)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, uuid.New(), clinicID, s.branch, gofakeit.Name(), email, passwordHash, s.role); err != nil {
			return uuid.Nil, fmt.Errorf("insert %s: %w", s.role, err)
		}
		log.Info().Str("role", string(s.role)).Str("email", email).Msg("staff user seeded")
	}

	return clinicID, nil
}

type patientCreator interface {
	Create(ctx context.Context, p *model.Patient) error
}

func seedPatients(ctx context.Context, repo patientCreator, clinicID uuid.UUID, count int) error {
	now := time.Now().UTC()
	for i := 0; i < count; i++ {
		dob := gofakeit.DateRange(now.AddDate(-90, 0, 0), now.AddDate(-1, 0, 0))
		p := &model.Patient{
			ClinicID:     clinicID,
			FirstName:    gofakeit.FirstName(),
			LastName:     gofakeit.LastName(),
			Phone:        gofakeit.Phone(),
			Email:        strings.ToLower(gofakeit.Email()),
			DateOfBirth:  &dob,
			RegisteredAt: now,
		}
		if err := repo.Create(ctx, p); err != nil {
			return fmt.Errorf("insert patient %d: %w", i, err)
		}
	}
	log.Info().Int("count", count).Msg("patients seeded")
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
