package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/medibook-api/internal/config"
	"github.com/jwalitptl/medibook-api/internal/model"
	"github.com/jwalitptl/medibook-api/internal/repository"
	"github.com/jwalitptl/medibook-api/internal/repository/postgres"
)

var statuses = []model.Status{model.StatusPending, model.StatusConfirmed, model.StatusAdjusted}

func main() {
	count := flag.Int("count", 50, "number of demo patients to create")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	repo := postgres.NewPatientRepository(db)
	for i := 0; i < *count; i++ {
		if err := seedPatient(ctx, repo, i); err != nil {
			log.Fatal().Err(err).Int("index", i).Msg("seed failed")
		}
	}
	log.Info().Int("count", *count).Msg("seed complete")
}

// seedPatient writes one patient; two thirds of them also get a booking.
func seedPatient(ctx context.Context, repo repository.PatientRepository, i int) error {
	p := &model.Patient{
		Username: gofakeit.Name(),
		Phone:    fmt.Sprintf("+234%010d", gofakeit.Number(7000000000, 9099999999)),
		Email:    gofakeit.Email(),
	}
	if err := repo.Create(ctx, p); err != nil {
		return fmt.Errorf("create patient: %w", err)
	}

	address := gofakeit.Street() + ", " + gofakeit.City()
	dob := gofakeit.DateRange(
		time.Date(1940, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC),
	).Truncate(24 * time.Hour)
	gender := model.Gender(gofakeit.RandomString([]string{string(model.GenderMale), string(model.GenderFemale)}))
	p.Address = &address
	p.DOB = &dob
	p.Gender = &gender

	if i%3 != 0 {
		now := time.Now().UTC()
		doctor := model.Doctors[gofakeit.Number(0, len(model.Doctors)-1)]
		reason := gofakeit.Sentence(4)
		comment := gofakeit.Sentence(6)
		date := now.Add(time.Duration(gofakeit.Number(1, 30*24)) * time.Hour).Truncate(time.Hour)
		p.Doctor = &doctor
		p.Reason = &reason
		p.Comment = &comment
		p.AppointmentDate = &date
		p.BookedOn = &now
		p.Status = statuses[gofakeit.Number(0, len(statuses)-1)]
	}

	if err := repo.Update(ctx, p); err != nil {
		return fmt.Errorf("update patient: %w", err)
	}
	return nil
}
