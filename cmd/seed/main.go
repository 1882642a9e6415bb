// seed inserts a sample connection application with a small load table for local testing.
// Idempotent: skips inserts if the sample applicant (dev@example.com) already has an application.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"

	"connections-portal/backend/internal/application/domain"
	"connections-portal/backend/internal/application/repository"
	"connections-portal/backend/internal/config"
	"connections-portal/backend/internal/db"
)

const devApplicantEmail = "dev@example.com"

var sampleSections = domain.Sections{
	domain.SectionApplicantDetails:   json.RawMessage(`{"name":"Dev Applicant","email":"` + devApplicantEmail + `","phone":"+353 1 555 0100"}`),
	domain.SectionGeneralInformation: json.RawMessage(`{"connection_category":"domestic","number_of_units":4}`),
	domain.SectionSiteAddress:        json.RawMessage(`{"line1":"1 Sample Street","town":"Dublin","eircode":"D01 X2Y3"}`),
	domain.SectionProjectDetails:     json.RawMessage(`{"description":"Four-unit housing scheme","required_by":"2027-03-01"}`),
}

var sampleLoadItems = []domain.LoadItem{
	{ConnectionType: "House", Phases: "Single", HeatingType: "Electric", Bedrooms: "3", Quantity: 2, LoadPerInstallation: 12},
	{ConnectionType: "House", Phases: "Single", HeatingType: "Gas", Bedrooms: "2", Quantity: 2, LoadPerInstallation: 6.5},
	{ConnectionType: "Apartment", Phases: "Three", HeatingType: "Electric", Bedrooms: "5+", Quantity: 1, LoadPerInstallation: 30},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env or export DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()
	var existing int64
	err = conn.QueryRowContext(ctx,
		`SELECT id FROM applications WHERE applicant_details->>'email' = $1 LIMIT 1`, devApplicantEmail,
	).Scan(&existing)
	if err == nil {
		log.Printf("Seed already applied (application %d for %s exists). Skipping.", existing, devApplicantEmail)
		return
	}
	if !errors.Is(err, sql.ErrNoRows) {
		log.Fatalf("seed check: %v", err)
	}

	repo := repository.NewPostgresRepository(conn)
	app := &domain.Application{Sections: sampleSections}
	if err := repo.Create(ctx, app); err != nil {
		log.Fatalf("create application: %v", err)
	}
	for i := range sampleLoadItems {
		item := sampleLoadItems[i]
		item.ApplicationID = app.ID
		item.ComputeSummedLoad()
		if err := repo.AddLoadItem(ctx, &item); err != nil {
			log.Fatalf("add load item: %v", err)
		}
	}
	log.Printf("Seed complete: application %d with %d load items", app.ID, len(sampleLoadItems))
}
