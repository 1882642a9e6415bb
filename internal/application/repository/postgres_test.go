package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"testing"

	"connections-portal/backend/internal/application/domain"
	"connections-portal/backend/internal/db"
	"connections-portal/backend/internal/db/migrate"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}
	if err := migrate.Run(dsn, "up"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	conn, err := db.Open(dsn)
	if err != nil {
		t.Skipf("Database connection failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestPostgresRepository_ApplicationLifecycle(t *testing.T) {
	repo := NewPostgresRepository(openTestDB(t))
	ctx := context.Background()

	a := &domain.Application{Sections: domain.Sections{
		domain.SectionApplicantDetails: json.RawMessage(`{"name":"Jo"}`),
	}}
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if a.ID == 0 || a.Status != domain.StatusDraft {
		t.Fatalf("created = %+v, want id set and draft status", a)
	}

	got, err := repo.GetByID(ctx, a.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID: %v, %v", got, err)
	}
	var details map[string]string
	if err := json.Unmarshal(got.Sections[domain.SectionApplicantDetails], &details); err != nil || details["name"] != "Jo" {
		t.Errorf("applicant_details = %s", got.Sections[domain.SectionApplicantDetails])
	}
	if string(got.Sections[domain.SectionSummary]) != "{}" {
		t.Errorf("summary = %s, want {}", got.Sections[domain.SectionSummary])
	}

	got.Sections[domain.SectionSummary] = json.RawMessage(`{"ok":true}`)
	got.Status = domain.StatusSubmitted
	ok, err := repo.Update(ctx, got)
	if err != nil || !ok {
		t.Fatalf("Update: %v, %v", ok, err)
	}
	again, _ := repo.GetByID(ctx, a.ID)
	if again.Status != domain.StatusSubmitted {
		t.Errorf("status = %q, want submitted", again.Status)
	}

	ok, err = repo.Update(ctx, &domain.Application{ID: -1})
	if err != nil || ok {
		t.Errorf("Update missing = %v, %v; want false, nil", ok, err)
	}
	missing, err := repo.GetByID(ctx, -1)
	if err != nil || missing != nil {
		t.Errorf("GetByID missing = %v, %v; want nil, nil", missing, err)
	}
}

func TestPostgresRepository_LoadItems(t *testing.T) {
	repo := NewPostgresRepository(openTestDB(t))
	ctx := context.Background()

	a := &domain.Application{}
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create: %v", err)
	}
	item := &domain.LoadItem{ApplicationID: a.ID, Phases: "Single", Quantity: 2, LoadPerInstallation: 1.5, SummedLoad: 3}
	if err := repo.AddLoadItem(ctx, item); err != nil {
		t.Fatalf("AddLoadItem: %v", err)
	}

	items, err := repo.ListLoadItems(ctx, a.ID)
	if err != nil || len(items) != 1 || items[0].SummedLoad != 3 {
		t.Fatalf("ListLoadItems = %v, %v", items, err)
	}

	ok, err := repo.DeleteLoadItem(ctx, a.ID+1, item.ID)
	if err != nil || ok {
		t.Errorf("DeleteLoadItem with wrong application = %v, %v; want false", ok, err)
	}
	ok, err = repo.DeleteLoadItem(ctx, a.ID, item.ID)
	if err != nil || !ok {
		t.Errorf("DeleteLoadItem = %v, %v; want true", ok, err)
	}
	items, _ = repo.ListLoadItems(ctx, a.ID)
	if len(items) != 0 {
		t.Errorf("items after delete = %d, want 0", len(items))
	}
}
