package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"connections-portal/backend/internal/application/domain"
)

const sectionColumns = "applicant_details, general_information, site_address, load_details, other_contact, click_quote_data, project_details, auto_quote_eligibility, upload_docs, summary"

const insertApplication = `INSERT INTO applications (` + sectionColumns + `)
	VALUES ($1::jsonb, $2::jsonb, $3::jsonb, $4::jsonb, $5::jsonb, $6::jsonb, $7::jsonb, $8::jsonb, $9::jsonb, $10::jsonb)
	RETURNING id, status, created_at, updated_at`

const selectApplication = `SELECT id, ` + sectionColumns + `, status, created_at, updated_at
	FROM applications WHERE id = $1`

const updateApplication = `UPDATE applications SET
		applicant_details = $1::jsonb,
		general_information = $2::jsonb,
		site_address = $3::jsonb,
		load_details = $4::jsonb,
		other_contact = $5::jsonb,
		click_quote_data = $6::jsonb,
		project_details = $7::jsonb,
		auto_quote_eligibility = $8::jsonb,
		upload_docs = $9::jsonb,
		summary = $10::jsonb,
		status = COALESCE(NULLIF($11, ''), status),
		updated_at = now()
	WHERE id = $12`

const selectLoadItems = `SELECT id, application_id, connection_type, phases, heating_type, bedrooms,
		quantity, load_per_installation, summed_load
	FROM load_items WHERE application_id = $1 ORDER BY id`

const insertLoadItem = `INSERT INTO load_items (application_id, connection_type, phases, heating_type,
		bedrooms, quantity, load_per_installation, summed_load)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING id`

const deleteLoadItem = `DELETE FROM load_items WHERE id = $1 AND application_id = $2`

// PostgresRepository persists applications in Postgres. Sections are JSONB columns.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an application repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func sectionArgs(s domain.Sections) ([]any, error) {
	norm, err := s.Normalize()
	if err != nil {
		return nil, err
	}
	args := make([]any, 0, len(domain.SectionNames))
	for _, name := range domain.SectionNames {
		args = append(args, string(norm[name]))
	}
	return args, nil
}

// Create inserts a with every section normalized.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.Application) error {
	args, err := sectionArgs(a.Sections)
	if err != nil {
		return err
	}
	var status string
	err = r.db.QueryRowContext(ctx, insertApplication, args...).Scan(&a.ID, &status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert application: %w", err)
	}
	a.Status = domain.Status(status)
	return nil
}

// GetByID returns the application for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*domain.Application, error) {
	raw := make([][]byte, len(domain.SectionNames))
	a := &domain.Application{Sections: make(domain.Sections, len(domain.SectionNames))}
	var status string
	dest := []any{&a.ID}
	for i := range raw {
		dest = append(dest, &raw[i])
	}
	dest = append(dest, &status, &a.CreatedAt, &a.UpdatedAt)
	if err := r.db.QueryRowContext(ctx, selectApplication, id).Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	for i, name := range domain.SectionNames {
		a.Sections[name] = raw[i]
	}
	a.Status = domain.Status(status)
	return a, nil
}

// Update overwrites the sections of a.ID and bumps updated_at.
func (r *PostgresRepository) Update(ctx context.Context, a *domain.Application) (bool, error) {
	args, err := sectionArgs(a.Sections)
	if err != nil {
		return false, err
	}
	args = append(args, string(a.Status), a.ID)
	res, err := r.db.ExecContext(ctx, updateApplication, args...)
	if err != nil {
		return false, fmt.Errorf("update application: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListLoadItems returns the load items of appID in insertion order. A missing application yields an empty list.
func (r *PostgresRepository) ListLoadItems(ctx context.Context, appID int64) ([]*domain.LoadItem, error) {
	rows, err := r.db.QueryContext(ctx, selectLoadItems, appID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*domain.LoadItem{}
	for rows.Next() {
		var it domain.LoadItem
		if err := rows.Scan(&it.ID, &it.ApplicationID, &it.ConnectionType, &it.Phases, &it.HeatingType,
			&it.Bedrooms, &it.Quantity, &it.LoadPerInstallation, &it.SummedLoad); err != nil {
			return nil, err
		}
		items = append(items, &it)
	}
	return items, rows.Err()
}

// AddLoadItem inserts item and sets its ID.
func (r *PostgresRepository) AddLoadItem(ctx context.Context, item *domain.LoadItem) error {
	err := r.db.QueryRowContext(ctx, insertLoadItem,
		item.ApplicationID, item.ConnectionType, item.Phases, item.HeatingType,
		item.Bedrooms, item.Quantity, item.LoadPerInstallation, item.SummedLoad,
	).Scan(&item.ID)
	if err != nil {
		return fmt.Errorf("insert load item: %w", err)
	}
	return nil
}

// DeleteLoadItem removes itemID when it belongs to appID.
func (r *PostgresRepository) DeleteLoadItem(ctx context.Context, appID, itemID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, deleteLoadItem, itemID, appID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
