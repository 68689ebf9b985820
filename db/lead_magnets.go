package db

// lead_magnets.go contains all SQL query functions for the lead_magnets table.
// raw SQL is used on purpose: the queries stay explicit and readable next to the schema.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sasta-kro/corvus-paas/leadmagnet-host/models"
)

// leadMagnetColumns is the shared SELECT list, in the order scanLeadMagnet reads it.
const leadMagnetColumns = `id, slug, name, description, status, created_at, updated_at`

// InsertLeadMagnet writes a new lead magnet row.
// the struct MUST have ID, Slug, Name and Status populated by the caller (the publisher).
// CreatedAt and UpdatedAt are set here so every row is timestamped the same way.
// a duplicate slug returns ErrSlugTaken.
func (database *Database) InsertLeadMagnet(ctx context.Context, leadMagnet *models.LeadMagnet) error {
	query := database.rebind(`
		INSERT INTO lead_magnets (
			id, slug, name, description, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`)

	// UTC avoids drift between app server and database server timezones
	timeNow := time.Now().UTC()
	leadMagnet.CreatedAt = timeNow
	leadMagnet.UpdatedAt = timeNow

	_, err := database.connection.ExecContext(ctx, query,
		leadMagnet.ID,
		leadMagnet.Slug,
		leadMagnet.Name,
		leadMagnet.Description, // *string, nil inserts NULL
		leadMagnet.Status,
		leadMagnet.CreatedAt,
		leadMagnet.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %q", ErrSlugTaken, leadMagnet.Slug)
	}
	if err != nil {
		return fmt.Errorf("failed to insert lead magnet %q: %w", leadMagnet.ID, err)
	}
	return nil
}

// GetLeadMagnet fetches a single lead magnet by its UUID.
// returns ErrRecordNotFound if no row matches, which callers map to HTTP 404.
func (database *Database) GetLeadMagnet(ctx context.Context, id string) (*models.LeadMagnet, error) {
	query := database.rebind(`SELECT ` + leadMagnetColumns + ` FROM lead_magnets WHERE id = ?`)

	leadMagnet, err := scanLeadMagnet(database.connection.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lead magnet %q: %w", id, err)
	}
	return leadMagnet, nil
}

// GetLeadMagnetBySlug fetches a lead magnet by its public slug.
// used on every page view and every submission, the UNIQUE constraint doubles as the index.
func (database *Database) GetLeadMagnetBySlug(ctx context.Context, slug string) (*models.LeadMagnet, error) {
	query := database.rebind(`SELECT ` + leadMagnetColumns + ` FROM lead_magnets WHERE slug = ?`)

	leadMagnet, err := scanLeadMagnet(database.connection.QueryRowContext(ctx, query, slug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lead magnet by slug %q: %w", slug, err)
	}
	return leadMagnet, nil
}

// ListLeadMagnets returns every lead magnet, newest first, each with its submission count.
// the count is a correlated subquery so the row columns keep their declared types.
func (database *Database) ListLeadMagnets(ctx context.Context) ([]*models.LeadMagnet, error) {
	query := `
		SELECT
			lm.id, lm.slug, lm.name, lm.description, lm.status, lm.created_at, lm.updated_at,
			(SELECT COUNT(*) FROM submissions s WHERE s.lead_magnet_id = lm.id) AS submission_count
		FROM lead_magnets lm
		ORDER BY lm.created_at DESC
	`

	rows, err := database.connection.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list lead magnets: %w", err)
	}
	// rows holds a pooled connection until closed
	defer rows.Close()

	leadMagnets := []*models.LeadMagnet{}
	for rows.Next() {
		var leadMagnet models.LeadMagnet
		err := rows.Scan(
			&leadMagnet.ID,
			&leadMagnet.Slug,
			&leadMagnet.Name,
			&leadMagnet.Description,
			&leadMagnet.Status,
			&leadMagnet.CreatedAt,
			&leadMagnet.UpdatedAt,
			&leadMagnet.SubmissionCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lead magnet row: %w", err)
		}
		leadMagnets = append(leadMagnets, &leadMagnet)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lead magnet rows: %w", err)
	}
	return leadMagnets, nil
}

// ListSlugs returns every slug in the table. the orphan sweep compares it with the asset store.
func (database *Database) ListSlugs(ctx context.Context) ([]string, error) {
	rows, err := database.connection.QueryContext(ctx, `SELECT slug FROM lead_magnets`)
	if err != nil {
		return nil, fmt.Errorf("failed to list slugs: %w", err)
	}
	defer rows.Close()

	var slugs []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, fmt.Errorf("failed to scan slug: %w", err)
		}
		slugs = append(slugs, slug)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating slug rows: %w", err)
	}
	return slugs, nil
}

// UpdateLeadMagnet applies the non-nil fields of patch and refreshes updated_at.
// the slug is never updatable, it is the asset namespace.
// returns the row as stored after the update.
func (database *Database) UpdateLeadMagnet(ctx context.Context, id string, patch models.LeadMagnetPatch) (*models.LeadMagnet, error) {
	setClauses := []string{"updated_at = ?"}
	arguments := []any{time.Now().UTC()}

	if patch.Name != nil {
		setClauses = append(setClauses, "name = ?")
		arguments = append(arguments, *patch.Name)
	}
	if patch.Description != nil {
		// an empty description clears the column back to NULL
		setClauses = append(setClauses, "description = ?")
		if *patch.Description == "" {
			arguments = append(arguments, nil)
		} else {
			arguments = append(arguments, *patch.Description)
		}
	}
	if patch.Status != nil {
		setClauses = append(setClauses, "status = ?")
		arguments = append(arguments, *patch.Status)
	}
	arguments = append(arguments, id)

	query := database.rebind(`UPDATE lead_magnets SET ` + strings.Join(setClauses, ", ") + ` WHERE id = ?`)

	result, err := database.connection.ExecContext(ctx, query, arguments...)
	if err != nil {
		return nil, fmt.Errorf("failed to update lead magnet %q: %w", id, err)
	}

	// RowsAffected is 0 when the WHERE clause matched nothing, i.e. the id does not exist
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows affected for lead magnet %q: %w", id, err)
	}
	if rowsAffected == 0 {
		return nil, ErrRecordNotFound
	}

	return database.GetLeadMagnet(ctx, id)
}

// DeleteLeadMagnet removes the lead magnet row and all of its submissions in one transaction.
// submissions go first because they reference the lead magnet.
// the caller removes the stored assets before calling this, so the row is the last thing deleted
// and a failed teardown can be retried.
func (database *Database) DeleteLeadMagnet(ctx context.Context, id string) error {
	transaction, err := database.connection.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete transaction for %q: %w", id, err)
	}
	// Rollback after a successful Commit is a no-op
	defer transaction.Rollback()

	_, err = transaction.ExecContext(ctx, database.rebind(`DELETE FROM submissions WHERE lead_magnet_id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete submissions of lead magnet %q: %w", id, err)
	}

	result, err := transaction.ExecContext(ctx, database.rebind(`DELETE FROM lead_magnets WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete lead magnet %q: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected for lead magnet %q: %w", id, err)
	}
	if rowsAffected == 0 {
		return ErrRecordNotFound
	}

	if err := transaction.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete of lead magnet %q: %w", id, err)
	}
	return nil
}

// scanLeadMagnet reads one row in leadMagnetColumns order.
// description is scanned straight into *string, database/sql sets it to nil for NULL.
func scanLeadMagnet(row scanner) (*models.LeadMagnet, error) {
	var leadMagnet models.LeadMagnet
	err := row.Scan(
		&leadMagnet.ID,
		&leadMagnet.Slug,
		&leadMagnet.Name,
		&leadMagnet.Description,
		&leadMagnet.Status,
		&leadMagnet.CreatedAt,
		&leadMagnet.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &leadMagnet, nil
}
