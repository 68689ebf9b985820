package db

import (
	"context"
	"fmt"
	"time"

	"github.com/sasta-kro/corvus-paas/leadmagnet-host/models"
)

// InsertSubmission writes one visitor submission.
// the caller has already checked that the lead magnet exists and is active.
func (database *Database) InsertSubmission(ctx context.Context, submission *models.Submission) error {
	query := database.rebind(`
		INSERT INTO submissions (id, lead_magnet_id, email, name, data, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)

	submission.CreatedAt = time.Now().UTC()

	_, err := database.connection.ExecContext(ctx, query,
		submission.ID,
		submission.LeadMagnetID,
		submission.Email,
		submission.Name, // *string, nil inserts NULL
		submission.Data, // *string, nil inserts NULL
		submission.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert submission for lead magnet %q: %w", submission.LeadMagnetID, err)
	}
	return nil
}

// ListSubmissions returns the submissions of one lead magnet, newest first.
// an unknown lead magnet id simply yields an empty slice.
func (database *Database) ListSubmissions(ctx context.Context, leadMagnetID string) ([]*models.Submission, error) {
	query := database.rebind(`
		SELECT id, lead_magnet_id, email, name, data, created_at
		FROM submissions
		WHERE lead_magnet_id = ?
		ORDER BY created_at DESC
	`)

	rows, err := database.connection.QueryContext(ctx, query, leadMagnetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions for %q: %w", leadMagnetID, err)
	}
	defer rows.Close()

	// non-nil so an empty list encodes as [] and not null
	submissions := []*models.Submission{}
	for rows.Next() {
		var submission models.Submission
		err := rows.Scan(
			&submission.ID,
			&submission.LeadMagnetID,
			&submission.Email,
			&submission.Name,
			&submission.Data,
			&submission.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission row: %w", err)
		}
		submissions = append(submissions, &submission)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating submission rows: %w", err)
	}
	return submissions, nil
}
