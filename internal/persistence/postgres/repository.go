// Package postgres provides pgx-backed persistence for activities, users
// and the event outbox.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/carbon/internal/domain"
	"example.com/carbon/internal/emissions"
	"example.com/carbon/internal/outbox"
)

const activityColumns = `activity_id, user_id, session_token, activity_type, description, quantity, region, unit, emission_kg, emission_source, occurred_at, created_at, updated_at`

// Repository provides Postgres-backed persistence for activities and
// records outbox events alongside every write.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ownerClause renders the ownership predicate with the next positional
// placeholder. Session scoping excludes rows already claimed by an
// account, so a stale token on an owned row never leaks it.
func ownerClause(owner domain.Owner, arg int) (string, interface{}, error) {
	if userID, ok := owner.UserID(); ok {
		return fmt.Sprintf("user_id = $%d", arg), userID, nil
	}
	if token, ok := owner.SessionToken(); ok {
		return fmt.Sprintf("session_token = $%d AND user_id IS NULL", arg), token, nil
	}
	return "", nil, domain.ErrOwnerRequired
}

// Create persists the activity and records the logged event in a single
// transaction.
func (r *Repository) Create(ctx context.Context, activity domain.Activity) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	const stmt = `INSERT INTO activities (` + activityColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`

	userID, _ := activity.Owner.UserID()
	sessionToken, _ := activity.Owner.SessionToken()

	_, err = tx.Exec(ctx, stmt,
		activity.ID,
		nullIfEmpty(userID),
		nullIfEmpty(sessionToken),
		activity.ActivityType,
		activity.Description,
		activity.Quantity,
		activity.Region,
		activity.Unit,
		activity.EmissionKg,
		activity.EmissionSource,
		activity.OccurredAt,
		activity.CreatedAt,
		activity.UpdatedAt,
	)
	if err != nil {
		return err
	}

	if err = insertOutbox(ctx, tx, outbox.EventActivityLogged, activity.ID, activityEvent(activity)); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Get retrieves an activity inside the owner's scope. A missing or
// out-of-scope id yields (nil, nil).
func (r *Repository) Get(ctx context.Context, owner domain.Owner, activityID string) (*domain.Activity, error) {
	clause, arg, err := ownerClause(owner, 2)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + activityColumns + ` FROM activities WHERE activity_id = $1 AND ` + clause

	row := r.pool.QueryRow(ctx, query, activityID, arg)
	activity, err := scanActivity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return activity, nil
}

// Update rewrites the mutable and derived fields of an owned activity.
func (r *Repository) Update(ctx context.Context, activity domain.Activity) error {
	clause, arg, err := ownerClause(activity.Owner, 11)
	if err != nil {
		return err
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	stmt := `UPDATE activities
        SET activity_type=$2, description=$3, quantity=$4, region=$5, unit=$6, emission_kg=$7, emission_source=$8, occurred_at=$9, updated_at=$10
        WHERE activity_id = $1 AND ` + clause

	tag, err := tx.Exec(ctx, stmt,
		activity.ID,
		activity.ActivityType,
		activity.Description,
		activity.Quantity,
		activity.Region,
		activity.Unit,
		activity.EmissionKg,
		activity.EmissionSource,
		activity.OccurredAt,
		activity.UpdatedAt,
		arg,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		err = domain.ErrActivityNotFound
		return err
	}

	if err = insertOutbox(ctx, tx, outbox.EventActivityUpdated, activity.ID, activityEvent(activity)); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Delete removes an owned activity, reporting whether a row existed.
func (r *Repository) Delete(ctx context.Context, owner domain.Owner, activityID string) (bool, error) {
	clause, arg, err := ownerClause(owner, 2)
	if err != nil {
		return false, err
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	tag, err := tx.Exec(ctx, `DELETE FROM activities WHERE activity_id = $1 AND `+clause, activityID, arg)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		tx.Rollback(ctx)
		return false, nil
	}

	event := outbox.ActivityDeleted{ActivityID: activityID, DeletedAt: time.Now().UTC()}
	if err = insertOutbox(ctx, tx, outbox.EventActivityDeleted, activityID, event); err != nil {
		return false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// ListByOwner returns the owner's activities, newest occurrence first.
func (r *Repository) ListByOwner(ctx context.Context, owner domain.Owner) ([]domain.Activity, error) {
	clause, arg, err := ownerClause(owner, 1)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + activityColumns + ` FROM activities WHERE ` + clause +
		` ORDER BY occurred_at DESC, activity_id DESC`

	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	activities := make([]domain.Activity, 0)
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		activities = append(activities, *activity)
	}
	return activities, rows.Err()
}

// Summarize aggregates the owner's emissions: totals, a by-type
// breakdown and a daily time series.
func (r *Repository) Summarize(ctx context.Context, owner domain.Owner) (*domain.Summary, error) {
	clause, arg, err := ownerClause(owner, 1)
	if err != nil {
		return nil, err
	}

	summary := &domain.Summary{}

	totals := `SELECT COALESCE(SUM(emission_kg), 0), COUNT(*) FROM activities WHERE ` + clause
	if err := r.pool.QueryRow(ctx, totals, arg).Scan(&summary.TotalEmissionsKg, &summary.ActivityCount); err != nil {
		return nil, err
	}
	summary.TotalEmissionsKg = emissions.Round2(summary.TotalEmissionsKg)

	byType := `SELECT activity_type, COALESCE(SUM(emission_kg), 0), COUNT(*)
        FROM activities WHERE ` + clause + `
        GROUP BY activity_type
        ORDER BY SUM(emission_kg) DESC`
	rows, err := r.pool.Query(ctx, byType, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var entry domain.TypeEmission
		if err := rows.Scan(&entry.ActivityType, &entry.EmissionKg, &entry.Count); err != nil {
			return nil, err
		}
		entry.EmissionKg = emissions.Round2(entry.EmissionKg)
		summary.ByType = append(summary.ByType, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	daily := `SELECT date_trunc('day', occurred_at), COALESCE(SUM(emission_kg), 0)
        FROM activities WHERE ` + clause + `
        GROUP BY 1
        ORDER BY 1`
	dailyRows, err := r.pool.Query(ctx, daily, arg)
	if err != nil {
		return nil, err
	}
	defer dailyRows.Close()
	for dailyRows.Next() {
		var entry domain.DailyEmission
		if err := dailyRows.Scan(&entry.Day, &entry.EmissionKg); err != nil {
			return nil, err
		}
		entry.EmissionKg = emissions.Round2(entry.EmissionKg)
		summary.Daily = append(summary.Daily, entry)
	}
	return summary, dailyRows.Err()
}

// ClaimSessionActivities reassigns every unowned activity under the
// session token to the user in one conditional update. Rows already
// owned by any account are never matched, so concurrent claims cannot
// double-assign.
func (r *Repository) ClaimSessionActivities(ctx context.Context, sessionToken, userID string) (int64, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	const stmt = `UPDATE activities
        SET user_id = $2, session_token = NULL, updated_at = NOW()
        WHERE session_token = $1 AND user_id IS NULL`

	tag, err := tx.Exec(ctx, stmt, sessionToken, userID)
	if err != nil {
		return 0, err
	}
	count := tag.RowsAffected()

	if count > 0 {
		event := outbox.ActivitiesClaimed{UserID: userID, ClaimedCount: count, ClaimedAt: time.Now().UTC()}
		if err = insertOutbox(ctx, tx, outbox.EventActivitiesClaimed, userID, event); err != nil {
			return 0, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, err
	}
	return count, nil
}

func insertOutbox(ctx context.Context, tx pgx.Tx, eventType, aggregateID string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, partition_key, payload)
        VALUES ($1,$2,$3,$4,$5,$6)`

	_, err = tx.Exec(ctx, stmt,
		"activity",
		aggregateID,
		eventType,
		outbox.TopicForEvent(eventType),
		aggregateID,
		body,
	)
	return err
}

func activityEvent(activity domain.Activity) outbox.ActivityEvent {
	userID, _ := activity.Owner.UserID()
	return outbox.ActivityEvent{
		ActivityID:     activity.ID,
		UserID:         userID,
		ActivityType:   activity.ActivityType,
		Quantity:       activity.Quantity,
		Region:         activity.Region,
		Unit:           activity.Unit,
		EmissionKg:     activity.EmissionKg,
		EmissionSource: activity.EmissionSource,
		OccurredAt:     activity.OccurredAt,
	}
}

func scanActivity(row pgx.Row) (*domain.Activity, error) {
	var (
		activity     domain.Activity
		userID       *string
		sessionToken *string
	)
	if err := row.Scan(
		&activity.ID,
		&userID,
		&sessionToken,
		&activity.ActivityType,
		&activity.Description,
		&activity.Quantity,
		&activity.Region,
		&activity.Unit,
		&activity.EmissionKg,
		&activity.EmissionSource,
		&activity.OccurredAt,
		&activity.CreatedAt,
		&activity.UpdatedAt,
	); err != nil {
		return nil, err
	}

	switch {
	case userID != nil:
		activity.Owner = domain.OwnedByUser(*userID)
	case sessionToken != nil:
		activity.Owner = domain.OwnedBySession(*sessionToken)
	}
	return &activity, nil
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}
