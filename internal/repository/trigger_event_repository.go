// internal/repository/trigger_event_repository.go
package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"plc-monitor/internal/database"
	"plc-monitor/internal/model"
	"plc-monitor/internal/utils"
)

// triggerEventRepository implements TriggerEventRepository on PostgreSQL
type triggerEventRepository struct {
	db       *database.DB
	logger   *zap.Logger
	queryLog *utils.ServiceLogger
}

// NewTriggerEventRepository creates a new PostgreSQL trigger event repository
func NewTriggerEventRepository(db *database.DB, logger *zap.Logger) TriggerEventRepository {
	return &triggerEventRepository{
		db:       db,
		logger:   logger,
		queryLog: utils.NewServiceLogger(logger, "trigger-event-repository"),
	}
}

// Create stores a trigger event
func (r *triggerEventRepository) Create(ctx context.Context, event *model.TriggerEvent) error {
	if err := validateEvent(event); err != nil {
		return err
	}

	query := `
		INSERT INTO trigger_events (
			id, name, address, target_value, mask,
			raw_value, scaled_value, unit, matched_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		event.ID, event.Name, event.Address, int(event.TargetValue), int(event.Mask),
		int(event.RawValue), event.ScaledValue, event.Unit, event.MatchedAt, event.CreatedAt,
	)

	if err != nil {
		r.logger.Error("Failed to create trigger event", zap.Error(err))
		return fmt.Errorf("failed to create trigger event: %w", err)
	}

	return nil
}

// List returns trigger events newest first
func (r *triggerEventRepository) List(ctx context.Context, filter *TriggerEventFilter) ([]*model.TriggerEvent, error) {
	query, args := buildListQuery(filter)

	start := time.Now()
	rows, err := r.db.QueryContext(ctx, query, args...)
	r.queryLog.LogDatabaseQuery(query, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to list trigger events: %w", err)
	}
	defer rows.Close()

	events := []*model.TriggerEvent{}
	for rows.Next() {
		event := &model.TriggerEvent{}
		var targetValue, mask, rawValue int
		err := rows.Scan(
			&event.ID, &event.Name, &event.Address, &targetValue, &mask,
			&rawValue, &event.ScaledValue, &event.Unit, &event.MatchedAt, &event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trigger event: %w", err)
		}
		event.TargetValue = uint16(targetValue)
		event.Mask = uint16(mask)
		event.RawValue = uint16(rawValue)
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trigger events: %w", err)
	}

	return events, nil
}

// buildListQuery renders the List statement with numbered placeholders for
// the filter fields that are set. The limit is always the last argument.
func buildListQuery(filter *TriggerEventFilter) (string, []interface{}) {
	whereConditions := []string{}
	args := []interface{}{}
	argIndex := 1

	if filter != nil && filter.Address != nil {
		whereConditions = append(whereConditions, fmt.Sprintf("address = $%d", argIndex))
		args = append(args, *filter.Address)
		argIndex++
	}

	if filter != nil && filter.Name != nil {
		whereConditions = append(whereConditions, fmt.Sprintf("name = $%d", argIndex))
		args = append(args, *filter.Name)
		argIndex++
	}

	if filter != nil && filter.Since != nil {
		whereConditions = append(whereConditions, fmt.Sprintf("matched_at >= $%d", argIndex))
		args = append(args, *filter.Since)
		argIndex++
	}

	whereClause := ""
	if len(whereConditions) > 0 {
		whereClause = "WHERE " + strings.Join(whereConditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT id, name, address, target_value, mask,
			   raw_value, scaled_value, unit, matched_at, created_at
		FROM trigger_events %s
		ORDER BY matched_at DESC
		LIMIT $%d
	`, whereClause, argIndex)
	return query, append(args, filter.limit())
}

// DeleteOlderThan removes events matched before the cutoff
func (r *triggerEventRepository) DeleteOlderThan(ctx context.Context, olderThan time.Time) (int64, error) {
	query := `DELETE FROM trigger_events WHERE matched_at < $1`

	result, err := r.db.ExecContext(ctx, query, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old trigger events: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	r.logger.Info("Deleted old trigger events",
		zap.Int64("rows_deleted", rowsAffected),
		zap.Time("older_than", olderThan),
	)

	return rowsAffected, nil
}
