package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"farmreport/pkg/database"
)

// PostgresLogger stores entries in the activity_log table.
type PostgresLogger struct {
	db      database.DB
	service string
}

// NewPostgresLogger creates a PostgresLogger. service is used for entries
// that do not carry their own.
func NewPostgresLogger(db database.DB, service string) *PostgresLogger {
	return &PostgresLogger{db: db, service: service}
}

const insertActivity = `
		INSERT INTO activity_log (
			id, created_at, service, category, action, display_name, request_id, extra
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

// Log inserts one row.
func (l *PostgresLogger) Log(ctx context.Context, entry *Entry) error {
	extra, err := json.Marshal(entry.Extra)
	if err != nil {
		return fmt.Errorf("failed to encode audit extra: %w", err)
	}

	service := entry.Service
	if service == "" {
		service = l.service
	}

	_, err = l.db.Exec(ctx, insertActivity,
		entry.ID,
		entry.Timestamp,
		service,
		string(entry.Category),
		string(entry.Action),
		entry.DisplayName,
		entry.RequestID,
		extra,
	)
	if err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}
	return nil
}

// Query returns the newest entries matching the filter.
func (l *PostgresLogger) Query(ctx context.Context, filter *QueryFilter) ([]*Entry, error) {
	if filter == nil {
		filter = &QueryFilter{}
	}

	var (
		conditions []string
		args       []any
	)
	add := func(cond string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filter.Category != "" {
		add("category = $%d", string(filter.Category))
	}
	if filter.Service != "" {
		add("service = $%d", filter.Service)
	}
	if filter.StartTime != nil {
		add("created_at >= $%d", *filter.StartTime)
	}
	if filter.EndTime != nil {
		add("created_at < $%d", *filter.EndTime)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := `
		SELECT id::text, created_at, service, category, action, display_name, request_id, extra
		FROM activity_log`
	if len(conditions) > 0 {
		query += "\n\t\tWHERE " + strings.Join(conditions, " AND ")
	}
	args = append(args, limit)
	query += fmt.Sprintf("\n\t\tORDER BY created_at DESC\n\t\tLIMIT $%d", len(args))

	rows, err := l.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var (
			e        Entry
			category string
			action   string
			created  time.Time
			extra    []byte
		)
		if err := rows.Scan(&e.ID, &created, &e.Service, &category, &action, &e.DisplayName, &e.RequestID, &extra); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		e.Timestamp = created
		e.Category = Category(category)
		e.Action = Action(action)
		if len(extra) > 0 {
			if err := json.Unmarshal(extra, &e.Extra); err != nil {
				return nil, fmt.Errorf("failed to decode activity extra: %w", err)
			}
		}
		entries = append(entries, &e)
	}

	return entries, rows.Err()
}

// Close does nothing: the pool is owned by the caller.
func (l *PostgresLogger) Close() error {
	return nil
}
