package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zerocool-source/apiV2/internal/authz"
	"github.com/zerocool-source/apiV2/internal/shared/errors"
)

// Repository stores audit entries in PostgreSQL
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new audit repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Append inserts an audit entry. Duplicate event IDs are dropped so a
// replayed subscription does not double-record.
func (r *Repository) Append(ctx context.Context, entry *Entry) error {
	changes, err := json.Marshal(entry.Changes)
	if err != nil {
		return errors.Wrap(err, "failed to marshal audit changes")
	}

	query := `
		INSERT INTO audit_entries (
			id, event_id, action, resource_type, resource_id,
			actor_id, actor_role, changes, occurred_at
		) VALUES ($1, $2, $3, $4, NULLIF($5, '')::uuid, NULLIF($6, '')::uuid, $7, $8, $9)
		ON CONFLICT (event_id) DO NOTHING`

	_, err = r.pool.Exec(ctx, query,
		entry.ID, entry.EventID, entry.Action, entry.ResourceType,
		entry.ResourceID.String(), entry.ActorID.String(), entry.ActorRole,
		changes, entry.OccurredAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to append audit entry")
	}

	return nil
}

// List returns audit entries within the given scope matching the filter,
// newest first
func (r *Repository) List(ctx context.Context, scope authz.Scope, filter ListFilter) ([]*Entry, int, error) {
	conditions := []string{}
	args := []interface{}{}
	argNum := 1

	if cond := auditScopeCondition(scope, &argNum, &args); cond != "" {
		conditions = append(conditions, cond)
	}
	if filter.Action != "" {
		conditions = append(conditions, fmt.Sprintf("action LIKE $%d", argNum))
		args = append(args, filter.Action+"%")
		argNum++
	}
	if filter.ResourceType != "" {
		conditions = append(conditions, fmt.Sprintf("resource_type = $%d", argNum))
		args = append(args, filter.ResourceType)
		argNum++
	}
	if filter.ResourceID != nil {
		conditions = append(conditions, fmt.Sprintf("resource_id = $%d", argNum))
		args = append(args, *filter.ResourceID)
		argNum++
	}
	if filter.ActorID != nil {
		conditions = append(conditions, fmt.Sprintf("actor_id = $%d", argNum))
		args = append(args, *filter.ActorID)
		argNum++
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("occurred_at >= $%d", argNum))
		args = append(args, *filter.From)
		argNum++
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("occurred_at <= $%d", argNum))
		args = append(args, *filter.To)
		argNum++
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM audit_entries` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count audit entries")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	query := fmt.Sprintf(`
		SELECT id, event_id, action, resource_type,
			COALESCE(resource_id::text, ''), COALESCE(actor_id::text, ''),
			actor_role, changes, occurred_at, recorded_at
		FROM audit_entries%s
		ORDER BY occurred_at DESC
		LIMIT $%d OFFSET $%d`, where, argNum, argNum+1)
	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list audit entries")
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e := &Entry{}
		var changes []byte
		if err := rows.Scan(
			&e.ID, &e.EventID, &e.Action, &e.ResourceType,
			&e.ResourceID, &e.ActorID, &e.ActorRole,
			&changes, &e.OccurredAt, &e.RecordedAt,
		); err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan audit entry")
		}
		if len(changes) > 0 {
			if err := json.Unmarshal(changes, &e.Changes); err != nil {
				return nil, 0, errors.Wrap(err, "failed to unmarshal audit changes")
			}
		}
		entries = append(entries, e)
	}

	return entries, total, nil
}

// auditScopeCondition translates a visibility scope into a SQL predicate
// over audit entries. An entry is in scope when the acting user is, or when
// the touched resource is: a caller must not learn about actions on records
// they cannot see.
func auditScopeCondition(scope authz.Scope, argNum *int, args *[]interface{}) string {
	switch {
	case scope.None:
		return "FALSE"
	case scope.All:
		return ""
	case !scope.OwnerID.IsZero():
		cond := fmt.Sprintf(`(
			actor_id = $%d
			OR (resource_type = 'assignment' AND resource_id IN (
				SELECT id FROM assignments WHERE technician_id = $%d))
		)`, *argNum, *argNum)
		*args = append(*args, scope.OwnerID)
		*argNum = *argNum + 1
		return cond
	case !scope.TeamOf.IsZero():
		cond := fmt.Sprintf(`(
			actor_id = $%d
			OR actor_id IN (SELECT user_id FROM technician_profiles WHERE supervisor_id = $%d)
			OR (resource_type = 'assignment' AND resource_id IN (
				SELECT a.id FROM assignments a
				JOIN technician_profiles tp ON tp.user_id = a.technician_id
				WHERE tp.supervisor_id = $%d))
			OR (resource_type = 'technician' AND resource_id IN (
				SELECT user_id FROM technician_profiles
				WHERE supervisor_id = $%d OR supervisor_id IS NULL))
		)`, *argNum, *argNum, *argNum, *argNum)
		*args = append(*args, scope.TeamOf)
		*argNum = *argNum + 1
		return cond
	}
	return "FALSE"
}
