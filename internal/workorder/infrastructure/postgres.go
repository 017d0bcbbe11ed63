package infrastructure

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zerocool-source/apiV2/internal/authz"
	"github.com/zerocool-source/apiV2/internal/shared/errors"
	"github.com/zerocool-source/apiV2/internal/shared/types"
	"github.com/zerocool-source/apiV2/internal/workorder/domain"
)

// PostgresRepository provides database operations for assignments
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new assignment repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const assignmentColumns = `
	a.id, a.property_id, a.technician_id, a.status, a.priority,
	a.scheduled_date, a.completed_at, a.canceled_at, a.canceled_reason,
	a.notes, a.version, a.created_at, a.updated_at`

func scanAssignment(row pgx.Row) (*domain.Assignment, error) {
	a := &domain.Assignment{}
	err := row.Scan(
		&a.ID, &a.PropertyID, &a.TechnicianID, &a.Status, &a.Priority,
		&a.ScheduledDate, &a.CompletedAt, &a.CanceledAt, &a.CanceledReason,
		&a.Notes, &a.Version, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// CreateAssignment inserts a new assignment
func (r *PostgresRepository) CreateAssignment(ctx context.Context, a *domain.Assignment) error {
	query := `
		INSERT INTO assignments (
			id, property_id, technician_id, status, priority,
			scheduled_date, notes, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.pool.Exec(ctx, query,
		a.ID, a.PropertyID, a.TechnicianID, a.Status, a.Priority,
		a.ScheduledDate, a.Notes, a.Version, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "foreign key") {
			return errors.BadRequest("property or technician does not exist")
		}
		return errors.Wrap(err, "failed to create assignment")
	}
	return nil
}

// GetAssignment fetches an assignment together with the owning technician's
// supervisor, which the authorization gate needs for team checks. The
// supervisor id is zero when the technician is unassigned.
func (r *PostgresRepository) GetAssignment(ctx context.Context, id types.ID) (authz.AssignmentSnapshot, error) {
	query := fmt.Sprintf(`
		SELECT %s, COALESCE(tp.supervisor_id::text, '')
		FROM assignments a
		LEFT JOIN technician_profiles tp ON tp.user_id = a.technician_id
		WHERE a.id = $1`, assignmentColumns)

	a := &domain.Assignment{}
	var supervisorID string
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.PropertyID, &a.TechnicianID, &a.Status, &a.Priority,
		&a.ScheduledDate, &a.CompletedAt, &a.CanceledAt, &a.CanceledReason,
		&a.Notes, &a.Version, &a.CreatedAt, &a.UpdatedAt,
		&supervisorID,
	)
	if err == pgx.ErrNoRows {
		return authz.AssignmentSnapshot{}, errors.NotFound("assignment", id.String())
	}
	if err != nil {
		return authz.AssignmentSnapshot{}, errors.Wrap(err, "failed to get assignment")
	}

	return authz.AssignmentSnapshot{
		Assignment:             a,
		TechnicianSupervisorID: types.ID(supervisorID),
	}, nil
}

// ListFilter defines filters for listing assignments
type ListFilter struct {
	Status       *domain.Status
	Priority     *domain.Priority
	TechnicianID *types.ID
	PropertyID   *types.ID
	From         *time.Time
	To           *time.Time
	Limit        int
	Offset       int
}

// ListAssignments returns assignments admitted by the caller's scope,
// narrowed by the filter
func (r *PostgresRepository) ListAssignments(ctx context.Context, scope authz.Scope, filter ListFilter) ([]*domain.Assignment, int, error) {
	where := []string{}
	args := []any{}

	if cond := assignmentScopeCondition(scope, &args); cond != "" {
		where = append(where, cond)
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		where = append(where, fmt.Sprintf("a.status = $%d", len(args)))
	}
	if filter.Priority != nil {
		args = append(args, *filter.Priority)
		where = append(where, fmt.Sprintf("a.priority = $%d", len(args)))
	}
	if filter.TechnicianID != nil {
		args = append(args, *filter.TechnicianID)
		where = append(where, fmt.Sprintf("a.technician_id = $%d", len(args)))
	}
	if filter.PropertyID != nil {
		args = append(args, *filter.PropertyID)
		where = append(where, fmt.Sprintf("a.property_id = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		where = append(where, fmt.Sprintf("a.scheduled_date >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		where = append(where, fmt.Sprintf("a.scheduled_date <= $%d", len(args)))
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM assignments a %s", whereClause)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count assignments")
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit)
	limitClause := fmt.Sprintf("LIMIT $%d", len(args))
	args = append(args, filter.Offset)
	offsetClause := fmt.Sprintf("OFFSET $%d", len(args))

	query := fmt.Sprintf(`
		SELECT %s FROM assignments a
		%s
		ORDER BY a.scheduled_date, a.created_at
		%s %s`, assignmentColumns, whereClause, limitClause, offsetClause)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list assignments")
	}
	defer rows.Close()

	var assignments []*domain.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan assignment")
		}
		assignments = append(assignments, a)
	}

	return assignments, total, nil
}

// assignmentScopeCondition translates a read scope into a SQL predicate
func assignmentScopeCondition(scope authz.Scope, args *[]any) string {
	switch {
	case scope.All:
		return ""
	case scope.None:
		return "FALSE"
	case !scope.OwnerID.IsZero():
		*args = append(*args, scope.OwnerID)
		return fmt.Sprintf("a.technician_id = $%d", len(*args))
	case !scope.TeamOf.IsZero():
		*args = append(*args, scope.TeamOf)
		return fmt.Sprintf(
			"EXISTS (SELECT 1 FROM technician_profiles tp WHERE tp.user_id = a.technician_id AND tp.supervisor_id = $%d)",
			len(*args))
	}
	return "FALSE"
}

// UpdateParams carries the fields of an authorized mutation. Pointer fields
// are written only when non-nil; the timestamp fields come from the gate's
// applied verdict, never from the caller directly (except repair/admin
// overrides, which the gate passes through).
type UpdateParams struct {
	Status         *domain.Status
	Priority       *domain.Priority
	ScheduledDate  *time.Time
	TechnicianID   *types.ID
	PropertyID     *types.ID
	Notes          *string
	CanceledReason *string
	CompletedAt    *time.Time
	ClearCompleted bool
	CanceledAt     *time.Time
}

// UpdateAssignment applies an authorized mutation with optimistic
// concurrency: the write only lands if the row still carries the version
// the caller read, otherwise Conflict is returned and the caller retries
// against a fresh snapshot.
func (r *PostgresRepository) UpdateAssignment(ctx context.Context, id types.ID, version int, params UpdateParams) (*domain.Assignment, error) {
	sets := []string{"updated_at = NOW()", "version = version + 1"}
	args := []any{}

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if params.Status != nil {
		add("status", *params.Status)
	}
	if params.Priority != nil {
		add("priority", *params.Priority)
	}
	if params.ScheduledDate != nil {
		add("scheduled_date", *params.ScheduledDate)
	}
	if params.TechnicianID != nil {
		add("technician_id", *params.TechnicianID)
	}
	if params.PropertyID != nil {
		add("property_id", *params.PropertyID)
	}
	if params.Notes != nil {
		add("notes", *params.Notes)
	}
	if params.CanceledReason != nil {
		add("canceled_reason", *params.CanceledReason)
	}
	if params.ClearCompleted {
		sets = append(sets, "completed_at = NULL")
	} else if params.CompletedAt != nil {
		add("completed_at", *params.CompletedAt)
	}
	if params.CanceledAt != nil {
		add("canceled_at", *params.CanceledAt)
	}

	args = append(args, id)
	idArg := len(args)
	args = append(args, version)
	versionArg := len(args)

	query := fmt.Sprintf(`
		UPDATE assignments SET %s
		WHERE id = $%d AND version = $%d
		RETURNING %s`,
		strings.Join(sets, ", "), idArg, versionArg,
		strings.ReplaceAll(assignmentColumns, "a.", ""))

	a, err := scanAssignment(r.pool.QueryRow(ctx, query, args...))
	if err == pgx.ErrNoRows {
		// Either the row vanished or another writer bumped the version
		var exists bool
		if checkErr := r.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM assignments WHERE id = $1)`, id).Scan(&exists); checkErr != nil {
			return nil, errors.Wrap(checkErr, "failed to check assignment")
		}
		if !exists {
			return nil, errors.NotFound("assignment", id.String())
		}
		return nil, errors.Conflict("assignment was modified concurrently, retry with the latest version")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to update assignment")
	}

	return a, nil
}
