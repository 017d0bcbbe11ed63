package technician

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zerocool-source/apiV2/internal/authz"
	"github.com/zerocool-source/apiV2/internal/shared/errors"
	"github.com/zerocool-source/apiV2/internal/shared/types"
)

// Repository provides database operations for technician profiles
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new technician repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const profileColumns = `user_id, supervisor_id, name, phone, truck_id, COALESCE(region, ''), active, created_at, updated_at`

// CreateProfile inserts a new technician profile. The user must already
// exist with the tech role.
func (r *Repository) CreateProfile(ctx context.Context, p *Profile) error {
	query := `
		INSERT INTO technician_profiles (
			user_id, supervisor_id, name, phone, truck_id, region, active
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		p.UserID, p.SupervisorID, p.Name, p.Phone, p.TruckID, p.Region, p.Active,
	).Scan(&p.CreatedAt, &p.UpdatedAt)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("technician profile already exists")
		}
		if strings.Contains(err.Error(), "foreign key") {
			return errors.BadRequest("user does not exist")
		}
		return errors.Wrap(err, "failed to create technician profile")
	}

	return nil
}

// GetProfile retrieves a technician profile by user ID
func (r *Repository) GetProfile(ctx context.Context, userID types.ID) (*Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM technician_profiles WHERE user_id = $1`

	p := &Profile{}
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&p.UserID, &p.SupervisorID, &p.Name, &p.Phone, &p.TruckID,
		&p.Region, &p.Active, &p.CreatedAt, &p.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("technician", userID.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get technician profile")
	}

	return p, nil
}

// TechnicianView resolves a profile into the shape the authorization
// layer works with
func (r *Repository) TechnicianView(ctx context.Context, userID types.ID) (authz.TechnicianView, error) {
	p, err := r.GetProfile(ctx, userID)
	if err != nil {
		return authz.TechnicianView{}, err
	}
	return View(p), nil
}

// View converts a profile to its authorization view
func View(p *Profile) authz.TechnicianView {
	return authz.TechnicianView{
		UserID:       p.UserID,
		SupervisorID: p.SupervisorID,
		Region:       p.Region,
		Active:       p.Active,
	}
}

// ListFilter narrows technician listings
type ListFilter struct {
	Region *types.Region
	Active *bool
	Limit  int
	Offset int
}

// ListProfiles lists technician profiles within the given scope
func (r *Repository) ListProfiles(ctx context.Context, scope authz.Scope, filter ListFilter) ([]*Profile, int, error) {
	conditions := []string{}
	args := []interface{}{}
	argNum := 1

	if cond, arg := profileScopeCondition(scope, &argNum); cond != "" {
		conditions = append(conditions, cond)
		if arg != nil {
			args = append(args, arg)
		}
	}
	if filter.Region != nil {
		conditions = append(conditions, fmt.Sprintf("region = $%d", argNum))
		args = append(args, *filter.Region)
		argNum++
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", argNum))
		args = append(args, *filter.Active)
		argNum++
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM technician_profiles` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count technicians")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	query := fmt.Sprintf(
		`SELECT `+profileColumns+` FROM technician_profiles%s ORDER BY name LIMIT $%d OFFSET $%d`,
		where, argNum, argNum+1,
	)
	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list technicians")
	}
	defer rows.Close()

	var profiles []*Profile
	for rows.Next() {
		p := &Profile{}
		if err := rows.Scan(
			&p.UserID, &p.SupervisorID, &p.Name, &p.Phone, &p.TruckID,
			&p.Region, &p.Active, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan technician profile")
		}
		profiles = append(profiles, p)
	}

	return profiles, total, nil
}

// profileScopeCondition translates a read scope into SQL. Supervisors see
// their team plus unassigned technicians.
func profileScopeCondition(scope authz.Scope, argNum *int) (string, interface{}) {
	switch {
	case scope.None:
		return "FALSE", nil
	case scope.All:
		return "", nil
	case !scope.OwnerID.IsZero():
		cond := fmt.Sprintf("user_id = $%d", *argNum)
		(*argNum)++
		return cond, scope.OwnerID
	case !scope.TeamOf.IsZero():
		var cond string
		if scope.IncludeUnassigned {
			cond = fmt.Sprintf("(supervisor_id = $%d OR supervisor_id IS NULL)", *argNum)
		} else {
			cond = fmt.Sprintf("supervisor_id = $%d", *argNum)
		}
		(*argNum)++
		return cond, scope.TeamOf
	}
	return "FALSE", nil
}

// UpdateParams carries partial profile updates
type UpdateParams struct {
	Name            *string
	Phone           *string
	TruckID         *string
	Active          *bool
	SupervisorID    *types.ID
	ClearSupervisor bool
}

// UpdateProfile applies a partial update to a technician profile
func (r *Repository) UpdateProfile(ctx context.Context, userID types.ID, params UpdateParams) (*Profile, error) {
	setClauses := []string{"updated_at = NOW()"}
	args := []interface{}{}
	argNum := 1

	if params.Name != nil {
		setClauses = append(setClauses, fmt.Sprintf("name = $%d", argNum))
		args = append(args, *params.Name)
		argNum++
	}
	if params.Phone != nil {
		setClauses = append(setClauses, fmt.Sprintf("phone = $%d", argNum))
		args = append(args, *params.Phone)
		argNum++
	}
	if params.TruckID != nil {
		setClauses = append(setClauses, fmt.Sprintf("truck_id = $%d", argNum))
		args = append(args, *params.TruckID)
		argNum++
	}
	if params.Active != nil {
		setClauses = append(setClauses, fmt.Sprintf("active = $%d", argNum))
		args = append(args, *params.Active)
		argNum++
	}
	if params.ClearSupervisor {
		setClauses = append(setClauses, "supervisor_id = NULL")
	} else if params.SupervisorID != nil {
		setClauses = append(setClauses, fmt.Sprintf("supervisor_id = $%d", argNum))
		args = append(args, *params.SupervisorID)
		argNum++
	}

	query := fmt.Sprintf(
		`UPDATE technician_profiles SET %s WHERE user_id = $%d RETURNING `+profileColumns,
		strings.Join(setClauses, ", "), argNum,
	)
	args = append(args, userID)

	p := &Profile{}
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&p.UserID, &p.SupervisorID, &p.Name, &p.Phone, &p.TruckID,
		&p.Region, &p.Active, &p.CreatedAt, &p.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("technician", userID.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to update technician profile")
	}

	return p, nil
}

// TechnicianExists checks that the given user exists with the tech role
func (r *Repository) TechnicianExists(ctx context.Context, id types.ID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1 AND role = 'tech')`, id,
	).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "failed to check technician")
	}
	return exists, nil
}

// SupervisorExists checks that the given user exists with the supervisor role
func (r *Repository) SupervisorExists(ctx context.Context, id types.ID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1 AND role = 'supervisor')`, id,
	).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "failed to check supervisor")
	}
	return exists, nil
}
