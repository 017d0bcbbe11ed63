package property

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

// Repository provides database operations for properties
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new property repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const propertyColumns = `p.id, p.address, COALESCE(p.region, ''), COALESCE(p.legacy_ref, ''), p.created_at, p.updated_at`

// CreateProperty inserts a new property
func (r *Repository) CreateProperty(ctx context.Context, p *Property) error {
	query := `
		INSERT INTO properties (id, address, region, legacy_ref)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''))
		RETURNING created_at, updated_at`

	err := r.pool.QueryRow(ctx, query, p.ID, p.Address, p.Region, p.LegacyRef).
		Scan(&p.CreatedAt, &p.UpdatedAt)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("property already exists")
		}
		return errors.Wrap(err, "failed to create property")
	}

	return nil
}

// GetProperty retrieves a property by ID within the given scope. A property
// outside the scope reads as missing.
func (r *Repository) GetProperty(ctx context.Context, scope authz.Scope, id types.ID) (*Property, error) {
	conditions := []string{"p.id = $1"}
	args := []interface{}{id}
	argNum := 2

	if cond := propertyScopeCondition(scope, &argNum, &args); cond != "" {
		conditions = append(conditions, cond)
	}

	query := `SELECT ` + propertyColumns + ` FROM properties p WHERE ` +
		strings.Join(conditions, " AND ")

	p := &Property{}
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&p.ID, &p.Address, &p.Region, &p.LegacyRef, &p.CreatedAt, &p.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("property", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get property")
	}

	return p, nil
}

// ListFilter narrows property listings
type ListFilter struct {
	Region *types.Region
	Limit  int
	Offset int
}

// ListProperties lists properties within the given scope
func (r *Repository) ListProperties(ctx context.Context, scope authz.Scope, filter ListFilter) ([]*Property, int, error) {
	conditions := []string{}
	args := []interface{}{}
	argNum := 1

	if cond := propertyScopeCondition(scope, &argNum, &args); cond != "" {
		conditions = append(conditions, cond)
	}
	if filter.Region != nil {
		conditions = append(conditions, fmt.Sprintf("p.region = $%d", argNum))
		args = append(args, *filter.Region)
		argNum++
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM properties p` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count properties")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	query := fmt.Sprintf(
		`SELECT `+propertyColumns+` FROM properties p%s ORDER BY p.address LIMIT $%d OFFSET $%d`,
		where, argNum, argNum+1,
	)
	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list properties")
	}
	defer rows.Close()

	var properties []*Property
	for rows.Next() {
		p := &Property{}
		if err := rows.Scan(
			&p.ID, &p.Address, &p.Region, &p.LegacyRef, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan property")
		}
		properties = append(properties, p)
	}

	return properties, total, nil
}

// propertyScopeCondition translates a read scope into SQL. Techs and repair
// see properties with work on their own route; supervisors see their region
// unioned with properties their team services.
func propertyScopeCondition(scope authz.Scope, argNum *int, args *[]interface{}) string {
	switch {
	case scope.None:
		return "FALSE"
	case scope.All:
		return ""
	case !scope.OwnerID.IsZero():
		cond := fmt.Sprintf(
			`EXISTS (SELECT 1 FROM assignments a WHERE a.property_id = p.id AND a.technician_id = $%d)`,
			*argNum,
		)
		*args = append(*args, scope.OwnerID)
		*argNum = *argNum + 1
		return cond
	case !scope.TeamOf.IsZero():
		teamCond := fmt.Sprintf(
			`EXISTS (
				SELECT 1 FROM assignments a
				JOIN technician_profiles tp ON tp.user_id = a.technician_id
				WHERE a.property_id = p.id AND tp.supervisor_id = $%d
			)`,
			*argNum,
		)
		*args = append(*args, scope.TeamOf)
		*argNum = *argNum + 1

		if scope.Region == "" {
			return teamCond
		}
		regionCond := fmt.Sprintf("p.region = $%d", *argNum)
		*args = append(*args, scope.Region)
		*argNum = *argNum + 1
		return "(" + regionCond + " OR " + teamCond + ")"
	}
	return "FALSE"
}
