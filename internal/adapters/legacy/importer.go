package legacy

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/denisenkom/go-mssqldb" // SQL Server driver
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zerocool-source/apiV2/internal/shared/config"
	"github.com/zerocool-source/apiV2/internal/shared/metrics"
	"github.com/zerocool-source/apiV2/internal/shared/types"
)

// Importer pulls property records from the legacy SQL Server scheduling
// system. The import is one-way: legacy is the source of record for
// property addresses until it is retired.
type Importer struct {
	legacy *sql.DB
	pool   *pgxpool.Pool
}

// Row is one property record as it appears in the legacy system
type Row struct {
	Ref     string
	Address string
	Region  string
}

// Result summarizes one import run
type Result struct {
	Imported int       `json:"imported"`
	Skipped  int       `json:"skipped"`
	RanAt    time.Time `json:"ran_at"`
}

// NewImporter connects to the legacy database
func NewImporter(cfg config.LegacyConfig, pool *pgxpool.Pool) (*Importer, error) {
	db, err := sql.Open("sqlserver", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open legacy database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	return &Importer{legacy: db, pool: pool}, nil
}

// Close closes the legacy connection
func (i *Importer) Close() error {
	return i.legacy.Close()
}

// Ping verifies the legacy connection
func (i *Importer) Ping(ctx context.Context) error {
	return i.legacy.PingContext(ctx)
}

// Run imports legacy property records. Existing records are matched on
// legacy_ref and updated in place; malformed rows are skipped, not fatal.
func (i *Importer) Run(ctx context.Context) (Result, error) {
	result := Result{RanAt: time.Now().UTC()}

	rows, err := i.legacy.QueryContext(ctx, `
		SELECT SiteRef, SiteAddress, Territory
		FROM dbo.ServiceSites
		WHERE Retired = 0`)
	if err != nil {
		metrics.RecordLegacyImport("error")
		return result, fmt.Errorf("failed to query legacy sites: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var row Row
		var territory sql.NullString
		if err := rows.Scan(&row.Ref, &row.Address, &territory); err != nil {
			result.Skipped++
			continue
		}
		row.Region = mapTerritory(territory.String)

		if row.Ref == "" || row.Address == "" {
			result.Skipped++
			continue
		}

		if err := i.upsert(ctx, row); err != nil {
			log.Printf("legacy: skipping site %s: %v", row.Ref, err)
			result.Skipped++
			continue
		}
		result.Imported++
	}
	if err := rows.Err(); err != nil {
		metrics.RecordLegacyImport("error")
		return result, fmt.Errorf("failed to read legacy sites: %w", err)
	}

	metrics.RecordLegacyImport("ok")
	return result, nil
}

func (i *Importer) upsert(ctx context.Context, row Row) error {
	_, err := i.pool.Exec(ctx, `
		INSERT INTO properties (id, address, region, legacy_ref)
		VALUES ($1, $2, NULLIF($3, ''), $4)
		ON CONFLICT (legacy_ref) DO UPDATE SET
			address = EXCLUDED.address,
			region = COALESCE(EXCLUDED.region, properties.region),
			updated_at = NOW()`,
		types.NewID(), row.Address, row.Region, row.Ref,
	)
	return err
}

// mapTerritory translates legacy territory codes to regions. Unknown
// codes import without a region rather than failing the row.
func mapTerritory(territory string) string {
	switch territory {
	case "N", "NORTH":
		return string(types.RegionNorth)
	case "C", "CENTRAL", "MID":
		return string(types.RegionMid)
	case "S", "SOUTH":
		return string(types.RegionSouth)
	}
	return ""
}
