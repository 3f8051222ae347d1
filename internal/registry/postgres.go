package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/KaramelBytes/socialhub-cli/internal/dataset"
	"github.com/KaramelBytes/socialhub-cli/internal/model"
)

// Drivers accepted by OpenPostgres.
const (
	DriverPQ  = "postgres"
	DriverPGX = "pgx"
)

const schema = `
CREATE TABLE IF NOT EXISTS socialhub_datasets (
	id           UUID PRIMARY KEY,
	name         TEXT NOT NULL,
	headers      TEXT[] NOT NULL,
	data_rows    JSONB NOT NULL,
	cleaned      JSONB,
	uploaded_at  TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS socialhub_models (
	id              UUID PRIMARY KEY,
	dataset_id      UUID NOT NULL REFERENCES socialhub_datasets(id) ON DELETE CASCADE,
	model_type      TEXT NOT NULL,
	target_column   TEXT NOT NULL,
	feature_columns TEXT[] NOT NULL,
	params          JSONB NOT NULL,
	metrics         JSONB NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL
);`

// PoolSettings sizes the connection pool.
type PoolSettings struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultPool suits a single server process.
var DefaultPool = PoolSettings{MaxOpenConns: 10, MaxIdleConns: 5, ConnMaxLifetime: 30 * time.Minute}

// Postgres is a Repository on PostgreSQL.
type Postgres struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// OpenPostgres connects with driver (DriverPQ or DriverPGX), verifies the
// connection and creates the tables if needed.
func OpenPostgres(ctx context.Context, driver, dsn string, pool PoolSettings, logger *zap.Logger) (*Postgres, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("registry")
	if driver == "" {
		driver = DriverPQ
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	stats := db.Stats()
	logger.Info("registry ready", zap.String("driver", driver), zap.Int("open_connections", stats.OpenConnections))
	return &Postgres{db: db, logger: logger}, nil
}

// JSONB parameters are passed as strings; lib/pq would send []byte as bytea.

type datasetRow struct {
	ID         string         `db:"id"`
	Name       string         `db:"name"`
	Headers    pq.StringArray `db:"headers"`
	Rows       []byte         `db:"data_rows"`
	Cleaned    []byte         `db:"cleaned"`
	UploadedAt time.Time      `db:"uploaded_at"`
}

func (r datasetRow) decode() (*Dataset, error) {
	d := &Dataset{ID: r.ID, Name: r.Name, UploadedAt: r.UploadedAt.UTC()}
	d.Raw.Headers = []string(r.Headers)
	if err := json.Unmarshal(r.Rows, &d.Raw.Rows); err != nil {
		return nil, fmt.Errorf("decode rows of %s: %w", r.ID, err)
	}
	if len(r.Cleaned) > 0 {
		var c dataset.Dataset
		if err := json.Unmarshal(r.Cleaned, &c); err != nil {
			return nil, fmt.Errorf("decode cleaned rows of %s: %w", r.ID, err)
		}
		d.Cleaned = &c
	}
	return d, nil
}

func (p *Postgres) CreateDataset(ctx context.Context, name string, ds dataset.Dataset) (*Dataset, error) {
	rows, err := json.Marshal(rowsOrEmpty(ds.Rows))
	if err != nil {
		return nil, fmt.Errorf("encode rows: %w", err)
	}
	d := &Dataset{ID: uuid.NewString(), Name: name, Raw: ds.Clone(), UploadedAt: time.Now().UTC().Truncate(time.Microsecond)}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO socialhub_datasets (id, name, headers, data_rows, uploaded_at) VALUES ($1, $2, $3, $4, $5)`,
		d.ID, d.Name, pq.Array(append([]string{}, ds.Headers...)), string(rows), d.UploadedAt)
	if err != nil {
		return nil, fmt.Errorf("insert dataset: %w", err)
	}
	p.logger.Debug("dataset stored", zap.String("id", d.ID), zap.Int("rows", ds.Len()))
	return d, nil
}

func rowsOrEmpty(rows []dataset.Record) []dataset.Record {
	if rows == nil {
		return []dataset.Record{}
	}
	return rows
}

func (p *Postgres) GetDataset(ctx context.Context, id string) (*Dataset, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrDatasetNotFound
	}
	var row datasetRow
	err := p.db.GetContext(ctx, &row,
		`SELECT id, name, headers, data_rows, cleaned, uploaded_at FROM socialhub_datasets WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDatasetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select dataset: %w", err)
	}
	return row.decode()
}

func (p *Postgres) SaveCleaned(ctx context.Context, id string, cleaned dataset.Dataset) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrDatasetNotFound
	}
	cleaned.Rows = rowsOrEmpty(cleaned.Rows)
	b, err := json.Marshal(cleaned)
	if err != nil {
		return fmt.Errorf("encode cleaned: %w", err)
	}
	res, err := p.db.ExecContext(ctx, `UPDATE socialhub_datasets SET cleaned = $2 WHERE id = $1`, id, string(b))
	if err != nil {
		return fmt.Errorf("update dataset: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrDatasetNotFound
	}
	return nil
}

type modelRow struct {
	ID        string         `db:"id"`
	DatasetID string         `db:"dataset_id"`
	Kind      string         `db:"model_type"`
	Target    string         `db:"target_column"`
	Features  pq.StringArray `db:"feature_columns"`
	Params    []byte         `db:"params"`
	Metrics   []byte         `db:"metrics"`
	CreatedAt time.Time      `db:"created_at"`
}

func (p *Postgres) CreateModel(ctx context.Context, datasetID string, fitted *model.Model, metrics map[string]any) (*Model, error) {
	if _, err := uuid.Parse(datasetID); err != nil {
		return nil, ErrDatasetNotFound
	}
	params, err := json.Marshal(fitted)
	if err != nil {
		return nil, fmt.Errorf("encode model: %w", err)
	}
	mb, err := json.Marshal(metrics)
	if err != nil {
		return nil, fmt.Errorf("encode metrics: %w", err)
	}
	rec := &Model{
		ID:        uuid.NewString(),
		DatasetID: datasetID,
		Kind:      fitted.Params.Kind,
		Target:    fitted.Params.Target,
		Metrics:   metrics,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
		Fitted:    fitted,
	}
	res, err := p.db.ExecContext(ctx,
		`INSERT INTO socialhub_models (id, dataset_id, model_type, target_column, feature_columns, params, metrics, created_at)
		 SELECT $1, id, $3, $4, $5, $6, $7, $8 FROM socialhub_datasets WHERE id = $2`,
		rec.ID, datasetID, string(rec.Kind), rec.Target, pq.Array(append([]string{}, fitted.FeatureColumns()...)), string(params), string(mb), rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert model: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrDatasetNotFound
	}
	return rec, nil
}

func (p *Postgres) GetModel(ctx context.Context, id string) (*Model, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrModelNotFound
	}
	var row modelRow
	err := p.db.GetContext(ctx, &row,
		`SELECT id, dataset_id, model_type, target_column, feature_columns, params, metrics, created_at
		 FROM socialhub_models WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrModelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select model: %w", err)
	}
	rec := &Model{
		ID:        row.ID,
		DatasetID: row.DatasetID,
		Kind:      dataset.ModelType(row.Kind),
		Target:    row.Target,
		CreatedAt: row.CreatedAt.UTC(),
		Fitted:    &model.Model{},
	}
	if err := json.Unmarshal(row.Params, rec.Fitted); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", id, err)
	}
	if err := json.Unmarshal(row.Metrics, &rec.Metrics); err != nil {
		return nil, fmt.Errorf("decode metrics %s: %w", id, err)
	}
	return rec, nil
}

func (p *Postgres) Close() error {
	p.logger.Info("closing registry")
	return p.db.Close()
}
