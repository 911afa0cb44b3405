package db

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"intelliquery/internal/config"
)

// Upload records one ingested file.
type Upload struct {
	bun.BaseModel `bun:"table:uploads,alias:u"`
	ID            int64     `bun:"id,pk,autoincrement"`
	Filename      string    `bun:"filename,notnull"`
	MediaType     string    `bun:"media_type,notnull"`
	ChunkCount    int       `bun:"chunk_count,notnull"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// Exchange records one question/answer turn.
type Exchange struct {
	bun.BaseModel `bun:"table:exchanges,alias:e"`
	ID            int64     `bun:"id,pk,autoincrement"`
	Question      string    `bun:"question,notnull"`
	Answer        string    `bun:"answer,notnull"`
	Source        string    `bun:"source"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// ConnectDB opens the Postgres connection described by the config.
func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	dsn := cfg.DSN + "?sslmode=disable"
	return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn), pgdriver.WithPassword(cfg.Key))), nil
}

// NewDB wraps the sql connection in a bun client, with query logging when
// debug is set.
func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// InitDB creates the registry tables if they do not exist.
func InitDB(ctx context.Context, db *bun.DB) error {
	if _, err := db.NewCreateTable().Model((*Upload)(nil)).IfNotExists().Exec(ctx); err != nil {
		return err
	}
	_, err := db.NewCreateTable().Model((*Exchange)(nil)).IfNotExists().Exec(ctx)
	return err
}

// StoreUpload registers an ingested file.
func StoreUpload(ctx context.Context, db *bun.DB, filename, mediaType string, chunkCount int) error {
	u := &Upload{
		Filename:   filename,
		MediaType:  mediaType,
		ChunkCount: chunkCount,
	}
	_, err := db.NewInsert().Model(u).Exec(ctx)
	return err
}

// ListUploads returns the registered files, oldest first.
func ListUploads(ctx context.Context, db *bun.DB) ([]Upload, error) {
	var uploads []Upload
	err := db.NewSelect().
		Model(&uploads).
		Order("created_at ASC").
		Scan(ctx)
	return uploads, err
}

// StoreExchange persists one conversation turn.
func StoreExchange(ctx context.Context, db *bun.DB, question, answer, source string) error {
	e := &Exchange{
		Question: question,
		Answer:   answer,
		Source:   source,
	}
	_, err := db.NewInsert().Model(e).Exec(ctx)
	return err
}

// ListExchanges returns the conversation history, oldest first.
func ListExchanges(ctx context.Context, db *bun.DB, limit int) ([]Exchange, error) {
	var exchanges []Exchange
	q := db.NewSelect().Model(&exchanges).Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Scan(ctx)
	return exchanges, err
}

// DropAll drops the registry tables.
func DropAll(ctx context.Context, db *bun.DB) error {
	if _, err := db.NewDropTable().Model((*Upload)(nil)).IfExists().Exec(ctx); err != nil {
		return err
	}
	_, err := db.NewDropTable().Model((*Exchange)(nil)).IfExists().Exec(ctx)
	return err
}
