package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"viralshorts/manager-go/internal/utils"
)

// ErrNotFound is returned when a lookup matches no short.
var ErrNotFound = errors.New("short not found")

type Store struct {
	pool *pgxpool.Pool
}

type Short struct {
	ID        int64
	BatchID   string
	Title     string
	Category  string
	Score     *float64
	Status    string
	Meta      []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

const shortColumns = `id, batch_id::text, title, category, score, status, meta, created_at, updated_at`

func NewStore(ctx context.Context, connString string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func scanShort(row pgx.Row) (Short, error) {
	var sh Short
	err := row.Scan(
		&sh.ID,
		&sh.BatchID,
		&sh.Title,
		&sh.Category,
		&sh.Score,
		&sh.Status,
		&sh.Meta,
		&sh.CreatedAt,
		&sh.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Short{}, ErrNotFound
	}
	return sh, err
}

func (s *Store) GetShortByID(ctx context.Context, id int64) (Short, error) {
	utils.Debug("db get short", "id", id)
	row := s.pool.QueryRow(ctx, `SELECT `+shortColumns+` FROM shorts WHERE id = $1`, id)
	return scanShort(row)
}

// FindFirstShort returns the oldest short matching where, or ErrNotFound.
func (s *Store) FindFirstShort(ctx context.Context, where string, args ...any) (Short, error) {
	query := `
		SELECT ` + shortColumns + `
		FROM shorts
		` + where + `
		ORDER BY id
		LIMIT 1
	`
	utils.Debug("db find first", "query", strings.TrimSpace(query), "args", args)
	return scanShort(s.pool.QueryRow(ctx, query, args...))
}

func (s *Store) CountShorts(ctx context.Context, where string, args ...any) (int, error) {
	query := `SELECT COUNT(*) FROM shorts ` + where
	utils.Debug("db count", "query", strings.TrimSpace(query), "args", args)
	var count int
	return count, s.pool.QueryRow(ctx, query, args...).Scan(&count)
}

func (s *Store) ListShorts(ctx context.Context, where string, limit int, args ...any) ([]Short, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM shorts %s ORDER BY id DESC LIMIT %d`, shortColumns, where, limit)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shorts []Short
	for rows.Next() {
		sh, err := scanShort(rows)
		if err != nil {
			return nil, err
		}
		shorts = append(shorts, sh)
	}
	return shorts, rows.Err()
}

func (s *Store) ListBatchShorts(ctx context.Context, batchID string) ([]Short, error) {
	return s.ListShorts(ctx, `WHERE batch_id = $1::uuid`, 1000, batchID)
}

// CreateShort inserts a new short in the given batch and returns its id.
func (s *Store) CreateShort(ctx context.Context, batchID string, meta map[string]any) (int64, error) {
	if meta == nil {
		meta = map[string]any{}
	}
	utils.EnsureStatusMap(meta)
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return 0, err
	}
	utils.Debug("db create short", "batch_id", batchID)
	var id int64
	err = s.pool.QueryRow(ctx, `
		INSERT INTO shorts (batch_id, status, meta, created_at, updated_at)
		VALUES ($1::uuid, 'new', $2, NOW(), NOW())
		RETURNING id
	`, batchID, metaJSON).Scan(&id)
	return id, err
}

func (s *Store) UpdateShortMetaStatus(ctx context.Context, id int64, status string, meta map[string]any) error {
	utils.Debug("db update meta+status", "id", id, "status", status)
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE shorts
		SET status = $1,
			meta = $2,
			updated_at = NOW()
		WHERE id = $3
	`, status, metaJSON, id)
	return err
}

// UpdateShortScript stores the script-stage columns alongside the meta document.
func (s *Store) UpdateShortScript(ctx context.Context, id int64, title, category string, score float64, status string, meta map[string]any) error {
	utils.Debug("db update script", "id", id, "score", score, "category", category)
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE shorts
		SET title = $1,
			category = $2,
			score = $3,
			status = $4,
			meta = $5,
			updated_at = NOW()
		WHERE id = $6
	`, title, category, score, status, metaJSON, id)
	return err
}

func StatusTrueCondition(flags []string) string {
	conds := make([]string, 0, len(flags))
	for _, flag := range flags {
		conds = append(conds, fmt.Sprintf("meta->'status'->>'%s' = 'true'", flag))
	}
	return strings.Join(conds, " AND ")
}

func StatusNotTrueCondition(flags []string) string {
	conds := make([]string, 0, len(flags))
	for _, flag := range flags {
		conds = append(conds, fmt.Sprintf("(meta->'status'->>'%s' IS NULL OR meta->'status'->>'%s' <> 'true')", flag, flag))
	}
	return strings.Join(conds, " AND ")
}

func MetaKeyMissingCondition(keys []string) string {
	conds := make([]string, 0, len(keys))
	for _, key := range keys {
		conds = append(conds, fmt.Sprintf("NOT (meta ? '%s')", key))
	}
	return strings.Join(conds, " AND ")
}

// BestInBatchCondition matches the highest-scoring short of its batch; ties go to the lowest id.
func BestInBatchCondition() string {
	return `id = (
		SELECT b.id FROM shorts b
		WHERE b.batch_id = shorts.batch_id AND b.score IS NOT NULL AND b.status <> 'failed'
		ORDER BY b.score DESC, b.id
		LIMIT 1
	)`
}

// Where joins non-empty conditions into a WHERE clause.
func Where(conds ...string) string {
	parts := make([]string, 0, len(conds))
	for _, c := range conds {
		if strings.TrimSpace(c) != "" {
			parts = append(parts, c)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(parts, " AND ")
}
