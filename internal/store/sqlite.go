package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/trigonal/intake/internal/domain"
)

//go:embed schema.sql
var schema string

var (
	// ErrNotFound is returned when no brief matches an id or prefix
	ErrNotFound = errors.New("brief not found")
	// ErrAmbiguous is returned when an id prefix matches several briefs
	ErrAmbiguous = errors.New("brief id prefix is ambiguous")
)

const briefColumns = `id, created_at, updated_at, status, source, name, organization, email,
	scale, timeline, org_domain, org_title, org_description, recommendation`

// ListFilter narrows ListBriefs
type ListFilter struct {
	Status domain.BriefStatus
	Limit  int
	Offset int
}

// Store handles database operations
type Store struct {
	db *sql.DB
}

// New creates a new Store with the given database path
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Initialize schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveBrief stores a new brief. Empty ID, status and timestamps are filled in.
func (s *Store) SaveBrief(ctx context.Context, b *domain.Brief) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if b.Status == "" {
		b.Status = domain.StatusNew
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	b.UpdatedAt = b.CreatedAt

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var orgDomain, orgTitle, orgDesc sql.NullString
	if b.Org != nil {
		orgDomain = sql.NullString{String: b.Org.Domain, Valid: true}
		orgTitle = sql.NullString{String: b.Org.Title, Valid: true}
		orgDesc = sql.NullString{String: b.Org.Description, Valid: true}
	}

	inq := b.Inquiry
	_, err = tx.ExecContext(ctx,
		"INSERT INTO briefs ("+briefColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		b.ID, b.CreatedAt, b.UpdatedAt, b.Status, inq.Source,
		inq.Identity.Name, inq.Identity.Organization, inq.Identity.Email,
		inq.Scale, inq.Timeline, orgDomain, orgTitle, orgDesc, b.Recommendation,
	)
	if err != nil {
		return fmt.Errorf("insert brief: %w", err)
	}

	for i, k := range inq.Domains {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO brief_domains (brief_id, domain_key, position) VALUES (?, ?, ?)",
			b.ID, k, i,
		); err != nil {
			return fmt.Errorf("insert brief domain: %w", err)
		}
	}

	for i, f := range inq.Features {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO brief_features (brief_id, feature_id, position) VALUES (?, ?, ?)",
			b.ID, f, i,
		); err != nil {
			return fmt.Errorf("insert brief feature: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit brief: %w", err)
	}
	return nil
}

// ResolveID expands a full id or unique id prefix
func (s *Store) ResolveID(ctx context.Context, idOrPrefix string) (string, error) {
	if idOrPrefix == "" {
		return "", ErrNotFound
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM briefs WHERE id = ? OR id LIKE ? ESCAPE '\' ORDER BY id = ? DESC LIMIT 2`,
		idOrPrefix, escapeLike(idOrPrefix)+"%", idOrPrefix,
	)
	if err != nil {
		return "", fmt.Errorf("resolve brief id: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("scan brief id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("resolve brief id: %w", err)
	}

	switch {
	case len(ids) == 0:
		return "", ErrNotFound
	case ids[0] == idOrPrefix || len(ids) == 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("%w: %s", ErrAmbiguous, idOrPrefix)
	}
}

// GetBrief retrieves a brief by id or unique id prefix
func (s *Store) GetBrief(ctx context.Context, idOrPrefix string) (*domain.Brief, error) {
	id, err := s.ResolveID(ctx, idOrPrefix)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, "SELECT "+briefColumns+" FROM briefs WHERE id = ?", id)
	b, err := scanBrief(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get brief: %w", err)
	}

	if err := s.loadScope(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// ListBriefs returns briefs newest first
func (s *Store) ListBriefs(ctx context.Context, filter ListFilter) ([]domain.Brief, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	query := "SELECT " + briefColumns + " FROM briefs"
	args := []any{}
	if filter.Status != "" {
		query += " WHERE status = ?"
		args = append(args, filter.Status)
	}
	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	return s.queryBriefs(ctx, "list briefs", query, args...)
}

// SearchBriefs matches the query against contact fields and feature tags
func (s *Store) SearchBriefs(ctx context.Context, q string) ([]domain.Brief, error) {
	pattern := "%" + escapeLike(q) + "%"
	return s.queryBriefs(ctx, "search briefs", `
		SELECT `+briefColumns+`
		FROM briefs b
		WHERE b.organization LIKE ? ESCAPE '\'
		   OR b.name LIKE ? ESCAPE '\'
		   OR b.email LIKE ? ESCAPE '\'
		   OR EXISTS (
		       SELECT 1 FROM brief_features bf
		       WHERE bf.brief_id = b.id AND bf.feature_id LIKE ? ESCAPE '\'
		   )
		ORDER BY b.created_at DESC
	`, pattern, pattern, pattern, pattern)
}

// UpdateStatus moves a brief to status and returns the updated brief
func (s *Store) UpdateStatus(ctx context.Context, idOrPrefix string, status domain.BriefStatus) (*domain.Brief, error) {
	if _, err := domain.ParseBriefStatus(string(status)); err != nil {
		return nil, err
	}

	id, err := s.ResolveID(ctx, idOrPrefix)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE briefs SET status = ?, updated_at = ? WHERE id = ?",
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}

	return s.GetBrief(ctx, id)
}

// CountByStatus returns how many briefs sit in each status
func (s *Store) CountByStatus(ctx context.Context) (map[domain.BriefStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM briefs GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("count briefs: %w", err)
	}
	defer rows.Close()

	counts := map[domain.BriefStatus]int{}
	for rows.Next() {
		var st domain.BriefStatus
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[st] = n
	}
	return counts, rows.Err()
}

func (s *Store) queryBriefs(ctx context.Context, op, query string, args ...any) ([]domain.Brief, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var briefs []domain.Brief
	for rows.Next() {
		b, err := scanBrief(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan brief: %w", err)
		}
		briefs = append(briefs, *b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// Scope is loaded after the cursor is closed
	for i := range briefs {
		if err := s.loadScope(ctx, &briefs[i]); err != nil {
			return nil, err
		}
	}
	return briefs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBrief(row scanner) (*domain.Brief, error) {
	var (
		b                          domain.Brief
		orgDomain, orgTitle, orgDs sql.NullString
	)
	err := row.Scan(
		&b.ID, &b.CreatedAt, &b.UpdatedAt, &b.Status, &b.Inquiry.Source,
		&b.Inquiry.Identity.Name, &b.Inquiry.Identity.Organization, &b.Inquiry.Identity.Email,
		&b.Inquiry.Scale, &b.Inquiry.Timeline, &orgDomain, &orgTitle, &orgDs, &b.Recommendation,
	)
	if err != nil {
		return nil, err
	}
	if orgDomain.Valid {
		b.Org = &domain.OrgContext{
			Domain:      orgDomain.String,
			Title:       orgTitle.String,
			Description: orgDs.String,
		}
	}
	return &b, nil
}

// loadScope fills the brief's domains and features in submission order
func (s *Store) loadScope(ctx context.Context, b *domain.Brief) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT domain_key FROM brief_domains WHERE brief_id = ? ORDER BY position", b.ID)
	if err != nil {
		return fmt.Errorf("get brief domains: %w", err)
	}
	b.Inquiry.Domains = []domain.DomainKey{}
	for rows.Next() {
		var k domain.DomainKey
		if err := rows.Scan(&k); err != nil {
			rows.Close()
			return fmt.Errorf("scan brief domain: %w", err)
		}
		b.Inquiry.Domains = append(b.Inquiry.Domains, k)
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx,
		"SELECT feature_id FROM brief_features WHERE brief_id = ? ORDER BY position", b.ID)
	if err != nil {
		return fmt.Errorf("get brief features: %w", err)
	}
	defer rows.Close()
	b.Inquiry.Features = []string{}
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return fmt.Errorf("scan brief feature: %w", err)
		}
		b.Inquiry.Features = append(b.Inquiry.Features, f)
	}
	return rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
