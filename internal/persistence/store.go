package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"aiblog/internal/config"
	"aiblog/internal/core"
	"aiblog/internal/logger"
)

// DefaultTimeout bounds a single store query.
const DefaultTimeout = 10 * time.Second

// Open connects to the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.Store, toolCategory string) (ContentStore, error) {
	timeout := config.Duration(cfg.Timeout, DefaultTimeout)
	switch cfg.Driver {
	case "postgres", "":
		return NewPostgresStore(ctx, cfg.DSN, toolCategory, timeout)
	case "sqlite":
		return NewSQLiteStore(ctx, cfg.SQLitePath, toolCategory, timeout)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, cfg.Driver)
	}
}

// dialect captures the differences between the supported databases.
type dialect struct {
	name              string
	numbered          bool // $1 placeholders instead of ?
	returningID       bool // INSERT ... RETURNING id instead of LastInsertId
	encodeTags        func(tags []string) (any, error)
	tagsDest          func(tags *[]string) any
	decodeTags        func(dest any, tags *[]string) error
	isUniqueViolation func(err error) bool
}

// sqlStore implements ContentStore over database/sql for a dialect.
type sqlStore struct {
	db           *sql.DB
	d            dialect
	toolCategory string
	timeout      time.Duration
	log          *slog.Logger
}

func newSQLStore(db *sql.DB, d dialect, toolCategory string, timeout time.Duration) *sqlStore {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &sqlStore{
		db:           db,
		d:            d,
		toolCategory: toolCategory,
		timeout:      timeout,
		log:          logger.Get().With("component", "store", "driver", d.name),
	}
}

// rebind rewrites ? placeholders into $N for dialects that number them.
func (s *sqlStore) rebind(query string) string {
	if !s.d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

func (s *sqlStore) ListPostTitles(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.queryStrings(ctx, `SELECT title FROM posts ORDER BY created_at DESC, id DESC`)
}

func (s *sqlStore) ListToolNames(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.queryStrings(ctx, `SELECT DISTINCT tool_name FROM posts WHERE tool_name IS NOT NULL AND tool_name <> '' ORDER BY tool_name`)
}

func (s *sqlStore) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// CategoryPostCounts excludes the tool category, which has its own cadence.
func (s *sqlStore) CategoryPostCounts(ctx context.Context) ([]core.CategoryCount, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := `
		SELECT c.id, c.title, COUNT(p.id) AS post_count
		FROM categories c
		LEFT JOIN posts p ON p.category = c.id
		WHERE c.title <> ?
		GROUP BY c.id, c.title
		ORDER BY post_count ASC, c.id ASC
	`
	rows, err := s.db.QueryContext(ctx, s.rebind(query), s.toolCategory)
	if err != nil {
		return nil, fmt.Errorf("failed to count posts per category: %w", err)
	}
	defer rows.Close()

	var counts []core.CategoryCount
	for rows.Next() {
		var c core.CategoryCount
		if err := rows.Scan(&c.CategoryID, &c.Title, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func (s *sqlStore) ListCategories(ctx context.Context) ([]core.Category, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT id, title FROM categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Title); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// InsertPost forces status and fills created_at. post.ID and post.CreatedAt
// are set on success.
func (s *sqlStore) InsertPost(ctx context.Context, post *core.Post) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	post.Status = core.StatusPublished
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}
	if post.Tags == nil {
		post.Tags = []string{}
	}

	tags, err := s.d.encodeTags(post.Tags)
	if err != nil {
		return false, fmt.Errorf("failed to encode tags: %w", err)
	}
	details, err := json.Marshal(post.ResearchDetails)
	if err != nil {
		return false, fmt.Errorf("failed to encode research details: %w", err)
	}

	query := `
		INSERT INTO posts (
			title, slug, description, content, category, image_url, tool_name,
			read_time, tags, research_details, author, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	args := []any{
		post.Title,
		post.Slug,
		post.Description,
		post.Content,
		nullInt64(post.Category),
		nullString(post.ImageURL),
		nullString(post.ToolName),
		post.ReadTime,
		tags,
		string(details),
		post.Author,
		post.Status,
		post.CreatedAt,
	}

	if s.d.returningID {
		err = s.db.QueryRowContext(ctx, s.rebind(query+` RETURNING id`), args...).Scan(&post.ID)
	} else {
		var res sql.Result
		res, err = s.db.ExecContext(ctx, s.rebind(query), args...)
		if err == nil {
			post.ID, err = res.LastInsertId()
		}
	}

	if err != nil {
		if s.d.isUniqueViolation(err) {
			s.log.Warn("Post with this slug already exists", "slug", post.Slug)
			return false, nil
		}
		return false, fmt.Errorf("failed to insert post: %w", err)
	}

	s.log.Info("Post inserted", "id", post.ID, "slug", post.Slug)
	return true, nil
}

// kindPredicate returns the WHERE clause selecting a post kind. General and
// tool predicates are complements: a post without a (known) category is general.
func kindPredicate(kind core.PostKind) (string, bool) {
	switch kind {
	case core.KindGeneral:
		return `(p.category IS NULL OR c.title IS NULL OR c.title <> ?)`, true
	case core.KindTool:
		return `c.title = ?`, true
	default:
		return `1 = 1`, false
	}
}

func (s *sqlStore) ListPosts(ctx context.Context, filter PostFilter) ([]core.Post, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	predicate, bind := kindPredicate(filter.Kind)
	query := `
		SELECT p.id, p.title, p.slug, p.description, p.content, p.category, p.image_url,
		       p.tool_name, p.read_time, p.tags, p.research_details, p.author, p.status, p.created_at
		FROM posts p
		LEFT JOIN categories c ON c.id = p.category
		WHERE ` + predicate + `
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT ?
	`
	var args []any
	if bind {
		args = append(args, s.toolCategory)
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	var posts []core.Post
	for rows.Next() {
		var (
			post     core.Post
			category sql.NullInt64
			imageURL sql.NullString
			toolName sql.NullString
			details  []byte
		)
		tagsDest := s.d.tagsDest(&post.Tags)
		if err := rows.Scan(
			&post.ID, &post.Title, &post.Slug, &post.Description, &post.Content, &category, &imageURL,
			&toolName, &post.ReadTime, tagsDest, &details, &post.Author, &post.Status, &post.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		if err := s.d.decodeTags(tagsDest, &post.Tags); err != nil {
			return nil, fmt.Errorf("failed to decode tags for post %d: %w", post.ID, err)
		}
		if len(details) > 0 && string(details) != "null" {
			if err := json.Unmarshal(details, &post.ResearchDetails); err != nil {
				return nil, fmt.Errorf("failed to decode research details for post %d: %w", post.ID, err)
			}
		}
		if category.Valid {
			post.Category = &category.Int64
		}
		if imageURL.Valid {
			post.ImageURL = &imageURL.String
		}
		if toolName.Valid {
			post.ToolName = &toolName.String
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
