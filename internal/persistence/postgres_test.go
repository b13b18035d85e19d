package persistence

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"aiblog/internal/core"
)

const toolCategory = "AI Tool of the Day"

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return newPostgresStore(db, toolCategory, time.Second), mock
}

func samplePost(title string) *core.Post {
	category := int64(2)
	return &core.Post{
		Title:       title,
		Slug:        "food-tech",
		Description: "desc",
		Content:     "# Food Tech\n\nBody [ref:ref-0].",
		Category:    &category,
		ReadTime:    3,
		Tags:        []string{"delivery", "ai"},
		ResearchDetails: []core.ResearchDetail{{
			ID:    "ref-0",
			Point: "Robots",
			Data:  core.ResearchFinding{Point: "Robots", GroundedText: "Robots deliver food.", Sources: []core.Source{}},
		}},
		Author: "AI Blog Bot",
	}
}

func TestPostgresInsertPost(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`(?s)INSERT INTO posts.*\$13\).*RETURNING id`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

	post := samplePost("Food Tech")
	ok, err := store.InsertPost(context.Background(), post)
	if err != nil || !ok {
		t.Fatalf("InsertPost() = %v, %v", ok, err)
	}
	if post.ID != 42 || post.Status != core.StatusPublished || post.CreatedAt.IsZero() {
		t.Errorf("Expected id, status and created_at to be set, got %+v", post)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPostgresInsertPostDuplicateSlug(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`INSERT INTO posts`).WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint \"posts_slug_key\""})

	ok, err := store.InsertPost(context.Background(), samplePost("Food Tech"))
	if ok || err != nil {
		t.Errorf("Expected (false, nil) on slug collision, got (%v, %v)", ok, err)
	}
}

func TestPostgresInsertPostOtherError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`INSERT INTO posts`).WillReturnError(&pq.Error{Code: "23502", Message: "null value in column"})

	ok, err := store.InsertPost(context.Background(), samplePost("Food Tech"))
	if ok || err == nil {
		t.Errorf("Expected (false, error), got (%v, %v)", ok, err)
	}

	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		t.Errorf("Expected wrapped pq error, got %v", err)
	}
}

func TestPostgresCategoryPostCounts(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`(?s)FROM categories c.*WHERE c.title <> \$1.*ORDER BY post_count ASC`).
		WithArgs(toolCategory).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "post_count"}).
			AddRow(3, "Security & Privacy", 0).
			AddRow(1, "AI & Machine Learning", 7))

	counts, err := store.CategoryPostCounts(context.Background())
	if err != nil {
		t.Fatalf("CategoryPostCounts() error = %v", err)
	}
	if len(counts) != 2 || counts[0].CategoryID != 3 || counts[1].Count != 7 {
		t.Errorf("Unexpected counts %+v", counts)
	}
}

func TestPostgresListPostsByKind(t *testing.T) {
	store, mock := newMockStore(t)
	columns := []string{"id", "title", "slug", "description", "content", "category", "image_url",
		"tool_name", "read_time", "tags", "research_details", "author", "status", "created_at"}
	created := time.Date(2025, 3, 1, 6, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`(?s)LEFT JOIN categories c.*WHERE c.title = \$1.*LIMIT \$2`).
		WithArgs(toolCategory, 5).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			7, "Tool: Cursor", "tool-cursor", "d", "body", 9, "https://cdn/x.png",
			"Cursor", 4, []byte("{ai,editor}"), []byte(`[{"id":"ref-0","point":"p","data":{"point":"p","grounded_text":"t","sources":[]}}]`),
			"AI Blog Bot", "published", created,
		))

	posts, err := store.ListPosts(context.Background(), PostFilter{Kind: core.KindTool, Limit: 5})
	if err != nil {
		t.Fatalf("ListPosts() error = %v", err)
	}
	if len(posts) != 1 {
		t.Fatalf("Expected 1 post, got %d", len(posts))
	}
	p := posts[0]
	if p.ToolName == nil || *p.ToolName != "Cursor" || p.Category == nil || *p.Category != 9 {
		t.Errorf("Unexpected nullable fields %+v", p)
	}
	if len(p.Tags) != 2 || p.Tags[1] != "editor" {
		t.Errorf("Unexpected tags %v", p.Tags)
	}
	if len(p.ResearchDetails) != 1 || p.ResearchDetails[0].ID != "ref-0" {
		t.Errorf("Unexpected research details %+v", p.ResearchDetails)
	}
	if !p.CreatedAt.Equal(created) {
		t.Errorf("Unexpected created_at %v", p.CreatedAt)
	}
}

func TestPostgresGeneralPredicate(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`(?s)p.category IS NULL OR c.title IS NULL OR c.title <> \$1.*LIMIT \$2`).
		WithArgs(toolCategory, DefaultListLimit).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	if _, err := store.ListPosts(context.Background(), PostFilter{Kind: core.KindGeneral}); err != nil {
		t.Fatalf("ListPosts() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRebind(t *testing.T) {
	pg := newPostgresStore(nil, toolCategory, 0)
	if got := pg.rebind("a = ? AND b = ? LIMIT ?"); got != "a = $1 AND b = $2 LIMIT $3" {
		t.Errorf("rebind() = %s", got)
	}
	lite := newSQLStore(nil, sqliteDialect, toolCategory, 0)
	if got := lite.rebind("a = ?"); got != "a = ?" {
		t.Errorf("sqlite rebind() = %s", got)
	}
}

func TestLoadMigrations(t *testing.T) {
	files := fstest.MapFS{
		"migrations/002_add_views.sql":     {Data: []byte("ALTER TABLE posts ADD COLUMN views INT;")},
		"migrations/001_initial_schema.sql": {Data: []byte("CREATE TABLE posts ();")},
		"migrations/README.txt":             {Data: []byte("notes")},
		"migrations/bad.sql":                {Data: []byte("--")},
	}

	migrations, err := loadMigrations(files)
	if err != nil {
		t.Fatalf("loadMigrations() error = %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("Expected 2 migrations, got %d", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[0].Description != "initial schema" || migrations[1].Version != 2 {
		t.Errorf("Unexpected migrations %+v", migrations)
	}
}

func TestMigrate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT version FROM schema_migrations`).WillReturnRows(sqlmock.NewRows([]string{"version"}))
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS categories`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO schema_migrations`).WithArgs(1, "initial schema").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	applied, err := NewMigrationManager(db).Migrate(context.Background())
	if err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if applied != 1 {
		t.Errorf("Expected 1 applied migration, got %d", applied)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT version FROM schema_migrations`).WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(1))

	status, err := NewMigrationManager(db).Status(context.Background())
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if len(status) != 1 || !status[0].Applied {
		t.Errorf("Expected migration 1 applied, got %+v", status)
	}
}
