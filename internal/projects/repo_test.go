package projects

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/filmfusion-ai/filmfusion-backend/pkg/db/models"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/enums"
)

func newProjectDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("failed to get sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	ddl := `CREATE TABLE projects (
		id text PRIMARY KEY,
		user_id text NOT NULL,
		title text NOT NULL,
		description text,
		status text NOT NULL DEFAULT 'draft',
		created_at datetime,
		updated_at datetime
	)`
	if err := conn.Exec(ddl).Error; err != nil {
		t.Fatalf("failed to create projects table: %v", err)
	}
	return conn
}

func seedProject(t *testing.T, db *gorm.DB, userID uuid.UUID, title string, createdAt time.Time) *models.Project {
	t.Helper()
	project := &models.Project{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     title,
		Status:    enums.ProjectStatusDraft,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	if err := db.Create(project).Error; err != nil {
		t.Fatalf("failed to seed project: %v", err)
	}
	return project
}

func TestRepositoryListByUserPaginates(t *testing.T) {
	db := newProjectDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	userID := uuid.New()

	base := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		seedProject(t, db, userID, "project", base.Add(time.Duration(i)*time.Minute))
	}
	seedProject(t, db, uuid.New(), "other user", base)

	rows, next, err := repo.ListByUser(ctx, listProjectsParams{UserID: userID, Limit: 3})
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if next == nil {
		t.Fatalf("expected next cursor")
	}
	if !rows[0].CreatedAt.After(rows[2].CreatedAt) {
		t.Fatalf("expected newest-first ordering")
	}

	rest, final, err := repo.ListByUser(ctx, listProjectsParams{UserID: userID, Limit: 3, Cursor: next})
	if err != nil {
		t.Fatalf("ListByUser page 2 failed: %v", err)
	}
	if len(rest) != 2 {
		t.Fatalf("expected 2 remaining rows, got %d", len(rest))
	}
	if final != nil {
		t.Fatalf("expected no further cursor")
	}
}

func TestRepositoryUpdateAndDelete(t *testing.T) {
	db := newProjectDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	project := seedProject(t, db, uuid.New(), "before", time.Now().UTC())
	project.Title = "after"
	project.Status = enums.ProjectStatusActive
	if err := repo.Update(ctx, project); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	loaded, err := repo.FindByID(ctx, project.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if loaded.Title != "after" || loaded.Status != enums.ProjectStatusActive {
		t.Fatalf("update not persisted: %+v", loaded)
	}

	if err := repo.Delete(ctx, project.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := repo.FindByID(ctx, project.ID); err != gorm.ErrRecordNotFound {
		t.Fatalf("expected record gone, got %v", err)
	}
}
