package database

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// setupTestDB creates an in-memory SQLite database for testing
func setupTestDB(t *testing.T) func() {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err, "failed to create test database")
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(Models()...), "failed to migrate test database")

	DB = db

	return func() {
		sqlDB.Close()
		DB = nil
	}
}

func uintPtr(v uint) *uint { return &v }

// ============== UserRepo Tests ==============

func TestUserRepo_Create_DuplicateUsername(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepo()
	require.NoError(t, repo.Create(&User{Username: "analyst", PasswordHash: "h1", Role: "analyst", IsActive: true}))

	err := repo.Create(&User{Username: "analyst", PasswordHash: "h2", Role: "analyst"})
	assert.Error(t, err, "should fail on duplicate username")
}

func TestUserRepo_LockAndReset(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepo()
	user := &User{Username: "lockuser", PasswordHash: "hash", Role: "admin", IsActive: true}
	require.NoError(t, repo.Create(user))

	require.NoError(t, repo.IncrementFailedAttempts(user.ID))
	require.NoError(t, repo.IncrementFailedAttempts(user.ID))
	lockTime := time.Now().Add(15 * time.Minute)
	require.NoError(t, repo.LockUntil(user.ID, lockTime))

	updated, err := repo.FindByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.FailedAttempts)
	require.NotNil(t, updated.LockedUntil)
	assert.WithinDuration(t, lockTime, *updated.LockedUntil, time.Second)

	require.NoError(t, repo.ResetFailedAttempts(user.ID))
	updated, _ = repo.FindByID(user.ID)
	assert.Equal(t, 0, updated.FailedAttempts)
	assert.Nil(t, updated.LockedUntil)
}

func TestUserRepo_SetActive(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepo()
	user := &User{Username: "someone", PasswordHash: "hash", Role: "analyst", IsActive: true}
	require.NoError(t, repo.Create(user))

	require.NoError(t, repo.SetActive(user.ID, false))
	updated, _ := repo.FindByID(user.ID)
	assert.False(t, updated.IsActive)
}

func TestUserRepo_FirstUsername(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepo()
	assert.Equal(t, "", repo.FirstUsername())

	repo.Create(&User{Username: "first", PasswordHash: "hash", Role: "admin"})
	repo.Create(&User{Username: "second", PasswordHash: "hash", Role: "admin"})
	assert.Equal(t, "first", repo.FirstUsername())
}

// ============== CaseRepo Tests ==============

func TestCaseRepo_CreateDefaults(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewCaseRepo()
	c := &Case{Title: "IP: 8.8.8.8"}
	require.NoError(t, repo.Create(c))

	got, err := repo.Get(c.ID)
	require.NoError(t, err)
	assert.Equal(t, "open", got.Status)
	assert.Equal(t, "medium", got.Priority)
	assert.Nil(t, got.OwnerUserID)
}

func TestCaseRepo_ListFilterAndPage(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewCaseRepo()
	for i := 0; i < 5; i++ {
		repo.Create(&Case{Title: "open case", Status: "open", Priority: "low"})
	}
	repo.Create(&Case{Title: "closed case", Status: "closed", Priority: "high"})

	cases, total, err := repo.List(CaseFilter{Page: Page{Page: 1, PageSize: 2}, Status: "open"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, cases, 2)

	cases, total, err = repo.List(CaseFilter{Keyword: "closed"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "high", cases[0].Priority)
}

func TestCaseRepo_List_IgnoresUnknownSortColumn(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewCaseRepo()
	repo.Create(&Case{Title: "a"})

	_, total, err := repo.List(CaseFilter{Page: Page{SortBy: "title; DROP TABLE cases"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestCaseRepo_UpdateAndDelete(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewCaseRepo()
	c := &Case{Title: "before"}
	require.NoError(t, repo.Create(c))

	title, status := "after", "in_progress"
	updated, err := repo.Update(c.ID, CaseUpdate{Title: &title, Status: &status})
	require.NoError(t, err)
	assert.Equal(t, "after", updated.Title)
	assert.Equal(t, "in_progress", updated.Status)
	assert.Equal(t, "medium", updated.Priority)

	require.NoError(t, repo.Delete(c.ID))
	assert.ErrorIs(t, repo.Delete(c.ID), gorm.ErrRecordNotFound)
}

func TestCaseRepo_CountByStatus(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewCaseRepo()
	repo.Create(&Case{Title: "a", Status: "open"})
	repo.Create(&Case{Title: "b", Status: "open"})
	repo.Create(&Case{Title: "c", Status: "closed"})

	counts, err := repo.CountByStatus()
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts["open"])
	assert.Equal(t, int64(1), counts["closed"])
}

// ============== InvestigationRepo Tests ==============

func TestInvestigationRepo_ListRecentAndCounts(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewInvestigationRepo()
	require.NoError(t, repo.Create(&Investigation{Kind: "ip", Query: "1.1.1.1", ResultJSON: "{}"}))
	require.NoError(t, repo.Create(&Investigation{Kind: "ip", Query: "8.8.8.8", ResultJSON: "{}"}))
	require.NoError(t, repo.Create(&Investigation{Kind: "domain", Query: "example.com", ResultJSON: "{}"}))

	recent, err := repo.ListRecent(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "example.com", recent[0].Query)

	byKind, err := repo.CountByKind()
	require.NoError(t, err)
	assert.Equal(t, int64(2), byKind["ip"])
	assert.Equal(t, int64(1), byKind["domain"])

	total, _ := repo.Count()
	assert.Equal(t, int64(3), total)

	ips, err := repo.ListRecentByKind("ip", 10)
	require.NoError(t, err)
	assert.Len(t, ips, 2)
}

func TestInvestigationRepo_ListFilter(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewInvestigationRepo()
	repo.Create(&Investigation{Kind: "ip", Query: "1.1.1.1", UserID: uintPtr(1), CaseID: uintPtr(7)})
	repo.Create(&Investigation{Kind: "ip", Query: "2.2.2.2", UserID: uintPtr(2)})

	items, total, err := repo.List(InvestigationFilter{CaseID: 7})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "1.1.1.1", items[0].Query)

	_, total, err = repo.List(InvestigationFilter{UserID: 2, Kind: "ip"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestInvestigationRepo_AggregateByDay(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	repo := NewInvestigationRepo()
	repo.Create(&Investigation{Kind: "ip", Query: "a", CreatedAt: now.Add(-1 * time.Hour)})
	repo.Create(&Investigation{Kind: "ip", Query: "b", CreatedAt: now.Add(-2 * time.Hour)})
	repo.Create(&Investigation{Kind: "ip", Query: "c", CreatedAt: now.AddDate(0, 0, -2)})
	repo.Create(&Investigation{Kind: "ip", Query: "old", CreatedAt: now.AddDate(0, 0, -30)})

	days, err := repo.AggregateByDay(7, now)
	require.NoError(t, err)
	require.Len(t, days, 7)
	assert.Equal(t, "2026-03-04", days[0].Day)
	assert.Equal(t, "2026-03-10", days[6].Day)
	assert.Equal(t, int64(2), days[6].Count)
	assert.Equal(t, int64(0), days[5].Count)
	assert.Equal(t, int64(1), days[4].Count)
}

func TestInvestigationRepo_ImportKeepsIDs(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	created := time.Date(2025, 12, 1, 9, 30, 0, 0, time.UTC)
	repo := NewInvestigationRepo()
	n, err := repo.Import([]Investigation{
		{ID: 42, Kind: "domain", Query: "example.com", ResultJSON: `{"registrar":"X"}`, CreatedAt: created},
		{ID: 43, Kind: "ip", Query: "9.9.9.9", ResultJSON: `{}`, CreatedAt: created},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := repo.Get(42)
	require.NoError(t, err)
	assert.Equal(t, `{"registrar":"X"}`, got.ResultJSON)
	assert.True(t, created.Equal(got.CreatedAt))

	// second import of the same ids is a no-op
	n, err = repo.Import([]Investigation{{ID: 42, Kind: "domain", Query: "changed"}})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	got, _ = repo.Get(42)
	assert.Equal(t, "example.com", got.Query)
}

// ============== APIConfigRepo Tests ==============

func TestAPIConfigRepo_Upsert(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewAPIConfigRepo()
	require.NoError(t, repo.Upsert(&APIConfig{ServiceName: "Shodan", APIKey: "k1", BaseURL: "https://api.shodan.io", IsEnabled: true}))
	require.NoError(t, repo.Upsert(&APIConfig{ServiceName: "Shodan", APIKey: "k2", BaseURL: "https://api.shodan.io", IsEnabled: false}))

	cfg, err := repo.GetByService("Shodan")
	require.NoError(t, err)
	assert.Equal(t, "k2", cfg.APIKey)
	assert.False(t, cfg.IsEnabled)
	assert.Equal(t, 100, cfg.RateLimit)

	all, _ := repo.List()
	assert.Len(t, all, 1)

	_, err = repo.GetByService("HIBP")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	require.NoError(t, repo.Delete("Shodan"))
	assert.ErrorIs(t, repo.Delete("Shodan"), gorm.ErrRecordNotFound)
}

// ============== TeamRepo Tests ==============

func TestTeamRepo_MembersLifecycle(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	users := NewUserRepo()
	owner := &User{Username: "owner", PasswordHash: "h", Role: "admin", IsActive: true}
	member := &User{Username: "member", PasswordHash: "h", Role: "analyst", IsActive: true}
	require.NoError(t, users.Create(owner))
	require.NoError(t, users.Create(member))

	repo := NewTeamRepo()
	team := &Team{Name: "Red", OwnerUserID: &owner.ID}
	require.NoError(t, repo.CreateWithOwner(team, "owner"))

	require.NoError(t, repo.AddMember(&TeamMember{TeamID: team.ID, UserID: member.ID}))
	assert.Error(t, repo.AddMember(&TeamMember{TeamID: team.ID, UserID: member.ID}), "duplicate membership")

	members, err := repo.Members(team.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "owner", members[0].Username)
	assert.Equal(t, "owner", members[0].Role)
	assert.Equal(t, "member", members[1].Role)

	require.NoError(t, repo.UpdateMemberRole(team.ID, member.ID, "analyst"))
	members, _ = repo.Members(team.ID)
	assert.Equal(t, "analyst", members[1].Role)

	require.NoError(t, repo.RemoveMember(team.ID, member.ID))
	assert.ErrorIs(t, repo.RemoveMember(team.ID, member.ID), gorm.ErrRecordNotFound)
}

func TestTeamRepo_DeleteCascadesMembers(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewTeamRepo()
	team := &Team{Name: "Blue"}
	require.NoError(t, repo.CreateWithOwner(team, "owner"))
	require.NoError(t, repo.AddMember(&TeamMember{TeamID: team.ID, UserID: 5}))

	require.NoError(t, repo.Delete(team.ID))

	var count int64
	DB.Model(&TeamMember{}).Where("team_id = ?", team.ID).Count(&count)
	assert.Zero(t, count)
	assert.ErrorIs(t, repo.Delete(team.ID), gorm.ErrRecordNotFound)
}

// ============== NotificationRepo Tests ==============

func TestNotificationRepo_ReadFlow(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewNotificationRepo()
	repo.Create(&Notification{UserID: 1, Title: "a", Type: "info"})
	second := &Notification{UserID: 1, Title: "b", Type: "error"}
	repo.Create(second)
	repo.Create(&Notification{UserID: 2, Title: "other user"})

	items, err := repo.List(1, false, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "b", items[0].Title, "newest first")

	count, _ := repo.UnreadCount(1)
	assert.Equal(t, int64(2), count)

	require.NoError(t, repo.MarkRead(1, second.ID))
	assert.ErrorIs(t, repo.MarkRead(2, second.ID), gorm.ErrRecordNotFound, "cannot touch another user's notification")
	count, _ = repo.UnreadCount(1)
	assert.Equal(t, int64(1), count)

	require.NoError(t, repo.MarkAllRead(1))
	count, _ = repo.UnreadCount(1)
	assert.Zero(t, count)

	require.NoError(t, repo.Clear(1))
	items, _ = repo.List(1, false, 0)
	assert.Empty(t, items)
	count, _ = repo.UnreadCount(2)
	assert.Equal(t, int64(1), count)
}

// ============== AuditLogRepo / SettingRepo Tests ==============

func TestAuditLogRepo_List(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewAuditLogRepo()
	repo.Create(&AuditLog{UserID: 1, Username: "admin", Action: "login", Result: "success"})
	repo.Create(&AuditLog{UserID: 1, Username: "admin", Action: "case.create", Result: "success"})

	logs, total, err := repo.List(AuditFilter{Action: "login"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "login", logs[0].Action)
}

func TestSettingRepo_SetBatchAndGet(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewSettingRepo()
	require.NoError(t, repo.SetBatch(map[string]string{"notify_slack_token": "x", "notify_slack_channel": "#ops"}))
	require.NoError(t, repo.Set("notify_slack_channel", "#intel"))

	v, err := repo.Get("notify_slack_channel")
	require.NoError(t, err)
	assert.Equal(t, "#intel", v)

	all, _ := repo.GetAll()
	assert.Len(t, all, 2)
}
