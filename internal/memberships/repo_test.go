package memberships

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mgallardo/edustack-backend/pkg/db/models"
	"github.com/mgallardo/edustack-backend/pkg/enums"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	for _, ddl := range []string{
		`CREATE TABLE family_memberships (
			id TEXT PRIMARY KEY,
			family_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			UNIQUE (family_id, user_id)
		)`,
		`CREATE TABLE institution_memberships (
			id TEXT PRIMARY KEY,
			institution_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			UNIQUE (institution_id, user_id)
		)`,
	} {
		require.NoError(t, conn.Exec(ddl).Error)
	}
	return conn
}

func TestRepository_ListActiveFamiliesOrdering(t *testing.T) {
	conn := openTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	userID := uuid.New()
	base := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

	second := models.FamilyMembership{
		ID: uuid.New(), FamilyID: uuid.New(), UserID: userID,
		Status: enums.MembershipStatusActive, CreatedAt: base.Add(time.Hour), UpdatedAt: base.Add(time.Hour),
	}
	first := models.FamilyMembership{
		ID: uuid.New(), FamilyID: uuid.New(), UserID: userID,
		Status: enums.MembershipStatusActive, CreatedAt: base, UpdatedAt: base,
	}
	removed := models.FamilyMembership{
		ID: uuid.New(), FamilyID: uuid.New(), UserID: userID,
		Status: enums.MembershipStatusRemoved, CreatedAt: base.Add(-time.Hour), UpdatedAt: base,
	}
	require.NoError(t, conn.Create(&second).Error)
	require.NoError(t, conn.Create(&first).Error)
	require.NoError(t, conn.Create(&removed).Error)

	got, err := repo.ListActiveFamilies(ctx, userID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, first.FamilyID, got[0].FamilyID, "earliest membership must come first")
	require.Equal(t, second.FamilyID, got[1].FamilyID)
}

func TestRepository_ListActiveFamiliesTieBreakOnID(t *testing.T) {
	conn := openTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	userID := uuid.New()
	at := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

	idA := uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	idB := uuid.MustParse("00000000-0000-0000-0000-00000000000b")

	require.NoError(t, conn.Create(&models.FamilyMembership{
		ID: idB, FamilyID: uuid.New(), UserID: userID,
		Status: enums.MembershipStatusActive, CreatedAt: at, UpdatedAt: at,
	}).Error)
	require.NoError(t, conn.Create(&models.FamilyMembership{
		ID: idA, FamilyID: uuid.New(), UserID: userID,
		Status: enums.MembershipStatusActive, CreatedAt: at, UpdatedAt: at,
	}).Error)

	got, err := repo.ListActiveFamilies(ctx, userID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, idA, got[0].ID, "equal created_at falls back to id ordering")
}

func TestRepository_InstitutionMembershipFlow(t *testing.T) {
	conn := openTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	institutionID := uuid.New()
	userID := uuid.New()
	at := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

	require.NoError(t, conn.Create(&models.InstitutionMembership{
		ID: uuid.New(), InstitutionID: institutionID, UserID: userID,
		Status: enums.MembershipStatusActive, CreatedAt: at, UpdatedAt: at,
	}).Error)

	active, err := repo.ListActiveInstitutions(ctx, userID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, institutionID, active[0].InstitutionID)

	ids, err := repo.ListActiveInstitutionMemberIDs(ctx, institutionID)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{userID}, ids)

	require.NoError(t, repo.SetInstitutionMemberStatus(ctx, institutionID, userID, enums.MembershipStatusRemoved))

	active, err = repo.ListActiveInstitutions(ctx, userID)
	require.NoError(t, err)
	require.Empty(t, active)
}
