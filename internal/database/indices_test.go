package database

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trogers1052/factor-analysis-service/internal/models"
)

func TestListCandidates_Mock(t *testing.T) {
	t.Run("maps rows", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery("FROM factor_indices").
			WithArgs("SECTOR_17").
			WillReturnRows(sqlmock.NewRows([]string{"code", "name", "category"}).
				AddRow("0080", "TOPIX-17 Foods", "SECTOR_17").
				AddRow("0081", "TOPIX-17 Energy Resources", "SECTOR_17"))

		got, err := db.ListCandidates(context.Background(), models.CategorySector17)
		require.NoError(t, err)

		assert.Equal(t, []models.IndexCandidate{
			{Code: "0080", Name: "TOPIX-17 Foods", Category: models.CategorySector17},
			{Code: "0081", Name: "TOPIX-17 Energy Resources", Category: models.CategorySector17},
		}, got)
	})

	t.Run("rejects an unknown stored category", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery("FROM factor_indices").
			WillReturnRows(sqlmock.NewRows([]string{"code", "name", "category"}).AddRow("9000", "Bogus", "SECTOR_99"))

		_, err := db.ListCandidates(context.Background(), models.CategorySector17)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown factor category")
	})
}

func TestIndicesRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB := SetupTestDB(t)
	defer testDB.Cleanup(t)
	ctx := context.Background()

	t.Run("seeded categories are listed in code order", func(t *testing.T) {
		sector33, err := testDB.ListCandidates(ctx, models.CategorySector33)
		require.NoError(t, err)

		require.Len(t, sector33, 33)
		assert.Equal(t, "0040", sector33[0].Code)
		assert.Equal(t, "0060", sector33[32].Code)
		for i := 1; i < len(sector33); i++ {
			assert.Less(t, sector33[i-1].Code, sector33[i].Code)
		}

		style, err := testDB.ListCandidates(ctx, models.CategoryTopixStyle)
		require.NoError(t, err)
		assert.Len(t, style, 12)
	})
}
