package repository

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/pitwall/internal/database"
	"github.com/yourusername/pitwall/internal/feature"
)

func predictionFrame() *feature.Frame {
	return feature.MustFrame(
		feature.NumericColumn("driverId", []float64{1, 20, 4}, nil),
		feature.TextColumn("driverName", []string{"Lewis Hamilton", "Sebastian Vettel", ""}, []bool{true, true, false}),
		feature.NumericColumn("predictions", []float64{18, 25, 0}, []bool{true, true, false}),
	)
}

func TestTableIdentifier(t *testing.T) {
	ident, err := tableIdentifier("driver_race_points_predictions")
	require.NoError(t, err)
	assert.Equal(t, `"driver_race_points_predictions"`, ident.Sanitize())

	ident, err = tableIdentifier("f1.constructor_predictions")
	require.NoError(t, err)
	assert.Equal(t, `"f1"."constructor_predictions"`, ident.Sanitize())

	for _, bad := range []string{"", ".table", "a.b.c", "schema."} {
		_, err := tableIdentifier(bad)
		assert.ErrorIs(t, err, ErrInvalidTableName, bad)
	}
}

func TestCreateTableSQL(t *testing.T) {
	sql := createTableSQL(pgx.Identifier{"predictions"}, predictionFrame())
	assert.Equal(t,
		`CREATE TABLE "predictions" ("driverId" DOUBLE PRECISION, "driverName" TEXT, "predictions" DOUBLE PRECISION)`,
		sql)
}

func TestCopyRowsMapsMissingToNull(t *testing.T) {
	rows := copyRows(predictionFrame())
	require.Len(t, rows, 3)
	assert.Equal(t, []any{1.0, "Lewis Hamilton", 18.0}, rows[0])
	assert.Equal(t, []any{4.0, nil, nil}, rows[2])
}

func TestColumnBuilder(t *testing.T) {
	num := newColumnBuilder("points", true)
	num.append(float64(18))
	num.append(int32(7))
	num.append(nil)
	num.append(pgtype.Numeric{Int: big.NewInt(125), Exp: -1, Valid: true})

	col := num.column()
	assert.Equal(t, []float64{18, 7, 0, 12.5}, col.Nums)
	assert.Equal(t, []bool{true, true, false, true}, col.Valid)

	txt := newColumnBuilder("date", false)
	txt.append("2011-03-27")
	txt.append(time.Date(2011, 4, 10, 0, 0, 0, 0, time.UTC))
	txt.append(nil)

	col = txt.column()
	assert.Equal(t, "2011-03-27", col.Texts[0])
	assert.Contains(t, col.Texts[1], "2011-04-10")
	assert.False(t, col.Valid[2])

	empty := newColumnBuilder("x", true).column()
	assert.Equal(t, 0, empty.Len())
}

func TestIsNumericOID(t *testing.T) {
	assert.True(t, isNumericOID(pgtype.Float8OID))
	assert.True(t, isNumericOID(pgtype.Int8OID))
	assert.False(t, isNumericOID(pgtype.TextOID))
	assert.False(t, isNumericOID(pgtype.DateOID))
}

func TestNewRepositoriesRequiresDB(t *testing.T) {
	_, err := NewRepositories(nil, nil)
	assert.Error(t, err)
}

func TestPredictionTableOverwriteIntegration(t *testing.T) {
	db := database.SetupTestDB(t)
	repo := NewPostgresPredictionTableRepository(db, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	const table = "pitwall_test_predictions"
	require.NoError(t, repo.Overwrite(ctx, table, predictionFrame()))
	require.NoError(t, repo.Overwrite(ctx, table, predictionFrame()))

	n, err := repo.Count(ctx, table)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	loaded, err := repo.Load(ctx, table, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"driverId", "driverName", "predictions"}, loaded.Names())

	head, err := repo.Load(ctx, table, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, head.Nrow())

	_, err = db.Exec(ctx, `DROP TABLE IF EXISTS "pitwall_test_predictions"`)
	require.NoError(t, err)
}
