package db

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedReports(t *testing.T, m *MemoryDB) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, m.Set(ctx, "reportes", fmt.Sprintf("r%d", i), map[string]interface{}{
			"trabajadorId": fmt.Sprintf("w%d", i%2),
			"fecha":        base.Add(time.Duration(i) * 24 * time.Hour),
			"orden":        i,
		}))
	}
}

func TestMemoryDB_QueryEquality(t *testing.T) {
	m := NewMemoryDB()
	seedReports(t, m)

	recs, err := m.Query(context.Background(), "reportes", []Predicate{Eq("trabajadorId", "w0")}, 0)
	require.NoError(t, err)

	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"r0", "r2", "r4"}, ids)
}

func TestMemoryDB_QueryInAndRange(t *testing.T) {
	m := NewMemoryDB()
	seedReports(t, m)

	from := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	recs, err := m.Query(context.Background(), "reportes", []Predicate{
		In("trabajadorId", []string{"w0", "w1"}),
		{Field: "fecha", Op: OpGTE, Value: from},
		{Field: "fecha", Op: OpLTE, Value: to},
	}, 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "r1", recs[0].ID)
	assert.Equal(t, "r2", recs[1].ID)
}

func TestMemoryDB_QueryRejectsOversizedIn(t *testing.T) {
	m := NewMemoryDB()

	ids := make([]string, MaxInValues+1)
	for i := range ids {
		ids[i] = fmt.Sprintf("w%d", i)
	}
	_, err := m.Query(context.Background(), "reportes", []Predicate{In("trabajadorId", ids)}, 0)
	assert.ErrorIs(t, err, ErrInLimit)

	_, err = m.Query(context.Background(), "reportes", []Predicate{In("trabajadorId", ids[:MaxInValues])}, 0)
	assert.NoError(t, err)
}

func TestMemoryDB_QueryDocumentIDAndLimit(t *testing.T) {
	m := NewMemoryDB()
	seedReports(t, m)
	ctx := context.Background()

	recs, err := m.Query(ctx, "reportes", []Predicate{In(FieldDocumentID, []string{"r3", "r1", "missing"})}, 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "r1", recs[0].ID)

	recs, err = m.Query(ctx, "reportes", nil, 2)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestMemoryDB_MismatchedTypesNeverMatch(t *testing.T) {
	m := NewMemoryDB()
	seedReports(t, m)

	recs, err := m.Query(context.Background(), "reportes", []Predicate{Eq("orden", "1")}, 0)
	require.NoError(t, err)
	assert.Empty(t, recs)

	recs, err = m.Query(context.Background(), "reportes", []Predicate{Eq("orden", int64(1))}, 0)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestMemoryDB_GetSetDelete(t *testing.T) {
	m := NewMemoryDB()
	ctx := context.Background()

	_, err := m.GetByID(ctx, "usuarios", "u1")
	assert.ErrorIs(t, err, ErrNotFound)

	data := map[string]interface{}{"nombre": "Ana"}
	require.NoError(t, m.Set(ctx, "usuarios", "u1", data))
	data["nombre"] = "changed"

	rec, err := m.GetByID(ctx, "usuarios", "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", rec.Data["nombre"], "store keeps its own copy")

	require.NoError(t, m.Delete(ctx, "usuarios", "u1"))
	require.NoError(t, m.Delete(ctx, "usuarios", "u1"))
	assert.Equal(t, 0, m.Len("usuarios"))
}

func TestMemoryDB_CancelledContext(t *testing.T) {
	m := NewMemoryDB()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Query(ctx, "reportes", nil, 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, m.Set(ctx, "reportes", "x", nil), context.Canceled)
}

func TestPasswordHashRoundTrip(t *testing.T) {
	m := NewMemoryDB()
	ctx := context.Background()

	_, err := GetPasswordHash(ctx, m, "u1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, StorePasswordHash(ctx, m, "u1", "$2a$hash"))
	hash, err := GetPasswordHash(ctx, m, "u1")
	require.NoError(t, err)
	assert.Equal(t, "$2a$hash", hash)
}
