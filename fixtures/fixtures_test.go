package fixtures

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"workscope/auth"
	"workscope/db"
	"workscope/models"
	"workscope/normalize"
)

func TestLoad_Demo(t *testing.T) {
	f, err := Load("testdata/demo.yaml")
	require.NoError(t, err)

	assert.Len(t, f.Companies, 2)
	assert.Len(t, f.Users, 6)
	assert.Len(t, f.Reports, 4)
	require.NotNil(t, f.Reports[2].CompletedAt)
	assert.Equal(t, 14, f.Reports[2].CompletedAt.Hour())
}

func TestParse_Rejects(t *testing.T) {
	cases := map[string]string{
		"malformed":          "users: [",
		"user without id":    "users:\n  - username: ana\n",
		"company without id": "companies:\n  - name: Acme\n",
		"unknown worker":     "users:\n  - id: ana\n    username: ana\nreports:\n  - id: r1\n    worker: ghost\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestApply(t *testing.T) {
	f, err := Load("testdata/demo.yaml")
	require.NoError(t, err)

	ctx := context.Background()
	store := db.NewMemoryDB()
	n, err := f.Apply(ctx, store, auth.NewHasher(bcrypt.MinCost))
	require.NoError(t, err)

	assert.Equal(t, Counts{Companies: 2, Users: 6, Passwords: 3, Reports: 4}, n)
	assert.Equal(t, 4, store.Len(models.CollectionReports))

	norm := normalize.New(nil)
	rec, err := store.GetByID(ctx, models.CollectionReports, "r3")
	require.NoError(t, err)
	r := norm.Report(*rec)
	assert.Equal(t, models.StatusCompleted, r.Status)
	assert.Equal(t, models.PriorityLow, r.Priority)
	assert.Equal(t, []string{"https://storage.example/evidence/r3-1.jpg"}, r.Evidence)

	rec, err = store.GetByID(ctx, models.CollectionUsers, "coord")
	require.NoError(t, err)
	u := norm.User(*rec)
	assert.Equal(t, models.AdminLevelPeer, u.AdminLevel)
	assert.Equal(t, "jefa", u.CreatorID)

	hash, err := db.GetPasswordHash(ctx, store, "jefa")
	require.NoError(t, err)
	assert.NoError(t, auth.NewHasher(bcrypt.MinCost).Check("jefapass1", hash))
	assert.Zero(t, norm.Anomalies().Total())
}

func TestApply_NilHasherSkipsPasswords(t *testing.T) {
	f, err := Load("testdata/demo.yaml")
	require.NoError(t, err)

	store := db.NewMemoryDB()
	n, err := f.Apply(context.Background(), store, nil)
	require.NoError(t, err)
	assert.Zero(t, n.Passwords)
	assert.Zero(t, store.Len(models.CollectionPasswords))
}
