package storage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "data", "db.bolt"))
	require.NoError(t, err)
	db.now = func() time.Time { return time.Unix(1700000000, 0) }
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestCampaignLifecycle(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.CreateCampaign(Campaign{ID: "lot-42", Name: "Lot 42", Population: 3}))
	err := db.CreateCampaign(Campaign{ID: "lot-42", Population: 5})
	assert.True(t, errors.Is(err, ErrCampaignExists))

	c, err := db.GetCampaign("lot-42")
	require.NoError(t, err)
	assert.Equal(t, StatusOpen, c.Status)
	assert.Zero(t, c.Draws)

	c, err = db.RecordDraw("lot-42", true)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Draws)
	assert.Equal(t, 1, c.Successes)
	assert.Equal(t, int64(1700000000), c.LastSuccessUnix)

	c, err = db.RecordDraws("lot-42", []bool{false, false})
	require.NoError(t, err)
	assert.Equal(t, 3, c.Draws)
	assert.Equal(t, 1, c.Successes)
	assert.Equal(t, 2, c.Failures())
	assert.Equal(t, 2, c.ConsecutiveFailures)

	_, err = db.RecordDraw("lot-42", true)
	assert.True(t, errors.Is(err, ErrPopulationExhausted))

	c, err = db.GetCampaign("lot-42")
	require.NoError(t, err)
	assert.Equal(t, 3, c.Draws)
}

func TestRecordDrawsAtomic(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.CreateCampaign(Campaign{ID: "a", Population: 2}))
	_, err := db.RecordDraws("a", []bool{true, true, true})
	assert.True(t, errors.Is(err, ErrPopulationExhausted))
	c, err := db.GetCampaign("a")
	require.NoError(t, err)
	assert.Zero(t, c.Draws)
}

func TestCreateCampaignInvalid(t *testing.T) {
	db := openTestDB(t)
	assert.Error(t, db.CreateCampaign(Campaign{Population: 3}))
	assert.Error(t, db.CreateCampaign(Campaign{ID: "x"}))
}

func TestNotFound(t *testing.T) {
	db := openTestDB(t)
	_, err := db.GetCampaign("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = db.RecordDraw("missing", true)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListCampaignsSorted(t *testing.T) {
	db := openTestDB(t)
	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, db.CreateCampaign(Campaign{ID: id, Population: 10}))
	}
	cs, err := db.ListCampaigns()
	require.NoError(t, err)
	require.Len(t, cs, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{cs[0].ID, cs[1].ID, cs[2].ID})
}

func TestTestLengthCache(t *testing.T) {
	db := openTestDB(t)
	key := TestLengthKey(20, 0.9, 0.95, 0.01)
	assert.Equal(t, "test_length/20/0.9/0.95/0.01", key)

	_, found, err := db.GetCachedTestLength(key)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, db.PutCachedTestLength(key, 15))
	require.NoError(t, db.PutCachedTestLength(TestLengthKey(3, 0.999, 0.95, 0.01), -1))

	n, found, err := db.GetCachedTestLength(key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 15, n)

	n, found, err = db.GetCachedTestLength(TestLengthKey(3, 0.999, 0.95, 0.01))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, -1, n)
}

func TestSnapshotCampaign(t *testing.T) {
	db := openTestDB(t)
	dir := filepath.Join(t.TempDir(), "snaps")
	c := Campaign{ID: "lot-7", Population: 50, Draws: 40, Successes: 40, Status: StatusCertified}
	path, err := db.SnapshotCampaign(c, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "lot-7_1700000000.json"), path)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var got Campaign
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, c, got)
}
