package health_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnwards/pipemon/internal/connector"
	"github.com/johnwards/pipemon/internal/connector/health"
	"github.com/johnwards/pipemon/internal/database"
	"github.com/johnwards/pipemon/internal/seed"
)

func connectTemp(t *testing.T, allowMock bool) *health.Connector {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "health.db")
	c := health.New("healthdb", health.Credentials{DatabaseURL: dsn, AutoMigrate: true}, allowMock)
	require.NoError(t, c.Connect(context.Background()))
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c
}

func TestQueryLiveStore(t *testing.T) {
	c := connectTemp(t, false)
	ctx := context.Background()
	require.Equal(t, connector.StatusHealthy, c.Status())
	require.NoError(t, seed.Seed(ctx, c.DB()))

	res, err := c.Query(ctx, connector.Query{})
	require.NoError(t, err)
	assert.Equal(t, connector.KindRecords, res.Kind)
	assert.False(t, res.Mock)
	assert.Len(t, res.Records, len(seed.DefaultHealth))

	res, err = c.Query(ctx, connector.Query{Table: health.TableHealth, AccountID: "0015g00000GHI4QAAX"})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	score, ok := res.Records[0].Float("health_score")
	require.True(t, ok)
	assert.Equal(t, 38.0, score)

	res, err = c.Query(ctx, connector.Query{Table: health.TableMetrics, AccountID: "0015g00000ABC2QAAX"})
	require.NoError(t, err)
	assert.Len(t, res.Records, 2)
}

func TestUpsertHealthScore(t *testing.T) {
	c := connectTemp(t, false)
	ctx := context.Background()

	h, err := c.UpsertHealthScore(ctx, "001X", 64, "renewal risk")
	require.NoError(t, err)
	assert.Equal(t, 64, h.HealthScore)

	rows, err := c.HealthScores(ctx, "001X")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "renewal risk", rows[0].Details)
}

func TestUnknownTable(t *testing.T) {
	c := connectTemp(t, true)
	_, err := c.Query(context.Background(), connector.Query{Table: "users"})
	assert.ErrorIs(t, err, health.ErrUnknownTable)
}

func TestMockMode(t *testing.T) {
	ctx := context.Background()
	query, md, c, err := health.Factory(ctx, "healthdb", health.Credentials{}, true)
	require.NoError(t, err)
	assert.Equal(t, connector.StatusMock, md.Status)
	assert.Contains(t, md.Error, "HEALTH_DATABASE_URL")

	res, err := query(ctx, connector.Query{})
	require.NoError(t, err)
	assert.True(t, res.Mock)
	assert.Len(t, res.Records, 5)

	metrics, err := c.Metrics(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, metrics)

	_, err = c.UpsertHealthScore(ctx, "001X", 50, "")
	var connErr *connector.ConnectionError
	assert.ErrorAs(t, err, &connErr)
}

func TestOpenFailure(t *testing.T) {
	boom := errors.New("connection refused")
	opener := health.WithOpener(func(string) (*database.DB, error) { return nil, boom })

	_, _, _, err := health.Factory(context.Background(), "healthdb",
		health.Credentials{DatabaseURL: "postgres://localhost/health"}, false, opener)
	var connErr *connector.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.ErrorIs(t, err, boom)
}

func TestCheckHealthPings(t *testing.T) {
	c := connectTemp(t, false)
	ctx := context.Background()

	h := c.CheckHealth(ctx, false)
	assert.True(t, h.Healthy, h.Error)

	require.NoError(t, c.Close(ctx))
	assert.Nil(t, c.DB())
	h = c.CheckHealth(ctx, true)
	assert.False(t, h.Healthy)
}

func TestMockHealthMatchesCRMFixtures(t *testing.T) {
	for _, h := range health.MockHealth() {
		assert.Regexp(t, `^0015g00000[A-Z]{3}\dQAAX$`, h.AccountID)
		rec := h.Record()
		assert.Equal(t, h.AccountID, rec.String("account_id"))
		_, ok := rec.Float("health_score")
		assert.True(t, ok)
	}
}
