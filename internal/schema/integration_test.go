//go:build integration
// +build integration

package schema_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/crypto/bcrypt"

	"github.com/JonMunkholm/seedimport/internal/core"
	_ "github.com/JonMunkholm/seedimport/internal/core/tables"
	"github.com/JonMunkholm/seedimport/internal/schema"
)

// startPostgres runs a disposable PostgreSQL container and returns a pool
// connected to it.
func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "seed",
			"POSTGRES_PASSWORD": "seed",
			"POSTGRES_DB":       "nonprofit",
		},
		// The server logs readiness twice: once for the init run, once for real.
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Failed to terminate postgres container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://seed:seed@%s:%s/nonprofit?sslmode=disable", host, port.Port())
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return pool
}

func csv(lines ...string) *fstest.MapFile {
	return &fstest.MapFile{Data: []byte(strings.Join(lines, "\n") + "\n")}
}

func seedFiles() fstest.MapFS {
	return fstest.MapFS{
		"participants.csv": csv(
			"email,first_name,last_name,role,password,state",
			"a@x.org,Ann,Lee,member,pw1,California",
			"B@X.org,Bo,,admin,pw2,",
		),
		"event_templates.csv": csv(
			"name,event_type",
			"Intro to Robotics,workshop",
		),
		"event_occurrences.csv": csv(
			"event_name,starts_at,location",
			"Intro to  Robotics,2024-06-01 10:00,Room 1",
		),
		"registrations.csv": csv(
			"email,event_name,event_start,registration_status",
			"A@x.org,Intro to Robotics,2024-06-01T10:00:00Z,registered",
		),
		"surveys.csv": csv(
			"email,event_name,event_start,recommendation_score,comments",
			"a@x.org,Intro to Robotics,6/1/2024 10:00,9,Great",
		),
		"donations.csv": csv(
			"email,amount,donated_on",
			"a@x.org,$50.00,2024-05-01",
			",25,2024-05-02",
		),
	}
}

func TestImportAgainstPostgres(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping container-based test in short mode")
	}
	ctx := context.Background()
	pool := startPostgres(t)

	n, err := schema.Up(pool)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	statuses, err := schema.Status(pool)
	require.NoError(t, err)
	for _, s := range statuses {
		assert.True(t, s.Applied, s.ID)
	}

	hasher, err := core.NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)
	run := func() *core.Report {
		report, err := core.NewOrchestrator(core.NewPgStore(pool), hasher, nil).
			Run(ctx, core.All(), core.RunOptions{Files: seedFiles()})
		require.NoError(t, err)
		return report
	}

	first := run()
	require.False(t, first.HasFailures(), "%+v", first.Entities)
	assert.Equal(t, 7, first.Totals.Imported)
	assert.Equal(t, 1, first.Totals.Updated)
	assert.Equal(t, 4, first.Totals.Missing)

	var hash, state, role string
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT password_hash, state, role FROM participants WHERE email = 'a@x.org'`).Scan(&hash, &state, &role))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("pw1")))
	assert.Equal(t, "CA", state)
	assert.Equal(t, "participant", role)

	var bucket, comments string
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT survey_nps_bucket, survey_comments FROM registrations`).Scan(&bucket, &comments))
	assert.Equal(t, "Promoter", bucket)
	assert.Equal(t, "Great", comments)

	var total string
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT total_donations::text FROM participants WHERE email = 'a@x.org'`).Scan(&total))
	assert.True(t, decimal.RequireFromString(total).Equal(decimal.NewFromInt(50)), "total_donations = %s", total)

	var anonymous int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT count(*) FROM donations WHERE participant_id IS NULL`).Scan(&anonymous))
	assert.Equal(t, 1, anonymous)

	second := run()
	assert.False(t, second.HasFailures())
	assert.Zero(t, second.Totals.Imported, "re-running inserts nothing")
	assert.Zero(t, second.Totals.Updated)

	var again string
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT password_hash FROM participants WHERE email = 'a@x.org'`).Scan(&again))
	assert.Equal(t, hash, again, "credentials are not re-hashed")

	n, err = schema.Down(pool, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
