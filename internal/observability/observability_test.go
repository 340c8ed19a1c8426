package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type probe struct {
	ID   uint
	Name string
}

func TestRegisterGormMetrics(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, RegisterGormMetrics(db))
	require.NoError(t, db.AutoMigrate(&probe{}))

	require.NoError(t, db.Create(&probe{Name: "a"}).Error)
	var got []probe
	require.NoError(t, db.Find(&got).Error)

	assert.Positive(t, testutil.CollectAndCount(DatabaseQueryLatency))
}

func TestInitTracing_Disabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{ServiceName: "murmur-test"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	ctx, span := StartServiceSpan(context.Background(), "svc", "op")
	assert.NotNil(t, ctx)
	EndSpan(span, errors.New("recorded"))
}

func TestRepoLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := Logger()
	SetLogger(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	defer SetLogger(prev)

	l := NewRepoLogger("likes")
	l.LogConflict(context.Background(), "create", slog.Uint64("post_id", 4))
	l.LogError(context.Background(), errors.New("boom"), "delete")

	out := buf.String()
	assert.Contains(t, out, `"table":"likes"`)
	assert.Contains(t, out, `"post_id":4`)
	assert.Contains(t, out, `"error":"boom"`)
}
