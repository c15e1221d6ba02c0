package meta

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func metaDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Brand{}, &Query{}))
	return db
}

func TestGormReader_BrandLookup(t *testing.T) {
	t.Parallel()

	db := metaDB(t)
	require.NoError(t, db.Create(&Brand{
		ID:              "b-1",
		Name:            "Acme",
		CompetitorsJSON: `["Globex","Initech"]`,
	}).Error)

	r := NewGormReader(db)
	ctx := context.Background()

	name, err := r.GetBrandName(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, "Acme", name)

	competitors, err := r.GetCompetitors(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Globex", "Initech"}, competitors)

	// 缺失品牌返回错误，调用方降级
	_, err = r.GetBrandName(ctx, "b-missing")
	assert.Error(t, err)
}

func TestGormReader_QueryLookup(t *testing.T) {
	t.Parallel()

	db := metaDB(t)
	require.NoError(t, db.Create(&Query{
		ID:     "q-1",
		Text:   "best running shoes?",
		Intent: "commercial",
		Topic:  "footwear",
	}).Error)

	info, err := NewGormReader(db).GetQuery(context.Background(), "q-1")
	require.NoError(t, err)
	assert.Equal(t, "best running shoes?", info.Text)
	assert.Equal(t, "commercial", info.Intent)
}

func TestHTTPScorer_FireAndForget(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		// 请求体携带品牌定位信息，parallel 固定为 false
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "r-1", payload["result_id"])
		assert.Equal(t, "b-1", payload["brand_id"])
		assert.Equal(t, "c-1", payload["customer_id"])
		assert.Equal(t, false, payload["parallel"])

		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewHTTPScorer(srv.URL, "secret", zap.NewNop())
	s.ScoreBrandAsync(context.Background(), "r-1", "b-1", "c-1")

	require.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestHTTPScorer_FailureNeverPanics(t *testing.T) {
	t.Parallel()

	s := NewHTTPScorer("http://127.0.0.1:1", "", zap.NewNop())
	// 不可达的打分服务只产生日志
	s.ScoreBrandAsync(context.Background(), "r-1", "b-1", "c-1")

	assert.NotPanics(t, func() {
		NoopScorer{}.ScoreBrandAsync(context.Background(), "r-2", "b-2", "c-2")
	})
}
