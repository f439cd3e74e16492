package engine

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vocab-reconciler/internal/common/config"
	"vocab-reconciler/internal/common/database"
	reconerrors "vocab-reconciler/internal/common/errors"
	"vocab-reconciler/internal/common/logger"
	embeddingmock "vocab-reconciler/internal/embedding/mock"
	"vocab-reconciler/internal/models"
	"vocab-reconciler/internal/recon/cache"
	"vocab-reconciler/internal/recon/strategy"
)

func engineConfig() config.EngineConfig {
	return config.EngineConfig{
		KFuzzy:          5,
		KSemantic:       5,
		KFinal:          25,
		Threshold:       0.6,
		AutoMatchBound:  0.9,
		AutoMatchMargin: 0.1,
		FuzzyTimeout:    150,
		SemanticTimeout: 150,
		DefaultType:     "site",
	}
}

func lexicalOnlyStrategy() *strategy.EntityStrategy {
	return &strategy.EntityStrategy{
		Key:               "site",
		DisplayName:       "Site",
		View:              "site_lookup",
		IDColumn:          "site_id",
		LabelColumn:       "label",
		DescriptionColumn: "description",
		Filters:           map[string]string{"country": "country_code"},
		LexicalWeight:     1.0,
		SemanticWeight:    0.0,
		Threshold:         0.6,
		AutoMatchBound:    0.9,
		AutoMatchMargin:   0.1,
		KFuzzy:            5,
		KSemantic:         5,
	}
}

func hybridStrategy() *strategy.EntityStrategy {
	s := lexicalOnlyStrategy()
	s.EmbeddingColumn = "embedding"
	s.EmbeddingEnabled = true
	s.LexicalWeight = 0.5
	s.SemanticWeight = 0.5
	return s
}

func registryWith(t *testing.T, strategies ...*strategy.EntityStrategy) *strategy.Registry {
	reg := strategy.NewRegistry()
	for _, s := range strategies {
		require.NoError(t, reg.Register(s))
	}
	return reg
}

func setupSession(t *testing.T) (*database.Session, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	client := database.NewPostgresFromDB(db, logger.NewTestLogger(t))
	return client.NewSession(context.Background()), mock
}

func fuzzyRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"site_id", "label", "description", "score"})
}

func TestFindCandidates_LexicalOnly(t *testing.T) {
	sess, mock := setupSession(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("similarity(lower(label), $1)")).
		WithArgs("uppland").
		WillReturnRows(fuzzyRows().
			AddRow("42", "Uppland", "Historic province", 0.95).
			AddRow("57", "Upplands Väsby", "", 0.61))

	eng := New(registryWith(t, lexicalOnlyStrategy()), nil, nil, engineConfig(), logger.NewTestLogger(t))
	got, err := eng.FindCandidates(context.Background(), sess, models.ReconciliationQuery{Query: "Uppland", Type: "site"})

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "42", got[0].ID)
	assert.True(t, got[0].Match)
	assert.False(t, got[1].Match)
	assert.Equal(t, []models.TypeRef{{ID: "site", Name: "Site"}}, got[0].Types)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindCandidates_HybridRunsBothChannels(t *testing.T) {
	sess, mock := setupSession(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("similarity(lower(label), $1)")).
		WithArgs("uppland").
		WillReturnRows(fuzzyRows().AddRow("42", "Uppland", "Historic province", 0.9))
	mock.ExpectQuery(regexp.QuoteMeta("embedding <=> $1")).
		WillReturnRows(fuzzyRows().AddRow("42", "Uppland", "Historic province", 0.8))

	eng := New(registryWith(t, hybridStrategy()), embeddingmock.NewMockEmbedder(), nil, engineConfig(), logger.NewTestLogger(t))
	got, err := eng.FindCandidates(context.Background(), sess, models.ReconciliationQuery{Query: "Uppland", Type: "site"})

	require.NoError(t, err)
	require.Len(t, got, 1)
	// 0.5*0.9 + 0.5*0.8
	assert.InDelta(t, 0.85, got[0].Score, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindCandidates_EmbeddingFailureDegradesToLexical(t *testing.T) {
	sess, mock := setupSession(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("similarity(lower(label), $1)")).
		WithArgs("uppland").
		WillReturnRows(fuzzyRows().AddRow("42", "Uppland", "", 0.9))

	embedder := embeddingmock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, fmt.Errorf("provider unavailable")
	}

	// The zero semantic contribution halves the blend under 0.5/0.5 weights;
	// a lower threshold keeps the candidate visible for the assertion.
	strat := hybridStrategy()
	strat.Threshold = 0.4

	eng := New(registryWith(t, strat), embedder, nil, engineConfig(), logger.NewTestLogger(t))
	got, err := eng.FindCandidates(context.Background(), sess, models.ReconciliationQuery{Query: "Uppland", Type: "site"})

	require.NoError(t, err)
	require.Len(t, got, 1)
	// Semantic contribution is zero, so the blend halves under 0.5/0.5 weights.
	assert.InDelta(t, 0.45, got[0].Scores.Blend, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindCandidates_UnknownEntity(t *testing.T) {
	sess, _ := setupSession(t)

	eng := New(registryWith(t, lexicalOnlyStrategy()), nil, nil, engineConfig(), logger.NewTestLogger(t))
	_, err := eng.FindCandidates(context.Background(), sess, models.ReconciliationQuery{Query: "Uppland", Type: "starship"})

	require.Error(t, err)
	assert.True(t, reconerrors.HasCode(err, reconerrors.ErrCodeUnknownEntity))
}

func TestFindCandidates_EmptyQuery(t *testing.T) {
	sess, _ := setupSession(t)

	eng := New(registryWith(t, lexicalOnlyStrategy()), nil, nil, engineConfig(), logger.NewTestLogger(t))
	_, err := eng.FindCandidates(context.Background(), sess, models.ReconciliationQuery{Query: "  \t ", Type: "site"})

	require.Error(t, err)
	assert.True(t, reconerrors.HasCode(err, reconerrors.ErrCodeEmptyQuery))
}

func TestFindCandidates_DefaultTypeWhenUnset(t *testing.T) {
	sess, mock := setupSession(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM site_lookup")).
		WithArgs("uppland").
		WillReturnRows(fuzzyRows().AddRow("42", "Uppland", "", 0.95))

	eng := New(registryWith(t, lexicalOnlyStrategy()), nil, nil, engineConfig(), logger.NewTestLogger(t))
	got, err := eng.FindCandidates(context.Background(), sess, models.ReconciliationQuery{Query: "Uppland"})

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindCandidates_SupportedFilterPushedDown(t *testing.T) {
	sess, mock := setupSession(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("AND country_code = $2")).
		WithArgs("uppland", "SE").
		WillReturnRows(fuzzyRows().AddRow("42", "Uppland", "", 0.95))

	eng := New(registryWith(t, lexicalOnlyStrategy()), nil, nil, engineConfig(), logger.NewTestLogger(t))
	got, err := eng.FindCandidates(context.Background(), sess, models.ReconciliationQuery{
		Query: "Uppland",
		Type:  "site",
		Properties: []models.PropertyConstraint{
			{PID: "country", Value: "SE"},
			// Unsupported pids are dropped, not an error.
			{PID: "population", Value: 12000},
		},
	})

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindCandidates_RetrievalFailureAfterRollback(t *testing.T) {
	sess, mock := setupSession(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT site_id::text").
		WillReturnError(fmt.Errorf("connection reset"))
	mock.ExpectRollback()

	eng := New(registryWith(t, lexicalOnlyStrategy()), nil, nil, engineConfig(), logger.NewTestLogger(t))
	_, err := eng.FindCandidates(context.Background(), sess, models.ReconciliationQuery{Query: "Uppland", Type: "site"})

	require.Error(t, err)
	assert.True(t, reconerrors.HasCode(err, reconerrors.ErrCodeRetrievalFailed))
	assert.Equal(t, database.StateIdle, sess.State())
}

func TestFindCandidates_SharedSessionAcrossSubQueries(t *testing.T) {
	sess, mock := setupSession(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM site_lookup")).
		WithArgs("uppland").
		WillReturnRows(fuzzyRows().AddRow("42", "Uppland", "", 0.95))
	mock.ExpectQuery(regexp.QuoteMeta("FROM site_lookup")).
		WithArgs("gotland").
		WillReturnRows(fuzzyRows().AddRow("7", "Gotland", "", 0.93))
	mock.ExpectCommit()

	eng := New(registryWith(t, lexicalOnlyStrategy()), nil, nil, engineConfig(), logger.NewTestLogger(t))

	// Sequential batches run every sub-query on one shared session. Each
	// search carries its own deadline context, canceled when it returns;
	// the session transaction must survive those cancellations.
	first, err := eng.FindCandidates(context.Background(), sess, models.ReconciliationQuery{Query: "Uppland", Type: "site"})
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Longer than the per-call search deadlines.
	time.Sleep(200 * time.Millisecond)

	second, err := eng.FindCandidates(context.Background(), sess, models.ReconciliationQuery{Query: "Gotland", Type: "site"})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "7", second[0].ID)

	require.NoError(t, sess.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindCandidates_CacheHitSkipsDatabase(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	redisClient, err := database.NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { redisClient.Close() })

	candidateCache := cache.New(redisClient, time.Minute, logger.NewTestLogger(t))
	eng := New(registryWith(t, lexicalOnlyStrategy()), nil, candidateCache, engineConfig(), logger.NewTestLogger(t))

	sess, mock := setupSession(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM site_lookup")).
		WithArgs("uppland").
		WillReturnRows(fuzzyRows().AddRow("42", "Uppland", "", 0.95))

	q := models.ReconciliationQuery{Query: "Uppland", Type: "site"}
	first, err := eng.FindCandidates(context.Background(), sess, q)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.True(t, first[0].Match)

	// Second call: a session with no expectations proves the database was
	// never touched.
	cachedSess, cachedMock := setupSession(t)
	second, err := eng.FindCandidates(context.Background(), cachedSess, q)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.InDelta(t, first[0].Score, second[0].Score, 1e-9)
	assert.True(t, second[0].Match)
	assert.NoError(t, cachedMock.ExpectationsWereMet())
}

func TestFindCandidates_CacheSharedAcrossLimits(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	redisClient, err := database.NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { redisClient.Close() })

	candidateCache := cache.New(redisClient, time.Minute, logger.NewTestLogger(t))
	eng := New(registryWith(t, lexicalOnlyStrategy()), nil, candidateCache, engineConfig(), logger.NewTestLogger(t))

	sess, mock := setupSession(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM site_lookup")).
		WithArgs("uppland").
		WillReturnRows(fuzzyRows().
			AddRow("1", "Uppland A", "", 0.95).
			AddRow("2", "Uppland B", "", 0.80).
			AddRow("3", "Uppland C", "", 0.70))

	// The cache key excludes the limit, so a tight first request must not
	// shrink what a later, wider request sees.
	first, err := eng.FindCandidates(context.Background(), sess, models.ReconciliationQuery{Query: "Uppland", Type: "site", Limit: 1})
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, "1", first[0].ID)

	cachedSess, cachedMock := setupSession(t)
	second, err := eng.FindCandidates(context.Background(), cachedSess, models.ReconciliationQuery{Query: "Uppland", Type: "site", Limit: 10})
	require.NoError(t, err)
	require.Len(t, second, 3)
	assert.Equal(t, "1", second[0].ID)
	assert.Equal(t, "2", second[1].ID)
	assert.Equal(t, "3", second[2].ID)
	assert.True(t, second[0].Match)
	assert.NoError(t, cachedMock.ExpectationsWereMet())
}

func TestFindCandidates_LimitCapsResults(t *testing.T) {
	sess, mock := setupSession(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM site_lookup")).
		WithArgs("uppland").
		WillReturnRows(fuzzyRows().
			AddRow("1", "Uppland A", "", 0.99).
			AddRow("2", "Uppland B", "", 0.80).
			AddRow("3", "Uppland C", "", 0.70))

	eng := New(registryWith(t, lexicalOnlyStrategy()), nil, nil, engineConfig(), logger.NewTestLogger(t))
	got, err := eng.FindCandidates(context.Background(), sess, models.ReconciliationQuery{Query: "Uppland", Type: "site", Limit: 2})

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "2", got[1].ID)
}
