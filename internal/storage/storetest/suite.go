// Package storetest is the behavioural suite every core.MemoryStore backend
// runs from its own tests.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twohreichel/pisovereign/internal/core"
)

// Factory returns an empty store. Cleanup is the caller's responsibility,
// typically via t.Cleanup.
type Factory func(t *testing.T) core.MemoryStore

func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, store core.MemoryStore)
	}{
		{"SaveAndGet", testSaveAndGet},
		{"GetUnknown", testGetUnknown},
		{"SaveDuplicateID", testSaveDuplicateID},
		{"SaveAnyOwner", testSaveAnyOwner},
		{"Update", testUpdate},
		{"Delete", testDelete},
		{"SearchSimilar", testSearchSimilar},
		{"SearchSimilarIsUserScoped", testSearchSimilarUserScoped},
		{"List", testList},
		{"ListByType", testListByType},
		{"ApplyDecay", testApplyDecay},
		{"CleanupBelowThreshold", testCleanup},
		{"FindMergeCandidates", testFindMergeCandidates},
		{"Stats", testStats},
		{"RecordAccess", testRecordAccess},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

func testSaveAndGet(t *testing.T, store core.MemoryStore) {
	ctx := context.Background()
	user := uuid.New()
	conv := uuid.New()

	m := core.NewMemory(user, "Paris is the capital of France", "Paris capital", core.MemoryTypeContext).
		WithConversation(conv).
		WithImportance(0.8).
		WithTags([]string{"geo", "travel"}).
		WithEmbedding([]float32{0.1, 0.2, 0.3})

	require.NoError(t, store.Save(ctx, m))

	got, err := store.Get(ctx, m.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, m.ID, got.ID)
	assert.Equal(t, user, got.UserID)
	require.NotNil(t, got.ConversationID)
	assert.Equal(t, conv, *got.ConversationID)
	assert.Equal(t, m.Content, got.Content)
	assert.Equal(t, m.Summary, got.Summary)
	assert.Equal(t, float32(0.8), got.Importance)
	assert.Equal(t, core.MemoryTypeContext, got.Type)
	assert.Equal(t, []string{"geo", "travel"}, got.Tags)
	assert.WithinDuration(t, m.CreatedAt, got.CreatedAt, time.Millisecond)
	require.Len(t, got.Embedding, 3)
	for i := range m.Embedding {
		assert.InDelta(t, m.Embedding[i], got.Embedding[i], 1e-4)
	}
}

func testGetUnknown(t *testing.T, store core.MemoryStore) {
	got, err := store.Get(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func testSaveDuplicateID(t *testing.T, store core.MemoryStore) {
	ctx := context.Background()
	m := core.NewMemory(uuid.New(), "a", "a", core.MemoryTypeFact)

	require.NoError(t, store.Save(ctx, m))
	assert.Error(t, store.Save(ctx, m))
}

// Owners are not registered anywhere; any user id is accepted.
func testSaveAnyOwner(t *testing.T, store core.MemoryStore) {
	ctx := context.Background()

	m := core.NewMemory(uuid.New(), "first memory of a new user", "first memory", core.MemoryTypeFact)
	require.NoError(t, store.Save(ctx, m))

	got, err := store.Get(ctx, m.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, m.UserID, got.UserID)
}

func testUpdate(t *testing.T, store core.MemoryStore) {
	ctx := context.Background()
	m := core.NewMemory(uuid.New(), "old", "old", core.MemoryTypeFact).
		WithCreatedAt(time.Now().Add(-time.Hour))
	require.NoError(t, store.Save(ctx, m))

	updated := m.
		WithImportance(0.9).
		WithTags([]string{"x"}).
		WithEmbedding([]float32{1, 0})
	updated.Content = "new"
	updated.Summary = "new summary"
	updated.Type = core.MemoryTypeCorrection
	updated.CreatedAt = time.Now().Add(24 * time.Hour)

	require.NoError(t, store.Update(ctx, updated))

	got, err := store.Get(ctx, m.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "new", got.Content)
	assert.Equal(t, "new summary", got.Summary)
	assert.Equal(t, float32(0.9), got.Importance)
	assert.Equal(t, core.MemoryTypeCorrection, got.Type)
	assert.Equal(t, []string{"x"}, got.Tags)
	assert.Equal(t, []float32{1, 0}, got.Embedding)
	assert.WithinDuration(t, m.CreatedAt, got.CreatedAt, time.Millisecond, "created_at is immutable")

	// second update replaces the embedding row
	require.NoError(t, store.Update(ctx, got.WithEmbedding([]float32{0, 1, 0})))
	got, err = store.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1, 0}, got.Embedding)
}

func testDelete(t *testing.T, store core.MemoryStore) {
	ctx := context.Background()
	m := core.NewMemory(uuid.New(), "a", "a", core.MemoryTypeFact).WithEmbedding([]float32{1, 0})
	require.NoError(t, store.Save(ctx, m))

	require.NoError(t, store.Delete(ctx, m.ID))
	got, err := store.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.NoError(t, store.Delete(ctx, m.ID))
	assert.NoError(t, store.Delete(ctx, uuid.New()))
}

func testSearchSimilar(t *testing.T, store core.MemoryStore) {
	ctx := context.Background()
	user := uuid.New()

	exact := core.NewMemory(user, "exact", "exact", core.MemoryTypeFact).
		WithEmbedding([]float32{1, 0, 0}).WithImportance(0.2)
	near := core.NewMemory(user, "near", "near", core.MemoryTypeFact).
		WithEmbedding([]float32{0.95, 0.05, 0}).WithImportance(1.0)
	far := core.NewMemory(user, "far", "far", core.MemoryTypeFact).
		WithEmbedding([]float32{0, 1, 0})
	bare := core.NewMemory(user, "bare", "bare", core.MemoryTypeFact)

	for _, m := range []core.Memory{exact, near, far, bare} {
		require.NoError(t, store.Save(ctx, m))
	}

	results, err := store.SearchSimilar(ctx, user, []float32{1, 0, 0}, 10, 0.5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, near.ID, results[0].Memory.ID)
	assert.Equal(t, exact.ID, results[1].Memory.ID)
	assert.InDelta(t, 1.0, results[1].Similarity, 1e-4)

	limited, err := store.SearchSimilar(ctx, user, []float32{1, 0, 0}, 1, 0)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	// mismatched query length gives similarity 0 for every candidate
	none, err := store.SearchSimilar(ctx, user, []float32{1, 0}, 10, 0.1)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testSearchSimilarUserScoped(t *testing.T, store core.MemoryStore) {
	ctx := context.Background()
	owner := uuid.New()
	other := uuid.New()

	m := core.NewMemory(owner, "mine", "mine", core.MemoryTypeFact).WithEmbedding([]float32{1, 0})
	require.NoError(t, store.Save(ctx, m))

	results, err := store.SearchSimilar(ctx, other, []float32{1, 0}, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func testList(t *testing.T, store core.MemoryStore) {
	ctx := context.Background()
	user := uuid.New()
	conv := uuid.New()
	now := time.Now()

	low := core.NewMemory(user, "low", "low", core.MemoryTypeFact).WithImportance(0.2)
	high := core.NewMemory(user, "high", "high", core.MemoryTypePreference).WithImportance(0.9)
	tieOld := core.NewMemory(user, "tie old", "tie old", core.MemoryTypeContext).
		WithImportance(0.5).WithConversation(conv).WithAccessedAt(now.Add(-time.Hour))
	tieNew := core.NewMemory(user, "tie new", "tie new", core.MemoryTypeContext).
		WithImportance(0.5).WithConversation(conv).WithAccessedAt(now).
		WithEmbedding([]float32{1, 2})
	foreign := core.NewMemory(uuid.New(), "foreign", "foreign", core.MemoryTypeFact).WithImportance(1)

	for _, m := range []core.Memory{low, high, tieOld, tieNew, foreign} {
		require.NoError(t, store.Save(ctx, m))
	}

	all, err := store.List(ctx, core.NewMemoryQuery().ForUser(user))
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, []string{"high", "tie new", "tie old", "low"}, contents(all))
	assert.Equal(t, []float32{1, 2}, all[1].Embedding)
	assert.Nil(t, all[2].Embedding)

	inConv, err := store.List(ctx, core.NewMemoryQuery().ForUser(user).InConversation(conv))
	require.NoError(t, err)
	assert.Equal(t, []string{"tie new", "tie old"}, contents(inConv))

	typed, err := store.List(ctx, core.NewMemoryQuery().ForUser(user).OfTypes(core.MemoryTypeFact, core.MemoryTypePreference))
	require.NoError(t, err)
	assert.Equal(t, []string{"high", "low"}, contents(typed))

	important, err := store.List(ctx, core.NewMemoryQuery().ForUser(user).WithMinImportance(0.5))
	require.NoError(t, err)
	assert.Len(t, important, 3)

	limited, err := store.List(ctx, core.NewMemoryQuery().WithLimit(2))
	require.NoError(t, err)
	assert.Equal(t, []string{"foreign", "high"}, contents(limited))
}

func testListByType(t *testing.T, store core.MemoryStore) {
	ctx := context.Background()
	user := uuid.New()

	for i, mt := range []core.MemoryType{core.MemoryTypeFact, core.MemoryTypeFact, core.MemoryTypePreference} {
		m := core.NewMemory(user, "m", "m", mt).WithImportance(float32(i+1) / 10)
		require.NoError(t, store.Save(ctx, m))
	}

	facts, err := store.ListByType(ctx, user, core.MemoryTypeFact, 10)
	require.NoError(t, err)
	assert.Len(t, facts, 2)

	one, err := store.ListByType(ctx, user, core.MemoryTypeFact, 1)
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, float32(0.2), one[0].Importance)
}

func testApplyDecay(t *testing.T, store core.MemoryStore) {
	ctx := context.Background()
	now := time.Now()

	fresh := core.NewMemory(uuid.New(), "fresh", "fresh", core.MemoryTypeFact).WithImportance(0.8)
	stale := core.NewMemory(uuid.New(), "stale", "stale", core.MemoryTypeFact).
		WithImportance(0.2).
		WithAccessedAt(now.Add(-30 * 24 * time.Hour))
	boosted := core.NewMemory(uuid.New(), "boosted", "boosted", core.MemoryTypeFact).
		WithImportance(0.5).
		WithAccessCount(50).
		WithAccessedAt(now.Add(-25 * time.Hour))

	for _, m := range []core.Memory{fresh, stale, boosted} {
		require.NoError(t, store.Save(ctx, m))
	}

	below, err := store.ApplyDecay(ctx, 0.1)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{stale.ID}, below)

	got, err := store.Get(ctx, fresh.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.8, got.Importance, 1e-5)

	got, err = store.Get(ctx, stale.ID)
	require.NoError(t, err)
	require.NotNil(t, got, "decay never deletes")
	assert.Less(t, got.Importance, core.MinImportance)

	got, err = store.Get(ctx, boosted.ID)
	require.NoError(t, err)
	want := core.DecayImportance(0.5, 50, 1, 0.1)
	assert.InDelta(t, want, got.Importance, 1e-5)
}

func testCleanup(t *testing.T, store core.MemoryStore) {
	ctx := context.Background()
	user := uuid.New()

	weak := core.NewMemory(user, "weak", "weak", core.MemoryTypeFact).
		WithImportance(0.05).WithEmbedding([]float32{1, 0})
	strong := core.NewMemory(user, "strong", "strong", core.MemoryTypeFact).WithImportance(0.5)
	require.NoError(t, store.Save(ctx, weak))
	require.NoError(t, store.Save(ctx, strong))

	deleted, err := store.CleanupBelowThreshold(ctx, 0.1)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	got, err := store.Get(ctx, weak.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = store.Get(ctx, strong.ID)
	require.NoError(t, err)
	assert.NotNil(t, got)

	stats, err := store.Stats(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.WithEmbeddings)

	deleted, err = store.CleanupBelowThreshold(ctx, 0.1)
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)
}

func testFindMergeCandidates(t *testing.T, store core.MemoryStore) {
	ctx := context.Background()
	user := uuid.New()

	existing := core.NewMemory(user, "existing", "existing", core.MemoryTypeFact).WithEmbedding([]float32{1, 0})
	require.NoError(t, store.Save(ctx, existing))

	probe := core.NewMemory(user, "probe", "probe", core.MemoryTypeFact)
	candidates, err := store.FindMergeCandidates(ctx, probe, 0.5)
	require.NoError(t, err)
	assert.Empty(t, candidates)

	candidates, err = store.FindMergeCandidates(ctx, probe.WithEmbedding([]float32{0.99, 0.01}), 0.9)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, existing.ID, candidates[0].Memory.ID)
}

func testStats(t *testing.T, store core.MemoryStore) {
	ctx := context.Background()
	user := uuid.New()

	empty, err := store.Stats(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.TotalCount)
	assert.Equal(t, float32(0), empty.AvgImportance)
	assert.Len(t, empty.ByType, len(core.AllMemoryTypes()))

	a := core.NewMemory(user, "a", "a", core.MemoryTypeFact).WithImportance(0.8).WithEmbedding([]float32{1, 0})
	b := core.NewMemory(user, "b", "b", core.MemoryTypePreference).WithImportance(0.6).WithEmbedding([]float32{0, 1})
	require.NoError(t, store.Save(ctx, a))
	require.NoError(t, store.Save(ctx, b))

	stats, err := store.Stats(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalCount)
	assert.Equal(t, 2, stats.WithEmbeddings)
	assert.InDelta(t, 0.7, stats.AvgImportance, 1e-4)
	assert.Equal(t, 1, stats.CountOf(core.MemoryTypeFact))
	assert.Equal(t, 1, stats.CountOf(core.MemoryTypePreference))
	assert.Equal(t, 0, stats.CountOf(core.MemoryTypeCorrection))
	assert.Len(t, stats.ByType, len(core.AllMemoryTypes()))
}

func testRecordAccess(t *testing.T, store core.MemoryStore) {
	ctx := context.Background()
	m := core.NewMemory(uuid.New(), "a", "a", core.MemoryTypeFact).
		WithAccessedAt(time.Now().Add(-48 * time.Hour))
	require.NoError(t, store.Save(ctx, m))

	require.NoError(t, store.RecordAccess(ctx, m.ID))
	require.NoError(t, store.RecordAccess(ctx, m.ID))

	got, err := store.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), got.AccessCount)
	assert.WithinDuration(t, time.Now(), got.AccessedAt, time.Minute)
}

func contents(memories []core.Memory) []string {
	out := make([]string, len(memories))
	for i, m := range memories {
		out[i] = m.Content
	}
	return out
}
