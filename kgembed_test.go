package kgembed_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/kgembed"
	"github.com/soundprediction/kgembed/pkg/checkpoint"
	"github.com/soundprediction/kgembed/pkg/corpus"
	"github.com/soundprediction/kgembed/pkg/transe"
	"github.com/soundprediction/kgembed/pkg/types"
	"github.com/soundprediction/kgembed/pkg/utils"
)

func medicalTriplets() []types.Triplet {
	return []types.Triplet{
		{Head: "1", Relation: "TREATS", Tail: "10"},
		{Head: "2", Relation: "TREATS", Tail: "11"},
		{Head: "3", Relation: "TREATS", Tail: "10"},
		{Head: "10", Relation: "SYMPTOM_OF", Tail: "20"},
		{Head: "11", Relation: "SYMPTOM_OF", Tail: "21"},
		{Head: "1", Relation: "INTERACTS", Tail: "2"},
	}
}

func medicalNames() map[types.EntityID]string {
	return map[types.EntityID]string{
		"1": "aspirin", "2": "ibuprofen", "3": "paracetamol",
		"10": "headache", "11": "fever",
	}
}

// plainSource hides EntityName from the wrapped source.
type plainSource struct {
	corpus.Source
}

func testConfig() *kgembed.Config {
	return &kgembed.Config{
		Hyperparameters: types.Hyperparameters{EmbeddingDim: 8, Margin: 1, LearningRate: 0.05},
		Epochs:          3,
		BatchSize:       4,
		Seed:            7,
	}
}

func newClient(t *testing.T, src corpus.Source, cfg *kgembed.Config) (*kgembed.Client, *checkpoint.Manager) {
	t.Helper()
	store, err := checkpoint.OpenBadgerStore("")
	require.NoError(t, err)
	mgr := checkpoint.NewManager(store, nil)

	client, err := kgembed.NewClient(src, mgr, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, mgr
}

func TestClientTrainAndPredict(t *testing.T) {
	ctx := context.Background()
	src := corpus.NewMemorySource(medicalTriplets())

	var epochs []transe.EpochResult
	cfg := testConfig()
	cfg.Observers = []transe.Observer{transe.ObserverFuncs{
		OnEpoch: func(_ context.Context, r transe.EpochResult) { epochs = append(epochs, r) },
	}}
	client, mgr := newClient(t, src, cfg)

	require.NoError(t, client.Initialize(ctx))
	results, err := client.Train(ctx)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, results, epochs)
	assert.Equal(t, transe.StateCompleted, client.Trainer().State())

	infos, err := mgr.List(ctx)
	require.NoError(t, err)
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name
		assert.Equal(t, client.Trainer().RunID(), info.RunID)
	}
	assert.ElementsMatch(t, []string{"epoch_1", "epoch_2", "epoch_3", "final"}, names)

	preds, err := client.PredictTail(ctx, "1", "TREATS", 3)
	require.NoError(t, err)
	require.Len(t, preds, 3)
	for i := 1; i < len(preds); i++ {
		assert.LessOrEqual(t, preds[i-1].Distance, preds[i].Distance)
	}

	// A fresh client restored from "final" predicts the same thing.
	restored, err := kgembed.NewClient(corpus.NewMemorySource(nil), mgr, testConfig(), nil)
	require.NoError(t, err)
	require.NoError(t, restored.Load(ctx, checkpoint.FinalName))
	again, err := restored.PredictTail(ctx, "1", "TREATS", 3)
	require.NoError(t, err)
	assert.Equal(t, preds, again)
}

func TestClientTrainCancelledInLastBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := testConfig()
	cfg.Epochs = 1
	cfg.Observers = []transe.Observer{transe.ObserverFuncs{
		OnBatch: func(_ context.Context, r transe.BatchResult) {
			if r.Batch == 1 {
				cancel()
			}
		},
	}}
	client, mgr := newClient(t, corpus.NewMemorySource(medicalTriplets()), cfg)
	require.NoError(t, client.Initialize(context.Background()))

	results, err := client.Train(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)

	infos, err := mgr.List(context.Background())
	require.NoError(t, err)
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name
	}
	assert.ElementsMatch(t, []string{"epoch_1", checkpoint.FinalName}, names)
}

func TestClientTrainBeforeInitialize(t *testing.T) {
	client, _ := newClient(t, corpus.NewMemorySource(medicalTriplets()), testConfig())

	_, err := client.Train(context.Background())
	assert.ErrorIs(t, err, transe.ErrUninitializedModel)
}

func TestClientInitializeFromTriplets(t *testing.T) {
	ctx := context.Background()

	t.Run("ids from triplets", func(t *testing.T) {
		client, _ := newClient(t, corpus.NewMemorySource(medicalTriplets()), testConfig())
		require.NoError(t, client.InitializeFromTriplets(ctx, medicalTriplets()))
		assert.Equal(t, 7, client.Store().NumEntities())
		assert.Equal(t, 3, client.Store().NumRelations())

		_, err := client.Train(ctx)
		assert.NoError(t, err)
	})

	t.Run("corpus references an id outside the list", func(t *testing.T) {
		client, _ := newClient(t, corpus.NewMemorySource(medicalTriplets()), testConfig())
		require.NoError(t, client.InitializeFromTriplets(ctx, medicalTriplets()[:2]))

		_, err := client.Train(ctx)
		assert.ErrorIs(t, err, transe.ErrUninitializedModel)
		assert.Equal(t, transe.StateInitialized, client.Trainer().State())
	})

	t.Run("rejects invalid triplets", func(t *testing.T) {
		client, _ := newClient(t, corpus.NewMemorySource(nil), testConfig())
		err := client.InitializeFromTriplets(ctx, []types.Triplet{{Head: "1", Relation: "R"}})
		assert.ErrorIs(t, err, types.ErrInvalidTriplet)
	})
}

func TestClientPredictTailNamed(t *testing.T) {
	ctx := context.Background()
	src := corpus.NewMemorySource(medicalTriplets()).WithNames(medicalNames())
	client, _ := newClient(t, src, testConfig())
	require.NoError(t, client.Initialize(ctx))

	preds, err := client.PredictTailNamed(ctx, "1", "TREATS", 10)
	require.NoError(t, err)
	assert.Len(t, preds, 5, "unnamed entities are dropped")
	for _, p := range preds {
		assert.Equal(t, medicalNames()[p.EntityID], p.Name)
	}

	unnamed, _ := newClient(t, plainSource{corpus.NewMemorySource(medicalTriplets())}, testConfig())
	require.NoError(t, unnamed.Initialize(ctx))
	_, err = unnamed.PredictTailNamed(ctx, "1", "TREATS", 10)
	assert.ErrorIs(t, err, corpus.ErrNoEntityNames)

	wrapped := corpus.NewResilient(plainSource{corpus.NewMemorySource(medicalTriplets())},
		corpus.DefaultRetryConfig(), corpus.DefaultBreakerConfig(), nil)
	resilient, _ := newClient(t, wrapped, testConfig())
	require.NoError(t, resilient.Initialize(ctx))
	_, err = resilient.PredictTailNamed(ctx, "1", "TREATS", 10)
	assert.ErrorIs(t, err, corpus.ErrNoEntityNames)
}

func TestClientColdStartAndValidate(t *testing.T) {
	ctx := context.Background()
	client, _ := newClient(t, corpus.NewMemorySource(medicalTriplets()), testConfig())

	preds, err := client.PredictTail(ctx, "1", "TREATS", 5)
	require.NoError(t, err)
	assert.Empty(t, preds)

	require.NoError(t, client.Initialize(ctx))
	results, err := client.Validate(ctx, []types.Triplet{
		{Head: "1", Relation: "TREATS", Tail: "10"},
		{Head: "1", Relation: "UNKNOWN", Tail: "10"},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.False(t, results[0].Missing)
	assert.Greater(t, results[0].Distance, 0.0)
	assert.True(t, results[1].Missing)
}

func TestClientCheckpointErrors(t *testing.T) {
	ctx := context.Background()
	client, _ := newClient(t, corpus.NewMemorySource(medicalTriplets()), testConfig())

	assert.ErrorIs(t, client.Load(ctx, "missing"), checkpoint.ErrCheckpointNotFound)
	_, err := client.LoadLatest(ctx)
	assert.ErrorIs(t, err, checkpoint.ErrCheckpointNotFound)
	assert.ErrorIs(t, client.SaveEmbeddings(ctx, "early"), transe.ErrUninitializedModel)

	require.NoError(t, client.Initialize(ctx))
	require.NoError(t, client.SaveEmbeddings(ctx, "snapshot"))
	name, err := client.LoadLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "snapshot", name)

	noStore, err := kgembed.NewClient(corpus.NewMemorySource(nil), nil, testConfig(), nil)
	require.NoError(t, err)
	assert.Error(t, noStore.Load(ctx, "final"))
}

func TestClientExport(t *testing.T) {
	ctx := context.Background()
	src := corpus.NewMemorySource(medicalTriplets()).WithNames(medicalNames())
	client, _ := newClient(t, src, testConfig())

	dir := filepath.Join(t.TempDir(), "export")
	_, err := client.Export(ctx, dir, "embeddings")
	assert.ErrorIs(t, err, transe.ErrUninitializedModel)

	require.NoError(t, client.Initialize(ctx))
	path, err := client.Export(ctx, dir, "embeddings")
	require.NoError(t, err)

	rows, err := utils.ReadEmbeddingRows(path)
	require.NoError(t, err)
	require.Len(t, rows, 10)
	assert.Equal(t, utils.KindEntity, rows[0].Kind)
	assert.Equal(t, "1", rows[0].ID)
	assert.Equal(t, "aspirin", rows[0].Name)
	assert.Len(t, rows[0].Vector, 8)
	assert.Equal(t, utils.KindRelation, rows[9].Kind)
}

func TestClientDeterministic(t *testing.T) {
	ctx := context.Background()
	run := func() *types.ModelState {
		client, _ := newClient(t, corpus.NewMemorySource(medicalTriplets()), testConfig())
		require.NoError(t, client.Initialize(ctx))
		_, err := client.Train(ctx)
		require.NoError(t, err)
		return client.Trainer().Snapshot()
	}
	assert.Equal(t, run(), run())
}
