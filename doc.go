// Package kgembed learns TransE embeddings for a knowledge graph and uses
// them to predict missing facts.
//
// A knowledge graph is read as (head, relation, tail) triplets from a
// corpus.Source. Every entity and relation gets a vector, and training moves
// them so that head + relation lands close to tail for observed facts and
// farther away for corrupted ones. The trained vectors rank candidate tails
// for a new (head, relation) query.
//
// # Basic Usage
//
//	source := corpus.NewMemorySource([]types.Triplet{
//		{Head: "aspirin", Relation: "TREATS", Tail: "headache"},
//		{Head: "ibuprofen", Relation: "TREATS", Tail: "fever"},
//	})
//
//	store, err := checkpoint.NewFileStore("./checkpoints")
//	if err != nil {
//		log.Fatal(err)
//	}
//	client, err := kgembed.NewClient(source, checkpoint.NewManager(store, nil), &kgembed.Config{
//		Hyperparameters: types.DefaultHyperparameters(),
//		Epochs:          10,
//	}, nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	if err := client.Initialize(ctx); err != nil {
//		log.Fatal(err)
//	}
//	if _, err := client.Train(ctx); err != nil {
//		log.Fatal(err)
//	}
//
// # Prediction
//
// PredictTail ranks every known entity by its distance from head + relation:
//
//	preds, err := client.PredictTail(ctx, "aspirin", "TREATS", 5)
//
// Unknown heads or relations yield an empty result rather than an error.
//
// # Checkpoints
//
// A checkpoint named epoch_<n> is written after each epoch and "final" after
// training completes. Load restores vectors and hyperparameters from any of
// them:
//
//	if err := client.Load(ctx, "final"); err != nil {
//		log.Fatal(err)
//	}
package kgembed
