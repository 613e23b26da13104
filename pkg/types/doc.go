// Package types defines the core data types shared by the kgembed packages.
//
// This package contains:
//   - EntityID / RelationID: opaque identifiers from the knowledge graph
//   - Vector: a fixed-length float32 embedding
//   - Triplet: a (head, relation, tail) fact
//   - Hyperparameters and ModelState: what a checkpoint holds
//   - Prediction and ValidationResult: inference outputs
//
// # Validation
//
// Triplet and Hyperparameters provide Validate() for input checking:
//
//	t, err := types.ParseTriplet("1,CAUSES,2")
//	if err != nil {
//	    // Handle malformed input
//	}
package types
