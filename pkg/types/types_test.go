package types

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestTripletValidation(t *testing.T) {
	tests := []struct {
		name    string
		triplet Triplet
		wantErr error
	}{
		{
			name:    "valid triplet",
			triplet: Triplet{Head: "1", Relation: "CAUSES", Tail: "2"},
			wantErr: nil,
		},
		{
			name:    "missing head",
			triplet: Triplet{Relation: "CAUSES", Tail: "2"},
			wantErr: ErrInvalidTriplet,
		},
		{
			name:    "missing relation",
			triplet: Triplet{Head: "1", Tail: "2"},
			wantErr: ErrInvalidTriplet,
		},
		{
			name:    "missing tail",
			triplet: Triplet{Head: "1", Relation: "CAUSES"},
			wantErr: ErrInvalidTriplet,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.triplet.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseTriplet(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Triplet
		wantErr bool
	}{
		{name: "plain", input: "1,CAUSES,2", want: Triplet{Head: "1", Relation: "CAUSES", Tail: "2"}},
		{name: "spaces trimmed", input: " a , TREATS , b ", want: Triplet{Head: "a", Relation: "TREATS", Tail: "b"}},
		{name: "unicode relation", input: "7,病害,9", want: Triplet{Head: "7", Relation: "病害", Tail: "9"}},
		{name: "too few parts", input: "1,CAUSES", wantErr: true},
		{name: "too many parts", input: "1,CAUSES,2,3", wantErr: true},
		{name: "empty field", input: "1,,2", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTriplet(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTriplet) {
					t.Fatalf("ParseTriplet(%q) error = %v, want ErrInvalidTriplet", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTriplet(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseTriplet(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestHyperparametersValidation(t *testing.T) {
	tests := []struct {
		name    string
		h       Hyperparameters
		wantErr bool
	}{
		{name: "defaults", h: DefaultHyperparameters()},
		{name: "zero margin allowed", h: Hyperparameters{EmbeddingDim: 2, Margin: 0, LearningRate: 0.1}},
		{name: "zero dimension", h: Hyperparameters{EmbeddingDim: 0, Margin: 1, LearningRate: 0.1}, wantErr: true},
		{name: "negative margin", h: Hyperparameters{EmbeddingDim: 2, Margin: -1, LearningRate: 0.1}, wantErr: true},
		{name: "zero learning rate", h: Hyperparameters{EmbeddingDim: 2, Margin: 1, LearningRate: 0}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.h.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if err := (Hyperparameters{}).Validate(); !errors.Is(err, ErrInvalidDimension) {
		t.Errorf("expected ErrInvalidDimension, got %v", err)
	}
}

func TestDefaultHyperparameters(t *testing.T) {
	h := DefaultHyperparameters()
	if h.EmbeddingDim != 100 || h.Margin != 1.0 || h.LearningRate != 0.01 {
		t.Errorf("unexpected defaults: %+v", h)
	}
}

func TestVectorClone(t *testing.T) {
	v := Vector{1, 2, 3}
	c := v.Clone()
	c[0] = 9
	if v[0] != 1 {
		t.Error("Clone shares memory with the original")
	}
	if Vector(nil).Clone() != nil {
		t.Error("Clone of nil should be nil")
	}
}

func TestModelStateJSON(t *testing.T) {
	state := ModelState{
		Entities:      map[EntityID]Vector{"1": {0.5, -0.5}},
		Relations:     map[RelationID]Vector{"CAUSES": {1, 0}},
		Config:        Hyperparameters{EmbeddingDim: 2, Margin: 1, LearningRate: 0.01},
		EntityOrder:   []EntityID{"1"},
		RelationOrder: []RelationID{"CAUSES"},
	}

	data, err := json.Marshal(state)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	for _, key := range []string{"entities", "relations", "config", "entity_order", "relation_order"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("expected key %q in %s", key, data)
		}
	}

	var cfg map[string]any
	if err := json.Unmarshal(raw["config"], &cfg); err != nil {
		t.Fatalf("Unmarshal config failed: %v", err)
	}
	if cfg["embedding_dim"] != float64(2) {
		t.Errorf("embedding_dim = %v", cfg["embedding_dim"])
	}
}
