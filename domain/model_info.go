package domain

import "github.com/google/uuid"

// ModelInfo is the read-only descriptor of the current model.
type ModelInfo struct {
	ID                uuid.UUID
	Version           int
	TotalParams       int
	Layers            int
	Architecture      string
	VocabSize         int
	VocabCapacity     int
	MaxSequenceLength int
	VocabularyHash    string
	Trained           bool
}
