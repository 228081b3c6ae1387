package errors

import "fmt"

var (
	ErrInsufficientData    = fmt.Errorf("insufficient training data")
	ErrModelNotBuilt       = fmt.Errorf("model has not been built")
	ErrDimensionMismatch   = fmt.Errorf("dimension mismatch")
	ErrResourceExhausted   = fmt.Errorf("numeric backend out of memory, reduce dataset size or architecture")
	ErrPersistenceFailure  = fmt.Errorf("model could not be persisted")
	ErrVocabularyMismatch  = fmt.Errorf("vocabulary does not match the model")
	ErrInvalidArchitecture = fmt.Errorf("invalid architecture")
	ErrInvalidSample       = fmt.Errorf("invalid training sample")
	ErrTrainingInProgress  = fmt.Errorf("a training pass is already running")
	ErrTrainingCancelled   = fmt.Errorf("training cancelled")
	ErrModelNotFound       = fmt.Errorf("model not found")
	ErrQuotaExceeded       = fmt.Errorf("storage quota exceeded")
	ErrCorruptModel        = fmt.Errorf("corrupt model blob")
	ErrVocabularyNotBuilt  = fmt.Errorf("vocabulary has not been built")
	ErrNumericInstability  = fmt.Errorf("training produced non-finite values")
	ErrInvalidVocabulary   = fmt.Errorf("invalid vocabulary configuration")
)
