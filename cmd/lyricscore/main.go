package main

import (
	"errors"
	"fmt"
	apperrors "lyrics-lab/errors"
	"os"
)

// Exit codes to provide meaningful status to the calling shell.
const (
	exitOK        = 0
	exitRuntime   = 1
	exitConfig    = 2
	exitData      = 3
	exitCancelled = 130
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "lyricscore terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run executes the command tree and maps failures to exit codes, so that every
// deferred cleanup (badger, tensors) runs before the process exits.
func run() (int, error) {
	err := newRootCmd().Execute()
	switch {
	case err == nil:
		return exitOK, nil
	case errors.Is(err, errConfig), errors.Is(err, apperrors.ErrInvalidVocabulary):
		return exitConfig, err
	case errors.Is(err, apperrors.ErrTrainingCancelled):
		return exitCancelled, err
	case errors.Is(err, apperrors.ErrInsufficientData),
		errors.Is(err, apperrors.ErrInvalidSample),
		errors.Is(err, errDataFile):
		return exitData, err
	default:
		return exitRuntime, err
	}
}
