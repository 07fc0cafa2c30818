package common

import (
	"context"
	"fmt"

	"resumeguard/internal/errors"
)

// LogDetailsFunc defines how to log the start of an operation.
type LogDetailsFunc func(filename string, size int, cfg CommandConfig)

// DocumentOperationFunc processes the bytes of one input document.
type DocumentOperationFunc[Output any] func(ctx context.Context, filename string, data []byte) (Output, error)

// RunDocumentCommand encapsulates the common logic for file-based CLI commands:
// read and validate the input, run the operation, format and write the result.
func RunDocumentCommand[Output any](
	ctx context.Context,
	logger *errors.Logger,
	cmdConfig CommandConfig,
	maxFileSize int64,
	filename string,
	operation DocumentOperationFunc[Output],
	logDetails LogDetailsFunc,
) error {
	fileProcessor := NewFileProcessor(logger, maxFileSize)
	outputHandler := NewOutputHandler(logger)

	// Validate and read the input document
	contents, err := fileProcessor.ValidateAndReadFiles(filename)
	if err != nil {
		return err
	}

	if logDetails != nil {
		logDetails(filename, len(contents[0]), cmdConfig)
	}

	// Execute the command-specific operation
	result, err := operation(ctx, filename, contents[0])
	if err != nil {
		return fmt.Errorf("failed to process %s: %w", filename, err)
	}

	// Format and write the result
	return outputHandler.HandleOutput(result, cmdConfig)
}
