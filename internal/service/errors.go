package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

type ErrResourceNotFound struct {
	error
}

func NewErrResourceNotFound(id uuid.UUID, resourceType string) *ErrResourceNotFound {
	return &ErrResourceNotFound{fmt.Errorf("%s %s not found", resourceType, id)}
}

func NewErrUploadNotFound(id uuid.UUID) *ErrResourceNotFound {
	return NewErrResourceNotFound(id, "record")
}

func NewErrAnalysisNotFound(id uuid.UUID) *ErrResourceNotFound {
	return NewErrResourceNotFound(id, "analysis")
}

func NewErrArtifactNotFound(url string) *ErrResourceNotFound {
	return &ErrResourceNotFound{fmt.Errorf("no record found for %s", url)}
}

type ErrInvalidInput struct {
	error
}

func NewErrInvalidInput(message string) *ErrInvalidInput {
	return &ErrInvalidInput{fmt.Errorf("invalid input: %s", message)}
}

type ErrRecordNotReady struct {
	error
}

func NewErrRecordNotReady() *ErrRecordNotReady {
	return &ErrRecordNotReady{errors.New("selected data not found or not processed")}
}

type ErrFileCorrupted struct {
	error
}

func NewErrFileCorrupted(message string) *ErrFileCorrupted {
	return &ErrFileCorrupted{fmt.Errorf("bad request: %s", message)}
}

func NewErrWorkbookCorrupted(message string) *ErrFileCorrupted {
	return NewErrFileCorrupted(fmt.Sprintf("the provided ERG workbook is corrupted: %s", message))
}

type ErrUnsupportedFile struct {
	error
}

func NewErrUnsupportedFile(fileName, reason string) *ErrUnsupportedFile {
	return &ErrUnsupportedFile{fmt.Errorf("file %q is not supported: %s", fileName, reason)}
}

type ErrFileTooLarge struct {
	error
}

func NewErrFileTooLarge(fileName string, limit int64) *ErrFileTooLarge {
	return &ErrFileTooLarge{fmt.Errorf("file %q exceeds the %dMB limit", fileName, limit>>20)}
}

type ErrConsentRequired struct {
	error
}

func NewErrConsentRequired(missing []string) *ErrConsentRequired {
	return &ErrConsentRequired{fmt.Errorf("required consent not given: %v", missing)}
}

// ErrProcessingConflict is returned when a record already reached a terminal state.
type ErrProcessingConflict struct {
	error
}

func NewErrProcessingConflict(id uuid.UUID) *ErrProcessingConflict {
	return &ErrProcessingConflict{fmt.Errorf("record %s has already been processed", id)}
}

type ErrServiceUnavailable struct {
	error
}

func NewErrServiceUnavailable(err error) *ErrServiceUnavailable {
	return &ErrServiceUnavailable{fmt.Errorf("processing is temporarily unavailable: %w", err)}
}
