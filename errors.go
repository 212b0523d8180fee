package docmap

import "github.com/autom8ter/docmap/errors"

var (
	// ErrInvalidEstimatedCountCriteria is returned by EstimatedCount when the criteria has a
	// selector. Estimated counts are collection-wide.
	ErrInvalidEstimatedCountCriteria = errors.New(errors.Validation, "estimated count requires a criteria without a selector")
	// ErrDocumentNotFound is returned by the *OrErr finders when no document matched
	ErrDocumentNotFound = errors.New(errors.NotFound, "document not found")
)
