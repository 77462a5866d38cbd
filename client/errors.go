package client

import "errors"

var (
	// ErrSchemaNotFound is returned when the node has no database with the dbid.
	ErrSchemaNotFound = errors.New("schema not found")

	// ErrActionNotFound is returned when a schema has no action or procedure with the name.
	ErrActionNotFound = errors.New("action not found")

	// ErrAccountLookupFailed is returned when the sender's nonce can't be fetched.
	ErrAccountLookupFailed = errors.New("account lookup failed")

	// ErrCostEstimationFailed is returned when the node can't price a transaction.
	ErrCostEstimationFailed = errors.New("cost estimation failed")

	// ErrNoSigner is returned by operations that need a signer when none is configured.
	ErrNoSigner = errors.New("no signer configured")

	// ErrInvalidInput is returned when action inputs do not match the action's parameters.
	ErrInvalidInput = errors.New("invalid action input")
)
