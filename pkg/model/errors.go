package model

import "github.com/m-mizutani/goerr/v2"

var (
	// ErrEmptySubmission is returned when a submission has neither text nor image
	ErrEmptySubmission = goerr.New("empty submission")

	// ErrSubmissionInFlight is returned when a session already has a running submission
	ErrSubmissionInFlight = goerr.New("submission already in flight")

	// ErrPersistence indicates a read or write to the history store failed
	ErrPersistence = goerr.New("persistence failure")

	// ErrUpstreamParse indicates an AI response was received but not in the expected shape
	ErrUpstreamParse = goerr.New("upstream response parse failure")

	// ErrSessionNotFound is returned when the requested session has no turns
	ErrSessionNotFound = goerr.New("session not found")
)
