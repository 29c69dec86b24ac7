package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a quiz session has not been started or has expired.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrScenarioNotFound indicates the scenario content could not be loaded.
	ErrScenarioNotFound = errors.New("scenario not found")
	// ErrScenarioEmpty is returned when a scenario has no questions to play.
	ErrScenarioEmpty = errors.New("scenario has no questions")
	// ErrTrackNotFound indicates an unknown track slug.
	ErrTrackNotFound = errors.New("track not found")
	// ErrOptionNotFound indicates a selected option ID is not part of the current question.
	ErrOptionNotFound = errors.New("option not found")
	// ErrUnauthenticated is returned when an operation needs a signed-in identity.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrInvalidToken indicates a bearer token that failed verification.
	ErrInvalidToken = errors.New("invalid token")
)
