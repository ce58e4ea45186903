package pipeline

import (
	"fmt"
	"net/http"
)

// Kind classifies a pipeline failure so the transport layer can pick a
// status code without matching on message text.
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindInvalidChoice Kind = "invalid_choice"
	KindTranscription Kind = "transcription"
	KindGeneration    Kind = "generation"
	KindUnexpected    Kind = "unexpected"
)

// Error is the failure type every pipeline run returns. Message is the
// user-facing text; Err keeps the underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus returns the response status for the error kind. An
// unsupported engine choice is a client error and a failed generation
// call is an upstream failure; everything else is internal.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindInvalidChoice:
		return http.StatusBadRequest
	case KindGeneration:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

const (
	msgMissingAPIKey   = "OpenAI API key is not configured. Please set the 'OPENAI_API_KEY' environment variable."
	msgEmptyTranscript = "Transcription failed: No text generated."
)

func errConfiguration() *Error {
	return &Error{Kind: KindConfiguration, Message: msgMissingAPIKey}
}

func errInvalidChoice(choice string) *Error {
	return &Error{
		Kind:    KindInvalidChoice,
		Message: fmt.Sprintf("unsupported model_choice: %q", choice),
	}
}

func errEmptyTranscript() *Error {
	return &Error{Kind: KindTranscription, Message: msgEmptyTranscript}
}

func errRemoteGeneration(err error) *Error {
	return &Error{
		Kind:    KindGeneration,
		Message: fmt.Sprintf("Error with OpenAI API: %s", err),
		Err:     err,
	}
}

func errLocalGeneration(err error) *Error {
	return &Error{
		Kind:    KindGeneration,
		Message: fmt.Sprintf("Error with local model: %s", err),
		Err:     err,
	}
}

func errUnexpected(err error) *Error {
	return &Error{
		Kind:    KindUnexpected,
		Message: fmt.Sprintf("An unexpected error occurred: %s", err),
		Err:     err,
	}
}
