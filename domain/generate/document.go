// Package generate provides value types and pure functions for the
// generated-document path.
package generate

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Document is a generated piece of content persisted once its stream has
// completed (immutable value type).
type Document struct {
	ID          string
	CustomerRef string
	Topic       string
	Title       string
	Content     string
	CreatedAt   time.Time
}

// functionCall mirrors the function-call envelope the generator emits as
// the accumulated stream payload.
type functionCall struct {
	FunctionCall struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function_call"`
}

// documentArgs is the JSON encoded inside the arguments field.
type documentArgs struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ErrMalformedCompletion is returned when the accumulated stream payload is
// not a well-formed function-call envelope.
var ErrMalformedCompletion = errors.New("malformed completion payload")

// ParseCompletion extracts the title and content from an accumulated stream
// payload. The payload is a function-call envelope whose arguments field is
// itself a JSON document. This is a PURE function.
func ParseCompletion(payload []byte) (title, content string, err error) {
	var fc functionCall
	if err := json.Unmarshal(payload, &fc); err != nil {
		return "", "", ErrMalformedCompletion
	}
	if strings.TrimSpace(fc.FunctionCall.Arguments) == "" {
		return "", "", ErrMalformedCompletion
	}

	var args documentArgs
	if err := json.Unmarshal([]byte(fc.FunctionCall.Arguments), &args); err != nil {
		return "", "", ErrMalformedCompletion
	}
	if args.Title == "" && args.Content == "" {
		return "", "", ErrMalformedCompletion
	}

	return args.Title, args.Content, nil
}
