package catalog

import (
	"errors"
	"fmt"
	"slices"
	"unicode/utf8"
)

// Sample rate of every model in the catalog, in Hz.
const SampleRate = 24000

// DefaultVoice is used when a request does not name a voice.
const DefaultVoice = "Jasper"

// DefaultMaxTextLength is the default cap on input text, in characters.
const DefaultMaxTextLength = 5000

var models = []string{
	"KittenML/kitten-tts-mini-0.8",
	"KittenML/kitten-tts-micro-0.8",
	"KittenML/kitten-tts-nano-0.8",
	"KittenML/kitten-tts-nano-0.8-int8",
}

var voices = []string{"Bella", "Jasper", "Luna", "Bruno", "Rosie", "Hugo", "Kiki", "Leo"}

// ErrInvalidArgument is wrapped by every validation failure.
var ErrInvalidArgument = errors.New("invalid argument")

// InvalidArgumentError describes a request value that failed validation.
// Detail is safe to show to clients.
type InvalidArgumentError struct {
	Field  string
	Value  string
	Detail string
}

func (e *InvalidArgumentError) Error() string {
	return e.Detail
}

// Unwrap lets errors.Is match ErrInvalidArgument.
func (e *InvalidArgumentError) Unwrap() error {
	return ErrInvalidArgument
}

// Models returns the known model identifiers in their fixed order.
// The returned slice is a copy.
func Models() []string {
	return slices.Clone(models)
}

// Voices returns the known voice identifiers in their fixed order.
// The returned slice is a copy.
func Voices() []string {
	return slices.Clone(voices)
}

// DefaultModel returns the first model in the catalog.
func DefaultModel() string {
	return models[0]
}

// IsModel reports whether id is a known model.
func IsModel(id string) bool {
	return slices.Contains(models, id)
}

// IsVoice reports whether name is a known voice.
func IsVoice(name string) bool {
	return slices.Contains(voices, name)
}

// Request is a synthesis request after defaults have been applied.
type Request struct {
	Text  string
	Voice string
	Model string
}

// WithDefaults fills in the default voice and model for empty fields.
func (r Request) WithDefaults() Request {
	if r.Voice == "" {
		r.Voice = DefaultVoice
	}
	if r.Model == "" {
		r.Model = DefaultModel()
	}
	return r
}

// Validate checks the request against the allow-lists. The model is checked
// before the voice. maxTextLength caps the text in characters; zero or a
// negative value disables the cap.
func (r Request) Validate(maxTextLength int) error {
	if r.Text == "" {
		return &InvalidArgumentError{Field: "text", Detail: "Missing 'text' parameter"}
	}
	if !IsModel(r.Model) {
		return &InvalidArgumentError{
			Field:  "model",
			Value:  r.Model,
			Detail: fmt.Sprintf("Unknown model: %s", r.Model),
		}
	}
	if !IsVoice(r.Voice) {
		return &InvalidArgumentError{
			Field:  "voice",
			Value:  r.Voice,
			Detail: fmt.Sprintf("Unknown voice: %s", r.Voice),
		}
	}
	if maxTextLength > 0 {
		if n := utf8.RuneCountInString(r.Text); n > maxTextLength {
			return &InvalidArgumentError{
				Field:  "text",
				Detail: fmt.Sprintf("Text too long: %d characters (max %d)", n, maxTextLength),
			}
		}
	}
	return nil
}
