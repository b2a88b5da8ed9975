package catalog

import (
	"errors"
	"strings"
	"testing"
)

func TestModels_FixedOrder(t *testing.T) {
	want := []string{
		"KittenML/kitten-tts-mini-0.8",
		"KittenML/kitten-tts-micro-0.8",
		"KittenML/kitten-tts-nano-0.8",
		"KittenML/kitten-tts-nano-0.8-int8",
	}
	got := Models()
	if len(got) != len(want) {
		t.Fatalf("got %d models, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("model %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestVoices_FixedOrder(t *testing.T) {
	want := "Bella,Jasper,Luna,Bruno,Rosie,Hugo,Kiki,Leo"
	if got := strings.Join(Voices(), ","); got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestModels_ReturnsCopy(t *testing.T) {
	m := Models()
	m[0] = "tampered"
	if Models()[0] == "tampered" {
		t.Error("Models() exposed the package slice")
	}
}

func TestRequest_WithDefaults(t *testing.T) {
	r := Request{Text: "Hello"}.WithDefaults()
	if r.Voice != "Jasper" {
		t.Errorf("default voice: got %q", r.Voice)
	}
	if r.Model != "KittenML/kitten-tts-mini-0.8" {
		t.Errorf("default model: got %q", r.Model)
	}

	r = Request{Text: "Hello", Voice: "Luna", Model: "KittenML/kitten-tts-nano-0.8"}.WithDefaults()
	if r.Voice != "Luna" || r.Model != "KittenML/kitten-tts-nano-0.8" {
		t.Errorf("explicit values overwritten: %+v", r)
	}
}

func TestRequest_Validate(t *testing.T) {
	tests := []struct {
		name       string
		req        Request
		max        int
		wantField  string
		wantDetail string
	}{
		{
			name: "valid",
			req:  Request{Text: "Hello", Voice: "Bella", Model: "KittenML/kitten-tts-mini-0.8"},
			max:  DefaultMaxTextLength,
		},
		{
			name:       "missing text",
			req:        Request{Voice: "Bella", Model: "KittenML/kitten-tts-mini-0.8"},
			wantField:  "text",
			wantDetail: "Missing 'text' parameter",
		},
		{
			name:       "unknown model",
			req:        Request{Text: "Hello", Voice: "Bella", Model: "nope"},
			wantField:  "model",
			wantDetail: "Unknown model: nope",
		},
		{
			name:       "unknown voice",
			req:        Request{Text: "Hello", Voice: "Nobody", Model: "KittenML/kitten-tts-mini-0.8"},
			wantField:  "voice",
			wantDetail: "Unknown voice: Nobody",
		},
		{
			name:       "model checked before voice",
			req:        Request{Text: "Hello", Voice: "Nobody", Model: "nope"},
			wantField:  "model",
			wantDetail: "Unknown model: nope",
		},
		{
			name:       "text too long",
			req:        Request{Text: "héllo", Voice: "Bella", Model: "KittenML/kitten-tts-mini-0.8"},
			max:        4,
			wantField:  "text",
			wantDetail: "Text too long: 5 characters (max 4)",
		},
		{
			name: "cap disabled",
			req:  Request{Text: strings.Repeat("a", 10000), Voice: "Bella", Model: "KittenML/kitten-tts-mini-0.8"},
			max:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate(tt.max)
			if tt.wantDetail == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var argErr *InvalidArgumentError
			if !errors.As(err, &argErr) {
				t.Fatalf("expected InvalidArgumentError, got %v", err)
			}
			if !errors.Is(err, ErrInvalidArgument) {
				t.Error("error does not wrap ErrInvalidArgument")
			}
			if argErr.Field != tt.wantField {
				t.Errorf("field: got %q, want %q", argErr.Field, tt.wantField)
			}
			if argErr.Detail != tt.wantDetail {
				t.Errorf("detail: got %q, want %q", argErr.Detail, tt.wantDetail)
			}
		})
	}
}
