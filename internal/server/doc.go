// Package server exposes the HTTP API: model and voice listings and speech
// synthesis returned as a WAV attachment.
package server
