// Package hub manages the local copy of model weights: where each model
// lives on disk and how to fetch it from the Hugging Face hub ahead of time.
package hub
