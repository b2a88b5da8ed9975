// Package engines contains implementations of different TTS engines.
// Currently supports KittenTTS (offline, subprocess) and a mock engine that
// needs no model files. Each engine implements the Engine interface from the
// parent package.
package engines
