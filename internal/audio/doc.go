// Package audio converts synthesized samples to and from the WAV container.
// Output is always 16-bit signed PCM; input accepts 16-bit PCM and 32-bit
// IEEE float.
package audio
