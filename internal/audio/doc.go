// Package audio wraps the ffmpeg toolchain used to measure, join and
// time-stretch synthesized speech, and manages the scratch workspace that
// holds per-sentence clips during a conversion.
package audio
