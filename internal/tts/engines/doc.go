// Package engines contains the text-to-speech engines that render sentences
// into encoded audio. Each engine implements ttypes.TTSEngine.
package engines
