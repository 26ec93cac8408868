// Package caption builds time-coded caption tracks for narrated audio and
// renders them in the LRC lyric format.
//
// A track is either entirely estimated, derived from a duration heuristic,
// or entirely measured, derived from probed clip durations. The two are
// never mixed.
package caption
