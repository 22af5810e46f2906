// Package assist declares the contracts between Hearth Core and the
// voice-assistant collaborators that live outside this repository.
//
// The assistant front end owns microphone analysis, speech handling, and
// model-facing tool schemas. Hearth only consumes two of its signals, so
// the surface here is deliberately narrow: an opaque input quality score
// and a power-tier label for a piece of free text. Implementations are
// injected by the embedding application; this package ships none.
package assist
