// Package ner defines the annotation data model shared by the corpus
// pipeline: the closed entity taxonomy, entities, word senses, and the
// training label conventions.
//
// Tables in this package are immutable. Anything configurable (lexicons,
// thresholds) is passed in by the caller.
package ner
