package ner

import "strings"

const (
	// Outside is the label of tokens outside any entity.
	Outside = "O"

	// BeginPrefix marks the first token of an entity run.
	BeginPrefix = "B-"
)

// BeginLabel returns the label of the first token of an entity of type t.
func BeginLabel(t Type) string {
	return BeginPrefix + t.String()
}

// IsBeginning reports whether label opens an entity run.
func IsBeginning(label string) bool {
	return strings.HasPrefix(label, BeginPrefix)
}

// PlainLabel strips the begin marker: "B-PERSON" -> "PERSON".
func PlainLabel(label string) string {
	return strings.TrimPrefix(label, BeginPrefix)
}

// LabelType resolves the type behind a label. Outside and unknown labels
// report false.
func LabelType(label string) (Type, bool) {
	plain := PlainLabel(label)
	if plain == "" || plain == Outside {
		return Unknown, false
	}
	t, err := ParseType(plain)
	if err != nil {
		return Unknown, false
	}
	return t, true
}

// BIOLabels converts a sequence of plain per-token labels into training
// labels, adding BeginPrefix whenever a new run starts. runIDs identifies
// the run each token belongs to; -1 means outside. Two adjacent runs of
// the same type are kept apart by their differing ids.
func BIOLabels(labels []string, runIDs []int) []string {
	out := make([]string, len(labels))
	prev := -1
	for i, l := range labels {
		id := -1
		if i < len(runIDs) {
			id = runIDs[i]
		}
		if id < 0 || l == "" || l == Outside {
			out[i] = Outside
			prev = -1
			continue
		}
		if id != prev {
			out[i] = BeginPrefix + l
		} else {
			out[i] = l
		}
		prev = id
	}
	return out
}

// CoNLL evaluation classes.
const (
	CoNLLPerson       = "per"
	CoNLLLocation     = "loc"
	CoNLLOrganisation = "org"
	CoNLLMisc         = "misc"
)

// CoNLLClass returns the CoNLL class of t, Outside for types CoNLL does
// not annotate.
func CoNLLClass(t Type) string {
	switch t {
	case Person:
		return CoNLLPerson
	case Location, Installation:
		return CoNLLLocation
	case Organisation, Institution, Business, Media:
		return CoNLLOrganisation
	case AthleticTeam, National, Award, PersonType:
		return CoNLLMisc
	}
	return Outside
}

// CoNLLLabel translates a tagger label such as "B-PERSON" or "I-MEDIA" to
// its CoNLL class. Unknown labels become Outside.
func CoNLLLabel(label string) string {
	if label == Outside {
		return Outside
	}
	label = strings.TrimPrefix(PlainLabel(label), "I-")
	t, err := ParseType(label)
	if err != nil {
		return Outside
	}
	return CoNLLClass(t)
}
