package ner

import (
	"strings"

	"github.com/FocuswithJustin/nercorpus/core/errors"
)

// Type is the closed named-entity taxonomy. Free-text refinements live in
// Entity.SubTypes, never here.
type Type uint8

// Type constants.
const (
	Unknown Type = iota
	Person
	Location
	Organisation
	Acronym
	Animal
	Artifact
	Business
	Institution
	Measure
	Award
	Concept
	Conceptual
	Creation
	Event
	Legal
	Identifier
	Installation
	Media
	National
	Substance
	Plant
	Period
	Title
	PersonType
	Website
	AthleticTeam

	numTypes
)

// typeNames holds the serialized name of every Type, indexed by value.
var typeNames = [numTypes]string{
	Unknown:      "UNKNOWN",
	Person:       "PERSON",
	Location:     "LOCATION",
	Organisation: "ORGANISATION",
	Acronym:      "ACRONYM",
	Animal:       "ANIMAL",
	Artifact:     "ARTIFACT",
	Business:     "BUSINESS",
	Institution:  "INSTITUTION",
	Measure:      "MEASURE",
	Award:        "AWARD",
	Concept:      "CONCEPT",
	Conceptual:   "CONCEPTUAL",
	Creation:     "CREATION",
	Event:        "EVENT",
	Legal:        "LEGAL",
	Identifier:   "IDENTIFIER",
	Installation: "INSTALLATION",
	Media:        "MEDIA",
	National:     "NATIONAL",
	Substance:    "SUBSTANCE",
	Plant:        "PLANT",
	Period:       "PERIOD",
	Title:        "TITLE",
	PersonType:   "PERSON_TYPE",
	Website:      "WEBSITE",
	AthleticTeam: "ATHLETIC_TEAM",
}

// Types returns every member of the taxonomy in declaration order.
func Types() []Type {
	out := make([]Type, 0, numTypes)
	for t := Unknown; t < numTypes; t++ {
		out = append(out, t)
	}
	return out
}

// IsValid returns true if t is a member of the taxonomy.
func (t Type) IsValid() bool {
	return t < numTypes
}

// String returns the serialized name, e.g. "PERSON_TYPE".
func (t Type) String() string {
	if !t.IsValid() {
		return typeNames[Unknown]
	}
	return typeNames[t]
}

// ParseType resolves a type name case-insensitively.
func ParseType(name string) (Type, error) {
	name = strings.TrimSpace(name)
	for t := Unknown; t < numTypes; t++ {
		if strings.EqualFold(typeNames[t], name) {
			return t, nil
		}
	}
	return Unknown, &errors.ValidationError{
		Field:   "type",
		Value:   name,
		Message: "unknown named entity type " + name,
	}
}

// MustParseType is ParseType for compile-time constants in tests and tables.
func MustParseType(name string) Type {
	t, err := ParseType(name)
	if err != nil {
		panic(err)
	}
	return t
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(b []byte) error {
	parsed, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// idiliaSenses maps Idilia sense keys to the taxonomy.
var idiliaSenses = map[string]Type{
	"person/N1":                        Person,
	"location/N1":                      Location,
	"organizational_unit/N1":           Organisation,
	"acronym/N1":                       Acronym,
	"animal/N1":                        Animal,
	"artifact/N1":                      Artifact,
	"business/N1":                      Business,
	"institution/N2":                   Institution,
	"measure/N3":                       Measure,
	"award/N2":                         Award,
	"concept/N1":                       Concept,
	"conceptual/J1":                    Conceptual,
	"creation/N2":                      Creation,
	"event/N1":                         Event,
	"identifier/N1":                    Identifier,
	"installation/N2":                  Installation,
	"media/N1":                         Media,
	"national/J3":                      National,
	"naturally-occurring_substance/N1": Substance,
	"plant/N2":                         Plant,
	"time_period/N1":                   Period,
	"title/N6":                         Title,
	"type_of_person/N1":                PersonType,
	"website/N1":                       Website,
	"athletic_team/N1":                 AthleticTeam,
}

// FromIdilia maps an Idilia NE sense key (e.g. "person/N1") to a Type.
// Unmapped keys yield Unknown.
func FromIdilia(senseKey string) Type {
	if t, ok := idiliaSenses[strings.TrimSpace(senseKey)]; ok {
		return t
	}
	return Unknown
}
