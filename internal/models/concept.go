// Package models defines core data structures for vocabulary concepts and term index entries.
package models

import "strings"

// ConceptID identifies a vocabulary concept by namespace and local name.
// Two identifiers are equal iff both components match exactly.
type ConceptID struct {
	Namespace string `json:"namespace"`
	LocalName string `json:"local_name"`
}

// NewConceptID returns the identifier for namespace and localName.
func NewConceptID(namespace, localName string) ConceptID {
	return ConceptID{Namespace: namespace, LocalName: localName}
}

// ParseConceptID splits a concept URI after its last '#', '/' or ':'.
// A URI without any separator yields an empty namespace.
func ParseConceptID(uri string) ConceptID {
	i := strings.LastIndexAny(uri, "#/:")
	if i < 0 {
		return ConceptID{LocalName: uri}
	}
	return ConceptID{Namespace: uri[:i+1], LocalName: uri[i+1:]}
}

// String returns the full URI of the concept.
func (c ConceptID) String() string {
	return c.Namespace + c.LocalName
}

// IsZero reports whether both components are empty.
func (c ConceptID) IsZero() bool {
	return c.Namespace == "" && c.LocalName == ""
}

// TermEntry maps a term to the concept it labels.
type TermEntry struct {
	Term    string    `json:"term"`
	Concept ConceptID `json:"concept"`
}
