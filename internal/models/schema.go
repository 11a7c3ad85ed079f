package models

// FieldKind enumerates the shapes a schema field can declare.
type FieldKind string

const (
	KindText         FieldKind = "text"
	KindNumber       FieldKind = "number"
	KindBoolean      FieldKind = "boolean"
	KindList         FieldKind = "list"
	KindGroup        FieldKind = "group"
	KindComponentRef FieldKind = "componentRef"
	KindMedia        FieldKind = "media"
)

// FieldSchema is one node of a parsed component schema. Group nodes carry
// Children; list nodes carry a single ElementSchema describing every element.
// Schemas are immutable value trees with no back-references into content.
type FieldSchema struct {
	Name     string    `json:"name"`
	Kind     FieldKind `json:"type"`
	Optional bool      `json:"optional,omitempty"`
	Default  any       `json:"default,omitempty"`

	// Min/Max bound numbers (value) and lists (length), inclusive.
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`

	Children      []FieldSchema `json:"fields,omitempty"`
	ElementSchema *FieldSchema  `json:"field,omitempty"`

	// AllowedComponents restricts componentRef targets when non-empty.
	AllowedComponents []string `json:"options,omitempty"`
}

// ValidationError describes one violation found while validating content.
type ValidationError struct {
	FieldPath    string `json:"fieldPath"`
	Message      string `json:"message"`
	ExpectedKind string `json:"expectedKind,omitempty"`
	ActualKind   string `json:"actualKind,omitempty"`
}

// ValidationResult accumulates every violation found in one pass over the
// content tree. Errors is non-empty iff Valid is false.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors"`
}
