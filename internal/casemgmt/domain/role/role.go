// Package role models case role assignments: organizational entities (users
// or groups) assigned to roles declared by the case definition.
package role

import "strings"

// EntityType tags an organizational entity reference.
type EntityType string

const (
	EntityTypeUser  EntityType = "user"
	EntityTypeGroup EntityType = "group"
)

// ParseEntityType canonicalizes a stored entity type label.
func ParseEntityType(value string) (EntityType, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "user":
		return EntityTypeUser, true
	case "group":
		return EntityTypeGroup, true
	default:
		return "", false
	}
}

// Entity is an opaque organizational entity reference: an identifier plus a
// type tag. Resolution against a directory happens at the service boundary.
type Entity struct {
	ID   string
	Type EntityType
}

// Normalize trims the entity id.
func (e Entity) Normalize() Entity {
	e.ID = strings.TrimSpace(e.ID)
	return e
}

// Valid reports whether the entity has an id and a known type.
func (e Entity) Valid() bool {
	return strings.TrimSpace(e.ID) != "" && (e.Type == EntityTypeUser || e.Type == EntityTypeGroup)
}

// Assignment is one role's current assignment set. Listing reports one
// Assignment per declared role, including roles with no assignees.
type Assignment struct {
	Role string
	// Cardinality is the declared maximum assignee count; zero means
	// unbounded.
	Cardinality int
	Entities    []Entity
}

// Contains reports whether the entity is currently assigned.
func (a Assignment) Contains(entity Entity) bool {
	entity = entity.Normalize()
	for _, existing := range a.Entities {
		if existing.ID == entity.ID && existing.Type == entity.Type {
			return true
		}
	}
	return false
}

// Add returns the assignment with the entity added. Adding an entity that is
// already assigned returns the assignment unchanged.
func (a Assignment) Add(entity Entity) Assignment {
	if a.Contains(entity) {
		return a
	}
	a.Entities = append(append([]Entity(nil), a.Entities...), entity.Normalize())
	return a
}

// Remove returns the assignment without the entity. Removing an entity that
// is not assigned returns the assignment unchanged.
func (a Assignment) Remove(entity Entity) Assignment {
	entity = entity.Normalize()
	kept := make([]Entity, 0, len(a.Entities))
	for _, existing := range a.Entities {
		if existing.ID == entity.ID && existing.Type == entity.Type {
			continue
		}
		kept = append(kept, existing)
	}
	a.Entities = kept
	return a
}

// AtCapacity reports whether adding one more entity would exceed the
// declared cardinality.
func (a Assignment) AtCapacity() bool {
	return a.Cardinality > 0 && len(a.Entities) >= a.Cardinality
}
