package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by lookups that miss.
var ErrNotFound = errors.New("edie: definition not found")

// Database holds enums and message definitions.
type Database struct {
	Enums    []*EnumDefinition    `json:"enums" yaml:"enums"`
	Messages []*MessageDefinition `json:"messages" yaml:"messages"`

	enumsByID   map[string]*EnumDefinition
	enumsByName map[string]*EnumDefinition
	msgsByID    map[uint32]*MessageDefinition
	msgsByName  map[string]*MessageDefinition
}

// MessageByID returns the definition of id.
func (db *Database) MessageByID(id uint32) (*MessageDefinition, error) {
	if msg, ok := db.msgsByID[id]; ok {
		return msg, nil
	}
	return nil, fmt.Errorf("message id %d: %w", id, ErrNotFound)
}

// MessageByName returns the definition named name.
func (db *Database) MessageByName(name string) (*MessageDefinition, error) {
	if msg, ok := db.msgsByName[strings.ToUpper(name)]; ok {
		return msg, nil
	}
	return nil, fmt.Errorf("message %q: %w", name, ErrNotFound)
}

// EnumByID returns the enum with the given _id.
func (db *Database) EnumByID(id string) (*EnumDefinition, error) {
	if e, ok := db.enumsByID[id]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("enum id %q: %w", id, ErrNotFound)
}

// EnumByName returns the enum named name.
func (db *Database) EnumByName(name string) (*EnumDefinition, error) {
	if e, ok := db.enumsByName[name]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("enum %q: %w", name, ErrNotFound)
}

// Merge appends the definitions of other. Definitions in other replace
// existing ones with the same message id or enum id.
func (db *Database) Merge(other *Database) error {
	if other == nil {
		return nil
	}
	enums := make([]*EnumDefinition, 0, len(db.Enums)+len(other.Enums))
	replaced := make(map[string]bool, len(other.Enums))
	for _, e := range other.Enums {
		replaced[e.ID] = true
	}
	for _, e := range db.Enums {
		if !replaced[e.ID] {
			enums = append(enums, e)
		}
	}
	db.Enums = append(enums, other.Enums...)

	msgs := make([]*MessageDefinition, 0, len(db.Messages)+len(other.Messages))
	ids := make(map[uint32]bool, len(other.Messages))
	for _, m := range other.Messages {
		ids[m.ID] = true
	}
	for _, m := range db.Messages {
		if !ids[m.ID] {
			msgs = append(msgs, m)
		}
	}
	db.Messages = append(msgs, other.Messages...)
	return db.link()
}

// link builds the lookup indexes and resolves enum references.
func (db *Database) link() error {
	db.enumsByID = make(map[string]*EnumDefinition, len(db.Enums))
	db.enumsByName = make(map[string]*EnumDefinition, len(db.Enums))
	for _, e := range db.Enums {
		if e == nil {
			return errors.New("null enum entry")
		}
		e.index()
		if e.ID != "" {
			db.enumsByID[e.ID] = e
		}
		db.enumsByName[e.Name] = e
	}

	db.msgsByID = make(map[uint32]*MessageDefinition, len(db.Messages))
	db.msgsByName = make(map[string]*MessageDefinition, len(db.Messages))
	for _, m := range db.Messages {
		if m == nil {
			return errors.New("null message entry")
		}
		if m.Name == "" {
			return fmt.Errorf("message id %d has no name", m.ID)
		}
		if err := m.index(); err != nil {
			return err
		}
		for _, fields := range m.fields {
			if err := db.linkFields(m.Name, fields); err != nil {
				return err
			}
		}
		db.msgsByID[m.ID] = m
		db.msgsByName[strings.ToUpper(m.Name)] = m
	}
	return nil
}

func (db *Database) linkFields(msgName string, fields []*Field) error {
	for _, f := range fields {
		if f == nil {
			return fmt.Errorf("message %s: null field entry", msgName)
		}
		switch f.Type {
		case FieldEnum:
			e, ok := db.enumsByID[f.EnumID]
			if !ok {
				e, ok = db.enumsByName[f.Name]
			}
			if !ok {
				return fmt.Errorf("message %s: field %s references unknown enum %q", msgName, f.Name, f.EnumID)
			}
			f.Enum = e
		case FieldSimple, FieldFixedArray, FieldVarArray:
			if !f.DataType.Known() && f.DataType.Length == 0 {
				return fmt.Errorf("message %s: field %s has unknown data type %q", msgName, f.Name, f.DataType.Name)
			}
			if f.Type != FieldSimple && f.ArrayLength <= 0 {
				return fmt.Errorf("message %s: array field %s has no arrayLength", msgName, f.Name)
			}
		case FieldArray:
			if f.ArrayLength <= 0 {
				return fmt.Errorf("message %s: field array %s has no arrayLength", msgName, f.Name)
			}
			if err := db.linkFields(msgName, f.Fields); err != nil {
				return err
			}
		case FieldString, FieldResponseID, FieldResponseStr,
			FieldRxConfigHeader, FieldRxConfigBody, FieldUnknown:
		default:
			return fmt.Errorf("message %s: field %s has unknown type %q", msgName, f.Name, f.Type)
		}
	}
	return nil
}
