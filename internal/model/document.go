package model

import "time"

// Document is the shared family record held by the remote document service.
// A nil Children or CustomChores slice means the field has never been written.
type Document struct {
	Children          []Person   `json:"children"`
	CustomChores      []Chore    `json:"customChores"`
	LastUpdated       *time.Time `json:"lastUpdated,omitempty"`
	LastMidnightCheck string     `json:"lastMidnightCheck,omitempty"`
}

// Fields is a partial document write. Nil fields are left untouched by a
// merge; a non-nil pointer to an empty slice clears the field.
type Fields struct {
	Children          *[]Person `json:"children,omitempty"`
	CustomChores      *[]Chore  `json:"customChores,omitempty"`
	LastMidnightCheck *string   `json:"lastMidnightCheck,omitempty"`
}

// Empty reports whether the write carries no fields.
func (f Fields) Empty() bool {
	return f.Children == nil && f.CustomChores == nil && f.LastMidnightCheck == nil
}

// Merge applies f onto d in place.
func (d *Document) Merge(f Fields) {
	if f.Children != nil {
		d.Children = ClonePeople(*f.Children)
		if d.Children == nil {
			d.Children = []Person{}
		}
	}
	if f.CustomChores != nil {
		d.CustomChores = CloneChores(*f.CustomChores)
		if d.CustomChores == nil {
			d.CustomChores = []Chore{}
		}
	}
	if f.LastMidnightCheck != nil {
		d.LastMidnightCheck = *f.LastMidnightCheck
	}
}

// Clone returns a deep copy of d.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := &Document{
		Children:          ClonePeople(d.Children),
		CustomChores:      CloneChores(d.CustomChores),
		LastMidnightCheck: d.LastMidnightCheck,
	}
	if d.LastUpdated != nil {
		t := *d.LastUpdated
		out.LastUpdated = &t
	}
	return out
}
