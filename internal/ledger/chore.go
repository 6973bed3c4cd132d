package ledger

import (
	"fmt"
	"strings"

	"github.com/dukerupert/tvtime/internal/model"
)

// Chores returns a copy of the chore shortcuts.
func (l *Ledger) Chores() []model.Chore {
	out := model.CloneChores(l.chores)
	if out == nil {
		out = []model.Chore{}
	}
	return out
}

func (l *Ledger) Chore(id string) *model.Chore {
	if i := l.indexOfChore(id); i >= 0 {
		c := l.chores[i]
		return &c
	}
	return nil
}

func (l *Ledger) AddChore(name string, minutes int) (*model.Chore, error) {
	name, err := l.validateChore(name, minutes, "")
	if err != nil {
		return nil, err
	}
	c := model.Chore{ID: model.NewID(), Name: name, Time: minutes}
	l.chores = append(l.chores, c)
	return &c, l.saveChores()
}

// UpdateChore edits a chore, re-checking name uniqueness against every other
// chore. It returns nil, nil for unknown ids.
func (l *Ledger) UpdateChore(id, name string, minutes int) (*model.Chore, error) {
	i := l.indexOfChore(id)
	if i < 0 {
		return nil, nil
	}
	name, err := l.validateChore(name, minutes, id)
	if err != nil {
		return nil, err
	}
	l.chores[i].Name = name
	l.chores[i].Time = minutes
	c := l.chores[i]
	return &c, l.saveChores()
}

func (l *Ledger) DeleteChore(id string) (bool, error) {
	i := l.indexOfChore(id)
	if i < 0 {
		return false, nil
	}
	l.chores = append(l.chores[:i:i], l.chores[i+1:]...)
	return true, l.saveChores()
}

// GrantChore credits the chore's time to a person. Either id being unknown
// is a no-op returning nil, nil.
func (l *Ledger) GrantChore(personID, choreID string) (*model.Person, error) {
	c := l.Chore(choreID)
	if c == nil {
		return nil, nil
	}
	return l.AdjustTime(personID, Increase, c.Time)
}

// ReplaceChores overwrites the chore shortcuts without persisting.
func (l *Ledger) ReplaceChores(chores []model.Chore) {
	l.chores = model.CloneChores(chores)
}

func (l *Ledger) validateChore(name string, minutes int, excludeID string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", blank("name")
	}
	if !model.ValidChoreTime(minutes) {
		return "", invalid("time", fmt.Sprintf("time must be one of %v minutes", model.ChoreTimes))
	}
	for _, c := range l.chores {
		if c.ID != excludeID && strings.EqualFold(c.Name, name) {
			return "", duplicate("name", "chore")
		}
	}
	return name, nil
}

func (l *Ledger) indexOfChore(id string) int {
	for i, c := range l.chores {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (l *Ledger) saveChores() error {
	if l.persist == nil {
		return nil
	}
	if err := l.persist.SaveChores(l.Chores()); err != nil {
		return fmt.Errorf("save chores: %w", err)
	}
	return nil
}
