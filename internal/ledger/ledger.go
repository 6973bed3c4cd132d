// Package ledger holds the family's tracked people, their minute balances
// and the chore shortcuts that grant time.
//
// A Ledger is not safe for concurrent use. The application serializes every
// call on a single timeline.
package ledger

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dukerupert/tvtime/internal/model"
)

// Direction selects whether AdjustTime adds or removes minutes.
type Direction string

const (
	Increase Direction = "increase"
	Decrease Direction = "decrease"
)

// Persister receives the ledger's collections after every mutation.
type Persister interface {
	SaveChildren(children []model.Person) error
	SaveChores(chores []model.Chore) error
}

type Ledger struct {
	children []model.Person
	chores   []model.Chore
	persist  Persister
	now      func() time.Time
}

// New builds a ledger over previously persisted collections. persist may be nil.
func New(children []model.Person, chores []model.Chore, persist Persister, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{
		children: model.ClonePeople(children),
		chores:   model.CloneChores(chores),
		persist:  persist,
		now:      now,
	}
}

// Children returns a copy of the tracked people in insertion order.
func (l *Ledger) Children() []model.Person {
	out := model.ClonePeople(l.children)
	if out == nil {
		out = []model.Person{}
	}
	return out
}

// Person returns the person with id, or nil.
func (l *Ledger) Person(id string) *model.Person {
	if i := l.indexOfPerson(id); i >= 0 {
		p := l.children[i]
		return &p
	}
	return nil
}

// AddPerson appends a new person with a zero balance.
func (l *Ledger) AddPerson(name string) (*model.Person, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, blank("name")
	}
	for _, p := range l.children {
		if strings.EqualFold(p.Name, name) {
			return nil, duplicate("name", "person")
		}
	}

	p := model.Person{
		ID:        model.NewID(),
		Name:      name,
		CreatedAt: l.now().UTC(),
	}
	l.children = append(l.children, p)
	if err := l.saveChildren(); err != nil {
		return &p, err
	}
	return &p, nil
}

// RemovePerson deletes the person with id. It reports false for unknown ids.
func (l *Ledger) RemovePerson(id string) (bool, error) {
	i := l.indexOfPerson(id)
	if i < 0 {
		return false, nil
	}
	l.children = append(l.children[:i:i], l.children[i+1:]...)
	return true, l.saveChildren()
}

// AdjustTime adds amount minutes, or removes them clamping the balance at
// zero. It returns nil, nil for unknown ids.
func (l *Ledger) AdjustTime(id string, dir Direction, amount int) (*model.Person, error) {
	if amount < 0 {
		return nil, invalid("amount", "amount must not be negative")
	}
	if dir != Increase && dir != Decrease {
		return nil, invalid("direction", fmt.Sprintf("direction must be %q or %q", Increase, Decrease))
	}

	i := l.indexOfPerson(id)
	if i < 0 {
		return nil, nil
	}

	p := &l.children[i]
	switch dir {
	case Increase:
		p.TimeBalance = addMinutes(p.TimeBalance, amount)
	case Decrease:
		p.TimeBalance = max(0, p.TimeBalance-amount)
	}
	out := *p
	return &out, l.saveChildren()
}

// GrantAll adds minutes to every person. The caller persists the result
// together with the bonus date.
func (l *Ledger) GrantAll(minutes int) {
	for i := range l.children {
		l.children[i].TimeBalance = addMinutes(l.children[i].TimeBalance, minutes)
	}
}

// addMinutes saturates at math.MaxInt instead of wrapping negative.
func addMinutes(balance, minutes int) int {
	if minutes > 0 && balance > math.MaxInt-minutes {
		return math.MaxInt
	}
	return max(0, balance+minutes)
}

// ReplaceChildren overwrites the tracked people without persisting.
func (l *Ledger) ReplaceChildren(children []model.Person) {
	l.children = model.ClonePeople(children)
	for i := range l.children {
		if l.children[i].TimeBalance < 0 {
			l.children[i].TimeBalance = 0
		}
	}
}

func (l *Ledger) indexOfPerson(id string) int {
	for i, p := range l.children {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (l *Ledger) saveChildren() error {
	if l.persist == nil {
		return nil
	}
	if err := l.persist.SaveChildren(l.Children()); err != nil {
		return fmt.Errorf("save children: %w", err)
	}
	return nil
}
