package app

import (
	"github.com/dukerupert/tvtime/internal/ledger"
	"github.com/dukerupert/tvtime/internal/model"
)

func (a *App) Children() []model.Person {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ledger.Children()
}

func (a *App) Person(id string) *model.Person {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ledger.Person(id)
}

func (a *App) AddPerson(name string) (*model.Person, error) {
	a.mu.Lock()
	p, err := a.ledger.AddPerson(name)
	a.mu.Unlock()
	if p != nil {
		a.notify("children", "created", p.ID, nil)
	}
	return p, err
}

func (a *App) RemovePerson(id string) (bool, error) {
	a.mu.Lock()
	ok, err := a.ledger.RemovePerson(id)
	a.mu.Unlock()
	if ok {
		a.notify("children", "deleted", id, nil)
	}
	return ok, err
}

// AdjustTime returns nil, nil for an unknown person.
func (a *App) AdjustTime(id string, dir ledger.Direction, amount int) (*model.Person, error) {
	a.mu.Lock()
	p, err := a.ledger.AdjustTime(id, dir, amount)
	a.mu.Unlock()
	if p != nil {
		a.notify("children", "updated", p.ID, nil)
	}
	return p, err
}

func (a *App) Chores() []model.Chore {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ledger.Chores()
}

func (a *App) AddChore(name string, minutes int) (*model.Chore, error) {
	a.mu.Lock()
	c, err := a.ledger.AddChore(name, minutes)
	a.mu.Unlock()
	if c != nil {
		a.notify("chores", "created", c.ID, nil)
	}
	return c, err
}

func (a *App) UpdateChore(id, name string, minutes int) (*model.Chore, error) {
	a.mu.Lock()
	c, err := a.ledger.UpdateChore(id, name, minutes)
	a.mu.Unlock()
	if c != nil {
		a.notify("chores", "updated", c.ID, nil)
	}
	return c, err
}

func (a *App) DeleteChore(id string) (bool, error) {
	a.mu.Lock()
	ok, err := a.ledger.DeleteChore(id)
	a.mu.Unlock()
	if ok {
		a.notify("chores", "deleted", id, nil)
	}
	return ok, err
}

// GrantChore credits a chore's minutes to a person. Either id being unknown
// returns nil, nil.
func (a *App) GrantChore(personID, choreID string) (*model.Person, error) {
	a.mu.Lock()
	p, err := a.ledger.GrantChore(personID, choreID)
	a.mu.Unlock()
	if p != nil {
		a.notify("children", "updated", p.ID, map[string]any{"chore_id": choreID})
	}
	return p, err
}
