package model

// ChoreTimes is the menu of minute values a chore may grant.
var ChoreTimes = []int{5, 10, 15, 30, 60}

// Chore is a named shortcut that grants a fixed number of minutes.
type Chore struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Time int    `json:"time"`
}

// ValidChoreTime reports whether minutes is on the chore time menu.
func ValidChoreTime(minutes int) bool {
	for _, t := range ChoreTimes {
		if t == minutes {
			return true
		}
	}
	return false
}

func CloneChores(chores []Chore) []Chore {
	if chores == nil {
		return nil
	}
	out := make([]Chore, len(chores))
	copy(out, chores)
	return out
}
