package ledger

import (
	"errors"
	"math"
	"math/rand"
	"strings"
	"testing"
	"testing/quick"
	"time"

	"github.com/dukerupert/tvtime/internal/model"
)

type recordingPersister struct {
	children [][]model.Person
	chores   [][]model.Chore
	err      error
}

func (r *recordingPersister) SaveChildren(c []model.Person) error {
	r.children = append(r.children, c)
	return r.err
}

func (r *recordingPersister) SaveChores(c []model.Chore) error {
	r.chores = append(r.chores, c)
	return r.err
}

func fixedNow() time.Time { return time.Date(2026, 2, 5, 9, 0, 0, 0, time.UTC) }

func newTestLedger(t *testing.T) (*Ledger, *recordingPersister) {
	t.Helper()
	p := &recordingPersister{}
	return New(nil, nil, p, fixedNow), p
}

func TestAddPerson(t *testing.T) {
	l, p := newTestLedger(t)

	person, err := l.AddPerson("  Ada ")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if person.Name != "Ada" {
		t.Errorf("name = %q, want %q", person.Name, "Ada")
	}
	if person.TimeBalance != 0 {
		t.Errorf("balance = %d, want 0", person.TimeBalance)
	}
	if person.ID == "" {
		t.Error("expected non-empty ID")
	}
	if !person.CreatedAt.Equal(fixedNow()) {
		t.Errorf("createdAt = %v, want %v", person.CreatedAt, fixedNow())
	}
	if len(p.children) != 1 {
		t.Errorf("persist calls = %d, want 1", len(p.children))
	}

	got := l.Person(person.ID)
	if got == nil || got.Name != "Ada" {
		t.Fatalf("lookup = %+v", got)
	}
}

func TestAddPersonBlank(t *testing.T) {
	l, p := newTestLedger(t)

	for _, name := range []string{"", "   ", "\t\n"} {
		_, err := l.AddPerson(name)
		ve, ok := AsValidation(err)
		if !ok {
			t.Fatalf("AddPerson(%q) error = %v, want ValidationError", name, err)
		}
		if ve.Reason != ReasonBlank {
			t.Errorf("reason = %q, want %q", ve.Reason, ReasonBlank)
		}
	}
	if len(l.Children()) != 0 || len(p.children) != 0 {
		t.Error("blank name mutated or persisted state")
	}
}

func TestAddPersonDuplicateAnyCase(t *testing.T) {
	l, _ := newTestLedger(t)

	if _, err := l.AddPerson("Ada"); err != nil {
		t.Fatalf("add: %v", err)
	}
	before := l.Children()

	for _, name := range []string{"Ada", "ada", "ADA", " aDa "} {
		_, err := l.AddPerson(name)
		ve, ok := AsValidation(err)
		if !ok || ve.Reason != ReasonDuplicate {
			t.Errorf("AddPerson(%q) error = %v, want duplicate ValidationError", name, err)
		}
	}

	after := l.Children()
	if len(after) != len(before) {
		t.Errorf("collection changed: %d -> %d", len(before), len(after))
	}
}

func TestAddPersonProperty(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for n := 0; n < 200; n++ {
		l := New(nil, nil, nil, fixedNow)
		name := randomName(r)

		p, err := l.AddPerson(name)
		if err != nil {
			t.Fatalf("AddPerson(%q): %v", name, err)
		}
		got := l.Person(p.ID)
		if got == nil || got.Name != strings.TrimSpace(name) || got.TimeBalance != 0 {
			t.Fatalf("lookup after add = %+v", got)
		}

		variant := strings.ToUpper(name)
		if r.Intn(2) == 0 {
			variant = strings.ToLower(name)
		}
		if _, err := l.AddPerson(variant); !IsValidation(err) {
			t.Fatalf("AddPerson(%q) after %q: error = %v, want ValidationError", variant, name, err)
		}
		if len(l.Children()) != 1 {
			t.Fatalf("children = %d after duplicate, want 1", len(l.Children()))
		}
	}
}

func randomName(r *rand.Rand) string {
	const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	b := make([]byte, 1+r.Intn(12))
	for i := range b {
		b[i] = letters[r.Intn(len(letters))]
	}
	return string(b)
}

func TestInsertionOrderPreserved(t *testing.T) {
	l, _ := newTestLedger(t)
	names := []string{"Zed", "Ada", "Moe"}
	for _, n := range names {
		if _, err := l.AddPerson(n); err != nil {
			t.Fatalf("add %q: %v", n, err)
		}
	}
	for i, p := range l.Children() {
		if p.Name != names[i] {
			t.Errorf("children[%d] = %q, want %q", i, p.Name, names[i])
		}
	}
}

func TestRemovePerson(t *testing.T) {
	l, p := newTestLedger(t)
	a, _ := l.AddPerson("Ada")
	b, _ := l.AddPerson("Bo")

	removed, err := l.RemovePerson(a.ID)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if !removed {
		t.Error("removed = false for known id")
	}
	children := l.Children()
	if len(children) != 1 || children[0].ID != b.ID {
		t.Errorf("children = %+v, want only Bo", children)
	}

	calls := len(p.children)
	removed, err = l.RemovePerson("unknown")
	if err != nil || removed {
		t.Errorf("remove unknown = %v, %v; want false, nil", removed, err)
	}
	if len(p.children) != calls {
		t.Error("unknown id should not persist")
	}
}

func TestAdjustTime(t *testing.T) {
	l, _ := newTestLedger(t)
	a, _ := l.AddPerson("Ada")

	got, err := l.AdjustTime(a.ID, Increase, 45)
	if err != nil {
		t.Fatalf("increase: %v", err)
	}
	if got.TimeBalance != 45 {
		t.Errorf("balance = %d, want 45", got.TimeBalance)
	}

	got, _ = l.AdjustTime(a.ID, Decrease, 15)
	if got.TimeBalance != 30 {
		t.Errorf("balance = %d, want 30", got.TimeBalance)
	}

	got, _ = l.AdjustTime(a.ID, Decrease, 100)
	if got.TimeBalance != 0 {
		t.Errorf("balance = %d, want clamp to 0", got.TimeBalance)
	}
}

func TestAdjustTimeUnknownAndInvalid(t *testing.T) {
	l, p := newTestLedger(t)

	got, err := l.AdjustTime("nope", Increase, 5)
	if got != nil || err != nil {
		t.Errorf("unknown id = %v, %v; want nil, nil", got, err)
	}
	if len(p.children) != 0 {
		t.Error("unknown id should not persist")
	}

	a, _ := l.AddPerson("Ada")
	if _, err := l.AdjustTime(a.ID, Increase, -1); !IsValidation(err) {
		t.Errorf("negative amount error = %v, want ValidationError", err)
	}
	if _, err := l.AdjustTime(a.ID, "sideways", 5); !IsValidation(err) {
		t.Errorf("bad direction error = %v, want ValidationError", err)
	}
}

func TestDecreaseNeverNegative(t *testing.T) {
	f := func(balance, amount uint16) bool {
		l := New([]model.Person{{ID: "p", Name: "Ada", TimeBalance: int(balance)}}, nil, nil, fixedNow)
		got, err := l.AdjustTime("p", Decrease, int(amount))
		if err != nil {
			return false
		}
		return got.TimeBalance == max(0, int(balance)-int(amount))
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}

func TestGrantAll(t *testing.T) {
	l := New([]model.Person{
		{ID: "a", Name: "Ada", TimeBalance: 10},
		{ID: "b", Name: "Bo"},
	}, nil, nil, fixedNow)

	l.GrantAll(90)

	for _, p := range l.Children() {
		want := 90
		if p.ID == "a" {
			want = 100
		}
		if p.TimeBalance != want {
			t.Errorf("%s balance = %d, want %d", p.Name, p.TimeBalance, want)
		}
	}
}

func TestIncreaseSaturates(t *testing.T) {
	l, _ := newTestLedger(t)
	p, err := l.AddPerson("Ada")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := l.AdjustTime(p.ID, Increase, 10); err != nil {
		t.Fatalf("adjust: %v", err)
	}

	got, err := l.AdjustTime(p.ID, Increase, math.MaxInt)
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if got.TimeBalance != math.MaxInt {
		t.Errorf("balance = %d, want %d", got.TimeBalance, math.MaxInt)
	}
}

func TestGrantAllSaturates(t *testing.T) {
	l := New([]model.Person{{ID: "a", Name: "Ada", TimeBalance: math.MaxInt - 5}}, nil, nil, fixedNow)

	l.GrantAll(30)

	if got := l.Children()[0].TimeBalance; got != math.MaxInt {
		t.Errorf("balance = %d, want %d", got, math.MaxInt)
	}
}

func TestReplaceChildrenClampsNegative(t *testing.T) {
	l, p := newTestLedger(t)
	l.ReplaceChildren([]model.Person{{ID: "a", Name: "Ada", TimeBalance: -5}})

	if got := l.Person("a"); got == nil || got.TimeBalance != 0 {
		t.Errorf("person = %+v, want balance clamped to 0", got)
	}
	if len(p.children) != 0 {
		t.Error("ReplaceChildren must not persist")
	}
}

func TestChildrenReturnsCopy(t *testing.T) {
	l, _ := newTestLedger(t)
	a, _ := l.AddPerson("Ada")

	c := l.Children()
	c[0].TimeBalance = 999

	if got := l.Person(a.ID); got.TimeBalance != 0 {
		t.Errorf("mutating returned slice changed ledger: %d", got.TimeBalance)
	}
}

func TestPersistErrorReturned(t *testing.T) {
	p := &recordingPersister{err: errors.New("disk full")}
	l := New(nil, nil, p, fixedNow)

	person, err := l.AddPerson("Ada")
	if err == nil {
		t.Fatal("expected persist error")
	}
	if IsValidation(err) {
		t.Error("persist error misreported as validation")
	}
	if person == nil || l.Person(person.ID) == nil {
		t.Error("in-memory add should survive a persist failure")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		minutes int
		want    string
	}{
		{0, "0m"},
		{45, "45m"},
		{59, "59m"},
		{60, "1h 0m"},
		{90, "1h 30m"},
		{125, "2h 5m"},
		{-30, "-30m"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.minutes); got != tt.want {
			t.Errorf("FormatDuration(%d) = %q, want %q", tt.minutes, got, tt.want)
		}
	}
}
