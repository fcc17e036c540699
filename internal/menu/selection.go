package menu

// selection.go is the order-time selection validator: pure logic over an
// add-on group schema and a selection map, with no store access. It is used
// identically wherever an order is assembled, consuming the same published
// schema the publish engine produces.
//
// Cap semantics: a nil cap means unlimited; a cap of exactly zero makes the
// group or option fully inert, which is distinct from unlimited.

import "fmt"

// Selection maps group id -> option id -> quantity.
type Selection map[string]map[string]int

// SelectionError reports one violated constraint in a selection.
type SelectionError struct {
	GroupID  string `json:"groupId"`
	OptionID string `json:"optionId,omitempty"`
	Reason   string `json:"reason"`
}

func (e SelectionError) Error() string {
	if e.OptionID != "" {
		return fmt.Sprintf("group %s option %s: %s", e.GroupID, e.OptionID, e.Reason)
	}
	return fmt.Sprintf("group %s: %s", e.GroupID, e.Reason)
}

// unlimited is the sentinel for "no cap" in effective limits.
const unlimited = -1

// effectiveGroupMax returns the number of distinct options selectable in
// the group: the explicit cap when set, else 1 for single-choice groups,
// else unlimited.
func effectiveGroupMax(g AddonGroup) int {
	if g.MaxGroupSelect != nil {
		return *g.MaxGroupSelect
	}
	if !g.MultipleChoice {
		return 1
	}
	return unlimited
}

// effectiveOptionMax returns the per-option quantity cap, or unlimited.
func effectiveOptionMax(g AddonGroup) int {
	if g.MaxOptionQuantity != nil {
		return *g.MaxOptionQuantity
	}
	return unlimited
}

// ValidateSelections checks a full selection map against the group schema.
// A nil return means the selection is valid.
func ValidateSelections(groups []AddonGroup, sel Selection) []SelectionError {
	var errs []SelectionError

	byID := make(map[string]AddonGroup, len(groups))
	for _, g := range groups {
		byID[g.ID] = g
	}

	for groupID := range sel {
		if _, ok := byID[groupID]; !ok {
			errs = append(errs, SelectionError{GroupID: groupID, Reason: "unknown group"})
		}
	}

	for _, g := range groups {
		gsel := sel[g.ID]

		optionIDs := make(map[string]bool, len(g.Options))
		for _, o := range g.Options {
			optionIDs[o.ID] = true
		}

		distinct := 0
		for optionID, qty := range gsel {
			if !optionIDs[optionID] {
				errs = append(errs, SelectionError{GroupID: g.ID, OptionID: optionID, Reason: "unknown option"})
				continue
			}
			if qty < 0 {
				errs = append(errs, SelectionError{GroupID: g.ID, OptionID: optionID, Reason: "negative quantity"})
				continue
			}
			if qty == 0 {
				continue
			}
			distinct++

			if optMax := effectiveOptionMax(g); optMax != unlimited && qty > optMax {
				errs = append(errs, SelectionError{
					GroupID:  g.ID,
					OptionID: optionID,
					Reason:   fmt.Sprintf("quantity %d exceeds option limit %d", qty, optMax),
				})
			}
		}

		if g.Required && distinct == 0 {
			errs = append(errs, SelectionError{GroupID: g.ID, Reason: "a selection is required"})
		}

		if groupMax := effectiveGroupMax(g); groupMax != unlimited && distinct > groupMax {
			errs = append(errs, SelectionError{
				GroupID: g.ID,
				Reason:  fmt.Sprintf("%d options selected, limit is %d", distinct, groupMax),
			})
		}
	}

	return errs
}

// SelectOption applies a pick to one group's selection and returns the new
// selection. Single-choice groups are exclusive: picking a new option zeroes
// every other option and sets the new one to 1, regardless of prior state.
// Multiple-choice groups treat a pick as an increment. The input map is
// never mutated.
func SelectOption(g AddonGroup, current map[string]int, optionID string) (map[string]int, error) {
	if err := checkOptionExists(g, optionID); err != nil {
		return nil, err
	}

	if !g.MultipleChoice {
		if groupMax := effectiveGroupMax(g); groupMax == 0 {
			return nil, SelectionError{GroupID: g.ID, Reason: "group is not selectable"}
		}
		if optMax := effectiveOptionMax(g); optMax == 0 {
			return nil, SelectionError{GroupID: g.ID, OptionID: optionID, Reason: "option is not selectable"}
		}
		return map[string]int{optionID: 1}, nil
	}

	return IncrementOption(g, current, optionID)
}

// IncrementOption raises one option's quantity by one, enforcing both the
// per-option cap and the group's distinct-option cap. Adding a new option
// while the group is at its distinct cap is rejected; raising an
// already-selected option is bounded only by the option cap.
func IncrementOption(g AddonGroup, current map[string]int, optionID string) (map[string]int, error) {
	if err := checkOptionExists(g, optionID); err != nil {
		return nil, err
	}

	qty := current[optionID]

	if optMax := effectiveOptionMax(g); optMax != unlimited && qty+1 > optMax {
		return nil, SelectionError{
			GroupID:  g.ID,
			OptionID: optionID,
			Reason:   fmt.Sprintf("option limit %d reached", optMax),
		}
	}

	if qty == 0 {
		distinct := 0
		for _, q := range current {
			if q > 0 {
				distinct++
			}
		}
		if groupMax := effectiveGroupMax(g); groupMax != unlimited && distinct+1 > groupMax {
			return nil, SelectionError{
				GroupID: g.ID,
				Reason:  fmt.Sprintf("group limit %d reached", groupMax),
			}
		}
	}

	next := copySelection(current)
	next[optionID] = qty + 1
	return next, nil
}

// DecrementOption lowers one option's quantity by one. Decreasing is always
// allowed, down to zero; a zeroed option is removed from the map.
func DecrementOption(g AddonGroup, current map[string]int, optionID string) map[string]int {
	qty := current[optionID]
	next := copySelection(current)
	if qty <= 1 {
		delete(next, optionID)
		return next
	}
	next[optionID] = qty - 1
	return next
}

func checkOptionExists(g AddonGroup, optionID string) error {
	for _, o := range g.Options {
		if o.ID == optionID {
			return nil
		}
	}
	return SelectionError{GroupID: g.ID, OptionID: optionID, Reason: "unknown option"}
}

func copySelection(current map[string]int) map[string]int {
	next := make(map[string]int, len(current)+1)
	for k, v := range current {
		if v > 0 {
			next[k] = v
		}
	}
	return next
}
