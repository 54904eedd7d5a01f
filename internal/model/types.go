package model

import "sort"

// TypeID identifies a part type. Hooks are part types as well: a part hangs on
// a gear at the hook named by the type it is attached through.
type TypeID int32

// NoHook marks attachments where the gear is its own mount.
const NoHook TypeID = 0

// PartType describes one kind of gear or spare part.
//
// Main types (bike, shoe, ski ...) have no hooks and can be used for activities.
// Spares list the types they can be attached to in Hooks.
type PartType struct {
	ID    TypeID   `json:"id"`
	Name  string   `json:"name"`
	Main  TypeID   `json:"main"`
	Hooks []TypeID `json:"hooks"`
	Order int      `json:"order"`
	Group *string  `json:"group"`
}

func group(s string) *string { return &s }

var partTypes = []PartType{
	{ID: 1, Name: "Bike", Main: 1, Order: 1},
	{ID: 2, Name: "front wheel", Main: 1, Hooks: []TypeID{1}, Order: 5, Group: group("Wheels")},
	{ID: 3, Name: "tire", Main: 1, Hooks: []TypeID{2, 5}, Order: 7, Group: group("Tires")},
	{ID: 4, Name: "chain", Main: 1, Hooks: []TypeID{1}, Order: 11, Group: group("Drivetrain")},
	{ID: 5, Name: "rear wheel", Main: 1, Hooks: []TypeID{1}, Order: 6, Group: group("Wheels")},
	{ID: 6, Name: "brake pad", Main: 1, Hooks: []TypeID{7, 8}, Order: 4, Group: group("Brakes")},
	{ID: 7, Name: "front brake", Main: 1, Hooks: []TypeID{1}, Order: 2, Group: group("Brakes")},
	{ID: 8, Name: "rear brake", Main: 1, Hooks: []TypeID{1}, Order: 3, Group: group("Brakes")},
	{ID: 9, Name: "cassette", Main: 1, Hooks: []TypeID{5}, Order: 10, Group: group("Drivetrain")},
	{ID: 10, Name: "seat post", Main: 1, Hooks: []TypeID{1}, Order: 18, Group: group("Seatpost")},
	{ID: 11, Name: "saddle", Main: 1, Hooks: []TypeID{10}, Order: 19},
	{ID: 12, Name: "derailleur", Main: 1, Hooks: []TypeID{1}, Order: 12, Group: group("Drivetrain")},
	{ID: 13, Name: "crank", Main: 1, Hooks: []TypeID{1}, Order: 13, Group: group("Drivetrain")},
	{ID: 14, Name: "chainring", Main: 1, Hooks: []TypeID{13}, Order: 9, Group: group("Drivetrain")},
	{ID: 15, Name: "brake rotor", Main: 1, Hooks: []TypeID{2, 5}, Order: 8, Group: group("Brakes")},
	{ID: 16, Name: "fork", Main: 1, Hooks: []TypeID{1}, Order: 16, Group: group("Fork")},
	{ID: 17, Name: "rear shock", Main: 1, Hooks: []TypeID{1}, Order: 15, Group: group("Shock")},
	{ID: 18, Name: "pedal", Main: 1, Hooks: []TypeID{13}, Order: 10},
	{ID: 19, Name: "bottom bracket", Main: 1, Hooks: []TypeID{1}, Order: 14},
	{ID: 20, Name: "headset", Main: 1, Hooks: []TypeID{1}, Order: 17},
	{ID: 301, Name: "Shoe", Main: 301, Order: 9999},
	{ID: 302, Name: "Snowboard", Main: 302, Order: 9999},
	{ID: 303, Name: "Ski", Main: 303, Order: 9999},
	{ID: 304, Name: "Whatever", Main: 304, Order: 9999},
	{ID: 305, Name: "SUP board", Main: 305, Order: 9999},
	{ID: 306, Name: "Windsurf Board", Main: 306, Order: 9999},
	{ID: 307, Name: "Kite Board", Main: 307, Order: 9999},
	{ID: 308, Name: "Rowing boat", Main: 308, Order: 9999},
	{ID: 309, Name: "binding", Main: 302, Hooks: []TypeID{302}, Order: 9999},
}

var typeIndex = func() map[TypeID]PartType {
	m := make(map[TypeID]PartType, len(partTypes))
	for _, t := range partTypes {
		m[t.ID] = t
	}
	return m
}()

// PartTypes returns the catalogue ordered by id.
func PartTypes() []PartType {
	res := make([]PartType, len(partTypes))
	copy(res, partTypes)
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// Type looks up a part type.
func (id TypeID) Type() (PartType, bool) {
	t, ok := typeIndex[id]
	return t, ok
}

// IsMain reports whether parts of this type are gear in their own right.
func (id TypeID) IsMain() bool {
	t, ok := typeIndex[id]
	return ok && len(t.Hooks) == 0
}

// MainType returns the gear type the given type belongs to.
// Unknown types map to themselves.
func (id TypeID) MainType() TypeID {
	if t, ok := typeIndex[id]; ok {
		return t.Main
	}
	return id
}

// Subtypes returns every type that can be attached to id, directly or
// through other parts, including id itself. The order is breadth first,
// each level in id order.
func (id TypeID) Subtypes() []PartType {
	remaining := PartTypes()
	var res []PartType
	queue := []TypeID{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		kept := remaining[:0]
		for _, t := range remaining {
			if t.ID == cur || containsType(t.Hooks, cur) {
				res = append(res, t)
				queue = append(queue, t.ID)
			} else {
				kept = append(kept, t)
			}
		}
		remaining = kept
	}
	return res
}

func containsType(list []TypeID, id TypeID) bool {
	for _, t := range list {
		if t == id {
			return true
		}
	}
	return false
}
