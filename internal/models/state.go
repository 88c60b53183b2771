// Package models defines conversation state types for the lead flow.
package models

// State identifies the current position of a contact in the lead flow.
type State string

const (
	// StateIdle is the resting state; only a trigger phrase advances from here.
	StateIdle State = "idle"
	// StateCompleted is terminal; no input advances a completed conversation.
	StateCompleted State = "completed"

	// StateAwaitingLocation waits for the contact's free-text location.
	StateAwaitingLocation State = "awaiting_location"
	// StateAwaitingItem waits for the item-type selection (1-4 or item name).
	StateAwaitingItem State = "awaiting_item"

	// Mattress chain.
	StateMattressType      State = "mattress_type"
	StateMattressBothSides State = "mattress_both_sides"
	StateMattressStains    State = "mattress_stains"
	StateMattressAge       State = "mattress_age"
	StateMattressPhoto     State = "mattress_photo"

	// Sofa chain.
	StateSofaType  State = "sofa_type"
	StateSofaPhoto State = "sofa_photo"

	// Carpet chain.
	StateCarpetType  State = "carpet_type"
	StateCarpetSize  State = "carpet_size"
	StateCarpetPhoto State = "carpet_photo"

	// StateMultipleSelect waits for the multi-item selection (1-3, comma separated).
	StateMultipleSelect State = "multiple_select"
)

// IsValidState checks if the given state is one the flow engine knows.
func IsValidState(s State) bool {
	switch s {
	case StateIdle, StateCompleted, StateAwaitingLocation, StateAwaitingItem,
		StateMattressType, StateMattressBothSides, StateMattressStains, StateMattressAge, StateMattressPhoto,
		StateSofaType, StateSofaPhoto,
		StateCarpetType, StateCarpetSize, StateCarpetPhoto,
		StateMultipleSelect:
		return true
	default:
		return false
	}
}

// IsResting reports whether the state accepts no mid-flow answer (idle or completed).
func (s State) IsResting() bool {
	return s == StateIdle || s == StateCompleted
}

// IsTerminal reports whether the conversation can never re-enter the flow.
func (s State) IsTerminal() bool {
	return s == StateCompleted
}

// Item names used throughout the flow. These are the literal vocabulary the
// contact types (or selects by number), so they stay in Hebrew.
const (
	// ItemSofa is the sofa item name.
	ItemSofa = "ספה"
	// ItemMattress is the mattress item name.
	ItemMattress = "מזרן"
	// ItemCarpet is the carpet item name.
	ItemCarpet = "שטיח"
	// ItemMultiple marks a composite multi-item lead.
	ItemMultiple = "כמה פריטים"
)

// TypeState returns the entry state of an item's question chain, or "" when
// the item name is not recognized.
func TypeState(item string) State {
	switch item {
	case ItemSofa:
		return StateSofaType
	case ItemMattress:
		return StateMattressType
	case ItemCarpet:
		return StateCarpetType
	default:
		return ""
	}
}
