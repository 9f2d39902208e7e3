package domain

type SelectionType string

const (
	SelectionRange  SelectionType = "Range"
	SelectionRegion SelectionType = "Region"
)

func (t SelectionType) Valid() bool {
	switch t {
	case SelectionRange, SelectionRegion:
		return true
	default:
		return false
	}
}

// Cursor is the text position and selection of one member. Length may be
// negative for a selection extending backwards from Position.
type Cursor struct {
	MemberID      MemberID      `json:"memberid"`
	Position      int           `json:"position"`
	Length        int           `json:"length"`
	SelectionType SelectionType `json:"selectionType"`
}

func NewCursor(id MemberID) Cursor {
	return Cursor{MemberID: id, SelectionType: SelectionRange}
}

func (c Cursor) Anchor() (int, int) {
	if c.Length < 0 {
		return c.Position + c.Length, c.Position
	}

	return c.Position, c.Position + c.Length
}
