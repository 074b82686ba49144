package engine

// RoomNotAvailableConstraint keeps activities out of a room during its
// blacklisted periods. The blacklist is snapshotted at construction.
type RoomNotAvailableConstraint struct {
	baseConstraint
	roomID  string
	periods []Period
}

// NewRoomNotAvailableConstraint snapshots the room's unavailable periods.
func NewRoomNotAvailableConstraint(r *Room, weight float64) *RoomNotAvailableConstraint {
	return &RoomNotAvailableConstraint{
		baseConstraint: newBase(weight),
		roomID:         r.ID,
		periods:        snapshotPeriods(r.NotAvailable),
	}
}

func (c *RoomNotAvailableConstraint) Type() ConstraintType { return ConstraintRoomNotAvailable }

func (c *RoomNotAvailableConstraint) IsSatisfied(a *Assignment) bool {
	if !c.active {
		return true
	}
	for _, block := range c.periods {
		if a.ActivityInRoomAt(c.roomID, block.Day, block.Hour) != nil {
			return false
		}
	}
	return true
}

// PreferredRoomsConstraint pins an activity to one of its preferred rooms.
// Vacuously satisfied when no preference is configured or the activity has no
// room yet.
type PreferredRoomsConstraint struct {
	baseConstraint
	activityID string
	roomIDs    []string
}

// NewPreferredRoomsConstraint snapshots the activity's preferred rooms.
func NewPreferredRoomsConstraint(act *Activity, weight float64) *PreferredRoomsConstraint {
	var rooms []string
	if len(act.PreferredRooms) > 0 {
		rooms = make([]string, len(act.PreferredRooms))
		copy(rooms, act.PreferredRooms)
	}
	return &PreferredRoomsConstraint{
		baseConstraint: newBase(weight),
		activityID:     act.ID,
		roomIDs:        rooms,
	}
}

func (c *PreferredRoomsConstraint) Type() ConstraintType { return ConstraintPreferredRooms }

func (c *PreferredRoomsConstraint) IsSatisfied(a *Assignment) bool {
	if !c.active || len(c.roomIDs) == 0 {
		return true
	}
	roomID, ok := a.RoomFor(c.activityID)
	if !ok {
		return true
	}
	for _, preferred := range c.roomIDs {
		if preferred == roomID {
			return true
		}
	}
	return false
}
