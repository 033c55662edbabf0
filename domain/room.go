package domain

import "strings"

// RoomID names a fan-out group. Rooms exist only while they have members.
type RoomID string

const circleRoomPrefix = "circle_"

// CircleRoom returns the room every member of a circle joins on connect.
func CircleRoom(circleID string) RoomID {
	return RoomID(circleRoomPrefix + circleID)
}

// CircleID extracts the circle identifier of a circle room.
func (r RoomID) CircleID() (string, bool) {
	return strings.CutPrefix(string(r), circleRoomPrefix)
}

func (r RoomID) String() string {
	return string(r)
}
