package runtime

import (
	"circle-hub/contract"
	"circle-hub/domain"
	"circle-hub/domain/event"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type Set map[string]struct{}

// Registry owns the live connections and the room membership index.
// Both maps sit behind the same lock so that a fan-out never observes a user
// half way through a join, a leave or a supersession.
type Registry struct {
	mu          sync.RWMutex
	sessions    map[string]contract.Connection        // map user -> live connection
	roomMembers map[domain.RoomID]Set                 // map room -> users
	userRooms   map[string]map[domain.RoomID]struct{} // map user -> rooms
}

func NewRegistry() *Registry {
	return &Registry{
		sessions:    make(map[string]contract.Connection),
		roomMembers: make(map[domain.RoomID]Set),
		userRooms:   make(map[string]map[domain.RoomID]struct{}),
	}
}

// Delivery reports the outcome of a fan-out.
// Dropped holds the connections whose outbound queue refused the frame.
type Delivery struct {
	Delivered int
	Dropped   []contract.Connection
}

// Register installs conn as the only live connection of its user.
// A previous connection of the same user is detached together with its rooms
// and handed back so the caller can finish tearing it down.
func (r *Registry) Register(conn contract.Connection) (contract.Connection, []domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID := conn.UserID()
	previous, ok := r.sessions[userID]
	r.sessions[userID] = conn
	if !ok || previous.ID() == conn.ID() {
		return nil, nil
	}
	return previous, r.leaveAllLocked(userID)
}

// Deregister removes the user's entry only if it still points to connID,
// so a superseded connection closing late cannot evict its replacement.
// It returns the rooms the user was removed from.
func (r *Registry) Deregister(userID string, connID uuid.UUID) ([]domain.RoomID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.sessions[userID]
	if !ok || current.ID() != connID {
		return nil, false
	}
	delete(r.sessions, userID)
	return r.leaveAllLocked(userID), true
}

// IsCurrent reports whether connID is the live connection of userID.
func (r *Registry) IsCurrent(userID string, connID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.sessions[userID]
	return ok && conn.ID() == connID
}

func (r *Registry) IsConnected(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[userID]
	return ok
}

func (r *Registry) Lookup(userID string) (contract.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.sessions[userID]
	return conn, ok
}

// Join adds the user to the room, creating the room on the fly.
// It reports false when the user was already a member.
func (r *Registry) Join(userID string, roomID domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.roomMembers[roomID]; !ok {
		r.roomMembers[roomID] = make(Set)
	}
	if _, ok := r.roomMembers[roomID][userID]; ok {
		return false
	}
	r.roomMembers[roomID][userID] = struct{}{}

	if _, ok := r.userRooms[userID]; !ok {
		r.userRooms[userID] = make(map[domain.RoomID]struct{})
	}
	r.userRooms[userID][roomID] = struct{}{}
	return true
}

// Leave removes the user from the room. It reports false when the user was not a member.
func (r *Registry) Leave(userID string, roomID domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveLocked(userID, roomID)
}

func (r *Registry) leaveLocked(userID string, roomID domain.RoomID) bool {
	members, ok := r.roomMembers[roomID]
	if !ok {
		return false
	}
	if _, ok = members[userID]; !ok {
		return false
	}
	delete(members, userID)
	// If no one is left in the room, remove the room entry entirely
	if len(members) == 0 {
		delete(r.roomMembers, roomID)
	}
	if rooms, ok := r.userRooms[userID]; ok {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(r.userRooms, userID)
		}
	}
	return true
}

func (r *Registry) leaveAllLocked(userID string) []domain.RoomID {
	rooms := sortedRooms(r.userRooms[userID])
	for _, roomID := range rooms {
		r.leaveLocked(userID, roomID)
	}
	return rooms
}

func (r *Registry) MembersOf(roomID domain.RoomID) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := lo.Keys(r.roomMembers[roomID])
	slices.Sort(members)
	return members
}

func (r *Registry) RoomsOf(userID string) []domain.RoomID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedRooms(r.userRooms[userID])
}

func (r *Registry) IsMember(userID string, roomID domain.RoomID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.roomMembers[roomID][userID]
	return ok
}

// ShareRoom reports whether both users are members of at least one common room.
func (r *Registry) ShareRoom(userID, otherID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for roomID := range r.userRooms[userID] {
		if _, ok := r.roomMembers[roomID][otherID]; ok {
			return true
		}
	}
	return false
}

func (r *Registry) ConnectedUsers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := lo.Keys(r.sessions)
	slices.Sort(users)
	return users
}

// Connections returns every live connection, used on shutdown.
func (r *Registry) Connections() []contract.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Values(r.sessions)
}

func (r *Registry) Stats() (connections, rooms int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions), len(r.roomMembers)
}

// SendTo queues out for the user's live connection, if any.
func (r *Registry) SendTo(userID string, out event.Outbound) Delivery {
	return r.SendToUsers([]string{userID}, out)
}

// SendToUsers queues out once for each listed user that has a live connection.
func (r *Registry) SendToUsers(userIDs []string, out event.Outbound) Delivery {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.deliverLocked(lo.Uniq(userIDs), out)
}

// Broadcast queues out for every live member of the room except the excluded users.
// Recipients are resolved and fed while holding the read lock; Send never blocks.
func (r *Registry) Broadcast(roomID domain.RoomID, out event.Outbound, exclude ...string) Delivery {
	return r.BroadcastRooms([]domain.RoomID{roomID}, out, exclude...)
}

// BroadcastRooms queues out at most once per connection across all the rooms.
func (r *Registry) BroadcastRooms(roomIDs []domain.RoomID, out event.Outbound, exclude ...string) Delivery {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.deliverLocked(r.recipientsLocked(roomIDs, exclude), out)
}

// BroadcastPresence fans out a presence transition of userID only while it still holds:
// online requires connID to be the live connection of the user, offline requires the
// user to have no live connection at all. It reports false when the transition is stale.
// The check and the enqueue share the read lock, so a stale offline can never be queued
// after the online of a newer connection.
func (r *Registry) BroadcastPresence(userID string, connID uuid.UUID, online bool,
	roomIDs []domain.RoomID, out event.Outbound) (Delivery, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	current, connected := r.sessions[userID]
	if online && (!connected || current.ID() != connID) {
		return Delivery{}, false
	}
	if !online && connected {
		return Delivery{}, false
	}
	return r.deliverLocked(r.recipientsLocked(roomIDs, []string{userID}), out), true
}

func (r *Registry) recipientsLocked(roomIDs []domain.RoomID, exclude []string) []string {
	recipients := make(Set)
	for _, roomID := range roomIDs {
		for userID := range r.roomMembers[roomID] {
			recipients[userID] = struct{}{}
		}
	}
	for _, userID := range exclude {
		delete(recipients, userID)
	}
	return lo.Keys(recipients)
}

func (r *Registry) deliverLocked(userIDs []string, out event.Outbound) Delivery {
	var d Delivery
	for _, userID := range userIDs {
		conn, ok := r.sessions[userID]
		if !ok {
			continue
		}
		if conn.Send(out) {
			d.Delivered++
		} else {
			d.Dropped = append(d.Dropped, conn)
		}
	}
	return d
}

func sortedRooms(rooms map[domain.RoomID]struct{}) []domain.RoomID {
	res := lo.Keys(rooms)
	slices.Sort(res)
	return res
}
