package mock

import (
	"context"
	"sync"
	"time"

	"github.com/acarcay/voice-agent/internal/rooms"
)

// Provisioner simulates a room service in memory. Creating an existing room
// reports rooms.ErrRoomExists, matching the real service.
type Provisioner struct {
	mu    sync.Mutex
	rooms map[string]rooms.Room
}

// NewProvisioner constructs an empty mock room service.
func NewProvisioner() *Provisioner {
	return &Provisioner{rooms: make(map[string]rooms.Room)}
}

// CreateRoom registers the room name.
func (p *Provisioner) CreateRoom(ctx context.Context, name string, metadata rooms.Metadata) (rooms.Room, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if existing, ok := p.rooms[name]; ok {
		return existing, rooms.ErrRoomExists
	}

	room := rooms.Room{Name: name, CreatedAt: time.Now().UTC()}
	p.rooms[name] = room
	return room, nil
}

// DeleteRoom removes the room if present.
func (p *Provisioner) DeleteRoom(ctx context.Context, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.rooms, name)
	return nil
}
