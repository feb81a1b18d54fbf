package chat

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubRegisterJoinsUserAndTenantRooms(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	user, clinic := uuid.New(), uuid.New()
	c := NewClient(user, clinic, 4)
	hub.Register(c)

	assert.Equal(t, 1, hub.ClientCount())
	assert.Equal(t, 1, hub.RoomCount(UserRoom(user)))
	assert.Equal(t, 1, hub.RoomCount(TenantRoom(clinic)))
	assert.Equal(t, []uuid.UUID{user}, hub.Online(clinic))

	hub.Unregister(c)
	hub.Unregister(c)
	assert.Zero(t, hub.ClientCount())
	assert.Zero(t, hub.RoomCount(UserRoom(user)))
	_, open := <-c.Send
	assert.False(t, open, "Unregister closes Send")
}

func TestHubBroadcastOnlyToRoom(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	clinic := uuid.New()
	a := NewClient(uuid.New(), clinic, 4)
	b := NewClient(uuid.New(), clinic, 4)
	other := NewClient(uuid.New(), uuid.New(), 4)
	for _, c := range []*Client{a, b, other} {
		hub.Register(c)
	}

	hub.Broadcast(UserRoom(a.UserID), Outbound{Type: FrameTyping})
	require.Len(t, a.Send, 1)
	assert.Len(t, b.Send, 0)

	hub.Broadcast(TenantRoom(clinic), Outbound{Type: FrameMessage})
	assert.Len(t, a.Send, 2)
	assert.Len(t, b.Send, 1)
	assert.Len(t, other.Send, 0, "other clinics never receive tenant frames")

	var got Outbound
	require.NoError(t, json.Unmarshal(<-a.Send, &got))
	assert.Equal(t, FrameTyping, got.Type)
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := NewClient(uuid.New(), uuid.New(), 1)
	hub.Register(c)
	hub.Broadcast(UserRoom(c.UserID), Outbound{Type: FrameTyping})
	hub.Broadcast(UserRoom(c.UserID), Outbound{Type: FrameTyping})
	assert.Len(t, c.Send, 1)
	assert.Equal(t, uint64(1), hub.Dropped())
}

func TestHubConcurrentRegisterBroadcast(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	clinic := uuid.New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c := NewClient(uuid.New(), clinic, 8)
			hub.Register(c)
			hub.Unregister(c)
		}()
		go func() {
			defer wg.Done()
			hub.Broadcast(TenantRoom(clinic), Outbound{Type: FrameTyping})
		}()
	}
	wg.Wait()
	assert.Zero(t, hub.ClientCount())
}
