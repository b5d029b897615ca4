package ws

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/roadside-backend/internal/models"
)

type fakePresence struct {
	mu      sync.Mutex
	touched map[uuid.UUID]int
	left    map[uuid.UUID]int
}

func newFakePresence() *fakePresence {
	return &fakePresence{touched: map[uuid.UUID]int{}, left: map[uuid.UUID]int{}}
}

func (p *fakePresence) Touch(_ context.Context, userID uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.touched[userID]++
	return nil
}

func (p *fakePresence) Leave(_ context.Context, userID uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.left[userID]++
	return nil
}

func (p *fakePresence) leftCount(userID uuid.UUID) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.left[userID]
}

func newTestHub(t *testing.T) (*Hub, *fakePresence) {
	t.Helper()
	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { rdb.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	presence := newFakePresence()
	hub := NewHub(ctx, rdb, presence)
	go hub.Run()
	return hub, presence
}

func TestHub_PublishReachesLocalClient(t *testing.T) {
	hub, presence := newTestHub(t)
	userID := uuid.New()

	ready := make(chan struct{})
	go func() { _ = hub.Subscribe(ready) }()
	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not confirmed")
	}

	client := &Client{hub: hub, userID: userID, send: make(chan []byte, 1)}
	hub.Register(client)
	require.Eventually(t, func() bool { return hub.IsConnected(userID) }, time.Second, 5*time.Millisecond)

	n := models.Notification{ID: uuid.New(), UserID: userID, Title: "Job Process Update", Message: "Sam has accepted the job process"}
	require.NoError(t, hub.Publish(context.Background(), n))

	select {
	case raw := <-client.send:
		var msg struct {
			Type string              `json:"type"`
			Data models.Notification `json:"data"`
		}
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, EventNotification, msg.Type)
		assert.Equal(t, n.Message, msg.Data.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("notification was not delivered")
	}

	presence.mu.Lock()
	assert.Equal(t, 1, presence.touched[userID])
	presence.mu.Unlock()
}

func TestHub_LastClientLeaves(t *testing.T) {
	hub, presence := newTestHub(t)
	userID := uuid.New()

	first := &Client{hub: hub, userID: userID, send: make(chan []byte, 1)}
	second := &Client{hub: hub, userID: userID, send: make(chan []byte, 1)}
	hub.Register(first)
	hub.Register(second)

	hub.Unregister(first)
	require.Eventually(t, func() bool { return hub.IsConnected(userID) }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, presence.leftCount(userID))

	hub.Unregister(second)
	assert.Eventually(t, func() bool { return !hub.IsConnected(userID) }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return presence.leftCount(userID) == 1 }, time.Second, 5*time.Millisecond)
}

func TestHub_BroadcastSkipsOtherUsers(t *testing.T) {
	hub, _ := newTestHub(t)
	target, other := uuid.New(), uuid.New()

	client := &Client{hub: hub, userID: other, send: make(chan []byte, 1)}
	hub.Register(client)

	require.NoError(t, hub.BroadcastToUser(target, EventNotification, map[string]string{"k": "v"}))

	select {
	case <-client.send:
		t.Fatal("message delivered to the wrong user")
	case <-time.After(100 * time.Millisecond):
	}
}
