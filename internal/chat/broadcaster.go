package chat

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/blues/campaignhub/internal/logger"
	"github.com/redis/go-redis/v9"
)

// Broadcaster 会话组广播
type Broadcaster interface {
	Publish(ctx context.Context, roomId int64, payload []byte) error
	// Subscribe 返回的函数用于退出会话组
	Subscribe(roomId int64, deliver func([]byte)) func()
}

type subscriber struct {
	deliver func([]byte)
}

// LocalBroadcaster 进程内广播
type LocalBroadcaster struct {
	mu     sync.RWMutex
	groups map[int64]map[*subscriber]struct{}
}

func NewLocalBroadcaster() *LocalBroadcaster {
	return &LocalBroadcaster{groups: make(map[int64]map[*subscriber]struct{})}
}

func (b *LocalBroadcaster) Publish(_ context.Context, roomId int64, payload []byte) error {
	b.deliver(roomId, payload)
	return nil
}

func (b *LocalBroadcaster) deliver(roomId int64, payload []byte) {
	b.mu.RLock()
	subs := make([]*subscriber, 0, len(b.groups[roomId]))
	for s := range b.groups[roomId] {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	for _, s := range subs {
		s.deliver(payload)
	}
}

func (b *LocalBroadcaster) Subscribe(roomId int64, deliver func([]byte)) func() {
	unsub, _ := b.subscribe(roomId, deliver)
	return unsub
}

// subscribe 第二个返回值表示是否为该会话组的第一个成员
func (b *LocalBroadcaster) subscribe(roomId int64, deliver func([]byte)) (func(), bool) {
	s := &subscriber{deliver: deliver}

	b.mu.Lock()
	group, ok := b.groups[roomId]
	if !ok {
		group = make(map[*subscriber]struct{})
		b.groups[roomId] = group
	}
	group[s] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(roomId, s) })
	}, !ok
}

// remove 返回会话组是否已为空
func (b *LocalBroadcaster) remove(roomId int64, s *subscriber) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	group := b.groups[roomId]
	delete(group, s)
	if len(group) == 0 {
		delete(b.groups, roomId)
		return true
	}
	return false
}

func (b *LocalBroadcaster) size(roomId int64) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.groups[roomId])
}

const channelPrefix = "chat:room:"

// RedisBroadcaster 通过 redis pub/sub 在多个实例之间共享会话组
type RedisBroadcaster struct {
	rdb   *redis.Client
	local *LocalBroadcaster

	mu   sync.Mutex
	subs map[int64]*redis.PubSub
}

func NewRedisBroadcaster(rdb *redis.Client) *RedisBroadcaster {
	return &RedisBroadcaster{
		rdb:   rdb,
		local: NewLocalBroadcaster(),
		subs:  make(map[int64]*redis.PubSub),
	}
}

func roomChannel(roomId int64) string {
	return channelPrefix + strconv.FormatInt(roomId, 10)
}

func (b *RedisBroadcaster) Publish(ctx context.Context, roomId int64, payload []byte) error {
	if err := b.rdb.Publish(ctx, roomChannel(roomId), payload).Err(); err != nil {
		return fmt.Errorf("publish room %d: %w", roomId, err)
	}
	return nil
}

func (b *RedisBroadcaster) Subscribe(roomId int64, deliver func([]byte)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	unsub, first := b.local.subscribe(roomId, deliver)
	if first {
		ps := b.rdb.Subscribe(context.Background(), roomChannel(roomId))
		b.subs[roomId] = ps
		go b.pump(roomId, ps)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			unsub()
			if b.local.size(roomId) > 0 {
				return
			}
			if ps, ok := b.subs[roomId]; ok {
				delete(b.subs, roomId)
				if err := ps.Close(); err != nil {
					logger.Warn("Failed to close pubsub for room %d: %v", roomId, err)
				}
			}
		})
	}
}

func (b *RedisBroadcaster) pump(roomId int64, ps *redis.PubSub) {
	for msg := range ps.Channel() {
		if !strings.HasPrefix(msg.Channel, channelPrefix) {
			continue
		}
		b.local.deliver(roomId, []byte(msg.Payload))
	}
}
