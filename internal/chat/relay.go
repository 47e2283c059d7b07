// Package chat relays support chat frames between a user and staff over websocket sessions.
package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/blues/campaignhub/internal/logger"
	"github.com/blues/campaignhub/internal/logic"
	"github.com/blues/campaignhub/internal/metrics"
	"github.com/blues/campaignhub/internal/model"
	"github.com/panjf2000/ants/v2"
)

const (
	CommandNewMessage = "new_message"
	timestampLayout   = "2006-01-02 15:04:05.000000-07:00"
	sendBuffer        = 32
)

// Session 一条客户端连接
type Session interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// RoomStore 会话与消息存储
type RoomStore interface {
	AuthorizeRoom(actor logic.Actor, roomId int64) (*model.RoomModel, error)
	AssignCounselor(roomId, staffId int64) error
	ReleaseCounselor(roomId, staffId int64) error
	SaveMessage(roomId int64, actor logic.Actor, text string) (*model.MessageModel, error)
	MarkActivity(ctx context.Context, roomId int64, actor logic.Actor) (bool, error)
}

// inbound 客户端发送的帧，user_id 只用于兼容旧客户端，不作为身份依据
type inbound struct {
	Command string          `json:"command"`
	UserId  json.RawMessage `json:"user_id,omitempty"`
	Message string          `json:"message"`
}

// Outbound 广播给会话组的消息
type Outbound struct {
	UserId    string `json:"user_id"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Relay 会话中继
type Relay struct {
	store       RoomStore
	broadcaster Broadcaster
	pool        *ants.Pool
}

func NewRelay(store RoomStore, broadcaster Broadcaster, workers int) (*Relay, error) {
	if workers <= 0 {
		workers = 1
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("create chat pool: %w", err)
	}
	return &Relay{store: store, broadcaster: broadcaster, pool: pool}, nil
}

// Close 释放消息持久化协程池
func (r *Relay) Close() {
	r.pool.Release()
}

// Authorize 建立连接前的权限校验
func (r *Relay) Authorize(actor logic.Actor, roomId int64) error {
	_, err := r.store.AuthorizeRoom(actor, roomId)
	return err
}

// Serve 处理一条连接直到客户端断开或 ctx 取消
func (r *Relay) Serve(ctx context.Context, actor logic.Actor, roomId int64, sess Session) error {
	if err := r.Authorize(actor, roomId); err != nil {
		_ = sess.Close()
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := make(chan []byte, sendBuffer)
	unsubscribe := r.broadcaster.Subscribe(roomId, func(payload []byte) {
		select {
		case out <- payload:
		default:
			logger.Warn("Dropping chat frame for slow session in room %d", roomId)
		}
	})

	if actor.IsStaff {
		if err := r.store.AssignCounselor(roomId, actor.Id); err != nil {
			logger.Error("Failed to assign counselor %d to room %d: %v", actor.Id, roomId, err)
		}
	}

	metrics.ChatConnections.Inc()
	logger.Info("Chat session opened: room=%d user=%d staff=%v", roomId, actor.Id, actor.IsStaff)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case payload := <-out:
				if err := sess.WriteMessage(payload); err != nil {
					logger.Debug("Chat write failed in room %d: %v", roomId, err)
					cancel()
					return
				}
			}
		}
	}()

	defer func() {
		unsubscribe()
		if actor.IsStaff {
			if err := r.store.ReleaseCounselor(roomId, actor.Id); err != nil {
				logger.Error("Failed to release counselor %d from room %d: %v", actor.Id, roomId, err)
			}
		}
		cancel()
		_ = sess.Close()
		<-writerDone
		metrics.ChatConnections.Dec()
		logger.Info("Chat session closed: room=%d user=%d", roomId, actor.Id)
	}()

	go func() {
		<-ctx.Done()
		_ = sess.Close()
	}()

	for {
		data, err := sess.ReadMessage()
		if err != nil {
			// 客户端断开
			return nil
		}

		var frame inbound
		if err := json.Unmarshal(data, &frame); err != nil {
			logger.Debug("Ignoring malformed chat frame in room %d: %v", roomId, err)
			continue
		}
		if frame.Command != CommandNewMessage {
			logger.Debug("Ignoring unknown chat command %q in room %d", frame.Command, roomId)
			continue
		}

		if err := r.HandleMessage(ctx, actor, roomId, frame.Message); err != nil {
			if logic.KindOf(err) == logic.KindValidation {
				continue
			}
			logger.Error("Failed to handle chat message in room %d: %v", roomId, err)
		}
	}
}

// HandleMessage 持久化后广播，再更新会话的待回复状态
func (r *Relay) HandleMessage(ctx context.Context, actor logic.Actor, roomId int64, text string) error {
	type result struct {
		msg *model.MessageModel
		err error
	}
	done := make(chan result, 1)
	if err := r.pool.Submit(func() {
		msg, err := r.store.SaveMessage(roomId, actor, text)
		done <- result{msg: msg, err: err}
	}); err != nil {
		return fmt.Errorf("submit message: %w", err)
	}

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if res.err != nil {
		return res.err
	}

	payload, err := json.Marshal(Outbound{
		UserId:    actor.Email,
		Message:   res.msg.Message,
		Timestamp: res.msg.CreatedAt.Format(timestampLayout),
	})
	if err != nil {
		return err
	}
	if err := r.broadcaster.Publish(ctx, roomId, payload); err != nil {
		return fmt.Errorf("broadcast: %w", err)
	}

	if _, err := r.store.MarkActivity(ctx, roomId, actor); err != nil {
		return fmt.Errorf("mark room %d activity: %w", roomId, err)
	}
	return nil
}
