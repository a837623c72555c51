package websocket

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const (
	mirrorChannelPrefix = "whiteboard:room:"
	mirrorQueueSize     = 256
	mirrorPublishWait   = 2 * time.Second
)

// Publisher mirrors room broadcasts to an external channel. Mirroring is
// one-way: nothing published is ever read back into a room.
type Publisher interface {
	Publish(roomID string, message []byte)
	Close() error
}

type mirrorJob struct {
	roomID  string
	message []byte
}

// RedisPublisher PUBLISHes every room-wide frame to whiteboard:room:<id>.
// Publishing happens on its own goroutine so a slow Redis never stalls the hub.
type RedisPublisher struct {
	client *redis.Client
	jobs   chan mirrorJob
	done   chan struct{}
	once   sync.Once
	log    *logrus.Entry
}

func NewRedisPublisher(addr, password string) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	return newRedisPublisher(client)
}

func newRedisPublisher(client *redis.Client) *RedisPublisher {
	p := &RedisPublisher{
		client: client,
		jobs:   make(chan mirrorJob, mirrorQueueSize),
		done:   make(chan struct{}),
		log:    logrus.WithField("component", "redis_mirror"),
	}
	go p.run()
	return p
}

// Ping checks connectivity so misconfiguration shows up at startup.
func (p *RedisPublisher) Ping(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis mirror: ping: %w", err)
	}
	return nil
}

func (p *RedisPublisher) Publish(roomID string, message []byte) {
	select {
	case <-p.done:
		return
	default:
	}

	select {
	case p.jobs <- mirrorJob{roomID: roomID, message: message}:
	default:
		p.log.WithField("room_id", roomID).Warn("mirror queue full, dropping frame")
	}
}

func (p *RedisPublisher) run() {
	for {
		select {
		case <-p.done:
			return
		case job := <-p.jobs:
			ctx, cancel := context.WithTimeout(context.Background(), mirrorPublishWait)
			err := p.client.Publish(ctx, MirrorChannel(job.roomID), job.message).Err()
			cancel()
			if err != nil {
				p.log.WithError(err).WithField("room_id", job.roomID).Warn("redis publish failed")
			}
		}
	}
}

func (p *RedisPublisher) Close() error {
	var err error
	p.once.Do(func() {
		close(p.done)
		err = p.client.Close()
	})
	return err
}

func MirrorChannel(roomID string) string {
	return mirrorChannelPrefix + roomID
}
