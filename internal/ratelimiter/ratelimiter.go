package ratelimiter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	privateChatRate = time.Second
	groupChatRate   = 3 * time.Second
	queueSize       = 1000
)

// API is the part of the Telegram client the limiter needs.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type request struct {
	message  tgbotapi.Chattable
	response chan response
}

type response struct {
	message tgbotapi.Message
	err     error
}

// RateLimiter sends messages one at a time, keeping Telegram's per-chat
// pace: one message a second in private chats, one every three seconds in
// groups.
type RateLimiter struct {
	api      API
	queue    chan request
	lastSent map[int64]time.Time
	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	log      *slog.Logger
}

func New(api API, log *slog.Logger) *RateLimiter {
	ctx, cancel := context.WithCancel(context.Background())

	rl := &RateLimiter{
		api:      api,
		queue:    make(chan request, queueSize),
		lastSent: make(map[int64]time.Time),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		log:      log,
	}

	go rl.processQueue()

	return rl
}

// Send queues message and waits until it is sent, ctx is done or the
// limiter is stopped.
func (rl *RateLimiter) Send(
	ctx context.Context,
	message tgbotapi.Chattable,
) (tgbotapi.Message, error) {
	req := request{
		message:  message,
		response: make(chan response, 1),
	}

	select {
	case rl.queue <- req:
	case <-ctx.Done():
		return tgbotapi.Message{}, ctx.Err()
	case <-rl.ctx.Done():
		return tgbotapi.Message{}, rl.ctx.Err()
	}

	select {
	case resp := <-req.response:
		return resp.message, resp.err
	case <-ctx.Done():
		return tgbotapi.Message{}, ctx.Err()
	case <-rl.done:
		return tgbotapi.Message{}, rl.ctx.Err()
	}
}

// Request bypasses the queue. It is meant for calls that post no message,
// such as answering callback queries.
func (rl *RateLimiter) Request(
	c tgbotapi.Chattable,
) (*tgbotapi.APIResponse, error) {
	return rl.api.Request(c)
}

// Stop stops the queue. Queued messages fail with context.Canceled.
func (rl *RateLimiter) Stop() {
	rl.cancel()
	<-rl.done
}

func (rl *RateLimiter) processQueue() {
	defer close(rl.done)

	for {
		select {
		case req := <-rl.queue:
			rl.handleRequest(req)
		case <-rl.ctx.Done():
			for {
				select {
				case req := <-rl.queue:
					req.response <- response{err: rl.ctx.Err()}
				default:
					return
				}
			}
		}
	}
}

func (rl *RateLimiter) handleRequest(req request) {
	chatID := chatIDOf(req.message)

	rl.mu.Lock()
	lastSent, exists := rl.lastSent[chatID]
	rl.mu.Unlock()

	if exists {
		delay := max(paceFor(chatID)-time.Since(lastSent), 0)

		if delay > 0 {
			rl.log.DebugContext(rl.ctx, "Rate limiting message",
				"chatID", chatID,
				"delay", delay,
				"chattableType", fmt.Sprintf("%T", req.message),
				"queueLen", len(rl.queue))

			select {
			case <-time.After(delay):
			case <-rl.ctx.Done():
				req.response <- response{
					err: rl.ctx.Err(),
				}

				return
			}
		}
	}

	message, err := rl.api.Send(req.message)

	rl.mu.Lock()
	rl.lastSent[chatID] = time.Now()
	rl.mu.Unlock()

	req.response <- response{
		message: message,
		err:     err,
	}
}

// chatIDOf returns the target chat of message, or 0 when the limiter does
// not know its type. Unknown types share one pacing slot.
func chatIDOf(message tgbotapi.Chattable) int64 {
	switch m := message.(type) {
	case tgbotapi.MessageConfig:
		return m.ChatID
	case tgbotapi.ChatActionConfig:
		return m.ChatID
	default:
		return 0
	}
}

// paceFor is the minimum gap between two messages to chatID. Group chats
// have negative ids.
func paceFor(chatID int64) time.Duration {
	if chatID < 0 {
		return groupChatRate
	}
	return privateChatRate
}
