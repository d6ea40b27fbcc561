package bus

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"Decibel/logger"
)

// Module is a unit of the player reacting to bus messages.
type Module interface {
	Name() string
	Subscriptions() []Kind
	HandleMsg(ctx context.Context, msg Message)
}

// Poster is the part of the bus modules use to talk to each other.
type Poster interface {
	Post(msg Message)
}

// mailbox is an unbounded FIFO with a wake-up signal.
type mailbox struct {
	mu     sync.Mutex
	items  []Message
	closed bool
	wake   chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{wake: make(chan struct{}, 1)}
}

func (m *mailbox) push(msg Message) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.items = append(m.items, msg)
	m.mu.Unlock()
	m.signal()
	return true
}

func (m *mailbox) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *mailbox) take() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := m.items
	m.items = nil
	return items
}

func (m *mailbox) close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.signal()
}

// finished reports whether the mailbox is closed and nothing is left in it.
func (m *mailbox) finished() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed && len(m.items) == 0
}

func (m *mailbox) empty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items) == 0
}

type subscriber struct {
	module Module
	inbox  *mailbox // nil: handled on the control goroutine
}

// Bus dispatches messages from a single control goroutine.
// Messages posted from any goroutine are delivered in posting order.
type Bus struct {
	queue *mailbox

	mu      sync.RWMutex
	subs    map[Kind][]*subscriber
	async   []*subscriber
	running bool
	wg      sync.WaitGroup
}

func New() *Bus {
	return &Bus{
		queue: newMailbox(),
		subs:  make(map[Kind][]*subscriber),
	}
}

// Register adds a module whose handlers run on the control goroutine.
// Its handlers must not block.
func (b *Bus) Register(m Module) {
	b.register(&subscriber{module: m})
}

// RegisterAsync adds a module that gets its own goroutine and queue.
// Messages still reach it in posting order.
func (b *Bus) RegisterAsync(m Module) {
	b.register(&subscriber{module: m, inbox: newMailbox()})
}

func (b *Bus) register(s *subscriber) {
	b.mu.Lock()
	for _, k := range s.module.Subscriptions() {
		b.subs[k] = append(b.subs[k], s)
	}
	if s.inbox != nil {
		b.async = append(b.async, s)
	}
	b.mu.Unlock()

	logger.Debug("module registered",
		logger.Module(s.module.Name()),
		logger.Bool("async", s.inbox != nil))
	b.Post(ModLoaded{Name: s.module.Name()})
}

// Post queues msg for delivery. It never blocks.
func (b *Bus) Post(msg Message) {
	if !b.queue.push(msg) {
		logger.Debug("bus closed, message dropped", logger.String("kind", msg.Kind().String()))
	}
}

// Run is the control loop. It returns when ctx is done, or once the queue is
// empty after AppQuit has been dispatched.
func (b *Bus) Run(ctx context.Context) error {
	b.mu.Lock()
	b.running = true
	for _, s := range b.async {
		b.wg.Add(1)
		go b.worker(ctx, s)
	}
	b.mu.Unlock()

	defer func() {
		b.queue.close()
		b.mu.RLock()
		for _, s := range b.async {
			s.inbox.close()
		}
		b.mu.RUnlock()
		b.wg.Wait()
	}()

	quitting := false
	for {
		msgs := b.queue.take()
		for _, msg := range msgs {
			b.dispatch(ctx, msg)
			if msg.Kind() == EvtAppQuit {
				quitting = true
			}
		}
		if quitting && b.queue.empty() {
			logger.Info("bus stopped after quit")
			return nil
		}
		if len(msgs) > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.queue.wake:
		}
	}
}

// Drain handles everything queued so far, including what handlers post while
// draining. When Run is not active, async modules are served inline too.
func (b *Bus) Drain(ctx context.Context) {
	for {
		handled := 0
		for _, msg := range b.queue.take() {
			b.dispatch(ctx, msg)
			handled++
		}

		b.mu.RLock()
		inline := !b.running
		async := b.async
		b.mu.RUnlock()
		if inline {
			for _, s := range async {
				for _, msg := range s.inbox.take() {
					b.handle(ctx, s.module, msg)
					handled++
				}
			}
		}

		if handled == 0 {
			return
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, msg Message) {
	b.mu.RLock()
	subs := b.subs[msg.Kind()]
	b.mu.RUnlock()

	for _, s := range subs {
		if s.inbox != nil {
			s.inbox.push(msg)
			continue
		}
		b.handle(ctx, s.module, msg)
	}
}

func (b *Bus) worker(ctx context.Context, s *subscriber) {
	defer b.wg.Done()
	for {
		msgs := s.inbox.take()
		for _, msg := range msgs {
			b.handle(ctx, s.module, msg)
		}
		if len(msgs) > 0 {
			continue
		}
		if s.inbox.finished() {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-s.inbox.wake:
		}
	}
}

// handle runs one handler and recovers its panics.
func (b *Bus) handle(ctx context.Context, m Module, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("module handler panicked",
				logger.Module(m.Name()),
				logger.String("kind", msg.Kind().String()),
				logger.String("panic", fmt.Sprint(r)),
				logger.String("stack", string(debug.Stack())))
		}
	}()
	m.HandleMsg(ctx, msg)
}
