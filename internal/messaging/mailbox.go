// Package messaging carries messages between the modules of a multi-agent
// system. Delivery is in-process: each receiver has its own FIFO queue.
package messaging

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"bdicore/internal/logging"
	"bdicore/internal/term"
)

// ErrUnknownReceiver is returned when posting to a name with no queue.
var ErrUnknownReceiver = errors.New("unknown receiver")

// Message is one inter-agent message.
type Message struct {
	ID           string
	Sender       string
	Receiver     string
	Performative string
	Content      term.Term
	Sent         time.Time
}

// Event returns the message as the stimulus handed to event rules:
// message(Sender, Performative, Content).
func (m Message) Event() term.Term {
	return term.Fn("message", term.Ident{Name: m.Sender}, term.Ident{Name: m.Performative}, m.Content)
}

func (m Message) String() string {
	return fmt.Sprintf("%s -> %s: %s(%s)", m.Sender, m.Receiver, m.Performative, m.Content)
}

// Mailbox holds one queue per registered receiver. It is safe for
// concurrent use.
type Mailbox struct {
	mu     sync.Mutex
	queues map[string][]Message
}

// NewMailbox creates a mailbox with queues for names.
func NewMailbox(names ...string) *Mailbox {
	mb := &Mailbox{queues: make(map[string][]Message)}
	for _, n := range names {
		mb.queues[n] = nil
	}
	return mb
}

// Register opens a queue for name. Registering twice keeps the queue.
func (mb *Mailbox) Register(name string) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if _, ok := mb.queues[name]; !ok {
		mb.queues[name] = nil
	}
}

// Post queues a message. The content must be ground.
func (mb *Mailbox) Post(sender, receiver, performative string, content term.Term) (Message, error) {
	if err := term.RequireGround(content); err != nil {
		return Message{}, fmt.Errorf("message to %s: %w", receiver, err)
	}
	msg := Message{
		ID:           uuid.New().String(),
		Sender:       sender,
		Receiver:     receiver,
		Performative: performative,
		Content:      content,
		Sent:         time.Now(),
	}

	mb.mu.Lock()
	defer mb.mu.Unlock()
	q, ok := mb.queues[receiver]
	if !ok {
		return Message{}, fmt.Errorf("%w: %s", ErrUnknownReceiver, receiver)
	}
	mb.queues[receiver] = append(q, msg)
	logging.MessagingDebug("posted %s (%s)", msg, msg.ID)
	return msg, nil
}

// Receive pops the oldest message for name without blocking.
func (mb *Mailbox) Receive(name string) (Message, bool) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	q := mb.queues[name]
	if len(q) == 0 {
		return Message{}, false
	}
	msg := q[0]
	q[0] = Message{}
	mb.queues[name] = q[1:]
	return msg, true
}

// Pending returns the number of queued messages for name.
func (mb *Mailbox) Pending(name string) int {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return len(mb.queues[name])
}
