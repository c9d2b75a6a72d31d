// Package rekey implements the in-band session rekey control plane: either
// peer can propose a fresh master key mid-session without tearing the
// session down, generalizing the teacher's Stable/Installing/Pending rekey
// state machine onto the AEAD instance's own Rekey operation.
package rekey

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync"

	"tunnelcore/domain/protocol"
	"tunnelcore/infrastructure/aead"
)

// State names the controller's position in the rekey handshake.
type State int

const (
	// Stable: no rekey in flight; the current master key is in effect on
	// both directions.
	Stable State = iota
	// Pending: this side sent RekeyInit and is waiting for RekeyAck.
	Pending
	// Installing: this side received RekeyInit and has applied the new key
	// locally; AckSent returns it to Stable once RekeyAck has been sent.
	Installing
)

func (s State) String() string {
	switch s {
	case Stable:
		return "stable"
	case Pending:
		return "pending"
	case Installing:
		return "installing"
	default:
		return "unknown"
	}
}

// ErrRekeyInProgress is returned by BeginRekey when a rekey is already in flight.
var ErrRekeyInProgress = errors.New("rekey: already in progress")

// Controller drives one session's rekey state machine. It holds the
// session's send and receive AEAD instances and rekeys both from the same
// new master key, since the protocol uses one master key per session
// (derived independently into a send session key and a receive session key
// on each peer).
type Controller struct {
	mu         sync.Mutex
	state      State
	send       *aead.Instance
	recv       *aead.Instance
	pendingKey []byte // set while state == Pending, the key proposed by BeginRekey
}

// NewController returns a Controller in the Stable state.
func NewController(send, recv *aead.Instance) *Controller {
	return &Controller{send: send, recv: recv}
}

// State returns the controller's current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// BeginRekey generates a fresh master key, transitions to Pending, and
// returns the key to send in a RekeyInit control message. Callers must not
// apply it locally until the peer's RekeyAck arrives.
func (c *Controller) BeginRekey() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Stable {
		return nil, ErrRekeyInProgress
	}
	newKey := make([]byte, protocol.KeySize)
	if _, err := rand.Read(newKey); err != nil {
		return nil, fmt.Errorf("rekey: generate key: %w", err)
	}
	c.state = Pending
	c.pendingKey = newKey
	return newKey, nil
}

// OnRekeyInit handles a RekeyInit received from the peer: applies the new
// key to both AEAD directions immediately (the sender already committed to
// it) and transitions to Installing so the caller can reply RekeyAck.
func (c *Controller) OnRekeyInit(newKey []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.send.Rekey(newKey); err != nil {
		return err
	}
	if err := c.recv.Rekey(newKey); err != nil {
		return err
	}
	c.state = Installing
	return nil
}

// OnRekeyAck handles the peer's RekeyAck for a rekey this side proposed:
// installs the previously generated key locally and returns to Stable. If
// applied is false, the proposal is abandoned and the old key remains.
func (c *Controller) OnRekeyAck(applied bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Pending {
		return fmt.Errorf("rekey: unexpected ack in state %s", c.state)
	}
	if applied {
		if err := c.send.Rekey(c.pendingKey); err != nil {
			return err
		}
		if err := c.recv.Rekey(c.pendingKey); err != nil {
			return err
		}
	}
	c.pendingKey = nil
	c.state = Stable
	return nil
}

// AckSent marks the Installing state as complete once this side has sent
// its RekeyAck back to the peer.
func (c *Controller) AckSent() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Installing {
		c.state = Stable
	}
}
