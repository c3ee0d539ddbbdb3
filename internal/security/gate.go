// Package security gates the wireless control plane: device allowlist,
// opcode whitelist, and a per-device command cooldown.
package security

import (
	"errors"
	"sync"
	"time"
)

// Verdict is the admission outcome for one control command.
type Verdict int

const (
	VerdictOK Verdict = iota
	VerdictUnauthorized
	VerdictBadOpcode
	VerdictThrottled
)

func (v Verdict) String() string {
	switch v {
	case VerdictOK:
		return "ok"
	case VerdictUnauthorized:
		return "unauthorized device"
	case VerdictBadOpcode:
		return "invalid opcode"
	case VerdictThrottled:
		return "throttled"
	}
	return "unknown"
}

// Config is the static security table set supplied at startup.
type Config struct {
	AuthorizedDevices []string
	AllowedOpcodes    []byte
	Cooldown          time.Duration
}

// ErrIncomplete rejects a config with a missing allowlist, opcode set,
// or cooldown. The bridge must not start half-gated.
var ErrIncomplete = errors.New("security: incomplete configuration")

func (c Config) validate() error {
	if len(c.AuthorizedDevices) == 0 || len(c.AllowedOpcodes) == 0 || c.Cooldown <= 0 {
		return ErrIncomplete
	}
	return nil
}

// Gate owns the allowlist, the opcode whitelist, and the rate-limit
// ledger. Safe for concurrent use.
type Gate struct {
	mu       sync.Mutex
	devices  map[string]struct{}
	opcodes  map[byte]struct{}
	cooldown time.Duration
	ledger   map[string]time.Time
}

// NewGate builds a Gate from cfg. Fails on an incomplete table set.
func NewGate(cfg Config) (*Gate, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	g := &Gate{}
	g.install(cfg)
	return g, nil
}

func (g *Gate) install(cfg Config) {
	g.devices = make(map[string]struct{}, len(cfg.AuthorizedDevices))
	for _, d := range cfg.AuthorizedDevices {
		g.devices[d] = struct{}{}
	}
	g.opcodes = make(map[byte]struct{}, len(cfg.AllowedOpcodes))
	for _, op := range cfg.AllowedOpcodes {
		g.opcodes[op] = struct{}{}
	}
	g.cooldown = cfg.Cooldown
	g.ledger = make(map[string]time.Time)
}

// Reconfigure swaps the tables and clears the rate-limit ledger.
func (g *Gate) Reconfigure(cfg Config) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.install(cfg)
	return nil
}

// Authorized reports whether identity is on the allowlist.
func (g *Gate) Authorized(identity string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.devices[identity]
	return ok
}

// ValidOpcode reports whether opcode is whitelisted.
func (g *Gate) ValidOpcode(opcode byte) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.opcodes[opcode]
	return ok
}

// Throttle is the atomic check-and-record: true when identity sent a
// command less than one cooldown ago. Otherwise the ledger entry is
// updated to now and the command passes. A previously-unseen identity
// is never throttled.
func (g *Gate) Throttle(identity string, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.throttleLocked(identity, now)
}

func (g *Gate) throttleLocked(identity string, now time.Time) bool {
	if last, ok := g.ledger[identity]; ok && now.Sub(last) < g.cooldown {
		return true
	}
	g.ledger[identity] = now
	return false
}

// Admit runs the full admission sequence under one lock: allowlist,
// rate limit, opcode. An unauthorized command never touches the
// ledger.
func (g *Gate) Admit(identity string, opcode byte, now time.Time) Verdict {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.devices[identity]; !ok {
		return VerdictUnauthorized
	}
	if g.throttleLocked(identity, now) {
		return VerdictThrottled
	}
	if _, ok := g.opcodes[opcode]; !ok {
		return VerdictBadOpcode
	}
	return VerdictOK
}
