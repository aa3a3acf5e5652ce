package verify

import "fmt"

// PacketType identifies which typed-hash handler a packet routes
// through (spec.md §4.4 "pluggable handlers keyed by packet type").
type PacketType string

const (
	PacketEpochRollover   PacketType = "EpochRollover"
	PacketSafeTransaction PacketType = "SafeTransaction"
)

// Engine verifies packets and remembers every hash it has accepted;
// IsVerified answers whether a hash was accepted. pkg/statemachine
// does not consult the engine: handleSignRequest opens a signing
// session in collect_nonce_commitments without checking this cache.
//
// The engine is only ever called from the single-threaded driver, so
// the cache needs no additional locking (spec.md §5 "Shared
// resources").
type Engine struct {
	domain     Domain
	safeConfig SafeConfig
	verified   map[[32]byte]struct{}
}

// NewEngine constructs a verification engine for the given EIP-712
// domain and SafeTransaction admission policy.
func NewEngine(domain Domain, safeConfig SafeConfig) *Engine {
	return &Engine{
		domain:     domain,
		safeConfig: safeConfig,
		verified:   make(map[[32]byte]struct{}),
	}
}

// VerifyEpochRollover hashes and admits an EpochRollover packet. There
// are no additional predicates beyond the typed hash itself.
func (e *Engine) VerifyEpochRollover(p EpochRolloverPacket) ([32]byte, error) {
	hash, err := HashEpochRollover(e.domain, p)
	if err != nil {
		return [32]byte{}, err
	}
	e.verified[hash] = struct{}{}
	return hash, nil
}

// VerifySafeTransaction runs the three ordered SafeTransaction checks
// of spec.md §4.4, then hashes and admits the packet. A failing check
// returns an error and the packet is never admitted — the signing flow
// must never be entered for it.
func (e *Engine) VerifySafeTransaction(p SafeTransactionPacket) ([32]byte, error) {
	if err := CheckSafeTransaction(e.safeConfig, p); err != nil {
		return [32]byte{}, err
	}

	hash, err := HashSafeTransaction(e.domain, p)
	if err != nil {
		return [32]byte{}, err
	}
	e.verified[hash] = struct{}{}
	return hash, nil
}

// IsVerified reports whether hash has previously passed verification.
func (e *Engine) IsVerified(hash [32]byte) bool {
	_, ok := e.verified[hash]
	return ok
}

// Forget removes hash from the verified set once its signing session
// has concluded, so the cache does not grow unbounded across the
// node's lifetime.
func (e *Engine) Forget(hash [32]byte) {
	delete(e.verified, hash)
}

// Verify dispatches to the handler named by t, so callers that only
// know a packet's discriminant tag don't need a type switch of their
// own.
func (e *Engine) Verify(t PacketType, raw interface{}) ([32]byte, error) {
	switch t {
	case PacketEpochRollover:
		p, ok := raw.(EpochRolloverPacket)
		if !ok {
			return [32]byte{}, fmt.Errorf("verify: packet type %q expects EpochRolloverPacket, got %T", t, raw)
		}
		return e.VerifyEpochRollover(p)
	case PacketSafeTransaction:
		p, ok := raw.(SafeTransactionPacket)
		if !ok {
			return [32]byte{}, fmt.Errorf("verify: packet type %q expects SafeTransactionPacket, got %T", t, raw)
		}
		return e.VerifySafeTransaction(p)
	default:
		return [32]byte{}, fmt.Errorf("verify: no handler registered for packet type %q", t)
	}
}
