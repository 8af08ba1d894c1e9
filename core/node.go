package core

import (
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/DEGAorg/DEGA-ETH-ISPO/core/events"
	"github.com/DEGAorg/DEGA-ETH-ISPO/core/state"
	"github.com/DEGAorg/DEGA-ETH-ISPO/core/types"
	"github.com/DEGAorg/DEGA-ETH-ISPO/native/ispo"
	"github.com/DEGAorg/DEGA-ETH-ISPO/observability"
	"github.com/DEGAorg/DEGA-ETH-ISPO/storage"
)

// eventBufferLimit bounds the in-memory tail kept for RPC consumers; indexers
// that need full history subscribe upstream.
const eventBufferLimit = 1024

// Node wires the storage, state manager, vault binding and accounting engine
// together and retains a bounded tail of emitted events for RPC consumers.
type Node struct {
	db      storage.Database
	manager *state.Manager
	engine  *ispo.Engine
	logger  *slog.Logger

	mu     sync.RWMutex
	events []types.Event
}

// NewNode constructs a node over the given database and vault. poolAddr is
// the vault account the ledger holds its shares under.
func NewNode(db storage.Database, vault ispo.StakedAssetVault, poolAddr common.Address, logger *slog.Logger) *Node {
	if logger == nil {
		logger = slog.Default()
	}
	manager := state.NewManager(db)
	engine := ispo.NewEngine(poolAddr)
	engine.SetState(manager)
	engine.SetVault(vault)

	node := &Node{
		db:      db,
		manager: manager,
		engine:  engine,
		logger:  logger,
	}
	engine.SetEmitter(node)
	return node
}

// Engine exposes the accounting engine to the RPC layer.
func (n *Node) Engine() *ispo.Engine { return n.engine }

// Emit implements events.Emitter: the broadcast payload is appended to the
// bounded tail, logged, and mirrored into metrics.
func (n *Node) Emit(event events.Event) {
	payloader, ok := event.(interface{ Event() *types.Event })
	if !ok {
		return
	}
	payload := payloader.Event()
	if payload == nil {
		return
	}

	n.mu.Lock()
	n.events = append(n.events, *payload)
	if len(n.events) > eventBufferLimit {
		n.events = n.events[len(n.events)-eventBufferLimit:]
	}
	n.mu.Unlock()

	n.logger.Info("pool event", slog.String("type", payload.Type), slog.Any("attributes", payload.Attributes))

	switch event.EventType() {
	case events.TypeRewardsAssigned:
		observability.PoolMetrics().RecordRewardSkim()
	case events.TypePoolPaused:
		observability.PoolMetrics().SetPaused(payload.Attributes["paused"] == "true")
	}
}

// Events returns a copy of the retained event tail, oldest first.
func (n *Node) Events() []types.Event {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]types.Event, len(n.events))
	copy(out, n.events)
	return out
}

// Close releases the underlying database.
func (n *Node) Close() {
	if n == nil || n.db == nil {
		return
	}
	n.db.Close()
}
