package delayer

import (
	"sync"

	"github.com/GPTx-global/oracle-relayer/oracle/log"
	"github.com/GPTx-global/oracle-relayer/oracle/metrics"
	"github.com/GPTx-global/oracle-relayer/oracle/types"
)

// Handler receives a request once it has enough confirmations.
type Handler func(request types.OracleRequest)

// Delayer holds detected requests until the origin chain is deep enough.
type Delayer struct {
	networkID string

	mu          sync.Mutex
	latestBlock *types.Block
	pending     map[string]types.OracleRequest
	order       []string
	handlers    []Handler
}

// New creates a delayer for one network adapter.
func New(networkID string) *Delayer {
	return &Delayer{
		networkID: networkID,
		pending:   make(map[string]types.OracleRequest),
	}
}

// OnRequestReady registers a handler. Every handler receives every released request.
func (d *Delayer) OnRequestReady(handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.handlers = append(d.handlers, handler)
}

// AddRequest buffers a request. A request already pending is ignored.
func (d *Delayer) AddRequest(request types.OracleRequest) {
	id := types.PairID(&request)

	d.mu.Lock()
	if _, ok := d.pending[id]; ok {
		d.mu.Unlock()
		return
	}
	d.pending[id] = request
	d.order = append(d.order, id)
	d.mu.Unlock()

	log.Debugf("[%s] Delaying %q until %d confirmations", d.networkID, id, request.ConfirmationsRequired)
}

// SetBlock records the latest head and releases every request it confirms.
func (d *Delayer) SetBlock(block types.Block) {
	d.mu.Lock()
	b := block
	d.latestBlock = &b

	var ready []types.OracleRequest
	remaining := d.order[:0]
	for _, id := range d.order {
		request := d.pending[id]
		// A head below the origin block has not seen the request yet.
		if block.Number < request.Block.Number ||
			block.Number-request.Block.Number < request.ConfirmationsRequired {
			remaining = append(remaining, id)
			continue
		}

		delete(d.pending, id)
		request.Confirmations = block.Number - request.Block.Number
		ready = append(ready, request)
	}
	d.order = remaining
	handlers := append([]Handler(nil), d.handlers...)
	d.mu.Unlock()

	for _, request := range ready {
		log.Debugf("[%s] Released %q at block #%d with %d confirmations",
			d.networkID, types.PairID(&request), block.Number, request.Confirmations)
		metrics.RequestReleased(d.networkID)
		for _, handler := range handlers {
			handler(request)
		}
	}
}

// LatestBlock returns the last head seen, or nil before the first poll.
func (d *Delayer) LatestBlock() *types.Block {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.latestBlock == nil {
		return nil
	}
	b := *d.latestBlock
	return &b
}

// Pending reports how many requests are waiting for confirmations.
func (d *Delayer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.order)
}
