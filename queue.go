package hbbft

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/DE-labtory/iLogger"
)

type TxQueue interface {
	Push(tx Transaction)
	Poll() (Transaction, error)
	Len() int
}

// MemTxQueue defines transaction FIFO queue
type MemTxQueue struct {
	txs []Transaction
	sync.RWMutex
}

// indexBoundaryErr is for calling at
type indexBoundaryErr struct {
	queSize int
	want    int
}

func (e *indexBoundaryErr) Error() string {
	return fmt.Sprintf("index is larger than queue size. queue size : %d, you want : %d", e.queSize, e.want)
}

func NewTxQueue() *MemTxQueue {
	return &MemTxQueue{
		txs: []Transaction{},
	}
}

// empty checks whether queue is empty or not.
func (q *MemTxQueue) empty() bool {
	return len(q.txs) == 0
}

// peek returns first element of queue, but not erase it.
func (q *MemTxQueue) peek() (Transaction, error) {
	if q.empty() {
		return nil, ErrEmptyQueue
	}

	return q.txs[0], nil
}

// Poll returns first element of queue, and erase it.
func (q *MemTxQueue) Poll() (Transaction, error) {
	q.Lock()
	defer q.Unlock()

	ret, err := q.peek()
	if err != nil {
		return nil, err
	}

	q.txs = q.txs[1:]
	return ret, nil
}

func (q *MemTxQueue) Len() int {
	q.RLock()
	defer q.RUnlock()
	return len(q.txs)
}

// at returns element of index in queue
func (q *MemTxQueue) at(index int) (Transaction, error) {
	size := q.Len()
	if index >= size {
		return nil, &indexBoundaryErr{
			queSize: size,
			want:    index,
		}
	}
	q.RLock()
	defer q.RUnlock()
	return q.txs[index], nil
}

// Push adds transaction to queue.
func (q *MemTxQueue) Push(tx Transaction) {
	q.Lock()
	defer q.Unlock()

	q.txs = append(q.txs, tx)
}

type TxValidator func(Transaction) bool

// HoneyBadger is a consensus component which contribution is proposed to
type HoneyBadger interface {
	HandleContribution(contribution Contribution) error
	OnConsensus() bool
	// EpochStarted reports whether other members already proposed in
	// current epoch
	EpochStarted() bool
}

// TxQueueManager manages transaction queue. It receive transaction from client
// and TxQueueManager have its own policy to propose contribution to honeybadger
type TxQueueManager interface {
	AddTransaction(tx Transaction) error
	Len() int
}

type DefaultTxQueueManager struct {
	txQueue TxQueue
	hb      HoneyBadger

	stopFlag int32

	contributionSize int
	batchSize        int

	closeChan chan struct{}

	tryInterval time.Duration

	txValidator TxValidator

	random *rand.Rand
}

func NewDefaultTxQueueManager(
	txQueue TxQueue,
	hb HoneyBadger,
	contributionSize int,
	batchSize int,

	// tryInterval is time interval to try create contribution
	// then propose to honeybadger component
	tryInterval time.Duration,

	txValidator TxValidator,
) *DefaultTxQueueManager {
	m := &DefaultTxQueueManager{
		txQueue:          txQueue,
		hb:               hb,
		contributionSize: contributionSize,
		batchSize:        batchSize,

		closeChan:   make(chan struct{}),
		tryInterval: tryInterval,
		txValidator: txValidator,
		random:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	go m.runContributionProposeRoutine()

	return m
}

func (m *DefaultTxQueueManager) AddTransaction(tx Transaction) error {
	if m.txValidator != nil && !m.txValidator(tx) {
		return fmt.Errorf("error invalid transaction: %v", tx)
	}
	m.txQueue.Push(tx)
	return nil
}

func (m *DefaultTxQueueManager) Len() int {
	return m.txQueue.Len()
}

func (m *DefaultTxQueueManager) Close() {
	if first := atomic.CompareAndSwapInt32(&m.stopFlag, int32(0), int32(1)); !first {
		return
	}
	m.closeChan <- struct{}{}
	<-m.closeChan
}

func (m *DefaultTxQueueManager) toDie() bool {
	return atomic.LoadInt32(&(m.stopFlag)) == int32(1)
}

// runContributionProposeRoutine tries to propose contribution every its "tryInterval"
// And if honeybadger is on consensus, it waits
func (m *DefaultTxQueueManager) runContributionProposeRoutine() {
	ticker := time.NewTicker(m.tryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.closeChan:
			m.closeChan <- struct{}{}
			return
		case <-ticker.C:
			if m.toDie() || m.hb.OnConsensus() {
				continue
			}
			iLogger.Debugf(nil, "[DefaultTxQueueManager] try to propose contribution...")
			if err := m.tryPropose(); err != nil {
				iLogger.Errorf(nil, "[DefaultTxQueueManager] failed to propose contribution: %s", err.Error())
			}
		}
	}
}

// tryPropose create contribution and send it to honeybadger only when
// transaction queue size is larger than contribution size. When other members
// already started the epoch, smaller contribution is proposed not to stall it.
func (m *DefaultTxQueueManager) tryPropose() error {
	if m.txQueue.Len() < m.contributionSize && !m.hb.EpochStarted() {
		return nil
	}

	contribution, err := m.createContribution()
	if err != nil {
		return err
	}

	return m.hb.HandleContribution(contribution)
}

// Create contribution polling random transaction in queue
// One caution is that caller of this function should ensure transaction queue
// size is larger than contribution size
func (m *DefaultTxQueueManager) createContribution() (Contribution, error) {
	candidate, err := m.loadCandidateTx(min(m.batchSize, m.txQueue.Len()))
	if err != nil {
		return Contribution{}, err
	}

	return Contribution{
		TxList: m.selectRandomTx(candidate, min(m.contributionSize, len(candidate))),
	}, nil
}

// loadCandidateTx is a function that returns candidate transactions which could be
// included into contribution from the queue
func (m *DefaultTxQueueManager) loadCandidateTx(candidateSize int) ([]Transaction, error) {
	candidate := make([]Transaction, candidateSize)
	var err error
	for i := 0; i < candidateSize; i++ {
		candidate[i], err = m.txQueue.Poll()

		if err != nil {
			return nil, err
		}
	}
	return candidate, nil
}

// selectRandomTx is a function that returns transactions which is randomly selected from input transactions
// not selected transactions are pushed back to the queue
func (m *DefaultTxQueueManager) selectRandomTx(candidate []Transaction, selectSize int) []Transaction {
	batch := make([]Transaction, selectSize)

	for i := 0; i < selectSize; i++ {
		idx := m.random.Intn(len(candidate))

		batch[i] = candidate[idx]
		candidate = append(candidate[:idx], candidate[idx+1:]...)
	}
	for _, leftover := range candidate {
		m.txQueue.Push(leftover)
	}
	return batch
}

func min(x int, y int) int {
	if x < y {
		return x
	}
	return y
}
