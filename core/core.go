package core

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/DE-labtory/hbbft"
	"github.com/DE-labtory/hbbft/config"
	"github.com/DE-labtory/hbbft/honeybadger"
	"github.com/DE-labtory/hbbft/log"
	"github.com/DE-labtory/hbbft/pb"
	"github.com/DE-labtory/hbbft/tpke"
)

var ErrNodeClosed = errors.New("node is closed")

type handler struct {
	handleFunc func(msg hbbft.Message)
}

func newHandler(handleFunc func(hbbft.Message)) *handler {
	return &handler{
		handleFunc: handleFunc,
	}
}

func (h *handler) ServeRequest(msg hbbft.Message) {
	h.handleFunc(msg)
}

type Hbbft interface {
	Submit(tx hbbft.Transaction) error
	Run()
	Connect(target string) error
	ConnectAll(targetList []string) error
	ConnectionList() []string
	Result() <-chan hbbft.Batch
	Status() Status
	Close()
}

type Status struct {
	Address     string   `json:"address"`
	Epoch       uint64   `json:"epoch"`
	OnConsensus bool     `json:"onConsensus"`
	QueueLen    int      `json:"queueLen"`
	Members     []string `json:"members"`
	Connections []string `json:"connections"`
	Batches     uint64   `json:"batches"`
	Faults      uint64   `json:"faults"`
}

type proposal struct {
	contribution hbbft.Contribution
	err          chan error
}

// Node runs honeybadger over grpc connections. Every protocol step is
// handled in one event loop, other goroutines only query the node.
type Node struct {
	owner     hbbft.Member
	memberMap *hbbft.MemberMap

	// lock guards hb
	lock sync.RWMutex
	hb   *honeybadger.HoneyBadger

	txQueueManager *hbbft.DefaultTxQueueManager
	batchChan      *hbbft.BatchChannel

	server   *hbbft.GrpcServer
	client   *hbbft.GrpcClient
	connPool *hbbft.ConnectionPool

	inbound     chan *pb.Message
	proposeChan chan proposal
	closeChan   chan struct{}

	batches  uint64
	faults   uint64
	stopFlag int32
}

// New creates node from config file and key share file
func New(txValidator hbbft.TxValidator) (Hbbft, error) {
	conf := config.Get()

	keyShare, err := tpke.ReadKeyShare(conf.Tpke.KeyFile)
	if err != nil {
		return nil, err
	}
	return NewWithConfig(conf, keyShare, txValidator)
}

func NewWithConfig(conf *config.Config, keyShare *tpke.KeyShare, txValidator hbbft.TxValidator) (*Node, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	addr, err := hbbft.ToAddress(conf.Identity.Address)
	if err != nil {
		return nil, err
	}
	owner := *hbbft.NewMemberWithAddress(addr)

	memberMap := hbbft.NewMemberMap()
	for _, addrStr := range conf.Members.Addresses {
		addr, err := hbbft.ToAddress(addrStr)
		if err != nil {
			return nil, err
		}
		memberMap.Add(hbbft.NewMemberWithAddress(addr))
	}
	if idx := memberMap.Index(owner.Address); idx != keyShare.Index {
		return nil, fmt.Errorf("key share index %d does not match member index %d of %s", keyShare.Index, idx, owner.ID())
	}

	provider, err := tpke.New(keyShare)
	if err != nil {
		return nil, err
	}

	hbConf := conf.HoneyBadger
	hb, err := honeybadger.New(
		honeybadger.Config{
			N:               hbConf.NetworkSize,
			F:               hbConf.Byzantine,
			MaxFutureEpochs: hbConf.MaxFutureEpochs,
			RetainedEpochs:  hbConf.RetainedEpochs,
		},
		owner,
		memberMap,
		provider.Encryption,
		honeybadger.NewDefaultACSFactory(hbConf.NetworkSize, hbConf.Byzantine, owner, memberMap, provider.Signer),
	)
	if err != nil {
		return nil, err
	}

	n := &Node{
		owner:       owner,
		memberMap:   memberMap,
		hb:          hb,
		batchChan:   hbbft.NewBatchChannel(hbConf.NetworkSize * 16),
		server:      hbbft.NewServer(addr),
		client:      hbbft.NewClient(),
		connPool:    hbbft.NewConnectionPool(),
		inbound:     make(chan *pb.Message, 1024),
		proposeChan: make(chan proposal),
		closeChan:   make(chan struct{}),
	}

	// contribution size = B / N
	contributionSize := hbConf.BatchSize / hbConf.NetworkSize
	if contributionSize == 0 {
		contributionSize = 1
	}
	n.txQueueManager = hbbft.NewDefaultTxQueueManager(
		hbbft.NewTxQueue(),
		n,
		contributionSize,
		hbConf.BatchSize,
		hbConf.ProposeInterval,
		txValidator,
	)
	return n, nil
}

func (n *Node) Run() {
	handler := newHandler(func(msg hbbft.Message) {
		select {
		case n.inbound <- msg.Message:
		case <-n.closeChan:
		}
	})

	n.server.OnConn(func(conn hbbft.Connection) {
		conn.Handle(handler)
		if err := conn.Start(); err != nil {
			conn.Close()
		}
	})
	n.server.OnErr(func(err error) {
		log.Error("component", "server", "err", err.Error())
	})

	go n.server.Listen()
	go n.run()

	log.Info("message", "node started", "address", n.owner.ID(), "members", n.memberMap.Len())
}

func (n *Node) run() {
	for {
		select {
		case <-n.closeChan:
			return
		case msg := <-n.inbound:
			n.handleMessage(msg)
		case p := <-n.proposeChan:
			p.err <- n.propose(p.contribution)
		}
	}
}

func (n *Node) handleMessage(msg *pb.Message) {
	sender, ok := n.memberMap.MemberByID(msg.Sender)
	if !ok {
		log.Warn("message", "drop message of unknown sender", "sender", msg.Sender)
		return
	}

	n.lock.Lock()
	step, err := n.hb.HandleMessage(sender, msg)
	n.lock.Unlock()
	if err != nil {
		log.Error("message", "failed to handle message", "sender", sender.ID(), "err", err.Error())
	}
	n.apply(step)
}

func (n *Node) propose(contribution hbbft.Contribution) error {
	data, err := contribution.Encode()
	if err != nil {
		return err
	}

	n.lock.Lock()
	step, err := n.hb.Propose(data)
	n.lock.Unlock()
	if err != nil {
		return err
	}
	n.apply(step)
	return nil
}

// apply sends messages of step and delivers its batches
func (n *Node) apply(step honeybadger.Step) {
	for _, fault := range step.Faults {
		atomic.AddUint64(&n.faults, 1)
		log.Warn("message", "fault detected", "fault", fault.String())
	}

	for _, m := range step.Messages {
		if m.Broadcast() {
			n.connPool.ShareMessage(*m.Message)
			continue
		}
		if err := n.connPool.SendTo(m.Target.ID(), *m.Message); err != nil {
			log.Warn("message", "failed to send message", "target", m.Target.ID(), "err", err.Error())
		}
	}

	for _, batch := range step.Batches {
		atomic.AddUint64(&n.batches, 1)
		log.Info("message", "batch output", "epoch", batch.Epoch, "entries", len(batch.Entries), "txs", len(batch.TxList()))
		if !n.batchChan.SendUntil(batch, n.closeChan) {
			log.Warn("message", "node is closed before batch is received", "epoch", batch.Epoch)
			return
		}
	}
}

// HandleContribution proposes contribution in the event loop
func (n *Node) HandleContribution(contribution hbbft.Contribution) error {
	p := proposal{
		contribution: contribution,
		err:          make(chan error, 1),
	}

	select {
	case n.proposeChan <- p:
	case <-n.closeChan:
		return ErrNodeClosed
	}

	select {
	case err := <-p.err:
		return err
	case <-n.closeChan:
		return ErrNodeClosed
	}
}

func (n *Node) OnConsensus() bool {
	n.lock.RLock()
	defer n.lock.RUnlock()

	return n.hb.OnConsensus()
}

func (n *Node) EpochStarted() bool {
	n.lock.RLock()
	defer n.lock.RUnlock()

	return n.hb.EpochStarted()
}

func (n *Node) Submit(tx hbbft.Transaction) error {
	return n.txQueueManager.AddTransaction(tx)
}

// ConnectAll connects every target which is not connected yet. It tries
// every target and returns the last error.
func (n *Node) ConnectAll(targetList []string) error {
	var lastErr error
	for _, target := range targetList {
		if err := n.Connect(target); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func (n *Node) Connect(target string) error {
	addr, err := hbbft.ToAddress(target)
	if err != nil {
		return err
	}
	member, ok := n.memberMap.Member(addr)
	if !ok {
		return fmt.Errorf("%s is not a member", target)
	}
	if member == n.owner {
		return nil
	}
	if _, ok := n.connPool.Get(member.ID()); ok {
		return nil
	}
	return n.connect(member)
}

func (n *Node) connect(member hbbft.Member) error {
	conn, err := n.client.Dial(hbbft.DialOpts{
		Addr:    member.Address,
		Timeout: hbbft.DefaultDialTimeout,
	})
	if err != nil {
		return err
	}
	go func() {
		if err := conn.Start(); err != nil {
			conn.Close()
			n.connPool.Remove(member.ID())
		}
	}()

	n.connPool.Add(member.ID(), conn)
	log.Debug("message", "connected", "target", member.ID())
	return nil
}

func (n *Node) ConnectionList() []string {
	result := make([]string, 0)
	for _, conn := range n.connPool.GetAll() {
		result = append(result, conn.Ip().String())
	}
	return result
}

func (n *Node) Status() Status {
	n.lock.RLock()
	epoch := n.hb.Epoch()
	onConsensus := n.hb.OnConsensus()
	n.lock.RUnlock()

	members := make([]string, 0)
	for _, member := range n.memberMap.Members() {
		members = append(members, member.ID())
	}

	return Status{
		Address:     n.owner.ID(),
		Epoch:       uint64(epoch),
		OnConsensus: onConsensus,
		QueueLen:    n.txQueueManager.Len(),
		Members:     members,
		Connections: n.ConnectionList(),
		Batches:     atomic.LoadUint64(&n.batches),
		Faults:      atomic.LoadUint64(&n.faults),
	}
}

func (n *Node) Close() {
	if first := atomic.CompareAndSwapInt32(&n.stopFlag, int32(0), int32(1)); !first {
		return
	}
	close(n.closeChan)
	n.txQueueManager.Close()

	n.server.Stop()
	for _, conn := range n.connPool.GetAll() {
		conn.Close()
	}
}

func (n *Node) Result() <-chan hbbft.Batch {
	return n.batchChan.Receive()
}
