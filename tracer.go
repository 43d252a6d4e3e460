package hbbft

import (
	"bytes"
	"strings"
	"sync"

	"github.com/go-kit/kit/log"

	"github.com/DE-labtory/iLogger"
)

type Tracer interface {
	Log(keyvals ...string)
	Trace()
}

// MemCacheTracer keeps logfmt formatted traces in memory, it is used for
// following what happened on a node after simulation
type MemCacheTracer struct {
	lock      sync.RWMutex
	buf       *bytes.Buffer
	logger    log.Logger
	traceList []string
}

func NewMemCacheTracer() *MemCacheTracer {
	buf := &bytes.Buffer{}
	return &MemCacheTracer{
		lock:      sync.RWMutex{},
		buf:       buf,
		logger:    log.NewLogfmtLogger(buf),
		traceList: make([]string, 0),
	}
}

func (t *MemCacheTracer) Log(keyvals ...string) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if len(keyvals) == 0 {
		return
	}
	if len(keyvals)%2 == 1 {
		keyvals = append(keyvals, "")
	}

	kvs := make([]interface{}, 0, len(keyvals))
	for _, kv := range keyvals {
		kvs = append(kvs, kv)
	}

	t.buf.Reset()
	if err := t.logger.Log(kvs...); err != nil {
		return
	}
	t.traceList = append(t.traceList, strings.TrimSuffix(t.buf.String(), "\n"))
}

func (t *MemCacheTracer) Traces() []string {
	t.lock.RLock()
	defer t.lock.RUnlock()

	traces := make([]string, len(t.traceList))
	copy(traces, t.traceList)
	return traces
}

func (t *MemCacheTracer) Trace() {
	t.lock.Lock()
	defer t.lock.Unlock()

	for _, trace := range t.traceList {
		iLogger.Info(nil, trace)
	}
}
