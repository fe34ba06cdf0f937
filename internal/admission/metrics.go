package admission

import (
	"expvar"
	"fmt"
	"sync"
)

// metricsRecorder centralises counter/gauge updates so the rest of the
// package stays testable.
type metricsRecorder interface {
	IncAdmission(outcome string)
	IncBlockApplied()
	IncKeyIssue(result, operator string)
	SetTemporaryKeysActive(count int)
}

type expvarMetrics struct {
	admissionMap *expvar.Map
	blocksTotal  *expvar.Int
	issueMap     *expvar.Map
	activeGauge  *expvar.Int
	mu           sync.Mutex
}

func newExpvarMetrics() *expvarMetrics {
	return &expvarMetrics{
		admissionMap: ensureExpvarMap("admission_decisions_total"),
		blocksTotal:  ensureExpvarInt("ip_blocks_applied_total"),
		issueMap:     ensureExpvarMap("api_key_issue_total"),
		activeGauge:  ensureExpvarInt("temporary_keys_active"),
	}
}

func (m *expvarMetrics) IncAdmission(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := fmt.Sprintf(`{"outcome":"%s"}`, outcome)
	getExpvarInt(m.admissionMap, key).Add(1)
}

func (m *expvarMetrics) IncBlockApplied() {
	m.blocksTotal.Add(1)
}

func (m *expvarMetrics) IncKeyIssue(result, operator string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := fmt.Sprintf(`{"result":"%s","operator":"%s"}`, result, operator)
	getExpvarInt(m.issueMap, key).Add(1)
}

func (m *expvarMetrics) SetTemporaryKeysActive(count int) {
	m.activeGauge.Set(int64(count))
}

func getExpvarInt(m *expvar.Map, key string) *expvar.Int {
	if existing := m.Get(key); existing != nil {
		if intVar, ok := existing.(*expvar.Int); ok {
			return intVar
		}
	}
	intVar := new(expvar.Int)
	m.Set(key, intVar)
	return intVar
}

func ensureExpvarMap(name string) *expvar.Map {
	if existing := expvar.Get(name); existing != nil {
		if m, ok := existing.(*expvar.Map); ok {
			return m
		}
	}
	return expvar.NewMap(name)
}

func ensureExpvarInt(name string) *expvar.Int {
	if existing := expvar.Get(name); existing != nil {
		if v, ok := existing.(*expvar.Int); ok {
			return v
		}
	}
	return expvar.NewInt(name)
}
