package comet

import "sync"

// manager indexes the open connections of a Coordinator.
type manager struct {
	conns  map[string]*Conn
	locker sync.RWMutex
}

func newManager() *manager {
	return &manager{
		conns: make(map[string]*Conn),
	}
}

func (m *manager) Add(c *Conn) {
	m.locker.Lock()
	defer m.locker.Unlock()

	m.conns[c.ID()] = c
}

func (m *manager) Get(id string) (*Conn, bool) {
	m.locker.RLock()
	defer m.locker.RUnlock()

	c, ok := m.conns[id]
	return c, ok
}

func (m *manager) Remove(id string) {
	m.locker.Lock()
	defer m.locker.Unlock()

	delete(m.conns, id)
}

func (m *manager) Count() int {
	m.locker.RLock()
	defer m.locker.RUnlock()

	return len(m.conns)
}

func (m *manager) All() []*Conn {
	m.locker.RLock()
	defer m.locker.RUnlock()

	ret := make([]*Conn, 0, len(m.conns))
	for _, c := range m.conns {
		ret = append(ret, c)
	}
	return ret
}
