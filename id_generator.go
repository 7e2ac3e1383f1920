package comet

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator generates connection ids. The default generates random UUIDs;
// implement it to, for example, prefix ids with the local node name.
type IDGenerator interface {
	NewID() string
}

type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string {
	return uuid.NewString()
}

// SequenceGenerator generates increasing base-36 numbers.
type SequenceGenerator struct {
	ID uint64
}

func (g *SequenceGenerator) NewID() string {
	id := atomic.AddUint64(&g.ID, 1)

	return strconv.FormatUint(id, 36)
}
