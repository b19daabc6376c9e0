package storage

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClaimsGrantOneWriterPerKey(t *testing.T) {
	var (
		c    claims
		won  atomic.Int32
		wg   sync.WaitGroup
		gate = make(chan struct{})
	)

	for range 16 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			<-gate

			if c.claim("a.png") {
				won.Add(1)
			}
		}()
	}

	close(gate)
	wg.Wait()

	assert.Equal(t, int32(1), won.Load())
	assert.True(t, c.claim("b.png"))

	c.release("a.png")
	assert.True(t, c.claim("a.png"))
}
