package calculator_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	calculator "github.com/xizhibei/go-calculator-rpc"
)

func TestBaseContextFirstReplyWins(t *testing.T) {
	var (
		c       calculator.BaseContext
		pushed  []*calculator.Response
		pushMu  sync.Mutex
		wg      sync.WaitGroup
		winners int
		winMu   sync.Mutex
	)
	c.BaseReply = func(res *calculator.Response) {
		pushMu.Lock()
		defer pushMu.Unlock()
		pushed = append(pushed, res)
	}

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if c.ReplyOK(i) {
				winMu.Lock()
				winners++
				winMu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	require.Len(t, pushed, 1)
	assert.Same(t, pushed[0], c.GetResponse())
}

func TestBaseContextReplyError(t *testing.T) {
	var c calculator.BaseContext
	assert.Nil(t, c.GetResponse())

	err := errors.New("bad input")
	assert.True(t, c.ReplyError(calculator.RPCStatusClientError, err))
	assert.False(t, c.ReplyOK(1))

	res := c.GetResponse()
	require.NotNil(t, res)
	assert.Equal(t, calculator.RPCStatusClientError, res.Status)
	assert.Equal(t, err, res.Error)
	assert.Nil(t, res.Result)
}

func TestIDString(t *testing.T) {
	assert.Equal(t, "42", (&calculator.ID{Num: 42}).String())
	assert.Equal(t, "abc", (&calculator.ID{Num: 42, Str: "abc"}).String())
}
