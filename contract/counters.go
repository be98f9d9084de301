package contract

import (
	"strconv"
)

// Counter keys live outside the binary prefix space, plain text like the index keys.
const (
	// ProposalsCount holds the number of proposals ever opened.
	ProposalsCount = "count:props"
	// VotesCount holds the number of votes ever cast.
	VotesCount = "count:v"
	// ClaimsCount holds the number of futarchy cash-outs.
	ClaimsCount = "count:claims"
)

// getCount reads the string counter under the key and defaults to zero, nothing magical here.
func (c *call) getCount(key string) uint64 {
	ptr := c.kv.get(key)
	if ptr == nil || *ptr == "" {
		return 0
	}
	n, _ := strconv.ParseUint(*ptr, 10, 64)
	return n
}

// setCount stores uint64 counters back as decimal strings.
func (c *call) setCount(key string, n uint64) {
	c.kv.set(key, strconv.FormatUint(n, 10))
}

func (c *call) incCount(key string) uint64 {
	n := c.getCount(key) + 1
	c.setCount(key, n)
	return n
}
