package contract

// maintaining index keys for enumerating proposals

import (
	"strconv"

	"okinoko_moloch/contract/dao"
)

const (
	// all indexes are split into chunks so a single value never grows unbounded
	maxChunkSize = 512
	// idxProposals holds every opened proposal identity in open order
	idxProposals = "idx:props"
)

// chunkCounterKey stores number of chunks for a base index
func chunkCounterKey(base string) string {
	return base + ":chunks"
}

func chunkKey(base string, chunk int) string {
	return base + ":" + strconv.Itoa(chunk)
}

func (c *call) getChunkCount(baseKey string) int {
	ptr := c.kv.get(chunkCounterKey(baseKey))
	if ptr == nil || *ptr == "" {
		return 0
	}
	n, _ := strconv.Atoi(*ptr)
	return n
}

func (c *call) setChunkCount(baseKey string, n int) {
	c.kv.set(chunkCounterKey(baseKey), strconv.Itoa(n))
}

// appendHashToIndex adds id to the last chunk, opening a new one when it is full.
// Callers only append identities that are new, so there is no duplicate scan.
func (c *call) appendHashToIndex(baseKey string, id dao.Hash) {
	chunks := c.getChunkCount(baseKey)
	if chunks > 0 {
		key := chunkKey(baseKey, chunks-1)
		var cur string
		if ptr := c.kv.get(key); ptr != nil {
			cur = *ptr
		}
		if len(cur)/len(id) < maxChunkSize {
			c.kv.set(key, cur+string(id[:]))
			return
		}
	}
	c.kv.set(chunkKey(baseKey, chunks), string(id[:]))
	c.setChunkCount(baseKey, chunks+1)
}

// hashesFromIndex collects ids across chunks, skipping offset and stopping after limit.
// A limit of zero means everything.
func (c *call) hashesFromIndex(baseKey string, offset, limit int) []dao.Hash {
	out := []dao.Hash{}
	seen := 0
	chunks := c.getChunkCount(baseKey)
	for i := 0; i < chunks; i++ {
		ptr := c.kv.get(chunkKey(baseKey, i))
		if ptr == nil {
			continue
		}
		raw := *ptr
		for j := 0; j+32 <= len(raw); j += 32 {
			if seen < offset {
				seen++
				continue
			}
			var h dao.Hash
			copy(h[:], raw[j:j+32])
			out = append(out, h)
			if limit > 0 && len(out) >= limit {
				return out
			}
		}
	}
	return out
}
