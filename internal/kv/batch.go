package kv

import (
	"encoding/json"
	"fmt"
)

// Batch stages writes for Store.Commit. An encoding failure is remembered and
// returned by Commit so nothing is applied.
type Batch struct {
	ops []Op
	err error
}

func (b *Batch) Put(key string, v any) {
	if b.err != nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		b.err = fmt.Errorf("encode %s: %w", key, err)
		return
	}
	b.ops = append(b.ops, Op{Key: key, Value: raw})
}

func (b *Batch) Delete(key string) {
	b.ops = append(b.ops, Op{Key: key, Delete: true})
}

// Keys lists staged keys in staging order, without duplicates.
func (b *Batch) Keys() []string {
	seen := make(map[string]bool, len(b.ops))
	out := make([]string, 0, len(b.ops))
	for _, op := range b.ops {
		if seen[op.Key] {
			continue
		}
		seen[op.Key] = true
		out = append(out, op.Key)
	}
	return out
}

func (b *Batch) Len() int { return len(b.ops) }
