package dialogue

import (
	"sort"

	"yui/internal/types"
)

// MergeMessages folds incoming into current. Messages are identified by ID;
// when both sides hold the same ID the entry from current is kept. The result
// is ordered by timestamp, and messages with equal timestamps keep the order
// in which they were first seen (current first, then incoming).
//
// Merging never drops a message present in either input.
func MergeMessages(current, incoming []types.Message) []types.Message {
	out := make([]types.Message, 0, len(current)+len(incoming))
	seen := make(map[string]struct{}, len(current)+len(incoming))
	add := func(msgs []types.Message) {
		for _, msg := range msgs {
			if _, ok := seen[msg.ID]; ok {
				continue
			}
			seen[msg.ID] = struct{}{}
			out = append(out, msg)
		}
	}
	add(current)
	add(incoming)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// AppendMessage merges a single message into current.
func AppendMessage(current []types.Message, msg types.Message) []types.Message {
	return MergeMessages(current, []types.Message{msg})
}
