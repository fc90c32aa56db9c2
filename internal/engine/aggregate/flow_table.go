package aggregate

import (
	"hash/fnv"
	"slices"
	"sync"

	"Go2NetProfile/internal/model"
)

const defaultShardCount = 64

// shard is a part of a sharded map, containing its own map and a mutex.
type shard struct {
	groups map[model.FlowKey]*model.FlowGroup
	mu     sync.RWMutex
}

// FlowTable groups the keyed records of one application into FlowGroups using
// a sharded map, so records can be fed from several goroutines.
type FlowTable struct {
	application string
	shards      []*shard
	shardCount  uint32
}

// NewFlowTable creates an empty table for one application.
func NewFlowTable(application string, numShards uint32) *FlowTable {
	if numShards == 0 || numShards >= 32768 {
		numShards = defaultShardCount
	}
	t := &FlowTable{
		application: application,
		shards:      make([]*shard, numShards),
		shardCount:  numShards,
	}
	for i := range t.shards {
		t.shards[i] = &shard{groups: make(map[model.FlowKey]*model.FlowGroup)}
	}
	return t
}

// Add accounts a record to its flow. Records without a flow key are ignored
// and reported as not added.
func (t *FlowTable) Add(rec model.KeyedRecord) bool {
	key, ok := rec.FlowKey.Get()
	if !ok {
		return false
	}

	s := t.getShard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if g, ok := s.groups[key]; ok {
		g.Add(rec.PacketRecord)
	} else {
		s.groups[key] = model.NewFlowGroup(t.application, key, rec.PacketRecord)
	}
	return true
}

// Len returns the number of distinct flows.
func (t *FlowTable) Len() int {
	n := 0
	for _, s := range t.shards {
		s.mu.RLock()
		n += len(s.groups)
		s.mu.RUnlock()
	}
	return n
}

// Groups returns a copy of every FlowGroup, ordered by first appearance in the input.
func (t *FlowTable) Groups() []*model.FlowGroup {
	perShard := make([][]*model.FlowGroup, t.shardCount)
	var wg sync.WaitGroup
	wg.Add(int(t.shardCount))

	for i := range t.shards {
		go func(i int) {
			defer wg.Done()
			s := t.shards[i]
			s.mu.RLock()
			copied := make([]*model.FlowGroup, 0, len(s.groups))
			for _, g := range s.groups {
				gc := *g
				copied = append(copied, &gc)
			}
			s.mu.RUnlock()
			perShard[i] = copied
		}(i)
	}
	wg.Wait()

	var groups []*model.FlowGroup
	for _, part := range perShard {
		groups = append(groups, part...)
	}
	slices.SortFunc(groups, func(a, b *model.FlowGroup) int {
		return a.FirstRow() - b.FirstRow()
	})
	return groups
}

// getShard returns the appropriate shard for a given key.
func (t *FlowTable) getShard(key model.FlowKey) *shard {
	hasher := fnv.New32a()
	hasher.Write(key[:])
	return t.shards[hasher.Sum32()%t.shardCount]
}
