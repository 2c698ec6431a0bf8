package shard

import (
	"fmt"
	"math"
	"testing"
)

func TestShardAssignmentStable(t *testing.T) {
	r1 := NewRouter(8, DefaultVirtualNodes)
	r2 := NewRouter(8, DefaultVirtualNodes)

	for i := 0; i < 500; i++ {
		key := fmt.Sprintf("internal/pkg/file_%d.go", i)
		if r1.ShardOf(key) != r2.ShardOf(key) {
			t.Fatalf("shard assignment differs across routers for key %q", key)
		}
	}
}

func TestShardOfInRange(t *testing.T) {
	r := NewRouter(4, DefaultVirtualNodes)
	for i := 0; i < 1000; i++ {
		s := r.ShardOf(fmt.Sprintf("file-%d.go", i))
		if s < 0 || s >= 4 {
			t.Fatalf("shard index %d out of range [0,4)", s)
		}
	}
}

func TestShardDistributionVariance(t *testing.T) {
	const shardCount = 8
	const numKeys = 20000

	r := NewRouter(shardCount, DefaultVirtualNodes)
	counts := make([]int, shardCount)
	for i := 0; i < numKeys; i++ {
		counts[r.ShardOf(fmt.Sprintf("path/to/source_%d.go", i))]++
	}

	expected := float64(numKeys) / float64(shardCount)
	for i, c := range counts {
		dev := math.Abs(float64(c)-expected) / expected
		if dev > 0.25 {
			t.Errorf("shard %d deviates %.2f%% from expected %v (got %d)", i, dev*100, expected, c)
		}
	}
}

func TestPartitionByShardCoversAllKeys(t *testing.T) {
	r := NewRouter(5, DefaultVirtualNodes)
	keys := make([]string, 200)
	for i := range keys {
		keys[i] = fmt.Sprintf("src/file_%d.go", i)
	}

	groups := r.PartitionByShard(keys)
	total := 0
	for _, g := range groups {
		total += len(g)
	}
	if total != len(keys) {
		t.Fatalf("expected %d partitioned keys, got %d", len(keys), total)
	}
}

func TestVirtualNodeCountAffectsRingSize(t *testing.T) {
	r := NewRouter(4, 10)
	if len(r.tokens) != 40 {
		t.Fatalf("expected 40 ring tokens, got %d", len(r.tokens))
	}
	if r.ShardCount() != 4 || r.VirtualNodes() != 10 {
		t.Fatalf("unexpected router params: %d shards, %d vnodes", r.ShardCount(), r.VirtualNodes())
	}
}
