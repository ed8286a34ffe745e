package telemetry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatencyToBucket(t *testing.T) {
	tests := []struct {
		latency time.Duration
		want    LatencyBucket
	}{
		{0, BucketP10},
		{9 * time.Millisecond, BucketP10},
		{10 * time.Millisecond, BucketP50},
		{75 * time.Millisecond, BucketP100},
		{499 * time.Millisecond, BucketP500},
		{2 * time.Second, BucketP1000},
	}
	for _, tt := range tests {
		t.Run(tt.latency.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, LatencyToBucket(tt.latency))
		})
	}
}

func TestCircularBuffer_EvictsOldest(t *testing.T) {
	// Given: a buffer of three
	b := NewCircularBuffer[int](3)

	// When: adding five items
	for i := 1; i <= 5; i++ {
		b.Add(i)
	}

	// Then: the newest three remain, oldest first
	assert.Equal(t, []int{3, 4, 5}, b.Items())
	assert.Equal(t, 3, b.Size())
}

func TestCircularBuffer_PartiallyFilled(t *testing.T) {
	b := NewCircularBuffer[string](0)
	assert.Empty(t, b.Items())

	b.Add("a")
	b.Add("b")
	assert.Equal(t, []string{"a", "b"}, b.Items())
}

func TestQueryMetrics_Record_Aggregates(t *testing.T) {
	// Given: a fresh collector
	m := NewQueryMetrics(Config{})

	// When: recording a mix of queries
	m.Record(QueryEvent{Query: "fox", Terms: []string{"fox"}, ResultCount: 2, Latency: time.Millisecond})
	m.Record(QueryEvent{Query: "Fox ", Terms: []string{"fox"}, ResultCount: 2, Latency: 20 * time.Millisecond})
	m.Record(QueryEvent{Query: "elephant", Terms: []string{"elephant"}, Tag: "zoo", ResultCount: 0})

	// Then: counts reflect every event
	s := m.Snapshot()
	assert.Equal(t, int64(3), s.TotalQueries)
	assert.Equal(t, int64(1), s.ZeroResultCount)
	assert.Equal(t, int64(1), s.TaggedQueries)
	assert.Equal(t, int64(1), s.ExactRepeatCount)
	assert.Equal(t, []string{"elephant"}, s.ZeroResultQueries)
	assert.Equal(t, int64(2), s.LatencyDistribution[BucketP10])
	assert.Equal(t, int64(1), s.LatencyDistribution[BucketP50])
	require.Len(t, s.TopTerms, 2)
	assert.Equal(t, TermCount{Term: "fox", Count: 2}, s.TopTerms[0])
	assert.InDelta(t, 33.33, s.ZeroResultPercentage(), 0.01)
}

func TestQueryMetrics_NilIsNoOp(t *testing.T) {
	var m *QueryMetrics
	assert.NotPanics(t, func() { m.Record(QueryEvent{Query: "x"}) })
}

func TestQueryMetrics_ConcurrentRecord(t *testing.T) {
	m := NewQueryMetrics(DefaultConfig())

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				m.Record(QueryEvent{Query: "q", Terms: []string{"q"}, ResultCount: 1})
			}
		}()
	}
	wg.Wait()

	s := m.Snapshot()
	assert.Equal(t, int64(1000), s.TotalQueries)
	assert.Equal(t, int64(999), s.ExactRepeatCount)
	assert.Equal(t, int64(1000), s.TopTerms[0].Count)
}

func TestSnapshot_ZeroResultPercentage_Empty(t *testing.T) {
	s := NewQueryMetrics(Config{}).Snapshot()
	assert.Equal(t, 0.0, s.ZeroResultPercentage())
}
