package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receiveBatch(t *testing.T, ch <-chan []FileEvent) []FileEvent {
	t.Helper()
	select {
	case batch := <-ch:
		return batch
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for batch")
		return nil
	}
}

func TestDebouncer_CoalescesPerFile(t *testing.T) {
	tests := []struct {
		name   string
		ops    []Operation
		want   Operation
		cancel bool
	}{
		{"create then modify", []Operation{OpCreate, OpModify, OpModify}, OpCreate, false},
		{"create then delete", []Operation{OpCreate, OpDelete}, 0, true},
		{"create then rename away", []Operation{OpCreate, OpRename}, 0, true},
		{"modify then delete", []Operation{OpModify, OpDelete}, OpDelete, false},
		{"delete then create", []Operation{OpDelete, OpCreate}, OpModify, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: a debouncer
			d := NewDebouncer(20 * time.Millisecond)
			defer d.Stop()

			// When: the operations arrive for one file, plus a marker file
			for _, op := range tt.ops {
				d.Add(FileEvent{Name: "note.txt", Operation: op, Timestamp: time.Now()})
			}
			d.Add(FileEvent{Name: "marker.txt", Operation: OpCreate})

			// Then: one batch carries the merged result
			batch := receiveBatch(t, d.Output())
			if tt.cancel {
				require.Len(t, batch, 1)
				assert.Equal(t, "marker.txt", batch[0].Name)
				return
			}
			require.Len(t, batch, 2)
			assert.Equal(t, "note.txt", batch[1].Name)
			assert.Equal(t, tt.want, batch[1].Operation)
		})
	}
}

func TestDebouncer_BatchSortedByName(t *testing.T) {
	d := NewDebouncer(10 * time.Millisecond)
	defer d.Stop()

	for _, name := range []string{"c.txt", "a.txt", "b.txt"} {
		d.Add(FileEvent{Name: name, Operation: OpCreate})
	}

	batch := receiveBatch(t, d.Output())
	require.Len(t, batch, 3)
	assert.Equal(t, []string{"a.txt", "b.txt", "c.txt"}, Arrivals(batch))
}

func TestDebouncer_StopClosesOutput(t *testing.T) {
	d := NewDebouncer(time.Hour)
	d.Add(FileEvent{Name: "a.txt", Operation: OpCreate})

	d.Stop()
	d.Stop()
	d.Add(FileEvent{Name: "b.txt", Operation: OpCreate})

	_, ok := <-d.Output()
	assert.False(t, ok)
}
