package publish

import (
	"fmt"
	"sync"
	"time"

	"github.com/afroash/soilsim/internal/models"
)

// ReadingBuffer is a thread-safe circular buffer holding readings the
// publisher could not deliver, so a broker outage does not lose the
// trace.
type ReadingBuffer struct {
	readings   []*models.Reading
	capacity   int
	dropOldest bool
	mutex      sync.RWMutex
	stats      BufferStats
}

// BufferStats tracks buffer usage statistics
type BufferStats struct {
	TotalPushed   int64
	TotalDropped  int64
	HighWaterMark int
	LastPushTime  time.Time
	LastDropTime  time.Time
}

// NewReadingBuffer creates a new reading buffer with given capacity
func NewReadingBuffer(capacity int, dropOldest bool) *ReadingBuffer {
	return &ReadingBuffer{
		readings:   make([]*models.Reading, 0, capacity),
		capacity:   capacity,
		dropOldest: dropOldest,
	}
}

// Push adds a reading to the buffer
// Returns true if stored, false if dropped (when full and dropOldest=false)
func (rb *ReadingBuffer) Push(reading *models.Reading) bool {
	rb.mutex.Lock()
	defer rb.mutex.Unlock()

	if len(rb.readings) >= rb.capacity {
		rb.stats.TotalDropped++
		rb.stats.LastDropTime = time.Now()
		if !rb.dropOldest {
			return false
		}
		rb.readings = rb.readings[1:]
	}
	rb.readings = append(rb.readings, reading)
	rb.stats.TotalPushed++
	rb.stats.LastPushTime = time.Now()

	if len(rb.readings) > rb.stats.HighWaterMark {
		rb.stats.HighWaterMark = len(rb.readings)
	}

	return true
}

// PopBatch removes and returns up to n readings from the buffer,
// oldest first
func (rb *ReadingBuffer) PopBatch(n int) []*models.Reading {
	rb.mutex.Lock()
	defer rb.mutex.Unlock()

	count := min(n, len(rb.readings))
	if count == 0 {
		return nil
	}
	result := make([]*models.Reading, count)
	copy(result, rb.readings[:count])
	rb.readings = rb.readings[count:]
	return result
}

// Peek returns up to n readings without removing them
func (rb *ReadingBuffer) Peek(n int) []*models.Reading {
	rb.mutex.RLock()
	defer rb.mutex.RUnlock()

	count := min(n, len(rb.readings))
	if count == 0 {
		return nil
	}

	result := make([]*models.Reading, count)
	copy(result, rb.readings[:count])
	return result
}

// Size returns the current number of readings in the buffer
func (rb *ReadingBuffer) Size() int {
	rb.mutex.RLock()
	defer rb.mutex.RUnlock()
	return len(rb.readings)
}

// IsEmpty returns true if buffer has no readings
func (rb *ReadingBuffer) IsEmpty() bool {
	rb.mutex.RLock()
	defer rb.mutex.RUnlock()
	return len(rb.readings) == 0
}

// Capacity returns the maximum capacity of the buffer
func (rb *ReadingBuffer) Capacity() int {
	// No lock needed, capacity doesn't change
	return rb.capacity
}

// Stats returns a copy of current buffer statistics
func (rb *ReadingBuffer) Stats() BufferStats {
	rb.mutex.RLock()
	defer rb.mutex.RUnlock()
	return rb.stats
}

// String returns a human-readable representation of buffer state
func (rb *ReadingBuffer) String() string {
	rb.mutex.RLock()
	defer rb.mutex.RUnlock()

	mode := "drop-newest"
	if rb.dropOldest {
		mode = "drop-oldest"
	}

	return fmt.Sprintf("Buffer[%d/%d, dropped: %d, mode: %s]",
		len(rb.readings),
		rb.capacity,
		rb.stats.TotalDropped,
		mode,
	)
}
