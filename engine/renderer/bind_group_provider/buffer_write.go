package bind_group_provider

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-raysampler/engine/renderer/gpu"
)

// BufferWrite describes a single GPU buffer write operation targeting a specific binding
// on a BindGroupProvider at a given byte offset.
type BufferWrite struct {
	Provider BindGroupProvider
	Binding  int
	Offset   uint64
	Data     []byte
}

// Apply schedules the write on queue.
//
// Parameters:
//   - queue: the queue to write through
//
// Returns:
//   - error: an error if the provider has no buffer at Binding or the queue rejects the write
func (w BufferWrite) Apply(queue gpu.Queue) error {
	buf := w.Provider.Buffer(w.Binding)
	if buf == nil {
		return fmt.Errorf("bind group %s has no buffer at binding %d", w.Provider.Label(), w.Binding)
	}
	if w.Offset+uint64(len(w.Data)) > buf.Size() {
		return fmt.Errorf("write of %d bytes at offset %d overflows %d byte buffer %s/%d",
			len(w.Data), w.Offset, buf.Size(), w.Provider.Label(), w.Binding)
	}
	return queue.WriteBuffer(buf, w.Offset, w.Data)
}
