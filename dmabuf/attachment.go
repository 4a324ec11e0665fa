package dmabuf

import (
	"sync"

	"github.com/ugparu/iomap"
	"github.com/ugparu/iomap/mapping"
	"github.com/ugparu/iomap/scatterlist"
)

// Attachment is one device's handle on a Buffer.
type Attachment struct {
	buf  *Buffer
	dev  *mapping.Device
	once sync.Once
}

// Buffer returns the attached buffer.
func (a *Attachment) Buffer() *Buffer {
	return a.buf
}

// Device returns the attached device.
func (a *Attachment) Device() *mapping.Device {
	return a.dev
}

// Map returns the device translation of the buffer, reusing a cached one when
// the device has mapped the buffer before. The returned list holds the mapped
// entries only.
func (a *Attachment) Map(dir iomap.Direction, attrs iomap.Attrs) (scatterlist.List, error) {
	table := a.buf.Table()
	n, err := mapping.Map(a.dev, table, len(table), dir, a.buf.shared, attrs)
	if err != nil {
		return nil, err
	}
	return table[:min(n, len(table))], nil
}

// Unmap releases a translation returned by Map.
func (a *Attachment) Unmap(table scatterlist.List, dir iomap.Direction, attrs iomap.Attrs) {
	mapping.Unmap(a.dev, table, len(table), dir, a.buf.shared, attrs)
}

// Detach drops the reference taken by Attach. Cached translations stay until
// the device tears them down or the buffer is released.
func (a *Attachment) Detach() {
	a.once.Do(func() {
		a.buf.Put()
	})
}
