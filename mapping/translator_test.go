package mapping

import (
	"errors"
	"sync"

	"github.com/ugparu/iomap"
	"github.com/ugparu/iomap/scatterlist"
)

var errFakeMap = errors.New("fake map failure")

// fakeTranslator records every call and hands out sequential device addresses.
type fakeTranslator struct {
	mu sync.Mutex

	coherent bool
	merge    bool
	fail     bool

	next     uint64
	maps     int
	unmaps   int
	toDevice int
	toCPU    int
	barriers int

	unmapAttrs []iomap.Attrs
	cpuDirs    []iomap.Direction
}

func (f *fakeTranslator) MapSG(list scatterlist.List, nents int, _ iomap.Direction, _ iomap.Attrs) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail {
		return 0, errFakeMap
	}
	f.maps++
	nents = min(nents, len(list))
	if nents == 0 {
		return 0, nil
	}

	if f.merge {
		total := uint32(list.Size(nents)) //nolint:gosec
		list[0].DMAAddr = f.alloc()
		list[0].DMALength = total
		for i := 1; i < nents; i++ {
			list[i].DMAAddr, list[i].DMALength = 0, 0
		}
		return 1, nil
	}

	for i := range list[:nents] {
		list[i].DMAAddr = f.alloc()
		list[i].DMALength = list[i].Length
	}
	return nents, nil
}

func (f *fakeTranslator) alloc() uint64 {
	f.next += 0x1000
	return 0x1000_0000 + f.next
}

func (f *fakeTranslator) UnmapSG(_ scatterlist.List, _ int, _ iomap.Direction, attrs iomap.Attrs) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unmaps++
	f.unmapAttrs = append(f.unmapAttrs, attrs)
}

func (f *fakeTranslator) SyncForDevice(scatterlist.List, int, iomap.Direction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toDevice++
}

func (f *fakeTranslator) SyncForCPU(_ scatterlist.List, _ int, dir iomap.Direction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toCPU++
	f.cpuDirs = append(f.cpuDirs, dir)
}

func (f *fakeTranslator) Coherent() bool {
	return f.coherent
}

func (f *fakeTranslator) Barrier() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.barriers++
}

func (f *fakeTranslator) counts() (maps, unmaps, toDevice, toCPU, barriers int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maps, f.unmaps, f.toDevice, f.toCPU, f.barriers
}

func testList(n int) scatterlist.List {
	l := make(scatterlist.List, n)
	for i := range l {
		l[i] = scatterlist.Entry{Addr: 0x8000_0000 + uint64(i)*0x1000, Length: 0x1000}
	}
	return l
}
