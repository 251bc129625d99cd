package sequence

import (
	"bufio"
	"container/heap"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"

	"github.com/lintang-b-s/tilegraph/pkg/util"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

const (
	// records buffered on append before spilling to disk
	appendBufferRecords = 1 << 14
	// records per read window
	windowRecords = 1 << 13
)

// records per in-memory sort run; a variable so tests can exercise the
// external merge path with small datasets
var sortRunRecords = int64(1 << 20)

// Sequence is a disk backed ordered sequence of fixed size records.
// Records are encoded little endian with encoding/binary, so T must be
// a fixed size struct (no slices, no strings). The sequence supports
// append, random access reads, single record overwrite, forward
// iteration, an external merge sort and an in-place transform, and
// handles datasets larger than memory.
type Sequence[T any] struct {
	f        *os.File
	path     string
	recSize  int64
	count    int64
	readOnly bool

	// append buffer, tail of the sequence not yet on disk
	wbuf    []byte
	pending int64

	// read window
	rbuf   []byte
	rstart int64
	rcount int64
}

// New opens a sequence at path. When create is true the file is
// truncated and the sequence starts empty, otherwise the existing
// records are kept. The returned sequence is writable either way.
func New[T any](path string, create bool) (*Sequence[T], error) {
	return open[T](path, create, false)
}

// OpenReadOnly opens an existing sequence for reads only. Any number
// of read only handles may be open on the same file at once.
func OpenReadOnly[T any](path string) (*Sequence[T], error) {
	return open[T](path, false, true)
}

func open[T any](path string, create, readOnly bool) (*Sequence[T], error) {
	var zero T
	recSize := binary.Size(zero)
	if recSize <= 0 {
		return nil, errors.Wrapf(util.ErrBadRecordSize, "sequence: %T is not fixed size", zero)
	}

	flag := os.O_RDWR | os.O_CREATE
	if create {
		flag |= os.O_TRUNC
	}
	if readOnly {
		flag = os.O_RDONLY
	}
	f, err := os.OpenFile(path, flag, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "sequence: open %s", path)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "sequence: stat %s", path)
	}
	if fi.Size()%int64(recSize) != 0 {
		f.Close()
		return nil, errors.Wrapf(util.ErrBadRecordSize,
			"sequence: %s holds %d bytes, record size %d", path, fi.Size(), recSize)
	}

	return &Sequence[T]{
		f:        f,
		path:     path,
		recSize:  int64(recSize),
		count:    fi.Size() / int64(recSize),
		readOnly: readOnly,
	}, nil
}

func (s *Sequence[T]) encode(v T, dst []byte) {
	if _, err := binary.Encode(dst, binary.LittleEndian, v); err != nil {
		panic(fmt.Sprintf("sequence: encode: %v", err))
	}
}

func (s *Sequence[T]) decode(src []byte) T {
	var v T
	if _, err := binary.Decode(src, binary.LittleEndian, &v); err != nil {
		panic(fmt.Sprintf("sequence: decode: %v", err))
	}
	return v
}

// Size returns the number of records, including unflushed appends.
func (s *Sequence[T]) Size() int64 {
	return s.count
}

// Append adds a record at the end of the sequence.
func (s *Sequence[T]) Append(v T) error {
	if s.readOnly {
		return util.ErrReadOnly
	}
	if s.wbuf == nil {
		s.wbuf = make([]byte, 0, appendBufferRecords*s.recSize)
	}
	off := int64(len(s.wbuf))
	s.wbuf = s.wbuf[:off+s.recSize]
	s.encode(v, s.wbuf[off:])
	s.pending++
	s.count++
	if s.pending >= appendBufferRecords {
		return s.Flush()
	}
	return nil
}

// Flush spills the append buffer to disk.
func (s *Sequence[T]) Flush() error {
	if s.pending == 0 {
		return nil
	}
	base := (s.count - s.pending) * s.recSize
	if _, err := s.f.WriteAt(s.wbuf, base); err != nil {
		return errors.Wrapf(err, "sequence: flush %s", s.path)
	}
	s.wbuf = s.wbuf[:0]
	s.pending = 0
	return nil
}

// At reads the record at index i.
func (s *Sequence[T]) At(i int64) (T, error) {
	var zero T
	if i < 0 || i >= s.count {
		return zero, errors.Wrapf(util.ErrOutOfRange, "sequence: at %d of %d", i, s.count)
	}

	// still in the append buffer
	if i >= s.count-s.pending {
		off := (i - (s.count - s.pending)) * s.recSize
		return s.decode(s.wbuf[off : off+s.recSize]), nil
	}

	if i < s.rstart || i >= s.rstart+s.rcount {
		if err := s.loadWindow(i); err != nil {
			return zero, err
		}
	}
	off := (i - s.rstart) * s.recSize
	return s.decode(s.rbuf[off : off+s.recSize]), nil
}

func (s *Sequence[T]) loadWindow(i int64) error {
	if s.rbuf == nil {
		s.rbuf = make([]byte, windowRecords*s.recSize)
	}
	onDisk := s.count - s.pending
	n := util.Min(int64(windowRecords), onDisk-i)
	read, err := s.f.ReadAt(s.rbuf[:n*s.recSize], i*s.recSize)
	if err != nil && err != io.EOF {
		return errors.Wrapf(err, "sequence: read %s at %d", s.path, i)
	}
	s.rstart = i
	s.rcount = int64(read) / s.recSize
	if s.rcount < n {
		return errors.Wrapf(io.ErrUnexpectedEOF, "sequence: short read %s at %d", s.path, i)
	}
	return nil
}

// Put overwrites the record at index i.
func (s *Sequence[T]) Put(i int64, v T) error {
	if s.readOnly {
		return util.ErrReadOnly
	}
	if i < 0 || i >= s.count {
		return errors.Wrapf(util.ErrOutOfRange, "sequence: put %d of %d", i, s.count)
	}
	if err := s.Flush(); err != nil {
		return err
	}
	buf := make([]byte, s.recSize)
	s.encode(v, buf)
	if _, err := s.f.WriteAt(buf, i*s.recSize); err != nil {
		return errors.Wrapf(err, "sequence: put %s at %d", s.path, i)
	}
	// drop a stale read window
	if i >= s.rstart && i < s.rstart+s.rcount {
		s.rcount = 0
	}
	return nil
}

// Iterate streams every record in order. fn receives the absolute
// index of each record.
func (s *Sequence[T]) Iterate(fn func(i int64, v T) error) error {
	if err := s.Flush(); err != nil {
		return err
	}
	if _, err := s.f.Seek(0, io.SeekStart); err != nil {
		return errors.Wrapf(err, "sequence: seek %s", s.path)
	}
	r := bufio.NewReaderSize(s.f, int(windowRecords*s.recSize))
	buf := make([]byte, s.recSize)
	for i := int64(0); i < s.count; i++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			return errors.Wrapf(err, "sequence: iterate %s at %d", s.path, i)
		}
		if err := fn(i, s.decode(buf)); err != nil {
			return err
		}
	}
	return nil
}

// Transform visits every record exactly once in order, replacing each
// with the transformer's return value.
func (s *Sequence[T]) Transform(fn func(i int64, v T) T) error {
	if s.readOnly {
		return util.ErrReadOnly
	}
	if err := s.Flush(); err != nil {
		return err
	}
	s.rcount = 0
	buf := make([]byte, windowRecords*s.recSize)
	for base := int64(0); base < s.count; base += windowRecords {
		n := util.Min(int64(windowRecords), s.count-base)
		chunk := buf[:n*s.recSize]
		if _, err := s.f.ReadAt(chunk, base*s.recSize); err != nil {
			return errors.Wrapf(err, "sequence: transform read %s at %d", s.path, base)
		}
		for j := int64(0); j < n; j++ {
			rec := chunk[j*s.recSize : (j+1)*s.recSize]
			s.encode(fn(base+j, s.decode(rec)), rec)
		}
		if _, err := s.f.WriteAt(chunk, base*s.recSize); err != nil {
			return errors.Wrapf(err, "sequence: transform write %s at %d", s.path, base)
		}
	}
	return nil
}

// Sort orders the records by less using an external merge sort: runs
// are sorted in memory concurrently, spilled to a temp file each, and
// merged back over the sequence file.
func (s *Sequence[T]) Sort(less func(a, b T) bool) error {
	if s.readOnly {
		return util.ErrReadOnly
	}
	if err := s.Flush(); err != nil {
		return err
	}
	s.rcount = 0
	if s.count <= 1 {
		return nil
	}

	// single run fits in memory, sort in place
	if s.count <= sortRunRecords {
		return s.sortRun(0, s.count, s.f, 0, less)
	}

	nRuns := (s.count + sortRunRecords - 1) / sortRunRecords
	runs := make([]*os.File, nRuns)
	defer func() {
		for _, r := range runs {
			if r != nil {
				r.Close()
				os.Remove(r.Name())
			}
		}
	}()

	g := errgroup.Group{}
	g.SetLimit(runtime.NumCPU())
	for ri := int64(0); ri < nRuns; ri++ {
		ri := ri
		g.Go(func() error {
			tmp, err := os.CreateTemp("", "seqsort")
			if err != nil {
				return errors.Wrap(err, "sequence: sort temp")
			}
			runs[ri] = tmp
			start := ri * sortRunRecords
			n := util.Min(int64(sortRunRecords), s.count-start)
			return s.sortRun(start, n, tmp, 0, less)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	return s.mergeRuns(runs, less)
}

// sortRun reads n records at offset start, sorts them and writes them
// to dst at dstStart.
func (s *Sequence[T]) sortRun(start, n int64, dst *os.File, dstStart int64, less func(a, b T) bool) error {
	buf := make([]byte, n*s.recSize)
	if _, err := s.f.ReadAt(buf, start*s.recSize); err != nil {
		return errors.Wrapf(err, "sequence: sort read %s at %d", s.path, start)
	}
	recs := make([]T, n)
	for i := int64(0); i < n; i++ {
		recs[i] = s.decode(buf[i*s.recSize : (i+1)*s.recSize])
	}
	sort.SliceStable(recs, func(i, j int) bool { return less(recs[i], recs[j]) })
	for i := int64(0); i < n; i++ {
		s.encode(recs[i], buf[i*s.recSize:(i+1)*s.recSize])
	}
	if _, err := dst.WriteAt(buf, dstStart*s.recSize); err != nil {
		return errors.Wrapf(err, "sequence: sort write run at %d", dstStart)
	}
	return nil
}

type mergeItem[T any] struct {
	v   T
	run int
}

type mergeHeap[T any] struct {
	items []mergeItem[T]
	less  func(a, b T) bool
}

func (h *mergeHeap[T]) Len() int { return len(h.items) }

// ties break on run order so the merge is stable
func (h *mergeHeap[T]) Less(i, j int) bool {
	if h.less(h.items[i].v, h.items[j].v) {
		return true
	}
	if h.less(h.items[j].v, h.items[i].v) {
		return false
	}
	return h.items[i].run < h.items[j].run
}
func (h *mergeHeap[T]) Swap(i, j int)      { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *mergeHeap[T]) Push(x interface{}) { h.items = append(h.items, x.(mergeItem[T])) }
func (h *mergeHeap[T]) Pop() interface{} {
	old := h.items
	n := len(old)
	it := old[n-1]
	h.items = old[:n-1]
	return it
}

func (s *Sequence[T]) mergeRuns(runs []*os.File, less func(a, b T) bool) error {
	readers := make([]*bufio.Reader, len(runs))
	for i, r := range runs {
		if _, err := r.Seek(0, io.SeekStart); err != nil {
			return errors.Wrap(err, "sequence: merge seek")
		}
		readers[i] = bufio.NewReaderSize(r, int(windowRecords*s.recSize))
	}

	h := &mergeHeap[T]{less: less}
	buf := make([]byte, s.recSize)
	next := func(run int) (T, bool, error) {
		var zero T
		_, err := io.ReadFull(readers[run], buf)
		if err == io.EOF {
			return zero, false, nil
		}
		if err != nil {
			return zero, false, errors.Wrap(err, "sequence: merge read")
		}
		return s.decode(buf), true, nil
	}
	for i := range readers {
		v, ok, err := next(i)
		if err != nil {
			return err
		}
		if ok {
			h.items = append(h.items, mergeItem[T]{v: v, run: i})
		}
	}
	heap.Init(h)

	if _, err := s.f.Seek(0, io.SeekStart); err != nil {
		return errors.Wrapf(err, "sequence: merge seek %s", s.path)
	}
	w := bufio.NewWriterSize(s.f, int(windowRecords*s.recSize))
	out := make([]byte, s.recSize)
	for h.Len() > 0 {
		it := heap.Pop(h).(mergeItem[T])
		s.encode(it.v, out)
		if _, err := w.Write(out); err != nil {
			return errors.Wrapf(err, "sequence: merge write %s", s.path)
		}
		v, ok, err := next(it.run)
		if err != nil {
			return err
		}
		if ok {
			heap.Push(h, mergeItem[T]{v: v, run: it.run})
		}
	}
	if err := w.Flush(); err != nil {
		return errors.Wrapf(err, "sequence: merge flush %s", s.path)
	}
	return nil
}

// Close flushes pending appends and closes the file.
func (s *Sequence[T]) Close() error {
	if !s.readOnly {
		if err := s.Flush(); err != nil {
			s.f.Close()
			return err
		}
	}
	return s.f.Close()
}
