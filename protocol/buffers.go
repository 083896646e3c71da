package protocol

// InputBuffer is a byte queue the transports parse frames from
type InputBuffer interface {
	Data() []byte
	Available() int
	Pop(n int)
}

// OutputBuffer is an append-only byte sink that allows patching earlier
// bytes, used to fill in a frame's length after its payload is written
type OutputBuffer interface {
	Output(data []byte)
	CurPosition() int
	Update(pos int, val byte)
	DataSince(pos int) []byte
}

// SliceInputBuffer implements InputBuffer over a byte slice
type SliceInputBuffer struct {
	data []byte
}

// NewSliceInputBuffer creates a new SliceInputBuffer
func NewSliceInputBuffer(data []byte) *SliceInputBuffer {
	return &SliceInputBuffer{data: data}
}

func (s *SliceInputBuffer) Data() []byte   { return s.data }
func (s *SliceInputBuffer) Available() int { return len(s.data) }

func (s *SliceInputBuffer) Pop(n int) {
	if n > len(s.data) {
		n = len(s.data)
	}
	s.data = s.data[n:]
}

// ScratchOutput implements OutputBuffer on a fixed array so firmware
// framing never allocates. Writes past the end are dropped.
type ScratchOutput struct {
	buf [MessageMax]byte
	pos int
}

// NewScratchOutput creates a new ScratchOutput
func NewScratchOutput() *ScratchOutput {
	return &ScratchOutput{}
}

func (s *ScratchOutput) Output(data []byte) {
	s.pos += copy(s.buf[s.pos:], data)
}

func (s *ScratchOutput) CurPosition() int {
	return s.pos
}

func (s *ScratchOutput) Update(pos int, val byte) {
	if pos < s.pos {
		s.buf[pos] = val
	}
}

func (s *ScratchOutput) DataSince(pos int) []byte {
	if pos > s.pos {
		return nil
	}
	return s.buf[pos:s.pos]
}

// Result returns the accumulated output
func (s *ScratchOutput) Result() []byte {
	return s.buf[:s.pos]
}

// Reset clears the buffer
func (s *ScratchOutput) Reset() {
	s.pos = 0
}

// FifoBuffer is a ring buffer for serial receive data. It implements
// InputBuffer.
type FifoBuffer struct {
	buf   []byte
	head  int // next byte to read
	count int
	flat  []byte
}

// NewFifoBuffer creates a FIFO holding up to capacity bytes
func NewFifoBuffer(capacity int) *FifoBuffer {
	return &FifoBuffer{
		buf:  make([]byte, capacity),
		flat: make([]byte, 0, capacity),
	}
}

// Write appends as much of data as fits and returns the number of bytes
// stored
func (f *FifoBuffer) Write(data []byte) int {
	n := 0
	for _, b := range data {
		if f.count == len(f.buf) {
			break
		}
		f.buf[(f.head+f.count)%len(f.buf)] = b
		f.count++
		n++
	}
	return n
}

// Read moves up to len(data) bytes out of the FIFO
func (f *FifoBuffer) Read(data []byte) int {
	n := 0
	for n < len(data) && f.count > 0 {
		data[n] = f.buf[f.head]
		f.Pop(1)
		n++
	}
	return n
}

// Available returns the number of buffered bytes
func (f *FifoBuffer) Available() int {
	return f.count
}

// Free returns the remaining capacity
func (f *FifoBuffer) Free() int {
	return len(f.buf) - f.count
}

// Data returns the buffered bytes as one contiguous slice. When the ring
// wraps the bytes are copied into a reusable linear buffer, so the result
// is only valid until the next Write or Pop.
func (f *FifoBuffer) Data() []byte {
	end := f.head + f.count
	if end <= len(f.buf) {
		return f.buf[f.head:end]
	}
	f.flat = append(f.flat[:0], f.buf[f.head:]...)
	f.flat = append(f.flat, f.buf[:end-len(f.buf)]...)
	return f.flat
}

// Pop discards n bytes from the front
func (f *FifoBuffer) Pop(n int) {
	if n > f.count {
		n = f.count
	}
	f.head = (f.head + n) % len(f.buf)
	f.count -= n
}

// IsEmpty reports whether no bytes are buffered
func (f *FifoBuffer) IsEmpty() bool {
	return f.count == 0
}

// Reset clears the buffer
func (f *FifoBuffer) Reset() {
	f.head = 0
	f.count = 0
}
