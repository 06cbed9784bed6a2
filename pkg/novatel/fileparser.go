package novatel

import (
	"errors"
	"io"
	"os"

	"firestige.xyz/edie/pkg/schema"
)

// InputStream is a restartable byte source.
type InputStream interface {
	Read(p []byte) (int, error)
	Reset() error
	PercentRead() float64
}

// FileParser drives a Parser from an InputStream.
type FileParser struct {
	*Parser
	stream InputStream
	chunk  []byte
	eof    bool
}

const defaultReadSize = 4096

// NewFileParser returns a FileParser reading from stream.
func NewFileParser(db *schema.Database, stream InputStream, opts ...ParserOption) *FileParser {
	return &FileParser{
		Parser: NewParser(db, opts...),
		stream: stream,
		chunk:  make([]byte, defaultReadSize),
	}
}

// SetStream replaces the input stream and discards buffered bytes.
func (fp *FileParser) SetStream(stream InputStream) {
	fp.stream = stream
	fp.eof = false
	fp.Parser.Flush()
}

// Read returns the next message, pulling from the stream as needed.
// StatusStreamEmpty is returned once the stream and buffer are exhausted.
func (fp *FileParser) Read() (*Result, error) {
	if fp.stream == nil {
		return nil, StatusNullProvided
	}
	for {
		res, err := fp.Parser.Read()
		if err == nil || StatusOf(err) == StatusUnknown {
			return res, err
		}
		if !StatusOf(err).Retryable() {
			return nil, err
		}
		if fp.eof {
			return fp.drain()
		}
		if err := fp.fill(); err != nil {
			return nil, err
		}
	}
}

func (fp *FileParser) fill() error {
	n := min(len(fp.chunk), fp.Parser.AvailableBytes())
	if n == 0 {
		return statusf(StatusBufferFull, "framer buffer full")
	}
	read, err := fp.stream.Read(fp.chunk[:n])
	if read > 0 {
		if _, werr := fp.Parser.Write(fp.chunk[:read]); werr != nil {
			return werr
		}
	}
	if errors.Is(err, io.EOF) {
		fp.eof = true
		return nil
	}
	if err != nil {
		return statusf(StatusFailure, "read stream: %v", err)
	}
	return nil
}

// drain returns bytes left over at end of stream as unknown data.
func (fp *FileParser) drain() (*Result, error) {
	rest := fp.Parser.Flush()
	if len(rest) == 0 || !fp.returnUnknownBytes {
		return nil, StatusStreamEmpty
	}
	meta := NewMetaData()
	meta.Length = uint32(len(rest))
	return &Result{Meta: meta, Data: MessageData{Message: rest}}, StatusUnknown
}

// Reset restarts the stream and clears buffered bytes.
func (fp *FileParser) Reset() error {
	if fp.stream == nil {
		return StatusNullProvided
	}
	if err := fp.stream.Reset(); err != nil {
		return err
	}
	fp.eof = false
	fp.Parser.Flush()
	return nil
}

// PercentRead reports how much of the stream has been consumed.
func (fp *FileParser) PercentRead() float64 {
	if fp.stream == nil {
		return 0
	}
	return fp.stream.PercentRead()
}

// FileStream is an InputStream over a regular file.
type FileStream struct {
	f    *os.File
	size int64
	read int64
}

// OpenFileStream opens path for reading.
func OpenFileStream(path string) (*FileStream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &FileStream{f: f, size: st.Size()}, nil
}

func (s *FileStream) Read(p []byte) (int, error) {
	n, err := s.f.Read(p)
	s.read += int64(n)
	return n, err
}

func (s *FileStream) Reset() error {
	if _, err := s.f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	s.read = 0
	return nil
}

func (s *FileStream) PercentRead() float64 {
	if s.size == 0 {
		return 100
	}
	return float64(s.read) * 100 / float64(s.size)
}

func (s *FileStream) Close() error { return s.f.Close() }
