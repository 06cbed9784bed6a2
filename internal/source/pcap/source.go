// Package pcap is a source replaying receiver traffic from a pcap or pcapng
// capture. The UDP and TCP payloads of matching packets are concatenated
// into the byte stream handed to the parser.
package pcap

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/mitchellh/mapstructure"
	"golang.org/x/net/bpf"

	"firestige.xyz/edie/internal/log"
	"firestige.xyz/edie/pkg/plugin"
)

const Name = "pcap"

var pcapngMagic = []byte{0x0a, 0x0d, 0x0d, 0x0a}

type Cfg struct {
	Path     string   `mapstructure:"path"`
	Protocol string   `mapstructure:"protocol"` // udp | tcp | any
	Ports    []uint16 `mapstructure:"ports"`
}

type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

type Source struct {
	cfg Cfg

	file    *os.File
	counter *countingReader
	size    int64
	reader  packetReader
	vm      *bpf.VM
	pending []byte

	packets  uint64
	filtered uint64
}

// NewSource is the registry factory.
func NewSource() plugin.Source {
	return &Source{}
}

// New returns a source for cfg. Start opens the capture.
func New(cfg Cfg) *Source {
	return &Source{cfg: cfg}
}

func (s *Source) Name() string { return Name }

func (s *Source) Init(cfg map[string]any) error {
	var c Cfg
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &c,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("decode pcap source config: %w", err)
	}
	if c.Path == "" {
		return fmt.Errorf("path is required")
	}
	s.cfg = c
	return nil
}

func (s *Source) Start(ctx context.Context) error {
	if len(s.cfg.Ports) > 0 {
		ins, err := PortFilter(s.cfg.Protocol, s.cfg.Ports)
		if err != nil {
			return err
		}
		if s.vm, err = bpf.NewVM(ins); err != nil {
			return fmt.Errorf("failed to load port filter: %w", err)
		}
	}
	return s.open()
}

func (s *Source) open() error {
	f, err := os.Open(s.cfg.Path)
	if err != nil {
		return fmt.Errorf("failed to open capture %s: %w", s.cfg.Path, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	s.counter = &countingReader{r: f}
	br := bufio.NewReader(s.counter)

	magic, err := br.Peek(4)
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to read capture header: %w", err)
	}
	var r packetReader
	if bytes.Equal(magic, pcapngMagic) {
		r, err = pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	} else {
		r, err = pcapgo.NewReader(br)
	}
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to parse capture %s: %w", s.cfg.Path, err)
	}
	if s.vm != nil && r.LinkType() != layers.LinkTypeEthernet {
		f.Close()
		return fmt.Errorf("port filter requires an ethernet capture, got %s", r.LinkType())
	}

	s.file, s.size, s.reader, s.pending = f, st.Size(), r, nil
	log.GetLogger().WithFields(map[string]interface{}{
		"path":     s.cfg.Path,
		"linktype": r.LinkType().String(),
	}).Debug("capture opened")
	return nil
}

// Read copies the next payload bytes into p.
func (s *Source) Read(p []byte) (int, error) {
	if s.reader == nil {
		return 0, fmt.Errorf("pcap source not started")
	}
	for len(s.pending) == 0 {
		payload, err := s.next()
		if err != nil {
			return 0, err
		}
		s.pending = payload
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

// next returns the transport payload of the next accepted packet.
func (s *Source) next() ([]byte, error) {
	for {
		data, _, err := s.reader.ReadPacketData()
		if err != nil {
			if err == io.ErrUnexpectedEOF {
				return nil, io.EOF
			}
			return nil, err
		}
		s.packets++
		if s.vm != nil {
			if n, err := s.vm.Run(data); err != nil || n == 0 {
				s.filtered++
				continue
			}
		}
		packet := gopacket.NewPacket(data, s.reader.LinkType(), gopacket.DecodeOptions{Lazy: true, NoCopy: true})
		if payload := transportPayload(packet); len(payload) > 0 {
			return payload, nil
		}
	}
}

func transportPayload(packet gopacket.Packet) []byte {
	if udp, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP); ok {
		return udp.Payload
	}
	if tcp, ok := packet.Layer(layers.LayerTypeTCP).(*layers.TCP); ok {
		return tcp.Payload
	}
	return nil
}

func (s *Source) PercentRead() float64 {
	if s.counter == nil {
		return 0
	}
	if s.size == 0 {
		return 100
	}
	return float64(s.counter.n) * 100 / float64(s.size)
}

// Reset reopens the capture from the start.
func (s *Source) Reset() error {
	if s.file == nil {
		return fmt.Errorf("pcap source not started")
	}
	s.file.Close()
	return s.open()
}

// Stats returns the number of packets read and dropped by the port filter.
func (s *Source) Stats() (packets, filtered uint64) {
	return s.packets, s.filtered
}

func (s *Source) Stop(ctx context.Context) error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file, s.reader, s.counter = nil, nil, nil
	return err
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
