package pcap

import (
	"fmt"
	"strings"

	"golang.org/x/net/bpf"
)

const (
	etherTypeIPv4 = 0x0800
	protoTCP      = 6
	protoUDP      = 17
	ipv4Offset    = 14
)

// program is a BPF program under construction with symbolic jump targets.
type program struct {
	ins    []bpf.Instruction
	fixups []fixup
}

type fixup struct {
	at      int
	onTrue  string
	onFalse string
}

func (p *program) emit(i bpf.Instruction) { p.ins = append(p.ins, i) }

// jump emits a conditional jump; an empty label falls through.
func (p *program) jump(cond bpf.JumpTest, val uint32, onTrue, onFalse string) {
	p.fixups = append(p.fixups, fixup{at: len(p.ins), onTrue: onTrue, onFalse: onFalse})
	p.emit(bpf.JumpIf{Cond: cond, Val: val})
}

func (p *program) resolve(labels map[string]int) ([]bpf.Instruction, error) {
	skip := func(from int, label string) (uint8, error) {
		if label == "" {
			return 0, nil
		}
		to, ok := labels[label]
		if !ok {
			return 0, fmt.Errorf("bpf: undefined label %q", label)
		}
		d := to - from - 1
		if d < 0 || d > 255 {
			return 0, fmt.Errorf("bpf: jump to %q out of range", label)
		}
		return uint8(d), nil
	}
	for _, f := range p.fixups {
		j := p.ins[f.at].(bpf.JumpIf)
		var err error
		if j.SkipTrue, err = skip(f.at, f.onTrue); err != nil {
			return nil, err
		}
		if j.SkipFalse, err = skip(f.at, f.onFalse); err != nil {
			return nil, err
		}
		p.ins[f.at] = j
	}
	return p.ins, nil
}

// PortFilter assembles a classic BPF program accepting unfragmented IPv4
// Ethernet frames whose UDP or TCP source or destination port is in ports.
// proto is "udp", "tcp" or "any".
func PortFilter(proto string, ports []uint16) ([]bpf.Instruction, error) {
	if len(ports) == 0 {
		return nil, fmt.Errorf("bpf: no ports")
	}
	var p program
	p.emit(bpf.LoadAbsolute{Off: 12, Size: 2})
	p.jump(bpf.JumpEqual, etherTypeIPv4, "", "drop")
	p.emit(bpf.LoadAbsolute{Off: ipv4Offset + 9, Size: 1})
	switch strings.ToLower(proto) {
	case "udp":
		p.jump(bpf.JumpEqual, protoUDP, "", "drop")
	case "tcp":
		p.jump(bpf.JumpEqual, protoTCP, "", "drop")
	case "", "any":
		p.jump(bpf.JumpEqual, protoUDP, "ports", "")
		p.jump(bpf.JumpEqual, protoTCP, "", "drop")
	default:
		return nil, fmt.Errorf("bpf: unsupported protocol %q", proto)
	}
	labels := map[string]int{"ports": len(p.ins)}
	p.emit(bpf.LoadAbsolute{Off: ipv4Offset + 6, Size: 2})
	p.jump(bpf.JumpBitsSet, 0x1fff, "drop", "")
	p.emit(bpf.LoadMemShift{Off: ipv4Offset})
	for _, off := range []uint32{ipv4Offset, ipv4Offset + 2} {
		p.emit(bpf.LoadIndirect{Off: off, Size: 2})
		for _, port := range ports {
			p.jump(bpf.JumpEqual, uint32(port), "accept", "")
		}
	}
	labels["drop"] = len(p.ins)
	p.emit(bpf.RetConstant{Val: 0})
	labels["accept"] = len(p.ins)
	p.emit(bpf.RetConstant{Val: 0x40000})
	return p.resolve(labels)
}
