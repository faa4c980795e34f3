// SPDX-FileCopyrightText: 2026 The dtn7-sab Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sab

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// ProcessingFlags of a bundle's primary block.
type ProcessingFlags uint64

const (
	FlagFragment               ProcessingFlags = 1 << 0
	FlagAdministrativeRecord   ProcessingFlags = 1 << 1
	FlagMustNotFragment        ProcessingFlags = 1 << 2
	FlagCustodyRequest         ProcessingFlags = 1 << 3
	FlagDestinationIsSingleton ProcessingFlags = 1 << 4
	FlagAppAckRequest          ProcessingFlags = 1 << 5
	FlagPriorityBit1           ProcessingFlags = 1 << 7
	FlagPriorityBit2           ProcessingFlags = 1 << 8
	FlagReceptionReport        ProcessingFlags = 1 << 14
	FlagCustodyReport          ProcessingFlags = 1 << 15
	FlagForwardReport          ProcessingFlags = 1 << 16
	FlagDeliveryReport         ProcessingFlags = 1 << 17
	FlagDeletionReport         ProcessingFlags = 1 << 18
)

// Has checks if all bits of flag are set.
func (pf ProcessingFlags) Has(flag ProcessingFlags) bool {
	return pf&flag == flag
}

// PayloadBlockType is the block type of the payload block.
const PayloadBlockType = 1

// Block of a received Bundle. Data is the decoded block data; it stays empty for blocks of a "bundle info" reply.
type Block struct {
	Type       int
	Flags      []string
	Length     uint64
	Attributes map[string]string
	Data       []byte
}

// IsLast reports if this block carries the LAST_BLOCK flag.
func (b Block) IsLast() bool {
	for _, flag := range b.Flags {
		if flag == lastBlockFlag {
			return true
		}
	}
	return false
}

// Bundle is a received bundle, materialized from the Parser's events by a BundleBuilder.
type Bundle struct {
	Source      string
	Destination string
	ReportTo    string
	Custodian   string

	Timestamp       uint64
	Sequence        uint64
	Lifetime        uint64
	ProcessingFlags ProcessingFlags

	FragmentOffset *uint64
	AppDataLength  uint64

	// Attributes holds header attributes without a dedicated field.
	Attributes map[string]string

	Blocks []Block
}

// ID of this Bundle.
func (b Bundle) ID() BundleID {
	bid := BundleID{Source: b.Source, Timestamp: b.Timestamp, Sequence: b.Sequence}
	if b.FragmentOffset != nil {
		offset := *b.FragmentOffset
		bid.Fragment = &offset
	}
	return bid
}

// PayloadBlock returns the first block of PayloadBlockType.
func (b Bundle) PayloadBlock() (*Block, error) {
	for i := range b.Blocks {
		if b.Blocks[i].Type == PayloadBlockType {
			return &b.Blocks[i], nil
		}
	}
	return nil, fmt.Errorf("bundle %v has no payload block", b.ID())
}

// Payload returns the data of the payload block or nil, if there is none.
func (b Bundle) Payload() []byte {
	if pb, err := b.PayloadBlock(); err == nil {
		return pb.Data
	}
	return nil
}

func (b Bundle) String() string {
	return fmt.Sprintf("bundle %v to %s with %d blocks", b.ID(), b.Destination, len(b.Blocks))
}

// lineDecoder decodes base64 data spread over multiple lines, which need not be aligned to full quanta.
type lineDecoder struct {
	rest string
}

func (ld *lineDecoder) decode(line string) ([]byte, error) {
	data := ld.rest + strings.TrimSpace(line)
	n := len(data) / 4 * 4
	ld.rest = data[n:]

	return base64.StdEncoding.DecodeString(data[:n])
}

func (ld *lineDecoder) flush() ([]byte, error) {
	if ld.rest == "" {
		return nil, nil
	}

	rest := ld.rest
	ld.rest = ""
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(rest, "="))
}

// BundleBuilder assembles a Bundle from a sequence of Events, starting with BundleStart and ending with BundleEnd.
//
// Malformed attribute values do not stop the builder. The first such error is returned by Apply for the BundleEnd.
type BundleBuilder struct {
	bundle  *Bundle
	block   *Block
	raw     bool
	decoder lineDecoder
	chunk   []byte
	err     error
}

// NewBundleBuilder for a single bundle transfer.
func NewBundleBuilder() *BundleBuilder {
	return &BundleBuilder{}
}

// InProgress reports if a BundleStart was applied, but no BundleEnd yet.
func (bb *BundleBuilder) InProgress() bool {
	return bb.bundle != nil
}

// Discard a partially assembled Bundle.
func (bb *BundleBuilder) Discard() {
	bb.bundle = nil
	bb.block = nil
	bb.raw = false
	bb.decoder = lineDecoder{}
	bb.err = nil
}

func (bb *BundleBuilder) fail(err error) {
	if bb.err == nil {
		bb.err = err
	}
}

// Apply the next Event. When the BundleEnd is applied, the completed Bundle is returned. Events not belonging to a
// bundle transfer result in an error.
func (bb *BundleBuilder) Apply(ev Event) (*Bundle, error) {
	bb.chunk = nil

	if _, isStart := ev.(BundleStart); !isStart && bb.bundle == nil {
		return nil, fmt.Errorf("%v event outside of a bundle transfer", ev.Kind())
	}

	switch ev := ev.(type) {
	case BundleStart:
		bb.Discard()
		bb.bundle = &Bundle{Attributes: make(map[string]string)}

	case BundleAttribute:
		bb.headerAttribute(ev.Key, ev.Value)

	case BlockStart:
		bb.bundle.Blocks = append(bb.bundle.Blocks, Block{Type: ev.Type, Attributes: make(map[string]string)})
		bb.block = &bb.bundle.Blocks[len(bb.bundle.Blocks)-1]
		bb.raw = false
		bb.decoder = lineDecoder{}

	case BlockAttribute:
		if bb.block == nil {
			bb.fail(fmt.Errorf("block attribute %q outside of a block", ev.Key))
			return nil, nil
		}
		bb.blockAttribute(ev.Key, ev.Value)

	case PayloadLine:
		if bb.block == nil {
			bb.fail(fmt.Errorf("payload outside of a block"))
			return nil, nil
		}
		if bb.raw && ev.Line == "" && bb.block.Length == 0 && len(bb.block.Data) == 0 {
			// The single line of an empty raw block.
			bb.chunk = nil
		} else if chunk, err := bb.DecodeLine(ev.Line); err != nil {
			bb.fail(err)
		} else {
			bb.chunk = chunk
			bb.block.Data = append(bb.block.Data, chunk...)
		}

	case BlockEnd:
		if bb.block == nil {
			bb.fail(fmt.Errorf("block end outside of a block"))
			return nil, nil
		}
		if chunk, err := bb.decoder.flush(); err != nil {
			bb.fail(fmt.Errorf("decoding block data failed: %v", err))
		} else {
			bb.chunk = chunk
			bb.block.Data = append(bb.block.Data, chunk...)
		}
		bb.block = nil

	case BundleEnd:
		b, err := bb.bundle, bb.err
		bb.Discard()
		return b, err

	default:
		return nil, fmt.Errorf("%v event is not part of a bundle transfer", ev.Kind())
	}

	return nil, nil
}

// Chunk returns the block data decoded by the most recently applied PayloadLine or BlockEnd, if any.
func (bb *BundleBuilder) Chunk() []byte {
	return bb.chunk
}

// DecodeLine decodes one data line of the current block, respecting its encoding.
func (bb *BundleBuilder) DecodeLine(line string) ([]byte, error) {
	if bb.raw {
		return []byte(line + "\n"), nil
	}

	data, err := bb.decoder.decode(line)
	if err != nil {
		return nil, fmt.Errorf("decoding block data failed: %v", err)
	}
	return data, nil
}

func (bb *BundleBuilder) parseUint(key, value string) uint64 {
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		bb.fail(fmt.Errorf("attribute %q has an invalid value %q: %v", key, value, err))
	}
	return n
}

func (bb *BundleBuilder) headerAttribute(key, value string) {
	b := bb.bundle

	switch strings.ToLower(key) {
	case "source":
		b.Source = value
	case "destination":
		b.Destination = value
	case "reportto":
		b.ReportTo = value
	case "custodian":
		b.Custodian = value
	case "timestamp":
		b.Timestamp = bb.parseUint(key, value)
	case "sequencenumber":
		b.Sequence = bb.parseUint(key, value)
	case "lifetime":
		b.Lifetime = bb.parseUint(key, value)
	case "processing flags", "procflags":
		b.ProcessingFlags = ProcessingFlags(bb.parseUint(key, value))
	case "fragment offset":
		offset := bb.parseUint(key, value)
		b.FragmentOffset = &offset
	case "application data length":
		b.AppDataLength = bb.parseUint(key, value)
	default:
		b.Attributes[key] = value
	}
}

func (bb *BundleBuilder) blockAttribute(key, value string) {
	switch strings.ToLower(key) {
	case "flags":
		bb.block.Flags = strings.Fields(value)
	case "length":
		bb.block.Length = bb.parseUint(key, value)
	case "encoding":
		bb.raw = strings.EqualFold(value, "raw")
		bb.block.Attributes[key] = value
	default:
		bb.block.Attributes[key] = value
	}
}
