// SPDX-FileCopyrightText: 2026 The dtn7-sab Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sab

import (
	"fmt"
	"io"
	"sort"

	"github.com/dtn7/cboring"
)

func writeStringMap(m map[string]string, w io.Writer) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if err := cboring.WriteMapPairLength(uint64(len(keys)), w); err != nil {
		return err
	}
	for _, k := range keys {
		if err := cboring.WriteTextString(k, w); err != nil {
			return err
		}
		if err := cboring.WriteTextString(m[k], w); err != nil {
			return err
		}
	}
	return nil
}

func readStringMap(r io.Reader) (map[string]string, error) {
	n, err := cboring.ReadMapPairLength(r)
	if err != nil {
		return nil, err
	}

	m := make(map[string]string, n)
	for i := uint64(0); i < n; i++ {
		k, err := cboring.ReadTextString(r)
		if err != nil {
			return nil, err
		}
		v, err := cboring.ReadTextString(r)
		if err != nil {
			return nil, err
		}
		m[k] = v
	}
	return m, nil
}

func expectArray(r io.Reader, name string, length uint64) error {
	if n, err := cboring.ReadArrayLength(r); err != nil {
		return err
	} else if n != length {
		return fmt.Errorf("%s: expected array of %d elements, got %d", name, length, n)
	}
	return nil
}

// MarshalCbor writes the Block's CBOR representation.
func (b *Block) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(5, w); err != nil {
		return err
	}

	if err := cboring.WriteUInt(uint64(b.Type), w); err != nil {
		return err
	}

	if err := cboring.WriteArrayLength(uint64(len(b.Flags)), w); err != nil {
		return err
	}
	for _, flag := range b.Flags {
		if err := cboring.WriteTextString(flag, w); err != nil {
			return err
		}
	}

	if err := cboring.WriteUInt(b.Length, w); err != nil {
		return err
	}

	if err := writeStringMap(b.Attributes, w); err != nil {
		return fmt.Errorf("marshalling block attributes failed: %v", err)
	}

	return cboring.WriteByteString(b.Data, w)
}

// UnmarshalCbor reads a Block from its CBOR representation.
func (b *Block) UnmarshalCbor(r io.Reader) error {
	if err := expectArray(r, "block", 5); err != nil {
		return err
	}

	if t, err := cboring.ReadUInt(r); err != nil {
		return err
	} else {
		b.Type = int(t)
	}

	n, err := cboring.ReadArrayLength(r)
	if err != nil {
		return err
	}
	b.Flags = make([]string, 0, n)
	for i := uint64(0); i < n; i++ {
		flag, err := cboring.ReadTextString(r)
		if err != nil {
			return err
		}
		b.Flags = append(b.Flags, flag)
	}

	if b.Length, err = cboring.ReadUInt(r); err != nil {
		return err
	}

	if b.Attributes, err = readStringMap(r); err != nil {
		return fmt.Errorf("unmarshalling block attributes failed: %v", err)
	}

	b.Data, err = cboring.ReadByteString(r)
	return err
}

// MarshalCbor writes the Bundle's CBOR representation.
func (b *Bundle) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(12, w); err != nil {
		return err
	}

	for _, s := range []string{b.Source, b.Destination, b.ReportTo, b.Custodian} {
		if err := cboring.WriteTextString(s, w); err != nil {
			return err
		}
	}

	for _, n := range []uint64{b.Timestamp, b.Sequence, b.Lifetime, uint64(b.ProcessingFlags)} {
		if err := cboring.WriteUInt(n, w); err != nil {
			return err
		}
	}

	if b.FragmentOffset == nil {
		if err := cboring.WriteArrayLength(0, w); err != nil {
			return err
		}
	} else {
		if err := cboring.WriteArrayLength(1, w); err != nil {
			return err
		}
		if err := cboring.WriteUInt(*b.FragmentOffset, w); err != nil {
			return err
		}
	}

	if err := cboring.WriteUInt(b.AppDataLength, w); err != nil {
		return err
	}

	if err := writeStringMap(b.Attributes, w); err != nil {
		return fmt.Errorf("marshalling bundle attributes failed: %v", err)
	}

	if err := cboring.WriteArrayLength(uint64(len(b.Blocks)), w); err != nil {
		return err
	}
	for i := range b.Blocks {
		if err := cboring.Marshal(&b.Blocks[i], w); err != nil {
			return fmt.Errorf("marshalling block %d failed: %v", i, err)
		}
	}

	return nil
}

// UnmarshalCbor reads a Bundle from its CBOR representation.
func (b *Bundle) UnmarshalCbor(r io.Reader) error {
	if err := expectArray(r, "bundle", 12); err != nil {
		return err
	}

	for _, s := range []*string{&b.Source, &b.Destination, &b.ReportTo, &b.Custodian} {
		if v, err := cboring.ReadTextString(r); err != nil {
			return err
		} else {
			*s = v
		}
	}

	var flags uint64
	for _, n := range []*uint64{&b.Timestamp, &b.Sequence, &b.Lifetime, &flags} {
		if v, err := cboring.ReadUInt(r); err != nil {
			return err
		} else {
			*n = v
		}
	}
	b.ProcessingFlags = ProcessingFlags(flags)

	if n, err := cboring.ReadArrayLength(r); err != nil {
		return err
	} else if n == 1 {
		offset, err := cboring.ReadUInt(r)
		if err != nil {
			return err
		}
		b.FragmentOffset = &offset
	} else if n != 0 {
		return fmt.Errorf("bundle: fragment offset array has %d elements", n)
	}

	var err error
	if b.AppDataLength, err = cboring.ReadUInt(r); err != nil {
		return err
	}

	if b.Attributes, err = readStringMap(r); err != nil {
		return fmt.Errorf("unmarshalling bundle attributes failed: %v", err)
	}

	n, err := cboring.ReadArrayLength(r)
	if err != nil {
		return err
	}
	b.Blocks = make([]Block, n)
	for i := range b.Blocks {
		if err := cboring.Unmarshal(&b.Blocks[i], r); err != nil {
			return fmt.Errorf("unmarshalling block %d failed: %v", i, err)
		}
	}

	return nil
}

// MarshalCbor writes the Outgoing bundle's CBOR representation.
func (o *Outgoing) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(5, w); err != nil {
		return err
	}

	if err := cboring.WriteTextString(o.Destination, w); err != nil {
		return err
	}
	if err := cboring.WriteBoolean(o.Group, w); err != nil {
		return err
	}
	if err := cboring.WriteUInt(o.Lifetime, w); err != nil {
		return err
	}
	if err := cboring.WriteUInt(uint64(o.Flags), w); err != nil {
		return err
	}
	return cboring.WriteByteString(o.Payload, w)
}

// UnmarshalCbor reads an Outgoing bundle from its CBOR representation.
func (o *Outgoing) UnmarshalCbor(r io.Reader) (err error) {
	if err = expectArray(r, "outgoing bundle", 5); err != nil {
		return
	}

	if o.Destination, err = cboring.ReadTextString(r); err != nil {
		return
	}
	if o.Group, err = cboring.ReadBoolean(r); err != nil {
		return
	}
	if o.Lifetime, err = cboring.ReadUInt(r); err != nil {
		return
	}

	var flags uint64
	if flags, err = cboring.ReadUInt(r); err != nil {
		return
	}
	o.Flags = ProcessingFlags(flags)

	o.Payload, err = cboring.ReadByteString(r)
	return
}
