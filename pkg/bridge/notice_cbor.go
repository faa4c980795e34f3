// SPDX-FileCopyrightText: 2026 The dtn7-sab Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bridge

import (
	"fmt"
	"io"
	"reflect"

	"github.com/dtn7/cboring"

	"github.com/dtn7/dtn7-sab/pkg/sab"
)

const (
	noticeGenericCode uint64 = 0
	noticeBundleCode  uint64 = 1
	noticeReportCode  uint64 = 2
	noticeCustodyCode uint64 = 3
)

// noticeMessage is the CBOR representation of a sab.Notice, sent over the notification WebSocket.
type noticeMessage interface {
	cboring.CborMarshaler

	typeCode() uint64
	notice() sab.Notice
}

var noticeMapping = map[uint64]reflect.Type{
	noticeGenericCode: reflect.TypeOf(genericMessage{}),
	noticeBundleCode:  reflect.TypeOf(bundleMessage{}),
	noticeReportCode:  reflect.TypeOf(reportMessage{}),
	noticeCustodyCode: reflect.TypeOf(custodyMessage{}),
}

func newNoticeMessage(n sab.Notice) (noticeMessage, error) {
	switch n := n.(type) {
	case sab.GenericNotification:
		return &genericMessage{n}, nil
	case sab.BundleNotification:
		return &bundleMessage{n}, nil
	case sab.StatusReport:
		return &reportMessage{n}, nil
	case sab.Custody:
		return &custodyMessage{n}, nil
	default:
		return nil, fmt.Errorf("unsupported notice type %T", n)
	}
}

// MarshalNotice writes a sab.Notice as a CBOR array of its type code and its fields.
func MarshalNotice(n sab.Notice, w io.Writer) error {
	msg, err := newNoticeMessage(n)
	if err != nil {
		return err
	}

	if err := cboring.WriteArrayLength(2, w); err != nil {
		return err
	}
	if err := cboring.WriteUInt(msg.typeCode(), w); err != nil {
		return err
	}
	return cboring.Marshal(msg, w)
}

// UnmarshalNotice reads a sab.Notice, written by MarshalNotice.
func UnmarshalNotice(r io.Reader) (sab.Notice, error) {
	if n, err := cboring.ReadArrayLength(r); err != nil {
		return nil, err
	} else if n != 2 {
		return nil, fmt.Errorf("expected array of two elements, got %d", n)
	}

	code, err := cboring.ReadUInt(r)
	if err != nil {
		return nil, err
	}

	msgType, ok := noticeMapping[code]
	if !ok {
		return nil, fmt.Errorf("unknown notice type code %d", code)
	}

	msg := reflect.New(msgType).Interface().(noticeMessage)
	if err := cboring.Unmarshal(msg, r); err != nil {
		return nil, err
	}
	return msg.notice(), nil
}

func writeOptionalUInt(n *uint64, w io.Writer) error {
	if n == nil {
		return cboring.WriteArrayLength(0, w)
	}
	if err := cboring.WriteArrayLength(1, w); err != nil {
		return err
	}
	return cboring.WriteUInt(*n, w)
}

func readOptionalUInt(r io.Reader) (*uint64, error) {
	l, err := cboring.ReadArrayLength(r)
	if err != nil {
		return nil, err
	}

	switch l {
	case 0:
		return nil, nil
	case 1:
		n, err := cboring.ReadUInt(r)
		if err != nil {
			return nil, err
		}
		return &n, nil
	default:
		return nil, fmt.Errorf("optional value has %d elements", l)
	}
}

func expectLength(r io.Reader, name string, length uint64) error {
	if n, err := cboring.ReadArrayLength(r); err != nil {
		return err
	} else if n != length {
		return fmt.Errorf("%s: expected array of %d elements, got %d", name, length, n)
	}
	return nil
}

// writeSubject writes the fields identifying a reported bundle: source, timestamp, sequence number and fragment.
func writeSubject(source string, timestamp, sequence uint64, fragment *sab.Fragment, w io.Writer) error {
	if err := cboring.WriteTextString(source, w); err != nil {
		return err
	}
	for _, n := range []uint64{timestamp, sequence} {
		if err := cboring.WriteUInt(n, w); err != nil {
			return err
		}
	}

	if fragment == nil {
		return cboring.WriteArrayLength(0, w)
	}
	if err := cboring.WriteArrayLength(2, w); err != nil {
		return err
	}
	for _, n := range []uint64{fragment.Offset, fragment.Length} {
		if err := cboring.WriteUInt(n, w); err != nil {
			return err
		}
	}
	return nil
}

func readSubject(r io.Reader) (source string, timestamp, sequence uint64, fragment *sab.Fragment, err error) {
	if source, err = cboring.ReadTextString(r); err != nil {
		return
	}
	if timestamp, err = cboring.ReadUInt(r); err != nil {
		return
	}
	if sequence, err = cboring.ReadUInt(r); err != nil {
		return
	}

	var l uint64
	if l, err = cboring.ReadArrayLength(r); err != nil {
		return
	}
	switch l {
	case 0:
	case 2:
		fragment = new(sab.Fragment)
		if fragment.Offset, err = cboring.ReadUInt(r); err != nil {
			return
		}
		fragment.Length, err = cboring.ReadUInt(r)
	default:
		err = fmt.Errorf("fragment has %d elements", l)
	}
	return
}

// genericMessage wraps a sab.GenericNotification.
type genericMessage struct {
	sab.GenericNotification
}

func (*genericMessage) typeCode() uint64 {
	return noticeGenericCode
}

func (gm *genericMessage) notice() sab.Notice {
	return gm.GenericNotification
}

func (gm *genericMessage) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(2, w); err != nil {
		return err
	}
	if err := cboring.WriteUInt(uint64(gm.Code), w); err != nil {
		return err
	}
	return cboring.WriteTextString(gm.Text, w)
}

func (gm *genericMessage) UnmarshalCbor(r io.Reader) error {
	if err := expectLength(r, "generic notice", 2); err != nil {
		return err
	}

	code, err := cboring.ReadUInt(r)
	if err != nil {
		return err
	}
	gm.Code = int(code)

	gm.Text, err = cboring.ReadTextString(r)
	return err
}

// bundleMessage wraps a sab.BundleNotification.
type bundleMessage struct {
	sab.BundleNotification
}

func (*bundleMessage) typeCode() uint64 {
	return noticeBundleCode
}

func (bm *bundleMessage) notice() sab.Notice {
	return bm.BundleNotification
}

func (bm *bundleMessage) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(4, w); err != nil {
		return err
	}
	if err := cboring.WriteTextString(bm.ID.Source, w); err != nil {
		return err
	}
	if err := cboring.WriteUInt(bm.ID.Timestamp, w); err != nil {
		return err
	}
	if err := cboring.WriteUInt(bm.ID.Sequence, w); err != nil {
		return err
	}
	return writeOptionalUInt(bm.ID.Fragment, w)
}

func (bm *bundleMessage) UnmarshalCbor(r io.Reader) (err error) {
	if err = expectLength(r, "bundle notice", 4); err != nil {
		return
	}

	if bm.ID.Source, err = cboring.ReadTextString(r); err != nil {
		return
	}
	if bm.ID.Timestamp, err = cboring.ReadUInt(r); err != nil {
		return
	}
	if bm.ID.Sequence, err = cboring.ReadUInt(r); err != nil {
		return
	}
	bm.ID.Fragment, err = readOptionalUInt(r)
	return
}

// reportMessage wraps a sab.StatusReport.
type reportMessage struct {
	sab.StatusReport
}

func (*reportMessage) typeCode() uint64 {
	return noticeReportCode
}

func (rm *reportMessage) notice() sab.Notice {
	return rm.StatusReport
}

func (rm *reportMessage) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(6, w); err != nil {
		return err
	}
	if err := writeSubject(rm.Source, rm.Timestamp, rm.Sequence, rm.Fragment, w); err != nil {
		return err
	}
	if err := cboring.WriteUInt(uint64(rm.Reason), w); err != nil {
		return err
	}
	return cboring.WriteUInt(uint64(rm.Status), w)
}

func (rm *reportMessage) UnmarshalCbor(r io.Reader) error {
	if err := expectLength(r, "status report notice", 6); err != nil {
		return err
	}

	var err error
	if rm.Source, rm.Timestamp, rm.Sequence, rm.Fragment, err = readSubject(r); err != nil {
		return err
	}

	reason, err := cboring.ReadUInt(r)
	if err != nil {
		return err
	}
	rm.Reason = sab.ReportReason(reason)

	status, err := cboring.ReadUInt(r)
	if err != nil {
		return err
	}
	rm.Status = sab.ReportStatus(status)

	return nil
}

// custodyMessage wraps a sab.Custody.
type custodyMessage struct {
	sab.Custody
}

func (*custodyMessage) typeCode() uint64 {
	return noticeCustodyCode
}

func (cm *custodyMessage) notice() sab.Notice {
	return cm.Custody
}

func (cm *custodyMessage) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(6, w); err != nil {
		return err
	}
	if err := writeSubject(cm.Source, cm.Timestamp, cm.Sequence, cm.Fragment, w); err != nil {
		return err
	}
	if err := cboring.WriteUInt(uint64(cm.Status), w); err != nil {
		return err
	}

	var reason *uint64
	if cm.Reason != nil {
		r := uint64(*cm.Reason)
		reason = &r
	}
	return writeOptionalUInt(reason, w)
}

func (cm *custodyMessage) UnmarshalCbor(r io.Reader) error {
	if err := expectLength(r, "custody notice", 6); err != nil {
		return err
	}

	var err error
	if cm.Source, cm.Timestamp, cm.Sequence, cm.Fragment, err = readSubject(r); err != nil {
		return err
	}

	status, err := cboring.ReadUInt(r)
	if err != nil {
		return err
	}
	cm.Status = sab.CustodyStatus(status)

	reason, err := readOptionalUInt(r)
	if err != nil {
		return err
	}
	if reason != nil {
		cr := sab.CustodyReason(*reason)
		cm.Reason = &cr
	}
	return nil
}
