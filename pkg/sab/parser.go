// SPDX-FileCopyrightText: 2026 The dtn7-sab Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sab

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

// State of a Parser.
type State int

const (
	// StateResponse awaits a response or notification line. This is the initial state.
	StateResponse State = iota
	// StateList collects the items of a list until a blank line.
	StateList
	// StateBundle reads the bundle's header attributes.
	StateBundle
	// StateBundleInfo reads the bundle's header attributes of a "bundle info" reply.
	StateBundleInfo
	// StateBlock reads block headers.
	StateBlock
	// StateBlockInfo reads block headers of a "bundle info" reply, which carry no data.
	StateBlockInfo
	// StateData reads the current block's data lines.
	StateData
	// StatePayloadHeader reads the attributes of a "payload get" reply.
	StatePayloadHeader
	// StatePayloadData reads the data lines of a "payload get" reply.
	StatePayloadData
)

func (s State) String() string {
	switch s {
	case StateResponse:
		return "RESPONSE"
	case StateList:
		return "LIST"
	case StateBundle:
		return "BUNDLE"
	case StateBundleInfo:
		return "BUNDLE_INFO"
	case StateBlock:
		return "BLOCK"
	case StateBlockInfo:
		return "BLOCK_INFO"
	case StateData:
		return "DATA"
	case StatePayloadHeader:
		return "PAYLOAD_HEADER"
	case StatePayloadData:
		return "PAYLOAD_DATA"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

// Parser turns a SAB byte stream into Events. It is not safe for concurrent use, except for Abort.
//
// Any error returned by Next or Run leaves the Parser in an undefined state. Reset must be called before it is
// used again.
type Parser struct {
	reader *bufio.Reader

	state     State
	lastBlock bool
	openBlock bool
	// initial is set while the first line of a data section is awaited.
	initial bool

	listMarker string
	listItems  []string

	pending []Event

	aborted uint32
}

// NewParser creates a Parser reading from r, starting in StateResponse.
func NewParser(r io.Reader) *Parser {
	return &Parser{
		reader: bufio.NewReader(r),
		state:  StateResponse,
	}
}

// Reset the Parser to StateResponse and clear all transfer related state. If r is not nil, further reads are taken
// from r and buffered data is dropped. Otherwise the current reader is kept together with its buffered data.
func (p *Parser) Reset(r io.Reader) {
	if r != nil {
		p.reader.Reset(r)
	}

	p.state = StateResponse
	p.lastBlock = false
	p.openBlock = false
	p.initial = false
	p.listMarker = ""
	p.listItems = nil
	p.pending = nil

	atomic.StoreUint32(&p.aborted, 0)
}

// Abort the Parser cooperatively. The flag is checked before each read. A blocking read is not interrupted; closing
// the underlying stream afterwards results in a clean exit.
func (p *Parser) Abort() {
	atomic.StoreUint32(&p.aborted, 1)
}

func (p *Parser) isAborted() bool {
	return atomic.LoadUint32(&p.aborted) != 0
}

// State returns the Parser's current state.
func (p *Parser) State() State {
	return p.state
}

// Next returns the next Event. After Abort, ErrAborted is returned.
func (p *Parser) Next() (Event, error) {
	for len(p.pending) == 0 {
		if p.isAborted() {
			return nil, ErrAborted
		}

		line, err := p.readLine()
		if err != nil {
			return nil, err
		}

		if err := p.step(line); err != nil {
			return nil, err
		}
	}

	ev := p.pending[0]
	p.pending = p.pending[1:]
	return ev, nil
}

// Run reads Events and passes them to f until the stream ends, an error occurs, or the Parser was aborted. An error
// returned by f stops Run and is passed through. An aborted Run returns nil.
func (p *Parser) Run(f func(Event) error) error {
	for {
		ev, err := p.Next()
		if errors.Is(err, ErrAborted) {
			return nil
		} else if err != nil {
			return err
		}

		if err := f(ev); err != nil {
			return err
		}
	}
}

func (p *Parser) readLine() (string, error) {
	line, err := p.reader.ReadString('\n')
	if err != nil && !(err == io.EOF && len(line) > 0) {
		if p.isAborted() {
			return "", ErrAborted
		} else if err == io.EOF {
			return "", ErrStreamClosed
		}
		return "", fmt.Errorf("%w: %v", ErrStreamClosed, err)
	}

	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return line, nil
}

func (p *Parser) emit(evs ...Event) {
	p.pending = append(p.pending, evs...)
}

func (p *Parser) setState(s State) {
	if p.state != s {
		log.WithFields(log.Fields{
			"from": p.state,
			"to":   s,
		}).Trace("SAB parser changed state")
	}
	p.state = s
}

func (p *Parser) frameError(err error, line string) error {
	return &FrameError{Err: err, State: p.state, Line: line}
}

func (p *Parser) step(line string) error {
	switch p.state {
	case StateResponse:
		return p.stepResponse(line)

	case StateList:
		p.stepList(line)
		return nil

	case StateBundle, StateBundleInfo:
		return p.stepBundle(line)

	case StateBlock, StateBlockInfo:
		return p.stepBlock(line)

	case StateData, StatePayloadData:
		p.stepData(line)
		return nil

	case StatePayloadHeader:
		return p.stepPayloadHeader(line)

	default:
		return fmt.Errorf("sab: parser in unknown state %v", p.state)
	}
}

// parseResponse splits a "<code> <text>" line. The code consists of decimal digits only and is always followed by a
// space, the text may be empty.
func parseResponse(line string) (code int, text string, ok bool) {
	codeStr, text, ok := strings.Cut(line, " ")
	if !ok || codeStr == "" {
		return 0, "", false
	}
	for _, c := range codeStr {
		if c < '0' || c > '9' {
			return 0, "", false
		}
	}

	code, err := strconv.Atoi(codeStr)
	if err != nil {
		return 0, "", false
	}
	return code, text, true
}

// parseAttribute splits a "<key>: <value>" line at its first colon.
func parseAttribute(line string) (key, value string, ok bool) {
	key, value, ok = strings.Cut(line, ":")
	if !ok {
		return
	}
	return strings.TrimSpace(key), strings.TrimSpace(value), true
}

func (p *Parser) stepResponse(line string) error {
	if line == "" {
		return nil
	}

	code, text, ok := parseResponse(line)
	if !ok {
		return p.frameError(ErrInvalidResponse, line)
	}

	switch {
	case code >= NotifyCommon:
		p.emit(Notification{Code: code, Text: text})

	case code == StatusOK && (text == markerRegistrationList || text == markerNeighborList):
		p.listMarker = text
		p.listItems = []string{}
		p.setState(StateList)

	case code == StatusOK && strings.HasPrefix(text, markerBundleGet):
		p.emit(BundleStart{Text: text})
		p.setState(StateBundle)

	case code == StatusOK && strings.HasPrefix(text, markerBundleInfo):
		p.emit(BundleStart{Text: text})
		p.setState(StateBundleInfo)

	case code == StatusOK && strings.HasPrefix(text, markerPayloadGet):
		p.emit(PayloadStart{Text: text})
		p.setState(StatePayloadHeader)

	default:
		p.emit(Response{Code: code, Text: text})
	}

	return nil
}

// stepList collects list items. A blank line always ends the list, so a blank line directly after the marker
// yields an empty list.
func (p *Parser) stepList(line string) {
	if line != "" {
		p.listItems = append(p.listItems, line)
		return
	}

	p.emit(List{Marker: p.listMarker, Items: p.listItems})
	p.listMarker = ""
	p.listItems = nil
	p.setState(StateResponse)
}

func (p *Parser) stepBundle(line string) error {
	if line == "" {
		if p.state == StateBundleInfo {
			p.setState(StateBlockInfo)
		} else {
			p.setState(StateBlock)
		}
		return nil
	}

	key, value, ok := parseAttribute(line)
	if !ok {
		return p.frameError(ErrMalformedAttribute, line)
	}

	p.emit(BundleAttribute{Key: key, Value: value})
	return nil
}

func (p *Parser) stepBlock(line string) error {
	if line == "" {
		if p.state == StateBlockInfo {
			p.endBlock(StateBlockInfo)
		} else {
			p.initial = true
			p.setState(StateData)
		}
		return nil
	}

	key, value, ok := parseAttribute(line)
	if !ok {
		return p.frameError(ErrMalformedAttribute, line)
	}

	switch {
	case strings.EqualFold(key, "block"):
		blockType, err := strconv.Atoi(value)
		if err != nil {
			return p.frameError(ErrMalformedAttribute, line)
		} else if p.openBlock {
			return p.frameError(fmt.Errorf("%w: block started before the previous one ended", ErrMalformedAttribute), line)
		}

		p.openBlock = true
		p.emit(BlockStart{Type: blockType})

	case strings.EqualFold(key, "flags"):
		p.lastBlock = strings.Contains(value, lastBlockFlag)
		p.emit(BlockAttribute{Key: key, Value: value})

	default:
		p.emit(BlockAttribute{Key: key, Value: value})
	}

	return nil
}

func (p *Parser) stepData(line string) {
	initial := p.initial
	p.initial = false

	// The first data line is passed on even if empty, an empty data section consists of this single line.
	if line != "" || initial {
		p.emit(PayloadLine{Line: line})
		return
	}

	if p.state == StatePayloadData {
		p.emit(PayloadEnd{})
		p.setState(StateResponse)
	} else {
		p.endBlock(StateBlock)
	}
}

// endBlock emits BlockEnd and, for the last block, BundleEnd. Otherwise next becomes the new state.
func (p *Parser) endBlock(next State) {
	p.openBlock = false
	p.emit(BlockEnd{})

	if p.lastBlock {
		p.lastBlock = false
		p.emit(BundleEnd{})
		p.setState(StateResponse)
	} else {
		p.setState(next)
	}
}

func (p *Parser) stepPayloadHeader(line string) error {
	if line == "" {
		p.initial = true
		p.setState(StatePayloadData)
		return nil
	}

	key, value, ok := parseAttribute(line)
	if !ok {
		return p.frameError(ErrMalformedAttribute, line)
	}

	p.emit(PayloadAttribute{Key: key, Value: value})
	return nil
}
