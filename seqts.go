package netexp

// seqts.go encodes the fixed size header every instrumented data packet
// carries in front of its payload: a sequence number and the simulated
// send time.  The wire layout is an RTP fixed header (RFC 3550), with the
// timestamp field counting microseconds of simulated time and the SSRC
// field carrying the id of the sending node.

import (
	"errors"
	"fmt"
	"github.com/pion/rtp"
	"math"
)

// SeqTsHeaderSize is the number of bytes the header occupies on the wire
const SeqTsHeaderSize = 12

// seqTsTicksPerSec is the resolution of the encoded send time
const seqTsTicksPerSec = 1e6

// MaxSeqTsTime is the largest simulated send time the header can represent
const MaxSeqTsTime = float64(^uint32(0)) / seqTsTicksPerSec

// seqTsPayloadType marks packets emitted by the traffic generator
const seqTsPayloadType = 96

// ErrMalformedHeader is returned when a received packet does not begin with a
// decodable sequence+timestamp header
var ErrMalformedHeader = errors.New("malformed sequence/timestamp header")

// SeqTsHeader is the decoded form of the header
type SeqTsHeader struct {
	Seq    uint16
	SendTs float64 // simulated seconds
	Sender uint32  // id of the sending node
}

// CreateSeqTsHeader is a constructor
func CreateSeqTsHeader(seq uint16, sendTs float64, sender int) SeqTsHeader {
	return SeqTsHeader{Seq: seq, SendTs: sendTs, Sender: uint32(sender)}
}

// Marshal produces the wire form of the header
func (sth SeqTsHeader) Marshal() ([]byte, error) {
	if sth.SendTs < 0 || sth.SendTs > MaxSeqTsTime {
		return nil, fmt.Errorf("send time %f outside header range [0,%f]", sth.SendTs, MaxSeqTsTime)
	}
	hdr := rtp.Header{
		Version:        2,
		PayloadType:    seqTsPayloadType,
		SequenceNumber: sth.Seq,
		Timestamp:      uint32(math.Round(sth.SendTs * seqTsTicksPerSec)),
		SSRC:           sth.Sender,
	}
	return hdr.Marshal()
}

// UnmarshalSeqTsHeader decodes the header at the front of buf
func UnmarshalSeqTsHeader(buf []byte) (SeqTsHeader, error) {
	if len(buf) < SeqTsHeaderSize {
		return SeqTsHeader{}, fmt.Errorf("%w: %d bytes available", ErrMalformedHeader, len(buf))
	}
	var hdr rtp.Header
	n, err := hdr.Unmarshal(buf)
	if err != nil {
		return SeqTsHeader{}, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	if n != SeqTsHeaderSize || hdr.Version != 2 || hdr.PayloadType != seqTsPayloadType {
		return SeqTsHeader{}, fmt.Errorf("%w: unexpected header layout", ErrMalformedHeader)
	}
	sth := SeqTsHeader{
		Seq:    hdr.SequenceNumber,
		SendTs: float64(hdr.Timestamp) / seqTsTicksPerSec,
		Sender: hdr.SSRC,
	}
	return sth, nil
}
