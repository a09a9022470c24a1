package streaming

import (
	"strings"

	"github.com/effective-security/agentic/pkg/llmutils"
)

// Some self-hosted models emit tool calls inline in the text channel using
// sentinel tokens instead of structured deltas:
//
//	<｜tool▁call▁begin｜>NAME<｜tool▁sep｜>{"arg":1}<｜tool▁call▁end｜>
//
// optionally wrapped in a <｜tool▁calls▁begin｜>…<｜tool▁calls▁end｜>
// section, with several calls per message interleaved with prose. The
// fullwidth bar and low-line characters make an accidental occurrence in
// prose practically impossible, but extraction is still position-based:
// matched blocks are cut out of the scanned buffer, never removed by a
// later substring replacement.
const (
	markerCallsBegin = "<｜tool▁calls▁begin｜>"
	markerCallsEnd   = "<｜tool▁calls▁end｜>"
	markerCallBegin  = "<｜tool▁call▁begin｜>"
	markerCallEnd    = "<｜tool▁call▁end｜>"
	markerSep        = "<｜tool▁sep｜>"
)

// proseMarkers are the tokens that may start a block while scanning prose.
var proseMarkers = []string{markerCallsBegin, markerCallsEnd, markerCallBegin}

// markerCall is one extracted inline tool call.
type markerCall struct {
	Name      string
	Arguments string
}

// markerScanner incrementally strips sentinel-delimited tool-call blocks
// from streamed text. Prose is released as soon as it can no longer be the
// start of a marker; at most one marker-length of tail is held back between
// chunks.
type markerScanner struct {
	buf    strings.Builder
	inCall bool
	// seen flips once any opening marker has been observed; detection is
	// content-based, never configuration-based.
	seen bool
}

// scan consumes a text fragment and returns the prose that is safe to emit
// plus any tool calls completed by this fragment.
func (s *markerScanner) scan(fragment string) (prose string, calls []markerCall) {
	s.buf.WriteString(fragment)
	data := s.buf.String()
	s.buf.Reset()

	var out strings.Builder
	for {
		if s.inCall {
			end := strings.Index(data, markerCallEnd)
			if end == -1 {
				// wait for the closing marker
				s.buf.WriteString(data)
				return out.String(), calls
			}
			calls = append(calls, parseMarkerCall(data[:end]))
			data = data[end+len(markerCallEnd):]
			s.inCall = false
			continue
		}

		marker, idx := firstProseMarker(data)
		if idx == -1 {
			hold := markerHoldback(data)
			out.WriteString(data[:len(data)-hold])
			s.buf.WriteString(data[len(data)-hold:])
			return out.String(), calls
		}

		s.seen = true
		out.WriteString(data[:idx])
		data = data[idx+len(marker):]
		if marker == markerCallBegin {
			s.inCall = true
		}
		// section begin/end markers are dropped without a mode change
	}
}

// finish flushes the scanner at end of stream. truncated reports an
// unclosed call block; its partial body is returned for diagnostics.
func (s *markerScanner) finish() (prose string, truncated bool, partial string) {
	rest := s.buf.String()
	s.buf.Reset()
	if s.inCall {
		s.inCall = false
		return "", true, rest
	}
	return rest, false, ""
}

// detected reports whether any marker has been seen on this stream.
func (s *markerScanner) detected() bool {
	return s.seen
}

func firstProseMarker(data string) (marker string, idx int) {
	idx = -1
	for _, m := range proseMarkers {
		if i := strings.Index(data, m); i != -1 && (idx == -1 || i < idx) {
			idx = i
			marker = m
		}
	}
	return marker, idx
}

// markerHoldback returns the length of the longest suffix of data that is a
// proper prefix of any marker token, so that a marker split across chunks
// is never emitted as prose.
func markerHoldback(data string) int {
	maxHold := 0
	for _, m := range proseMarkers {
		limit := min(len(m)-1, len(data))
		for n := limit; n > maxHold; n-- {
			if strings.HasSuffix(data, m[:n]) {
				maxHold = n
				break
			}
		}
	}
	return maxHold
}

func parseMarkerCall(body string) markerCall {
	name, args, ok := strings.Cut(body, markerSep)
	if !ok {
		// no separator; treat the whole body as a name with empty args
		return markerCall{Name: strings.TrimSpace(body)}
	}
	args = llmutils.TrimBackticks(strings.TrimSpace(args))
	return markerCall{
		Name:      strings.TrimSpace(name),
		Arguments: strings.TrimSpace(args),
	}
}
