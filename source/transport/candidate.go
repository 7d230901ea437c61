package transport

import (
	"net"
	"regexp"
	"strconv"

	"github.com/pkg/errors"
)

// candidatePattern mirrors original_source's wasm_utils::candidate_to_addr:
// a WebRTC/ICE candidate string always embeds "<ipv4> <port>" once, used
// here to recover the address a browser-style client actually reached.
var candidatePattern = regexp.MustCompile(`\b((?:[0-9]{1,3}\.){3}[0-9]{1,3}) ([0-9]{1,5})\b`)

// ErrCandidateNotFound is returned when candidate contains no recognizable
// "<ip> <port>" pair.
var ErrCandidateNotFound = errors.New("transport: no address found in candidate string")

// CandidateToAddr extracts the IPv4 address and port embedded in an
// ICE candidate string, e.g.
// "candidate:1 1 UDP 1755993416 127.0.0.1 14192 typ host".
func CandidateToAddr(candidate string) (net.Addr, error) {
	m := candidatePattern.FindStringSubmatch(candidate)
	if m == nil {
		return nil, errors.Wrapf(ErrCandidateNotFound, "candidate %q", candidate)
	}
	ip := net.ParseIP(m[1])
	if ip == nil {
		return nil, errors.Errorf("transport: %q is not a valid IPv4 address", m[1])
	}
	port, err := strconv.Atoi(m[2])
	if err != nil || port > 65535 {
		return nil, errors.Errorf("transport: %q is not a valid port", m[2])
	}
	return &net.UDPAddr{IP: ip, Port: port}, nil
}
