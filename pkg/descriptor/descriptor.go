// Package descriptor converts a peer address into the short string that is
// shared as a QR payload or typed by hand, and back.
//
// The string form is
//
//	sneakvlc://<hex-hash>?ip=<ip-or-hostname>&port=<1-65535>
package descriptor

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Scheme is the fixed, required scheme token of every descriptor.
const Scheme = "sneakvlc"

const (
	schemePrefix = Scheme + "://"
	minPort      = 1
	maxPort      = 65535

	// Characters that would be reinterpreted inside the query string.
	reservedIPChars = " &?#/+%;="
)

// ErrMalformedDescriptor is matched by every error returned from Decode.
var ErrMalformedDescriptor = errors.New("malformed descriptor")

// DecodeError reports why a descriptor string was rejected.
type DecodeError struct {
	Input  string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMalformedDescriptor, e.Reason)
}

// Is makes errors.Is(err, ErrMalformedDescriptor) hold for a *DecodeError.
func (e *DecodeError) Is(target error) bool {
	return target == ErrMalformedDescriptor
}

// Descriptor is the addressing subset of a rendezvous entry.
// The zero value is not a valid descriptor; build one with New or Decode.
type Descriptor struct {
	Hash string `json:"hash"`
	IP   string `json:"ip"`
	Port int    `json:"port"`
}

// New validates the fields and returns a descriptor with a normalized
// (lower-case) hash.
func New(hash, ip string, port int) (Descriptor, error) {
	d := Descriptor{Hash: strings.ToLower(strings.TrimSpace(hash)), IP: strings.TrimSpace(ip), Port: port}
	if err := d.Validate(); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}

// Validate reports whether d survives Encode followed by Decode unchanged.
// The returned error is a *DecodeError.
func (d Descriptor) Validate() error {
	if reason := d.validate(); reason != "" {
		return &DecodeError{Input: d.format(), Reason: reason}
	}
	return nil
}

// Encode renders d in its string form. It is deterministic: the query keys
// are always written in ip, port order.
func Encode(d Descriptor) string {
	return Descriptor{Hash: strings.ToLower(d.Hash), IP: d.IP, Port: d.Port}.format()
}

// String implements fmt.Stringer with the encoded form.
func (d Descriptor) String() string {
	return Encode(d)
}

// Address returns the host:port the sender can be reached at.
func (d Descriptor) Address() string {
	return net.JoinHostPort(d.IP, strconv.Itoa(d.Port))
}

// Decode parses s. Decoding is all-or-nothing: on any problem it returns a
// *DecodeError and a zero Descriptor.
func Decode(s string) (Descriptor, error) {
	fail := func(reason string) (Descriptor, error) {
		return Descriptor{}, &DecodeError{Input: s, Reason: reason}
	}

	raw := strings.TrimSpace(s)
	if len(raw) < len(schemePrefix) || raw[:len(schemePrefix)] != schemePrefix {
		return fail("missing " + schemePrefix + " prefix")
	}
	rest := raw[len(schemePrefix):]

	hash, query, found := strings.Cut(rest, "?")
	hash = strings.TrimSuffix(hash, "/")
	if hash == "" {
		return fail("empty hash")
	}
	if !isHex(hash) {
		return fail("hash is not hexadecimal")
	}
	if !found {
		return fail("missing query")
	}

	values, err := url.ParseQuery(query)
	if err != nil {
		return fail("invalid query: " + err.Error())
	}

	ip := strings.TrimSpace(values.Get("ip"))
	if ip == "" {
		return fail("missing ip")
	}
	if strings.ContainsAny(ip, reservedIPChars) {
		return fail("ip contains reserved characters")
	}

	portStr := values.Get("port")
	if portStr == "" {
		return fail("missing port")
	}
	port, err := strconv.ParseUint(portStr, 10, 32)
	if err != nil {
		return fail(fmt.Sprintf("port %q is not an integer", portStr))
	}
	if port < minPort || port > maxPort {
		return fail(fmt.Sprintf("port %d out of range", port))
	}

	return Descriptor{Hash: strings.ToLower(hash), IP: ip, Port: int(port)}, nil
}

func (d Descriptor) format() string {
	return fmt.Sprintf("%s%s?ip=%s&port=%d", schemePrefix, d.Hash, d.IP, d.Port)
}

func (d Descriptor) validate() string {
	switch {
	case d.Hash == "":
		return "empty hash"
	case !isHex(d.Hash):
		return "hash is not hexadecimal"
	case d.IP == "":
		return "missing ip"
	case strings.ContainsAny(d.IP, reservedIPChars):
		return "ip contains reserved characters"
	case d.Port < minPort || d.Port > maxPort:
		return fmt.Sprintf("port %d out of range", d.Port)
	}
	return ""
}

func isHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
