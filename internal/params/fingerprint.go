package params

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// DomainParams separates parameter fingerprints from any other hash domain.
// The version suffix leaves room for a future encoding change.
const DomainParams = "qestore/params/v1"

// Fingerprint returns a stable hex SHA-256 over the canonical encoding of p.
//
// Equal Params always produce the same fingerprint. Different Params may also
// collide (strings are NFC-normalized, NaN payloads are not distinguished), so a
// fingerprint match must be confirmed with Params.Equal.
func Fingerprint(p Params) (string, error) {
	canonical, err := MarshalCanonical(p)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return hashWithDomain(DomainParams, canonical), nil
}

// MustFingerprint is like Fingerprint but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustFingerprint(p Params) string {
	fp, err := Fingerprint(p)
	if err != nil {
		panic(err)
	}
	return fp
}

// hashWithDomain computes SHA-256(domain + 0x00 + data).
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// MarshalCanonical renders p as canonical JSON: keys sorted by UTF-16 code
// units, strings NFC-normalized without HTML escaping, and every value tagged
// with its variant so Int(1) and Float(1) never share an encoding.
//
//	{"N":["i","4"],"sigma":["f","0.001"]}
func MarshalCanonical(p Params) ([]byte, error) {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysUTF16)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := marshalCanonicalString(k)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := marshalCanonicalValue(p[k])
		if err != nil {
			return nil, fmt.Errorf("value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalCanonicalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case Int:
		return tagged("i", strconv.Quote(val.String()))
	case Float:
		return tagged("f", strconv.Quote(canonicalFloat(float64(val))))
	case Bool:
		return tagged("b", val.String())
	case String:
		s, err := marshalCanonicalString(string(val))
		if err != nil {
			return nil, err
		}
		return tagged("s", string(s))
	case IntArray:
		elems := make([]string, len(val.Data))
		for i, n := range val.Data {
			elems[i] = strconv.Quote(strconv.FormatInt(n, 10))
		}
		return taggedArray("ia", val.Dims(), elems)
	case FloatArray:
		elems := make([]string, len(val.Data))
		for i, x := range val.Data {
			elems[i] = strconv.Quote(canonicalFloat(x))
		}
		return taggedArray("fa", val.Dims(), elems)
	case Other:
		s, err := marshalCanonicalString(val.String())
		if err != nil {
			return nil, err
		}
		return tagged("o", string(s))
	case nil:
		return nil, fmt.Errorf("nil value")
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

// canonicalFloat formats x in shortest round-trip form. Negative zero is
// folded into zero because the two compare equal.
func canonicalFloat(x float64) string {
	if x == 0 {
		return "0"
	}
	if math.IsNaN(x) {
		return "NaN"
	}
	return strconv.FormatFloat(x, 'g', -1, 64)
}

func tagged(tag, body string) ([]byte, error) {
	return []byte(`["` + tag + `",` + body + `]`), nil
}

func taggedArray(tag string, shape []int, elems []string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`["` + tag + `",[`)
	for i, d := range shape {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Itoa(d))
	}
	buf.WriteString("],[")
	for i, e := range elems {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(e)
	}
	buf.WriteString("]]")
	return buf.Bytes(), nil
}

// marshalCanonicalString produces a JSON string with NFC normalization and
// no HTML escaping.
func marshalCanonicalString(s string) ([]byte, error) {
	normalized := norm.NFC.String(s)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

// compareKeysUTF16 orders strings by UTF-16 code units.
// Go's default string comparison uses UTF-8 bytes, which differs for
// characters outside the basic multilingual plane.
func compareKeysUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := min(len(a16), len(b16))
	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	default:
		return 0
	}
}
