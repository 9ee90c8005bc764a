package watermark

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/prismdata/prism-go/pkg/prism"
)

// Record is one tuple: a primary key and its ordered integer attributes.
type Record struct {
	Key   string
	Attrs []int64
}

func (r Record) clone() Record {
	return Record{Key: r.Key, Attrs: append([]int64(nil), r.Attrs...)}
}

// InsertReport summarizes an insertion.
type InsertReport struct {
	// Marked is the number of records that received a mark.
	Marked int
	// Total is the number of records in the input.
	Total int
	// Fingerprint is HMAC-SHA256 under the secret over the marked records,
	// a receipt the owner can keep to recognize an unmodified copy.
	Fingerprint []byte
}

// Result is the outcome of a detection.
type Result struct {
	Detected     bool
	MatchRatio   float64
	TotalMarked  int
	MatchingBits int
	// PValue is the probability of at least MatchingBits agreements out of
	// TotalMarked if every bit were a fair coin, i.e. if the data carried no
	// mark under this secret.
	PValue float64
}

// Marker inserts and detects marks with fixed Params. It holds no secret
// and no per-dataset state, so one Marker serves concurrent callers.
type Marker struct {
	params  Params
	modulus uint64
	cutoff  uint64
}

// New validates p and returns a Marker.
func New(p Params) (*Marker, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	m := &Marker{params: p}
	m.modulus = uint64(math.Floor(1 / p.Gamma))
	if m.modulus == 0 {
		m.modulus = 1
	}
	if p.Gamma >= 1 {
		m.cutoff = math.MaxUint64
	} else {
		m.cutoff = uint64(math.Ldexp(p.Gamma, 64))
	}
	return m, nil
}

// Params returns the marker's configuration.
func (m *Marker) Params() Params {
	return m.params
}

// Insert returns a marked copy of records. The input is not modified.
// Records without attributes are copied through unmarked. Re-marking with a
// different secret yields an independent mark, which may land on bits an
// earlier mark already used.
func (m *Marker) Insert(secret Secret, records []Record) ([]Record, InsertReport, error) {
	if len(secret) == 0 {
		return nil, InsertReport{}, prism.Errorf("watermark.Insert", "%w: empty secret", prism.ErrInvalidParameter)
	}
	out := make([]Record, len(records))
	report := InsertReport{Total: len(records)}
	for i, r := range records {
		out[i] = r.clone()
		pos := m.locate(secret, r.Key, len(r.Attrs))
		if !pos.selected {
			continue
		}
		out[i].Attrs[pos.attr] = setBit(out[i].Attrs[pos.attr], pos.bit, pos.want)
		report.Marked++
	}
	report.Fingerprint = Fingerprint(secret, out)
	return out, report, nil
}

// Detect checks records against secret using the configured threshold.
func (m *Marker) Detect(secret Secret, records []Record) (Result, error) {
	return m.DetectWithThreshold(secret, records, m.params.Threshold)
}

// DetectWithThreshold checks records against secret. When no record is
// selected under secret it returns the zero-count Result together with
// prism.ErrInsufficientData: that outcome says the data is too small or the
// secret or parameters differ, not that ownership is disproved.
func (m *Marker) DetectWithThreshold(secret Secret, records []Record, threshold float64) (Result, error) {
	const op = "watermark.Detect"
	if len(secret) == 0 {
		return Result{}, prism.Errorf(op, "%w: empty secret", prism.ErrInvalidParameter)
	}
	if err := validThreshold(threshold); err != nil {
		return Result{}, prism.Wrap(op, err)
	}

	var res Result
	for _, r := range records {
		pos := m.locate(secret, r.Key, len(r.Attrs))
		if !pos.selected {
			continue
		}
		res.TotalMarked++
		if bitAt(r.Attrs[pos.attr], pos.bit) == pos.want {
			res.MatchingBits++
		}
	}
	if res.TotalMarked == 0 {
		res.PValue = 1
		return res, prism.Errorf(op, "%w: no record of %d selected", prism.ErrInsufficientData, len(records))
	}
	res.MatchRatio = float64(res.MatchingBits) / float64(res.TotalMarked)
	res.Detected = res.MatchRatio >= threshold
	res.PValue = chanceOfAtLeast(res.MatchingBits, res.TotalMarked)
	return res, nil
}

// chanceOfAtLeast is P(X >= k) for X ~ Binomial(n, 1/2).
func chanceOfAtLeast(k, n int) float64 {
	if k <= 0 {
		return 1
	}
	b := distuv.Binomial{N: float64(n), P: 0.5}
	return b.Survival(float64(k - 1))
}

// Fingerprint is the HMAC-SHA256 receipt Insert reports for records.
func Fingerprint(secret Secret, records []Record) []byte {
	mac := hmac.New(sha256.New, secret)
	var buf [8]byte
	for _, r := range records {
		binary.BigEndian.PutUint64(buf[:], uint64(len(r.Key)))
		mac.Write(buf[:])
		mac.Write([]byte(r.Key))
		binary.BigEndian.PutUint64(buf[:], uint64(len(r.Attrs)))
		mac.Write(buf[:])
		for _, v := range r.Attrs {
			binary.BigEndian.PutUint64(buf[:], uint64(v))
			mac.Write(buf[:])
		}
	}
	return mac.Sum(nil)
}
