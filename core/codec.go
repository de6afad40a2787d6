package core

import (
	"fmt"
	"math"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// Binary encodings for persisted types. Every encoding starts with a
// version number so the layout can evolve without a migration step.
const codecVersion uint64 = 1

var (
	// IDMUS encodes an ID as a varint.
	IDMUS = idMUS{}
	// CatalogRecordMUS encodes a CatalogRecord.
	CatalogRecordMUS = catalogRecordMUS{}
	// ClassificationJobMUS encodes a ClassificationJob.
	ClassificationJobMUS = classificationJobMUS{}
)

type idMUS struct{}

func (idMUS) Marshal(v ID, bs []byte) (n int) {
	return varint.Uint64.Marshal(uint64(v), bs)
}

func (idMUS) Unmarshal(bs []byte) (v ID, n int, err error) {
	u, n, err := varint.Uint64.Unmarshal(bs)
	return ID(u), n, err
}

func (idMUS) Size(v ID) (size int) {
	return varint.Uint64.Size(uint64(v))
}

type catalogRecordMUS struct{}

func (catalogRecordMUS) Marshal(v CatalogRecord, bs []byte) (n int) {
	e := &encoder{bs: bs}
	writeRecord(e, &v)
	return e.n
}

func (catalogRecordMUS) Unmarshal(bs []byte) (v CatalogRecord, n int, err error) {
	d := &decoder{bs: bs}
	d.version()
	v.Id = ID(d.uint64())
	v.ExternalId = d.string()
	v.Name = d.string()
	v.Address = d.string()
	v.Description = d.string()
	if d.bool() {
		v.Location = &Coordinates{Lat: d.float64(), Lng: d.float64()}
	}
	v.Category = d.string()
	if count := d.uint64(); count > 0 && d.err == nil {
		v.Types = make([]string, 0, min(count, 64))
		for i := uint64(0); i < count && d.err == nil; i++ {
			v.Types = append(v.Types, d.string())
		}
	}
	v.PrimaryType = d.string()
	v.Rating = d.float64()
	v.RatingsTotal = int(d.int64())
	v.PhotoURL = d.string()
	v.ContextId = d.string()
	v.Source = Source(d.int64())
	v.Status = RecordStatus(d.int64())
	v.Classification = ClassificationStatus(d.int64())
	v.ClassifiedCategory = d.string()
	v.ClassificationConfidence = d.float64()
	v.InsertedAt = d.time()
	v.UpdatedAt = d.time()
	return v, d.n, d.err
}

func (catalogRecordMUS) Size(v CatalogRecord) (size int) {
	s := &sizer{}
	writeRecord(s, &v)
	return s.n
}

func writeRecord(w fieldWriter, v *CatalogRecord) {
	w.uint64(codecVersion)
	w.uint64(uint64(v.Id))
	w.string(v.ExternalId)
	w.string(v.Name)
	w.string(v.Address)
	w.string(v.Description)
	w.bool(v.Location != nil)
	if v.Location != nil {
		w.float64(v.Location.Lat)
		w.float64(v.Location.Lng)
	}
	w.string(v.Category)
	w.uint64(uint64(len(v.Types)))
	for _, t := range v.Types {
		w.string(t)
	}
	w.string(v.PrimaryType)
	w.float64(v.Rating)
	w.int64(int64(v.RatingsTotal))
	w.string(v.PhotoURL)
	w.string(v.ContextId)
	w.int64(int64(v.Source))
	w.int64(int64(v.Status))
	w.int64(int64(v.Classification))
	w.string(v.ClassifiedCategory)
	w.float64(v.ClassificationConfidence)
	w.time(v.InsertedAt)
	w.time(v.UpdatedAt)
}

type classificationJobMUS struct{}

func (classificationJobMUS) Marshal(v ClassificationJob, bs []byte) (n int) {
	e := &encoder{bs: bs}
	writeJob(e, &v)
	return e.n
}

func (classificationJobMUS) Unmarshal(bs []byte) (v ClassificationJob, n int, err error) {
	d := &decoder{bs: bs}
	d.version()
	v.RecordId = ID(d.uint64())
	v.Status = ClassificationStatus(d.int64())
	v.Attempt = int(d.int64())
	v.Error = d.string()
	v.EnqueuedAt = d.time()
	v.UpdatedAt = d.time()
	return v, d.n, d.err
}

func (classificationJobMUS) Size(v ClassificationJob) (size int) {
	s := &sizer{}
	writeJob(s, &v)
	return s.n
}

func writeJob(w fieldWriter, v *ClassificationJob) {
	w.uint64(codecVersion)
	w.uint64(uint64(v.RecordId))
	w.int64(int64(v.Status))
	w.int64(int64(v.Attempt))
	w.string(v.Error)
	w.time(v.EnqueuedAt)
	w.time(v.UpdatedAt)
}

// fieldWriter is implemented by both the size pass and the marshal pass so
// the field order lives in exactly one place per type.
type fieldWriter interface {
	uint64(v uint64)
	int64(v int64)
	float64(v float64)
	string(v string)
	bool(v bool)
	time(v time.Time)
}

type sizer struct{ n int }

func (s *sizer) uint64(v uint64)   { s.n += varint.Uint64.Size(v) }
func (s *sizer) int64(v int64)     { s.n += varint.Int64.Size(v) }
func (s *sizer) float64(v float64) { s.n += varint.Uint64.Size(math.Float64bits(v)) }
func (s *sizer) string(v string)   { s.n += ord.String.Size(v) }
func (s *sizer) bool(v bool)       { s.n += ord.Bool.Size(v) }
func (s *sizer) time(v time.Time)  { s.int64(unixMicro(v)) }

type encoder struct {
	bs []byte
	n  int
}

func (e *encoder) uint64(v uint64)   { e.n += varint.Uint64.Marshal(v, e.bs[e.n:]) }
func (e *encoder) int64(v int64)     { e.n += varint.Int64.Marshal(v, e.bs[e.n:]) }
func (e *encoder) float64(v float64) { e.uint64(math.Float64bits(v)) }
func (e *encoder) string(v string)   { e.n += ord.String.Marshal(v, e.bs[e.n:]) }
func (e *encoder) bool(v bool)       { e.n += ord.Bool.Marshal(v, e.bs[e.n:]) }
func (e *encoder) time(v time.Time)  { e.int64(unixMicro(v)) }

// decoder reads fields in order and keeps the first error; once an error
// is recorded every further read returns the zero value.
type decoder struct {
	bs  []byte
	n   int
	err error
}

func (d *decoder) version() {
	if v := d.uint64(); d.err == nil && v != codecVersion {
		d.err = fmt.Errorf("%w: version %d", ErrUnsupportedEncoding, v)
	}
}

func (d *decoder) uint64() uint64 {
	if d.err != nil {
		return 0
	}
	v, n, err := varint.Uint64.Unmarshal(d.bs[d.n:])
	d.n += n
	d.err = err
	return v
}

func (d *decoder) int64() int64 {
	if d.err != nil {
		return 0
	}
	v, n, err := varint.Int64.Unmarshal(d.bs[d.n:])
	d.n += n
	d.err = err
	return v
}

func (d *decoder) float64() float64 {
	return math.Float64frombits(d.uint64())
}

func (d *decoder) string() string {
	if d.err != nil {
		return ""
	}
	v, n, err := ord.String.Unmarshal(d.bs[d.n:])
	d.n += n
	d.err = err
	return v
}

func (d *decoder) bool() bool {
	if d.err != nil {
		return false
	}
	v, n, err := ord.Bool.Unmarshal(d.bs[d.n:])
	d.n += n
	d.err = err
	return v
}

func (d *decoder) time() time.Time {
	micros := d.int64()
	if micros == 0 {
		return time.Time{}
	}
	return time.UnixMicro(micros).UTC()
}

func unixMicro(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}
