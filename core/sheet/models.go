package sheet

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/evalix/core"
)

const (
	DefaultNextAutoID = 1001
	PassingAverage    = 3.0

	MinScore = 0
	MaxScore = 5
)

// Score is a grade between MinScore and MaxScore.
// It decodes from JSON numbers as well as numeric strings, since form inputs are sent as text.
type Score float64

func (s *Score) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = 0
		return nil
	}
	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		str = strings.TrimSpace(str)
		if str == "" {
			*s = 0
			return nil
		}
		f, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return errors.Errorf("invalid score %q", str)
		}
		*s = Score(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*s = Score(f)
	return nil
}

// Row is one student line of a Sheet.
type Row struct {
	StudentID      string `json:"studentId" validate:"omitempty,max=32,alphanum_"`
	DocumentNumber string `json:"documentNumber" validate:"max=32"`
	Name           string `json:"name" validate:"max=120"`
	Subject        string `json:"subject" validate:"max=120"`
	N1             Score  `json:"n1" validate:"gte=0,lte=5"`
	N2             Score  `json:"n2" validate:"gte=0,lte=5"`
	N3             Score  `json:"n3" validate:"gte=0,lte=5"`
	N4             Score  `json:"n4" validate:"gte=0,lte=5"`
	Average        Score  `json:"average"`
}

func (r *Row) UnmarshalJSON(data []byte) error {
	type row Row
	aux := struct {
		*row
		StudentID      interface{} `json:"studentId"`
		DocumentNumber interface{} `json:"documentNumber"`
	}{row: (*row)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.StudentID = looseString(aux.StudentID)
	r.DocumentNumber = looseString(aux.DocumentNumber)
	return nil
}

// ComputeAverage returns the mean of the four scores, rounded to 2 decimals.
func (r Row) ComputeAverage() Score {
	avg := float64(r.N1+r.N2+r.N3+r.N4) / 4
	return Score(math.Round(avg*100) / 100)
}

func (r Row) Passed() bool {
	return float64(r.Average) >= PassingAverage
}

func (r *Row) clean() {
	r.StudentID = core.CleanString(r.StudentID)
	r.DocumentNumber = core.CleanString(r.DocumentNumber)
	r.Name = core.CleanString(r.Name)
	r.Subject = core.CleanString(r.Subject)
}

// Sheet is the grading record of one (year, period).
type Sheet struct {
	ID            string `json:"id,omitempty"`
	Year          int    `json:"year"`
	Period        int    `json:"period"`
	NextAutoID    int    `json:"nextAutoId"`
	AutoIDEnabled bool   `json:"autoIdEnabled"`
	Rows          []Row  `json:"rows"`
}

// Document is the body written to a Repository on create & update.
type Document struct {
	Year          int   `json:"year"`
	Period        int   `json:"period"`
	NextAutoID    int   `json:"nextAutoId"`
	AutoIDEnabled bool  `json:"autoIdEnabled"`
	Rows          []Row `json:"rows"`
}

// NewDocument returns the empty sheet of a period.
func NewDocument(year, period int) Document {
	return Document{
		Year:          year,
		Period:        period,
		NextAutoID:    DefaultNextAutoID,
		AutoIDEnabled: true,
		Rows:          []Row{},
	}
}

// Record is a sheet as a Repository hands it back.
// Remote stores are loosely typed (numbers may come back as strings), so scalar fields are kept raw
// until Normalize or Decode coerce them.
type Record struct {
	ID            string          `json:"id,omitempty"`
	Year          interface{}     `json:"year"`
	Period        interface{}     `json:"period"`
	NextAutoID    interface{}     `json:"nextAutoId,omitempty"`
	AutoIDEnabled interface{}     `json:"autoIdEnabled,omitempty"`
	Rows          json.RawMessage `json:"rows,omitempty"`
}

func (rec *Record) UnmarshalJSON(data []byte) error {
	type record Record
	aux := struct {
		*record
		ID interface{} `json:"id"`
	}{record: (*record)(rec)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	rec.ID = looseString(aux.ID)
	return nil
}

// NewRecord returns the Record of a typed Document, as stored under id.
func NewRecord(id string, doc Document) (Record, error) {
	rows := doc.Rows
	if rows == nil {
		rows = []Row{}
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return Record{}, errors.Wrap(err, "marshalling rows")
	}
	return Record{
		ID:            id,
		Year:          doc.Year,
		Period:        doc.Period,
		NextAutoID:    doc.NextAutoID,
		AutoIDEnabled: doc.AutoIDEnabled,
		Rows:          data,
	}, nil
}

// Normalize coerces a Record into a Sheet, filling in defaults:
// nextAutoId falls back to DefaultNextAutoID, autoIdEnabled to true and rows to an empty list.
func Normalize(rec Record) (Sheet, error) {
	return coerce(rec, true)
}

// Decode coerces a Record into a Sheet without filling in defaults.
func Decode(rec Record) (Sheet, error) {
	return coerce(rec, false)
}

func coerce(rec Record, withDefaults bool) (Sheet, error) {
	// a missing year or period stays zero; only unparseable values are rejected
	year, ok := toInt(rec.Year)
	if !ok && rec.Year != nil {
		return Sheet{}, errors.Errorf("sheet %q: invalid year %v", rec.ID, rec.Year)
	}
	period, ok := toInt(rec.Period)
	if !ok && rec.Period != nil {
		return Sheet{}, errors.Errorf("sheet %q: invalid period %v", rec.ID, rec.Period)
	}

	s := Sheet{ID: rec.ID, Year: year, Period: period}

	nextID, ok := toInt(rec.NextAutoID)
	if (!ok || nextID == 0) && withDefaults {
		nextID = DefaultNextAutoID
	}
	s.NextAutoID = nextID

	if rec.AutoIDEnabled == nil {
		s.AutoIDEnabled = withDefaults
	} else {
		s.AutoIDEnabled = toBool(rec.AutoIDEnabled)
	}

	rows, err := decodeRows(rec.Rows)
	if err != nil {
		return Sheet{}, errors.Wrapf(err, "sheet %q: decoding rows", rec.ID)
	}
	s.Rows = rows
	return s, nil
}

// decodeRows returns an empty list for anything that is not a JSON array.
func decodeRows(raw json.RawMessage) ([]Row, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return []Row{}, nil
	}
	rows := make([]Row, 0)
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Payload is what a client sends to save a Sheet.
type Payload struct {
	NextAutoID    *int  `json:"nextAutoId,omitempty"`
	AutoIDEnabled *bool `json:"autoIdEnabled,omitempty"`
	Rows          []Row `json:"rows" validate:"dive"`
}

func (p *Payload) UnmarshalJSON(data []byte) error {
	var aux struct {
		NextAutoID    interface{}     `json:"nextAutoId"`
		AutoIDEnabled interface{}     `json:"autoIdEnabled"`
		Rows          json.RawMessage `json:"rows"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*p = Payload{}
	if aux.NextAutoID != nil {
		n, ok := toInt(aux.NextAutoID)
		if !ok {
			return errors.Errorf("invalid nextAutoId %v", aux.NextAutoID)
		}
		p.NextAutoID = &n
	}
	if aux.AutoIDEnabled != nil {
		b := toBool(aux.AutoIDEnabled)
		p.AutoIDEnabled = &b
	}
	if raw := bytes.TrimSpace(aux.Rows); len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &p.Rows); err != nil {
			return errors.Wrap(err, "decoding rows")
		}
	}
	return nil
}

func (p Payload) Validate(validate *validator.Validate) error {
	return validate.Struct(p)
}

// Document builds the Document saved for (year, period).
// Only the sheet defaults are filled in; rows are stored exactly as given.
func (p Payload) Document(year, period int) Document {
	doc := NewDocument(year, period)
	if p.NextAutoID != nil {
		doc.NextAutoID = *p.NextAutoID
	}
	if p.AutoIDEnabled != nil {
		doc.AutoIDEnabled = *p.AutoIDEnabled
	}
	if p.Rows != nil {
		doc.Rows = p.Rows
	}
	return doc
}

// Derive returns the payload as the grading form completes it before saving: text fields are trimmed,
// rows without a studentId take one from the auto id counter when it is enabled, and averages are recomputed.
func (p Payload) Derive() Payload {
	next := DefaultNextAutoID
	if p.NextAutoID != nil {
		next = *p.NextAutoID
	}
	enabled := true
	if p.AutoIDEnabled != nil {
		enabled = *p.AutoIDEnabled
	}

	rows := make([]Row, 0, len(p.Rows))
	for _, r := range p.Rows {
		r.clean()
		if r.StudentID == "" && enabled {
			r.StudentID = strconv.Itoa(next)
			next++
		}
		r.Average = r.ComputeAverage()
		rows = append(rows, r)
	}
	return Payload{NextAutoID: &next, AutoIDEnabled: &enabled, Rows: rows}
}

// Filter selects sheets by period; zero fields are not filtered on.
type Filter struct {
	Year   int
	Period int
}

func (f Filter) IsEmpty() bool {
	return f.Year == 0 && f.Period == 0
}

func (f Filter) Match(year, period int) bool {
	return (f.Year == 0 || f.Year == year) && (f.Period == 0 || f.Period == period)
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		f, err := n.Float64()
		return int(f), err == nil
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return int(f), true
	default:
		return 0, false
	}
}

func toBool(v interface{}) bool {
	switch b := v.(type) {
	case nil:
		return false
	case bool:
		return b
	case string:
		if parsed, err := strconv.ParseBool(strings.TrimSpace(b)); err == nil {
			return parsed
		}
		return b != ""
	default:
		n, ok := toInt(v)
		return ok && n != 0
	}
}

func looseString(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprint(s)
	}
}
