// Package date holds a calendar date without time of day, as stored in
// Postgres DATE columns.
package date

import (
	"bytes"
	"fmt"
	"time"
)

const Layout = "2006-01-02"

// Date is a UTC midnight time.Time. The zero Date is "no date".
type Date struct {
	time.Time
}

// Of truncates t to its calendar date.
func Of(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// OfPtr converts a nullable time.
func OfPtr(t *time.Time) *Date {
	if t == nil {
		return nil
	}
	d := Of(*t)
	return &d
}

// Parse accepts YYYY-MM-DD or an RFC 3339 timestamp.
func Parse(s string) (Date, error) {
	if t, err := time.Parse(Layout, s); err == nil {
		return Of(t), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return Of(t), nil
}

func MustParse(s string) Date {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(Layout)
}

// Equal compares calendar dates only.
func (d Date) Equal(o Date) bool {
	return d.String() == o.String()
}

// TimePtr returns the underlying time for nullable columns.
func (d *Date) TimePtr() *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) || bytes.Equal(b, []byte(`""`)) {
		*d = Date{}
		return nil
	}
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return fmt.Errorf("invalid date %s", b)
	}
	parsed, err := Parse(string(b[1 : len(b)-1]))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
