package object

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Signature is a commit or tag's author/committer/tagger line: a name, an
// email and a point in time expressed as a Unix timestamp plus a zone
// offset, exactly as Git writes it ("Name <email> seconds +hhmm").
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

// Decode parses b as a single signature line's value (everything after the
// "author "/"committer "/"tagger " header tag).
func (s *Signature) Decode(b []byte) {
	*s = Signature{}

	open := bytes.LastIndexByte(b, '<')
	close := bytes.LastIndexByte(b, '>')
	if open == -1 || close == -1 || close < open {
		s.Name = strings.TrimSpace(string(b))
		return
	}

	s.Name = strings.TrimSpace(string(b[:open]))
	s.Email = string(b[open+1 : close])

	rest := strings.TrimSpace(string(b[close+1:]))
	if rest == "" {
		return
	}

	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return
	}

	seconds, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return
	}

	loc := time.UTC
	if len(fields) > 1 {
		if tz, err := parseTimezone(fields[1]); err == nil {
			loc = tz
		}
	}

	s.When = time.Unix(seconds, 0).In(loc)
}

func parseTimezone(s string) (*time.Location, error) {
	if len(s) != 5 || (s[0] != '+' && s[0] != '-') {
		return nil, fmt.Errorf("object: bad timezone %q", s)
	}

	hours, err := strconv.Atoi(s[1:3])
	if err != nil {
		return nil, err
	}
	minutes, err := strconv.Atoi(s[3:5])
	if err != nil {
		return nil, err
	}

	offset := (hours*60 + minutes) * 60
	if s[0] == '-' {
		offset = -offset
	}

	return time.FixedZone(s, offset), nil
}

// Encode writes s back in Git's canonical form.
func (s *Signature) Encode(w *bufio.Writer) error {
	if _, err := fmt.Fprintf(w, "%s <%s> ", s.Name, s.Email); err != nil {
		return err
	}

	_, offset := s.When.Zone()
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}

	_, err := fmt.Fprintf(w, "%d %s%02d%02d", s.When.Unix(), sign, offset/3600, (offset/60)%60)
	return err
}

// String renders "Name <email>", matching go-fmt's pretty display.
func (s *Signature) String() string {
	return fmt.Sprintf("%s <%s>", s.Name, s.Email)
}
