// Package toml adds the types missing from the TOML encoding packages,
// most notably a Duration that round-trips through its string form.
package toml

import "time"

// Duration is a time.Duration that marshals to and from the standard
// duration string form ("10s", "1m30s") in TOML documents.
type Duration time.Duration

// UnmarshalText parses the duration string form.
func (d *Duration) UnmarshalText(text []byte) error {
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalText writes the duration string form.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d Duration) String() string {
	return time.Duration(d).String()
}
