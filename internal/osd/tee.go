package osd

import "errors"

// Tee fans a payload out to several sinks. Each sink gets its own copy.
type Tee []Sink

// ChangeRegion implements Sink. All sinks are called; their errors are joined.
func (t Tee) ChangeRegion(payload []byte) error {
	var errs []error
	for i, s := range t {
		p := payload
		if i < len(t)-1 {
			p = append([]byte(nil), payload...)
		}
		if err := s.ChangeRegion(p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
