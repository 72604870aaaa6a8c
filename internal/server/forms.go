package server

import (
	"fmt"
	"net/url"
	"time"

	"vanads/pkg/types"

	"github.com/go-playground/form/v4"
)

var decoder = newDecoder()

func newDecoder() *form.Decoder {
	d := form.NewDecoder()
	d.RegisterCustomTypeFunc(func(vals []string) (any, error) {
		for _, layout := range []string{time.DateOnly, time.RFC3339} {
			if t, err := time.Parse(layout, vals[0]); err == nil {
				return t, nil
			}
		}
		return nil, fmt.Errorf("invalid date %q", vals[0])
	}, time.Time{})
	return d
}

// decodeQuery fills a filter struct from the query string.
func decodeQuery(values url.Values, dst any) error {
	if err := decoder.Decode(dst, values); err != nil {
		return fmt.Errorf("%w: invalid query: %v", types.ErrInvalidArgument, err)
	}
	return nil
}
