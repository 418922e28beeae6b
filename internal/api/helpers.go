package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/soundleaf/soundleaf/internal/errors"
)

// decodeBody decodes a JSON request body into dst and validates its
// constraint tags. Unknown fields are rejected.
func (s *Server) decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.Validation("invalid JSON body")
	}
	if err := s.validate.Struct(dst); err != nil {
		return errors.Validationf("invalid request: %v", err)
	}
	return nil
}

// queryInt parses an optional integer query parameter, returning 0 when
// absent or malformed.
func queryInt(r *http.Request, name string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0
	}
	return v
}

// queryMonth parses an optional 1-12 month query parameter.
func queryMonth(r *http.Request, name string) time.Month {
	m := queryInt(r, name)
	if m < 1 || m > 12 {
		return 0
	}
	return time.Month(m)
}
