package handler

import (
	"net/http"
	"strconv"
)

// QueryParamToOptionalInt parse a string from a referenced query parameters and returns it as an int
// The default value is returned if the parameter is not found or empty
func QueryParamToOptionalInt(r *http.Request, name string, orDefault int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return orDefault, nil
	}
	return strconv.Atoi(raw)
}

// QueryParamToOptionalBool parse a string from a referenced query parameters and returns it as a *bool
// A nil pointer is returned if the parameter is not found or empty
func QueryParamToOptionalBool(r *http.Request, name string) (*bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, err
	}
	return &value, nil
}
