package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/julienschmidt/httprouter"
)

const dateLayout = "2006-01-02"

// queryError reports a malformed query string parameter.
type queryError string

func (e queryError) Error() string {
	return string(e)
}

type envelope map[string]any

func (e envelope) JSON() string {
	json, err := json.MarshalIndent(e, "", "\t")
	if err != nil {
		return ""
	}

	return string(json)
}

func (app *application) writeJSON(w http.ResponseWriter, status int, data envelope, headers http.Header) error {
	json, err := json.MarshalIndent(data, "", "\t")
	if err != nil {
		return err
	}

	for key, values := range headers {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(json)

	return nil
}

// etag is a strong validator over the JSON representation writeJSON would send.
func etag(data envelope) (string, error) {
	b, err := json.MarshalIndent(data, "", "\t")
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(`"%016x"`, xxhash.Sum64(b)), nil
}

func (app *application) parseJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	maxBytes := 1_048_576
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	err := decoder.Decode(dst)
	if err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var invalidUnmarshalError *json.InvalidUnmarshalError
		var maxBytesError *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxError):
			return fmt.Errorf("request body contains badly-formed JSON (at character %d)", syntaxError.Offset)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("request body contains badly-formed JSON")
		case errors.As(err, &unmarshalTypeError):
			if unmarshalTypeError.Field != "" {
				return fmt.Errorf("request body contains an invalid value for the %q field", unmarshalTypeError.Field)
			}
			return fmt.Errorf("request body contains incorrect JSON type (at character %d)", unmarshalTypeError.Offset)
		case errors.Is(err, io.EOF):
			return errors.New("request body must not be empty")
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
			return fmt.Errorf("request body contains unknown field %s", fieldName)
		case errors.As(err, &maxBytesError):
			return fmt.Errorf("request body must not be larger than %d bytes", maxBytesError.Limit)
		case errors.As(err, &invalidUnmarshalError):
			panic(err)
		default:
			return err
		}
	}
	err = decoder.Decode(&struct{}{})
	if !errors.Is(err, io.EOF) {
		return errors.New("request body must only contain a single JSON value")
	}
	return nil
}

func (app *application) readIDParam(r *http.Request, key string) (int, error) {
	params := httprouter.ParamsFromContext(r.Context())

	id, err := strconv.Atoi(params.ByName(key))
	if err != nil || id < 1 {
		return 0, errors.New("invalid ID parameter")
	}

	return id, nil
}

// readList collects every value of the given keys, accepting both repeated parameters and
// comma separated lists.
func readList(qs url.Values, keys ...string) []string {
	var out []string
	for _, key := range keys {
		for _, raw := range qs[key] {
			for _, item := range strings.Split(raw, ",") {
				if item = strings.TrimSpace(item); item != "" {
					out = append(out, item)
				}
			}
		}
	}
	return out
}

func readIntList(qs url.Values, keys ...string) ([]int, error) {
	var out []int
	for _, item := range readList(qs, keys...) {
		n, err := strconv.Atoi(item)
		if err != nil {
			return nil, queryError(fmt.Sprintf("invalid %s parameter", keys[0]))
		}
		out = append(out, n)
	}
	return out, nil
}

// readInt returns the first non-empty value among keys, or def when none is present.
func readInt(qs url.Values, def int, keys ...string) (int, bool, error) {
	for _, key := range keys {
		s := qs.Get(key)
		if s == "" {
			continue
		}

		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, false, queryError(fmt.Sprintf("invalid %s parameter", key))
		}
		return n, true, nil
	}

	return def, false, nil
}

func readString(qs url.Values, def string, keys ...string) string {
	for _, key := range keys {
		if s := qs.Get(key); s != "" {
			return s
		}
	}
	return def
}

func readDate(qs url.Values, key string, loc *time.Location) (*time.Time, error) {
	s := qs.Get(key)
	if s == "" {
		return nil, nil
	}

	t, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return nil, queryError(fmt.Sprintf("invalid %s parameter, expected YYYY-MM-DD", key))
	}

	return &t, nil
}
