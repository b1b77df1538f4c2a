package contentstore

import (
	"errors"
	"fmt"
	"io"
	"net/http"
)

// getRange sends req for a span and returns the body positioned at offset
// together with the size of the whole object. A server that ignores Range
// answers 200, and the leading bytes are skipped.
func getRange(client *http.Client, req *http.Request, offset, length int64) (io.ReadCloser, int64, error) {
	if r := rangeHeader(offset, length); r != "" {
		req.Header.Set("Range", r)
	}

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, ErrBadLocator) {
			return nil, 0, err
		}
		return nil, 0, unavailable("get", err)
	}

	switch resp.StatusCode {
	case http.StatusPartialContent:
		start, size, ok := parseContentRange(resp.Header.Get("Content-Range"))
		if !ok || start != offset {
			resp.Body.Close()
			return nil, 0, unavailable("get", fmt.Errorf("unexpected content range %q", resp.Header.Get("Content-Range")))
		}
		return limitBody(resp.Body, length), size, nil

	case http.StatusOK:
		size := resp.ContentLength
		if size < 0 {
			resp.Body.Close()
			return nil, 0, unavailable("get", errors.New("response has no content length"))
		}
		if err := checkRange(offset, length, size); err != nil {
			resp.Body.Close()
			return nil, 0, err
		}
		if offset > 0 {
			if _, err := io.CopyN(io.Discard, resp.Body, offset); err != nil {
				resp.Body.Close()
				return nil, 0, unavailable("get", err)
			}
		}
		return limitBody(resp.Body, length), size, nil

	case http.StatusNotFound:
		resp.Body.Close()
		return nil, 0, ErrNotFound

	case http.StatusRequestedRangeNotSatisfiable:
		resp.Body.Close()
		return nil, 0, fmt.Errorf("%w: %s", ErrRange, resp.Header.Get("Content-Range"))
	}

	resp.Body.Close()
	return nil, 0, unavailable("get", fmt.Errorf("status %d", resp.StatusCode))
}
