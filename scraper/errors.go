package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/aluiziolira/go-scryfall-haste/models"
)

// ErrorKind labels why a search query failed.
type ErrorKind string

const (
	KindTimeout     ErrorKind = "timeout"
	KindConnection  ErrorKind = "connection"
	KindForbidden   ErrorKind = "forbidden"
	KindNotFound    ErrorKind = "not_found"
	KindRateLimited ErrorKind = "rate_limited"
	KindServer      ErrorKind = "server"
	KindMalformed   ErrorKind = "malformed"
	KindOther       ErrorKind = "other"
)

// QueryError describes one failed search query. The key still gets a zero row.
type QueryError struct {
	Key    models.QueryKey
	Kind   ErrorKind
	Status int
	Err    error
}

func (e *QueryError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("query %s: %s (status %d): %v", e.Key, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("query %s: %s: %v", e.Key, e.Kind, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var qe *QueryError
	if errors.As(err, &qe) {
		return string(qe.Kind)
	}
	return string(KindOther)
}

func classifyError(key models.QueryKey, err error, statusCode int) *QueryError {
	if err == nil && statusCode == 0 {
		return nil
	}
	if err == nil {
		err = fmt.Errorf("http status %d", statusCode)
	}

	qe := &QueryError{Key: key, Kind: KindOther, Status: statusCode, Err: err}

	var netErr net.Error
	var opErr *net.OpError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		qe.Kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		qe.Kind = KindTimeout
	case errors.As(err, &opErr):
		qe.Kind = KindConnection
	case statusCode == http.StatusForbidden:
		qe.Kind = KindForbidden
	case statusCode == http.StatusNotFound:
		qe.Kind = KindNotFound
	case statusCode == http.StatusTooManyRequests:
		qe.Kind = KindRateLimited
	case statusCode >= http.StatusInternalServerError:
		qe.Kind = KindServer
	}
	return qe
}
