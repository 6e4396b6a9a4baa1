package domain

import (
	"errors"
	"net/http"
)

// Accounting and returns errors. Call sites wrap these with detail using
// fmt.Errorf("%w: ...") so callers can test them with errors.Is.
var (
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrNoSuchPosition     = errors.New("no such position")
	ErrMissingPrice       = errors.New("missing price")
	ErrZeroPrice          = errors.New("zero price")
	ErrEmptyPortfolio     = errors.New("empty portfolio")
	ErrPriceUnavailable   = errors.New("price unavailable")

	ErrInvalidQuantity  = errors.New("invalid quantity")
	ErrInvalidTicker    = errors.New("invalid ticker")
	ErrInvalidUsername  = errors.New("invalid username")
	ErrUserNotFound     = errors.New("user not found")
	ErrSnapshotExists   = errors.New("snapshot already exists")
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// ErrorKind is the tagged form of a domain error, used by the request layer
type ErrorKind string

const (
	KindInsufficientFunds  ErrorKind = "insufficient_funds"
	KindInsufficientShares ErrorKind = "insufficient_shares"
	KindNoSuchPosition     ErrorKind = "no_such_position"
	KindMissingPrice       ErrorKind = "missing_price"
	KindZeroPrice          ErrorKind = "zero_price"
	KindEmptyPortfolio     ErrorKind = "empty_portfolio"
	KindPriceUnavailable   ErrorKind = "price_unavailable"
	KindInvalidQuantity    ErrorKind = "invalid_quantity"
	KindInvalidTicker      ErrorKind = "invalid_ticker"
	KindInvalidUsername    ErrorKind = "invalid_username"
	KindUserNotFound       ErrorKind = "user_not_found"
	KindSnapshotExists     ErrorKind = "snapshot_exists"
	KindSnapshotNotFound   ErrorKind = "snapshot_not_found"
	KindInternal           ErrorKind = "internal"
)

var errorKinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrInsufficientFunds, KindInsufficientFunds},
	{ErrInsufficientShares, KindInsufficientShares},
	{ErrNoSuchPosition, KindNoSuchPosition},
	{ErrMissingPrice, KindMissingPrice},
	{ErrZeroPrice, KindZeroPrice},
	{ErrEmptyPortfolio, KindEmptyPortfolio},
	{ErrPriceUnavailable, KindPriceUnavailable},
	{ErrInvalidQuantity, KindInvalidQuantity},
	{ErrInvalidTicker, KindInvalidTicker},
	{ErrInvalidUsername, KindInvalidUsername},
	{ErrUserNotFound, KindUserNotFound},
	{ErrSnapshotExists, KindSnapshotExists},
	{ErrSnapshotNotFound, KindSnapshotNotFound},
}

// KindOf returns the kind of the first domain error found in err's chain,
// or KindInternal when err carries none.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	for _, ek := range errorKinds {
		if errors.Is(err, ek.err) {
			return ek.kind
		}
	}
	return KindInternal
}

// HTTPStatus maps an error kind to the response status code
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindInsufficientFunds, KindInsufficientShares,
		KindMissingPrice, KindZeroPrice, KindEmptyPortfolio:
		return http.StatusUnprocessableEntity
	case KindNoSuchPosition, KindUserNotFound, KindSnapshotNotFound:
		return http.StatusNotFound
	case KindSnapshotExists:
		return http.StatusConflict
	case KindInvalidQuantity, KindInvalidTicker, KindInvalidUsername:
		return http.StatusBadRequest
	case KindPriceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
