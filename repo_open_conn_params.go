package wavechan

import (
	"context"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
)

type (
	// OpenConnectionParams are the dial parameters of one connection attempt.
	OpenConnectionParams struct {
		URL    url.URL
		Header http.Header
	}

	OpenConnectionParamsGetter func(ctx context.Context) (OpenConnectionParams, error)

	// OpenConnectionParamsRepo is consulted before every dial.
	OpenConnectionParamsRepo struct {
		logger Logger
		getter OpenConnectionParamsGetter
	}

	// TokenProvider returns the credential to authenticate the next connection
	// with. It is called once per connection attempt.
	TokenProvider func(ctx context.Context) (string, error)
)

func (r OpenConnectionParamsRepo) Get(
	ctx context.Context,
) (params OpenConnectionParams, err error) {
	params, err = r.getter(ctx)
	if err != nil {
		r.logger.Errorf("cannot fetch open connection params: %s", err)
	}
	return
}

func NewOpenConnectionParamsRepo(
	logger Logger,
	getter OpenConnectionParamsGetter,
) OpenConnectionParamsRepo {
	return OpenConnectionParamsRepo{getter: getter, logger: logger}
}

// StaticURL dials the same endpoint on every attempt.
func StaticURL(rawURL string, header http.Header) OpenConnectionParamsGetter {
	return func(context.Context) (OpenConnectionParams, error) {
		u, err := url.Parse(rawURL)
		if err != nil {
			return OpenConnectionParams{}, errors.Wrapf(err, "parse endpoint %q", rawURL)
		}
		switch u.Scheme {
		case "ws", "wss":
		case "http":
			u.Scheme = "ws"
		case "https":
			u.Scheme = "wss"
		default:
			return OpenConnectionParams{}, errors.Errorf("unsupported endpoint scheme %q", u.Scheme)
		}
		return OpenConnectionParams{URL: *u, Header: header.Clone()}, nil
	}
}
