// Copyright 2024 FusionML Collaboration
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/fusionml/shotarchive/shot"
)

// Client retrieves one signal for one shot. Implementations must be
// safe for concurrent use.
type Client interface {
	Fetch(ctx context.Context, shotNum int, req Request) (*shot.Signal, error)
}

// BackendError is a failure reported by the acquisition side for a
// single request, as opposed to a transport failure reaching it.
type BackendError struct {
	Request string
	Msg     string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("fetch %v: %v", e.Request, e.Msg)
}

// crashSignature is the message the acquisition backend emits when its
// data server has crashed, rather than when a single signal is absent.
const crashSignature = "Failure to complete operation"

// IsBackendCrash reports whether err indicates the acquisition backend
// itself went down. A run that sees this must stop and relaunch, since
// every subsequent fetch would fail the same way.
func IsBackendCrash(err error) bool {
	var be *BackendError
	if errors.As(err, &be) {
		return strings.Contains(be.Msg, crashSignature)
	}
	return false
}

// NewClient constructs a fetch client for the given gateway URL.
// http(s) URLs talk to a live acquisition gateway, file URLs read
// fixtures from a directory tree. When cacheAddr is non-empty the
// client is wrapped with a redis cache at that address.
func NewClient(urlString, cacheAddr string, log *zap.Logger) (Client, error) {
	thisUrl, err := url.Parse(urlString)
	if err != nil {
		return nil, err
	}

	var client Client
	switch thisUrl.Scheme {
	case "http", "https":
		client = NewGatewayClient(urlString, log)
	case "file":
		client = &DirClient{Root: filepath.Clean(fmt.Sprintf("%v/%v", thisUrl.Host, thisUrl.Path))}
	default:
		return nil, errors.New("bad url scheme")
	}

	if cacheAddr != "" {
		client = NewCachingClient(client, cacheAddr, log)
	}
	return client, nil
}
