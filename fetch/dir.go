// Copyright 2024 FusionML Collaboration
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fusionml/shotarchive/shot"
)

// DirClient reads fixture signals from Root/<shot>/<name>.json, where
// name is the request name with path separators replaced. Used for
// offline runs and tests.
type DirClient struct {
	Root string
}

func fixtureName(name string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_")
	return r.Replace(name) + ".json"
}

func (c *DirClient) Fetch(_ context.Context, shotNum int, req Request) (*shot.Signal, error) {
	path := filepath.Join(c.Root, strconv.Itoa(shotNum), fixtureName(req.Name))
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &BackendError{Request: req.Name, Msg: "no data"}
		}
		return nil, err
	}

	var ws wireSignal
	if err := json.Unmarshal(data, &ws); err != nil {
		return nil, fmt.Errorf("decoding %v: %w", path, err)
	}
	if ws.Error != "" {
		return nil, &BackendError{Request: req.Name, Msg: ws.Error}
	}
	sig, err := ws.signal()
	if err != nil {
		return nil, fmt.Errorf("malformed signal %v: %w", path, err)
	}
	return sig, nil
}
