// Copyright 2024 FusionML Collaboration
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fusionml/shotarchive/shot"
)

// wireRequest is the gateway's JSON request body. A point request
// carries only Point; a tree request carries Tree/Node and friends.
type wireRequest struct {
	Shot     int      `json:"shot"`
	Point    string   `json:"point,omitempty"`
	Tree     string   `json:"tree,omitempty"`
	Node     string   `json:"node,omitempty"`
	Location string   `json:"location,omitempty"`
	Dims     []string `json:"dims,omitempty"`
}

type wireSignal struct {
	Data  []float64            `json:"data"`
	Shape []int                `json:"shape"`
	Times []float64            `json:"times"`
	Dims  map[string][]float64 `json:"dims,omitempty"`
	Text  []string             `json:"text,omitempty"`
	Error string               `json:"error,omitempty"`
}

// GatewayClient fetches signals from an HTTP acquisition gateway that
// fronts the MDSplus trees and PCS point archives.
type GatewayClient struct {
	Base string
	HTTP *http.Client

	log *zap.Logger
}

func NewGatewayClient(base string, log *zap.Logger) *GatewayClient {
	if log == nil {
		log = zap.NewNop()
	}
	return &GatewayClient{
		Base: strings.TrimRight(base, "/"),
		HTTP: &http.Client{Timeout: 5 * time.Minute},
		log:  log,
	}
}

func (c *GatewayClient) Fetch(ctx context.Context, shotNum int, req Request) (*shot.Signal, error) {
	wr := wireRequest{Shot: shotNum}
	switch a := req.Addr.(type) {
	case Point:
		wr.Point = a.Name
	case Tree:
		wr.Tree = a.Tree
		wr.Node = a.Node
		wr.Location = a.Location
		wr.Dims = a.Dims
	default:
		return nil, fmt.Errorf("unknown address type %T", req.Addr)
	}

	body, err := json.Marshal(&wr)
	if err != nil {
		return nil, err
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Base+"/fetch", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	hreq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(hreq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &BackendError{Request: req.Name, Msg: strings.TrimSpace(string(msg))}
	}

	var ws wireSignal
	if err := json.NewDecoder(resp.Body).Decode(&ws); err != nil {
		return nil, fmt.Errorf("decoding %v: %w", req.Name, err)
	}
	if ws.Error != "" {
		return nil, &BackendError{Request: req.Name, Msg: ws.Error}
	}

	sig, err := ws.signal()
	if err != nil {
		return nil, fmt.Errorf("malformed signal %v: %w", req.Name, err)
	}

	c.log.Debug("fetched signal", zap.Int("shot", shotNum), zap.String("name", req.Name))
	return sig, nil
}

// signal checks the wire payload against its declared shape before it
// reaches the pipeline, where Block and Series index by shape. A short
// or mis-shaped reply becomes a per-signal error on the record instead
// of an out-of-range panic in a transform worker.
func (ws *wireSignal) signal() (*shot.Signal, error) {
	s := &shot.Signal{
		Data:  ws.Data,
		Shape: ws.Shape,
		Times: ws.Times,
		Dims:  ws.Dims,
		Text:  ws.Text,
	}
	if len(s.Shape) == 0 && len(s.Times) > 0 {
		s.Shape = []int{len(s.Times)}
	}

	if len(s.Shape) > 0 {
		n := 1
		for _, d := range s.Shape {
			if d < 0 {
				return nil, fmt.Errorf("negative extent in shape %v", s.Shape)
			}
			n *= d
		}
		if n != len(s.Data) {
			return nil, fmt.Errorf("shape %v declares %v values but %v arrived", s.Shape, n, len(s.Data))
		}
		if len(s.Times) > 0 && s.Shape[0] != len(s.Times) {
			return nil, fmt.Errorf("leading extent %v does not match %v time points", s.Shape[0], len(s.Times))
		}
	}
	return s, nil
}
