// Copyright 2024 FusionML Collaboration
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package archive

import (
	"context"
	"errors"
	"io"
	"os"
	"path"
	"path/filepath"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// gcsArchive stages the HDF5 file locally and syncs it with a bucket
// object: downloaded on open when it exists, uploaded on close.
type gcsArchive struct {
	*H5

	ctx    context.Context
	client *storage.Client
	object *storage.ObjectHandle
}

func openGcsArchive(ctx context.Context, bucket, name string, credentials []byte) (*gcsArchive, error) {
	var opts []option.ClientOption
	if len(credentials) > 0 {
		opts = append(opts, option.WithCredentialsJSON(credentials))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}

	object := client.Bucket(bucket).Object(name)
	local := filepath.Join(os.TempDir(), "shotarchive-"+path.Base(name))

	reader, err := object.NewReader(ctx)
	switch {
	case err == nil:
		f, cerr := os.Create(local)
		if cerr != nil {
			reader.Close()
			client.Close()
			return nil, cerr
		}
		_, err = io.Copy(f, reader)
		reader.Close()
		f.Close()
		if err != nil {
			client.Close()
			return nil, err
		}
	case errors.Is(err, storage.ErrObjectNotExist):
		os.Remove(local)
	default:
		client.Close()
		return nil, err
	}

	h5, err := OpenH5(local)
	if err != nil {
		client.Close()
		return nil, err
	}
	return &gcsArchive{H5: h5, ctx: ctx, client: client, object: object}, nil
}

func (a *gcsArchive) Close() error {
	if err := a.H5.Close(); err != nil {
		a.client.Close()
		return err
	}

	f, err := os.Open(a.H5.path)
	if err != nil {
		a.client.Close()
		return err
	}
	defer f.Close()

	writer := a.object.NewWriter(a.ctx)
	if _, err := io.Copy(writer, f); err != nil {
		writer.Close()
		a.client.Close()
		return err
	}
	if err := writer.Close(); err != nil {
		a.client.Close()
		return err
	}
	return a.client.Close()
}
