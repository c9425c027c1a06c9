/*
formdata - multipart/form-data part assembly for Go servers.
Copyright © 2019-2020 Max Mazurov <fox.cpp@disroot.org>, Maddy Mail Server contributors

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package decoder reads multipart/form-data request bodies into formdata
// parts.
//
// Part content is read in pooled chunks and handed to formdata.Part as it
// arrives, so large uploads go to disk without being held in memory as a
// whole.
package decoder

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime/quotedprintable"
	"net/http"
	"strconv"
	"strings"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/textproto"
	"github.com/foxcpp/formdata/framework/buffer"
	"github.com/foxcpp/formdata/framework/exterrors"
	"github.com/foxcpp/formdata/framework/formdata"
	"github.com/foxcpp/formdata/framework/log"
	"github.com/google/uuid"
)

// CharsetField is the name of the form field carrying the charset of the
// other fields.
const CharsetField = "_charset_"

var (
	ErrNotMultipart = errors.New("decoder: not a multipart/form-data request")
	ErrNoBoundary   = errors.New("decoder: multipart boundary is missing")
	ErrTooManyParts = errors.New("decoder: too many parts")
	ErrMalformed    = errors.New("decoder: malformed multipart body")
)

type Config struct {
	// ChunkSize is the size of pooled chunks used to read part content.
	// buffer.DefaultChunkSize is used if it is not positive.
	ChunkSize int

	// MaxParts limits the number of parts in one body. Zero means no
	// limit.
	MaxParts int

	// SkipOversized makes parts exceeding the size limit to be dropped
	// instead of failing the whole body.
	SkipOversized bool

	Log log.Logger
}

type Decoder struct {
	factory *formdata.Factory
	pool    *buffer.Pool
	cfg     Config
}

func New(factory *formdata.Factory, cfg Config) *Decoder {
	return &Decoder{
		factory: factory,
		pool:    buffer.NewPool(cfg.ChunkSize),
		cfg:     cfg,
	}
}

func (d *Decoder) Factory() *formdata.Factory {
	return d.factory
}

func malformed(format string, args ...interface{}) error {
	return exterrors.WithTemporary(
		fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...)),
		false,
	)
}

// DecodeRequest decodes the body of a multipart/form-data HTTP request.
// Request context is used to abort decoding.
func (d *Decoder) DecodeRequest(r *http.Request) (*Form, error) {
	h := message.HeaderFromMap(r.Header)
	mediaType, params, err := h.ContentType()
	if err != nil || mediaType != "multipart/form-data" {
		return nil, exterrors.WithFields(ErrNotMultipart, map[string]interface{}{
			"content_type": r.Header.Get("Content-Type"),
		})
	}
	boundary := params["boundary"]
	if boundary == "" {
		return nil, ErrNoBoundary
	}
	return d.Decode(r.Context(), r.Body, boundary)
}

// Decode reads all parts from body. On failure or context cancellation,
// every part created so far is deleted.
func (d *Decoder) Decode(ctx context.Context, body io.Reader, boundary string) (*Form, error) {
	if boundary == "" {
		return nil, ErrNoBoundary
	}

	req := &request{
		d:       d,
		id:      uuid.NewString(),
		charset: d.factory.Config().Charset,
		log:     d.cfg.Log.Sublogger("decoder"),
	}
	req.log = req.log.With("request", req.id)

	form, err := req.run(ctx, textproto.NewMultipartReader(body, boundary))
	if err != nil {
		d.factory.CleanRequest(req.id)
		decodedBodies.WithLabelValues("failed").Inc()
		return nil, exterrors.WithFields(err, map[string]interface{}{"request": req.id})
	}
	decodedBodies.WithLabelValues("ok").Inc()
	return form, nil
}

type request struct {
	d       *Decoder
	id      string
	charset string
	log     log.Logger

	// Attributes created without an explicit charset. Updated when the
	// _charset_ field is decoded.
	implicit []*formdata.Part
}

func (r *request) run(ctx context.Context, mr *textproto.MultipartReader) (*Form, error) {
	form := &Form{id: r.id, factory: r.d.factory}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, malformed("%v", err)
		}

		if r.d.cfg.MaxParts > 0 && len(form.parts)+len(form.skipped) >= r.d.cfg.MaxParts {
			return nil, exterrors.WithTemporary(
				exterrors.WithFields(ErrTooManyParts, map[string]interface{}{"max_parts": r.d.cfg.MaxParts}),
				false,
			)
		}

		part, err := r.readPart(ctx, p)
		if err != nil {
			if errors.Is(err, formdata.ErrSizeLimitExceeded) && r.d.cfg.SkipOversized && part != nil {
				r.log.Error("part skipped", err)
				form.skipped = append(form.skipped, part.Name())
				r.d.factory.Forget(r.id, part)
				part.Release()
				if _, err := io.Copy(io.Discard, p); err != nil {
					return nil, malformed("%v", err)
				}
				continue
			}
			return nil, err
		}
		form.parts = append(form.parts, part)
	}

	r.log.DebugMsg("body decoded", "parts", len(form.parts), "skipped", len(form.skipped))
	return form, nil
}

func transferDecoder(cte string, r io.Reader) (io.Reader, error) {
	switch strings.ToLower(cte) {
	case "", "7bit", "8bit", "binary":
		return r, nil
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, r), nil
	case "quoted-printable":
		return quotedprintable.NewReader(r), nil
	}
	return nil, malformed("unknown transfer encoding: %s", cte)
}

// readPart creates the part described by the headers of p and reads its
// content. The created part is returned together with the size limit error
// so it can be dropped by the caller.
func (r *request) readPart(ctx context.Context, p *textproto.Part) (*formdata.Part, error) {
	h := message.Header{Header: p.Header}

	disp, params, err := h.ContentDisposition()
	if err != nil {
		return nil, malformed("invalid Content-Disposition: %v", err)
	}
	if !strings.EqualFold(disp, "form-data") {
		return nil, malformed("unexpected Content-Disposition: %s", disp)
	}

	var (
		contentType string
		charset     string
	)
	if h.Get("Content-Type") != "" {
		ct, ctParams, err := h.ContentType()
		if err != nil {
			return nil, malformed("invalid Content-Type: %v", err)
		}
		contentType = ct
		charset = ctParams["charset"]
	}

	definedSize := formdata.UnknownSize
	if v := h.Get("Content-Length"); v != "" {
		size, err := strconv.ParseInt(v, 10, 64)
		if err != nil || size < 0 {
			return nil, malformed("invalid Content-Length: %s", v)
		}
		definedSize = size
	}

	cte := h.Get("Content-Transfer-Encoding")
	body, err := transferDecoder(cte, p)
	if err != nil {
		return nil, err
	}

	var part *formdata.Part
	filename, isUpload := params["filename"]
	if isUpload {
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		part, err = r.d.factory.NewUpload(r.id, params["name"], filename, contentType, cte, charset, definedSize)
	} else {
		part, err = r.d.factory.NewAttribute(r.id, params["name"], definedSize)
		if err == nil {
			if charset != "" {
				err = part.SetCharset(charset)
			} else {
				err = part.SetCharset(r.charset)
				r.implicit = append(r.implicit, part)
			}
		}
	}
	if err != nil {
		if errors.Is(err, formdata.ErrUnknownCharset) {
			return nil, malformed("part %q: %v", params["name"], err)
		}
		return nil, err
	}

	if err := r.readContent(ctx, part, body); err != nil {
		return part, err
	}

	if !isUpload && part.Name() == CharsetField {
		if err := r.setCharset(part); err != nil {
			return nil, err
		}
	}
	return part, nil
}

func (r *request) readContent(ctx context.Context, part *formdata.Part, body io.Reader) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		c := r.d.pool.Get()
		_, err := c.Fill(body)
		last := err == io.EOF
		if err != nil && !last {
			c.Release()
			return malformed("%v", err)
		}
		if err := part.AddChunk(c, last); err != nil {
			return err
		}
		if last {
			return nil
		}
	}
}

func (r *request) setCharset(field *formdata.Part) error {
	blob, err := field.Bytes()
	if err != nil {
		return err
	}
	label := strings.TrimSpace(string(blob))
	if label == "" {
		return nil
	}

	cs, err := formdata.LookupCharset(label)
	if err != nil {
		return malformed("invalid %s value: %v", CharsetField, err)
	}
	for _, p := range r.implicit {
		if err := p.SetCharset(cs); err != nil {
			return err
		}
	}
	r.charset = cs
	r.log.DebugMsg("form charset changed", "charset", cs)
	return nil
}
