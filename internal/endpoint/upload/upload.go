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

// Package upload implements the HTTP endpoint accepting multipart/form-data
// uploads.
//
// Received files are persisted to the configured blob store, form fields
// are echoed back in the JSON response. The endpoint also serves Prometheus
// metrics on /metrics.
package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/foxcpp/formdata/framework/config"
	"github.com/foxcpp/formdata/framework/exterrors"
	"github.com/foxcpp/formdata/framework/formdata"
	"github.com/foxcpp/formdata/framework/log"
	"github.com/foxcpp/formdata/framework/module"
	"github.com/foxcpp/formdata/internal/decoder"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const modName = "upload"

// DefaultPersistWorkers is the amount of files of a single request persisted
// concurrently.
const DefaultPersistWorkers = 4

type Endpoint struct {
	dec    *decoder.Decoder
	store  module.BlobStore
	logger log.Logger

	// PersistWorkers limits the amount of concurrent blob store writes per
	// request.
	PersistWorkers int

	listenersWg sync.WaitGroup
	serv        http.Server
	mux         *http.ServeMux
}

// New creates the endpoint. If store is nil, uploads are decoded and
// reported but not persisted.
func New(dec *decoder.Decoder, store module.BlobStore, logger log.Logger) *Endpoint {
	e := &Endpoint{
		dec:            dec,
		store:          store,
		logger:         logger,
		PersistWorkers: DefaultPersistWorkers,
	}

	e.mux = http.NewServeMux()
	e.mux.HandleFunc("/upload", e.handleUpload)
	e.mux.Handle("/metrics", promhttp.Handler())
	e.serv.Handler = e.mux
	e.serv.ErrorLog = zap.NewStdLog(logger.Sublogger("http").Zap())
	return e
}

func (e *Endpoint) Handler() http.Handler {
	return e.mux
}

// Listen starts serving on the specified endpoints. It returns after all
// listeners are created.
func (e *Endpoint) Listen(addrs ...string) error {
	for _, a := range addrs {
		a := a
		endp, err := config.ParseEndpoint(a)
		if err != nil {
			return fmt.Errorf("%s: malformed endpoint: %v", modName, err)
		}
		l, err := net.Listen(endp.Network(), endp.Address())
		if err != nil {
			return fmt.Errorf("%s: %v", modName, err)
		}

		e.listenersWg.Add(1)
		go func() {
			e.logger.Println("listening on", endp.String())
			err := e.serv.Serve(l)
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				e.logger.Error("serve failed", err, "endpoint", a)
			}
			e.listenersWg.Done()
		}()
	}
	return nil
}

// Shutdown stops accepting new requests and waits for requests in flight to
// complete or ctx to expire.
func (e *Endpoint) Shutdown(ctx context.Context) error {
	if err := e.serv.Shutdown(ctx); err != nil {
		return err
	}
	e.listenersWg.Wait()
	return nil
}

func (e *Endpoint) Close() error {
	if err := e.serv.Close(); err != nil {
		return err
	}
	e.listenersWg.Wait()
	return nil
}

type fileInfo struct {
	Name        string `json:"name"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	Key         string `json:"key,omitempty"`
}

type response struct {
	Request string              `json:"request"`
	Fields  map[string][]string `json:"fields"`
	Files   []fileInfo          `json:"files"`
	Skipped []string            `json:"skipped,omitempty"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Request string `json:"request,omitempty"`
}

// statusCode maps decoding and storage errors to HTTP status codes.
func statusCode(err error) int {
	switch {
	case errors.Is(err, decoder.ErrNotMultipart):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, formdata.ErrSizeLimitExceeded):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, decoder.ErrNoBoundary),
		errors.Is(err, decoder.ErrMalformed),
		errors.Is(err, decoder.ErrTooManyParts),
		errors.Is(err, formdata.ErrInvalidName),
		errors.Is(err, formdata.ErrUnknownCharset):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	if !exterrors.IsTemporaryOrUnspec(err) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (e *Endpoint) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		e.logger.Error("response write failed", err)
	}
}

func (e *Endpoint) fail(w http.ResponseWriter, err error) {
	status := statusCode(err)
	requests.WithLabelValues(strconv.Itoa(status)).Inc()

	reqID, _ := exterrors.Fields(err)["request"].(string)
	if status >= 500 {
		e.logger.Error("upload failed", err)
	} else {
		e.logger.DebugMsg("upload rejected", "reason", err.Error(), "status", status)
	}
	e.writeJSON(w, status, errorResponse{Error: err.Error(), Request: reqID})
}

func (e *Endpoint) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		requests.WithLabelValues(strconv.Itoa(http.StatusMethodNotAllowed)).Inc()
		e.writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	form, err := e.dec.DecodeRequest(r)
	if err != nil {
		e.fail(w, err)
		return
	}
	defer form.Release()

	resp := response{
		Request: form.ID(),
		Fields:  make(map[string][]string),
		Skipped: form.Skipped(),
	}
	for _, p := range form.Parts() {
		if p.Kind() != formdata.KindAttribute {
			continue
		}
		text, err := p.Text()
		if err != nil {
			e.fail(w, exterrors.WithFields(err, map[string]interface{}{"request": form.ID()}))
			return
		}
		resp.Fields[p.Name()] = append(resp.Fields[p.Name()], text)
	}

	files := form.Files()
	resp.Files = make([]fileInfo, len(files))
	var total int64
	for i, p := range files {
		resp.Files[i] = fileInfo{
			Name:        p.Name(),
			Filename:    p.Filename(),
			ContentType: p.ContentType(),
			Size:        p.Len(),
		}
		total += p.Len()
	}

	if e.store != nil {
		if err := e.persist(r.Context(), form.ID(), files, resp.Files); err != nil {
			e.fail(w, exterrors.WithFields(err, map[string]interface{}{"request": form.ID()}))
			return
		}
	}

	e.logger.Msg("upload received", "request", form.ID(),
		"fields", len(resp.Fields), "files", len(files), "size", humanize.IBytes(uint64(total)))
	requests.WithLabelValues(strconv.Itoa(http.StatusOK)).Inc()
	e.writeJSON(w, http.StatusOK, resp)
}

// persist writes files to the blob store concurrently. If any write fails,
// blobs written so far are removed.
func (e *Endpoint) persist(ctx context.Context, reqID string, files []*formdata.Part, info []fileInfo) error {
	keys := make([]string, len(files))
	for i := range files {
		keys[i] = reqID + "-" + strconv.Itoa(i)
	}

	g, gCtx := errgroup.WithContext(ctx)
	if e.PersistWorkers > 0 {
		g.SetLimit(e.PersistWorkers)
	}
	for i, p := range files {
		i, p := i, p
		g.Go(func() error {
			return p.Persist(gCtx, e.store, keys[i])
		})
	}
	if err := g.Wait(); err != nil {
		// Context of the request might be cancelled already.
		if delErr := e.store.Delete(context.Background(), keys); delErr != nil {
			e.logger.Error("cleanup of persisted blobs failed", delErr, "request", reqID)
		}
		return err
	}

	for i := range info {
		info[i].Key = keys[i]
	}
	return nil
}
