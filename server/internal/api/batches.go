package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cocoaplant/cocoaplant/pkg/compute"
	"github.com/cocoaplant/cocoaplant/pkg/ingest"
	"github.com/cocoaplant/cocoaplant/pkg/types"
	"github.com/cocoaplant/cocoaplant/server/internal/audit"
	"github.com/cocoaplant/cocoaplant/server/internal/auth"
	"github.com/cocoaplant/cocoaplant/server/internal/metrics"
	"github.com/cocoaplant/cocoaplant/server/internal/queue"
)

const exportFilename = "batch_analysis_export.csv"

// listBatches returns GET /api/v1/batches, the live dataset newest first.
func (h *Handler) listBatches(w http.ResponseWriter, r *http.Request) {
	if !method(w, r, http.MethodGet) || !h.allow(w, r, auth.ResourceBatches, "BATCH_VIEW") {
		return
	}
	jsonResp(w, http.StatusOK, h.d.Batches.List())
}

// batchSubtree dispatches /api/v1/batches/{analyze|import|export|id}.
func (h *Handler) batchSubtree(w http.ResponseWriter, r *http.Request) {
	parts := subpath(r, "/api/v1/batches/")
	switch {
	case len(parts) == 0:
		h.listBatches(w, r)
	case len(parts) > 1:
		jsonErr(w, http.StatusNotFound, "not found")
	case parts[0] == "analyze":
		h.analyze(w, r)
	case parts[0] == "import":
		h.importBatches(w, r)
	case parts[0] == "export":
		h.export(w, r)
	default:
		h.getBatch(w, r, parts[0])
	}
}

// getBatch returns GET /api/v1/batches/{id}.
func (h *Handler) getBatch(w http.ResponseWriter, r *http.Request, id string) {
	if !method(w, r, http.MethodGet) || !h.allow(w, r, auth.ResourceBatches, "BATCH_VIEW") {
		return
	}
	b, ok := h.d.Batches.Get(id)
	if !ok {
		jsonErr(w, http.StatusNotFound, "batch not found")
		return
	}
	jsonResp(w, http.StatusOK, b)
}

// analyze returns POST /api/v1/batches/analyze: the scored records and their
// summary, without touching the live dataset.
func (h *Handler) analyze(w http.ResponseWriter, r *http.Request) {
	if !method(w, r, http.MethodPost) || !h.allow(w, r, auth.ResourceBatches, "BATCH_ANALYZE") {
		return
	}
	up, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	records, err := h.d.Pipeline.Run(r.Context(), up.content, up.format)
	h.countImport(up.format, len(records), err)
	if err != nil {
		h.ingestErr(w, up, err)
		return
	}
	jsonResp(w, http.StatusOK, AnalyzeResponse{
		Filename: up.filename,
		Format:   string(up.format),
		Records:  records,
		Summary:  compute.Summarize(records),
	})
}

// importBatches handles POST /api/v1/batches/import. It analyzes the file
// and merges the records ahead of the live dataset. With async=1 the work
// runs as an UPLOAD job and the job ID is returned with 202.
func (h *Handler) importBatches(w http.ResponseWriter, r *http.Request) {
	if !method(w, r, http.MethodPost) || !h.allow(w, r, auth.ResourceBatches, "BATCH_IMPORT") {
		return
	}
	up, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	c := callerOf(r)

	if r.URL.Query().Get("async") == "1" {
		title := "Importing " + up.displayName()
		id := h.d.Queue.Add(queue.KindUpload, title, func(ctx context.Context) (any, error) {
			return h.runImport(ctx, c, up)
		})
		if id == "" {
			jsonErr(w, http.StatusServiceUnavailable, "job queue closed")
			return
		}
		jsonResp(w, http.StatusAccepted, JobAccepted{JobID: id})
		return
	}

	resp, err := h.runImport(r.Context(), c, up)
	if err != nil {
		h.ingestErr(w, up, err)
		return
	}
	jsonResp(w, http.StatusOK, resp)
}

// runImport analyzes, merges and audits one uploaded file.
func (h *Handler) runImport(ctx context.Context, c caller, up upload) (AnalyzeResponse, error) {
	records, err := h.d.Pipeline.Run(ctx, up.content, up.format)
	h.countImport(up.format, len(records), err)
	if err != nil {
		h.d.Audit.Record(c.event("BATCH_IMPORT", "Import",
			fmt.Sprintf("Failed to import %s", up.displayName()), audit.StatusFailed))
		return AnalyzeResponse{}, err
	}

	size := h.d.Batches.Import(ingest.ToBatchData(records, time.Now()))
	h.d.Audit.Record(c.event("BATCH_IMPORT", "Import",
		fmt.Sprintf("Imported %d records from %s", len(records), up.displayName()), audit.StatusSuccess))
	slog.Info("api: batches imported", "file", up.filename, "records", len(records), "dataset", size)

	return AnalyzeResponse{
		Filename: up.filename,
		Format:   string(up.format),
		Records:  records,
		Summary:  compute.Summarize(records),
		Imported: size,
	}, nil
}

// export returns POST /api/v1/batches/export: the posted records as CSV.
func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	if !method(w, r, http.MethodPost) || !h.allow(w, r, auth.ResourceBatches, "BATCH_EXPORT") {
		return
	}
	var records []types.BatchRecord
	if !decodeJSON(w, r, &records) {
		return
	}
	var buf bytes.Buffer
	if err := ingest.WriteCSV(&buf, records); err != nil {
		jsonErr(w, http.StatusInternalServerError, "export failed")
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+exportFilename+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes()) //nolint:errcheck
}

// template returns GET /api/v1/templates/{csv|json}.
func (h *Handler) template(w http.ResponseWriter, r *http.Request) {
	if !method(w, r, http.MethodGet) || !h.allow(w, r, auth.ResourceBatches, "TEMPLATE_DOWNLOAD") {
		return
	}
	parts := subpath(r, "/api/v1/templates/")
	if len(parts) != 1 {
		jsonErr(w, http.StatusNotFound, "not found")
		return
	}
	content, filename, mime, err := ingest.Template(ingest.ParseFormat(parts[0]))
	if err != nil {
		jsonErr(w, http.StatusNotFound, "no template for format")
		return
	}
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(content) //nolint:errcheck
}

// drying returns GET /api/v1/drying, the live drying snapshots.
func (h *Handler) drying(w http.ResponseWriter, r *http.Request) {
	if !method(w, r, http.MethodGet) || !h.allow(w, r, auth.ResourceDashboard, "DRYING_VIEW") {
		return
	}
	jsonResp(w, http.StatusOK, h.d.Snapshots.List())
}

// --- uploads ----------------------------------------------------------------

type upload struct {
	content  []byte
	filename string
	format   ingest.Format
}

func (u upload) displayName() string {
	if u.filename != "" {
		return u.filename
	}
	return "upload." + string(u.format)
}

// readUpload reads a file from a multipart "file" field or the raw body.
// The format comes from ?format=, else the file name's extension.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (upload, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.d.MaxUploadBytes)

	var up upload
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, hdr, err := r.FormFile("file")
		if err != nil {
			uploadErr(w, err)
			return upload{}, false
		}
		defer file.Close()
		if up.content, err = io.ReadAll(file); err != nil {
			uploadErr(w, err)
			return upload{}, false
		}
		up.filename = hdr.Filename
	} else {
		var err error
		if up.content, err = io.ReadAll(r.Body); err != nil {
			uploadErr(w, err)
			return upload{}, false
		}
	}

	q := r.URL.Query()
	if name := q.Get("filename"); name != "" {
		up.filename = name
	}
	up.format = ingest.FormatFromName(up.filename)
	if f := q.Get("format"); f != "" {
		up.format = ingest.ParseFormat(f)
	}
	return up, true
}

func uploadErr(w http.ResponseWriter, err error) {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		jsonErr(w, http.StatusRequestEntityTooLarge, "upload too large")
		return
	}
	jsonErr(w, http.StatusBadRequest, "could not read upload")
}

// ingestErr maps a pipeline error to its HTTP response.
func (h *Handler) ingestErr(w http.ResponseWriter, up upload, err error) {
	var pe *ingest.ParseError
	switch {
	case errors.As(err, &pe):
		slog.Warn("api: upload rejected", "file", up.filename, "format", up.format, "err", err)
		jsonErr(w, http.StatusUnprocessableEntity, ingest.UserMessage)
	case errors.Is(err, ingest.ErrUnsupportedFormat):
		jsonErr(w, http.StatusUnsupportedMediaType, "unsupported file format: use .csv, .json or .xlsx")
	default:
		slog.Error("api: ingest failed", "file", up.filename, "err", err)
		jsonErr(w, http.StatusInternalServerError, ingest.UserMessage)
	}
}

func (h *Handler) countImport(format ingest.Format, records int, err error) {
	result := "ok"
	if err != nil {
		result = "failed"
	}
	h.d.Metrics.Inc(metrics.ImportsTotal, "format", string(format), "result", result)
	h.d.Metrics.Add(metrics.RecordsIngestedTotal, float64(records), "format", string(format))
}
