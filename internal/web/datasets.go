package web

import (
	"errors"
	"net/http"
	"sync"

	"counselor-assistant/internal/dataset"
	"counselor-assistant/internal/session"
)

const previewRows = 10

// datasetCache keeps each user's uploaded table and their latest search result in memory.
type datasetCache struct {
	mu     sync.RWMutex
	byUser map[string]*datasetEntry
}

type datasetEntry struct {
	full *dataset.Dataset
	view *dataset.Dataset
}

func newDatasetCache() *datasetCache {
	return &datasetCache{byUser: make(map[string]*datasetEntry)}
}

func (c *datasetCache) put(user string, ds *dataset.Dataset) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byUser[user] = &datasetEntry{full: ds, view: ds}
}

func (c *datasetCache) get(user string) (*datasetEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.byUser[user]
	if !ok {
		return nil, false
	}
	cp := *e
	return &cp, true
}

func (c *datasetCache) setView(user string, view *dataset.Dataset) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.byUser[user]; ok {
		e.view = view
	}
}

func (c *datasetCache) view(user string) (*dataset.Dataset, bool) {
	e, ok := c.get(user)
	if !ok {
		return nil, false
	}
	return e.view, true
}

type DatasetResponse struct {
	Filename string        `json:"filename,omitempty"`
	Info     dataset.Info  `json:"info"`
	Preview  []dataset.Row `json:"preview"`
}

type SearchResponse struct {
	Count int           `json:"count"`
	Rows  []dataset.Row `json:"rows"`
}

func NewDatasetUploadHandler(gate Authorizer, datasets *datasetCache, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := gate.Authorize(r.Context(), session.UseDataset)
		if err != nil {
			writeAuthError(w, err)
			return
		}
		if maxBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "expected a multipart upload in field \"file\"")
			return
		}
		defer file.Close()

		ds, err := dataset.Load(file, header.Filename)
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, dataset.ErrUnsupportedFormat) {
				status = http.StatusUnsupportedMediaType
			}
			writeError(w, status, err.Error())
			return
		}
		datasets.put(id.Username, ds)
		writeJSON(w, http.StatusOK, DatasetResponse{Filename: header.Filename, Info: ds.Info(), Preview: ds.Head(previewRows)})
	}
}

func NewDatasetInfoHandler(gate Authorizer, datasets *datasetCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := gate.Authorize(r.Context(), session.UseDataset)
		if err != nil {
			writeAuthError(w, err)
			return
		}
		e, ok := datasets.get(id.Username)
		if !ok {
			writeError(w, http.StatusNotFound, "no dataset uploaded")
			return
		}
		writeJSON(w, http.StatusOK, DatasetResponse{Info: e.full.Info(), Preview: e.full.Head(previewRows)})
	}
}

// NewDatasetSearchHandler filters the uploaded table; an empty query resets the filter.
func NewDatasetSearchHandler(gate Authorizer, datasets *datasetCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := gate.Authorize(r.Context(), session.UseDataset)
		if err != nil {
			writeAuthError(w, err)
			return
		}
		e, ok := datasets.get(id.Username)
		if !ok {
			writeError(w, http.StatusNotFound, "no dataset uploaded")
			return
		}

		query := r.URL.Query().Get("q")
		column := r.URL.Query().Get("column")
		view := e.full
		if query != "" {
			view, err = e.full.Search(query, column)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
		}
		datasets.setView(id.Username, view)
		writeJSON(w, http.StatusOK, SearchResponse{Count: view.Len(), Rows: view.Rows()})
	}
}
