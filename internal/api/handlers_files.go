package api

import (
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"metaredact/internal/group"
	"metaredact/internal/metadata"
	"metaredact/internal/queue"
	"metaredact/pkg/mimeutil"
)

// Metadata views served by HandleGroups.
const (
	ViewOriginal = "original"
	ViewRedacted = "redacted"
)

type FilesHandler struct {
	queue *queue.Queue
}

func NewFilesHandler(q *queue.Queue) *FilesHandler {
	return &FilesHandler{queue: q}
}

type enqueueResponse struct {
	IDs   []string     `json:"ids"`
	Files []queue.View `json:"files"`
}

type listResponse struct {
	Files  []queue.View `json:"files"`
	Counts queue.Counts `json:"counts"`
}

type clearResponse struct {
	Removed int `json:"removed"`
}

type categoryResponse struct {
	Name    group.Category    `json:"name"`
	Entries map[string]string `json:"entries"`
}

type locationResponse struct {
	group.Coordinate
	MapURL string `json:"mapUrl"`
}

type groupsResponse struct {
	ID         string             `json:"id"`
	View       string             `json:"view"`
	Categories []categoryResponse `json:"categories"`
	Location   *locationResponse  `json:"location,omitempty"`
}

// HandleEnqueue accepts one or more multipart "file" parts. An optional
// "lastModified" form value (Unix milliseconds) applies to every part.
func (h *FilesHandler) HandleEnqueue(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return NewBadRequestError("invalid multipart form", err)
	}
	parts := form.File["file"]
	if len(parts) == 0 {
		return NewValidationError("file")
	}

	lastModified := time.Now()
	if raw := c.FormValue("lastModified"); raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return NewBadRequestError("lastModified must be Unix milliseconds", err)
		}
		lastModified = time.UnixMilli(ms)
	}

	handles := make([]queue.FileHandle, 0, len(parts))
	for _, part := range parts {
		src, err := part.Open()
		if err != nil {
			return NewInternalError("failed to open uploaded file", err)
		}
		data, err := io.ReadAll(src)
		_ = src.Close()
		if err != nil {
			return NewInternalError("failed to read uploaded file", err)
		}

		mimeType := declaredType(part.Header.Get(echo.HeaderContentType))
		if mimeType == "" {
			mimeType = sniffType(part.Filename, data)
		}
		handles = append(handles, queue.BytesHandle(part.Filename, mimeType, data, lastModified))
	}

	ids := h.queue.Add(handles...)
	views := make([]queue.View, 0, len(ids))
	for _, id := range ids {
		if v, ok := h.queue.Get(id); ok {
			views = append(views, v)
		}
	}
	return c.JSON(http.StatusAccepted, enqueueResponse{IDs: ids, Files: views})
}

func (h *FilesHandler) HandleList(c echo.Context) error {
	return c.JSON(http.StatusOK, listResponse{Files: h.queue.List(), Counts: h.queue.Counts()})
}

func (h *FilesHandler) HandleGet(c echo.Context) error {
	id := c.Param("id")
	v, ok := h.queue.Get(id)
	if !ok {
		return NewNotFoundError("file", id)
	}
	return c.JSON(http.StatusOK, v)
}

// HandleGroups returns the original or redacted metadata bucketed into
// display categories, plus the derived location when there is one.
func (h *FilesHandler) HandleGroups(c echo.Context) error {
	id := c.Param("id")
	v, ok := h.queue.Get(id)
	if !ok {
		return NewNotFoundError("file", id)
	}

	view := c.QueryParam("view")
	if view == "" {
		view = ViewOriginal
	}

	var m metadata.Mapping
	switch view {
	case ViewOriginal:
		m = v.Metadata
	case ViewRedacted:
		m = metadata.FromStrings(v.RedactedMetadata)
	default:
		return NewValidationError("view")
	}
	if v.Status != queue.StatusDone {
		return NewConflictError("metadata is not available while the file is " + string(v.Status))
	}

	groups := group.Group(m)
	resp := groupsResponse{ID: v.ID, View: view, Categories: []categoryResponse{}}
	for _, cat := range groups.Categories() {
		resp.Categories = append(resp.Categories, categoryResponse{
			Name:    cat,
			Entries: metadata.StringifyAll(groups[cat]),
		})
	}
	if coord, ok := groups.Location(); ok {
		resp.Location = &locationResponse{Coordinate: coord, MapURL: group.MapURL(coord)}
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *FilesHandler) HandleClearAll(c echo.Context) error {
	return c.JSON(http.StatusOK, clearResponse{Removed: h.queue.ClearAll()})
}

func (h *FilesHandler) HandleClearCompleted(c echo.Context) error {
	return c.JSON(http.StatusOK, clearResponse{Removed: h.queue.ClearCompleted()})
}

// declaredType returns the part's media type without parameters, or "" when
// the client sent nothing more specific than octet-stream.
func declaredType(header string) string {
	if header == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil || mediaType == "application/octet-stream" {
		return ""
	}
	return strings.ToLower(mediaType)
}

func sniffType(name string, data []byte) string {
	if kind, err := mimeutil.DetectHeader(data); err == nil && kind != mimeutil.KindUnknown {
		return kind.MIME()
	}
	return mimeutil.ByExtension(name)
}
