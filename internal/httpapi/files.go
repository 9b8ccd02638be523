package httpapi

import (
	"errors"
	"mime"
	"net/http"
	"strconv"

	"github.com/dmitrymomot/filevault/internal/permission"
	"github.com/dmitrymomot/filevault/internal/registry"
	"github.com/dmitrymomot/filevault/internal/token"
)

const (
	uploadField = "file"

	// multipartOverhead covers boundaries and part headers on top of the
	// file itself.
	multipartOverhead int64 = 1 << 20
	multipartMemory   int64 = 32 << 20
)

// FilesHandler serves the file catalog and sharing.
type FilesHandler struct {
	files     *registry.Registry
	tokens    *token.Authority
	maxUpload int64
}

// NewFilesHandler creates the file routes. maxUpload bounds a single
// upload in bytes; zero selects registry.DefaultMaxUploadBytes.
func NewFilesHandler(files *registry.Registry, tokens *token.Authority, maxUpload int64) *FilesHandler {
	if maxUpload <= 0 {
		maxUpload = registry.DefaultMaxUploadBytes
	}
	return &FilesHandler{files: files, tokens: tokens, maxUpload: maxUpload}
}

// Routes mounts /api/files behind bearer authentication.
func (h *FilesHandler) Routes(r Router) {
	r.Route("/api/files", func(r Router) {
		r.Use(Authenticate(h.tokens))

		r.GET("/", h.index)
		r.POST("/", h.upload)
		r.GET("/{id}", h.show)
		r.PATCH("/{id}", h.update)
		r.DELETE("/{id}", h.delete)
		r.GET("/{id}/download", h.download)
		r.GET("/{id}/share", h.grants)
		r.POST("/{id}/share", h.share)
		r.DELETE("/{id}/share/{userId}", h.unshare)
	})
}

func (h *FilesHandler) index(c Context) error {
	actor, err := CurrentActor(c)
	if err != nil {
		return err
	}

	listing, err := h.files.List(c, actor)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, listing)
}

// upload accepts multipart/form-data with the content in the "file" part
// and an optional "name" field overriding the client file name.
func (h *FilesHandler) upload(c Context) error {
	actor, err := CurrentActor(c)
	if err != nil {
		return err
	}

	req := c.Request()
	req.Body = http.MaxBytesReader(c.Response(), req.Body, h.maxUpload+multipartOverhead)
	if err := req.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytes *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytes):
			return err
		case errors.Is(err, http.ErrNotMultipart):
			return ErrUnsupportedMedia("request body must be multipart/form-data")
		default:
			return ErrBadRequest("malformed multipart body", WithError(err))
		}
	}
	defer func() { _ = req.MultipartForm.RemoveAll() }()

	file, header, err := req.FormFile(uploadField)
	if err != nil {
		return ErrUnprocessable("the file field is required", WithError(err))
	}
	defer file.Close()

	name := req.FormValue("name")
	if name == "" {
		name = header.Filename
	}

	f, err := h.files.Upload(c, actor, name, file, header.Size)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, f)
}

func (h *FilesHandler) show(c Context) error {
	actor, err := CurrentActor(c)
	if err != nil {
		return err
	}

	f, err := h.files.Inspect(c, actor, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, f)
}

func (h *FilesHandler) download(c Context) error {
	actor, err := CurrentActor(c)
	if err != nil {
		return err
	}

	f, body, err := h.files.Download(c, actor, c.Param("id"))
	if err != nil {
		return err
	}
	defer body.Close()

	c.SetHeader("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": f.Name}))
	c.SetHeader("Content-Length", strconv.FormatInt(f.Size, 10))
	c.SetHeader("X-Content-Type-Options", "nosniff")
	return c.Stream(http.StatusOK, f.ContentType, body)
}

type updateFileRequest struct {
	Name *string `json:"name"`
}

func (h *FilesHandler) update(c Context) error {
	actor, err := CurrentActor(c)
	if err != nil {
		return err
	}

	var req updateFileRequest
	if err := c.BindJSON(&req); err != nil {
		return err
	}

	f, err := h.files.Update(c, actor, c.Param("id"), registry.Patch{Name: req.Name})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, f)
}

func (h *FilesHandler) delete(c Context) error {
	actor, err := CurrentActor(c)
	if err != nil {
		return err
	}

	if err := h.files.Delete(c, actor, c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "File deleted successfully"})
}

func (h *FilesHandler) grants(c Context) error {
	actor, err := CurrentActor(c)
	if err != nil {
		return err
	}

	grants, err := h.files.Grants(c, actor, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"grants": grants})
}

type shareRequest struct {
	UserID      string   `json:"user_id"`
	Permissions []string `json:"permissions"`
}

func (h *FilesHandler) share(c Context) error {
	actor, err := CurrentActor(c)
	if err != nil {
		return err
	}

	var req shareRequest
	if err := c.BindJSON(&req); err != nil {
		return err
	}
	if req.UserID == "" {
		return ErrUnprocessable("user_id is required")
	}
	if len(req.Permissions) == 0 {
		return ErrUnprocessable("permissions must list at least one of read, write, delete")
	}

	caps, err := permission.ParseCapabilities(req.Permissions)
	if err != nil {
		return err
	}
	if err := h.files.Share(c, actor, c.Param("id"), req.UserID, caps); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "File shared successfully"})
}

func (h *FilesHandler) unshare(c Context) error {
	actor, err := CurrentActor(c)
	if err != nil {
		return err
	}

	if err := h.files.Unshare(c, actor, c.Param("id"), c.Param("userId")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "File access revoked successfully"})
}
