//nolint:tagliatelle
package pagepostgin

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pilab-dev/pagepost/log"
	"github.com/pilab-dev/pagepost/services"
)

const (
	msgNoPages          = "No pages found for this user."
	msgPostCreated      = "Post created successfully!"
	msgChoosePage       = "Authentication successful! Choose a page to post to."
	errFailedCreatePost = "Failed to create post"
)

// PublishFlow is implemented by *services.PublishService.
type PublishFlow interface {
	StartAuthorization(ctx context.Context) (string, error)
	CompleteAuthorization(ctx context.Context, req services.CallbackRequest) (*services.CallbackResult, error)
	PublishPost(ctx context.Context, req services.PublishRequest) (*services.PublishResult, error)
}

// LinkedInAPI serves the login and publish routes.
type LinkedInAPI struct {
	flow      PublishFlow
	uploadDir string
	maxUpload int64
	logger    log.Logger
}

// NewLinkedInAPI initializes the LinkedIn routes. uploadDir receives spooled
// uploads for the duration of one request; maxUpload caps the request body.
func NewLinkedInAPI(flow PublishFlow, uploadDir string, maxUpload int64, logger log.Logger) *LinkedInAPI {
	if uploadDir == "" {
		uploadDir = os.TempDir()
	}
	if logger == nil {
		logger = log.Nop()
	}
	registerFormTagNames()

	return &LinkedInAPI{
		flow:      flow,
		uploadDir: uploadDir,
		maxUpload: maxUpload,
		logger:    logger.With(log.Fields{"component": "http"}),
	}
}

// RegisterRoutes registers the LinkedIn routes.
func (a *LinkedInAPI) RegisterRoutes(e *gin.Engine) {
	e.GET("/", a.StartAuthHandler)
	e.GET("/linkedin/callback", a.CallbackHandler)
	e.POST("/linkedin/post", BodyLimitMiddleware(a.maxUpload), a.PublishHandler)
}

// upstreamContext detaches upstream calls from the client connection: a
// client that goes away does not abort calls already in flight.
func upstreamContext(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

// StartAuthHandler redirects the member to the LinkedIn consent screen.
func (a *LinkedInAPI) StartAuthHandler(c *gin.Context) {
	authURL, err := a.flow.StartAuthorization(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.String(http.StatusInternalServerError, "Failed to start authorization")
		return
	}

	c.Redirect(http.StatusFound, authURL)
}

type pageView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CallbackHandler completes the login. Errors are answered as plain text.
func (a *LinkedInAPI) CallbackHandler(c *gin.Context) {
	// Checked here as well so a request without a code never reaches the flow.
	code := c.Query("code")
	if code == "" && c.Query("error") == "" {
		c.String(http.StatusBadRequest, services.ErrMissingCode.Error())
		return
	}

	res, err := a.flow.CompleteAuthorization(upstreamContext(c), services.CallbackRequest{
		Code:             code,
		State:            c.Query("state"),
		Error:            c.Query("error"),
		ErrorDescription: c.Query("error_description"),
	})
	if err != nil {
		_ = c.Error(err)
		switch {
		case errors.Is(err, services.ErrMissingCode), errors.Is(err, services.ErrInvalidState):
			c.String(http.StatusBadRequest, err.Error())
		default:
			c.String(http.StatusInternalServerError, err.Error())
		}
		return
	}

	if len(res.Pages) == 0 {
		c.String(http.StatusOK, msgNoPages)
		return
	}

	if res.AutoPost != nil {
		c.JSON(http.StatusOK, gin.H{
			"message":      msgPostCreated,
			"userProfile":  res.Profile,
			"postResponse": res.AutoPost.Response,
		})
		return
	}

	pages := make([]pageView, 0, len(res.Pages))
	for _, p := range res.Pages {
		pages = append(pages, pageView{ID: p.ID, Name: p.Name})
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     msgChoosePage,
		"accessToken": res.AccessToken,
		"userProfile": res.Profile,
		"pages":       pages,
	})
}

type publishForm struct {
	AccessToken string                `form:"accessToken" binding:"required"`
	OrgID       string                `form:"orgId" binding:"required"`
	Text        string                `form:"text" binding:"required"`
	File        *multipart.FileHeader `form:"file"`
}

// PublishHandler publishes a post, uploading the optional file first. Errors
// are answered as JSON {error, details}.
func (a *LinkedInAPI) PublishHandler(c *gin.Context) {
	var form publishForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, bindingErrorResponse(err))
		return
	}

	req := services.PublishRequest{
		AccessToken: form.AccessToken,
		OrgID:       form.OrgID,
		Text:        form.Text,
	}

	if form.File != nil {
		path, err := a.spool(c, form.File)
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": errFailedCreatePost, "details": "could not store upload"})
			return
		}
		defer a.removeSpooled(c.Request.Context(), path)

		req.ImagePath = path
		req.ImageName = filepath.Base(form.File.Filename)
	}

	res, err := a.flow.PublishPost(upstreamContext(c), req)
	if err != nil {
		_ = c.Error(err)
		var missing *services.MissingFieldsError
		switch {
		case errors.As(err, &missing):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields", "details": missing.Fields})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": errFailedCreatePost, "details": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      msgPostCreated,
		"postResponse": res.Response,
	})
}

// spool writes the upload under a random name in the upload directory.
func (a *LinkedInAPI) spool(c *gin.Context, fh *multipart.FileHeader) (string, error) {
	dst := filepath.Join(a.uploadDir, "pagepost-"+uuid.NewString()+filepath.Ext(fh.Filename))
	if err := c.SaveUploadedFile(fh, dst); err != nil {
		return "", err
	}

	return dst, nil
}

func (a *LinkedInAPI) removeSpooled(ctx context.Context, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		a.logger.Warn(ctx, "failed to remove spooled upload", log.Fields{"path": path, "error": err.Error()})
	}
}

// HealthHandler reports liveness.
func HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
