package controllers

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"civichero-be/apperr"
	"civichero-be/middlewares"
	"civichero-be/models"
	"civichero-be/services"
	"civichero-be/session"
	"civichero-be/storage"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IssueWorkflow is the issue service as used by the HTTP layer.
type IssueWorkflow interface {
	Create(ctx context.Context, sess *session.Session, in services.NewIssueInput) (*models.Issue, error)
	ListForReporter(ctx context.Context, reporterID primitive.ObjectID) ([]models.Issue, error)
	ListAll(ctx context.Context, sort models.IssueSort) ([]models.Issue, error)
	Get(ctx context.Context, id primitive.ObjectID) (*models.Issue, error)
	Resolve(ctx context.Context, sess *session.Session, issueID primitive.ObjectID, solutionImageURL string, image *services.Upload) (*models.Issue, error)
}

type IssueController struct {
	issues IssueWorkflow
}

func NewIssueController(issues IssueWorkflow) *IssueController {
	return &IssueController{issues: issues}
}

type createIssueRequest struct {
	Title         string             `json:"title" form:"title"`
	Description   string             `json:"description" form:"description"`
	Severity      models.Severity    `json:"severity" form:"severity"`
	Location      string             `json:"location" form:"location"`
	Latitude      *float64           `json:"latitude" form:"latitude"`
	Longitude     *float64           `json:"longitude" form:"longitude"`
	LocationError string             `json:"locationError" form:"locationError"`
	Verified      bool               `json:"verified" form:"verified"`
	Status        models.IssueStatus `json:"status" form:"status"`
	ReporterID    string             `json:"reporterId" form:"reporterId"`
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/form-data")
}

// readUpload returns nil when the form has no file under field.
func readUpload(c *gin.Context, field string) (*services.Upload, error) {
	header, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, apperr.Validation("invalid " + field + " upload")
	}
	return openUpload(header)
}

func openUpload(header *multipart.FileHeader) (*services.Upload, error) {
	if header.Size > storage.MaxImageSize {
		return nil, apperr.Validation("uploaded file is too large")
	}
	f, err := header.Open()
	if err != nil {
		return nil, apperr.Validation("failed to read uploaded file")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, storage.MaxImageSize+1))
	if err != nil {
		return nil, apperr.Validation("failed to read uploaded file")
	}
	if len(data) > storage.MaxImageSize {
		return nil, apperr.Validation("uploaded file is too large")
	}
	return &services.Upload{Filename: header.Filename, Data: data}, nil
}

func parseIssueID(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return primitive.NilObjectID, false
	}
	return id, true
}

func requireSession(c *gin.Context) (*session.Session, bool) {
	sess, ok := middlewares.SessionFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
	}
	return sess, ok
}

// CreateIssue accepts either a multipart form with an optional "image" file
// or a JSON body without one.
func (ic *IssueController) CreateIssue(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}

	var input createIssueRequest
	var image *services.Upload
	if isMultipart(c) {
		if err := c.ShouldBind(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		upload, err := readUpload(c, "image")
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		image = upload
	} else if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Status and reporter are echoed to the service, which ignores them.
	reporterID, _ := primitive.ObjectIDFromHex(input.ReporterID)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	issue, err := ic.issues.Create(ctx, sess, services.NewIssueInput{
		Title:         input.Title,
		Description:   input.Description,
		Severity:      models.Severity(strings.ToLower(string(input.Severity))),
		Location:      input.Location,
		Latitude:      input.Latitude,
		Longitude:     input.Longitude,
		LocationError: input.LocationError,
		Verified:      input.Verified,
		Image:         image,
		Status:        input.Status,
		ReporterID:    reporterID,
	})
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusCreated, issue)
}

// GetMyIssues lists the caller's own reports, newest first.
func (ic *IssueController) GetMyIssues(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	issues, err := ic.issues.ListForReporter(ctx, sess.Profile.ID)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"issues": issues, "total": len(issues)})
}

// GetAllIssues lists every issue; ?sort=severity puts high severity first.
func (ic *IssueController) GetAllIssues(c *gin.Context) {
	sort := models.IssueSort(c.DefaultQuery("sort", string(models.SortRecent)))
	if sort != models.SortRecent && sort != models.SortSeverity {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sort must be recent or severity"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	issues, err := ic.issues.ListAll(ctx, sort)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"issues": issues, "total": len(issues), "sort": sort})
}

// GetIssueByID returns one issue. Citizens only see their own reports.
func (ic *IssueController) GetIssueByID(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	id, ok := parseIssueID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	issue, err := ic.issues.Get(ctx, id)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	if sess.Role() == models.Citizen && issue.ReporterID != sess.Profile.ID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Issue not found"})
		return
	}
	c.JSON(http.StatusOK, issue)
}

// ResolveIssue takes a multipart "solutionImage" file or a JSON body with a
// solutionImageUrl.
func (ic *IssueController) ResolveIssue(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	id, ok := parseIssueID(c)
	if !ok {
		return
	}

	var input struct {
		SolutionImageURL string `json:"solutionImageUrl" form:"solutionImageUrl"`
	}
	var image *services.Upload
	if isMultipart(c) {
		if err := c.ShouldBind(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		upload, err := readUpload(c, "solutionImage")
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		image = upload
	} else if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	issue, err := ic.issues.Resolve(ctx, sess, id, input.SolutionImageURL, image)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"issue":    issue,
		"xpPoints": sess.Profile.XPPoints,
		"message":  "Issue resolved",
	})
}

func parseLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil {
		return 0
	}
	return limit
}
