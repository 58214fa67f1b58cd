package frontend

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/go-playground/validator"
	"github.com/jo-hoe/reviewdesk/internal/common"
	"github.com/jo-hoe/reviewdesk/internal/core"
	"github.com/jo-hoe/reviewdesk/internal/imagesource"
	"github.com/jo-hoe/reviewdesk/internal/review"
	"github.com/labstack/echo/v4"
)

const (
	MainPageName   = "index.html"
	reviewerCookie = "reviewer"
	mimePNG        = "image/png"
	mimeCSV        = "text/csv; charset=utf-8"

	modeReview   = "review"
	modeEdit     = "edit"
	modeDownload = "download"

	msgEnterReviewer = "Please enter your name or ID to begin."
)

type FrontendService struct {
	coreService *core.CoreService
	config      *core.ServiceConfig
}

func NewFrontendService(config *core.ServiceConfig, coreService *core.CoreService) *FrontendService {
	return &FrontendService{
		coreService: coreService,
		config:      config,
	}
}

// NewValidator returns the echo validator for the review forms.
func NewValidator() (*common.GenericEchoValidator, error) {
	return common.NewGenericEchoValidator(map[string]validator.Func{
		"condition": func(fl validator.FieldLevel) bool {
			return review.Condition(fl.Field().String()).Valid()
		},
	})
}

type reviewForm struct {
	Image     string `form:"image" validate:"required"`
	Condition string `form:"condition" validate:"required,condition"`
	Note      string `form:"note"`
	Feedback  string `form:"feedback"`
}

type notice struct {
	Kind  string
	Text  string
	Items []string
}

type modeLink struct {
	Mode   string
	Label  string
	Active bool
}

type indexPage struct {
	Reviewer   string
	Mode       string
	Modes      []modeLink
	Notices    []notice
	Session    *core.Session
	Conditions []review.Condition

	ImageName  string
	Timestamp  string
	Position   int
	ShowForm   bool
	Form       reviewForm
	EditImages []string

	Header []string
	Rows   [][]string
}

func (page *indexPage) add(kind, text string, items ...string) {
	page.Notices = append(page.Notices, notice{Kind: kind, Text: text, Items: items})
}

// rootRedirectHandler redirects root path to index.html
func (service *FrontendService) rootRedirectHandler(ctx echo.Context) error {
	return ctx.Redirect(http.StatusMovedPermanently, "/"+MainPageName)
}

func (service *FrontendService) SetRoutes(e *echo.Echo) {
	e.Renderer = newTemplate()

	e.GET("/", service.rootRedirectHandler) // Redirect root to index.html
	e.GET("/"+MainPageName, service.indexHandler)
	e.GET("/probe", service.probeHandler)

	e.POST("/reviewer", service.setReviewerHandler)
	e.POST("/logout", service.logoutHandler)
	e.POST("/review", service.submitReviewHandler)
	e.POST("/review/update", service.updateReviewHandler)

	e.GET("/download", service.downloadHandler)
	e.GET("/image/:name", service.previewHandler)

	// Favicon (SVG) route
	e.GET("/icon.svg", service.iconHandler)
}

func (service *FrontendService) indexHandler(ctx echo.Context) error {
	service.setNoCache(ctx)

	reviewer, ok := reviewerFromCookie(ctx)
	if !ok {
		page := &indexPage{}
		page.add("warning", msgEnterReviewer)
		return ctx.Render(http.StatusOK, MainPageName, page)
	}

	session, err := service.coreService.Session(reviewer)
	if errors.Is(err, review.ErrInvalidReviewer) {
		clearReviewerCookie(ctx)
		page := &indexPage{}
		page.add("warning", msgEnterReviewer)
		return ctx.Render(http.StatusOK, MainPageName, page)
	}
	if err != nil {
		slog.Error("indexHandler: failed to load session",
			"status", http.StatusInternalServerError, "reviewer", reviewer, "error", err)
		return ctx.String(http.StatusInternalServerError, "Failed to load reviews")
	}

	page := &indexPage{
		Reviewer:   session.Reviewer,
		Mode:       parseMode(ctx.QueryParam("mode")),
		Session:    session,
		Conditions: review.Conditions,
		Timestamp:  fmt.Sprintf("%d", time.Now().UnixNano()),
	}
	page.Modes = []modeLink{
		{Mode: modeReview, Label: "Review New", Active: page.Mode == modeReview},
		{Mode: modeEdit, Label: "Edit Reviews", Active: page.Mode == modeEdit},
		{Mode: modeDownload, Label: "Download CSV", Active: page.Mode == modeDownload},
	}

	if session.LoadError != nil {
		page.add("warning", "Could not read your previous file. Starting fresh.", "Error: "+session.LoadError.Error())
	}
	if len(session.MissingImages) > 0 {
		page.add("warning", fmt.Sprintf("These reviewed images do NOT exist in your %s/ folder:", service.config.ImageFolder),
			session.MissingImages...)
	}

	switch page.Mode {
	case modeEdit:
		service.fillEditPage(ctx, page)
	case modeDownload:
		service.fillDownloadPage(page)
	default:
		service.fillReviewPage(ctx, page)
	}
	return ctx.Render(http.StatusOK, MainPageName, page)
}

func (service *FrontendService) fillReviewPage(ctx echo.Context, page *indexPage) {
	if saved := ctx.QueryParam("saved"); saved != "" {
		page.add("success", fmt.Sprintf("Review for %s saved!", saved))
	}

	current, ok := page.Session.Current()
	if !ok {
		page.add("success", "All images reviewed! You can switch to Edit Reviews or Download CSV.")
		return
	}
	page.ImageName = current.Name
	page.Position = page.Session.Completed() + 1
	if !service.canPreview(current.Name) {
		page.add("error", "Cannot open image: "+current.Name)
		return
	}
	page.ShowForm = true
	page.Form = reviewForm{Image: current.Name, Condition: string(review.ConditionBacterial)}
}

func (service *FrontendService) fillEditPage(ctx echo.Context, page *indexPage) {
	if updated := ctx.QueryParam("updated"); updated != "" {
		page.add("success", fmt.Sprintf("Updated review for %s!", updated))
	}

	page.EditImages = uniqueNames(page.Session.Reviewed.ImageNames())
	if len(page.EditImages) == 0 {
		page.add("info", "No reviews found yet. Please review some images first.")
		return
	}

	selected := ctx.QueryParam("image")
	if !containsName(page.EditImages, selected) {
		selected = page.EditImages[0]
	}
	page.ImageName = selected

	if !page.Session.HasImage(selected) {
		page.add("error", "Image not found: "+selected)
		return
	}
	if !service.canPreview(selected) {
		page.add("error", "Cannot open image: "+selected)
		return
	}

	rec, _ := page.Session.Reviewed.Find(selected)
	condition := rec.Condition
	if !condition.Valid() {
		condition = review.ConditionBacterial
	}
	page.ShowForm = true
	page.Form = reviewForm{
		Image:     selected,
		Condition: string(condition),
		Note:      rec.DiagnosticNote,
		Feedback:  rec.Feedback,
	}
}

func (service *FrontendService) fillDownloadPage(page *indexPage) {
	table, err := service.coreService.ExportTable(page.Reviewer)
	if errors.Is(err, core.ErrNoReviews) {
		page.add("info", "No reviews available yet.")
		return
	}
	if err != nil {
		slog.Error("indexHandler: failed to read reviewer file", "reviewer", page.Reviewer, "error", err)
		page.add("error", "Could not read your review file.", err.Error())
		return
	}
	page.Header = table.Header()
	page.Rows = make([][]string, table.Len())
	for i := range page.Rows {
		page.Rows[i] = table.Row(i)
	}
}

// canPreview reports whether the image decodes; the rendered preview is
// cached so the following /image request is cheap.
func (service *FrontendService) canPreview(name string) bool {
	if _, err := service.coreService.Preview(name); err != nil {
		slog.Warn("indexHandler: cannot open image", "image", name, "error", err)
		return false
	}
	return true
}

func (service *FrontendService) setReviewerHandler(ctx echo.Context) error {
	reviewer, err := service.coreService.NormalizeReviewerID(ctx.FormValue("reviewer"))
	if err != nil {
		slog.Warn("setReviewerHandler: invalid reviewer id",
			"status", http.StatusBadRequest, "error", err)
		page := &indexPage{}
		page.add("warning", msgEnterReviewer)
		return ctx.Render(http.StatusBadRequest, MainPageName, page)
	}

	ctx.SetCookie(&http.Cookie{
		Name:     reviewerCookie,
		Value:    url.QueryEscape(reviewer),
		Path:     "/",
		MaxAge:   int((30 * 24 * time.Hour).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return ctx.Redirect(http.StatusSeeOther, "/"+MainPageName)
}

func (service *FrontendService) logoutHandler(ctx echo.Context) error {
	clearReviewerCookie(ctx)
	return ctx.Redirect(http.StatusSeeOther, "/"+MainPageName)
}

func (service *FrontendService) submitReviewHandler(ctx echo.Context) error {
	reviewer, input, err := service.bindReview(ctx)
	if err != nil {
		return err
	}

	rec, err := service.coreService.Submit(reviewer, input)
	if err != nil {
		return service.reviewError(ctx, "submitReviewHandler", input.ImageName, err)
	}

	target := fmt.Sprintf("/%s?mode=%s&saved=%s", MainPageName, modeReview, url.QueryEscape(rec.ImageName))
	return ctx.Redirect(http.StatusSeeOther, target)
}

func (service *FrontendService) updateReviewHandler(ctx echo.Context) error {
	reviewer, input, err := service.bindReview(ctx)
	if err != nil {
		return err
	}

	rec, err := service.coreService.Update(reviewer, input)
	if err != nil {
		return service.reviewError(ctx, "updateReviewHandler", input.ImageName, err)
	}

	escaped := url.QueryEscape(rec.ImageName)
	target := fmt.Sprintf("/%s?mode=%s&image=%s&updated=%s", MainPageName, modeEdit, escaped, escaped)
	return ctx.Redirect(http.StatusSeeOther, target)
}

// bindReview reads the reviewer cookie and the review form. A non-nil error
// has already been written to the response.
func (service *FrontendService) bindReview(ctx echo.Context) (string, core.ReviewInput, error) {
	reviewer, ok := reviewerFromCookie(ctx)
	if !ok {
		slog.Warn("bindReview: missing reviewer", "status", http.StatusBadRequest, "route", ctx.Path())
		return "", core.ReviewInput{}, ctx.String(http.StatusBadRequest, msgEnterReviewer)
	}

	var form reviewForm
	if err := ctx.Bind(&form); err != nil {
		slog.Warn("bindReview: failed to bind form", "status", http.StatusBadRequest, "error", err)
		return "", core.ReviewInput{}, ctx.String(http.StatusBadRequest, "Invalid review form")
	}
	if err := ctx.Validate(&form); err != nil {
		slog.Warn("bindReview: invalid review form", "status", http.StatusBadRequest, "error", err)
		return "", core.ReviewInput{}, ctx.String(http.StatusBadRequest, "Invalid review form")
	}

	return reviewer, core.ReviewInput{
		ImageName:      form.Image,
		Condition:      form.Condition,
		DiagnosticNote: form.Note,
		Feedback:       form.Feedback,
	}, nil
}

func (service *FrontendService) reviewError(ctx echo.Context, handler, image string, err error) error {
	status, message := http.StatusInternalServerError, "Failed to save review"
	switch {
	case errors.Is(err, core.ErrAlreadyReviewed):
		status, message = http.StatusConflict, fmt.Sprintf("Review for %s already exists. Use Edit Reviews to change it.", image)
	case errors.Is(err, review.ErrInvalidReviewer), errors.Is(err, review.ErrUnknownCondition):
		status, message = http.StatusBadRequest, "Invalid review form"
	case errors.Is(err, imagesource.ErrImageNotFound), errors.Is(err, imagesource.ErrInvalidImageName):
		status, message = http.StatusNotFound, "Image not found: "+image
	case errors.Is(err, review.ErrReviewNotFound):
		status, message = http.StatusNotFound, "No review found for "+image
	}

	if status == http.StatusInternalServerError {
		slog.Error(handler+": failed to save review", "status", status, "image", image, "error", err)
	} else {
		slog.Warn(handler+": review rejected", "status", status, "image", image, "error", err)
	}
	return ctx.String(status, message)
}

func (service *FrontendService) downloadHandler(ctx echo.Context) error {
	reviewer, ok := reviewerFromCookie(ctx)
	if !ok {
		return ctx.String(http.StatusBadRequest, msgEnterReviewer)
	}

	var buf bytes.Buffer
	err := service.coreService.Export(reviewer, &buf)
	if errors.Is(err, core.ErrNoReviews) {
		return ctx.String(http.StatusNotFound, "No reviews available yet.")
	}
	if errors.Is(err, review.ErrInvalidReviewer) {
		return ctx.String(http.StatusBadRequest, msgEnterReviewer)
	}
	if err != nil {
		slog.Error("downloadHandler: failed to export reviews",
			"status", http.StatusInternalServerError, "reviewer", reviewer, "error", err)
		return ctx.String(http.StatusInternalServerError, "Failed to export reviews")
	}

	service.setNoCache(ctx)
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": reviewer + "_reviews.csv"})
	ctx.Response().Header().Set(echo.HeaderContentDisposition, disposition)
	return ctx.Blob(http.StatusOK, mimeCSV, buf.Bytes())
}

func (service *FrontendService) previewHandler(ctx echo.Context) error {
	name, err := imageNameParam(ctx)
	if err != nil || name == "" {
		slog.Warn("previewHandler: invalid image name",
			"status", http.StatusBadRequest, "route", "/image/:name", "error", err)
		return ctx.String(http.StatusBadRequest, "Invalid image name")
	}

	preview, err := service.coreService.Preview(name)
	if errors.Is(err, imagesource.ErrImageNotFound) || errors.Is(err, imagesource.ErrInvalidImageName) {
		slog.Warn("previewHandler: image not available",
			"status", http.StatusNotFound, "image", name, "error", err)
		return ctx.String(http.StatusNotFound, "Image not found: "+name)
	}
	if err != nil {
		slog.Error("previewHandler: cannot open image",
			"status", http.StatusInternalServerError, "image", name, "error", err)
		return ctx.String(http.StatusInternalServerError, "Cannot open image: "+name)
	}

	// Prevent caching
	service.setNoCache(ctx)

	return ctx.Blob(http.StatusOK, mimePNG, preview)
}

func (service *FrontendService) probeHandler(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "ok")
}

func (service *FrontendService) iconHandler(ctx echo.Context) error {
	data, err := assetsFS.ReadFile("views/icon.svg")
	if err != nil {
		slog.Error("iconHandler: failed to read icon.svg", "status", http.StatusInternalServerError, "error", err)
		return ctx.String(http.StatusInternalServerError, "Failed to load icon")
	}
	// Cache for 7 days
	ctx.Response().Header().Set("Cache-Control", "public, max-age=604800, immutable")
	return ctx.Blob(http.StatusOK, "image/svg+xml", data)
}

func (service *FrontendService) setNoCache(ctx echo.Context) {
	ctx.Response().Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	ctx.Response().Header().Set("Pragma", "no-cache")
	ctx.Response().Header().Set("Expires", "0")
}

// imageNameParam returns the decoded :name parameter. Echo routes on the
// already decoded URL.Path unless the request carries a distinct RawPath, in
// which case the parameter is still escaped.
func imageNameParam(ctx echo.Context) (string, error) {
	name := ctx.Param("name")
	if ctx.Request().URL.RawPath == "" {
		return name, nil
	}
	return url.PathUnescape(name)
}

func reviewerFromCookie(ctx echo.Context) (string, bool) {
	cookie, err := ctx.Cookie(reviewerCookie)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	reviewer, err := url.QueryUnescape(cookie.Value)
	if err != nil || reviewer == "" {
		return "", false
	}
	return reviewer, true
}

func clearReviewerCookie(ctx echo.Context) {
	ctx.SetCookie(&http.Cookie{
		Name:     reviewerCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func parseMode(mode string) string {
	switch mode {
	case modeEdit, modeDownload:
		return mode
	default:
		return modeReview
	}
}

// uniqueNames keeps the first occurrence of every name.
func uniqueNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
