package frontend

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"ml-jobs-platform/internal/api/router"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Handler serves the price page and the raw passthrough endpoint.
type Handler struct {
	fetcher *Fetcher
	logger  *slog.Logger
}

// NewHandler creates a frontend handler.
func NewHandler(fetcher *Fetcher, logger *slog.Logger) *Handler {
	return &Handler{fetcher: fetcher, logger: logger}
}

// SetupRouter builds the gin engine for the frontend service.
func SetupRouter(h *Handler, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(router.LoggerMiddleware(logger))
	r.SetHTMLTemplate(template.Must(template.ParseFS(templatesFS, "templates/*.html")))

	r.GET("/", h.Index)
	r.GET("/raw", h.Raw)

	return r
}

// Index renders the price page with today's percentage change attached.
func (h *Handler) Index(c *gin.Context) {
	data, err := h.fetcher.FetchItem(c.Request.Context())
	if err != nil {
		h.upstreamError(c, err)
		return
	}

	item, _ := data["item"].(map[string]any)
	if item == nil {
		item = map[string]any{}
	}

	currentPrice := priceAsInt(nested(item, "current", "price"))
	todayDelta := asString(nested(item, "today", "price"))
	item["today_percentage"] = FormatTodayPercentage(currentPrice, todayDelta)

	c.HTML(http.StatusOK, "index.html", gin.H{"item": item})
}

// Raw returns the upstream item-detail document untouched.
func (h *Handler) Raw(c *gin.Context) {
	data, err := h.fetcher.FetchItem(c.Request.Context())
	if err != nil {
		h.upstreamError(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

func (h *Handler) upstreamError(c *gin.Context, err error) {
	c.JSON(http.StatusBadGateway, gin.H{
		"error":  "failed_to_fetch_cowhide",
		"detail": err.Error(),
	})
}

func nested(m map[string]any, keys ...string) any {
	var v any = m
	for _, k := range keys {
		mm, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		v = mm[k]
	}
	return v
}

// priceAsInt tolerates the API's mixed price encodings: plain numbers and
// strings like "1,234".
func priceAsInt(v any) int {
	switch p := v.(type) {
	case float64:
		return int(p)
	case int:
		return p
	case string:
		n, err := strconv.Atoi(strings.ReplaceAll(strings.TrimSpace(p), ",", ""))
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.Itoa(int(s))
	case int:
		return strconv.Itoa(s)
	}
	return "0"
}
