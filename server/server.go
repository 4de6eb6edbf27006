package server

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"qrwatermark"
	"qrwatermark/config"
	"qrwatermark/converter"
	"qrwatermark/core"
	"qrwatermark/logger"
	"qrwatermark/store"

	"github.com/gin-gonic/gin"
	"gonum.org/v1/gonum/mat"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type Verification struct {
	Score          float64 `json:"score"`
	Classification string  `json:"classification"`
}

type ExtractResponse struct {
	Variant      string        `json:"variant"`
	Rows         int           `json:"rows"`
	Cols         int           `json:"cols"`
	EstimatePNG  string        `json:"estimate_png"`
	Vector       []float64     `json:"vector,omitempty"`
	Warning      string        `json:"warning,omitempty"`
	Verification *Verification `json:"verification,omitempty"`
}

type handler struct {
	wm         *qrwatermark.Watermarker
	log        *logger.Logger
	defaultKey string
}

// NewHandler 注册路由
func NewHandler(wm *qrwatermark.Watermarker, cfg *config.Config, log *logger.Logger) http.Handler {
	h := &handler{wm: wm, log: log, defaultKey: cfg.Reference.Key}

	r := gin.New()
	r.Use(gin.Recovery(), h.requestLogger(), requestSizeLimiter(cfg.Server.MaxBodyBytes))

	r.GET("/health", healthCheck)
	v1 := r.Group("/v1")
	v1.POST("/qr", h.qr)
	v1.POST("/embed", h.embed)
	v1.POST("/extract", h.extract)
	return r
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handler) qr(c *gin.Context) {
	content := c.PostForm("content")
	if content == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: "content is required"})
		return
	}
	cover, err := h.wm.NewQRCover(content)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.writePNG(c, cover)
}

func (h *handler) embed(c *gin.Context) {
	variant, err := core.ParseEmbedVariant(c.DefaultPostForm("variant", "hybrid"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	var cover *mat.Dense
	if content := c.PostForm("content"); content != "" {
		cover, err = h.wm.NewQRCover(content)
	} else {
		cover, err = formMatrix(c, "cover")
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	watermark, err := formMatrix(c, "watermark")
	if err != nil {
		h.fail(c, err)
		return
	}

	key := c.DefaultPostForm("key", h.defaultKey)
	out, err := h.wm.Embed(c.Request.Context(), variant, key, cover, watermark)
	if err != nil {
		h.fail(c, err)
		return
	}
	if variant == core.EmbedReference {
		c.Header("X-Reference-Key", key)
	}
	h.writePNG(c, out)
}

func (h *handler) extract(c *gin.Context) {
	variant, err := core.ParseExtractVariant(c.DefaultPostForm("variant", "cover"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	marked, err := formMatrix(c, "image")
	if err != nil {
		h.fail(c, err)
		return
	}
	var original *mat.Dense
	if _, err := c.FormFile("original"); err == nil {
		if original, err = formMatrix(c, "original"); err != nil {
			h.fail(c, err)
			return
		}
	}

	est, err := h.wm.Extract(c.Request.Context(), variant, c.DefaultPostForm("key", h.defaultKey), marked, original)
	if err != nil {
		h.fail(c, err)
		return
	}

	var buf bytes.Buffer
	if err := converter.Encode(&buf, est.Matrix, "png"); err != nil {
		h.fail(c, err)
		return
	}
	rows, cols := est.Matrix.Dims()
	resp := ExtractResponse{
		Variant:     variant.String(),
		Rows:        rows,
		Cols:        cols,
		EstimatePNG: base64.StdEncoding.EncodeToString(buf.Bytes()),
		Vector:      est.Vector,
	}
	if est.Warning != nil {
		resp.Warning = est.Warning.Error()
	}

	// 提供了参考水印时顺便验证
	if _, err := c.FormFile("watermark"); err == nil {
		reference, err := formMatrix(c, "watermark")
		if err != nil {
			h.fail(c, err)
			return
		}
		res, err := h.wm.Verify(reference, est.Matrix)
		if err != nil {
			h.fail(c, err)
			return
		}
		resp.Verification = &Verification{Score: res.Score, Classification: res.Classification.String()}
	}

	c.JSON(http.StatusOK, resp)
}

func formMatrix(c *gin.Context, field string) (*mat.Dense, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, badRequest{fmt.Errorf("%s: %w", field, err)}
	}
	f, err := fh.Open()
	if err != nil {
		return nil, badRequest{fmt.Errorf("%s: %w", field, err)}
	}
	defer f.Close()

	m, err := converter.Decode(f)
	if err != nil {
		return nil, badRequest{fmt.Errorf("%s: %w", field, err)}
	}
	return m, nil
}

type badRequest struct{ error }

func (b badRequest) Unwrap() error { return b.error }

func (h *handler) writePNG(c *gin.Context, m *mat.Dense) {
	var buf bytes.Buffer
	if err := converter.Encode(&buf, m, "png"); err != nil {
		h.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

func (h *handler) fail(c *gin.Context, err error) {
	status, kind := classify(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", err, map[string]interface{}{"path": c.Request.URL.Path})
	}
	c.JSON(status, ErrorResponse{Error: kind, Message: err.Error()})
}

// classify 错误 -> HTTP 状态码
func classify(err error) (int, string) {
	var br badRequest
	switch {
	case errors.As(err, &br), errors.Is(err, store.ErrInvalidKey):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, core.ErrMissingReference):
		return http.StatusNotFound, string(core.KindMissingReference)
	case errors.Is(err, core.ErrInputShape):
		return http.StatusBadRequest, string(core.KindInputShape)
	case errors.Is(err, core.ErrNumericDomain):
		return http.StatusBadRequest, string(core.KindNumericDomain)
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (h *handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.log.Info("request", nil, map[string]interface{}{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"ip":       c.ClientIP(),
			"duration": time.Since(start),
		})
	}
}

func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
