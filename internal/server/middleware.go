package server

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"

	"todoapp/internal/domain/errors"

	"github.com/gin-gonic/gin"
)

const (
	ctxAccountID = "account_id"
	ctxToken     = "auth_token"

	bearerPrefix = "Bearer "
)

// authRequired извлекает bearer-токен из заголовка Authorization, проверяет
// его и кладёт идентификатор аккаунта в контекст запроса. Обработчики задач
// берут владельца только отсюда.
func (api *TaskAPI) authRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.GetHeader("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errors.ErrUnauthorized.Error()})
			return
		}

		raw := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
		accountID, err := api.tokens.Verify(raw)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		ctx.Set(ctxAccountID, accountID)
		ctx.Set(ctxToken, raw)
		ctx.Next()
	}
}

// CORSAllowOrigins пропускает браузерные запросы только с origin из списка
// конфигурации. Preflight-запросы завершаются сразу.
func CORSAllowOrigins(origins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(origins))
	for _, origin := range origins {
		allowed[origin] = true
	}

	return func(ctx *gin.Context) {
		origin := ctx.GetHeader("Origin")
		if origin != "" && allowed[origin] {
			ctx.Header("Access-Control-Allow-Origin", origin)
			ctx.Header("Vary", "Origin")
			ctx.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			ctx.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
			ctx.Header("Access-Control-Max-Age", "86400")
		}

		if ctx.Request.Method == http.MethodOptions {
			ctx.AbortWithStatus(http.StatusNoContent)
			return
		}

		ctx.Next()
	}
}

type gzipBody struct {
	reader *gzip.Reader
	body   io.ReadCloser
}

func (b *gzipBody) Read(p []byte) (int, error) { return b.reader.Read(p) }

func (b *gzipBody) Close() error {
	if err := b.reader.Close(); err != nil {
		_ = b.body.Close()
		return err
	}
	return b.body.Close()
}

func GzipRequestDecompress() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		encoding := strings.ToLower(ctx.GetHeader("Content-Encoding"))
		if strings.Contains(encoding, "gzip") {
			gr, err := gzip.NewReader(ctx.Request.Body)
			if err != nil {
				ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": errors.ErrInvalidGzipRequest.Error()})
				return
			}

			ctx.Request.Body = &gzipBody{reader: gr, body: ctx.Request.Body}
			ctx.Request.Header.Del("Content-Encoding")
			ctx.Request.Header.Del("Content-Length")
		}
		ctx.Next()
	}
}

type gzipResponseWriter struct {
	gin.ResponseWriter
	gw    *gzip.Writer
	wrote bool
}

// Заголовок Content-Encoding выставляется при первой записи тела,
// чтобы ответы без тела (204) не получали пустой gzip-каркас.
func (w *gzipResponseWriter) Write(data []byte) (int, error) {
	if !w.wrote {
		w.Header().Del("Content-Length")
		w.Header().Set("Content-Encoding", "gzip")
		w.wrote = true
	}
	return w.gw.Write(data)
}

func (w *gzipResponseWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

func GzipResponseCompress() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.Request.Method == http.MethodHead {
			ctx.Next()
			return
		}

		acceptEnc := strings.ToLower(ctx.GetHeader("Accept-Encoding"))
		if !strings.Contains(acceptEnc, "gzip") {
			ctx.Next()
			return
		}

		gz := gzip.NewWriter(ctx.Writer)
		gw := &gzipResponseWriter{ResponseWriter: ctx.Writer, gw: gz}
		ctx.Writer = gw
		ctx.Header("Vary", "Accept-Encoding")

		ctx.Next()

		if gw.wrote {
			if err := gz.Close(); err != nil {
				_ = ctx.Error(err)
			}
		}
	}
}
