package web

import (
	"embed"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
)

// フロントのビルド出力を埋め込む。public/ を差し替えてからビルドすること

//go:embed public
var embedded embed.FS

// Assets は埋め込み済みのフロントエンド資産を返す。
func Assets() fs.FS {
	sub, err := fs.Sub(embedded, "public")
	if err != nil {
		panic(err)
	}
	return sub
}

// SPAFallback は未定義ルートで静的ファイルを返し、無ければ index.html にフォールバックする。
// apiPrefix 配下はフォールバックの対象外（JSON の 404 を返す）。
func SPAFallback(assets fs.FS, apiPrefix string) gin.HandlerFunc {
	fileFS := http.FS(assets)

	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, apiPrefix+"/") {
			c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "NOT_FOUND", "message": "route not found"}})
			return
		}

		reqPath := strings.TrimPrefix(path.Clean("/"+c.Request.URL.Path), "/")
		if reqPath == "" {
			reqPath = "index.html"
		}

		// 実ファイルがあるならそれを返す
		if serveFile(c, fileFS, reqPath) {
			return
		}
		if serveFile(c, fileFS, "index.html") {
			return
		}
		c.Status(http.StatusNotFound)
	}
}

func serveFile(c *gin.Context, fileFS http.FileSystem, name string) bool {
	f, err := fileFS.Open(name)
	if err != nil {
		return false
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		c.Status(http.StatusInternalServerError)
		return true
	}
	if info.IsDir() {
		return false
	}

	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		c.Header("Content-Type", ct)
	}
	// index.html 以外はキャッシュ（SPAの基本運用）
	if !strings.HasSuffix(name, "index.html") {
		c.Header("Cache-Control", "public, max-age=86400, immutable")
	}
	http.ServeContent(c.Writer, c.Request, name, info.ModTime(), f)
	return true
}
