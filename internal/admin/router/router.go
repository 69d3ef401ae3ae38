package router

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"lwlgate/internal/admin/api"
)

// SetupRouter 配置 Gin 路由
func SetupRouter() *gin.Engine {
	r := gin.Default()

	// 配置 CORS
	config := cors.DefaultConfig()
	config.AllowOrigins = []string{"*"} // 允许所有来源，生产环境应配置具体来源
	config.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	r.Use(cors.New(config))

	// 健康检查 (可选)
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	// API v1 分组
	apiV1 := r.Group("/api/v1")
	{
		// 同步解码路由
		apiV1.POST("/decode", api.DecodeHandler) // POST /api/v1/decode

		// 抓取存档相关路由
		captures := apiV1.Group("/captures")
		{
			captures.GET("", api.GetCaptures)                        // GET /api/v1/captures
			captures.POST("", api.CreateCapture)                     // POST /api/v1/captures
			captures.GET("/:captureId", api.GetCaptureByID)          // GET /api/v1/captures/:captureId
			captures.DELETE("/:captureId", api.DeleteCapture)        // DELETE /api/v1/captures/:captureId
			captures.GET("/:captureId/report", api.GetCaptureReport) // GET /api/v1/captures/:captureId/report
		}

		// 条目名称目录相关路由
		catalog := apiV1.Group("/catalog")
		{
			catalog.GET("", api.GetCatalog)               // GET /api/v1/catalog
			catalog.PUT("", api.UpdateCatalog)            // PUT /api/v1/catalog
			catalog.GET("/export", api.ExportCatalogYaml) // GET /api/v1/catalog/export
		}
	}

	return r
}
