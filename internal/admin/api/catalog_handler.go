package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"lwlgate/internal/admin/db"
	"lwlgate/internal/admin/model"
	"lwlgate/internal/decode"
)

// --- Catalog Handlers ---

// GetCatalog 获取条目名称目录，尚未建立时返回空目录
func GetCatalog(c *gin.Context) {
	catalog, err := db.GetCatalog()
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "获取目录失败: "+err.Error())
		return
	}
	if catalog == nil {
		catalog = &model.CatalogDocument{
			Name: "default",
			IDs:  map[string]string{},
		}
	}
	c.JSON(http.StatusOK, catalog)
}

// UpdateCatalogRequest 目录更新请求体，整体替换
type UpdateCatalogRequest struct {
	IDs map[string]string `json:"ids" binding:"required"`
}

// UpdateCatalog 整体替换条目名称目录
func UpdateCatalog(c *gin.Context) {
	var request UpdateCatalogRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		errorResponse(c, http.StatusBadRequest, "无效的请求数据: "+err.Error())
		return
	}

	// 键必须是 0..255 的十进制条目 ID
	for key := range request.IDs {
		if _, err := strconv.ParseUint(key, 10, 8); err != nil {
			errorResponse(c, http.StatusBadRequest, fmt.Sprintf("无效的条目 ID %q: 必须是 0..255 的十进制数", key))
			return
		}
	}

	updated, err := db.UpsertCatalog(request.IDs)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "更新目录失败: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, updated)
}

// ExportCatalogYaml 将目录导出为解码器可直接加载的 yaml 文件
func ExportCatalogYaml(c *gin.Context) {
	catalogDoc, err := db.GetCatalog()
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "获取目录失败: "+err.Error())
		return
	}

	catalog := decode.Catalog{}
	if catalogDoc != nil {
		for key, name := range catalogDoc.IDs {
			id, parseErr := strconv.ParseUint(key, 10, 8)
			if parseErr != nil {
				errorResponse(c, http.StatusInternalServerError, fmt.Sprintf("目录中存在无效的条目 ID %q", key))
				return
			}
			catalog[uint8(id)] = name
		}
	}

	yamlData, err := catalog.Marshal()
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "生成 YAML 失败: "+err.Error())
		return
	}

	// --- 生成 YAML 和 HTTP 响应 ---
	yamlHeader := "# LWL entry catalog\n"
	yamlHeader += fmt.Sprintf("# Generated At: %s\n---\n", time.Now().Format("2006-01-02 15:04:05"))
	finalYaml := yamlHeader + string(yamlData)
	fileName := "lwl-catalog.yaml"

	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename="+fileName)
	c.Header("Content-Type", "application/x-yaml")
	c.Header("Content-Length", fmt.Sprintf("%d", len(finalYaml)))
	c.Header("Content-Transfer-Encoding", "binary")
	c.Header("Cache-Control", "no-cache")

	c.Writer.Write([]byte(finalYaml))
}
