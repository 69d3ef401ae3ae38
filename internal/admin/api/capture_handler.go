package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"lwlgate/internal/admin/db"
	"lwlgate/internal/admin/model"
	"lwlgate/internal/decode"
	"lwlgate/internal/pkg"
)

// Helper function
func errorResponse(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"error": message})
}

// decodeCaptureText 对存档文本走一遍解码，填充统计字段用
// 段框架识别总是先尝试，不满足框架的转储整体按裸镜像遍历
func decodeCaptureText(text string) ([]*pkg.Entry, *pkg.FaultInfo, int, error) {
	tokens := decode.ExtractTokens(text)
	image, err := decode.Assemble(tokens)
	if err != nil {
		return nil, nil, 0, err
	}

	var entries []*pkg.Entry
	var fault *pkg.FaultInfo
	if sections := decode.ScanSections(image); sections != nil {
		for _, section := range sections {
			switch section.Kind {
			case decode.KindLWL:
				entries = append(entries, decode.Walk(section.Body, pkg.DefaultEntryOffset)...)
			case decode.KindFault:
				if info, faultErr := decode.DecodeFault(section.Body); faultErr == nil {
					fault = info
				}
			}
		}
		if entries == nil {
			entries = []*pkg.Entry{}
		}
	} else {
		entries = decode.Walk(image, pkg.DefaultEntryOffset)
	}
	return entries, fault, len(image), nil
}

// --- Capture Handlers ---

// GetCaptures 获取抓取存档列表 (列表项不含转储文本)
func GetCaptures(c *gin.Context) {
	captures, err := db.GetCaptures()
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "获取存档列表失败: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, captures)
}

// CreateCaptureRequest 归档请求体
type CreateCaptureRequest struct {
	Source string `json:"source"`
	Remote string `json:"remote"`
	Note   string `json:"note"`
	Text   string `json:"text" binding:"required"`
}

// CreateCapture 归档一次转储抓取，解码统计随档落库
func CreateCapture(c *gin.Context) {
	var request CreateCaptureRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		errorResponse(c, http.StatusBadRequest, "无效的请求数据: "+err.Error())
		return
	}

	source := strings.TrimSpace(request.Source)
	if source == "" {
		source = "manual"
	}

	entries, fault, imageLen, err := decodeCaptureText(request.Text)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "转储文本无法解码: "+err.Error())
		return
	}

	capture := &model.CaptureRecord{
		Source:     source,
		Remote:     request.Remote,
		Note:       request.Note,
		Text:       request.Text,
		EntryCount: len(entries),
		ImageLen:   imageLen,
		HasFault:   fault != nil,
		Fault:      fault,
	}

	created, err := db.CreateCapture(capture)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "归档失败: "+err.Error())
		return
	}
	c.JSON(http.StatusCreated, created)
}

// GetCaptureByID 获取单个抓取存档的完整记录
func GetCaptureByID(c *gin.Context) {
	captureIDStr := c.Param("captureId")
	capture, err := db.GetCaptureByID(captureIDStr)
	if err != nil {
		if err.Error() == "无效的存档 ID 格式" {
			errorResponse(c, http.StatusNotFound, "存档未找到")
		} else {
			errorResponse(c, http.StatusInternalServerError, "获取存档失败: "+err.Error())
		}
		return
	}
	if capture == nil {
		errorResponse(c, http.StatusNotFound, "存档未找到")
		return
	}
	c.JSON(http.StatusOK, capture)
}

// DeleteCapture 删除抓取存档
func DeleteCapture(c *gin.Context) {
	captureIDStr := c.Param("captureId")
	err := db.DeleteCapture(captureIDStr)
	if err != nil {
		if err.Error() == "未找到要删除的存档" || err.Error() == "无效的存档 ID 格式" {
			errorResponse(c, http.StatusNotFound, err.Error())
		} else {
			errorResponse(c, http.StatusInternalServerError, "删除存档失败: "+err.Error())
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "存档已删除"})
}

// GetCaptureReport 重新渲染存档的文本报告
func GetCaptureReport(c *gin.Context) {
	captureIDStr := c.Param("captureId")
	capture, err := db.GetCaptureByID(captureIDStr)
	if err != nil {
		if err.Error() == "无效的存档 ID 格式" {
			errorResponse(c, http.StatusNotFound, "存档未找到")
		} else {
			errorResponse(c, http.StatusInternalServerError, "获取存档失败: "+err.Error())
		}
		return
	}
	if capture == nil {
		errorResponse(c, http.StatusNotFound, "存档未找到")
		return
	}

	entries, _, _, err := decodeCaptureText(capture.Text)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "存档文本无法解码: "+err.Error())
		return
	}

	var sb strings.Builder
	if err := decode.RenderReport(&sb, entries); err != nil {
		errorResponse(c, http.StatusInternalServerError, "生成报告失败: "+err.Error())
		return
	}
	c.String(http.StatusOK, sb.String())
}
