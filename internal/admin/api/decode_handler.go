package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lwlgate/internal/decode"
	"lwlgate/internal/pkg"
)

// DecodeRequest defines the structure for the decode request body.
// DumpText 和 Tokens 二选一：Tokens 直接进入组装阶段，跳过扫描。
type DecodeRequest struct {
	DumpText       string            `json:"dumpText"`
	Tokens         []string          `json:"tokens"`
	EntryOffset    *int              `json:"entryOffset"`    // Optional: 条目区起始偏移，缺省为 16
	WithSections   bool              `json:"withSections"`   // Optional: 按 magic/size 识别转储中的段
	InitialCatalog map[string]string `json:"initialCatalog"` // Optional: 条目ID(十进制字符串) -> 名称
}

// DecodeStageInfo 记录解码单个阶段的详细信息
type DecodeStageInfo struct {
	Stage    string `json:"stage"`            // 阶段名: extract / assemble / sections / walk / fault
	Produced int    `json:"produced"`         // 该阶段的产出数量
	Detail   string `json:"detail,omitempty"` // 补充说明
	Error    string `json:"error,omitempty"`  // 此阶段的错误信息
}

// DecodeResponse defines the structure for a successful decode response.
type DecodeResponse struct {
	Tokens         int               `json:"tokens"`          // 提取到的 token 数
	ImageLen       int               `json:"imageLen"`        // 还原出的字节序列长度
	Entries        []*pkg.Entry      `json:"entries"`         // 解码出的条目
	Fault          *pkg.FaultInfo    `json:"fault,omitempty"` // 故障寄存器镜像
	Report         string            `json:"report"`          // 文本报告
	Stages         []DecodeStageInfo `json:"stages"`          // 各阶段详情
	ProcessingTime int64             `json:"processingTime"`  // 处理时间(纳秒)
}

// DecodeHandler handles synchronous decode requests with a per-stage trace.
func DecodeHandler(c *gin.Context) {
	log := pkg.LoggerFromContext(c.Request.Context())
	var request DecodeRequest

	// 1. Bind JSON request body
	if err := c.ShouldBindJSON(&request); err != nil {
		log.Warn("Failed to bind request JSON", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	if request.DumpText == "" && len(request.Tokens) == 0 {
		errMsg := "Either dumpText or tokens must be provided"
		log.Warn(errMsg)
		c.JSON(http.StatusBadRequest, gin.H{"error": errMsg})
		return
	}

	// 2. Resolve entry offset and optional catalog
	entryOffset := pkg.DefaultEntryOffset
	if request.EntryOffset != nil {
		if *request.EntryOffset < 0 {
			errMsg := "Invalid entryOffset: must not be negative"
			log.Warn(errMsg, zap.Int("entryOffset", *request.EntryOffset))
			c.JSON(http.StatusBadRequest, gin.H{"error": errMsg})
			return
		}
		entryOffset = *request.EntryOffset
	}

	catalog := decode.Catalog{}
	for key, name := range request.InitialCatalog {
		id, err := strconv.ParseUint(key, 10, 8)
		if err != nil {
			errMsg := fmt.Sprintf("Invalid catalog id %q: must be a decimal in 0..255", key)
			log.Warn(errMsg, zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": errMsg})
			return
		}
		catalog[uint8(id)] = name
	}

	// --- 开始同步解码 ---
	startTime := time.Now()
	stages := make([]DecodeStageInfo, 0, 4)

	// 3. Extract tokens (skipped when the caller provides them directly)
	tokens := request.Tokens
	if len(tokens) > 0 {
		stages = append(stages, DecodeStageInfo{
			Stage:    "extract",
			Produced: len(tokens),
			Detail:   "tokens provided by caller",
		})
	} else {
		tokens = decode.ExtractTokens(request.DumpText)
		stages = append(stages, DecodeStageInfo{Stage: "extract", Produced: len(tokens)})
	}

	// 4. Assemble the byte image
	image, err := decode.Assemble(tokens)
	if err != nil {
		log.Warn("Failed to assemble dump", zap.Error(err))
		stages = append(stages, DecodeStageInfo{Stage: "assemble", Error: err.Error()})
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid dump: " + err.Error(), "stages": stages})
		return
	}
	stages = append(stages, DecodeStageInfo{Stage: "assemble", Produced: len(image)})

	// 5. Walk the image, with optional section framing
	var entries []*pkg.Entry
	var fault *pkg.FaultInfo
	if request.WithSections {
		sections := decode.ScanSections(image)
		if sections == nil {
			stages = append(stages, DecodeStageInfo{
				Stage:  "sections",
				Detail: "image does not follow the section framing, walking it whole",
			})
			entries = decode.Walk(image, entryOffset)
		} else {
			kinds := make([]string, 0, len(sections))
			for _, section := range sections {
				kinds = append(kinds, section.Kind.String())
				switch section.Kind {
				case decode.KindLWL:
					entries = append(entries, decode.Walk(section.Body, entryOffset)...)
				case decode.KindFault:
					info, faultErr := decode.DecodeFault(section.Body)
					if faultErr != nil {
						log.Warn("故障段解码失败", zap.Error(faultErr))
						stages = append(stages, DecodeStageInfo{Stage: "fault", Error: faultErr.Error()})
						continue
					}
					fault = info
				}
			}
			stages = append(stages, DecodeStageInfo{
				Stage:    "sections",
				Produced: len(sections),
				Detail:   strings.Join(kinds, ","),
			})
			if entries == nil {
				entries = []*pkg.Entry{}
			}
		}
	} else {
		entries = decode.Walk(image, entryOffset)
	}
	stages = append(stages, DecodeStageInfo{Stage: "walk", Produced: len(entries)})

	if len(catalog) > 0 {
		for _, entry := range entries {
			entry.Name = catalog.Name(entry.ID)
		}
	}

	if fault != nil {
		stages = append(stages, DecodeStageInfo{
			Stage:    "fault",
			Produced: 1,
			Detail:   fmt.Sprintf("type=%d param=%d", fault.Type, fault.Param),
		})
	}

	// 6. Render the text report
	var sb strings.Builder
	if err := decode.RenderReport(&sb, entries); err != nil {
		log.Error("Failed to render report", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render report: " + err.Error()})
		return
	}

	processingTime := time.Since(startTime).Nanoseconds()
	if processingTime == 0 {
		processingTime = 1
	}

	response := DecodeResponse{
		Tokens:         len(tokens),
		ImageLen:       len(image),
		Entries:        entries,
		Fault:          fault,
		Report:         sb.String(),
		Stages:         stages,
		ProcessingTime: processingTime,
	}

	log.Info("Decode successful",
		zap.Int("tokens", response.Tokens),
		zap.Int("imageLen", response.ImageLen),
		zap.Int("entries", len(response.Entries)),
		zap.Bool("hasFault", response.Fault != nil),
		zap.Int64("processingTimeNs", response.ProcessingTime),
	)

	c.JSON(http.StatusOK, response)
}
