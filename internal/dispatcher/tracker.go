package dispatcher

import (
	"fmt"
	"regexp"
	"time"

	"lwlgate/internal/pkg"
)

// Tracker 按设备跟踪重复上报的转储，主要功能如下
// - 识别同一设备环形缓冲区的增量增长
// - 抑制已经上报过的条目，只放行新增尾部
// - 设备重刷或回绕时整批放行并重建基线
//
// 设备每次都会吐出完整的环形缓冲区内容，不做抑制时
// 同一条目会随每帧反复进入所有sink。
type Tracker struct {
	states        map[string]*deviceState // 设备标识 -> 跟踪状态
	deltaPatterns []*regexp.Regexp        // 参与增量抑制的设备匹配规则
	matchCache    map[string]bool         // 缓存设备是否参与增量抑制
	LatestTs      time.Time
	LatestFrameId string
}

// deviceState 记录单个设备最近一帧的条目基线
type deviceState struct {
	lastIDs []uint8   // 上一帧从入口偏移起的条目ID序列
	lastTs  time.Time // 上一帧时间
}

// NewTracker 创建一个新的增量跟踪器
//
// 参数:
//   - dispatcherConfig: 分发器配置，DeltaDevices 为空时所有设备都参与抑制
//
// 返回:
//   - 初始化完成的跟踪器
//   - 可能的错误信息
func NewTracker(dispatcherConfig *pkg.DispatcherConfig) (*Tracker, error) {
	tracker := &Tracker{
		states:     make(map[string]*deviceState),
		matchCache: make(map[string]bool),
	}
	rules := dispatcherConfig.DeltaDevices
	if len(rules) == 0 {
		rules = []string{".*"}
	}
	for _, rule := range rules {
		re, err := regexp.Compile(rule)
		if err != nil {
			return nil, fmt.Errorf("error compiling regex: %v", err)
		}
		tracker.deltaPatterns = append(tracker.deltaPatterns, re)
	}
	return tracker, nil
}

// Filter 对一帧解码结果做增量抑制
//
// 前缀一致且条目没有减少时视为同一环形缓冲区的增长，只放行新增尾部；
// 没有任何新增时返回 nil，整帧抑制。
// 带故障记录的批不做抑制，故障必须完整送达。
//
// 参数:
//   - batch: 解码器产出的条目批
//
// 返回:
//   - 放行的批（可能只含新增条目），或 nil
func (t *Tracker) Filter(batch *pkg.EntryBatch) *pkg.EntryBatch {
	t.LatestFrameId = batch.FrameId
	t.LatestTs = batch.Ts

	if batch.Fault != nil {
		t.rebase(batch)
		return batch
	}
	device := deviceKey(batch)
	if !t.shouldTrack(device) {
		return batch
	}

	state, ok := t.states[device]
	if !ok {
		// 首帧建立基线，整批放行
		t.rebase(batch)
		return batch
	}

	ids := entryIDs(batch.Entries)
	if len(ids) >= len(state.lastIDs) && hasPrefix(ids, state.lastIDs) {
		newEntries := batch.Entries[len(state.lastIDs):]
		state.lastIDs = ids
		state.lastTs = batch.Ts
		if len(newEntries) == 0 {
			return nil
		}
		// 浅拷贝批级元数据，条目只保留新增尾部（偏移保持环内绝对位置）
		delta := *batch
		delta.Entries = newEntries
		return &delta
	}

	// 设备重刷或缓冲区回绕，重建基线并整批放行
	t.rebase(batch)
	return batch
}

// rebase 以当前帧重建设备基线
func (t *Tracker) rebase(batch *pkg.EntryBatch) {
	t.states[deviceKey(batch)] = &deviceState{
		lastIDs: entryIDs(batch.Entries),
		lastTs:  batch.Ts,
	}
}

// shouldTrack 根据规则检查设备是否参与增量抑制
//
// 该方法使用缓存存储结果以提高性能。
func (t *Tracker) shouldTrack(device string) bool {
	if result, ok := t.matchCache[device]; ok {
		return result
	}
	for _, re := range t.deltaPatterns {
		if re.MatchString(device) {
			t.matchCache[device] = true
			return true
		}
	}
	t.matchCache[device] = false
	return false
}

// deviceKey 构造设备标识，同一来源的同一远端视作同一设备
func deviceKey(batch *pkg.EntryBatch) string {
	return batch.Source + "/" + batch.Remote
}

func entryIDs(entries []*pkg.Entry) []uint8 {
	ids := make([]uint8, len(entries))
	for i, entry := range entries {
		ids[i] = entry.ID
	}
	return ids
}

func hasPrefix(ids, prefix []uint8) bool {
	for i, id := range prefix {
		if ids[i] != id {
			return false
		}
	}
	return true
}
