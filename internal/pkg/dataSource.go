package pkg

// Source2DecodeChan 是Source和Decoder之间传递的数据结构
type Source2DecodeChan chan *Capture

// Decode2DispatchChan 是Decoder和Dispatcher之间传递的数据结构
type Decode2DispatchChan chan *EntryBatch

// Dispatch2SinkChan 是Dispatcher和Sink之间传递的数据结构，按输出端类型分通道
type Dispatch2SinkChan map[string]chan *EntryBatch
