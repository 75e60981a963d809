package sigchan

// Chan 非阻塞信号 channel：只通知“发生了”，不传数据，多次 Emit 会合并
type Chan struct {
	c chan struct{}
}

func New(bufferSize int) *Chan {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Chan{c: make(chan struct{}, bufferSize)}
}

// Emit 发送信号；缓冲已满时丢弃
func (c *Chan) Emit() {
	select {
	case c.c <- struct{}{}:
	default:
	}
}

func (c *Chan) C() <-chan struct{} {
	return c.c
}
