package scanner

import "sync"

// Publisher 一个轻量事件分发器：每个订阅者只保留最新一份报告，慢消费者丢弃旧报告。
type Publisher struct {
	mu   sync.Mutex
	subs map[chan Report]struct{}
}

func NewPublisher() *Publisher {
	return &Publisher{subs: make(map[chan Report]struct{})}
}

func (p *Publisher) Subscribe() <-chan Report {
	ch := make(chan Report, 1)
	p.mu.Lock()
	p.subs[ch] = struct{}{}
	p.mu.Unlock()
	return ch
}

// Unsubscribe 取消订阅并关闭通道。
func (p *Publisher) Unsubscribe(sub <-chan Report) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for ch := range p.subs {
		if ch == sub {
			delete(p.subs, ch)
			close(ch)
			return
		}
	}
}

func (p *Publisher) Publish(r Report) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for ch := range p.subs {
		select {
		case ch <- r:
			continue
		default:
		}
		// 丢弃未消费的旧报告后重试
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- r:
		default:
		}
	}
}
