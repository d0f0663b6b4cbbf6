package pipeline

import (
	"context"
	"sync"
	"sync/atomic"

	"drug-crossref/internal/core/assemble"
	"drug-crossref/internal/infrastructure/config"
	"drug-crossref/internal/pkg/common"
)

// EnrichFunc 解析並比對單筆紀錄
type EnrichFunc func(ctx context.Context, rec common.DrugRecord) assemble.Item

// Strategy 決定紀錄如何被送去解析與比對；輸出順序必須與輸入相同
type Strategy interface {
	Name() string
	Enrich(ctx context.Context, records []common.DrugRecord, fn EnrichFunc) []assemble.Item
}

// NewStrategy 依設定建立策略
func NewStrategy(cfg config.PipelineConfig) Strategy {
	if cfg.Strategy == "pooled" {
		return NewPooled(cfg.Workers, cfg.QueueSize)
	}
	return Sequential{}
}

// Sequential 逐列依序處理，外部呼叫在同一個 goroutine 內阻塞執行
type Sequential struct{}

func (Sequential) Name() string { return "sequential" }

func (Sequential) Enrich(ctx context.Context, records []common.DrugRecord, fn EnrichFunc) []assemble.Item {
	items := make([]assemble.Item, 0, len(records))
	for _, rec := range records {
		if ctx.Err() != nil {
			break
		}
		items = append(items, fn(ctx, rec))
	}
	return items
}

// Status 工作池狀態
type Status struct {
	QueueLength    int `json:"queue_length"`
	ProcessedCount int `json:"processed_count"`
	MaxQueueSize   int `json:"max_queue_size"`
	Workers        int `json:"workers"`
}

// Pooled 固定數量的 worker 從有界佇列取工作；遠端來源仍各自限流
type Pooled struct {
	workers   int
	queueSize int
	processed int64
	queued    int64
}

type job struct {
	index  int
	record common.DrugRecord
}

// NewPooled 創建工作池策略
func NewPooled(workers, queueSize int) *Pooled {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = workers
	}
	return &Pooled{workers: workers, queueSize: queueSize}
}

func (p *Pooled) Name() string { return "pooled" }

func (p *Pooled) Enrich(ctx context.Context, records []common.DrugRecord, fn EnrichFunc) []assemble.Item {
	items := make([]assemble.Item, len(records))
	queue := make(chan job, p.queueSize)

	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range queue {
				atomic.AddInt64(&p.queued, -1)
				if ctx.Err() != nil {
					continue
				}
				items[j.index] = fn(ctx, j.record)
				atomic.AddInt64(&p.processed, 1)
			}
		}()
	}

enqueue:
	for i, rec := range records {
		select {
		case queue <- job{index: i, record: rec}:
			atomic.AddInt64(&p.queued, 1)
		case <-ctx.Done():
			break enqueue
		}
	}
	close(queue)
	wg.Wait()

	return items
}

// GetQueueStatus 獲取工作池狀態
func (p *Pooled) GetQueueStatus() Status {
	return Status{
		QueueLength:    int(max(atomic.LoadInt64(&p.queued), 0)),
		ProcessedCount: int(atomic.LoadInt64(&p.processed)),
		MaxQueueSize:   p.queueSize,
		Workers:        p.workers,
	}
}
