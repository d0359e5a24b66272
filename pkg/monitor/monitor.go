package monitor

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

const (
	StatusUnknown   = "unknown"
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// HealthStatus 健康状态
type HealthStatus struct {
	Component   string    `json:"component"`
	Status      string    `json:"status"`
	Required    bool      `json:"required"`
	LastChecked time.Time `json:"last_checked"`
	Message     string    `json:"message,omitempty"`
}

// Checker 组件探测函数，返回 nil 表示健康
type Checker func(ctx context.Context) error

// Monitor 组件健康登记表，/ready 以此判断服务是否可用
type Monitor struct {
	components map[string]*HealthStatus
	checks     map[string]Checker
	mutex      sync.RWMutex
	alertFunc  func(component, status, message string)
	timeout    time.Duration
	logger     *slog.Logger
}

// NewMonitor 创建新的监控系统，alertFunc 在组件变为不健康时调用，可为空
func NewMonitor(alertFunc func(component, status, message string), logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		components: make(map[string]*HealthStatus),
		checks:     make(map[string]Checker),
		alertFunc:  alertFunc,
		timeout:    5 * time.Second,
		logger:     logger.With("component", "monitor"),
	}
}

// Register 注册组件；required 的组件不健康时服务不就绪
func (m *Monitor) Register(component string, required bool, check Checker) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.components[component] = &HealthStatus{
		Component:   component,
		Status:      StatusUnknown,
		Required:    required,
		LastChecked: time.Now(),
	}
	m.checks[component] = check
}

// UpdateStatus 更新组件状态
func (m *Monitor) UpdateStatus(component, status, message string) {
	m.mutex.Lock()
	hs, exists := m.components[component]
	if !exists {
		hs = &HealthStatus{Component: component}
		m.components[component] = hs
	}
	oldStatus := hs.Status
	hs.Status = status
	hs.LastChecked = time.Now()
	hs.Message = message
	m.mutex.Unlock()

	if oldStatus != status && status != StatusHealthy {
		m.logger.Warn("组件状态异常", "target", component, "status", status, "message", message)
		if m.alertFunc != nil {
			m.alertFunc(component, status, message)
		}
	}
}

// GetStatus 获取组件状态
func (m *Monitor) GetStatus(component string) *HealthStatus {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if status, exists := m.components[component]; exists {
		out := *status
		return &out
	}
	return nil
}

// GetAllStatus 获取所有组件状态，按名称排序
func (m *Monitor) GetAllStatus() []HealthStatus {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	statuses := make([]HealthStatus, 0, len(m.components))
	for _, status := range m.components {
		statuses = append(statuses, *status)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Component < statuses[j].Component })
	return statuses
}

// CheckAll 执行全部探测并返回最新状态
func (m *Monitor) CheckAll(ctx context.Context) []HealthStatus {
	m.mutex.RLock()
	checks := make(map[string]Checker, len(m.checks))
	for name, fn := range m.checks {
		checks[name] = fn
	}
	m.mutex.RUnlock()

	var wg sync.WaitGroup
	for name, fn := range checks {
		name, fn := name, fn
		if fn == nil {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, m.timeout)
			defer cancel()
			if err := fn(cctx); err != nil {
				m.UpdateStatus(name, StatusUnhealthy, err.Error())
				return
			}
			m.UpdateStatus(name, StatusHealthy, "")
		}()
	}
	wg.Wait()
	return m.GetAllStatus()
}

// Ready 必需组件全部健康
func Ready(statuses []HealthStatus) bool {
	for _, s := range statuses {
		if s.Required && s.Status != StatusHealthy {
			return false
		}
	}
	return true
}

// StartChecking 定期探测，ctx 取消后退出
func (m *Monitor) StartChecking(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.CheckAll(ctx)
			}
		}
	}()
}
