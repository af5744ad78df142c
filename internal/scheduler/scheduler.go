package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// JobFunc представляет функцию задачи планировщика.
type JobFunc func(ctx context.Context) error

// JobID идентифицирует задачу любого типа.
type JobID int

// OverlapPolicy определяет политику обработки перекрывающихся выполнений задач.
type OverlapPolicy int

const (
	// AllowOverlap разрешает параллельное выполнение задач.
	AllowOverlap OverlapPolicy = iota
	// SkipIfRunning пропускает выполнение, если задача уже запущена.
	SkipIfRunning
	// DelayIfRunning ждет завершения предыдущего выполнения.
	DelayIfRunning
)

func (p OverlapPolicy) String() string {
	switch p {
	case SkipIfRunning:
		return "skip"
	case DelayIfRunning:
		return "delay"
	default:
		return "allow"
	}
}

// ParseOverlapPolicy разбирает "allow", "skip" или "delay".
func ParseOverlapPolicy(s string) (OverlapPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "allow":
		return AllowOverlap, nil
	case "skip":
		return SkipIfRunning, nil
	case "delay":
		return DelayIfRunning, nil
	default:
		return 0, fmt.Errorf("scheduler: unknown overlap policy %q", s)
	}
}

// JobOptions содержит опции для настройки задач.
type JobOptions struct {
	Name string
	// Timeout - максимальное время одного выполнения (0 - без ограничения).
	Timeout       time.Duration
	OverlapPolicy OverlapPolicy
}

// JobHooks содержит необязательные хуки для наблюдаемости.
type JobHooks struct {
	OnJobStart  func(jobName string)
	OnJobFinish func(jobName string, duration time.Duration, err error)
	OnJobError  func(jobName string, err error)
}

// Config содержит конфигурацию планировщика.
type Config struct {
	Logger   *slog.Logger
	JobHooks JobHooks
}

type jobWrapper struct {
	job     JobFunc
	options JobOptions
	running sync.Mutex // для контроля перекрытий
}

type entry struct {
	wrapper *jobWrapper
	cronID  cron.EntryID       // для cron-задач
	cancel  context.CancelFunc // для interval-задач
	every   time.Duration
}

// parser принимает 6 полей (с секундами) и дескрипторы вида @every/@hourly.
var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Scheduler управляет периодическими задачами.
type Scheduler struct {
	cron      *cron.Cron
	logger    *slog.Logger
	hooks     JobHooks
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	jobs      map[JobID]*entry
	nextID    JobID
	stopOnce  sync.Once
	startOnce sync.Once
}

// New создает новый экземпляр планировщика с background контекстом.
func New(cfg Config) *Scheduler {
	return NewWithContext(context.Background(), cfg)
}

// NewWithContext создает планировщик; отмена parentCtx останавливает его.
func NewWithContext(parentCtx context.Context, cfg Config) *Scheduler {
	ctx, cancel := context.WithCancel(parentCtx)

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLogger(cronLogger{logger: logger.With("component", "cron")}),
		),
		logger: logger,
		hooks:  cfg.JobHooks,
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(map[JobID]*entry),
		nextID: 1,
	}
}

// ValidateSchedule проверяет расписание без добавления задачи.
// Допустимы cron-выражения (5 или 6 полей), дескрипторы (@every 5m, @hourly)
// и простые интервалы Go ("90s", "15m").
func ValidateSchedule(schedule string) error {
	if d, ok := parseInterval(schedule); ok {
		if d <= 0 {
			return fmt.Errorf("scheduler: interval must be positive, got %s", d)
		}
		return nil
	}
	_, err := parser.Parse(schedule)
	return err
}

// AddJob добавляет задачу. Интервал Go ("15m") запускает задачу на тикере,
// всё остальное разбирается как cron-расписание.
func (s *Scheduler) AddJob(schedule string, job JobFunc, opts JobOptions) (JobID, error) {
	if d, ok := parseInterval(schedule); ok {
		if d <= 0 {
			return 0, fmt.Errorf("scheduler: interval must be positive, got %s", d)
		}
		return s.addInterval(d, job, opts), nil
	}
	return s.addCron(schedule, job, opts)
}

func (s *Scheduler) addCron(schedule string, job JobFunc, opts JobOptions) (JobID, error) {
	wrapper := &jobWrapper{job: job, options: opts}

	cronID, err := s.cron.AddFunc(schedule, func() { s.runJobWrapper(wrapper) })
	if err != nil {
		s.logger.Error("failed to add cron job", "schedule", schedule, "name", opts.Name, "error", err)
		return 0, err
	}

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.jobs[id] = &entry{wrapper: wrapper, cronID: cronID}
	s.mu.Unlock()

	s.logger.Info("cron job added", "schedule", schedule, "name", opts.Name, "overlap_policy", opts.OverlapPolicy.String(), "id", id)
	return id, nil
}

func (s *Scheduler) addInterval(interval time.Duration, job JobFunc, opts JobOptions) JobID {
	wrapper := &jobWrapper{job: job, options: opts}
	ctx, cancel := context.WithCancel(s.ctx)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.jobs[id] = &entry{wrapper: wrapper, cancel: cancel, every: interval}
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				// Тикер не ждет задачу: при AllowOverlap запуски могут пересекаться.
				s.wg.Add(1)
				go func() {
					defer s.wg.Done()
					s.runJobWrapper(wrapper)
				}()
			case <-ctx.Done():
				s.logger.Debug("interval job stopped", "name", opts.Name, "id", id)
				return
			}
		}
	}()

	s.logger.Info("interval job added", "interval", interval, "name", opts.Name, "overlap_policy", opts.OverlapPolicy.String(), "id", id)
	return id
}

// RemoveJob удаляет задачу. Возвращает false для неизвестного ID.
func (s *Scheduler) RemoveJob(id JobID) bool {
	s.mu.Lock()
	e, ok := s.jobs[id]
	delete(s.jobs, id)
	s.mu.Unlock()
	if !ok {
		return false
	}

	if e.cancel != nil {
		e.cancel()
	} else {
		s.cron.Remove(e.cronID)
	}
	s.logger.Info("job removed", "id", id, "name", e.wrapper.options.Name)
	return true
}

// Next возвращает время следующего запуска задачи.
// Для interval-задач и до Start результат - нулевое время.
func (s *Scheduler) Next(id JobID) time.Time {
	s.mu.Lock()
	e, ok := s.jobs[id]
	s.mu.Unlock()
	if !ok || e.cancel != nil {
		return time.Time{}
	}
	return s.cron.Entry(e.cronID).Next
}

// Start запускает планировщик.
func (s *Scheduler) Start() {
	s.startOnce.Do(func() {
		s.logger.Info("starting scheduler")
		s.cron.Start()

		go func() {
			<-s.ctx.Done()
			s.stopOnce.Do(s.stop)
		}()
	})
}

// Stop останавливает планировщик и ждет завершения всех задач.
func (s *Scheduler) Stop() {
	if !s.IsRunning() {
		return
	}
	s.logger.Info("stopping scheduler")
	s.cancel()
	s.stopOnce.Do(s.stop)
}

// StopContext останавливает планировщик, ожидая не дольше дедлайна ctx.
// При истечении ctx возвращает ctx.Err(), но остановка все равно доводится до конца.
func (s *Scheduler) StopContext(ctx context.Context) error {
	if !s.IsRunning() {
		return nil
	}

	s.logger.Info("stopping scheduler with deadline")
	s.cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.stopOnce.Do(s.stop)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.logger.Warn("scheduler stop deadline exceeded, waiting for running jobs")
		<-done
		return ctx.Err()
	}
}

// IsRunning возвращает false после остановки планировщика.
func (s *Scheduler) IsRunning() bool {
	select {
	case <-s.ctx.Done():
		return false
	default:
		return true
	}
}

func (s *Scheduler) stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// runJobWrapper выполняет задачу с учетом её опций.
func (s *Scheduler) runJobWrapper(wrapper *jobWrapper) {
	jobName := wrapper.options.Name
	if jobName == "" {
		jobName = "unnamed"
	}

	switch wrapper.options.OverlapPolicy {
	case SkipIfRunning:
		if !wrapper.running.TryLock() {
			s.logger.Debug("skipping job execution, already running", "name", jobName)
			return
		}
		defer wrapper.running.Unlock()
	case DelayIfRunning:
		wrapper.running.Lock()
		defer wrapper.running.Unlock()
	}

	if s.ctx.Err() != nil {
		return
	}

	if s.hooks.OnJobStart != nil {
		s.hooks.OnJobStart(jobName)
	}

	defer func() {
		if r := recover(); r != nil {
			panicErr := fmt.Errorf("panic: %v", r)
			s.logger.Error("job panicked", "name", jobName, "panic", r)
			if s.hooks.OnJobError != nil {
				s.hooks.OnJobError(jobName, panicErr)
			}
		}
	}()

	ctx := s.ctx
	if wrapper.options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, wrapper.options.Timeout)
		defer cancel()
	}

	start := time.Now()
	err := wrapper.job(ctx)
	duration := time.Since(start)

	if s.hooks.OnJobFinish != nil {
		s.hooks.OnJobFinish(jobName, duration, err)
	}

	if err != nil {
		s.logger.Error("job failed", "name", jobName, "error", err, "duration", duration)
		if s.hooks.OnJobError != nil {
			s.hooks.OnJobError(jobName, err)
		}
	} else {
		s.logger.Debug("job completed", "name", jobName, "duration", duration)
	}
}

// parseInterval распознает простой интервал Go. Дескрипторы cron начинаются с "@".
func parseInterval(schedule string) (time.Duration, bool) {
	schedule = strings.TrimSpace(schedule)
	if schedule == "" || strings.HasPrefix(schedule, "@") || strings.Contains(schedule, " ") {
		return 0, false
	}
	d, err := time.ParseDuration(schedule)
	if err != nil {
		return 0, false
	}
	return d, true
}

// cronLogger адаптер для интеграции cron logger с slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append([]any{"error", err}, keysAndValues...)...)
}
