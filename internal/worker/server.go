package worker

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/Megatron-XCoder/simple-collaborative-whiteboard/internal/service"
	"github.com/Megatron-XCoder/simple-collaborative-whiteboard/internal/tasks"
)

// WorkerServer 封装 asynq.Server，在独立进程内消费历史追加任务。
type WorkerServer struct {
	server  *asynq.Server
	history *service.HistoryService
}

// NewWorkerServer 创建后台 worker，队列权重沿用 critical/default/low 三档。
func NewWorkerServer(redisAddr, redisPassword string, redisDB int, history *service.HistoryService) *WorkerServer {
	server := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     redisAddr,
			Password: redisPassword,
			DB:       redisDB,
		},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logrus.WithFields(logrus.Fields{
					"type":  task.Type(),
					"error": err,
				}).Error("Task processing failed")
			}),
		},
	)

	return &WorkerServer{
		server:  server,
		history: history,
	}
}

// Start 注册任务处理器并启动 worker（非阻塞）。
func (w *WorkerServer) Start() error {
	mux := asynq.NewServeMux()
	mux.Handle(tasks.TypeHistoryAppend, NewHistoryAppendHandler(w.history))

	logrus.Info("Starting background worker server...")
	return w.server.Start(mux)
}

// Shutdown 优雅停机，等待在途任务完成。
func (w *WorkerServer) Shutdown() {
	logrus.Info("Shutting down background worker server...")
	w.server.Shutdown()
}
