package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Megatron-XCoder/simple-collaborative-whiteboard/internal/bootstrap"
)

func main() {
	app, err := bootstrap.NewApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	app.Log.Info("Starting collaborative whiteboard server...")
	app.Start()

	// 等待终止信号后优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	app.Log.Info("Shutdown signal received, shutting down gracefully...")

	app.Shutdown()
	app.Log.Info("Server exiting")
}
