package main

import (
	"os"

	_ "kairo-keeper/cmd"
	"kairo-keeper/cmd/root"
	"kairo-keeper/internal/config"
	"kairo-keeper/internal/env"
	"kairo-keeper/internal/logger"
)

func main() {
	// 检查是否是服务器模式
	isServerMode := len(os.Args) > 1 && os.Args[1] == "server"
	env.Daemon = isServerMode

	// 根据运行模式初始化日志系统，server模式同时输出到控制台
	cfg := config.App()
	logger.InitLogger(cfg.Log.Path, cfg.Log.Level, isServerMode)

	if err := root.RootCmd.Execute(); err != nil {
		logger.Fatal(err)
	}
	os.Exit(0)
}
