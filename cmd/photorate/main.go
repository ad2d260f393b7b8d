// Command photorate は写真評価サービスのAPIサーバー・ワーカー・マイグレーションを起動する。
//
//	photorate [serve|worker|migrate|healthcheck]
package main

import (
	"log/slog"
	"os"

	"github.com/hitoshi/photorate/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		slog.Error("application exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
