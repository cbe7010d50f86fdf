package main

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	err := godotenv.Load()
	if os.IsNotExist(err) {
		log.Printf("no .env file found, skipping")
	} else if err != nil {
		log.Fatalf("failed loading .env file: %s", err)
	}

	app := cli.NewApp()
	app.Name = "music-server"
	app.Usage = "Music library server and upload proxy."
	app.Flags = []cli.Flag{
		&cli.IntFlag{
			Name:    "port",
			Value:   5000,
			Usage:   "port to run server on",
			EnvVars: []string{"PORT", "MUSIC_PORT"},
		},
		&cli.StringFlag{
			Name:    "database",
			Value:   "music.db",
			Usage:   "path to the sqlite database file",
			EnvVars: []string{"MUSIC_DB"},
		},
		&cli.StringFlag{
			Name:    "upload-dir",
			Value:   "uploads",
			Usage:   "directory where staged and fallback-stored files live",
			EnvVars: []string{"MUSIC_UPLOAD_DIR"},
		},
		&cli.StringFlag{
			Name:    "cloudinary-cloud-name",
			Usage:   "cloudinary cloud name",
			EnvVars: []string{"CLOUDINARY_CLOUD_NAME"},
		},
		&cli.StringFlag{
			Name:    "cloudinary-api-key",
			Usage:   "cloudinary api key",
			EnvVars: []string{"CLOUDINARY_API_KEY"},
		},
		&cli.StringFlag{
			Name:    "cloudinary-api-secret",
			Usage:   "cloudinary api secret",
			EnvVars: []string{"CLOUDINARY_API_SECRET"},
		},
	}
	app.Action = func(ctx *cli.Context) error {
		uploadDir := ctx.String("upload-dir")
		err := os.MkdirAll(uploadDir, 0755)
		if err != nil {
			return err
		}

		db, err := newDatabase(ctx.String("database"))
		if err != nil {
			return err
		}

		remote, err := newCloudinaryUploader(
			ctx.String("cloudinary-cloud-name"),
			ctx.String("cloudinary-api-key"),
			ctx.String("cloudinary-api-secret"),
		)
		if err != nil {
			return err
		}
		if remote == nil {
			slog.Warn("no cloudinary credentials configured, uploads will only be stored locally")
		}

		handler := newServer(db, newFileStore(uploadDir, remote))

		// Start HTTP handler.
		quit := make(chan os.Signal, 2)
		var wg sync.WaitGroup
		wg.Add(1)

		server := &http.Server{Addr: ":" + strconv.Itoa(ctx.Int("port")), Handler: handler.routes()}

		go func() {
			defer wg.Done()

			slog.Info("serving", "address", server.Addr)

			err := server.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				fmt.Fprintf(os.Stderr, "failed to start server: %s\n", err)
				quit <- os.Interrupt
			}
		}()

		signal.Notify(
			quit,
			syscall.SIGINT,
			syscall.SIGTERM,
			syscall.SIGHUP,
		)
		<-quit

		slog.Info("Server shutting down...")

		go server.Close()

		wg.Wait()
		return nil
	}

	err = app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}
