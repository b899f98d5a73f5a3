// lichesscheck probes the configured token: account lookup, active game
// snapshot, and a short observation of the global event stream.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/park285/lichess-live-watch/internal/lichess"
)

func main() {
	token := os.Getenv("LICHESS_TOKEN")
	if token == "" {
		log.Fatal("LICHESS_TOKEN is required")
	}
	baseURL := os.Getenv("LICHESS_BASE_URL")
	if baseURL == "" {
		baseURL = "https://lichess.org"
	}

	client := lichess.NewClient(baseURL,
		lichess.WithHeaderProvider(lichess.BearerHeaders(token)),
		lichess.WithTimeout(8*time.Second),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	info, err := client.Account(ctx)
	if err != nil {
		log.Printf("/api/account error: %v", err)
	} else {
		log.Printf("/api/account ok: username=%s title=%s", info.Username, info.Title)
	}

	ids, err := client.ActiveGameIDs(ctx)
	if err != nil {
		log.Printf("/api/account/playing error: %v", err)
	} else {
		log.Printf("/api/account/playing ok: %d active game(s) %v", len(ids), ids)
	}

	stream, err := client.StreamEvents(context.Background())
	if err != nil {
		log.Printf("event stream error: %v", err)
		return
	}
	defer stream.Close()
	log.Println("event stream open; observing for 10s")

	obsCtx, obsCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer obsCancel()
	for {
		line, err := stream.Next(obsCtx)
		if err != nil {
			return
		}
		fmt.Printf("event: %s\n", line)
	}
}
