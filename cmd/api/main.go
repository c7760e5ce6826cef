// The api binary serves the run API: starting pipeline runs, reading
// reports and summaries, and watching progress over SSE or websocket.
package main

import (
	"log"

	"legisum/internal/app"
	"legisum/internal/config"
	"legisum/internal/server"
	"legisum/internal/summary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	st, err := app.OpenStore(cfg)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer st.Close()

	eng, err := app.BuildEngine(cfg)
	if err != nil {
		log.Fatalf("build engine: %v", err)
	}
	defer eng.Close()

	archive, err := app.BuildArchive(cfg)
	if err != nil {
		log.Fatalf("build archive: %v", err)
	}

	srv, err := server.New(server.Config{
		Store:   st,
		Engine:  eng,
		Cache:   summary.NewCache(st, cfg.ClaimTTL),
		Archive: archive,
	})
	if err != nil {
		log.Fatalf("server: %v", err)
	}
	log.Printf("api: engine=%s db=%s", eng.Name(), cfg.DBDriver)
	log.Fatal(srv.ListenAndServe(cfg.Port))
}
